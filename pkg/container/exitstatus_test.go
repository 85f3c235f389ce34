// Copyright 2024 The nsbox Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package container

import "testing"

func TestExitStatusString(t *testing.T) {
	if got, want := Exit(0).String(), "exit(0)"; got != want {
		t.Errorf("Exit(0).String() = %q, want %q", got, want)
	}
	if got, want := Signal(9).String(), "signalled(9)"; got != want {
		t.Errorf("Signal(9).String() = %q, want %q", got, want)
	}
}

func TestEncodeDecodeInitExitCodeRoundTrip(t *testing.T) {
	tests := []ExitStatus{
		Exit(0),
		Exit(1),
		Exit(127),
		Signal(1),
		Signal(9),
		Signal(15),
		Signal(127),
	}
	for _, want := range tests {
		code := EncodeInitExitCode(want)
		got := DecodeInitExitCode(code)
		if got != want {
			t.Errorf("round trip of %v through code %d = %v", want, code, got)
		}
	}
}

func TestEncodeInitExitCodeNoCollision(t *testing.T) {
	// Every real exit code must land below SignalOffset, and every
	// signalled code at or above it, so the two never collide.
	for code := uint8(0); code < 128; code++ {
		if got := EncodeInitExitCode(Exit(code)); got >= SignalOffset {
			t.Errorf("Exit(%d) encoded to %d, expected < %d", code, got, SignalOffset)
		}
	}
	for sig := uint8(0); sig < 64; sig++ {
		if got := EncodeInitExitCode(Signal(sig)); got < SignalOffset {
			t.Errorf("Signal(%d) encoded to %d, expected >= %d", sig, got, SignalOffset)
		}
	}
}

func TestDecodeInitExitCodeBoundary(t *testing.T) {
	if got := DecodeInitExitCode(127); got.Signalled || got.Code != 127 {
		t.Errorf("DecodeInitExitCode(127) = %v, want Exit(127)", got)
	}
	if got := DecodeInitExitCode(128); !got.Signalled || got.Signal != 0 {
		t.Errorf("DecodeInitExitCode(128) = %v, want Signal(0)", got)
	}
}
