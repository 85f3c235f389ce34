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

import "fmt"

// SignalOffset splits the single-exit-code encoding of an ExitStatus used by
// EncodeInitExitCode/DecodeInitExitCode: codes 0-127 are a real exit code,
// codes >=128 mean "killed by signal (code - SignalOffset)" (spec §4.5, §6).
const SignalOffset = 128

// ExitStatus is the tagged union of how a process ended: either it called
// exit(code) (or fell off main), or a signal killed it.
type ExitStatus struct {
	// Signalled is true when Signal holds a valid signal number; otherwise
	// Code holds the exit code.
	Signalled bool
	Code      uint8  // 0-255, meaningful iff !Signalled
	Signal    uint8  // 1-64, meaningful iff Signalled
}

// Exit builds an ExitStatus for a normal exit.
func Exit(code uint8) ExitStatus { return ExitStatus{Code: code} }

// Signal builds an ExitStatus for a signal death.
func Signal(sig uint8) ExitStatus { return ExitStatus{Signalled: true, Signal: sig} }

func (e ExitStatus) String() string {
	if e.Signalled {
		return fmt.Sprintf("signalled(%d)", e.Signal)
	}
	return fmt.Sprintf("exit(%d)", e.Code)
}

// EncodeInitExitCode maps the status to a single process exit code: a real
// exit code is returned unchanged and a signal death becomes
// SignalOffset+signal, so exit codes 0-127 never collide with a signal.
// init does not exit with this code: it reports the payload's status in its
// Exit message and then exits 0.
func EncodeInitExitCode(s ExitStatus) int {
	if s.Signalled {
		return SignalOffset + int(s.Signal)
	}
	return int(s.Code)
}

// DecodeInitExitCode is the inverse of EncodeInitExitCode, translating such
// an exit code back into an ExitStatus. The launcher's watch goroutine takes
// the status from init's Exit message and does not decode an exit code.
func DecodeInitExitCode(code int) ExitStatus {
	if code >= SignalOffset {
		return Signal(uint8(code - SignalOffset))
	}
	return Exit(uint8(code))
}
