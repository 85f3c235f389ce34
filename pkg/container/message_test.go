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

import (
	"testing"

	"github.com/nsbox/nsbox/pkg/ipc"
)

func TestExecValidate(t *testing.T) {
	good := Exec{Path: "/bin/sh", Args: []string{"-c", "true"}, Env: []string{"HOME=/root"}}
	if err := good.Validate(); err != nil {
		t.Errorf("Validate() of clean Exec: %v", err)
	}

	badPath := Exec{Path: "/bin/sh\x00"}
	if err := badPath.Validate(); err == nil {
		t.Error("Validate(): expected error for NUL in Path, got nil")
	}

	badArgs := Exec{Path: "/bin/sh", Args: []string{"ok", "bad\x00"}}
	if err := badArgs.Validate(); err == nil {
		t.Error("Validate(): expected error for NUL in Args, got nil")
	}

	badEnv := Exec{Path: "/bin/sh", Env: []string{"X=1", "Y=\x00"}}
	if err := badEnv.Validate(); err == nil {
		t.Error("Validate(): expected error for NUL in Env, got nil")
	}
}

func TestMessageConstructors(t *testing.T) {
	if m := NewExec(Exec{Path: "/bin/true"}); m.Kind != KindExec || m.Exec.Path != "/bin/true" {
		t.Errorf("NewExec: got %+v", m)
	}
	if m := NewForked(42); m.Kind != KindForked || m.Forked.PID != 42 {
		t.Errorf("NewForked: got %+v", m)
	}
	if m := NewExit(42, Exit(0)); m.Kind != KindExit || m.Exit.PID != 42 || m.Exit.Status != Exit(0) {
		t.Errorf("NewExit: got %+v", m)
	}
}

func TestConnSendRecvRoundTrip(t *testing.T) {
	fa, fb, err := ipc.Socketpair()
	if err != nil {
		t.Fatalf("ipc.Socketpair: %v", err)
	}
	a, b := NewConn(fa), NewConn(fb)
	defer a.Close()
	defer b.Close()

	want := NewExec(Exec{Path: "/bin/echo", Args: []string{"hi"}, Env: []string{"A=1"}})
	if err := a.Send(want); err != nil {
		t.Fatalf("Send: %v", err)
	}
	got, err := b.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if got == nil {
		t.Fatal("Recv: got nil message")
	}
	if got.Kind != want.Kind || got.Exec.Path != want.Exec.Path {
		t.Errorf("Recv() = %+v, want %+v", got, want)
	}
}
