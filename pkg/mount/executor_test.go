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

package mount

import (
	"errors"
	"fmt"
	"testing"

	"github.com/nsbox/nsbox/pkg/container"
)

type call struct {
	source, target, fstype string
	flags                   uintptr
	data                    string
}

func TestExecuteRunsInOrder(t *testing.T) {
	plan := container.MountPlan{
		{Source: "proc", Target: "/proc", FsType: "proc"},
		{Source: "tmpfs", Target: "/tmp", FsType: "tmpfs", Flags: 1},
		{Source: "/host/lib", Target: "/lib", Flags: 2},
	}

	var calls []call
	do := func(source, target, fstype string, flags uintptr, data string) error {
		calls = append(calls, call{source, target, fstype, flags, data})
		return nil
	}

	if err := Execute(plan, do); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if len(calls) != len(plan) {
		t.Fatalf("got %d calls, want %d", len(calls), len(plan))
	}
	for i, op := range plan {
		got := calls[i]
		if got.source != op.Source || got.target != op.Target || got.fstype != op.FsType || got.flags != op.Flags {
			t.Errorf("call %d = %+v, want %+v", i, got, op)
		}
	}
}

func TestExecuteStopsOnFirstFailure(t *testing.T) {
	plan := container.MountPlan{
		{Source: "proc", Target: "/proc", FsType: "proc"},
		{Source: "bad", Target: "/bad", ErrorContext: "mounting /bad"},
		{Source: "never", Target: "/never"},
	}

	var n int
	failAt := errors.New("boom")
	do := func(source, target, fstype string, flags uintptr, data string) error {
		n++
		if target == "/bad" {
			return failAt
		}
		return nil
	}

	err := Execute(plan, do)
	if err == nil {
		t.Fatal("Execute: expected error, got nil")
	}
	if n != 2 {
		t.Errorf("Execute: do called %d times, want 2 (stop after failure)", n)
	}
	if !errors.Is(err, failAt) {
		t.Errorf("Execute error does not wrap the underlying failure: %v", err)
	}
	wantPrefix := "mounting /bad"
	if got := err.Error(); len(got) < len(wantPrefix) || got[:len(wantPrefix)] != wantPrefix {
		t.Errorf("Execute error = %q, want prefix %q", got, wantPrefix)
	}
}

func TestExecuteDefaultErrorContext(t *testing.T) {
	plan := container.MountPlan{{Source: "a", Target: "/b"}}
	failAt := errors.New("boom")
	err := Execute(plan, func(source, target, fstype string, flags uintptr, data string) error {
		return failAt
	})
	if err == nil {
		t.Fatal("Execute: expected error, got nil")
	}
	want := fmt.Sprintf("mount: entry 0 (%s -> %s): %v", "a", "/b", failAt)
	if err.Error() != want {
		t.Errorf("Execute error = %q, want %q", err.Error(), want)
	}
}
