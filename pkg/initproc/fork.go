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

package initproc

import (
	"os"

	"golang.org/x/sys/unix"
)

// rawFork clones a child with SIGCHLD as its termination signal — ordinary
// fork(2) semantics, no new namespace. It is used twice in this package:
// once by the trampoline to produce init, and once by init to produce the
// application process. The calling goroutine's OS thread must be
// locked (runtime.LockOSThread) before calling this, since only the
// calling thread survives into the child.
//
//go:norace
func rawFork() (pid int, isChild bool, err error) {
	p, _, errno := unix.RawSyscall(unix.SYS_CLONE, uintptr(unix.SIGCHLD), 0, 0)
	if errno != 0 {
		return 0, false, errno
	}
	if p == 0 {
		return 0, true, nil
	}
	return int(p), false, nil
}

// RunTrampoline forks once and exits the parent branch immediately,
// returning only in the child. The parent's exit orphans the child, which
// the kernel reparents to the nearest subreaper — the runtime process
// itself, per spec §4.5's data-flow note. Callers run this as literally
// the first thing in cmd/nsbox-init's main, before touching anything else
// that a fork shouldn't race with (file descriptors, signal state).
func RunTrampoline() error {
	pid, isChild, err := rawFork()
	if err != nil {
		return err
	}
	if !isChild {
		_ = pid
		os.Exit(0)
	}
	return nil
}
