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

// Package seccompfilter installs a syscall allow-list in the payload
// process, using libseccomp rather than a hand-assembled BPF program.
package seccompfilter

import (
	"fmt"

	seccomp "github.com/seccomp/libseccomp-golang"
)

// defaultErrno is the action taken for any syscall not on the allow-list:
// return EPERM to the caller rather than killing the process, matching the
// allow-list's intent to restrict rather than sandbox-crash on a miss.
const defaultErrno = 1 // EPERM

// Install builds a filter whose default action is ActErrno(EPERM) and
// allows exactly the named syscalls, then loads it into the calling
// thread's seccomp state. It must run last, immediately before the
// application's execve, since libseccomp filters are inherited across
// exec and cannot be relaxed afterward. A nil allow-list installs no filter.
func Install(allow []string) error {
	if allow == nil {
		return nil
	}
	filter, err := seccomp.NewFilter(seccomp.ActErrno.SetReturnCode(defaultErrno))
	if err != nil {
		return fmt.Errorf("seccompfilter: creating filter: %w", err)
	}
	defer filter.Release()

	if err := filter.AddArch(seccomp.ArchNative); err != nil {
		return fmt.Errorf("seccompfilter: adding native arch: %w", err)
	}

	for _, name := range allow {
		call, err := seccomp.GetSyscallFromName(name)
		if err != nil {
			return fmt.Errorf("seccompfilter: unknown syscall %q: %w", name, err)
		}
		if err := filter.AddRule(call, seccomp.ActAllow); err != nil {
			return fmt.Errorf("seccompfilter: allowing %q: %w", name, err)
		}
	}

	if err := filter.Load(); err != nil {
		return fmt.Errorf("seccompfilter: loading filter: %w", err)
	}
	return nil
}
