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

// Package mount executes a pre-computed, ordered mount plan (spec §4.3).
// Building the plan from an image manifest is out of scope; this package
// only ever issues the mount(2) calls an already-resolved MountOp list
// names, in order.
package mount

import (
	"fmt"

	"github.com/nsbox/nsbox/pkg/container"
	"golang.org/x/sys/unix"
)

// Syscall abstracts unix.Mount for testability: the executor's ordering and
// error-context behavior can be exercised without touching the real mount
// table.
type Syscall func(source, target, fstype string, flags uintptr, data string) error

// Real is the production Syscall, calling unix.Mount directly.
func Real(source, target, fstype string, flags uintptr, data string) error {
	return unix.Mount(source, target, fstype, flags, data)
}

// Execute runs each operation in plan in order, via do. A mount operation
// must not observe a successor's side effects until the former returns
// success (spec §3 invariant), which Execute honors simply by not starting
// entry i+1 until entry i's mount(2) call has returned.
//
// On the first failure, Execute returns an error built from the failing
// entry's pre-rendered ErrorContext: init cannot recover from a half-built
// mount table, so the caller's only correct response is to abort (spec
// §4.3, §4.4).
func Execute(plan container.MountPlan, do Syscall) error {
	for i, op := range plan {
		if err := do(op.Source, op.Target, op.FsType, op.Flags, op.Data); err != nil {
			if op.ErrorContext != "" {
				return fmt.Errorf("%s: %w", op.ErrorContext, err)
			}
			return fmt.Errorf("mount: entry %d (%s -> %s): %w", i, op.Source, op.Target, err)
		}
	}
	return nil
}
