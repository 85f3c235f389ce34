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
	"fmt"
	"os"
	"unsafe"

	"github.com/nsbox/nsbox/pkg/capset"
	"github.com/nsbox/nsbox/pkg/container"
	"github.com/nsbox/nsbox/pkg/log"
	"github.com/nsbox/nsbox/pkg/mount"
	"github.com/nsbox/nsbox/pkg/netns"
	"github.com/nsbox/nsbox/pkg/rlimit"
	"golang.org/x/sys/unix"
)

const maxProcessName = 15 // TASK_COMM_LEN - 1

// setProcessName truncates name to the kernel's TASK_COMM_LEN and installs
// it via PR_SET_NAME.
func setProcessName(name string) error {
	if len(name) > maxProcessName {
		name = name[:maxProcessName]
	}
	buf := append([]byte(name), 0)
	return unix.Prctl(unix.PR_SET_NAME, uintptr(unsafe.Pointer(&buf[0])), 0, 0, 0)
}

// Setup runs init's privileged construction sequence (spec §4.4 steps
// 1-12). Every failure is fatal: init has no partial-sandbox recovery
// path, so the caller is expected to log.Fatalf / os.Exit on error rather
// than attempt to continue.
func Setup(d *container.Descriptor) error {
	if err := unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("initproc: becoming subreaper: %w", err)
	}

	if err := setProcessName("init-" + d.Identity.Name); err != nil {
		return fmt.Errorf("initproc: setting process name: %w", err)
	}

	log.Debugf("setting session id")
	if _, err := unix.Setsid(); err != nil {
		return fmt.Errorf("initproc: setsid: %w", err)
	}

	if err := netns.Enter(d.NetnsRoot, d.Netns); err != nil {
		return fmt.Errorf("initproc: entering network namespace: %w", err)
	}

	log.Debugf("entering mount namespace")
	if err := unix.Unshare(unix.CLONE_NEWNS); err != nil {
		return fmt.Errorf("initproc: unshare CLONE_NEWNS: %w", err)
	}

	if err := mount.Execute(d.Mounts, mount.Real); err != nil {
		return fmt.Errorf("initproc: %w", err)
	}

	log.Debugf("chrooting to %s", d.Root)
	if err := unix.Chroot(d.Root); err != nil {
		return fmt.Errorf("initproc: chroot: %w", err)
	}
	if err := os.Chdir("/"); err != nil {
		return fmt.Errorf("initproc: chdir /: %w", err)
	}

	if err := setIDs(d.UID, d.GID); err != nil {
		return fmt.Errorf("initproc: uid/gid transition: %w", err)
	}

	if err := setGroups(d.SupplementaryGIDs); err != nil {
		return fmt.Errorf("initproc: supplementary groups: %w", err)
	}

	if err := rlimit.Apply(d.Rlimits); err != nil {
		return fmt.Errorf("initproc: %w", err)
	}

	log.Debugf("setting no new privs")
	if err := unix.Prctl(unix.PR_SET_NO_NEW_PRIVS, 1, 0, 0, 0); err != nil {
		return fmt.Errorf("initproc: PR_SET_NO_NEW_PRIVS: %w", err)
	}

	keep, err := capset.ParseKeepSet(d.Capabilities)
	if err != nil {
		return fmt.Errorf("initproc: %w", err)
	}
	if err := capset.Apply(keep); err != nil {
		return fmt.Errorf("initproc: %w", err)
	}

	return nil
}

// setIDs performs the uid/gid transition (spec §4.4 step 8): if still
// privileged, keep-caps is set across the transition so the reset-effective
// step below can restore the full set before the bounding-set prune in
// Setup narrows it back down to the descriptor's keep-set.
func setIDs(uid, gid uint32) error {
	privileged := unix.Geteuid() == 0

	if privileged {
		if err := unix.Prctl(unix.PR_SET_KEEPCAPS, 1, 0, 0, 0); err != nil {
			return fmt.Errorf("setting keep-caps: %w", err)
		}
	}

	log.Debugf("setting resgid %d", gid)
	if err := unix.Setresgid(int(gid), int(gid), int(gid)); err != nil {
		return fmt.Errorf("setresgid: %w", err)
	}

	log.Debugf("setting resuid %d", uid)
	if err := unix.Setresuid(int(uid), int(uid), int(uid)); err != nil {
		return fmt.Errorf("setresuid: %w", err)
	}

	if privileged {
		if err := capset.ResetEffective(); err != nil {
			return err
		}
		if err := unix.Prctl(unix.PR_SET_KEEPCAPS, 0, 0, 0, 0); err != nil {
			return fmt.Errorf("clearing keep-caps: %w", err)
		}
	}

	return nil
}

func setGroups(gids []uint32) error {
	log.Debugf("setting groups %v", gids)
	ids := make([]int, len(gids))
	for i, g := range gids {
		ids[i] = int(g)
	}
	return unix.Setgroups(ids)
}
