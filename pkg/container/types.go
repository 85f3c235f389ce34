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

// Package container holds the data model shared by the launcher and the
// init process: the immutable descriptor handed from runtime to init, the
// mount plan, and the tagged-union messages that cross that boundary.
package container

import (
	"fmt"
	"strings"
)

// PID distinguishes a container/payload process id from an arbitrary int at
// the type level, mirroring the Rust original's newtype (SPEC_FULL §3.E).
type PID int32

// Name identifies a container by name and version, the two fields the
// descriptor's NAME_VAR/VERSION_VAR environment variables are built from.
type Name struct {
	Name    string
	Version string
}

func (n Name) String() string { return fmt.Sprintf("%s:%s", n.Name, n.Version) }

// RlimitValue is one side (soft or hard) of an rlimit pair. A nil value
// means "unspecified", which installs as infinity (spec §8 boundary case).
type RlimitValue = *uint64

// RlimitPair is a resource's (soft, hard) limit.
type RlimitPair struct {
	Soft RlimitValue
	Hard RlimitValue
}

// MountOp is one entry of the container's ordered mount plan. Ordering is
// significant: the executor runs entries in sequence and a later entry may
// assume an earlier one already succeeded (spec §3).
type MountOp struct {
	// Source is the path mounted from. Empty for pseudo-filesystems like
	// tmpfs or proc that take no source.
	Source string
	// Target is the path mounted to, relative to the container root.
	Target string
	// FsType is the filesystem type, e.g. "proc", "tmpfs", "" for a bind
	// mount.
	FsType string
	// Flags is the raw MS_* bitfield passed to mount(2).
	Flags uintptr
	// Data is the filesystem-specific mount data string.
	Data string
	// ErrorContext is the pre-rendered message the executor reports if this
	// entry fails; init has no way to recover so the message must be
	// descriptive enough to diagnose without a second attempt.
	ErrorContext string
}

// MountPlan is the ordered list of mount operations init executes while
// assembling the container's filesystem. Building this list from an image
// manifest is out of scope here (spec §1); it is consumed pre-computed.
type MountPlan []MountOp

// Descriptor is the immutable bundle passed from the launcher to init. It
// never leaves init once consumed: its Capabilities and Seccomp fields are
// secrets in the sense that a process which has dropped privilege must
// never be able to recover them (spec §3 invariants).
type Descriptor struct {
	Identity Name

	// Root is the absolute path init chroots into.
	Root string

	// UID and GID are 0-65535; the zero value is a valid uid/gid, so
	// descriptor construction must not mistake "unset" for "root".
	UID uint32
	GID uint32

	// SupplementaryGIDs is installed via setgroups.
	SupplementaryGIDs []uint32

	// Capabilities is the keep-set: what survives the bounding-set prune.
	Capabilities []string

	// Rlimits maps a resource name (e.g. "NOFILE", the RLIMIT_* name without
	// its prefix) to its pair.
	// A resource absent from the map is left at init's inherited value.
	Rlimits map[string]RlimitPair

	// Seccomp is an optional syscall allow-list; nil means "no filter".
	Seccomp []string

	// Netns is an optional network namespace name, resolved against
	// NetnsRoot (spec §6). Empty means "inherit the runtime's network
	// namespace".
	Netns string

	// NetnsRoot is the platform's well-known netns directory (e.g.
	// /var/run/netns), copied in from the runtime's configuration so init
	// does not need to rediscover platform defaults after exec.
	NetnsRoot string

	// Mounts is the pre-computed, ordered mount plan.
	Mounts MountPlan

	// Console indicates a pty was allocated for this container; when true,
	// init appends CONSOLE_ENV=<fd> to the application's environment.
	Console bool
}

// ValidateString enforces the cross-exec-boundary invariant from spec §3:
// no string destined for exec (a path, an argv entry, an env entry) may
// contain a NUL byte.
func ValidateString(s string) error {
	if strings.IndexByte(s, 0) >= 0 {
		return fmt.Errorf("container: string %q contains a NUL byte", s)
	}
	return nil
}

// ValidateStrings validates every element of ss.
func ValidateStrings(ss []string) error {
	for _, s := range ss {
		if err := ValidateString(s); err != nil {
			return err
		}
	}
	return nil
}
