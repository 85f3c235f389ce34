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

// Package rlimit translates a descriptor's named resource limits into
// setrlimit(2) calls.
package rlimit

import (
	"fmt"

	"github.com/nsbox/nsbox/pkg/container"
	"golang.org/x/sys/unix"
)

// resources maps the descriptor's resource names to their RLIMIT_*
// constant. Names are the kernel's own RLIMIT_* identifiers with the RLIMIT_
// prefix dropped, so a descriptor is easy to author by hand.
var resources = map[string]int{
	"AS":         unix.RLIMIT_AS,
	"CORE":       unix.RLIMIT_CORE,
	"CPU":        unix.RLIMIT_CPU,
	"DATA":       unix.RLIMIT_DATA,
	"FSIZE":      unix.RLIMIT_FSIZE,
	"LOCKS":      unix.RLIMIT_LOCKS,
	"MEMLOCK":    unix.RLIMIT_MEMLOCK,
	"MSGQUEUE":   unix.RLIMIT_MSGQUEUE,
	"NICE":       unix.RLIMIT_NICE,
	"NOFILE":     unix.RLIMIT_NOFILE,
	"NPROC":      unix.RLIMIT_NPROC,
	"RSS":        unix.RLIMIT_RSS,
	"RTPRIO":     unix.RLIMIT_RTPRIO,
	"RTTIME":     unix.RLIMIT_RTTIME,
	"SIGPENDING": unix.RLIMIT_SIGPENDING,
	"STACK":      unix.RLIMIT_STACK,
}

// value turns a possibly-nil RlimitValue into its wire value: unspecified
// installs as RLIM_INFINITY (spec §8 boundary case).
func value(v container.RlimitValue) uint64 {
	if v == nil {
		return unix.RLIM_INFINITY
	}
	return *v
}

// Apply installs every (name, pair) in limits via setrlimit(2). A name not
// present in resources is a descriptor-construction bug, not a runtime
// condition to recover from, so it is reported rather than silently
// skipped.
func Apply(limits map[string]container.RlimitPair) error {
	for name, pair := range limits {
		resource, ok := resources[name]
		if !ok {
			return fmt.Errorf("rlimit: unknown resource %q", name)
		}
		rl := unix.Rlimit{Cur: value(pair.Soft), Max: value(pair.Hard)}
		if err := unix.Setrlimit(resource, &rl); err != nil {
			return fmt.Errorf("rlimit: setting %s: %w", name, err)
		}
	}
	return nil
}
