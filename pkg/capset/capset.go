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

// Package capset prunes the calling process's capability sets down to a
// keep-set, using the real POSIX capabilities implementation rather than
// hand-rolled prctl/capset syscalls (spec §4.4 step 12).
package capset

import (
	"fmt"
	"strings"

	"github.com/syndtr/gocapability/capability"
)

// allCaps is built once: every capability the running kernel's gocapability
// build knows about, used as the universe ParseKeepSet's drop-set is
// computed against.
var allCaps = capability.List()

// ParseKeepSet resolves the descriptor's capability name list (e.g.
// "CAP_NET_BIND_SERVICE" or "net_bind_service", case-insensitively) into
// gocapability's Cap type.
func ParseKeepSet(names []string) ([]capability.Cap, error) {
	byName := make(map[string]capability.Cap, len(allCaps))
	for _, c := range allCaps {
		byName[normalize(c.String())] = c
	}
	out := make([]capability.Cap, 0, len(names))
	for _, n := range names {
		c, ok := byName[normalize(n)]
		if !ok {
			return nil, fmt.Errorf("capset: unknown capability %q", n)
		}
		out = append(out, c)
	}
	return out, nil
}

func normalize(s string) string {
	s = strings.ToLower(s)
	s = strings.TrimPrefix(s, "cap_")
	return s
}

// Drops returns the capabilities in allCaps but not in keep: the set that
// must be removed from the bounding set. Factored out as a pure function so
// the keep-set -> drop-set computation (spec §8 property #3, testable
// property E5) can be unit tested without CAP_SETPCAP.
func Drops(keep []capability.Cap) []capability.Cap {
	keepSet := make(map[capability.Cap]bool, len(keep))
	for _, c := range keep {
		keepSet[c] = true
	}
	var drops []capability.Cap
	for _, c := range allCaps {
		if !keepSet[c] {
			drops = append(drops, c)
		}
	}
	return drops
}

// ResetEffective restores the effective set to every capability the
// running kernel knows about. init calls this right after the uid/gid
// transition, while keep-caps is still in force, so the later bounding-set
// prune in Apply observes the full set rather than whatever setresuid left
// behind.
func ResetEffective() error {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return fmt.Errorf("capset: %w", err)
	}
	if err := caps.Load(); err != nil {
		return fmt.Errorf("capset: loading current capabilities: %w", err)
	}
	caps.Fill(capability.EFFECTIVE)
	if err := caps.Apply(capability.EFFECTIVE); err != nil {
		return fmt.Errorf("capset: resetting effective set: %w", err)
	}
	return nil
}

// Apply prunes the calling process's capability sets to exactly keep:
// every capability not in keep is dropped from the bounding set, and keep
// itself is written into the effective, permitted, inheritable and ambient
// sets (spec §4.4 step 12). It must run after the uid/gid transition;
// initproc.Setup calls it as its last step, after PR_SET_NO_NEW_PRIVS is set.
func Apply(keep []capability.Cap) error {
	caps, err := capability.NewPid2(0)
	if err != nil {
		return fmt.Errorf("capset: %w", err)
	}
	if err := caps.Load(); err != nil {
		return fmt.Errorf("capset: loading current capabilities: %w", err)
	}

	const allSets = capability.CAPS | capability.BOUNDS | capability.AMBS
	caps.Clear(allSets)
	caps.Set(allSets, keep...)

	if err := caps.Apply(allSets); err != nil {
		return fmt.Errorf("capset: applying keep-set: %w", err)
	}
	return nil
}
