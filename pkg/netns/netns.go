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

// Package netns attaches the calling thread to a named network namespace
// resolved against the platform's well-known netns directory (spec §6).
package netns

import (
	"path/filepath"

	"github.com/nsbox/nsbox/pkg/log"
	"github.com/vishvananda/netns"
)

// Enter attaches the calling OS thread to the namespace named name, looked
// up under root (config.NetnsRoot). An empty name is a no-op: the caller
// stays in its inherited network namespace. A name that does not resolve
// to an existing handle is logged and otherwise ignored (spec §8 scenario
// E4) rather than treated as fatal, since a missing netns is an
// operator-configuration mismatch init has no way to repair.
func Enter(root, name string) error {
	if name == "" {
		return nil
	}
	path := filepath.Join(root, name)
	handle, err := netns.GetFromPath(path)
	if err != nil {
		log.Warningf("attaching to network namespace %q at %s: %v", name, path, err)
		return nil
	}
	defer handle.Close()

	log.Debugf("attaching to network namespace %q", name)
	if err := netns.Set(handle); err != nil {
		return err
	}
	return nil
}
