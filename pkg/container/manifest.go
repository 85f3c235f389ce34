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

// Manifest is the subset of a container's image manifest the launcher
// consumes; the schema at large, and how it is produced from an image, are
// out of scope here (spec §1) — this is exactly the fields §4.5's
// argv/env/groups resolution rules name.
type Manifest struct {
	// InitPath is the path, inside the container root, of the program init
	// execs. A manifest with no InitPath describes a resource-only
	// container and is rejected by Create.
	InitPath string `toml:"init_path"`

	// Args are the manifest-provided arguments, used unless a per-call
	// override replaces them wholesale.
	Args []string `toml:"args"`

	// Env is the manifest-provided environment, merged with per-call
	// overrides key by key (spec §4.5).
	Env map[string]string `toml:"env"`

	// Groups are supplementary group names, resolved to gids at Create
	// time; an unknown name is a warning, not a failure (spec §4.5,
	// grounded on the original's groups() lookup).
	Groups []string `toml:"groups"`

	UID uint32 `toml:"uid"`
	GID uint32 `toml:"gid"`

	Capabilities []string              `toml:"capabilities"`
	Rlimits      map[string]RlimitPair `toml:"rlimits"`
	Seccomp      []string              `toml:"seccomp"`
	Mounts       MountPlan             `toml:"mounts"`
	Netns        string                `toml:"netns"`
	Console      bool                  `toml:"console"`
}
