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

// Package initproc implements the privileged setup-and-supervise process
// that runs inside the namespaces the launcher clones: becoming a
// subreaper, building the mount table, dropping privilege, and forking and
// reaping the application (spec §4.4).
package initproc

// The launcher donates four descriptors across exec (a fifth, ConsoleFD, when
// a console is attached), in this fixed order, via exec.Cmd.ExtraFiles;
// cmd/nsbox-init reads them by number rather than by name since it has no
// other way to discover them after exec.
const (
	// DescriptorFD carries a gob-encoded container.Descriptor, written by
	// the launcher and read once at startup.
	DescriptorFD = 3
	// CheckpointNotifyFD is this process's half of the checkpoint used to
	// acknowledge that setup finished (spec §4.2, §4.5).
	CheckpointNotifyFD = 4
	// CheckpointWaitFD is this process's half of the checkpoint that
	// blocks until the launcher calls spawn.
	CheckpointWaitFD = 5
	// ConnFD is the runtime↔init message socket (spec §4.4 step 13).
	ConnFD = 6
	// ConsoleFD carries the container's pty slave, present only when the
	// descriptor's Console field is true; the fd number itself is what gets
	// reported to the application via container.EnvConsole, since exec
	// preserves fd numbers across the boundary (spec §4.5).
	ConsoleFD = 7
)
