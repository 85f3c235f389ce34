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

package repository

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/nsbox/nsbox/pkg/container"
	"github.com/nsbox/nsbox/pkg/control"
	"github.com/nsbox/nsbox/pkg/launcher"
	"github.com/nsbox/nsbox/pkg/log"
)

// Runtime adapts a Store and a Launcher to control.Runtime, the seam the
// control-plane server depends on (spec §4.13). It is the only place this
// module decides what "start" and "stop" mean operationally; a production
// deployment with real image management would inject something richer in
// its place.
type Runtime struct {
	store *Store
	l     *launcher.Launcher
}

// NewRuntime builds a control.Runtime backed by store for manifest/rootfs
// resolution and l for process lifecycle.
func NewRuntime(store *Store, l *launcher.Launcher) *Runtime {
	return &Runtime{store: store, l: l}
}

// Containers reports every process the launcher is currently tracking.
func (r *Runtime) Containers() []control.ContainerInfo {
	procs := r.l.List()
	out := make([]control.ContainerInfo, 0, len(procs))
	for _, p := range procs {
		out = append(out, control.ContainerInfo{Name: p.Name(), State: p.State().String()})
	}
	return out
}

// Repositories lists the configured repository ids and their paths.
func (r *Runtime) Repositories() map[string]control.RepositoryInfo {
	repos, err := r.store.Repositories()
	if err != nil {
		log.Errorf("repository: listing repositories: %v", err)
		return map[string]control.RepositoryInfo{}
	}
	out := make(map[string]control.RepositoryInfo, len(repos))
	for id, path := range repos {
		out[id] = control.RepositoryInfo{Path: path}
	}
	return out
}

// Start resolves name against the store, creates its process and spawns it,
// failing the request synchronously if any step fails. Spawn waits for init
// to acknowledge its checkpoint, so after a successful Start the container
// is already Running.
func (r *Runtime) Start(name container.Name) error {
	if _, ok := r.l.Lookup(name.String()); ok {
		return fmt.Errorf("repository: %s is already running", name)
	}

	entry, err := r.store.Resolve(name)
	if err != nil {
		return err
	}

	p, err := r.l.Create(launcher.CreateArgs{
		Name:     name,
		Root:     entry.Dir,
		Manifest: entry.Manifest,
	})
	if err != nil {
		return fmt.Errorf("repository: creating %s: %w", name, err)
	}
	if err := p.Spawn(); err != nil {
		return fmt.Errorf("repository: spawning %s: %w", name, err)
	}
	return nil
}

// Stop sends SIGTERM to a running container's process group. It is the
// caller's responsibility to wait for the resulting Exited notification;
// Stop itself does not block on termination (spec §4.13, §5).
func (r *Runtime) Stop(name container.Name) error {
	p, ok := r.l.Lookup(name.String())
	if !ok {
		return fmt.Errorf("repository: %s is not running", name)
	}
	return p.Kill(unix.SIGTERM)
}
