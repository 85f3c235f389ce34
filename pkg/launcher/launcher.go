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

// Package launcher implements the runtime side of the launch pipeline
// (spec §4.5): it builds a container's descriptor, clones the trampoline
// into a fresh PID+mount namespace, and exposes the Process handle the
// control plane drives (spawn, kill, wait, destroy).
package launcher

import (
	"sync"

	"github.com/nsbox/nsbox/pkg/config"
	"github.com/nsbox/nsbox/pkg/eventbus"
)

// Launcher creates Processes. One Launcher is created at runtime startup
// and lives for the runtime's lifetime (spec §3 lifecycles).
type Launcher struct {
	cfg config.Config
	bus *eventbus.Bus

	// initPath is the absolute path to the nsbox-init binary exec'd into
	// the freshly cloned namespace.
	initPath string

	mu        sync.Mutex
	processes map[string]*Process
}

// New creates a Launcher. initPath is the nsbox-init binary's path, as seen
// by the runtime process (not the container root).
func New(cfg config.Config, bus *eventbus.Bus, initPath string) *Launcher {
	return &Launcher{
		cfg:       cfg,
		bus:       bus,
		initPath:  initPath,
		processes: make(map[string]*Process),
	}
}

// Lookup returns the Process for a running container, if any.
func (l *Launcher) Lookup(key string) (*Process, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	p, ok := l.processes[key]
	return p, ok
}

// List returns every Process the launcher currently knows about, in no
// particular order.
func (l *Launcher) List() []*Process {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*Process, 0, len(l.processes))
	for _, p := range l.processes {
		out = append(out, p)
	}
	return out
}

func (l *Launcher) register(key string, p *Process) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.processes[key] = p
}

func (l *Launcher) forget(key string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.processes, key)
}
