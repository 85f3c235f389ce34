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

package launcher

import (
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"github.com/nsbox/nsbox/pkg/container"
	"github.com/nsbox/nsbox/pkg/eventbus"
	"github.com/nsbox/nsbox/pkg/ipc"
	"github.com/nsbox/nsbox/pkg/log"
	"golang.org/x/sys/unix"
)

// State is a Process's lifecycle stage (spec §3).
type State int

const (
	// Created means init has been spawned but the application has not yet
	// been exec'd.
	Created State = iota
	// Running means spawn released init's checkpoint and the application
	// has been handed off.
	Running
	// Exited means the wait task observed the application's terminal
	// status.
	Exited
)

func (s State) String() string {
	switch s {
	case Created:
		return "created"
	case Running:
		return "running"
	case Exited:
		return "exited"
	default:
		return "unknown"
	}
}

// Process is one launched container: the trampoline/init process the
// launcher cloned, the checkpoint used to release it, and the control
// socket used to command and observe it.
type Process struct {
	name container.Name
	key  string
	bus  *eventbus.Bus
	l    *Launcher

	cmd *exec.Cmd
	pid int

	cp   *ipc.Checkpoint // runtime's half
	conn *container.Conn // runtime's half of the init control socket

	argv []string
	env  []string

	mu        sync.Mutex
	state     State
	appPID    container.PID
	status    container.ExitStatus
	statusSet bool
	done      chan struct{}
}

// Name returns the container identity this process was created for.
func (p *Process) Name() container.Name { return p.name }

// State returns the process's current lifecycle stage.
func (p *Process) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// PID returns the root-namespace pid of the cloned trampoline/init
// process — the same number a kill(-pid, ...) call targets.
func (p *Process) PID() int { return p.pid }

// kill sends signal to the process group the launcher created for this
// container. ESRCH is non-fatal: the process is already reaped (spec
// §4.5).
func (p *Process) kill(signal unix.Signal) error {
	if err := unix.Kill(-p.pid, signal); err != nil {
		if errors.Is(err, unix.ESRCH) {
			return nil
		}
		return fmt.Errorf("launcher: kill(-%d, %v): %w", p.pid, signal, err)
	}
	return nil
}

// Kill is kill's exported form, used by the control plane's stop operation.
func (p *Process) Kill(signal unix.Signal) error { return p.kill(signal) }

// Wait blocks until the wait task has observed the application's terminal
// status, returning the same status delivered on the event bus.
func (p *Process) Wait() container.ExitStatus {
	<-p.done
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

// Destroy releases the resources Create allocated that Wait's completion
// does not already release: the control socket. The trampoline's cmd handle
// is reaped by the watch goroutine, not here.
// It is safe to call once the process has exited; calling it earlier
// aborts cooperation with a still-running container.
func (p *Process) Destroy() error {
	if p.conn != nil {
		p.conn.Close()
	}
	return nil
}

func (p *Process) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Process) setExit(pid container.PID, status container.ExitStatus) {
	p.mu.Lock()
	p.appPID = pid
	p.status = status
	p.statusSet = true
	p.state = Exited
	p.mu.Unlock()
	close(p.done)
}

// watch runs as the process's dedicated goroutine: it reads exactly the two
// messages init ever sends over the control socket (Forked, then Exit),
// publishing the Exited lifecycle event (Started is published by Spawn), and
// reaps the
// trampoline/init pid the runtime directly cloned so it never becomes a
// zombie (its exit status is not the container's — that comes from init's
// Exit message instead).
func (p *Process) watch() {
	defer p.l.forget(p.key)

	clog := log.WithContainer(p.name.String())

	go func() {
		if err := p.cmd.Wait(); err != nil {
			log.WithPID(int32(p.pid)).Debugf("container %s: trampoline reap: %v", p.name, err)
		}
	}()

	forked, err := p.conn.Recv()
	if err != nil || forked == nil || forked.Kind != container.KindForked {
		clog.Errorf("expected forked notice, got err=%v msg=%v", err, forked)
		p.setExit(0, container.Signal(uint8(unix.SIGKILL)))
		p.bus.Publish(eventbus.Event{Kind: eventbus.Exited, Container: p.name, Status: p.status})
		return
	}

	exitMsg, err := p.conn.Recv()
	if err != nil || exitMsg == nil || exitMsg.Kind != container.KindExit {
		clog.Errorf("expected exit notice, got err=%v msg=%v", err, exitMsg)
		p.setExit(forked.Forked.PID, container.Signal(uint8(unix.SIGKILL)))
		p.bus.Publish(eventbus.Event{Kind: eventbus.Exited, Container: p.name, Status: p.status})
		return
	}

	log.WithPID(int32(exitMsg.Exit.PID)).Debugf("container %s: exited: %v", p.name, exitMsg.Exit.Status)
	p.setExit(exitMsg.Exit.PID, exitMsg.Exit.Status)
	p.bus.Publish(eventbus.Event{Kind: eventbus.Exited, Container: p.name, Status: exitMsg.Exit.Status})
}
