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

	"github.com/nsbox/nsbox/pkg/container"
	"github.com/nsbox/nsbox/pkg/log"
	"github.com/nsbox/nsbox/pkg/seccompfilter"
	"golang.org/x/sys/unix"
)

// Run enters the message loop (spec §4.4 step 13). It returns only once the
// payload has been forked, execed, reaped and reported, or the runtime
// disconnected without ever sending Exec — both are ordinary termination,
// not errors, matching the original's "exit(0)" in both cases.
func Run(d *container.Descriptor, conn *container.Conn, consoleFD *os.File) error {
	msg, err := conn.Recv()
	if err != nil {
		return fmt.Errorf("initproc: receiving message: %w", err)
	}
	if msg == nil {
		log.Debugf("runtime disconnected before sending exec, exiting")
		return nil
	}
	if msg.Kind != container.KindExec {
		return fmt.Errorf("initproc: expected exec message, got kind %d", msg.Kind)
	}
	return handleExec(d, conn, msg.Exec, consoleFD)
}

// handleExec implements the fork/exec/waitpid sequence run once the runtime
// hands init the application's path, args and env (spec §4.4, the Exec arm).
func handleExec(d *container.Descriptor, conn *container.Conn, e container.Exec, consoleFD *os.File) error {
	if err := e.Validate(); err != nil {
		return fmt.Errorf("initproc: %w", err)
	}

	// The trampoline has since exited (spec §4.5's reparenting note), so
	// init's own parent is now the runtime; tie init's death to it.
	if err := unix.Prctl(unix.PR_SET_PDEATHSIG, uintptr(unix.SIGKILL), 0, 0, 0); err != nil {
		return fmt.Errorf("initproc: PR_SET_PDEATHSIG: %w", err)
	}

	env := e.Env
	if d.Console && consoleFD != nil {
		env = append(append([]string{}, env...), fmt.Sprintf("%s=%d", container.EnvConsole, consoleFD.Fd()))
	}

	stdio, err := conn.RecvFDs(3)
	if err != nil {
		return fmt.Errorf("initproc: receiving stdio fds: %w", err)
	}

	pid, isChild, err := rawFork()
	if err != nil {
		closeAll(stdio)
		return fmt.Errorf("initproc: forking application: %w", err)
	}

	if isChild {
		runPayloadChild(e.Path, e.Args, env, stdio, d.Seccomp)
		// runPayloadChild never returns: every path through it either execs
		// or calls os.Exit.
		panic("unreachable")
	}

	closeAll(stdio)
	if consoleFD != nil {
		consoleFD.Close()
	}

	if err := conn.Send(container.NewForked(container.PID(pid))); err != nil {
		return fmt.Errorf("initproc: sending forked notice: %w", err)
	}

	status := reap(pid)
	log.Debugf("application pid %d terminated: %s", pid, status)
	if err := conn.Send(container.NewExit(container.PID(pid), status)); err != nil {
		return fmt.Errorf("initproc: sending exit notice: %w", err)
	}
	return nil
}

// runPayloadChild is the forked child's entire body, from just after
// rawFork's child branch through to execve. Any failure here is fatal and
// aborts the child, since there is no way to report it back: stdout/stderr
// have not yet been dup'd onto the application's fds, and the original
// message socket belongs to init, not this process (spec §4.4).
func runPayloadChild(path string, args, env []string, stdio []*os.File, allow []string) {
	if err := unix.Prctl(unix.PR_SET_PDEATHSIG, uintptr(unix.SIGKILL), 0, 0, 0); err != nil {
		os.Exit(127)
	}

	for i, f := range stdio {
		if err := unix.Dup2(int(f.Fd()), i); err != nil {
			os.Exit(127)
		}
	}
	closeAll(stdio)

	// The seccomp filter is installed last: every syscall needed to get
	// here (dup2, close) must already be behind us, since the filter's
	// allow-list is the application's, not init's.
	if err := seccompfilter.Install(allow); err != nil {
		os.Exit(127)
	}

	if err := unix.Exec(path, args, env); err != nil {
		os.Exit(127)
	}
}

func closeAll(files []*os.File) {
	for _, f := range files {
		f.Close()
	}
}

// reap blocks until pid has a terminal wait status, translating the
// intermediate Stopped/Continued/EINTR cases into a retry loop exactly as
// spec §4.4 describes.
func reap(pid int) container.ExitStatus {
	var ws unix.WaitStatus
	for {
		_, err := unix.Wait4(pid, &ws, unix.WUNTRACED|unix.WCONTINUED, nil)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			log.Errorf("waitpid(%d): %v", pid, err)
			continue
		}
		switch {
		case ws.Exited():
			return container.Exit(uint8(ws.ExitStatus()))
		case ws.Signaled():
			return container.Signal(uint8(ws.Signal()))
		case ws.Stopped(), ws.Continued():
			continue
		}
	}
}
