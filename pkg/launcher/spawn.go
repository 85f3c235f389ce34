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
	"context"
	"fmt"
	"time"

	"github.com/nsbox/nsbox/pkg/container"
	"github.com/nsbox/nsbox/pkg/eventbus"
	"golang.org/x/sys/unix"
)

// spawnTimeout bounds how long Spawn waits for init's checkpoint
// acknowledgement before killing the process group (spec §4.5) when the
// launcher's configuration sets no SpawnTimeout.
const spawnTimeout = 5 * time.Second

// Spawn releases init's checkpoint, letting it run steps 1-12 of its setup
// sequence, then sends the Exec message once init acknowledges. If init
// fails to acknowledge within the configured SpawnTimeout (spawnTimeout if
// unset), the whole process group is
// killed and the Process is left in its Created state permanently (the
// caller should treat this exactly like a Create failure).
func (p *Process) Spawn() error {
	if err := p.cp.Notify(); err != nil {
		return fmt.Errorf("launcher: releasing checkpoint: %w", err)
	}

	ackErr := make(chan error, 1)
	go func() { ackErr <- p.cp.Wait() }()

	timeout := spawnTimeout
	if t := p.l.cfg.SpawnTimeout; t > 0 {
		timeout = t
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	select {
	case err := <-ackErr:
		if err != nil {
			return fmt.Errorf("launcher: init setup failed: %w", err)
		}
	case <-ctx.Done():
		if killErr := p.kill(unix.SIGKILL); killErr != nil {
			return fmt.Errorf("launcher: init did not acknowledge within %s, kill failed: %w", timeout, killErr)
		}
		return fmt.Errorf("launcher: init did not acknowledge within %s, process group killed", timeout)
	}

	if err := p.conn.Send(container.NewExec(container.Exec{
		Path: p.argv[0],
		Args: p.argv,
		Env:  p.env,
	})); err != nil {
		return fmt.Errorf("launcher: sending exec message: %w", err)
	}

	p.setState(Running)
	p.bus.Publish(eventbus.Event{Kind: eventbus.Started, Container: p.name})
	return nil
}
