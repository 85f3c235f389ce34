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

package ipc

import (
	"errors"
	"os"
)

// ErrClosed is returned by Wait when the peer released the checkpoint by
// closing its end rather than writing the sentinel byte.
var ErrClosed = errors.New("ipc: checkpoint peer closed without notifying")

// ErrAlreadyUsed is returned when a checkpoint half is crossed a second
// time. The barrier is one-shot; a second Wait or Notify is a caller bug.
var ErrAlreadyUsed = errors.New("ipc: checkpoint already crossed")

const sentinel byte = 1

// condition is a single one-shot pipe-backed rendezvous: one side blocks on
// read of a single byte, the other signals by writing it (or releases the
// reader with ErrClosed by closing without writing).
type condition struct {
	r *ReadEnd
	w *WriteEnd
	// In a pair built in one process the same condition is one handle's out
	// and the other's in, so its wait and notify sides are tracked apart.
	waited   bool
	notified bool
}

func newCondition() (*condition, error) {
	r, w, err := NewPipe()
	if err != nil {
		return nil, err
	}
	return &condition{r: r, w: w}, nil
}

func (c *condition) wait() error {
	if c.waited {
		return ErrAlreadyUsed
	}
	c.waited = true
	var b [1]byte
	for {
		n, err := c.r.Read(b[:])
		switch {
		case err == ErrWouldBlock:
			continue
		case err != nil:
			return err
		case n == 0:
			return ErrClosed
		default:
			return nil
		}
	}
}

func (c *condition) notify() error {
	if c.notified {
		return ErrAlreadyUsed
	}
	c.notified = true
	_, err := c.w.Write([]byte{sentinel})
	return err
}

// Checkpoint is one handle of a paired two-phase rendezvous (spec §4.2): it
// bundles the notify-half of one pipe with the wait-half of a second, so
// that calling Notify on one side of a pair unblocks the peer's Wait, and
// vice versa. A pair is created together with NewCheckpointPair; each value
// is then moved into a separate process (the notify/wait pipe ends are
// close-on-exec until explicitly donated across an exec, e.g. via
// exec.Cmd.ExtraFiles).
//
//	Runtime side                  Init side
//	── cp_rt.Notify() ─────────►  cp_init.Wait() unblocks
//	cp_rt.Wait() blocks    ◄────── cp_init.Notify() releases
//
// Both Notify and Wait are one-shot: a second call on either returns
// ErrAlreadyUsed. This is the Go-idiomatic rendering of the source's
// role-inverting handle — the inversion is enforced by each underlying
// condition refusing reuse, rather than by the call returning a
// differently-typed handle.
type Checkpoint struct {
	out *condition // this side notifies, peer waits
	in  *condition // peer notifies, this side waits
}

// NewCheckpointPair creates two Checkpoint handles, a and b, wired so that
// a.Notify unblocks b.Wait and b.Notify unblocks a.Wait.
func NewCheckpointPair() (a, b *Checkpoint, err error) {
	c1, err := newCondition() // a -> b
	if err != nil {
		return nil, nil, err
	}
	c2, err := newCondition() // b -> a
	if err != nil {
		c1.r.Close()
		c1.w.Close()
		return nil, nil, err
	}
	a = &Checkpoint{out: c1, in: c2}
	b = &Checkpoint{out: c2, in: c1}
	return a, b, nil
}

// Notify releases the peer's Wait.
func (c *Checkpoint) Notify() error { return c.out.notify() }

// Wait blocks until the peer calls Notify, or returns ErrClosed if the peer
// drops its handle first.
func (c *Checkpoint) Wait() error { return c.in.wait() }

// NotifyFD returns the descriptor backing this handle's outbound half, for
// donation across a clone/exec. The receiving process reconstructs its
// Checkpoint half with FromFDs below.
func (c *Checkpoint) NotifyFD() int { return c.out.w.FD() }

// WaitFD returns the descriptor backing this handle's inbound half.
func (c *Checkpoint) WaitFD() int { return c.in.r.FD() }

// NotifyFile wraps this handle's outbound descriptor as an *os.File for
// donation via exec.Cmd.ExtraFiles, transferring fd ownership to the
// returned file.
func (c *Checkpoint) NotifyFile(name string) *os.File { return c.out.w.File(name) }

// WaitFile wraps this handle's inbound descriptor as an *os.File for
// donation via exec.Cmd.ExtraFiles, transferring fd ownership to the
// returned file.
func (c *Checkpoint) WaitFile(name string) *os.File { return c.in.r.File(name) }

// CloseLocal closes the local ends not needed after the fds have been
// donated to a child: the read end of the outbound pipe and the write end
// of the inbound pipe are never used by this process.
func (c *Checkpoint) CloseLocal() {
	c.out.r.Close()
	c.in.w.Close()
}

// FromFDs reconstructs a Checkpoint handle in a freshly exec'd process from
// the two inherited descriptors (in the order NotifyFD, WaitFD were
// donated).
func FromFDs(notifyFD, waitFD int) *Checkpoint {
	return &Checkpoint{
		out: &condition{w: &WriteEnd{fd: notifyFD}},
		in:  &condition{r: &ReadEnd{fd: waitFD}},
	}
}
