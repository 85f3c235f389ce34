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

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"

	"github.com/nsbox/nsbox/pkg/ipc"
)

// MessageKind tags the three variants of the init↔runtime protocol
// (spec §3).
type MessageKind uint8

const (
	// KindExec is sent runtime -> init: exec the application.
	KindExec MessageKind = iota
	// KindForked is sent init -> runtime: the payload's pid.
	KindForked
	// KindExit is sent init -> runtime: the payload's terminal status.
	KindExit
)

// Exec is the runtime's imperative to init: exec this program.
type Exec struct {
	Path string
	Args []string
	Env  []string
}

// Validate checks the no-NUL invariant (spec §3) on every string destined
// to cross the later execve boundary.
func (e Exec) Validate() error {
	if err := ValidateString(e.Path); err != nil {
		return err
	}
	if err := ValidateStrings(e.Args); err != nil {
		return err
	}
	return ValidateStrings(e.Env)
}

// Forked notifies the runtime of the payload's pid. Spec invariant: every
// Forked is followed by exactly one Exit with the same pid before another
// Forked may be sent on the same socket.
type Forked struct {
	PID PID
}

// ExitMsg is the terminal message for a given pid. Named distinctly from
// the ExitStatus constructor Exit; Status holds the payload's ExitStatus.
type ExitMsg struct {
	PID    PID
	Status ExitStatus
}

// Message is the tagged union exchanged over the runtime↔init socket. Only
// one of the typed fields is meaningful, selected by Kind; this mirrors a
// Rust enum more directly than a Go interface would while still being
// trivially gob-encodable (gob cannot encode interface values without a
// registry keyed by concrete type, and the wire format here is internal to
// one binary's two stages, so the tagged-struct rendering is the simpler,
// equally-safe choice).
type Message struct {
	Kind   MessageKind
	Exec   Exec
	Forked Forked
	Exit   ExitMsg
}

// NewExec builds a KindExec message.
func NewExec(e Exec) Message { return Message{Kind: KindExec, Exec: e} }

// NewForked builds a KindForked message.
func NewForked(pid PID) Message { return Message{Kind: KindForked, Forked: Forked{PID: pid}} }

// NewExit builds a KindExit message.
func NewExit(pid PID, status ExitStatus) Message {
	return Message{Kind: KindExit, Exit: ExitMsg{PID: pid, Status: status}}
}

// Conn is the gob-framed codec layered over a FramedUnix socket. gob is
// used here, rather than a general-purpose serialization library, because
// this wire format connects exactly two processes forked from the very
// same binary within a single launch: both ends always agree on the Go
// type, which is precisely gob's sweet spot, and it needs nothing a
// cross-language format would add.
type Conn struct {
	f *ipc.FramedUnix
}

// NewConn wraps a FramedUnix socket for typed Message exchange.
func NewConn(f *ipc.FramedUnix) *Conn { return &Conn{f: f} }

// Close closes the underlying socket.
func (c *Conn) Close() error { return c.f.Close() }

// Send encodes and writes one message.
func (c *Conn) Send(m Message) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(m); err != nil {
		return fmt.Errorf("container: encoding message: %w", err)
	}
	return c.f.Send(buf.Bytes())
}

// RecvFDs receives exactly n ancillary file descriptors sent alongside a
// message — used by init to pick up the three stdio fds that accompany a
// KindExec message (the console fd is inherited separately at exec).
func (c *Conn) RecvFDs(n int) ([]*os.File, error) { return c.f.RecvFDs(n) }

// SendFDs sends files as ancillary data on the underlying socket.
func (c *Conn) SendFDs(files []*os.File) error { return c.f.SendFDs(files) }

// Recv reads and decodes one message, returning (nil, nil) on orderly peer
// close at a frame boundary.
func (c *Conn) Recv() (*Message, error) {
	payload, err := c.f.Recv()
	if err != nil {
		return nil, err
	}
	if payload == nil {
		return nil, nil
	}
	var m Message
	if err := gob.NewDecoder(bytes.NewReader(payload)).Decode(&m); err != nil {
		return nil, fmt.Errorf("container: decoding message: %w", err)
	}
	return &m, nil
}
