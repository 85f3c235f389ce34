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

// Package control implements the supervisor control plane (spec §4.6,
// §6): a framed request/response/notification protocol, multiplexed over
// a single TCP connection with single-flight request semantics.
package control

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"net"
	"sync"

	"github.com/nsbox/nsbox/pkg/container"
)

// PayloadKind tags the three variants of the control-plane message
// envelope (spec §3).
type PayloadKind uint8

const (
	KindRequest PayloadKind = iota
	KindResponse
	KindNotification
)

// RequestKind tags the request variants the runtime accepts.
type RequestKind uint8

const (
	ReqContainers RequestKind = iota
	ReqRepositories
	ReqStart
	ReqStop
)

// Request is one outer-API call, named by the control-plane client
// convenience wrappers (spec §4.6).
type Request struct {
	Kind RequestKind
	// Name is meaningful for ReqStart and ReqStop.
	Name container.Name
}

// ResponseKind tags the response variants the runtime returns.
type ResponseKind uint8

const (
	RespOk ResponseKind = iota
	RespContainers
	RespRepositories
	RespErr
)

// ContainerInfo is one entry of a Containers response.
type ContainerInfo struct {
	Name  container.Name
	State string
}

// RepositoryInfo is one entry of a Repositories response, keyed by
// repository id in the response map.
type RepositoryInfo struct {
	Path string
}

// Response answers a Request. Kind selects which field is meaningful,
// following the same tagged-struct rendering as container.Message (spec
// §3's Response variants: Ok, Containers, Repositories, Err).
type Response struct {
	Kind         ResponseKind
	Containers   []ContainerInfo
	Repositories map[string]RepositoryInfo
	Err          string
}

// NotificationKind tags the asynchronous lifecycle events pushed to
// clients outside the request/response cycle.
type NotificationKind uint8

const (
	NotifyStart NotificationKind = iota
	NotifyStop
	NotifyExit
	NotifyInstall
	NotifyUninstall
)

// Notification is one asynchronous lifecycle event (spec §3, §5).
type Notification struct {
	Kind   NotificationKind
	Name   container.Name
	Status container.ExitStatus // meaningful iff Kind == NotifyExit
}

// Payload is the framed envelope carried over the control-plane socket:
// exactly one of Request, Response, Notification is meaningful, selected
// by Kind. Correlating a Response to its Request is positional, not
// tagged: single-flight semantics mean there is never more than one
// request outstanding to correlate against (spec §5).
type Payload struct {
	Kind         PayloadKind
	Request      Request
	Response     Response
	Notification Notification
}

// Conn is the gob-framed codec layered over the control plane's TCP
// stream (spec §6). A connection's response and notification writers both
// send on the same Conn concurrently (spec §4.6, §5), so Send serializes
// with sendMu rather than letting two frames interleave at the syscall
// level.
type Conn struct {
	f *framedStream

	sendMu sync.Mutex
}

// NewConn wraps a connected net.Conn (typically a *net.TCPConn) for typed
// Payload exchange.
func NewConn(c net.Conn) *Conn { return &Conn{f: newFramedStream(c)} }

// Close closes the underlying connection.
func (c *Conn) Close() error { return c.f.Close() }

// Send encodes and writes one payload. Safe for concurrent use.
func (c *Conn) Send(p Payload) error {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(p); err != nil {
		return fmt.Errorf("control: encoding payload: %w", err)
	}
	c.sendMu.Lock()
	defer c.sendMu.Unlock()
	return c.f.send(buf.Bytes())
}

// Recv reads and decodes one payload, returning (nil, nil) on orderly peer
// close at a frame boundary.
func (c *Conn) Recv() (*Payload, error) {
	raw, err := c.f.recv()
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, nil
	}
	var p Payload
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&p); err != nil {
		return nil, fmt.Errorf("control: decoding payload: %w", err)
	}
	return &p, nil
}
