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

package control

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"net"
)

// ErrProtocol mirrors pkg/ipc's FramedUnix error for a malformed frame; the
// control-plane transport is a TCP byte stream rather than a
// SOCK_SEQPACKET socket (spec §6), so it needs its own length-prefix
// framing rather than ipc.FramedUnix's datagram-oriented one.
var ErrProtocol = errors.New("control: protocol error")

const maxFrame = 1 << 20

// framedStream is a length-framed net.Conn: each message is a 4-byte
// big-endian length prefix followed by that many bytes.
type framedStream struct {
	conn net.Conn
}

func newFramedStream(conn net.Conn) *framedStream { return &framedStream{conn: conn} }

func (f *framedStream) Close() error { return f.conn.Close() }

func (f *framedStream) send(payload []byte) error {
	var hdr [4]byte
	binary.BigEndian.PutUint32(hdr[:], uint32(len(payload)))
	if _, err := f.conn.Write(hdr[:]); err != nil {
		return fmt.Errorf("control: send: %w", err)
	}
	if _, err := f.conn.Write(payload); err != nil {
		return fmt.Errorf("control: send: %w", err)
	}
	return nil
}

// recv returns (nil, nil) on orderly EOF at a frame boundary, matching
// FramedUnix's contract.
func (f *framedStream) recv() ([]byte, error) {
	var hdr [4]byte
	if _, err := io.ReadFull(f.conn, hdr[:]); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("control: recv: %w", err)
	}
	n := binary.BigEndian.Uint32(hdr[:])
	if n > maxFrame {
		return nil, fmt.Errorf("%w: frame of %d bytes exceeds limit", ErrProtocol, n)
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(f.conn, buf); err != nil {
		return nil, fmt.Errorf("control: recv: %w", err)
	}
	return buf, nil
}
