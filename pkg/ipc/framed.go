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
	"encoding/binary"
	"errors"
	"fmt"
	"net"
	"os"

	"golang.org/x/sys/unix"
)

// ErrProtocol is surfaced for a malformed frame: one whose declared length
// does not match the bytes actually delivered in the datagram, or one
// carrying the wrong number of ancillary file descriptors.
var ErrProtocol = errors.New("ipc: protocol error")

// maxFrame bounds a single message; the runtime↔init protocol never sends
// anything close to this, it just keeps a corrupt peer from forcing an
// unbounded allocation.
const maxFrame = 1 << 20

// FramedUnix is a length-framed SOCK_SEQPACKET (or SOCK_STREAM) Unix socket
// able to carry exactly one message per frame, optionally with ancillary
// file descriptors (spec §4.1, §6).
type FramedUnix struct {
	conn *net.UnixConn
}

// NewFramedUnix wraps an already-connected Unix socket.
func NewFramedUnix(conn *net.UnixConn) *FramedUnix {
	return &FramedUnix{conn: conn}
}

// Close closes the underlying socket.
func (f *FramedUnix) Close() error { return f.conn.Close() }

// Send encodes one frame (a 4-byte big-endian length prefix followed by
// payload) and writes it atomically in a single WriteMsgUnix call, so a
// seqpacket peer always sees exactly one datagram per message.
func (f *FramedUnix) Send(payload []byte) error {
	buf := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(buf, uint32(len(payload)))
	copy(buf[4:], payload)
	n, _, err := f.conn.WriteMsgUnix(buf, nil, nil)
	if err != nil {
		return fmt.Errorf("ipc: send: %w", err)
	}
	if n != len(buf) {
		return fmt.Errorf("%w: short write (%d of %d bytes)", ErrProtocol, n, len(buf))
	}
	return nil
}

// Recv reads one frame and returns its payload. It returns (nil, nil) on an
// orderly peer close observed at a frame boundary — the same boundary
// contract as spec §4.1's recv.
func (f *FramedUnix) Recv() ([]byte, error) {
	buf := make([]byte, maxFrame)
	n, _, flags, _, err := f.conn.ReadMsgUnix(buf, nil)
	if err != nil {
		return nil, fmt.Errorf("ipc: recv: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	if flags&unix.MSG_TRUNC != 0 {
		return nil, fmt.Errorf("%w: frame exceeds %d bytes", ErrProtocol, maxFrame)
	}
	if n < 4 {
		return nil, fmt.Errorf("%w: short frame (%d bytes)", ErrProtocol, n)
	}
	want := int(binary.BigEndian.Uint32(buf[:4]))
	got := n - 4
	if want != got {
		return nil, fmt.Errorf("%w: declared length %d, got %d", ErrProtocol, want, got)
	}
	payload := make([]byte, got)
	copy(payload, buf[4:n])
	return payload, nil
}

// RecvFDs receives exactly n ancillary file descriptors carried by a single
// message. Fewer or more fds in the control message is a protocol error.
func (f *FramedUnix) RecvFDs(n int) ([]*os.File, error) {
	buf := make([]byte, 4)
	oob := make([]byte, unix.CmsgSpace(n*4))
	_, oobn, _, _, err := f.conn.ReadMsgUnix(buf, oob)
	if err != nil {
		return nil, fmt.Errorf("ipc: recvfds: %w", err)
	}
	scms, err := unix.ParseSocketControlMessage(oob[:oobn])
	if err != nil {
		return nil, fmt.Errorf("ipc: recvfds: parsing control message: %w", err)
	}
	var fds []int
	for _, scm := range scms {
		got, err := unix.ParseUnixRights(&scm)
		if err != nil {
			return nil, fmt.Errorf("ipc: recvfds: %w", err)
		}
		fds = append(fds, got...)
	}
	if len(fds) != n {
		for _, fd := range fds {
			unix.Close(fd)
		}
		return nil, fmt.Errorf("%w: expected %d fds, got %d", ErrProtocol, n, len(fds))
	}
	files := make([]*os.File, n)
	for i, fd := range fds {
		files[i] = os.NewFile(uintptr(fd), fmt.Sprintf("recvfd%d", i))
	}
	return files, nil
}

// SendFDs sends the given files as ancillary data attached to a single
// (possibly empty) message, matching the peer's RecvFDs(len(files)).
func (f *FramedUnix) SendFDs(files []*os.File) error {
	fds := make([]int, len(files))
	for i, fl := range files {
		fds[i] = int(fl.Fd())
	}
	oob := unix.UnixRights(fds...)
	_, _, err := f.conn.WriteMsgUnix([]byte{}, oob, nil)
	if err != nil {
		return fmt.Errorf("ipc: sendfds: %w", err)
	}
	return nil
}

// Socketpair creates a connected pair of SOCK_SEQPACKET Unix sockets,
// returning each end as a FramedUnix. One end is kept by the runtime, the
// other is inherited by the trampoline across clone (spec §6).
func Socketpair() (a, b *FramedUnix, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET, 0)
	if err != nil {
		return nil, nil, err
	}
	ca, err := fileToUnixConn(fds[0], "nsbox-ipc-a")
	if err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, nil, err
	}
	cb, err := fileToUnixConn(fds[1], "nsbox-ipc-b")
	if err != nil {
		ca.Close()
		unix.Close(fds[1])
		return nil, nil, err
	}
	return NewFramedUnix(ca), NewFramedUnix(cb), nil
}

// SocketpairForExec creates a connected pair of SOCK_SEQPACKET Unix
// sockets, keeping one end wrapped as a FramedUnix for local use and
// returning the other as a raw *os.File suitable for exec.Cmd.ExtraFiles.
// The far side reconstructs its FramedUnix after exec with
// NewFramedUnixFromFD.
func SocketpairForExec() (local *FramedUnix, remote *os.File, err error) {
	fds, err := unix.Socketpair(unix.AF_UNIX, unix.SOCK_SEQPACKET, 0)
	if err != nil {
		return nil, nil, err
	}
	conn, err := fileToUnixConn(fds[0], "nsbox-ipc-local")
	if err != nil {
		unix.Close(fds[0])
		unix.Close(fds[1])
		return nil, nil, err
	}
	return NewFramedUnix(conn), os.NewFile(uintptr(fds[1]), "nsbox-ipc-remote"), nil
}

// NewFramedUnixFromFD reconstructs a FramedUnix from an inherited socket
// descriptor, e.g. one donated across exec via SocketpairForExec.
func NewFramedUnixFromFD(fd uintptr, name string) (*FramedUnix, error) {
	conn, err := fileToUnixConn(int(fd), name)
	if err != nil {
		return nil, err
	}
	return NewFramedUnix(conn), nil
}

func fileToUnixConn(fd int, name string) (*net.UnixConn, error) {
	f := os.NewFile(uintptr(fd), name)
	defer f.Close()
	conn, err := net.FileConn(f)
	if err != nil {
		return nil, err
	}
	uc, ok := conn.(*net.UnixConn)
	if !ok {
		conn.Close()
		return nil, fmt.Errorf("ipc: fd %d is not a unix socket", fd)
	}
	return uc, nil
}
