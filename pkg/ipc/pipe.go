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

// Package ipc provides the low-level primitives the launch pipeline and
// control plane are built from: raw pipes, a cross-process checkpoint
// barrier, and a length-framed Unix socket capable of passing file
// descriptors.
package ipc

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// ErrWouldBlock is surfaced by a nonblocking Pipe's Read/Write instead of
// EAGAIN/EWOULDBLOCK.
var ErrWouldBlock = errors.New("ipc: operation would block")

// ReadEnd is the read side of a pipe, owning its file descriptor.
type ReadEnd struct {
	fd int
}

// WriteEnd is the write side of a pipe, owning its file descriptor.
type WriteEnd struct {
	fd int
}

// NewPipe creates a close-on-exec pipe and returns its two ends. The ends
// are plain fds intended for use immediately before or after a fork, where
// the Go runtime's netpoller is not yet (or no longer) available — see
// AsyncPipe for the runtime-side equivalent.
func NewPipe() (*ReadEnd, *WriteEnd, error) {
	var fds [2]int
	if err := unix.Pipe2(fds[:], unix.O_CLOEXEC); err != nil {
		return nil, nil, err
	}
	return &ReadEnd{fd: fds[0]}, &WriteEnd{fd: fds[1]}, nil
}

// FD returns the underlying file descriptor.
func (r *ReadEnd) FD() int { return r.fd }

// FD returns the underlying file descriptor.
func (w *WriteEnd) FD() int { return w.fd }

// SetNonblock marks the read end nonblocking; subsequent Read calls return
// ErrWouldBlock instead of blocking when no data is available.
func (r *ReadEnd) SetNonblock(nb bool) error {
	return unix.SetNonblock(r.fd, nb)
}

// SetNonblock marks the write end nonblocking.
func (w *WriteEnd) SetNonblock(nb bool) error {
	return unix.SetNonblock(w.fd, nb)
}

// Read reads up to len(p) bytes. A nonblocking read with nothing available
// returns ErrWouldBlock, not 0, nil.
func (r *ReadEnd) Read(p []byte) (int, error) {
	n, err := unix.Read(r.fd, p)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, ErrWouldBlock
	}
	return n, err
}

// Write writes p in full or returns an error; a nonblocking write that
// cannot proceed returns ErrWouldBlock.
func (w *WriteEnd) Write(p []byte) (int, error) {
	n, err := unix.Write(w.fd, p)
	if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
		return 0, ErrWouldBlock
	}
	return n, err
}

// Close closes the read end.
func (r *ReadEnd) Close() error { return closeFD(&r.fd) }

// Close closes the write end.
func (w *WriteEnd) Close() error { return closeFD(&w.fd) }

// Flush is a no-op: fsync on a pipe returns EINVAL on Linux (spec §9 open
// question), so there is nothing meaningful to sync.
func (w *WriteEnd) Flush() error { return nil }

func closeFD(fd *int) error {
	if *fd < 0 {
		return nil
	}
	err := unix.Close(*fd)
	*fd = -1
	return err
}

// File wraps the read end as an *os.File, transferring ownership of the
// descriptor; the Go runtime's poller takes it over only if the end is
// nonblocking. See AsyncPipe.
func (r *ReadEnd) File(name string) *os.File {
	f := os.NewFile(uintptr(r.fd), name)
	r.fd = -1 // os.File now owns the descriptor.
	return f
}

// File wraps the write end as an *os.File.
func (w *WriteEnd) File(name string) *os.File {
	f := os.NewFile(uintptr(w.fd), name)
	w.fd = -1
	return f
}
