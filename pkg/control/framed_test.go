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
	"bytes"
	"net"
	"testing"
)

func TestFramedStreamSendRecvRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	a := newFramedStream(client)
	b := newFramedStream(server)

	want := []byte("hello, control plane")
	go func() {
		if err := a.send(want); err != nil {
			t.Errorf("send: %v", err)
		}
	}()

	got, err := b.recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if !bytes.Equal(got, want) {
		t.Errorf("recv() = %q, want %q", got, want)
	}
}

func TestFramedStreamRecvEmptyPayload(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	a := newFramedStream(client)
	b := newFramedStream(server)

	go a.send(nil)

	got, err := b.recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("recv() = %q, want empty", got)
	}
}

func TestFramedStreamRecvOnOrderlyClose(t *testing.T) {
	client, server := net.Pipe()
	defer server.Close()

	go client.Close()

	b := newFramedStream(server)
	got, err := b.recv()
	if err != nil {
		t.Fatalf("recv: %v", err)
	}
	if got != nil {
		t.Errorf("recv() after close = %q, want nil", got)
	}
}
