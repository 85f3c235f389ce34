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
	"fmt"
	"net"
	"sync"
	"testing"

	"github.com/nsbox/nsbox/pkg/container"
)

func TestConnSendRecvRoundTrip(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	a := NewConn(client)
	b := NewConn(server)

	want := Payload{
		Kind: KindRequest,
		Request: Request{
			Kind: ReqStart,
			Name: container.Name{Name: "web", Version: "3"},
		},
	}

	go func() {
		if err := a.Send(want); err != nil {
			t.Errorf("Send: %v", err)
		}
	}()

	got, err := b.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if got == nil {
		t.Fatal("Recv: got nil payload")
	}
	if got.Kind != want.Kind || got.Request.Kind != want.Request.Kind || got.Request.Name != want.Request.Name {
		t.Errorf("Recv() = %+v, want %+v", got, want)
	}
}

func TestConnRoundTripResponseAndNotification(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	a := NewConn(client)
	b := NewConn(server)

	resp := Payload{
		Kind: KindResponse,
		Response: Response{
			Kind: RespContainers,
			Containers: []ContainerInfo{
				{Name: container.Name{Name: "web", Version: "1"}, State: "running"},
			},
		},
	}
	go a.Send(resp)
	got, err := b.Recv()
	if err != nil {
		t.Fatalf("Recv response: %v", err)
	}
	if len(got.Response.Containers) != 1 || got.Response.Containers[0].State != "running" {
		t.Errorf("Recv() response = %+v, want %+v", got.Response, resp.Response)
	}

	notif := Payload{
		Kind: KindNotification,
		Notification: Notification{
			Kind:   NotifyExit,
			Name:   container.Name{Name: "web", Version: "1"},
			Status: container.Exit(0),
		},
	}
	go a.Send(notif)
	got, err = b.Recv()
	if err != nil {
		t.Fatalf("Recv notification: %v", err)
	}
	if got.Notification.Kind != NotifyExit || got.Notification.Status != container.Exit(0) {
		t.Errorf("Recv() notification = %+v, want %+v", got.Notification, notif.Notification)
	}
}

// TestConnSendIsSafeForConcurrentUse exercises the exact scenario a real
// connection sees: the response writer and the notification writer sending
// on the same Conn at once. Without Send serializing each frame's header
// and payload, two concurrent sends can interleave at the byte level and
// every frame after the splice fails to decode.
func TestConnSendIsSafeForConcurrentUse(t *testing.T) {
	client, server := net.Pipe()
	defer client.Close()
	defer server.Close()

	a := NewConn(client)
	b := NewConn(server)

	const n = 50
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a.Send(Payload{
				Kind: KindNotification,
				Notification: Notification{
					Kind: NotifyExit,
					Name: container.Name{Name: fmt.Sprintf("c%d", i)},
				},
			})
		}(i)
	}

	seen := make(map[string]bool, n)
	for i := 0; i < n; i++ {
		p, err := b.Recv()
		if err != nil {
			t.Fatalf("Recv: %v", err)
		}
		if p == nil {
			t.Fatal("Recv: got nil payload before n messages")
		}
		if p.Kind != KindNotification || p.Notification.Kind != NotifyExit {
			t.Fatalf("Recv() = %+v, want an uncorrupted NotifyExit notification", p)
		}
		seen[p.Notification.Name.Name] = true
	}
	if len(seen) != n {
		t.Errorf("received %d distinct payloads, want %d (duplicates or corruption dropped some)", len(seen), n)
	}

	wg.Wait()
}
