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
	"errors"
	"net"
	"testing"
	"time"

	"github.com/nsbox/nsbox/pkg/container"
	"github.com/nsbox/nsbox/pkg/eventbus"
)

type fakeRuntime struct {
	containers   []ContainerInfo
	repositories map[string]RepositoryInfo
	startErr     error
	stopErr      error
	started      []container.Name
	stopped      []container.Name
}

func (f *fakeRuntime) Containers() []ContainerInfo             { return f.containers }
func (f *fakeRuntime) Repositories() map[string]RepositoryInfo { return f.repositories }
func (f *fakeRuntime) Start(name container.Name) error {
	f.started = append(f.started, name)
	return f.startErr
}
func (f *fakeRuntime) Stop(name container.Name) error {
	f.stopped = append(f.stopped, name)
	return f.stopErr
}

func newTestServer(t *testing.T, rt Runtime) (addr string, bus *eventbus.Bus, shutdown func()) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("net.Listen: %v", err)
	}
	bus = eventbus.New(8)
	srv := NewServer(rt, bus, ln)
	go srv.Serve()
	return ln.Addr().String(), bus, func() { ln.Close() }
}

func TestClientContainersAndRepositories(t *testing.T) {
	rt := &fakeRuntime{
		containers:   []ContainerInfo{{Name: container.Name{Name: "web", Version: "1"}, State: "running"}},
		repositories: map[string]RepositoryInfo{"local": {Path: "/var/nsbox/repositories/local"}},
	}
	addr, _, shutdown := newTestServer(t, rt)
	defer shutdown()

	c, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	containers, err := c.Containers()
	if err != nil {
		t.Fatalf("Containers: %v", err)
	}
	if len(containers) != 1 || containers[0].State != "running" {
		t.Errorf("Containers() = %+v, want one running container", containers)
	}

	repos, err := c.Repositories()
	if err != nil {
		t.Fatalf("Repositories: %v", err)
	}
	if repos["local"].Path == "" {
		t.Errorf("Repositories() = %+v, want local entry", repos)
	}
}

func TestClientStartAndStop(t *testing.T) {
	rt := &fakeRuntime{}
	addr, _, shutdown := newTestServer(t, rt)
	defer shutdown()

	c, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	name := container.Name{Name: "web", Version: "2"}
	if err := c.Start(name); err != nil {
		t.Fatalf("Start: %v", err)
	}
	if err := c.Stop(name); err != nil {
		t.Fatalf("Stop: %v", err)
	}
	if len(rt.started) != 1 || rt.started[0] != name {
		t.Errorf("runtime.started = %v, want [%v]", rt.started, name)
	}
	if len(rt.stopped) != 1 || rt.stopped[0] != name {
		t.Errorf("runtime.stopped = %v, want [%v]", rt.stopped, name)
	}
}

func TestClientStartErrorSurfacesAsApiError(t *testing.T) {
	rt := &fakeRuntime{startErr: errors.New("already running")}
	addr, _, shutdown := newTestServer(t, rt)
	defer shutdown()

	c, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	err = c.Start(container.Name{Name: "web", Version: "1"})
	if err == nil {
		t.Fatal("Start: expected error, got nil")
	}
	var apiErr *ApiError
	if !errors.As(err, &apiErr) {
		t.Errorf("Start error = %v (%T), want *ApiError", err, err)
	}
}

func TestClientSecondConcurrentRequestRejected(t *testing.T) {
	rt := &fakeRuntime{}
	addr, _, shutdown := newTestServer(t, rt)
	defer shutdown()

	c, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	// Drive the multiplexer's pending-request branch directly, since a
	// real in-flight request window is too narrow to hit reliably from a
	// loopback round trip.
	w1 := make(waiter, 1)
	w2 := make(waiter, 1)
	c.reqCh <- outbound{req: Request{Kind: ReqContainers}, w: w1}
	c.reqCh <- outbound{req: Request{Kind: ReqContainers}, w: w2}

	select {
	case r := <-w2:
		if !errors.Is(r.err, ErrPendingRequest) {
			t.Errorf("second request: got %v, want ErrPendingRequest", r.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("second request never completed")
	}

	select {
	case r := <-w1:
		if r.err != nil {
			t.Errorf("first request: unexpected error %v", r.err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("first request never completed")
	}
}

func TestClientReceivesNotifications(t *testing.T) {
	rt := &fakeRuntime{}
	addr, bus, shutdown := newTestServer(t, rt)
	defer shutdown()

	c, err := Dial(addr)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer c.Close()

	// A request/response round trip first, to make sure the server has
	// accepted and registered this connection's subscription before the
	// event is published.
	if _, err := c.Containers(); err != nil {
		t.Fatalf("Containers: %v", err)
	}

	name := container.Name{Name: "web", Version: "1"}
	bus.Publish(eventbus.Event{Kind: eventbus.Started, Container: name})

	select {
	case n := <-c.Notifications():
		if n.Kind != NotifyStart || n.Name != name {
			t.Errorf("Notifications() = %+v, want Start for %v", n, name)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("notification never arrived")
	}
}
