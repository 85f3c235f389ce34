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

	"github.com/nsbox/nsbox/pkg/container"
	"github.com/nsbox/nsbox/pkg/eventbus"
	"github.com/nsbox/nsbox/pkg/log"
)

// Runtime is the seam between the control plane and the rest of the
// runtime: the server depends only on this interface, so it can be tested
// against a fake without a real launcher or repository store.
type Runtime interface {
	Containers() []ContainerInfo
	Repositories() map[string]RepositoryInfo
	Start(name container.Name) error
	Stop(name container.Name) error
}

// Server accepts control-plane connections and dispatches requests against
// a Runtime, bridging the shared event bus into each connection's
// notification stream (spec §4.6, §6's TCP transport).
type Server struct {
	rt  Runtime
	ln  net.Listener

	mu   sync.Mutex
	subs map[chan<- eventbus.Event]struct{}
}

// NewServer wraps an already-listening socket and starts the bus fan-out
// goroutine. Callers typically get ln from net.Listen("tcp",
// cfg.SocketPath). bus has exactly one consumer for its whole lifetime:
// this server, which then re-broadcasts each event to every connected
// client's own notification channel (the eventbus package's own
// single-consumer contract, spec §5).
func NewServer(rt Runtime, bus *eventbus.Bus, ln net.Listener) *Server {
	s := &Server{rt: rt, ln: ln, subs: make(map[chan<- eventbus.Event]struct{})}
	go s.fanOut(bus)
	return s
}

func (s *Server) fanOut(bus *eventbus.Bus) {
	for ev := range bus.Events() {
		s.mu.Lock()
		for ch := range s.subs {
			select {
			case ch <- ev:
			default:
				log.Warningf("control: notification channel full for a connection, dropping %v", ev)
			}
		}
		s.mu.Unlock()
	}
	s.mu.Lock()
	for ch := range s.subs {
		close(ch)
	}
	s.mu.Unlock()
}

// Serve accepts connections until the listener is closed.
func (s *Server) Serve() error {
	for {
		conn, err := s.ln.Accept()
		if err != nil {
			return fmt.Errorf("control: accept: %w", err)
		}
		go s.serveConn(conn)
	}
}

func (s *Server) serveConn(raw net.Conn) {
	conn := NewConn(raw)
	defer conn.Close()

	notifyCh := make(chan eventbus.Event, notificationCapacity)
	sub := s.subscribe(notifyCh)
	defer sub()

	writeErr := make(chan error, 1)
	go func() {
		for ev := range notifyCh {
			if err := conn.Send(Payload{Kind: KindNotification, Notification: eventToNotification(ev)}); err != nil {
				writeErr <- err
				return
			}
		}
	}()

	for {
		p, err := conn.Recv()
		if err != nil {
			log.Debugf("control: connection error: %v", err)
			return
		}
		if p == nil {
			return
		}
		if p.Kind != KindRequest {
			log.Errorf("control: server received non-request payload, protocol violation")
			return
		}
		resp := s.dispatch(p.Request)
		if err := conn.Send(Payload{Kind: KindResponse, Response: resp}); err != nil {
			log.Debugf("control: send response: %v", err)
			return
		}
		select {
		case err := <-writeErr:
			log.Debugf("control: notification writer failed: %v", err)
			return
		default:
		}
	}
}

func (s *Server) dispatch(req Request) Response {
	switch req.Kind {
	case ReqContainers:
		return Response{Kind: RespContainers, Containers: s.rt.Containers()}
	case ReqRepositories:
		return Response{Kind: RespRepositories, Repositories: s.rt.Repositories()}
	case ReqStart:
		if err := s.rt.Start(req.Name); err != nil {
			return Response{Kind: RespErr, Err: err.Error()}
		}
		return Response{Kind: RespOk}
	case ReqStop:
		if err := s.rt.Stop(req.Name); err != nil {
			return Response{Kind: RespErr, Err: err.Error()}
		}
		return Response{Kind: RespOk}
	default:
		return Response{Kind: RespErr, Err: fmt.Sprintf("unknown request kind %d", req.Kind)}
	}
}

// subscribe registers ch to receive every future bus event, fanned out by
// the server's single fanOut goroutine (spec §5's bounded, drop-when-full
// channel is enforced there, not per-subscriber).
func (s *Server) subscribe(ch chan eventbus.Event) (unsubscribe func()) {
	s.mu.Lock()
	s.subs[ch] = struct{}{}
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		delete(s.subs, ch)
		s.mu.Unlock()
		close(ch)
	}
}

func eventToNotification(ev eventbus.Event) Notification {
	switch ev.Kind {
	case eventbus.Started:
		return Notification{Kind: NotifyStart, Name: ev.Container}
	case eventbus.Exited:
		return Notification{Kind: NotifyExit, Name: ev.Container, Status: ev.Status}
	default:
		return Notification{Kind: NotifyStart, Name: ev.Container}
	}
}
