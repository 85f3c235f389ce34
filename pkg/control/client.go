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
	"fmt"
	"net"
	"time"

	"github.com/nsbox/nsbox/pkg/container"
	"github.com/nsbox/nsbox/pkg/log"
)

// connectTimeout bounds how long Dial waits for the initial TCP handshake
// (spec §4.6).
const connectTimeout = 2 * time.Second

// notificationCapacity is the bounded channel depth between the
// multiplexer and the client's consumer; once full, new notifications are
// dropped rather than blocking the multiplexer (spec §5).
const notificationCapacity = 10

var (
	// ErrStopped is returned when the multiplexer goroutine has exited
	// (the connection is gone) and a request or notification can no
	// longer be serviced.
	ErrStopped = errors.New("control: client stopped")
	// ErrProtocolViolation is returned by the convenience wrappers when a
	// response's kind does not match the request. An inbound Request, or a
	// Response with no pending waiter, instead ends the multiplexer, after
	// which calls return ErrStopped.
	ErrProtocolViolation = errors.New("control: protocol violation")
	// ErrPendingRequest is returned immediately, without ever touching
	// the wire, when a request is submitted while one is already in
	// flight (spec §4.6's single-flight rule).
	ErrPendingRequest = errors.New("control: a request is already in flight")
)

// ApiError wraps the api_error string carried in a RespErr response.
type ApiError struct{ Message string }

func (e *ApiError) Error() string { return e.Message }

// waiter is the oneshot channel a pending request blocks on.
type waiter chan result

type result struct {
	resp Response
	err  error
}

type outbound struct {
	req Request
	w   waiter
}

// Client is the control-plane multiplexer: a single TCP connection shared
// by every caller, enforcing single-flight request semantics and fanning
// notifications out to a bounded channel (spec §4.6, grounded directly on
// the original's Client/task::spawn loop).
type Client struct {
	conn   *Conn
	reqCh  chan outbound
	notify chan Notification
	done   chan struct{}
}

// Dial connects to addr (host:port) and starts the multiplexer.
func Dial(addr string) (*Client, error) {
	conn, err := net.DialTimeout("tcp", addr, connectTimeout)
	if err != nil {
		return nil, fmt.Errorf("control: dial %s: %w", addr, err)
	}
	c := &Client{
		conn:   NewConn(conn),
		reqCh:  make(chan outbound),
		notify: make(chan Notification, notificationCapacity),
		done:   make(chan struct{}),
	}
	go c.run()
	return c, nil
}

// Notifications returns the channel lifecycle events are pushed to.
func (c *Client) Notifications() <-chan Notification { return c.notify }

// Close tears down the connection; the multiplexer goroutine observes the
// closed socket and exits.
func (c *Client) Close() error { return c.conn.Close() }

func (c *Client) run() {
	defer close(c.done)
	defer close(c.notify)

	inbound := make(chan *Payload)
	recvErr := make(chan error, 1)
	go func() {
		for {
			p, err := c.conn.Recv()
			if err != nil {
				recvErr <- err
				return
			}
			if p == nil {
				recvErr <- nil
				return
			}
			inbound <- p
		}
	}()

	var pending waiter

	for {
		select {
		case p := <-inbound:
			switch p.Kind {
			case KindResponse:
				if pending == nil {
					log.Errorf("control: response with no pending request")
					return
				}
				pending <- result{resp: p.Response}
				pending = nil
			case KindNotification:
				select {
				case c.notify <- p.Notification:
				default:
					log.Warningf("control: notification channel full, dropping")
				}
			case KindRequest:
				log.Errorf("control: client received a request, protocol violation")
				return
			}

		case err := <-recvErr:
			if err != nil {
				log.Debugf("control: connection error: %v", err)
			}
			if pending != nil {
				pending <- result{err: ErrStopped}
			}
			return

		case ob := <-c.reqCh:
			if pending != nil {
				ob.w <- result{err: ErrPendingRequest}
				continue
			}
			if err := c.conn.Send(Payload{Kind: KindRequest, Request: ob.req}); err != nil {
				ob.w <- result{err: err}
				continue
			}
			pending = ob.w
		}
	}
}

// request issues req and blocks for its response or the multiplexer's
// demise.
func (c *Client) request(req Request) (Response, error) {
	w := make(waiter, 1)
	select {
	case c.reqCh <- outbound{req: req, w: w}:
	case <-c.done:
		return Response{}, ErrStopped
	}
	select {
	case r := <-w:
		if r.err != nil {
			return Response{}, r.err
		}
		if r.resp.Kind == RespErr {
			return Response{}, &ApiError{Message: r.resp.Err}
		}
		return r.resp, nil
	case <-c.done:
		return Response{}, ErrStopped
	}
}

// Containers lists every container the runtime currently knows about.
func (c *Client) Containers() ([]ContainerInfo, error) {
	r, err := c.request(Request{Kind: ReqContainers})
	if err != nil {
		return nil, err
	}
	if r.Kind != RespContainers {
		return nil, fmt.Errorf("%w: expected containers response, got kind %d", ErrProtocolViolation, r.Kind)
	}
	return r.Containers, nil
}

// Repositories lists every configured repository, keyed by id.
func (c *Client) Repositories() (map[string]RepositoryInfo, error) {
	r, err := c.request(Request{Kind: ReqRepositories})
	if err != nil {
		return nil, err
	}
	if r.Kind != RespRepositories {
		return nil, fmt.Errorf("%w: expected repositories response, got kind %d", ErrProtocolViolation, r.Kind)
	}
	return r.Repositories, nil
}

// Start asks the runtime to launch name.
func (c *Client) Start(name container.Name) error {
	r, err := c.request(Request{Kind: ReqStart, Name: name})
	if err != nil {
		return err
	}
	if r.Kind != RespOk {
		return fmt.Errorf("%w: expected ok response, got kind %d", ErrProtocolViolation, r.Kind)
	}
	return nil
}

// Stop asks the runtime to terminate name.
func (c *Client) Stop(name container.Name) error {
	r, err := c.request(Request{Kind: ReqStop, Name: name})
	if err != nil {
		return err
	}
	if r.Kind != RespOk {
		return fmt.Errorf("%w: expected ok response, got kind %d", ErrProtocolViolation, r.Kind)
	}
	return nil
}
