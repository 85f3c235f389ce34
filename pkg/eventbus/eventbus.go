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

// Package eventbus carries container lifecycle events from the launcher's
// wait task to every subscriber that needs to know about them, chiefly the
// control-plane server's notification bridge.
package eventbus

import "github.com/nsbox/nsbox/pkg/container"

// Kind tags the two lifecycle events a container produces.
type Kind int

const (
	// Started fires once the launcher has released the container's
	// checkpoint.
	Started Kind = iota
	// Exited fires when the wait task observes the container's terminal
	// status. It is always the last event for a given container.
	Exited
)

// Event is one lifecycle transition for a named container.
type Event struct {
	Kind      Kind
	Container container.Name
	Status    container.ExitStatus // meaningful iff Kind == Exited
}

// Bus is a multi-producer, single-consumer channel of Events. The
// launcher's wait tasks are the producers; the control-plane server reads
// it to fan events out to connected clients as Notifications.
type Bus struct {
	ch chan Event
}

// New creates a Bus with the given buffer depth.
func New(capacity int) *Bus {
	return &Bus{ch: make(chan Event, capacity)}
}

// Publish enqueues an event. It blocks if the bus is full; producers are
// expected to be the small, bounded set of per-container wait tasks, not a
// high-rate stream, so backpressure here is a correctness signal rather
// than a tuning concern.
func (b *Bus) Publish(e Event) {
	b.ch <- e
}

// Events returns the receive side for consumers to range over.
func (b *Bus) Events() <-chan Event {
	return b.ch
}

// Close shuts the bus down. Callers must ensure no further Publish calls
// occur afterward.
func (b *Bus) Close() {
	close(b.ch)
}
