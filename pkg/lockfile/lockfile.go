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

// Package lockfile guards the runtime's state directory against a second
// supervisor instance starting against it concurrently.
package lockfile

import (
	"fmt"

	"github.com/gofrs/flock"
)

// Lock holds an exclusively-locked file for the supervisor's lifetime.
type Lock struct {
	fl *flock.Flock
}

// Acquire tries to exclusively lock path, failing immediately rather than
// waiting if another process already holds it — a second supervisor
// pointed at the same state directory is a misconfiguration, not a
// condition worth blocking on.
func Acquire(path string) (*Lock, error) {
	fl := flock.New(path)
	locked, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lockfile: locking %s: %w", path, err)
	}
	if !locked {
		return nil, fmt.Errorf("lockfile: %s is already held, another supervisor running?", path)
	}
	return &Lock{fl: fl}, nil
}

// Release unlocks the file.
func (l *Lock) Release() error {
	return l.fl.Unlock()
}
