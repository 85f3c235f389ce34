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

// Package cleanup provides a way to clean up resources in case of an error
// without hiding the error itself.
package cleanup

// Cleanup allows defer-based rollback tied to whether the enclosing function
// returned an error. Call Release once the guarded operation has fully
// succeeded; until then, Clean runs the registered functions once, and every
// subsequent Clean is a no-op.
type Cleanup struct {
	f func()
}

// Make creates a new Cleanup object.
func Make(f func()) Cleanup {
	return Cleanup{f: f}
}

// Clean invokes the cleanup unless the Cleanup was released.
func (c *Cleanup) Clean() {
	if c.f != nil {
		c.f()
	}
	c.f = nil
}

// Release turns the Cleanup into a no-op, called once the guarded sequence
// of steps has fully succeeded and rollback is no longer wanted.
func (c *Cleanup) Release() {
	c.f = nil
}

// Add registers an additional function to run on Clean, ahead of the
// functions already registered: the newest registration runs first.
func (c *Cleanup) Add(f func()) {
	if c.f == nil {
		c.f = f
		return
	}
	prev := c.f
	c.f = func() {
		f()
		prev()
	}
}
