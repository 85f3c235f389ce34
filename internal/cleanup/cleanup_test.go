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

package cleanup

import "testing"

func TestCleanRunsRegisteredFunc(t *testing.T) {
	ran := false
	c := Make(func() { ran = true })
	c.Clean()
	if !ran {
		t.Error("Clean did not run the registered function")
	}
}

func TestCleanIsNoopAfterRelease(t *testing.T) {
	ran := false
	c := Make(func() { ran = true })
	c.Release()
	c.Clean()
	if ran {
		t.Error("Clean ran after Release")
	}
}

func TestCleanRunsOnlyOnce(t *testing.T) {
	n := 0
	c := Make(func() { n++ })
	c.Clean()
	c.Clean()
	if n != 1 {
		t.Errorf("Clean ran %d times, want 1", n)
	}
}

// TestAddRunsNewestFirst matches the unwind order callers expect: resources
// opened later are torn down before resources opened earlier.
func TestAddRunsNewestFirst(t *testing.T) {
	var order []int
	var c Cleanup
	c.Add(func() { order = append(order, 1) })
	c.Add(func() { order = append(order, 2) })
	c.Add(func() { order = append(order, 3) })
	c.Clean()

	want := []int{3, 2, 1}
	if len(order) != len(want) {
		t.Fatalf("order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("order = %v, want %v", order, want)
			break
		}
	}
}

func TestAddThenReleaseSkipsAll(t *testing.T) {
	ran := false
	var c Cleanup
	c.Add(func() { ran = true })
	c.Add(func() { ran = true })
	c.Release()
	c.Clean()
	if ran {
		t.Error("Clean ran after Release with Add-composed functions")
	}
}

func TestZeroValueCleanIsNoop(t *testing.T) {
	var c Cleanup
	c.Clean() // must not panic on a nil f
}
