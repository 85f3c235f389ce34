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

package capset

import (
	"testing"

	"github.com/syndtr/gocapability/capability"
)

func TestParseKeepSet(t *testing.T) {
	caps, err := ParseKeepSet([]string{"CAP_NET_BIND_SERVICE", "cap_chown", "SETUID"})
	if err != nil {
		t.Fatalf("ParseKeepSet: %v", err)
	}
	if len(caps) != 3 {
		t.Fatalf("ParseKeepSet: got %d caps, want 3", len(caps))
	}
}

func TestParseKeepSetUnknown(t *testing.T) {
	if _, err := ParseKeepSet([]string{"cap_this_does_not_exist"}); err == nil {
		t.Error("ParseKeepSet: expected error for unknown capability, got nil")
	}
}

func TestDropsIsComplementOfKeep(t *testing.T) {
	keep, err := ParseKeepSet([]string{"CAP_CHOWN", "CAP_SETUID"})
	if err != nil {
		t.Fatalf("ParseKeepSet: %v", err)
	}
	drops := Drops(keep)

	keepSet := make(map[capability.Cap]bool, len(keep))
	for _, c := range keep {
		keepSet[c] = true
	}
	for _, d := range drops {
		if keepSet[d] {
			t.Errorf("Drops() contains kept capability %v", d)
		}
	}
	if len(drops)+len(keep) != len(allCaps) {
		t.Errorf("len(drops)+len(keep) = %d, want %d", len(drops)+len(keep), len(allCaps))
	}
}

func TestDropsEmptyKeepDropsEverything(t *testing.T) {
	drops := Drops(nil)
	if len(drops) != len(allCaps) {
		t.Errorf("Drops(nil): got %d, want %d (every capability)", len(drops), len(allCaps))
	}
}
