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

package main

import (
	"testing"

	"github.com/nsbox/nsbox/pkg/container"
)

func TestParseName(t *testing.T) {
	tests := []struct {
		in      string
		want    container.Name
		wantErr bool
	}{
		{"web:3", container.Name{Name: "web", Version: "3"}, false},
		{"web", container.Name{Name: "web", Version: ""}, false},
		{"", container.Name{}, true},
	}
	for _, tt := range tests {
		got, err := parseName(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseName(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if err == nil && got != tt.want {
			t.Errorf("parseName(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}
