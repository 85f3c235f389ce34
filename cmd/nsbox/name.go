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
	"fmt"
	"strings"

	"github.com/nsbox/nsbox/pkg/container"
)

// parseName splits a "name:version" argument the same way container.Name
// renders itself; version defaults to "" when omitted.
func parseName(s string) (container.Name, error) {
	if s == "" {
		return container.Name{}, fmt.Errorf("empty container name")
	}
	name, version, _ := strings.Cut(s, ":")
	return container.Name{Name: name, Version: version}, nil
}
