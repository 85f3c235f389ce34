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
	"context"
	"flag"
	"fmt"

	"github.com/google/subcommands"
)

// stopCmd implements subcommands.Command for "stop".
type stopCmd struct{}

func (*stopCmd) Name() string     { return "stop" }
func (*stopCmd) Synopsis() string { return "terminate a running container by name" }
func (*stopCmd) Usage() string {
	return `stop <name>[:version] - terminate a running container
`
}
func (*stopCmd) SetFlags(*flag.FlagSet) {}

func (*stopCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	name, err := parseName(f.Arg(0))
	if err != nil {
		fatalf("%v", err)
	}

	c, err := dial()
	if err != nil {
		fatalf("connecting to %s: %v", *socketAddr, err)
	}
	defer c.Close()

	if err := c.Stop(name); err != nil {
		fatalf("stopping %s: %v", name, err)
	}
	fmt.Printf("stopped %s\n", name)
	return subcommands.ExitSuccess
}
