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
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
)

// containersCmd implements subcommands.Command for "containers".
type containersCmd struct{}

func (*containersCmd) Name() string     { return "containers" }
func (*containersCmd) Synopsis() string { return "list containers the runtime knows about" }
func (*containersCmd) Usage() string {
	return `containers - list containers and their state
`
}
func (*containersCmd) SetFlags(*flag.FlagSet) {}

func (*containersCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	c, err := dial()
	if err != nil {
		fatalf("connecting to %s: %v", *socketAddr, err)
	}
	defer c.Close()

	list, err := c.Containers()
	if err != nil {
		fatalf("listing containers: %v", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "NAME\tVERSION\tSTATE")
	for _, info := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\n", info.Name.Name, info.Name.Version, info.State)
	}
	w.Flush()
	return subcommands.ExitSuccess
}
