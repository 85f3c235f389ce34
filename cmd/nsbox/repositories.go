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
	"sort"
	"text/tabwriter"

	"github.com/google/subcommands"
)

// repositoriesCmd implements subcommands.Command for "repositories".
type repositoriesCmd struct{}

func (*repositoriesCmd) Name() string     { return "repositories" }
func (*repositoriesCmd) Synopsis() string { return "list configured repositories" }
func (*repositoriesCmd) Usage() string {
	return `repositories - list configured repositories and their paths
`
}
func (*repositoriesCmd) SetFlags(*flag.FlagSet) {}

func (*repositoriesCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...any) subcommands.ExitStatus {
	if f.NArg() != 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	c, err := dial()
	if err != nil {
		fatalf("connecting to %s: %v", *socketAddr, err)
	}
	defer c.Close()

	repos, err := c.Repositories()
	if err != nil {
		fatalf("listing repositories: %v", err)
	}

	ids := make([]string, 0, len(repos))
	for id := range repos {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tPATH")
	for _, id := range ids {
		fmt.Fprintf(w, "%s\t%s\n", id, repos[id].Path)
	}
	w.Flush()
	return subcommands.ExitSuccess
}
