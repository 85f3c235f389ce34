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

// Command nsbox is the control-plane client: a thin CLI over pkg/control's
// request/response wrappers (spec §4.6).
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
)

var socketAddr = flag.String("addr", "127.0.0.1:4200", "control-plane address, host:port")

// connectRetryBudget bounds how long a subcommand keeps retrying its
// initial connection before giving up, covering the common case of a CLI
// invocation racing the supervisor's own startup.
const connectRetryBudget = 3 * time.Second

func main() {
	subcommands.Register(subcommands.HelpCommand(), "")
	subcommands.Register(subcommands.FlagsCommand(), "")
	subcommands.Register(subcommands.CommandsCommand(), "")
	subcommands.Register(&startCmd{}, "")
	subcommands.Register(&stopCmd{}, "")
	subcommands.Register(&containersCmd{}, "")
	subcommands.Register(&repositoriesCmd{}, "")

	flag.Parse()
	ctx := context.Background()
	os.Exit(int(subcommands.Execute(ctx)))
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "nsbox: "+format+"\n", args...)
	os.Exit(1)
}
