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

// Command nsbox-supervisor is the runtime process: it owns the launcher,
// the event bus, and the control-plane server that together implement the
// supervisor side of the control plane (spec §4.13).
package main

import (
	"context"
	"flag"
	"fmt"
	"net"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/nsbox/nsbox/pkg/config"
	"github.com/nsbox/nsbox/pkg/control"
	"github.com/nsbox/nsbox/pkg/eventbus"
	"github.com/nsbox/nsbox/pkg/launcher"
	"github.com/nsbox/nsbox/pkg/lockfile"
	"github.com/nsbox/nsbox/pkg/log"
	"github.com/nsbox/nsbox/pkg/repository"
)

// busCapacity bounds the number of lifecycle events the launcher can get
// ahead of the control-plane server's fan-out by before Publish blocks.
const busCapacity = 64

var (
	configPath = flag.String("config", "", "path to a TOML config file")
	initPath   = flag.String("init-path", "", "path to the nsbox-init binary")
	repoRoot   = flag.String("repository-root", "", "directory of repositories (defaults to <state-dir>/repositories)")
)

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fatalf("loading config: %v", err)
	}
	if err := log.SetLevel(cfg.LogLevel); err != nil {
		fatalf("invalid log level %q: %v", cfg.LogLevel, err)
	}

	if *initPath == "" {
		fatalf("-init-path is required")
	}

	root := *repoRoot
	if root == "" {
		root = filepath.Join(cfg.StateDir, "repositories")
	}
	if err := os.MkdirAll(root, 0755); err != nil {
		fatalf("creating repository root %s: %v", root, err)
	}

	if err := os.MkdirAll(cfg.StateDir, 0755); err != nil {
		fatalf("creating state dir %s: %v", cfg.StateDir, err)
	}
	lock, err := lockfile.Acquire(filepath.Join(cfg.StateDir, "supervisor.lock"))
	if err != nil {
		fatalf("%v", err)
	}
	defer lock.Release()

	bus := eventbus.New(busCapacity)
	l := launcher.New(cfg, bus, *initPath)
	store := repository.New(root)
	rt := repository.NewRuntime(store, l)

	ln, err := net.Listen("tcp", cfg.SocketPath)
	if err != nil {
		fatalf("listening on %s: %v", cfg.SocketPath, err)
	}
	srv := control.NewServer(rt, bus, ln)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Serve and the shutdown watcher race as an errgroup: whichever
	// finishes first (a real Serve error, or the signal) closes the
	// listener for the other, and the group's Wait surfaces Serve's
	// actual error rather than the net.ErrClosed its own Accept sees.
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("nsbox-supervisor: listening on %s, repositories at %s", cfg.SocketPath, root)
		return srv.Serve()
	})
	g.Go(func() error {
		<-gctx.Done()
		log.Infof("nsbox-supervisor: shutting down")
		return ln.Close()
	})

	if err := g.Wait(); err != nil && ctx.Err() == nil {
		// ctx.Err() is nil only when nothing asked for a signal-driven
		// shutdown, meaning Serve itself failed.
		log.Errorf("nsbox-supervisor: %v", err)
		os.Exit(1)
	}
}

func fatalf(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "nsbox-supervisor: "+format+"\n", args...)
	os.Exit(1)
}
