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

// Command nsbox-init is exec'd by the launcher into the freshly cloned
// PID+mount namespace. It forks the trampoline away (spec §4.4), then acts
// as the container's init: finishing sandbox construction, execing the
// application on the runtime's command, and reaping it.
package main

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"runtime"

	"github.com/nsbox/nsbox/pkg/container"
	"github.com/nsbox/nsbox/pkg/initproc"
	"github.com/nsbox/nsbox/pkg/ipc"
	"github.com/nsbox/nsbox/pkg/log"
)

func main() {
	// rawFork only survives on the calling OS thread; lock it before the
	// first fork so the Go scheduler never migrates us mid-sequence.
	runtime.LockOSThread()

	if err := initproc.RunTrampoline(); err != nil {
		fmt.Fprintf(os.Stderr, "nsbox-init: trampoline fork: %v\n", err)
		os.Exit(1)
	}

	if err := run(); err != nil {
		log.Errorf("nsbox-init: %v", err)
		os.Exit(1)
	}
}

func run() error {
	descFile := os.NewFile(uintptr(initproc.DescriptorFD), "descriptor")
	raw, err := io.ReadAll(descFile)
	if err != nil {
		return fmt.Errorf("reading descriptor: %w", err)
	}
	descFile.Close()

	var desc container.Descriptor
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&desc); err != nil {
		return fmt.Errorf("decoding descriptor: %w", err)
	}

	var consoleFile *os.File
	if desc.Console {
		consoleFile = os.NewFile(uintptr(initproc.ConsoleFD), "console")
	}

	cp := ipc.FromFDs(initproc.CheckpointNotifyFD, initproc.CheckpointWaitFD)

	log.Debugf("waiting for spawn")
	if err := cp.Wait(); err != nil {
		return fmt.Errorf("waiting for spawn checkpoint: %w", err)
	}

	if err := initproc.Setup(&desc); err != nil {
		return fmt.Errorf("setup: %w", err)
	}

	if err := cp.Notify(); err != nil {
		return fmt.Errorf("acknowledging setup: %w", err)
	}

	framed, err := ipc.NewFramedUnixFromFD(uintptr(initproc.ConnFD), "nsbox-init-conn")
	if err != nil {
		return fmt.Errorf("reconstructing control socket: %w", err)
	}
	conn := container.NewConn(framed)
	defer conn.Close()

	return initproc.Run(&desc, conn, consoleFile)
}
