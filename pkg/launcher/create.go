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

package launcher

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"os"
	"os/exec"
	"os/user"
	"sort"
	"strconv"

	"github.com/nsbox/nsbox/internal/cleanup"
	"github.com/nsbox/nsbox/pkg/container"
	"github.com/nsbox/nsbox/pkg/ipc"
	"github.com/nsbox/nsbox/pkg/log"
	"golang.org/x/sys/unix"
)

// CreateArgs bundles a Create call's inputs, following the same pattern
// the original's own process/sandbox construction uses for a parameter
// list too long to pass positionally.
type CreateArgs struct {
	// Name identifies the container being launched.
	Name container.Name
	// Root is the absolute path of the already-mounted container
	// filesystem init chroots into.
	Root string
	// Manifest is the subset of the image manifest the launcher consumes.
	Manifest container.Manifest
	// Args, if non-nil, replaces Manifest.Args wholesale (spec §4.5).
	Args []string
	// Env overrides or adds to Manifest.Env, per key.
	Env map[string]string
	// Console, if non-nil, is the already-opened pty slave donated to the
	// application; ownership transfers to Create.
	Console *os.File
}

// Create builds a container's descriptor and clones the trampoline into a
// fresh PID+mount namespace (spec §4.5). The returned Process is in the
// Created state: init is blocked on its checkpoint, the application has
// not been exec'd. Spawn must be called to proceed.
func (l *Launcher) Create(a CreateArgs) (*Process, error) {
	if a.Manifest.InitPath == "" {
		return nil, fmt.Errorf("launcher: manifest has no init path (resource-only container)")
	}

	argv := buildArgv(a.Manifest.InitPath, a.Manifest.Args, a.Args)
	env := buildEnv(a.Name, a.Manifest.Env, a.Env)
	if err := container.ValidateStrings(argv); err != nil {
		return nil, fmt.Errorf("launcher: %w", err)
	}
	if err := container.ValidateStrings(env); err != nil {
		return nil, fmt.Errorf("launcher: %w", err)
	}

	gids := resolveGroups(a.Manifest.Groups)

	desc := container.Descriptor{
		Identity:          a.Name,
		Root:              a.Root,
		UID:               a.Manifest.UID,
		GID:               a.Manifest.GID,
		SupplementaryGIDs: gids,
		Capabilities:      a.Manifest.Capabilities,
		Rlimits:           a.Manifest.Rlimits,
		Seccomp:           a.Manifest.Seccomp,
		Netns:             a.Manifest.Netns,
		NetnsRoot:         l.cfg.NetnsRoot,
		Mounts:            a.Manifest.Mounts,
		Console:           a.Console != nil,
	}

	var descBuf bytes.Buffer
	if err := gob.NewEncoder(&descBuf).Encode(desc); err != nil {
		return nil, fmt.Errorf("launcher: encoding descriptor: %w", err)
	}

	// cu unwinds every fd opened below on any early return between here and
	// a successful cmd.Start; Release once the trampoline has its own
	// copies, since this process's copies stop mattering at that point.
	var cu cleanup.Cleanup
	defer cu.Clean()

	descR, descW, err := os.Pipe()
	if err != nil {
		return nil, fmt.Errorf("launcher: %w", err)
	}
	cu.Add(func() { descR.Close() })
	cu.Add(func() { descW.Close() })

	rtCP, initCP, err := ipc.NewCheckpointPair()
	if err != nil {
		return nil, fmt.Errorf("launcher: %w", err)
	}

	rtConn, initConnFile, err := ipc.SocketpairForExec()
	if err != nil {
		return nil, fmt.Errorf("launcher: %w", err)
	}
	cu.Add(func() { rtConn.Close() })

	notifyFile := initCP.NotifyFile("nsbox-init-cp-notify")
	waitFile := initCP.WaitFile("nsbox-init-cp-wait")
	cu.Add(func() { notifyFile.Close() })
	cu.Add(func() { waitFile.Close() })
	cu.Add(func() { initConnFile.Close() })

	cmd := exec.Command(l.initPath)
	cmd.Args[0] = "nsbox-init"
	cmd.SysProcAttr = &unix.SysProcAttr{
		Cloneflags: unix.CLONE_NEWPID | unix.CLONE_NEWNS,
		Setpgid:    true,
	}
	// Fixed fd order, matching initproc.DescriptorFD..ConsoleFD: os/exec
	// places ExtraFiles starting at fd 3.
	cmd.ExtraFiles = []*os.File{descR, notifyFile, waitFile, initConnFile}
	if a.Console != nil {
		cu.Add(func() { a.Console.Close() })
		cmd.ExtraFiles = append(cmd.ExtraFiles, a.Console)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launcher: starting trampoline: %w", err)
	}
	cu.Release()

	// The child has its own copies of every donated fd now; close ours.
	for _, f := range cmd.ExtraFiles {
		f.Close()
	}

	if _, err := descW.Write(descBuf.Bytes()); err != nil {
		descW.Close()
		rtConn.Close()
		return nil, fmt.Errorf("launcher: writing descriptor: %w", err)
	}
	descW.Close()

	p := &Process{
		name:  a.Name,
		key:   a.Name.String(),
		bus:   l.bus,
		cmd:   cmd,
		pid:   cmd.Process.Pid,
		cp:    rtCP,
		conn:  container.NewConn(rtConn),
		argv:  argv,
		env:   env,
		state: Created,
		done:  make(chan struct{}),
		l:     l,
	}
	l.register(p.key, p)
	go p.watch()

	return p, nil
}

// buildArgv applies spec §4.5's exact replace-wholesale rule: per-call args
// replace the manifest's entirely, or the manifest's (possibly empty) args
// are used. argv[0] is always the init path.
func buildArgv(initPath string, manifestArgs, override []string) []string {
	args := manifestArgs
	if override != nil {
		args = override
	}
	return append([]string{initPath}, args...)
}

// buildEnv applies spec §4.5's exact merge order: name, then version, then
// manifest entries not shadowed by an override, then every override.
func buildEnv(name container.Name, manifestEnv, override map[string]string) []string {
	env := []string{
		fmt.Sprintf("%s=%s", container.EnvName, name.Name),
		fmt.Sprintf("%s=%s", container.EnvVersion, name.Version),
	}

	keys := make([]string, 0, len(manifestEnv))
	for k := range manifestEnv {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, shadowed := override[k]; shadowed {
			continue
		}
		env = append(env, fmt.Sprintf("%s=%s", k, manifestEnv[k]))
	}

	okeys := make([]string, 0, len(override))
	for k := range override {
		okeys = append(okeys, k)
	}
	sort.Strings(okeys)
	for _, k := range okeys {
		env = append(env, fmt.Sprintf("%s=%s", k, override[k]))
	}
	return env
}

// resolveGroups resolves supplementary group names to gids, warning and
// skipping any name the system does not recognize rather than failing the
// whole launch (spec §4.5, grounded on the original's groups() lookup).
func resolveGroups(names []string) []uint32 {
	gids := make([]uint32, 0, len(names))
	for _, name := range names {
		g, err := user.LookupGroup(name)
		if err != nil {
			log.Warningf("launcher: unknown supplementary group %q, skipping: %v", name, err)
			continue
		}
		gid, err := strconv.ParseUint(g.Gid, 10, 32)
		if err != nil {
			log.Warningf("launcher: group %q has non-numeric gid %q, skipping", name, g.Gid)
			continue
		}
		gids = append(gids, uint32(gid))
	}
	return gids
}
