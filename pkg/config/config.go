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

// Package config loads the nsbox runtime's own configuration, as opposed to
// a container's manifest (which is an external collaborator's concern).
package config

import (
	"runtime"
	"time"

	"github.com/BurntSushi/toml"
)

// Config is the runtime-wide configuration, loaded once at startup.
type Config struct {
	// SocketPath is where the control-plane server listens, host:port.
	SocketPath string `toml:"socket_path"`

	// NetnsRoot is the directory that network namespace names are resolved
	// against. Defaults to the platform's well-known netns directory.
	NetnsRoot string `toml:"netns_root"`

	// LogLevel is a logrus level name ("debug", "info", "warning", "error").
	LogLevel string `toml:"log_level"`

	// SpawnTimeout bounds how long spawn waits for init's checkpoint
	// acknowledgement before killing the process group.
	SpawnTimeout time.Duration `toml:"spawn_timeout"`

	// StateDir holds the runtime's lock file and per-container bookkeeping.
	StateDir string `toml:"state_dir"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		SocketPath:   "127.0.0.1:4200",
		NetnsRoot:    defaultNetnsRoot(),
		LogLevel:     "info",
		SpawnTimeout: 5 * time.Second,
		StateDir:     "/var/run/nsbox",
	}
}

// defaultNetnsRoot returns the well-known netns directory for the platform,
// per spec §6: /var/run/netns on Linux, /run/netns on Android.
func defaultNetnsRoot() string {
	if runtime.GOOS == "android" {
		return "/run/netns"
	}
	return "/var/run/netns"
}

// Load reads a TOML config file, falling back to Default for any field the
// file does not set.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
