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

package repository

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/nsbox/nsbox/pkg/container"
)

const fixtureManifest = `
init_path = "/sbin/init"
args = ["-v"]

[env]
HOME = "/root"
`

func writeFixture(t *testing.T, root, repoID, name, version string) {
	t.Helper()
	dir := filepath.Join(root, repoID, name, version)
	if err := os.MkdirAll(filepath.Join(dir, "rootfs"), 0755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "manifest.toml"), []byte(fixtureManifest), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestStoreRepositories(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "local", "web", "1")
	writeFixture(t, root, "other", "db", "2")

	s := New(root)
	repos, err := s.Repositories()
	if err != nil {
		t.Fatalf("Repositories: %v", err)
	}
	if len(repos) != 2 {
		t.Fatalf("Repositories() = %v, want 2 entries", repos)
	}
	if repos["local"] != filepath.Join(root, "local") {
		t.Errorf("Repositories()[local] = %q, want %q", repos["local"], filepath.Join(root, "local"))
	}
}

func TestStoreContainersSortedAcrossRepositories(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "local", "web", "2")
	writeFixture(t, root, "local", "web", "1")
	writeFixture(t, root, "local", "api", "1")

	s := New(root)
	names, err := s.Containers()
	if err != nil {
		t.Fatalf("Containers: %v", err)
	}
	want := []container.Name{
		{Name: "api", Version: "1"},
		{Name: "web", Version: "1"},
		{Name: "web", Version: "2"},
	}
	if len(names) != len(want) {
		t.Fatalf("Containers() = %v, want %v", names, want)
	}
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Containers()[%d] = %v, want %v", i, names[i], want[i])
		}
	}
}

func TestStoreResolve(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "local", "web", "1")

	s := New(root)
	entry, err := s.Resolve(container.Name{Name: "web", Version: "1"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if entry.Manifest.InitPath != "/sbin/init" {
		t.Errorf("Manifest.InitPath = %q, want /sbin/init", entry.Manifest.InitPath)
	}
	if len(entry.Manifest.Args) != 1 || entry.Manifest.Args[0] != "-v" {
		t.Errorf("Manifest.Args = %v, want [-v]", entry.Manifest.Args)
	}
	if entry.Manifest.Env["HOME"] != "/root" {
		t.Errorf("Manifest.Env[HOME] = %q, want /root", entry.Manifest.Env["HOME"])
	}
	wantDir := filepath.Join(root, "local", "web", "1", "rootfs")
	if entry.Dir != wantDir {
		t.Errorf("entry.Dir = %q, want %q", entry.Dir, wantDir)
	}
}

func TestStoreResolveNotFound(t *testing.T) {
	root := t.TempDir()
	s := New(root)
	if _, err := s.Resolve(container.Name{Name: "missing", Version: "1"}); err == nil {
		t.Error("Resolve: expected error for unknown container, got nil")
	}
}

func TestStoreResolveCachesDecodedManifest(t *testing.T) {
	root := t.TempDir()
	writeFixture(t, root, "local", "web", "1")
	name := container.Name{Name: "web", Version: "1"}

	s := New(root)
	first, err := s.Resolve(name)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	manifestPath := filepath.Join(root, "local", "web", "1", "manifest.toml")
	if err := os.WriteFile(manifestPath, []byte(`init_path = "/sbin/changed"`), 0644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	second, err := s.Resolve(name)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if second.Manifest.InitPath != first.Manifest.InitPath {
		t.Errorf("Resolve: second call InitPath = %q, want cached %q (not re-read from disk)",
			second.Manifest.InitPath, first.Manifest.InitPath)
	}
}
