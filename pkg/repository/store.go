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

// Package repository resolves a container name to the manifest and rootfs
// the launcher needs to create it. The manifest schema's own business
// logic (image pulls, verification, layering) is an external collaborator
// this package does not attempt to reimplement; it only reads the
// already-unpacked directory layout a real collaborator would produce.
package repository

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/BurntSushi/toml"

	"github.com/nsbox/nsbox/pkg/container"
)

// Entry is one on-disk container the store knows about:
// <root>/<repo-id>/<name>/<version>/manifest.toml next to a rootfs/ directory.
type Entry struct {
	Name     container.Name
	Dir      string
	Manifest container.Manifest
}

// Store is a directory of repositories, each a top-level subdirectory of
// Root keyed by repository id.
type Store struct {
	// Root holds one subdirectory per repository id.
	Root string

	mu        sync.Mutex
	manifests map[string]container.Manifest // keyed by manifest.toml path
}

// New creates a Store rooted at dir.
func New(dir string) *Store {
	return &Store{Root: dir, manifests: make(map[string]container.Manifest)}
}

// cached returns a previously-decoded manifest for path, if Resolve has
// already loaded it. Repeated Resolve calls for a long-running container
// are common (the control plane re-resolves on every Start), so this
// avoids re-parsing TOML off disk each time.
func (s *Store) cached(path string) (container.Manifest, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.manifests[path]
	return m, ok
}

func (s *Store) remember(path string, m container.Manifest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.manifests[path] = m
}

// Repositories lists every repository id under Root, keyed by directory
// name with its absolute path as the value.
func (s *Store) Repositories() (map[string]string, error) {
	entries, err := os.ReadDir(s.Root)
	if err != nil {
		return nil, fmt.Errorf("repository: reading %s: %w", s.Root, err)
	}
	out := make(map[string]string, len(entries))
	for _, e := range entries {
		if e.IsDir() {
			out[e.Name()] = filepath.Join(s.Root, e.Name())
		}
	}
	return out, nil
}

// Containers lists every name:version pair across every repository, sorted
// for stable output.
func (s *Store) Containers() ([]container.Name, error) {
	repos, err := s.Repositories()
	if err != nil {
		return nil, err
	}
	var names []container.Name
	for _, repoDir := range repos {
		entries, err := os.ReadDir(repoDir)
		if err != nil {
			return nil, fmt.Errorf("repository: reading %s: %w", repoDir, err)
		}
		for _, c := range entries {
			if !c.IsDir() {
				continue
			}
			nameDir := filepath.Join(repoDir, c.Name())
			versions, err := os.ReadDir(nameDir)
			if err != nil {
				return nil, fmt.Errorf("repository: reading %s: %w", nameDir, err)
			}
			for _, v := range versions {
				if !v.IsDir() {
					continue
				}
				names = append(names, container.Name{Name: c.Name(), Version: v.Name()})
			}
		}
	}
	sort.Slice(names, func(i, j int) bool {
		if names[i].Name != names[j].Name {
			return names[i].Name < names[j].Name
		}
		return names[i].Version < names[j].Version
	})
	return names, nil
}

// Resolve loads the manifest and rootfs directory for name, searching every
// repository for a matching subdirectory.
func (s *Store) Resolve(name container.Name) (*Entry, error) {
	repos, err := s.Repositories()
	if err != nil {
		return nil, err
	}
	for _, repoDir := range repos {
		dir := filepath.Join(repoDir, name.Name, name.Version)
		manifestPath := filepath.Join(dir, "manifest.toml")
		if _, err := os.Stat(manifestPath); err != nil {
			continue
		}

		m, ok := s.cached(manifestPath)
		if !ok {
			if _, err := toml.DecodeFile(manifestPath, &m); err != nil {
				return nil, fmt.Errorf("repository: decoding %s: %w", manifestPath, err)
			}
			s.remember(manifestPath, m)
		}
		return &Entry{Name: name, Dir: filepath.Join(dir, "rootfs"), Manifest: m}, nil
	}
	return nil, fmt.Errorf("repository: no manifest found for %s", name)
}
