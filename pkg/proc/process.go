// Copyright 2025 CloudWeGo Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package proc

import (
	"errors"
	"path/filepath"
	"strings"
)

var (
	// ErrProcessNotFound is returned when no running process matches.
	ErrProcessNotFound = errors.New("process not found")
	// ErrUnsupported is returned by backends unavailable on this platform.
	ErrUnsupported = errors.New("not supported on this platform")
)

// Module is a file mapped into the target.
type Module struct {
	Name string
	Path string
	Base Address
	Size uint64
}

// Process is an attached, still running target. Reads are uncached and
// never retried.
type Process interface {
	MemoryReader
	Pid() int
	// PointerSize is 4 for 32-bit targets and 8 otherwise.
	PointerSize() int
	// Regions lists readable regions in increasing address order.
	Regions() ([]Region, error)
	Modules() ([]Module, error)
	Close() error
}

// matchName compares a process name against the wanted executable name,
// ignoring directories and a trailing ".exe".
func matchName(have, want string) bool {
	norm := func(s string) string {
		s = strings.ToLower(filepath.Base(s))
		return strings.TrimSuffix(s, ".exe")
	}
	return have != "" && norm(have) == norm(want)
}

// mapping is one mapped range of a target's address space.
type mapping struct {
	start, end Address
	readable   bool
	path       string
}

// modulesOf groups file backed mappings by path.
func modulesOf(maps []mapping) []Module {
	var mods []Module
	index := map[string]int{}
	for _, m := range maps {
		if !strings.HasPrefix(m.path, "/") {
			continue
		}
		i, ok := index[m.path]
		if !ok {
			index[m.path] = len(mods)
			mods = append(mods, Module{Name: filepath.Base(m.path), Path: m.path, Base: m.start, Size: uint64(m.end.Sub(m.start))})
			continue
		}
		if end := m.end; end > mods[i].Base.Add(int64(mods[i].Size)) {
			mods[i].Size = uint64(end.Sub(mods[i].Base))
		}
	}
	return mods
}
