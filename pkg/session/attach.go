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

package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-delve/delve/pkg/logflags"
	"golang.org/x/time/rate"

	"github.com/rhelmot/CelesteAutosplitterCore/pkg/celeste"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/mono"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/proc"
)

// GameAssembly is the managed assembly holding the game classes.
const GameAssembly = "Celeste"

// ErrThrottled is returned when an attach attempt is skipped because the
// previous one was too recent.
var ErrThrottled = errors.New("attach throttled")

// DefaultProcessNames are the executable names of the supported builds.
var DefaultProcessNames = []string{"Celeste.exe", "Celeste.bin.x86_64", "Celeste"}

// Attachment is an attached game process and the reader matching its
// runtime.
type Attachment struct {
	Pid    int
	Reader celeste.Reader
	closer func() error
}

// NewAttachment wraps a reader. closer may be nil.
func NewAttachment(pid int, r celeste.Reader, closer func() error) *Attachment {
	return &Attachment{Pid: pid, Reader: r, closer: closer}
}

// Close releases the process.
func (a *Attachment) Close() error {
	if a == nil || a.closer == nil {
		return nil
	}
	return a.closer()
}

// Attacher finds the game and prepares a reader for it.
type Attacher interface {
	Attach(ctx context.Context) (*Attachment, error)
}

// LiveAttacher attaches to a running game found by executable name.
type LiveAttacher struct {
	names   []string
	layout  *mono.Layout
	limiter *rate.Limiter
	find    func(name string) ([]int, error)
	open    func(pid int) (proc.Process, error)
}

// NewLiveAttacher returns an attacher trying names in order, at most once
// per interval.
func NewLiveAttacher(names []string, layout *mono.Layout, interval time.Duration) *LiveAttacher {
	if len(names) == 0 {
		names = DefaultProcessNames
	}
	if layout == nil {
		layout = &mono.DefaultLayout
	}
	return &LiveAttacher{
		names:   names,
		layout:  layout,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		find:    proc.FindProcesses,
		open:    proc.OpenProcess,
	}
}

// Attach tries every process matching one of the names until one of them
// turns out to be the game. Launchers and other processes sharing a name
// fail to open and are skipped; the last such failure is returned.
func (a *LiveAttacher) Attach(ctx context.Context) (*Attachment, error) {
	if !a.limiter.Allow() {
		return nil, ErrThrottled
	}
	var lastErr error
	seen := map[int]bool{}
	for _, name := range a.names {
		pids, err := a.find(name)
		if err != nil {
			if errors.Is(err, proc.ErrProcessNotFound) {
				continue
			}
			return nil, err
		}
		for _, pid := range pids {
			if seen[pid] {
				continue
			}
			seen[pid] = true
			att, err := a.attachPid(ctx, pid)
			if err == nil {
				return att, nil
			}
			logflags.DebuggerLogger().Debugf("pid %d (%s): %v", pid, name, err)
			lastErr = err
		}
	}
	if lastErr != nil {
		return nil, lastErr
	}
	return nil, proc.ErrProcessNotFound
}

func (a *LiveAttacher) attachPid(ctx context.Context, pid int) (*Attachment, error) {
	p, err := a.open(pid)
	if err != nil {
		return nil, err
	}
	att, err := Open(ctx, p, a.layout)
	if err != nil {
		p.Close()
		return nil, err
	}
	return att, nil
}

// Open prepares a reader for p. 32-bit processes run a legacy build and
// are located by signature; 64-bit processes expose runtime metadata.
func Open(ctx context.Context, p proc.Process, layout *mono.Layout) (*Attachment, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if p.PointerSize() == 4 {
		regions, err := p.Regions()
		if err != nil {
			return nil, err
		}
		return OpenLegacy(p, p.Pid(), regions, p.Close)
	}
	domain, err := mono.RootDomain(p, layout)
	if err != nil {
		return nil, err
	}
	return OpenDomain(p, p.Pid(), layout, domain, p.Close)
}

// OpenLegacy locates the static instance field of a legacy build in
// regions.
func OpenLegacy(mem proc.MemoryReader, pid int, regions []proc.Region, closer func() error) (*Attachment, error) {
	version, base, err := celeste.FindLegacyBase(mem, regions)
	if err != nil {
		return nil, err
	}
	logflags.DebuggerLogger().Infof("attached to pid %d: legacy %v build, base %v", pid, version, base)
	return NewAttachment(pid, celeste.NewLegacyReader(mem, version, base), closer), nil
}

// OpenDomain finds the game image among the assemblies of domain.
func OpenDomain(mem proc.MemoryReader, pid int, layout *mono.Layout, domain proc.Address, closer func() error) (*Attachment, error) {
	res := mono.NewResolver(mem, layout)
	image, err := res.FindImage(domain, GameAssembly)
	if err != nil {
		return nil, fmt.Errorf("find %s image: %w", GameAssembly, err)
	}
	table := res.ClassCache(image)
	logflags.DebuggerLogger().Infof("attached to pid %d: %s runtime, class cache %v", pid, layout.Name, proc.Address(table))
	return NewAttachment(pid, celeste.NewMonoReader(mem, layout, table), closer), nil
}
