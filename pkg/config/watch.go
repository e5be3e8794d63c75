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

package config

import (
	"context"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/go-delve/delve/pkg/logflags"

	"github.com/rhelmot/CelesteAutosplitterCore/pkg/splitter"
)

// reloadDelay collapses the burst of events an editor save produces.
const reloadDelay = 100 * time.Millisecond

// Live holds the current split settings and is safe for concurrent use.
type Live struct {
	p atomic.Pointer[splitter.Settings]
}

// NewLive returns a Live holding s.
func NewLive(s splitter.Settings) *Live {
	l := &Live{}
	l.Set(s)
	return l
}

// Set replaces the settings.
func (l *Live) Set(s splitter.Settings) {
	l.p.Store(&s)
}

// Settings returns the current settings.
func (l *Live) Settings() splitter.Settings {
	if s := l.p.Load(); s != nil {
		return *s
	}
	return splitter.Settings{}
}

// Watch reloads path whenever it changes and calls onChange with every
// configuration that loads and validates. Invalid edits are logged and
// ignored. Watch blocks until ctx is done.
func Watch(ctx context.Context, path string, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer w.Close()

	// editors replace the file, so watch the directory
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	if err := w.Add(filepath.Dir(abs)); err != nil {
		return err
	}

	var timer *time.Timer
	var fire <-chan time.Time
	for {
		select {
		case <-ctx.Done():
			if timer != nil {
				timer.Stop()
			}
			return nil
		case ev, ok := <-w.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(reloadDelay)
			} else {
				timer.Reset(reloadDelay)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			cfg, err := Load(path)
			if err != nil {
				logflags.DebuggerLogger().Warnf("reload %s: %v", path, err)
				continue
			}
			logflags.DebuggerLogger().Infof("reloaded %s", path)
			onChange(cfg)
		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			logflags.DebuggerLogger().Warnf("watch %s: %v", path, err)
		}
	}
}
