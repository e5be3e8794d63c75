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

// Package session owns an attached game process and the progress of the
// current run, and turns each tick into timer calls.
package session

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/go-delve/delve/pkg/logflags"

	"github.com/rhelmot/CelesteAutosplitterCore/pkg/celeste"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/metrics"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/mono"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/proc"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/splitter"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/timer"
)

// ErrorClass tells how a tick failure affects the session.
type ErrorClass uint8

const (
	// ClassNone is a successful tick.
	ClassNone ErrorClass = iota
	// ClassTransient keeps the session; the next tick retries.
	ClassTransient
	// ClassStructural drops the session; the next tick re-attaches.
	ClassStructural
	// ClassExited drops the session because the process is gone.
	ClassExited
)

func (c ErrorClass) String() string {
	switch c {
	case ClassNone:
		return "ok"
	case ClassTransient:
		return "transient"
	case ClassStructural:
		return "structural"
	case ClassExited:
		return "exited"
	}
	return "unknown"
}

// Classify maps a tick error to its class.
func Classify(err error) ErrorClass {
	switch {
	case err == nil:
		return ClassNone
	case errors.Is(err, proc.ErrProcessExited):
		return ClassExited
	case mono.IsStructural(err), errors.Is(err, celeste.ErrSnapshotInvalid):
		return ClassStructural
	}
	return ClassTransient
}

// SettingsSource provides the settings surface values, read once per
// tick.
type SettingsSource interface {
	Settings() splitter.Settings
}

// StaticSettings is a SettingsSource that never changes.
type StaticSettings splitter.Settings

func (s StaticSettings) Settings() splitter.Settings {
	return splitter.Settings(s)
}

// Session is the state of one attachment. All entry points may be called
// from different goroutines.
type Session struct {
	attacher Attacher
	timer    timer.Timer
	settings SettingsSource

	mu    sync.Mutex
	att   *Attachment
	state splitter.RunState
	last  *celeste.Snapshot
	route []string
}

// New returns a detached session.
func New(attacher Attacher, t timer.Timer, settings SettingsSource) *Session {
	return &Session{attacher: attacher, timer: t, settings: settings}
}

// Update runs one tick: attach if needed, read a snapshot, evaluate the
// route and issue timer calls. The returned error has already been
// handled; it is reported for logging.
func (s *Session) Update(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	begin := time.Now()
	err := s.update(ctx)
	class := Classify(err)
	if class == ClassStructural || class == ClassExited {
		logflags.DebuggerLogger().Warnf("dropping session: %v", err)
		s.detach()
	}
	outcome := class.String()
	if s.att == nil && class != ClassExited && class != ClassStructural {
		outcome = "detached"
	}
	metrics.Ticks.WithLabelValues(outcome).Inc()
	metrics.TickDuration.Observe(time.Since(begin).Seconds())
	return err
}

func (s *Session) update(ctx context.Context) error {
	settings := s.settings.Settings()
	if s.att == nil {
		att, err := s.attacher.Attach(ctx)
		if err != nil {
			if !errors.Is(err, ErrThrottled) {
				metrics.Attaches.WithLabelValues("failed").Inc()
			}
			return err
		}
		metrics.Attaches.WithLabelValues("ok").Inc()
		metrics.Attached.Set(1)
		s.att = att
		s.state = splitter.RunState{}
		s.last = nil
	}

	snap, err := s.att.Reader.Read()
	if err != nil {
		return err
	}

	route := s.routeFor(&settings)
	next, actions := splitter.Step(s.state, &snap, route, settings.Options())
	s.state = next
	s.last = &snap
	s.observe(actions)
	timer.Apply(s.timer, actions)
	return nil
}

// routeFor returns the route of settings. A route that differs from the
// previous tick's drops a pending chapter exit, which belonged to a rule
// of the old route.
func (s *Session) routeFor(settings *splitter.Settings) []splitter.Rule {
	route := settings.Route()
	ids := make([]string, len(route))
	for i := range route {
		ids[i] = route[i].ID
	}
	if s.route != nil && !slices.Equal(ids, s.route) {
		logflags.DebuggerLogger().Infof("route changed at split %d", s.state.SplitIndex)
		s.state.Exiting = false
	}
	s.route = ids
	return route
}

func (s *Session) observe(actions []splitter.Action) {
	for _, a := range actions {
		switch a.Kind {
		case splitter.ActStart:
			metrics.Runs.Inc()
			logflags.DebuggerLogger().Infof("run started")
		case splitter.ActSplit:
			metrics.Splits.WithLabelValues(a.Rule).Inc()
			logflags.DebuggerLogger().Infof("split %s", a.Rule)
		}
	}
	metrics.SplitIndex.Set(float64(s.state.SplitIndex))
}

func (s *Session) detach() {
	if err := s.att.Close(); err != nil {
		logflags.DebuggerLogger().Debugf("close attachment: %v", err)
	}
	s.att = nil
	s.state = splitter.RunState{}
	s.last = nil
	metrics.Attached.Set(0)
}

// IsLoading always reports true so the timer only follows the game's own
// clock.
func (s *Session) IsLoading() bool {
	return true
}

// Disconnect drops the attachment and all progress.
func (s *Session) Disconnect() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.att != nil {
		s.detach()
	}
	s.state = splitter.RunState{}
	s.last = nil
}

// Advance splits on the current rule without waiting for a match. Hosts
// use it for manual and level transition rules.
func (s *Session) Advance() {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings := s.settings.Settings()
	next, actions := splitter.Advance(s.state, s.routeFor(&settings))
	s.state = next
	s.observe(actions)
	timer.Apply(s.timer, actions)
}

// Status is a point in time view of the session.
type Status struct {
	Attached   bool              `json:"attached"`
	Pid        int               `json:"pid,omitempty"`
	Runtime    string            `json:"runtime,omitempty"`
	SplitIndex int               `json:"split_index"`
	NextSplit  string            `json:"next_split,omitempty"`
	Exiting    bool              `json:"exiting"`
	Snapshot   *celeste.Snapshot `json:"snapshot,omitempty"`
}

// Status returns the current state.
func (s *Session) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := Status{
		Attached:   s.att != nil,
		SplitIndex: s.state.SplitIndex,
		Exiting:    s.state.Exiting,
	}
	if s.att != nil {
		st.Pid = s.att.Pid
		st.Runtime = s.att.Reader.Kind().String()
	}
	settings := s.settings.Settings()
	if route := settings.Route(); s.state.SplitIndex < len(route) {
		st.NextSplit = route[s.state.SplitIndex].ID
	}
	if s.last != nil {
		snap := *s.last
		st.Snapshot = &snap
	}
	return st
}

// Snapshot returns the game state read by the last successful tick.
func (s *Session) Snapshot() (celeste.Snapshot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return celeste.Snapshot{}, false
	}
	return *s.last, true
}

// State returns the run progress.
func (s *Session) State() splitter.RunState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}
