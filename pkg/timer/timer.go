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

// Package timer delivers split engine decisions to speedrun timers.
package timer

import (
	"time"

	"github.com/go-delve/delve/pkg/logflags"

	"github.com/rhelmot/CelesteAutosplitterCore/pkg/splitter"
)

// Timer is the speedrun timer driven by a session. Implementations own
// their delivery errors.
type Timer interface {
	Start()
	Reset()
	Split(rule string)
	SetGameTime(t time.Duration)
	PauseGameTime()
	SetVariable(key, value string)
}

// Apply issues actions to t in order.
func Apply(t Timer, actions []splitter.Action) {
	for _, a := range actions {
		switch a.Kind {
		case splitter.ActStart:
			t.Start()
		case splitter.ActReset:
			t.Reset()
		case splitter.ActSplit:
			t.Split(a.Rule)
		case splitter.ActSetGameTime:
			t.SetGameTime(a.Time)
		case splitter.ActPauseGameTime:
			t.PauseGameTime()
		case splitter.ActSetVariable:
			t.SetVariable(a.Key, a.Value)
		}
	}
}

// Multi fans every call out to all timers in order.
type Multi []Timer

func (m Multi) Start() {
	for _, t := range m {
		t.Start()
	}
}

func (m Multi) Reset() {
	for _, t := range m {
		t.Reset()
	}
}

func (m Multi) Split(rule string) {
	for _, t := range m {
		t.Split(rule)
	}
}

func (m Multi) SetGameTime(d time.Duration) {
	for _, t := range m {
		t.SetGameTime(d)
	}
}

func (m Multi) PauseGameTime() {
	for _, t := range m {
		t.PauseGameTime()
	}
}

func (m Multi) SetVariable(key, value string) {
	for _, t := range m {
		t.SetVariable(key, value)
	}
}

// Log writes run events to the debugger log. Game time and variable
// updates are too frequent for anything but debug level.
type Log struct{}

func (Log) Start() { logflags.DebuggerLogger().Infof("timer: start") }

func (Log) Reset() { logflags.DebuggerLogger().Infof("timer: reset") }

func (Log) Split(rule string) { logflags.DebuggerLogger().Infof("timer: split %s", rule) }

func (Log) SetGameTime(d time.Duration) {
	logflags.DebuggerLogger().Debugf("timer: game time %v", d)
}

func (Log) PauseGameTime() { logflags.DebuggerLogger().Debugf("timer: pause game time") }

func (Log) SetVariable(key, value string) {
	logflags.DebuggerLogger().Debugf("timer: %s = %q", key, value)
}

// Recorder keeps every call, for tests and snapshots of a tick.
type Recorder struct {
	Calls []Call
}

// Call is one recorded timer call.
type Call struct {
	Op    string
	Rule  string
	Time  time.Duration
	Key   string
	Value string
}

func (r *Recorder) Start()            { r.Calls = append(r.Calls, Call{Op: "start"}) }
func (r *Recorder) Reset()            { r.Calls = append(r.Calls, Call{Op: "reset"}) }
func (r *Recorder) Split(rule string) { r.Calls = append(r.Calls, Call{Op: "split", Rule: rule}) }
func (r *Recorder) PauseGameTime()    { r.Calls = append(r.Calls, Call{Op: "pause"}) }

func (r *Recorder) SetGameTime(d time.Duration) {
	r.Calls = append(r.Calls, Call{Op: "time", Time: d})
}

func (r *Recorder) SetVariable(key, value string) {
	r.Calls = append(r.Calls, Call{Op: "var", Key: key, Value: value})
}

// Ops returns the recorded operation names, skipping the per-tick time
// and variable updates.
func (r *Recorder) Ops() []string {
	var out []string
	for _, c := range r.Calls {
		switch c.Op {
		case "time", "var":
			continue
		case "split":
			out = append(out, "split:"+c.Rule)
		default:
			out = append(out, c.Op)
		}
	}
	return out
}
