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

// Package test drives sessions through scripted game states on synthetic
// process images and checks the timer calls they produce.
package test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"testing"

	"github.com/rhelmot/CelesteAutosplitterCore/pkg/celeste"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/celeste/celestetest"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/proc"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/session"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/splitter"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/timer"
)

// Build selects the game build a scenario runs against.
type Build string

const (
	BuildXna    Build = "xna"
	BuildOpenGl Build = "opengl"
	BuildItch   Build = "itch"
	BuildMono   Build = "mono"
)

// TestScenario defines a complete test scenario
type TestScenario struct {
	Name     string
	Build    Build
	Settings splitter.Settings
	Frames   []Frame
	// Expected lists the timer operations, as reported by
	// timer.Recorder.Ops.
	Expected []string
	// SplitIndex is the route position after the last frame.
	SplitIndex int
	// Attached is the attachment state after the last frame.
	Attached bool
}

// Frame is one tick of a scenario.
type Frame struct {
	// State is written to the game before the tick.
	State celeste.Snapshot
	// Exit terminates the game instead of writing State.
	Exit bool
	// Advance issues a manual split instead of a tick.
	Advance bool
	// Err is the error the tick must match with errors.Is.
	Err error
}

// TestFramework manages scenario execution
type TestFramework struct {
	t         *testing.T
	scenarios []TestScenario
}

// NewTestFramework creates a new test framework instance
func NewTestFramework(t *testing.T) *TestFramework {
	return &TestFramework{t: t}
}

// AddScenario adds a test scenario to the framework
func (tf *TestFramework) AddScenario(scenario TestScenario) {
	tf.scenarios = append(tf.scenarios, scenario)
}

// RunAll runs all registered test scenarios
func (tf *TestFramework) RunAll() {
	for _, scenario := range tf.scenarios {
		tf.t.Run(scenario.Name, func(t *testing.T) {
			if err := tf.runScenario(scenario); err != nil {
				t.Error(err)
			}
		})
	}
}

// gameAttacher hands out the scenario's game until it exits.
type gameAttacher struct {
	game   *celestetest.Game
	exited bool
	calls  int
}

func (a *gameAttacher) Attach(context.Context) (*session.Attachment, error) {
	a.calls++
	if a.exited {
		return nil, proc.ErrProcessNotFound
	}
	return session.NewAttachment(1000, a.game.Reader(), nil), nil
}

func newGame(b Build) (*celestetest.Game, error) {
	switch b {
	case BuildXna:
		return celestetest.NewLegacy(celeste.Xna), nil
	case BuildOpenGl:
		return celestetest.NewLegacy(celeste.OpenGl), nil
	case BuildItch:
		return celestetest.NewLegacy(celeste.Itch), nil
	case BuildMono, "":
		return celestetest.NewMono(), nil
	}
	return nil, fmt.Errorf("unknown build %q", b)
}

// runScenario executes a single test scenario
func (tf *TestFramework) runScenario(scenario TestScenario) error {
	tf.t.Logf("Running scenario: %s", scenario.Name)

	game, err := newGame(scenario.Build)
	if err != nil {
		return err
	}
	att := &gameAttacher{game: game}
	rec := &timer.Recorder{}
	sess := session.New(att, rec, session.StaticSettings(scenario.Settings))
	ctx := context.Background()

	for i, f := range scenario.Frames {
		if f.Advance {
			sess.Advance()
			continue
		}
		if f.Exit {
			game.Img.Exit()
			att.exited = true
		} else if !att.exited {
			game.Set(f.State)
		}
		err := sess.Update(ctx)
		switch {
		case f.Err == nil && err != nil:
			return fmt.Errorf("frame %d: unexpected error: %w", i, err)
		case f.Err != nil && !errors.Is(err, f.Err):
			return fmt.Errorf("frame %d: got error %v, want %v", i, err, f.Err)
		}
	}

	return tf.validateResults(scenario, sess, rec)
}

// validateResults compares the session and the recorded timer calls
// against the scenario's expectations.
func (tf *TestFramework) validateResults(scenario TestScenario, sess *session.Session, rec *timer.Recorder) error {
	ops := rec.Ops()
	tf.t.Logf("  timer operations: %v", ops)
	if !slices.Equal(ops, scenario.Expected) {
		return fmt.Errorf("timer operations = %v, want %v", ops, scenario.Expected)
	}
	st := sess.Status()
	if st.SplitIndex != scenario.SplitIndex {
		return fmt.Errorf("split index = %d, want %d", st.SplitIndex, scenario.SplitIndex)
	}
	if st.Attached != scenario.Attached {
		return fmt.Errorf("attached = %v, want %v", st.Attached, scenario.Attached)
	}
	return nil
}
