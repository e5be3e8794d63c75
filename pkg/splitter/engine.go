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

package splitter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rhelmot/CelesteAutosplitterCore/pkg/celeste"
)

const (
	creditsPrefix = "credits"
	// startWindow bounds the timer value at which a rising timer flag
	// still counts as the start of a run.
	startWindow = time.Second

	VarStrawberries = "Strawberries"
	VarLevelTimer   = "Level Timer"
	VarLevel        = "Level"
)

// Options are the engine switches read from the settings surface.
type Options struct {
	LevelTimer bool
}

// RunState is the progress of one session. The zero value is the state
// of a fresh session.
type RunState struct {
	// SplitIndex is the position of the next rule in the route.
	SplitIndex int
	// Exiting is set once the current chapter rule saw its completion and
	// waits to leave the completion screen.
	Exiting bool

	LastCompleted   bool
	LastLevel       string
	LastCassette    bool
	LastHeart       bool
	LastShowInputUI bool
	LastTimerActive bool
}

// ActionKind is a timer operation.
type ActionKind uint8

const (
	ActStart ActionKind = iota + 1
	ActReset
	ActSplit
	ActSetGameTime
	ActPauseGameTime
	ActSetVariable
)

func (k ActionKind) String() string {
	switch k {
	case ActStart:
		return "start"
	case ActReset:
		return "reset"
	case ActSplit:
		return "split"
	case ActSetGameTime:
		return "set-game-time"
	case ActPauseGameTime:
		return "pause-game-time"
	case ActSetVariable:
		return "set-variable"
	}
	return fmt.Sprintf("ActionKind(%d)", uint8(k))
}

// Action is one operation for the timer. Time is set for ActSetGameTime,
// Key and Value for ActSetVariable and Rule for ActSplit.
type Action struct {
	Kind  ActionKind
	Time  time.Duration
	Key   string
	Value string
	Rule  string
}

func (a Action) String() string {
	switch a.Kind {
	case ActSetGameTime:
		return fmt.Sprintf("%v %v", a.Kind, a.Time)
	case ActSetVariable:
		return fmt.Sprintf("%v %s=%q", a.Kind, a.Key, a.Value)
	case ActSplit:
		return fmt.Sprintf("%v %s", a.Kind, a.Rule)
	}
	return a.Kind.String()
}

// Step runs one tick. It derives the next state and the timer actions from
// the previous state, this tick's snapshot and the route. All rules are
// checked against the previous tick's values, which are replaced only
// after evaluation.
func Step(prev RunState, snap *celeste.Snapshot, route []Rule, opts Options) (RunState, []Action) {
	next := prev
	var actions []Action

	if started(&prev, snap, opts) {
		next = RunState{}
		actions = append(actions,
			Action{Kind: ActReset},
			Action{Kind: ActStart},
			Action{Kind: ActPauseGameTime},
		)
		actions = append(actions, Variables(snap, opts)...)
	} else {
		// game time goes out first so a split lands on this tick's time
		actions = append(actions, Variables(snap, opts)...)
		if next.SplitIndex < len(route) {
			rule := &route[next.SplitIndex]
			if fire(&next, &prev, rule, snap, opts) {
				next.Exiting = false
				next.SplitIndex++
				actions = append(actions, Action{Kind: ActSplit, Rule: rule.ID})
			}
		}
	}

	next.LastCompleted = snap.Completed
	next.LastLevel = snap.Level
	next.LastCassette = snap.ChapterCassette
	next.LastHeart = snap.ChapterHeart
	next.LastShowInputUI = snap.ShowInputUI
	next.LastTimerActive = snap.TimerActive
	return next, actions
}

// Variables returns the displayed variables and game time for snap.
func Variables(snap *celeste.Snapshot, opts Options) []Action {
	return []Action{
		{Kind: ActSetGameTime, Time: Elapsed(snap, opts)},
		{Kind: ActSetVariable, Key: VarStrawberries, Value: strconv.Itoa(int(snap.FileStrawberries))},
		{Kind: ActSetVariable, Key: VarLevelTimer, Value: fmt.Sprintf("%.2fs", snap.LevelTime.Seconds())},
		{Kind: ActSetVariable, Key: VarLevel, Value: snap.Level},
	}
}

// Elapsed is the game time reported to the timer.
func Elapsed(snap *celeste.Snapshot, opts Options) time.Duration {
	if opts.LevelTimer {
		return snap.LevelTime
	}
	return snap.FileTime
}

// started reports the beginning of a new run. Legacy builds start when
// the file select input prompt closes; current builds start when the
// game's own timer starts from zero.
func started(prev *RunState, snap *celeste.Snapshot, opts Options) bool {
	if snap.Runtime == celeste.RuntimeLegacy {
		return !snap.ShowInputUI && prev.LastShowInputUI && snap.MenuType == celeste.MenuFileSelect
	}
	return snap.TimerActive && !prev.LastTimerActive && Elapsed(snap, opts) < startWindow
}

// Debounce returns the level token to compare this tick: empty when the
// token did not change since the previous tick.
func Debounce(prev *RunState, level string) string {
	if level == prev.LastLevel {
		return ""
	}
	return level
}

// fire evaluates rule. It may update next.Exiting.
func fire(next, prev *RunState, rule *Rule, snap *celeste.Snapshot, opts Options) bool {
	switch rule.Kind {
	case ChapterComplete:
		return chapterFires(next, prev, rule, snap, opts)
	case Checkpoint:
		token := Debounce(prev, snap.Level)
		return snap.AreaID == rule.Area && token != "" && token == rule.Token(snap.Mode)
	case Cassette:
		return snap.AreaID == rule.Area && snap.ChapterCassette && !prev.LastCassette
	case HeartGem:
		return snap.AreaID == rule.Area && snap.ChapterHeart && !prev.LastHeart
	}
	return false
}

func chapterFires(next, prev *RunState, rule *Rule, snap *celeste.Snapshot, opts Options) bool {
	if !prev.Exiting {
		inArea := rule.AnyArea || snap.AreaID == rule.Area
		guard := true
		if !rule.AnyArea && rule.Area == celeste.TheSummit {
			guard = !strings.HasPrefix(snap.Level, creditsPrefix)
		}
		next.Exiting = inArea && snap.Completed && !prev.LastCompleted && guard
		return next.Exiting && opts.LevelTimer
	}
	return !snap.Completed && prev.LastCompleted
}

// Advance moves past the current rule without a match, for splits driven
// by the user or the host.
func Advance(prev RunState, route []Rule) (RunState, []Action) {
	if prev.SplitIndex >= len(route) {
		return prev, nil
	}
	id := route[prev.SplitIndex].ID
	prev.SplitIndex++
	prev.Exiting = false
	return prev, []Action{{Kind: ActSplit, Rule: id}}
}
