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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhelmot/CelesteAutosplitterCore/pkg/celeste"
)

func route(t *testing.T, ids ...string) []Rule {
	t.Helper()
	var out []Rule
	for _, id := range ids {
		r, ok := Lookup(id)
		require.True(t, ok, id)
		out = append(out, r)
	}
	return out
}

// run feeds ticks through Step and returns the 1-based ticks that split.
func run(state RunState, ticks []celeste.Snapshot, rules []Rule, opts Options) (RunState, []int) {
	var fired []int
	for i := range ticks {
		var actions []Action
		state, actions = Step(state, &ticks[i], rules, opts)
		for _, a := range actions {
			if a.Kind == ActSplit {
				fired = append(fired, i+1)
			}
		}
	}
	return state, fired
}

func completion(area celeste.Area, level string, completed ...bool) []celeste.Snapshot {
	out := make([]celeste.Snapshot, len(completed))
	for i, c := range completed {
		out[i] = celeste.Snapshot{Runtime: celeste.RuntimeMono, AreaID: area, Level: level, Completed: c}
	}
	return out
}

func TestDebounce(t *testing.T) {
	prev := RunState{LastLevel: "04"}
	assert.Equal(t, "", Debounce(&prev, "04"))
	assert.Equal(t, "05", Debounce(&prev, "05"))

	prev = RunState{LastLevel: "a-00"}
	assert.Equal(t, "b-00", Debounce(&prev, "b-00"))
}

func TestChapterExit(t *testing.T) {
	tests := []struct {
		name   string
		rule   string
		area   celeste.Area
		level  string
		opts   Options
		want   []int
		exited bool
	}{
		{name: "file timer fires on leaving", rule: "Chapter1", area: celeste.ForsakenCity, level: "end", want: []int{4}},
		{name: "level timer fires on completion", rule: "Chapter1", area: celeste.ForsakenCity, level: "end", opts: Options{LevelTimer: true}, want: []int{2}},
		{name: "credits guard file timer", rule: "Chapter7", area: celeste.TheSummit, level: "credits_scene"},
		{name: "credits guard level timer", rule: "Chapter7", area: celeste.TheSummit, level: "credits_scene", opts: Options{LevelTimer: true}},
		{name: "summit completion", rule: "Chapter7", area: celeste.TheSummit, level: "j-16", want: []int{4}},
		{name: "guard is case sensitive", rule: "Chapter7", area: celeste.TheSummit, level: "Credits", want: []int{4}},
		{name: "guard only for the summit", rule: "Chapter1", area: celeste.ForsakenCity, level: "credits", want: []int{4}},
		{name: "other area", rule: "Chapter1", area: celeste.OldSite, level: "end"},
		{name: "any chapter", rule: "ChapterA", area: celeste.TheSummit, level: "credits", want: []int{4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ticks := completion(tt.area, tt.level, false, true, true, false)
			state, fired := run(RunState{}, ticks, route(t, tt.rule), tt.opts)
			assert.Equal(t, tt.want, fired)
			assert.False(t, state.Exiting)
		})
	}
}

func TestChapterExitWaitsWhileExiting(t *testing.T) {
	ticks := completion(celeste.ForsakenCity, "end", false, true, true, true, true)
	state, fired := run(RunState{}, ticks, route(t, "Chapter1"), Options{})
	assert.Empty(t, fired)
	assert.True(t, state.Exiting)
	assert.Equal(t, 0, state.SplitIndex)
}

func TestCheckpoint(t *testing.T) {
	tests := []struct {
		name  string
		mode  celeste.AreaMode
		level string
		want  bool
	}{
		{name: "B side token", mode: celeste.ModeB, level: "04", want: true},
		{name: "A side rejects B token", mode: celeste.ModeA, level: "04"},
		{name: "A side token", mode: celeste.ModeA, level: "6", want: true},
		{name: "B side rejects A token", mode: celeste.ModeB, level: "6"},
		{name: "C side falls back to B", mode: celeste.ModeC, level: "04", want: true},
		{name: "unknown mode", mode: 7, level: "04"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := RunState{LastLevel: "3"}
			snap := celeste.Snapshot{AreaID: celeste.ForsakenCity, Mode: tt.mode, Level: tt.level}
			next, actions := Step(prev, &snap, route(t, "Chapter1Checkpoint1"), Options{})
			assert.Equal(t, tt.want, hasSplit(actions))
			assert.Equal(t, tt.level, next.LastLevel)
		})
	}
}

func TestCheckpointFiresOncePerTokenChange(t *testing.T) {
	rules := route(t, "Chapter4Checkpoint1", "Chapter4Checkpoint2")
	snap := func(level string) celeste.Snapshot {
		return celeste.Snapshot{AreaID: celeste.GoldenRidge, Level: level}
	}
	ticks := []celeste.Snapshot{snap("a-11"), snap("c-00"), snap("b-00"), snap("b-00"), snap("b-00"), snap("c-00"), snap("c-00")}
	state, fired := run(RunState{}, ticks, rules, Options{})
	assert.Equal(t, []int{3, 6}, fired)
	assert.Equal(t, 2, state.SplitIndex)
}

func TestCheckpointDebouncedAtStart(t *testing.T) {
	snap := celeste.Snapshot{AreaID: celeste.ForsakenCity, Level: "6"}
	_, actions := Step(RunState{LastLevel: "6"}, &snap, route(t, "Chapter1Checkpoint1"), Options{})
	assert.False(t, hasSplit(actions))
}

func TestPickups(t *testing.T) {
	rules := route(t, "Chapter2Cassette", "Chapter2HeartGem")
	ticks := []celeste.Snapshot{
		{AreaID: celeste.OldSite},
		{AreaID: celeste.OldSite, ChapterCassette: true},
		{AreaID: celeste.OldSite, ChapterCassette: true},
		{AreaID: celeste.OldSite, ChapterCassette: true, ChapterHeart: true},
	}
	state, fired := run(RunState{}, ticks, rules, Options{})
	assert.Equal(t, []int{2, 4}, fired)
	assert.Equal(t, 2, state.SplitIndex)
}

func TestOrderedRoute(t *testing.T) {
	var s Settings
	rules := s.Route()
	require.Equal(t, "Prologue", rules[0].ID)

	var ticks []celeste.Snapshot
	ticks = append(ticks, completion(celeste.Prologue, "el-06", false, true, false)...)
	ticks = append(ticks,
		celeste.Snapshot{AreaID: celeste.ForsakenCity, Level: "1"},
		celeste.Snapshot{AreaID: celeste.ForsakenCity, Level: "9b"},
		celeste.Snapshot{AreaID: celeste.ForsakenCity, Level: "6"},
		celeste.Snapshot{AreaID: celeste.ForsakenCity, Level: "9b"},
	)
	state, fired := run(RunState{}, ticks, rules, Options{})
	assert.Equal(t, []int{3, 6, 7}, fired)
	assert.Equal(t, 3, state.SplitIndex)
}

func TestRouteExhausted(t *testing.T) {
	ticks := completion(celeste.ForsakenCity, "end", false, true, false, true, false)
	state, fired := run(RunState{}, ticks, route(t, "Chapter1"), Options{})
	assert.Equal(t, []int{3}, fired)
	assert.Equal(t, 1, state.SplitIndex)
}

func TestStartLegacy(t *testing.T) {
	prev := RunState{SplitIndex: 5, Exiting: true, LastShowInputUI: true}
	snap := celeste.Snapshot{
		Runtime:      celeste.RuntimeLegacy,
		HasOverworld: true,
		MenuType:     celeste.MenuFileSelect,
		Level:        "",
	}
	next, actions := Step(prev, &snap, route(t, "Prologue"), Options{})
	require.GreaterOrEqual(t, len(actions), 3)
	assert.Equal(t, []ActionKind{ActReset, ActStart, ActPauseGameTime}, kinds(actions[:3]))
	assert.Equal(t, 0, next.SplitIndex)
	assert.False(t, next.Exiting)

	snap.MenuType = celeste.MenuMainMenu
	_, actions = Step(prev, &snap, nil, Options{})
	assert.NotContains(t, kinds(actions), ActStart)
}

func TestStartMono(t *testing.T) {
	tests := []struct {
		name  string
		prev  bool
		snap  celeste.Snapshot
		opts  Options
		start bool
	}{
		{name: "file timer begins", snap: celeste.Snapshot{TimerActive: true, FileTime: 20 * time.Millisecond}, start: true},
		{name: "timer already running", prev: true, snap: celeste.Snapshot{TimerActive: true}},
		{name: "resumed mid file", snap: celeste.Snapshot{TimerActive: true, FileTime: time.Hour}},
		{name: "level timer begins", snap: celeste.Snapshot{TimerActive: true, FileTime: time.Hour, LevelTime: 10 * time.Millisecond}, opts: Options{LevelTimer: true}, start: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.snap.Runtime = celeste.RuntimeMono
			_, actions := Step(RunState{LastTimerActive: tt.prev}, &tt.snap, nil, tt.opts)
			assert.Equal(t, tt.start, contains(kinds(actions), ActStart))
		})
	}
}

func TestVariables(t *testing.T) {
	snap := celeste.Snapshot{
		Level:            "a-02",
		FileStrawberries: 42,
		LevelTime:        83*time.Second + 456*time.Millisecond,
		FileTime:         10 * time.Minute,
	}
	got := Variables(&snap, Options{})
	assert.Equal(t, []Action{
		{Kind: ActSetGameTime, Time: 10 * time.Minute},
		{Kind: ActSetVariable, Key: VarStrawberries, Value: "42"},
		{Kind: ActSetVariable, Key: VarLevelTimer, Value: "83.46s"},
		{Kind: ActSetVariable, Key: VarLevel, Value: "a-02"},
	}, got)

	assert.Equal(t, snap.LevelTime, Elapsed(&snap, Options{LevelTimer: true}))
}

func TestAdvance(t *testing.T) {
	rules := route(t, "Manual", "LevelExit")
	state, actions := Advance(RunState{Exiting: true}, rules)
	assert.Equal(t, 1, state.SplitIndex)
	assert.False(t, state.Exiting)
	assert.Equal(t, []Action{{Kind: ActSplit, Rule: "Manual"}}, actions)

	state, _ = Advance(state, rules)
	state, actions = Advance(state, rules)
	assert.Equal(t, 2, state.SplitIndex)
	assert.Empty(t, actions)
}

func TestExternalRulesNeverFire(t *testing.T) {
	ticks := completion(celeste.ForsakenCity, "end", false, true, false)
	for _, id := range []string{"Manual", "LevelEnter", "LevelExit"} {
		_, fired := run(RunState{}, ticks, route(t, id), Options{LevelTimer: true})
		assert.Empty(t, fired, id)
	}
}

func hasSplit(actions []Action) bool {
	return contains(kinds(actions), ActSplit)
}

func kinds(actions []Action) []ActionKind {
	out := make([]ActionKind, len(actions))
	for i, a := range actions {
		out[i] = a.Kind
	}
	return out
}

func contains(ks []ActionKind, k ActionKind) bool {
	for _, x := range ks {
		if x == k {
			return true
		}
	}
	return false
}

func TestActionOrder(t *testing.T) {
	rules := route(t, "Prologue")
	opts := Options{LevelTimer: true}

	state, _ := Step(RunState{}, &celeste.Snapshot{Runtime: celeste.RuntimeMono, AreaID: celeste.Prologue, LevelTime: 10 * time.Second}, rules, opts)
	snap := celeste.Snapshot{Runtime: celeste.RuntimeMono, AreaID: celeste.Prologue, LevelTime: 20 * time.Second, Completed: true}
	_, actions := Step(state, &snap, rules, opts)
	assert.Equal(t, []ActionKind{ActSetGameTime, ActSetVariable, ActSetVariable, ActSetVariable, ActSplit}, kinds(actions))
	assert.Equal(t, 20*time.Second, actions[0].Time)

	start := celeste.Snapshot{Runtime: celeste.RuntimeMono, TimerActive: true, LevelTime: 10 * time.Millisecond}
	_, actions = Step(RunState{}, &start, rules, opts)
	assert.Equal(t, []ActionKind{ActReset, ActStart, ActPauseGameTime, ActSetGameTime, ActSetVariable, ActSetVariable, ActSetVariable}, kinds(actions))
}
