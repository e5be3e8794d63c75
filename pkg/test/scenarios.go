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

package test

import (
	"time"

	"github.com/rhelmot/CelesteAutosplitterCore/pkg/celeste"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/proc"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/splitter"
)

func fileSelect(showInputUI bool) celeste.Snapshot {
	return celeste.Snapshot{
		AreaID:       celeste.Menu,
		HasOverworld: true,
		ShowInputUI:  showInputUI,
		MenuType:     celeste.MenuFileSelect,
	}
}

func at(area celeste.Area, level string, completed bool) celeste.Snapshot {
	return celeste.Snapshot{AreaID: area, Level: level, Completed: completed}
}

// LegacyAnyPercentScenario starts from file select on a legacy build and
// splits on the prologue and the first checkpoint.
var LegacyAnyPercentScenario = TestScenario{
	Name:  "legacy any% opening",
	Build: BuildOpenGl,
	Frames: []Frame{
		{State: fileSelect(true)},
		{State: fileSelect(false)},
		{State: at(celeste.Prologue, "0", false)},
		{State: at(celeste.Prologue, "end", true)},
		{State: at(celeste.Prologue, "end", true)},
		{State: at(celeste.Prologue, "end", false)},
		{State: at(celeste.ForsakenCity, "1", false)},
		{State: at(celeste.ForsakenCity, "6", false)},
		{State: at(celeste.ForsakenCity, "6", false)},
		{State: at(celeste.ForsakenCity, "6a", false)},
	},
	Expected:   []string{"reset", "start", "pause", "split:Prologue", "split:Chapter1Checkpoint1"},
	SplitIndex: 2,
	Attached:   true,
}

// LevelTimerScenario splits as soon as the chapter completes when level
// time is selected.
var LevelTimerScenario = TestScenario{
	Name:  "level timer splits on completion",
	Build: BuildMono,
	Settings: splitter.Settings{
		Values: map[string]bool{splitter.LevelTimerID: true},
		Order:  []string{"Chapter1", "Chapter2"},
	},
	Frames: []Frame{
		{State: at(celeste.ForsakenCity, "end", false)},
		{State: at(celeste.ForsakenCity, "end", true)},
		{State: at(celeste.ForsakenCity, "end", true)},
		{State: at(celeste.ForsakenCity, "end", false)},
		{State: at(celeste.OldSite, "start", false)},
	},
	Expected:   []string{"split:Chapter1"},
	SplitIndex: 1,
	Attached:   true,
}

// SummitCreditsScenario ignores the completion flag raised by the
// credits scene of the summit.
var SummitCreditsScenario = TestScenario{
	Name:     "summit credits do not split",
	Build:    BuildXna,
	Settings: splitter.Settings{Order: []string{"Chapter7"}},
	Frames: []Frame{
		{State: at(celeste.TheSummit, "credits-summit", false)},
		{State: at(celeste.TheSummit, "credits-summit", true)},
		{State: at(celeste.TheSummit, "credits-summit", false)},
		{State: at(celeste.TheSummit, "end", true)},
		{State: at(celeste.TheSummit, "end", false)},
	},
	Expected:   []string{"split:Chapter7"},
	SplitIndex: 1,
	Attached:   true,
}

// CSideCheckpointScenario matches a C-side checkpoint by its B-side
// level.
var CSideCheckpointScenario = TestScenario{
	Name:     "c side checkpoint uses b side level",
	Build:    BuildItch,
	Settings: splitter.Settings{Order: []string{"Chapter1Checkpoint1"}},
	Frames: []Frame{
		{State: celeste.Snapshot{AreaID: celeste.ForsakenCity, Mode: celeste.ModeC, Level: "00"}},
		{State: celeste.Snapshot{AreaID: celeste.ForsakenCity, Mode: celeste.ModeC, Level: "04"}},
	},
	Expected:   []string{"split:Chapter1Checkpoint1"},
	SplitIndex: 1,
	Attached:   true,
}

// PickupScenario splits on collectibles in route order.
var PickupScenario = TestScenario{
	Name:     "cassette and heart pickups",
	Build:    BuildMono,
	Settings: splitter.Settings{Order: []string{"Chapter2Cassette", "Chapter2HeartGem"}},
	Frames: []Frame{
		{State: celeste.Snapshot{AreaID: celeste.OldSite, Level: "a"}},
		{State: celeste.Snapshot{AreaID: celeste.OldSite, Level: "b", ChapterCassette: true}},
		{State: celeste.Snapshot{AreaID: celeste.OldSite, Level: "c", ChapterCassette: true, ChapterHeart: true}},
	},
	Expected:   []string{"split:Chapter2Cassette", "split:Chapter2HeartGem"},
	SplitIndex: 2,
	Attached:   true,
}

// MonoTimerStartScenario starts a run when the file timer starts from
// zero and not when it resumes later.
var MonoTimerStartScenario = TestScenario{
	Name:  "mono run starts with the file timer",
	Build: BuildMono,
	Frames: []Frame{
		{State: celeste.Snapshot{AreaID: celeste.Menu}},
		{State: celeste.Snapshot{AreaID: celeste.Prologue, TimerActive: true, FileTime: 200 * time.Millisecond}},
		{State: celeste.Snapshot{AreaID: celeste.Prologue, TimerActive: true, FileTime: 5 * time.Second}},
		{State: celeste.Snapshot{AreaID: celeste.Menu, FileTime: 10 * time.Minute}},
		{State: celeste.Snapshot{AreaID: celeste.ForsakenCity, TimerActive: true, FileTime: 10 * time.Minute}},
	},
	Expected: []string{"reset", "start", "pause"},
	Attached: true,
}

// ProcessExitScenario drops the session when the game exits.
var ProcessExitScenario = TestScenario{
	Name:     "process exit drops the session",
	Build:    BuildMono,
	Settings: splitter.Settings{Order: []string{"Manual", "Chapter1"}},
	Frames: []Frame{
		{State: at(celeste.ForsakenCity, "1", false)},
		{Advance: true},
		{Exit: true, Err: proc.ErrProcessExited},
		{Err: proc.ErrProcessNotFound},
	},
	Expected: []string{"split:Manual"},
}

// ManualAdvanceScenario mixes a manual split with a chapter split. A
// completion already showing when the chapter rule becomes current does
// not count.
var ManualAdvanceScenario = TestScenario{
	Name:     "manual split then chapter",
	Build:    BuildXna,
	Settings: splitter.Settings{Order: []string{"Manual", "Chapter1"}},
	Frames: []Frame{
		{State: at(celeste.ForsakenCity, "1", false)},
		{State: at(celeste.ForsakenCity, "end", true)},
		{Advance: true},
		{State: at(celeste.ForsakenCity, "end", true)},
		{State: at(celeste.ForsakenCity, "end", false)},
		{State: at(celeste.ForsakenCity, "end", true)},
		{State: at(celeste.ForsakenCity, "end", false)},
	},
	Expected:   []string{"split:Manual", "split:Chapter1"},
	SplitIndex: 2,
	Attached:   true,
}
