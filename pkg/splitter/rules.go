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

// Package splitter decides when a speedrun timer starts and splits from
// consecutive game snapshots.
package splitter

import (
	"fmt"

	"github.com/rhelmot/CelesteAutosplitterCore/pkg/celeste"
)

// Kind selects how a rule is matched.
type Kind uint8

const (
	// Manual rules are advanced by the user.
	Manual Kind = iota + 1
	// LevelEnter and LevelExit rules are advanced by the host's own
	// level transition events.
	LevelEnter
	LevelExit
	// ChapterComplete fires when the target chapter is completed.
	ChapterComplete
	// Checkpoint fires when the mode's level token for the checkpoint is
	// entered.
	Checkpoint
	// Cassette and HeartGem fire when the pickup is collected in the
	// target chapter.
	Cassette
	HeartGem
)

func (k Kind) String() string {
	switch k {
	case Manual:
		return "manual"
	case LevelEnter:
		return "level-enter"
	case LevelExit:
		return "level-exit"
	case ChapterComplete:
		return "chapter"
	case Checkpoint:
		return "checkpoint"
	case Cassette:
		return "cassette"
	case HeartGem:
		return "heart"
	}
	return fmt.Sprintf("Kind(%d)", uint8(k))
}

// External reports whether the rule is only ever advanced from outside
// the engine.
func (k Kind) External() bool {
	return k == Manual || k == LevelEnter || k == LevelExit
}

// Rule is one configurable split.
type Rule struct {
	ID      string
	Label   string
	Section string
	Kind    Kind
	Area    celeste.Area
	// AnyArea matches every area instead of Area.
	AnyArea bool
	// Tokens holds the checkpoint level token for the A, B and C sides.
	// An empty C token falls back to the B token.
	Tokens  [3]string
	Default bool
}

// Token returns the level token the rule expects in mode.
func (r *Rule) Token(mode celeste.AreaMode) string {
	switch mode {
	case celeste.ModeA:
		return r.Tokens[0]
	case celeste.ModeB:
		return r.Tokens[1]
	case celeste.ModeC:
		if r.Tokens[2] != "" {
			return r.Tokens[2]
		}
		return r.Tokens[1]
	}
	return ""
}

const (
	sectionGeneral  = "General"
	sectionPrologue = "Prologue"
	sectionEpilogue = "Epilogue"
)

func chapterSection(n int, name string) string {
	return fmt.Sprintf("Chapter %d - %s", n, name)
}

func complete(id, label, section string, area celeste.Area, def bool) Rule {
	return Rule{ID: id, Label: label, Section: section, Kind: ChapterComplete, Area: area, Default: def}
}

func checkpoint(id, label, section string, area celeste.Area, a, b string, def bool) Rule {
	return Rule{ID: id, Label: label, Section: section, Kind: Checkpoint, Area: area, Tokens: [3]string{a, b}, Default: def}
}

func pickups(n int, section string, area celeste.Area) []Rule {
	return []Rule{
		{
			ID:      fmt.Sprintf("Chapter%dCassette", n),
			Label:   fmt.Sprintf("Chapter %d - Cassette (Pickup)", n),
			Section: section,
			Kind:    Cassette,
			Area:    area,
		},
		{
			ID:      fmt.Sprintf("Chapter%dHeartGem", n),
			Label:   fmt.Sprintf("Chapter %d - Heart Gem A/B/C (Pickup)", n),
			Section: section,
			Kind:    HeartGem,
			Area:    area,
		},
	}
}

// Rules is the rule table in settings order. Rules enabled by default
// form the standard any% route.
var Rules = buildRules()

func buildRules() []Rule {
	var rules []Rule
	add := func(r ...Rule) { rules = append(rules, r...) }

	add(
		Rule{ID: "Manual", Label: "Manual Split (Not Automatic)", Section: sectionGeneral, Kind: Manual},
		Rule{ID: "ChapterA", Label: "Any Chapter (Complete)", Section: sectionGeneral, Kind: ChapterComplete, AnyArea: true},
		Rule{ID: "LevelEnter", Label: "Level (On Enter)", Section: sectionGeneral, Kind: LevelEnter},
		Rule{ID: "LevelExit", Label: "Level (On Exit)", Section: sectionGeneral, Kind: LevelExit},
		complete("Prologue", "Prologue (Complete)", sectionPrologue, celeste.Prologue, true),
	)

	s := chapterSection(1, "Forsaken City")
	add(
		checkpoint("Chapter1Checkpoint1", "Chapter 1 - Crossing (A) / Contraption (B) (CP 1)", s, celeste.ForsakenCity, "6", "04", true),
		checkpoint("Chapter1Checkpoint2", "Chapter 1 - Chasm (A) / Scrap Pit (B) (CP 2)", s, celeste.ForsakenCity, "9b", "08", true),
		complete("Chapter1", "Chapter 1 - Forsaken City A/B/C (Complete)", s, celeste.ForsakenCity, true),
	)
	add(pickups(1, s, celeste.ForsakenCity)...)

	s = chapterSection(2, "Old Site")
	add(
		checkpoint("Chapter2Checkpoint1", "Chapter 2 - Intervention (A) / Combination Lock (B) (CP 1)", s, celeste.OldSite, "3", "03", true),
		checkpoint("Chapter2Checkpoint2", "Chapter 2 - Awake (A) / Dream Altar (B) (CP 2)", s, celeste.OldSite, "end_3", "08b", true),
		complete("Chapter2", "Chapter 2 - Old Site A/B/C (Complete)", s, celeste.OldSite, true),
	)
	add(pickups(2, s, celeste.OldSite)...)

	s = chapterSection(3, "Celestial Resort")
	add(
		checkpoint("Chapter3Checkpoint1", "Chapter 3 - Huge Mess (A) / Staff Quarters (B) (CP 1)", s, celeste.CelestialResort, "08-a", "06", true),
		checkpoint("Chapter3Checkpoint2", "Chapter 3 - Elevator Shaft (A) / Library (B) (CP 2)", s, celeste.CelestialResort, "09-d", "11", true),
		checkpoint("Chapter3Checkpoint3", "Chapter 3 - Presidential Suite (A) / Rooftop (B) (CP 3)", s, celeste.CelestialResort, "00-d", "16", true),
		complete("Chapter3", "Chapter 3 - Celestial Resort A/B/C (Complete)", s, celeste.CelestialResort, true),
	)
	add(pickups(3, s, celeste.CelestialResort)...)

	s = chapterSection(4, "Golden Ridge")
	add(
		checkpoint("Chapter4Checkpoint1", "Chapter 4 - Shrine (A) / Stepping Stones (B) (CP 1)", s, celeste.GoldenRidge, "b-00", "b-00", true),
		checkpoint("Chapter4Checkpoint2", "Chapter 4 - Old Trail (A) / Gusty Canyon (B) (CP 2)", s, celeste.GoldenRidge, "c-00", "c-00", true),
		checkpoint("Chapter4Checkpoint3", "Chapter 4 - Cliff Face (A) / Eye Of The Storm (B) (CP 3)", s, celeste.GoldenRidge, "d-00", "d-00", true),
		complete("Chapter4", "Chapter 4 - Golden Ridge A/B/C (Complete)", s, celeste.GoldenRidge, true),
	)
	add(pickups(4, s, celeste.GoldenRidge)...)

	s = chapterSection(5, "Mirror Temple")
	add(
		checkpoint("Chapter5Checkpoint1", "Chapter 5 - Depths (A) / Central Chamber (B) (CP 1)", s, celeste.MirrorTemple, "b-00", "b-00", true),
		checkpoint("Chapter5Checkpoint2", "Chapter 5 - Unravelling (A) / Through The Mirror (B) (CP 2)", s, celeste.MirrorTemple, "c-00", "c-00", true),
		checkpoint("Chapter5Checkpoint3", "Chapter 5 - Search (A) / Mix Master (B) (CP 3)", s, celeste.MirrorTemple, "d-00", "d-00", true),
		checkpoint("Chapter5Checkpoint4", "Chapter 5 - Rescue (A) (CP 4)", s, celeste.MirrorTemple, "e-00", "e-00", true),
		complete("Chapter5", "Chapter 5 - Mirror Temple A/B/C (Complete)", s, celeste.MirrorTemple, true),
	)
	add(pickups(5, s, celeste.MirrorTemple)...)

	s = chapterSection(6, "Reflection")
	add(
		checkpoint("Chapter6Checkpoint1", "Chapter 6 - Lake (A) / Reflection (B) (CP 1)", s, celeste.Reflection, "00", "b-00", true),
		checkpoint("Chapter6Checkpoint2", "Chapter 6 - Hollows (A) / Rock Bottom (B) (CP 2)", s, celeste.Reflection, "04", "c-00", true),
		checkpoint("Chapter6Checkpoint3", "Chapter 6 - Reflection (A) / Reprieve (B) (CP 3)", s, celeste.Reflection, "b-00", "d-00", true),
		checkpoint("Chapter6Checkpoint4", "Chapter 6 - Rock Bottom (A) (CP 4)", s, celeste.Reflection, "boss-00", "boss-00", true),
		checkpoint("Chapter6Checkpoint5", "Chapter 6 - Resolution (A) (CP 5)", s, celeste.Reflection, "after-00", "after-00", true),
		complete("Chapter6", "Chapter 6 - Reflection A/B/C (Complete)", s, celeste.Reflection, true),
	)
	add(pickups(6, s, celeste.Reflection)...)

	s = chapterSection(7, "The Summit")
	add(
		checkpoint("Chapter7Checkpoint1", "Chapter 7 - 500M (A) / 500M (B) (CP 1)", s, celeste.TheSummit, "b-00", "b-00", true),
		checkpoint("Chapter7Checkpoint2", "Chapter 7 - 1000M (A) / 1000M (B) (CP 2)", s, celeste.TheSummit, "c-00", "c-01", true),
		checkpoint("Chapter7Checkpoint3", "Chapter 7 - 1500M (A) / 1500M (B) (CP 3)", s, celeste.TheSummit, "d-00", "d-00", true),
		checkpoint("Chapter7Checkpoint4", "Chapter 7 - 2000M (A) / 2000M (B) (CP 4)", s, celeste.TheSummit, "e-00b", "e-00", true),
		checkpoint("Chapter7Checkpoint5", "Chapter 7 - 2500M (A) / 2500M (B) (CP 5)", s, celeste.TheSummit, "f-00", "f-00", true),
		checkpoint("Chapter7Checkpoint6", "Chapter 7 - 3000M (A) / 3000M (B) (CP 6)", s, celeste.TheSummit, "g-00", "g-00", true),
		complete("Chapter7", "Chapter 7 - The Summit A/B/C (Complete)", s, celeste.TheSummit, true),
	)
	add(pickups(7, s, celeste.TheSummit)...)

	add(complete("Epilogue", "Epilogue (Complete)", sectionEpilogue, celeste.Epilogue, false))

	s = chapterSection(8, "Core")
	add(
		checkpoint("Chapter8Checkpoint1", "Chapter 8 - Into The Core (A) / Into The Core (B) (CP 1)", s, celeste.Core, "a-00", "a-00", false),
		checkpoint("Chapter8Checkpoint2", "Chapter 8 - Hot And Cold (A) / Burning Or Freezing (B) (CP 2)", s, celeste.Core, "c-00", "b-00", false),
		checkpoint("Chapter8Checkpoint3", "Chapter 8 - Heart Of The Mountain (A) / Heartbeat (B) (CP 3)", s, celeste.Core, "d-00", "c-01", false),
		complete("Chapter8", "Chapter 8 - Core A/B/C (Complete)", s, celeste.Core, false),
	)
	add(pickups(8, s, celeste.Core)...)
	return rules
}

var ruleIndex = func() map[string]int {
	m := make(map[string]int, len(Rules))
	for i, r := range Rules {
		m[r.ID] = i
	}
	return m
}()

// Lookup returns the rule with the given id.
func Lookup(id string) (Rule, bool) {
	i, ok := ruleIndex[id]
	if !ok {
		return Rule{}, false
	}
	return Rules[i], true
}
