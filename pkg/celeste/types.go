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

// Package celeste decodes the game's auto-splitter info struct into a
// typed snapshot, through either a fixed pointer chain on the legacy
// 32-bit builds or runtime metadata on current builds.
package celeste

import "fmt"

// Area is a chapter identifier. Negative values mean no chapter is
// loaded.
type Area int32

const (
	Menu            Area = -1
	Prologue        Area = 0
	ForsakenCity    Area = 1
	OldSite         Area = 2
	CelestialResort Area = 3
	GoldenRidge     Area = 4
	MirrorTemple    Area = 5
	Reflection      Area = 6
	TheSummit       Area = 7
	Epilogue        Area = 8
	Core            Area = 9
)

var areaNames = map[Area]string{
	Menu:            "Menu",
	Prologue:        "Prologue",
	ForsakenCity:    "Forsaken City",
	OldSite:         "Old Site",
	CelestialResort: "Celestial Resort",
	GoldenRidge:     "Golden Ridge",
	MirrorTemple:    "Mirror Temple",
	Reflection:      "Reflection",
	TheSummit:       "The Summit",
	Epilogue:        "Epilogue",
	Core:            "Core",
}

func (a Area) String() string {
	if s, ok := areaNames[a]; ok {
		return s
	}
	return fmt.Sprintf("Area(%d)", int32(a))
}

// AreaMode is the side of a chapter.
type AreaMode int32

const (
	ModeA AreaMode = 0
	ModeB AreaMode = 1
	ModeC AreaMode = 2
)

func (m AreaMode) String() string {
	switch m {
	case ModeA:
		return "A"
	case ModeB:
		return "B"
	case ModeC:
		return "C"
	}
	return fmt.Sprintf("Mode(%d)", int32(m))
}

// MenuType is the overworld screen shown by the legacy builds.
type MenuType int32

const (
	MenuInGame        MenuType = 0
	MenuIntro         MenuType = 14
	MenuFileSelect    MenuType = 60
	MenuMainMenu      MenuType = 64
	MenuChapterSelect MenuType = 80
	MenuChapterPanel  MenuType = 168
	MenuFileRename    MenuType = 180
)

func (m MenuType) String() string {
	switch m {
	case MenuInGame:
		return "InGame"
	case MenuIntro:
		return "Intro"
	case MenuFileSelect:
		return "FileSelect"
	case MenuMainMenu:
		return "MainMenu"
	case MenuChapterSelect:
		return "ChapterSelect"
	case MenuChapterPanel:
		return "ChapterPanel"
	case MenuFileRename:
		return "FileRename"
	}
	return fmt.Sprintf("Menu(%d)", int32(m))
}

// RuntimeKind tells which path produced a snapshot.
type RuntimeKind uint8

const (
	RuntimeLegacy RuntimeKind = iota + 1
	RuntimeMono
)

func (k RuntimeKind) String() string {
	switch k {
	case RuntimeLegacy:
		return "legacy"
	case RuntimeMono:
		return "mono"
	}
	return "unknown"
}
