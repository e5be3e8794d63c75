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

// Package celestetest builds synthetic game processes whose auto-splitter
// info can be rewritten between ticks.
package celestetest

import (
	"encoding/hex"
	"strings"

	"github.com/rhelmot/CelesteAutosplitterCore/pkg/celeste"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/mono"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/mono/monotest"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/proc"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/proc/memimg"
)

// ManagedInfoOffsets places the info fields of a synthetic current build.
var ManagedInfoOffsets = map[string]uint32{
	"Level":               0x10,
	"Chapter":             0x18,
	"Mode":                0x1c,
	"TimerActive":         0x20,
	"ChapterStarted":      0x21,
	"ChapterComplete":     0x22,
	"ChapterCassette":     0x23,
	"ChapterHeart":        0x24,
	"ChapterTime":         0x28,
	"ChapterStrawberries": 0x30,
	"FileTime":            0x38,
	"FileStrawberries":    0x40,
	"FileCassettes":       0x44,
	"FileHearts":          0x48,
}

const (
	gameInfoField = 0x40
	infoSize      = 0x80
)

// Game is a synthetic process running one of the supported builds.
type Game struct {
	Img     *memimg.Image
	Kind    celeste.RuntimeKind
	Version celeste.PointerVersion

	// Base is the static instance field of a legacy build.
	Base proc.Address
	// Code covers the instructions the legacy signatures match.
	Code proc.Region
	// Table is the class cache of a current build.
	Table mono.HashTable
	// Domain is the root domain of a current build.
	Domain proc.Address

	info    uint64
	game    uint64
	scene   uint64
	level   uint64
	builder *monotest.Builder
}

// NewLegacy returns a 32-bit build of the given version.
func NewLegacy(version celeste.PointerVersion) *Game {
	img := memimg.New()
	g := &Game{Img: img, Kind: celeste.RuntimeLegacy, Version: version}

	g.Base = proc.Address(img.Alloc(4))
	g.game = img.Alloc(0x100)
	g.info = img.Alloc(infoSize)
	img.PutUint32(uint64(g.Base), uint32(g.game))
	img.PutUint32(g.game+legacyInfoOffset(version), uint32(g.info))

	for _, sig := range celeste.LegacySignatures {
		if sig.Version != version {
			continue
		}
		code := signatureBytes(sig.Pattern.String())
		at := img.Alloc(len(code) + 0x40)
		img.Write(at+0x20, code)
		img.PutUint32(at+0x20+uint64(sig.Offset), uint32(g.Base))
		g.Code = proc.Region{Start: proc.Address(at), Size: uint64(len(code) + 0x40)}
	}
	return g
}

// NewMono returns a 64-bit build exposing runtime metadata.
func NewMono() *Game {
	img := memimg.New()
	b := monotest.NewBuilder(img, &mono.DefaultLayout, 16)
	g := &Game{Img: img, Kind: celeste.RuntimeMono, builder: b}

	var fields []monotest.Field
	for _, name := range celeste.InfoFieldNames {
		fields = append(fields, monotest.Field{Name: name, Offset: ManagedInfoOffsets[name]})
	}
	infoClass := b.NewClass(7, "AutoSplitterInfo", mono.KindDef, fields...)
	b.NewClass(2, "Engine", mono.KindDef, monotest.Field{Name: "Instance", Offset: 0})
	gameClass := b.NewClass(11, celeste.GameClass, mono.KindDef,
		monotest.Field{Name: "Instance", Offset: 0x8, Flags: 0x10},
		monotest.Field{Name: "AutoSplitterInfo", Offset: gameInfoField},
	)
	statics := b.SetStatics(gameClass, 23, 0x20)

	g.game = b.NewObject(gameClass, 0x80, 1)
	g.info = b.NewObject(infoClass, infoSize, 0)
	img.PutUint64(statics+0x8, g.game)
	img.PutUint64(g.game+gameInfoField, g.info)
	g.Table = b.Table()
	return g
}

// NewMonoDomain returns a current build whose class cache is reachable
// from a root domain through an assembly named Celeste.
func NewMonoDomain() *Game {
	g := NewMono()
	domain, images := g.builder.NewDomain("mscorlib", "Celeste")
	g.Img.PutUint64(images[1]+uint64(mono.DefaultLayout.ImageClassCache)+uint64(mono.DefaultLayout.HashTableSize), 16)
	buckets, _ := proc.ReadUint64(g.Img, proc.Address(g.Table).Add(mono.DefaultLayout.HashTableTable))
	g.Img.PutUint64(images[1]+uint64(mono.DefaultLayout.ImageClassCache)+uint64(mono.DefaultLayout.HashTableTable), buckets)
	g.Domain = proc.Address(domain)
	return g
}

func legacyInfoOffset(v celeste.PointerVersion) uint64 {
	if v == celeste.Xna {
		return 0xac
	}
	return 0x8c
}

func legacySceneOffset(v celeste.PointerVersion) uint64 {
	if v == celeste.Xna {
		return 0x98
	}
	return 0x78
}

func signatureBytes(pattern string) []byte {
	b, err := hex.DecodeString(strings.ReplaceAll(pattern, "??", "90"))
	if err != nil {
		panic(err)
	}
	return b
}

// Reader returns a snapshot reader for the game.
func (g *Game) Reader() celeste.Reader {
	if g.Kind == celeste.RuntimeLegacy {
		return celeste.NewLegacyReader(g.Img, g.Version, g.Base)
	}
	return celeste.NewMonoReader(g.Img, &mono.DefaultLayout, g.Table)
}

// InfoAddr returns the info object address.
func (g *Game) InfoAddr() proc.Address {
	return proc.Address(g.info)
}

func (g *Game) offset(name string) uint64 {
	if g.Kind == celeste.RuntimeMono {
		return uint64(ManagedInfoOffsets[name])
	}
	o := celeste.LegacyInfoOffsets
	switch name {
	case "Level":
		return uint64(o.Level)
	case "Chapter":
		return uint64(o.Chapter)
	case "Mode":
		return uint64(o.Mode)
	case "TimerActive":
		return uint64(o.TimerActive)
	case "ChapterStarted":
		return uint64(o.ChapterStarted)
	case "ChapterComplete":
		return uint64(o.ChapterComplete)
	case "ChapterCassette":
		return uint64(o.ChapterCassette)
	case "ChapterHeart":
		return uint64(o.ChapterHeart)
	case "ChapterTime":
		return uint64(o.ChapterTime)
	case "ChapterStrawberries":
		return uint64(o.ChapterStrawberries)
	case "FileTime":
		return uint64(o.FileTime)
	case "FileStrawberries":
		return uint64(o.FileStrawberries)
	case "FileCassettes":
		return uint64(o.FileCassettes)
	case "FileHearts":
		return uint64(o.FileHearts)
	}
	panic("unknown info field " + name)
}

func putBool(img *memimg.Image, addr uint64, v bool) {
	var b uint8
	if v {
		b = 1
	}
	img.PutUint8(addr, b)
}

// Set writes every info field from s.
func (g *Game) Set(s celeste.Snapshot) {
	img := g.Img
	at := func(name string) uint64 { return g.info + g.offset(name) }
	putBool(img, at("ChapterComplete"), s.Completed)
	putBool(img, at("ChapterStarted"), s.Started)
	putBool(img, at("TimerActive"), s.TimerActive)
	putBool(img, at("ChapterCassette"), s.ChapterCassette)
	putBool(img, at("ChapterHeart"), s.ChapterHeart)
	img.PutUint32(at("Chapter"), uint32(s.AreaID))
	img.PutUint32(at("Mode"), uint32(s.Mode))
	img.PutUint64(at("ChapterTime"), uint64(s.LevelTime/100))
	img.PutUint64(at("FileTime"), uint64(s.FileTime/100))
	img.PutUint32(at("FileStrawberries"), uint32(s.FileStrawberries))
	img.PutUint32(at("FileCassettes"), uint32(s.FileCassettes))
	img.PutUint32(at("FileHearts"), uint32(s.FileHearts))
	img.PutUint32(at("ChapterStrawberries"), uint32(s.ChapterStrawberries))
	g.SetLevel(s.Level)
	if g.Kind == celeste.RuntimeLegacy {
		if s.HasOverworld {
			g.SetOverworld(s.ShowInputUI, s.MenuType)
		} else {
			g.LeaveOverworld()
		}
	}
}

// SetLevel points the level field at a fresh string holding level.
func (g *Game) SetLevel(level string) {
	ref := g.info + g.offset("Level")
	if g.Kind == celeste.RuntimeMono {
		g.Img.PutUint64(ref, g.builder.NewString(level))
		return
	}
	g.Img.PutUint32(ref, uint32(g.legacyString(level)))
}

// SetLevelLength overwrites the length prefix of the current level string.
func (g *Game) SetLevelLength(n int32) {
	ref := g.info + g.offset("Level")
	if g.Kind == celeste.RuntimeMono {
		obj, _ := proc.ReadUint64(g.Img, proc.Address(ref))
		g.Img.PutUint32(obj+uint64(mono.DefaultLayout.StringLength), uint32(n))
		return
	}
	obj, _ := proc.ReadUint32(g.Img, proc.Address(ref))
	g.Img.PutUint32(uint64(obj)+4, uint32(n))
}

// SetLevelUnits stores raw UTF-16 code units as the level string.
func (g *Game) SetLevelUnits(units []uint16) {
	g.SetLevel(strings.Repeat(" ", len(units)))
	ref := g.info + g.offset("Level")
	var chars uint64
	if g.Kind == celeste.RuntimeMono {
		obj, _ := proc.ReadUint64(g.Img, proc.Address(ref))
		chars = obj + uint64(mono.DefaultLayout.StringChars)
	} else {
		obj, _ := proc.ReadUint32(g.Img, proc.Address(ref))
		chars = uint64(obj) + 8
	}
	for i, u := range units {
		g.Img.PutUint16(chars+uint64(i*2), u)
	}
}

func (g *Game) legacyString(s string) uint64 {
	n := utf16Len(s)
	obj := g.Img.Alloc(8 + n*2 + 2)
	g.Img.PutUint32(obj+4, uint32(n))
	g.Img.PutUTF16(obj+8, s)
	return obj
}

func utf16Len(s string) int {
	n := 0
	for _, r := range s {
		n++
		if r >= 0x10000 {
			n++
		}
	}
	return n
}

// SetOverworld shows the title screen on a legacy build.
func (g *Game) SetOverworld(showInputUI bool, menu celeste.MenuType) {
	if g.scene == 0 {
		g.scene = g.Img.Alloc(0x80)
		sceneType := g.Img.Alloc(0x10)
		g.Img.PutUint32(g.scene, uint32(sceneType))
		menuObj := g.Img.Alloc(0x10)
		menuType := g.Img.Alloc(0x10)
		g.Img.PutUint32(g.scene+0x30, uint32(menuObj))
		g.Img.PutUint32(menuObj, uint32(menuType))
	}
	g.Img.PutUint32(g.game+legacySceneOffset(g.Version), uint32(g.scene))
	typ, _ := proc.ReadUint32(g.Img, proc.Address(g.scene))
	g.Img.PutUint32(uint64(typ)+4, 100)
	putBool(g.Img, g.scene+0x2b, showInputUI)
	menuObj, _ := proc.ReadUint32(g.Img, proc.Address(g.scene+0x30))
	menuType, _ := proc.ReadUint32(g.Img, proc.Address(menuObj))
	g.Img.PutUint32(uint64(menuType)+4, uint32(menu))
}

// LeaveOverworld switches a legacy build to a gameplay scene.
func (g *Game) LeaveOverworld() {
	if g.level == 0 {
		g.level = g.Img.Alloc(0x40)
		levelType := g.Img.Alloc(0x10)
		g.Img.PutUint32(g.level, uint32(levelType))
		g.Img.PutUint32(uint64(levelType)+4, 0x2c0)
	}
	g.Img.PutUint32(g.game+legacySceneOffset(g.Version), uint32(g.level))
}

// DropInfo nulls the game's reference to its info object.
func (g *Game) DropInfo() {
	if g.Kind == celeste.RuntimeMono {
		g.Img.PutUint64(g.game+gameInfoField, 0)
		return
	}
	g.Img.PutUint32(g.game+legacyInfoOffset(g.Version), 0)
}

// RestoreInfo points the game back at its info object.
func (g *Game) RestoreInfo() {
	if g.Kind == celeste.RuntimeMono {
		g.Img.PutUint64(g.game+gameInfoField, g.info)
		return
	}
	g.Img.PutUint32(g.game+legacyInfoOffset(g.Version), uint32(g.info))
}
