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

package celeste

import (
	"errors"
	"fmt"

	"github.com/go-delve/delve/pkg/logflags"
	"github.com/modern-go/reflect2"

	"github.com/rhelmot/CelesteAutosplitterCore/pkg/proc"
)

// PointerVersion identifies which legacy build a base address was found
// in. The builds differ in where the info object hangs off the game
// instance.
type PointerVersion uint8

const (
	Xna PointerVersion = iota + 1
	OpenGl
	Itch
)

func (v PointerVersion) String() string {
	switch v {
	case Xna:
		return "xna"
	case OpenGl:
		return "opengl"
	case Itch:
		return "itch"
	}
	return fmt.Sprintf("PointerVersion(%d)", uint8(v))
}

func (v PointerVersion) infoOffset() int32 {
	if v == Xna {
		return 0xac
	}
	return 0x8c
}

func (v PointerVersion) sceneOffset() int32 {
	if v == Xna {
		return 0x98
	}
	return 0x78
}

// LegacySignature locates the instruction that loads the game's static
// instance field. Offset points at the disp32 of a lea reg, [disp32].
type LegacySignature struct {
	Version PointerVersion
	Pattern proc.Signature
	Offset  int64
}

// LegacySignatures are tried in order.
var LegacySignatures = []LegacySignature{
	{Xna, proc.MustParseSignature("83C604F30F7E06660FD6078BCBFF15????????8D15"), 21},
	{OpenGl, proc.MustParseSignature("8B55F08B45E88D5274E8????????8B45F08D15"), 19},
	{Itch, proc.MustParseSignature("8D5674E8????????8D15????????E8????????C605"), 10},
}

const (
	legacyPtrSize    = 4
	legacyLevelBound = 2048
	legacyStrLen     = 0x4
	legacyStrChars   = 0x8

	overworldTypeSize = 100
	sceneMenuOffset   = 0x30
	sceneInputOffset  = 0x2b
	typeSizeOffset    = 0x4
)

// legacyInfo mirrors the 32-bit object layout of the info struct. Only
// the field offsets are used.
type legacyInfo struct {
	MethodTable         uint32
	ChapterTime         [8]byte
	FileTime            [8]byte
	Level               uint32
	Chapter             int32
	Mode                int32
	ChapterStrawberries int32
	FileStrawberries    int32
	FileCassettes       int32
	FileHearts          int32
	TimerActive         bool
	ChapterStarted      bool
	ChapterComplete     bool
	ChapterCassette     bool
	ChapterHeart        bool
}

// InfoOffsets lists byte offsets of the info struct fields relative to
// the object start.
type InfoOffsets struct {
	ChapterTime         int64
	FileTime            int64
	Level               int64
	Chapter             int64
	Mode                int64
	ChapterStrawberries int64
	FileStrawberries    int64
	FileCassettes       int64
	FileHearts          int64
	TimerActive         int64
	ChapterStarted      int64
	ChapterComplete     int64
	ChapterCassette     int64
	ChapterHeart        int64
}

// LegacyInfoOffsets is the offset table of the legacy builds.
var LegacyInfoOffsets InfoOffsets

func init() {
	st := reflect2.TypeOf(legacyInfo{}).(reflect2.StructType)
	off := func(name string) int64 {
		return int64(st.FieldByName(name).Offset())
	}
	LegacyInfoOffsets = InfoOffsets{
		ChapterTime:         off("ChapterTime"),
		FileTime:            off("FileTime"),
		Level:               off("Level"),
		Chapter:             off("Chapter"),
		Mode:                off("Mode"),
		ChapterStrawberries: off("ChapterStrawberries"),
		FileStrawberries:    off("FileStrawberries"),
		FileCassettes:       off("FileCassettes"),
		FileHearts:          off("FileHearts"),
		TimerActive:         off("TimerActive"),
		ChapterStarted:      off("ChapterStarted"),
		ChapterComplete:     off("ChapterComplete"),
		ChapterCassette:     off("ChapterCassette"),
		ChapterHeart:        off("ChapterHeart"),
	}
}

// FindLegacyBase scans regions for each known signature and returns the
// version that matched and the address of the static instance field.
func FindLegacyBase(mem proc.MemoryReader, regions []proc.Region) (PointerVersion, proc.Address, error) {
	for _, sig := range LegacySignatures {
		match, err := proc.Scan(mem, regions, sig.Pattern)
		if err != nil {
			if errors.Is(err, proc.ErrSignatureNotFound) {
				continue
			}
			return 0, 0, err
		}
		base, err := proc.MemOperand(mem, match.Add(sig.Offset-2), 32)
		if err != nil {
			return 0, 0, err
		}
		logflags.DebuggerLogger().Debugf("legacy %v signature at %v, base %v", sig.Version, match, base)
		return sig.Version, base, nil
	}
	return 0, 0, proc.ErrSignatureNotFound
}

// LegacyReader reads snapshots through fixed pointer chains.
type LegacyReader struct {
	mem     proc.MemoryReader
	version PointerVersion
	base    proc.Address
}

// NewLegacyReader returns a reader for the static instance field at base.
func NewLegacyReader(mem proc.MemoryReader, version PointerVersion, base proc.Address) *LegacyReader {
	return &LegacyReader{mem: mem, version: version, base: base}
}

func (r *LegacyReader) Kind() RuntimeKind { return RuntimeLegacy }

func (r *LegacyReader) Read() (Snapshot, error) {
	off := &LegacyInfoOffsets
	info, err := proc.ResolveChain(r.mem, r.base, []int32{0, r.version.infoOffset(), 0}, legacyPtrSize)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: info object: %w", ErrSnapshotInvalid, err)
	}
	completed, err := proc.ReadBool(r.mem, info.Add(off.ChapterComplete))
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: completion flag: %w", ErrSnapshotInvalid, err)
	}
	area, err := proc.ReadInt32(r.mem, info.Add(off.Chapter))
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: area id: %w", ErrSnapshotInvalid, err)
	}

	f := fields{mem: r.mem}
	snap := Snapshot{
		Runtime:             RuntimeLegacy,
		Completed:           completed,
		AreaID:              Area(area),
		Started:             f.bool("ChapterStarted", info.Add(off.ChapterStarted)),
		TimerActive:         f.bool("TimerActive", info.Add(off.TimerActive)),
		Mode:                AreaMode(f.int32("Mode", info.Add(off.Mode))),
		LevelTime:           TicksToDuration(f.int64("ChapterTime", info.Add(off.ChapterTime))),
		FileTime:            TicksToDuration(f.int64("FileTime", info.Add(off.FileTime))),
		FileStrawberries:    f.int32("FileStrawberries", info.Add(off.FileStrawberries)),
		FileCassettes:       f.int32("FileCassettes", info.Add(off.FileCassettes)),
		FileHearts:          f.int32("FileHearts", info.Add(off.FileHearts)),
		ChapterStrawberries: f.int32("ChapterStrawberries", info.Add(off.ChapterStrawberries)),
		ChapterCassette:     f.bool("ChapterCassette", info.Add(off.ChapterCassette)),
		ChapterHeart:        f.bool("ChapterHeart", info.Add(off.ChapterHeart)),
	}
	if level, err := proc.ReadPointer(r.mem, info.Add(off.Level), legacyPtrSize); err == nil && !level.IsNull() {
		snap.Level, err = readUTF16(r.mem, level.Add(legacyStrLen), level.Add(legacyStrChars), legacyLevelBound)
		f.note("Level", err)
	} else {
		f.note("Level", err)
	}
	r.readOverworld(&snap, &f)
	return snap, nil
}

// readOverworld fills the title screen state. Any other scene reports
// the in-game menu with the input UI hidden.
func (r *LegacyReader) readOverworld(snap *Snapshot, f *fields) {
	snap.MenuType = MenuInGame
	scene, err := proc.ResolveChain(r.mem, r.base, []int32{0, r.version.sceneOffset(), 0}, legacyPtrSize)
	if err != nil {
		f.note("scene", err)
		return
	}
	size, err := proc.ResolveChain(r.mem, scene, []int32{0, typeSizeOffset}, legacyPtrSize)
	if err != nil {
		f.note("scene type", err)
		return
	}
	if f.int32("scene type size", size) != overworldTypeSize {
		return
	}
	snap.HasOverworld = true
	snap.ShowInputUI = f.bool("ShowInputUI", scene.Add(sceneInputOffset))
	menu, err := proc.ResolveChain(r.mem, scene, []int32{sceneMenuOffset, 0, typeSizeOffset}, legacyPtrSize)
	if err != nil {
		f.note("menu", err)
		return
	}
	snap.MenuType = MenuType(f.int32("menu type", menu))
}

// fields reads optional values. A failed read yields the zero value.
type fields struct {
	mem proc.MemoryReader
}

func (f *fields) note(name string, err error) {
	if err != nil {
		logflags.DebuggerLogger().Debugf("read %s: %v", name, err)
	}
}

func (f *fields) bool(name string, addr proc.Address) bool {
	v, err := proc.ReadBool(f.mem, addr)
	f.note(name, err)
	return v
}

func (f *fields) int32(name string, addr proc.Address) int32 {
	v, err := proc.ReadInt32(f.mem, addr)
	f.note(name, err)
	return v
}

func (f *fields) int64(name string, addr proc.Address) int64 {
	v, err := proc.ReadInt64(f.mem, addr)
	f.note(name, err)
	return v
}
