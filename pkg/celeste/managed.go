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
	"fmt"

	"github.com/rhelmot/CelesteAutosplitterCore/pkg/mono"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/proc"
)

const (
	// GameClass is the class whose static Instance field holds the game.
	GameClass         = "Celeste"
	instanceField     = "Instance"
	infoField         = "AutoSplitterInfo"
	managedLevelBound = 512
)

// InfoFieldNames names the info struct fields read on current builds.
// Offsets are resolved by name through runtime metadata on every tick.
var InfoFieldNames = []string{
	"Level",
	"Chapter",
	"Mode",
	"TimerActive",
	"ChapterStarted",
	"ChapterComplete",
	"ChapterTime",
	"ChapterStrawberries",
	"ChapterCassette",
	"ChapterHeart",
	"FileTime",
	"FileStrawberries",
	"FileCassettes",
	"FileHearts",
}

// MonoReader reads snapshots by walking runtime metadata from the game
// class in a class cache.
type MonoReader struct {
	mem   proc.MemoryReader
	res   *mono.Resolver
	table mono.HashTable
}

// NewMonoReader returns a reader resolving the game class in table.
func NewMonoReader(mem proc.MemoryReader, layout *mono.Layout, table mono.HashTable) *MonoReader {
	return &MonoReader{mem: mem, res: mono.NewResolver(mem, layout), table: table}
}

func (r *MonoReader) Kind() RuntimeKind { return RuntimeMono }

// Info resolves the address of the info object.
func (r *MonoReader) Info() (proc.Address, error) {
	ptrSize := r.res.Layout().PointerSize
	class, err := r.res.LookupClass(r.table, GameClass)
	if err != nil {
		return 0, err
	}
	slot, err := r.res.ResolveStaticField(class, instanceField)
	if err != nil {
		return 0, err
	}
	game, err := proc.ReadPointer(r.mem, slot, ptrSize)
	if err != nil {
		return 0, err
	}
	if game.IsNull() {
		return 0, fmt.Errorf("%s.%s: %w", GameClass, instanceField, mono.ErrNotInitialized)
	}
	ref, err := r.res.ResolveField(game, infoField)
	if err != nil {
		return 0, err
	}
	info, err := proc.ReadPointer(r.mem, ref, ptrSize)
	if err != nil {
		return 0, err
	}
	if info.IsNull() {
		return 0, fmt.Errorf("%s.%s: %w", GameClass, infoField, mono.ErrNotInitialized)
	}
	return info, nil
}

// Offsets resolves the offset table of the info object at info.
func (r *MonoReader) Offsets(info proc.Address) (map[string]uint32, error) {
	class, err := r.res.InstanceClass(info)
	if err != nil {
		return nil, err
	}
	out := make(map[string]uint32, len(InfoFieldNames))
	for _, name := range InfoFieldNames {
		off, err := r.res.FieldOffset(class, name)
		if err != nil {
			if mono.IsStructural(err) {
				return nil, err
			}
			continue
		}
		out[name] = off
	}
	return out, nil
}

func (r *MonoReader) Read() (Snapshot, error) {
	info, err := r.Info()
	if err != nil {
		return Snapshot{}, err
	}
	offsets, err := r.Offsets(info)
	if err != nil {
		return Snapshot{}, err
	}
	at := func(name string) (proc.Address, bool) {
		off, ok := offsets[name]
		return info.Add(int64(off)), ok
	}

	addr, ok := at("ChapterComplete")
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: no ChapterComplete field", ErrSnapshotInvalid)
	}
	completed, err := proc.ReadBool(r.mem, addr)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: completion flag: %w", ErrSnapshotInvalid, err)
	}
	addr, ok = at("Chapter")
	if !ok {
		return Snapshot{}, fmt.Errorf("%w: no Chapter field", ErrSnapshotInvalid)
	}
	area, err := proc.ReadInt32(r.mem, addr)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: area id: %w", ErrSnapshotInvalid, err)
	}

	f := fields{mem: r.mem}
	opt := func(name string) proc.Address {
		addr, ok := at(name)
		if !ok {
			// zero page reads fail and yield zero values
			return 0
		}
		return addr
	}
	snap := Snapshot{
		Runtime:             RuntimeMono,
		Completed:           completed,
		AreaID:              Area(area),
		Started:             f.bool("ChapterStarted", opt("ChapterStarted")),
		TimerActive:         f.bool("TimerActive", opt("TimerActive")),
		Mode:                AreaMode(f.int32("Mode", opt("Mode"))),
		LevelTime:           TicksToDuration(f.int64("ChapterTime", opt("ChapterTime"))),
		FileTime:            TicksToDuration(f.int64("FileTime", opt("FileTime"))),
		FileStrawberries:    f.int32("FileStrawberries", opt("FileStrawberries")),
		FileCassettes:       f.int32("FileCassettes", opt("FileCassettes")),
		FileHearts:          f.int32("FileHearts", opt("FileHearts")),
		ChapterStrawberries: f.int32("ChapterStrawberries", opt("ChapterStrawberries")),
		ChapterCassette:     f.bool("ChapterCassette", opt("ChapterCassette")),
		ChapterHeart:        f.bool("ChapterHeart", opt("ChapterHeart")),
	}
	snap.Level = r.readString(&f, opt("Level"))
	return snap, nil
}

func (r *MonoReader) readString(f *fields, ref proc.Address) string {
	l := r.res.Layout()
	obj, err := proc.ReadPointer(r.mem, ref, l.PointerSize)
	if err != nil || obj.IsNull() {
		f.note("Level", err)
		return ""
	}
	s, err := readUTF16(r.mem, obj.Add(l.StringLength), obj.Add(l.StringChars), managedLevelBound)
	f.note("Level", err)
	return s
}
