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

package celeste_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhelmot/CelesteAutosplitterCore/pkg/celeste"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/celeste/celestetest"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/mono"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/proc"
)

func TestLegacyInfoOffsets(t *testing.T) {
	assert.Equal(t, celeste.InfoOffsets{
		ChapterTime:         0x4,
		FileTime:            0xc,
		Level:               0x14,
		Chapter:             0x18,
		Mode:                0x1c,
		ChapterStrawberries: 0x20,
		FileStrawberries:    0x24,
		FileCassettes:       0x28,
		FileHearts:          0x2c,
		TimerActive:         0x30,
		ChapterStarted:      0x31,
		ChapterComplete:     0x32,
		ChapterCassette:     0x33,
		ChapterHeart:        0x34,
	}, celeste.LegacyInfoOffsets)
}

func sample() celeste.Snapshot {
	return celeste.Snapshot{
		Completed:           true,
		Started:             true,
		TimerActive:         true,
		AreaID:              celeste.OldSite,
		Mode:                celeste.ModeB,
		Level:               "end_3",
		LevelTime:           93*time.Second + 250*time.Millisecond,
		FileTime:            41*time.Minute + 7*time.Second,
		FileStrawberries:    57,
		FileCassettes:       2,
		FileHearts:          1,
		ChapterStrawberries: 12,
		ChapterCassette:     true,
	}
}

func games() map[string]*celestetest.Game {
	return map[string]*celestetest.Game{
		"xna":    celestetest.NewLegacy(celeste.Xna),
		"opengl": celestetest.NewLegacy(celeste.OpenGl),
		"itch":   celestetest.NewLegacy(celeste.Itch),
		"mono":   celestetest.NewMono(),
	}
}

func TestReadSnapshot(t *testing.T) {
	for name, g := range games() {
		t.Run(name, func(t *testing.T) {
			want := sample()
			want.Runtime = g.Kind
			if g.Kind == celeste.RuntimeLegacy {
				want.MenuType = celeste.MenuInGame
			}
			g.Set(want)

			r := g.Reader()
			assert.Equal(t, g.Kind, r.Kind())
			got, err := r.Read()
			require.NoError(t, err)
			assert.Equal(t, want, got)
		})
	}
}

func TestReadLevelBounds(t *testing.T) {
	tests := []struct {
		name   string
		game   *celestetest.Game
		level  string
		length int32
		want   string
	}{
		{name: "legacy at bound", game: celestetest.NewLegacy(celeste.Xna), level: strings.Repeat("x", 2048), want: strings.Repeat("x", 2048)},
		{name: "legacy over bound", game: celestetest.NewLegacy(celeste.Xna), level: "a", length: 2049},
		{name: "legacy negative", game: celestetest.NewLegacy(celeste.OpenGl), level: "a", length: -1},
		{name: "mono at bound", game: celestetest.NewMono(), level: strings.Repeat("y", 512), want: strings.Repeat("y", 512)},
		{name: "mono over bound", game: celestetest.NewMono(), level: strings.Repeat("y", 513)},
		{name: "empty", game: celestetest.NewMono(), level: ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := sample()
			s.Level = tt.level
			tt.game.Set(s)
			if tt.length != 0 {
				tt.game.SetLevelLength(tt.length)
			}

			got, err := tt.game.Reader().Read()
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.Level)
		})
	}
}

func TestReadLevelInvalidUTF16(t *testing.T) {
	for name, g := range games() {
		t.Run(name, func(t *testing.T) {
			g.Set(sample())
			g.SetLevelUnits([]uint16{'a', 0xd800, 'b'})
			got, err := g.Reader().Read()
			require.NoError(t, err)
			assert.Equal(t, "", got.Level)

			g.SetLevelUnits([]uint16{'c', 0xd83d, 0xde00})
			got, err = g.Reader().Read()
			require.NoError(t, err)
			assert.Equal(t, "c\U0001F600", got.Level)
		})
	}
}

func TestReadInvalidWithoutInfo(t *testing.T) {
	g := celestetest.NewLegacy(celeste.OpenGl)
	g.Set(sample())
	g.DropInfo()

	_, err := g.Reader().Read()
	require.Error(t, err)
	assert.ErrorIs(t, err, celeste.ErrSnapshotInvalid)
}

func TestReadMonoNotInitialized(t *testing.T) {
	g := celestetest.NewMono()
	g.Set(sample())
	g.DropInfo()

	_, err := g.Reader().Read()
	require.Error(t, err)
	assert.ErrorIs(t, err, mono.ErrNotInitialized)
	assert.False(t, mono.IsStructural(err))
}

func TestReadAfterExit(t *testing.T) {
	for name, g := range games() {
		t.Run(name, func(t *testing.T) {
			g.Set(sample())
			g.Img.Exit()
			_, err := g.Reader().Read()
			require.Error(t, err)
			assert.ErrorIs(t, err, proc.ErrProcessExited)
		})
	}
}

func TestReadOverworld(t *testing.T) {
	g := celestetest.NewLegacy(celeste.Xna)
	s := sample()
	s.HasOverworld = true
	s.ShowInputUI = true
	s.MenuType = celeste.MenuFileSelect
	g.Set(s)

	got, err := g.Reader().Read()
	require.NoError(t, err)
	assert.True(t, got.HasOverworld)
	assert.True(t, got.ShowInputUI)
	assert.Equal(t, celeste.MenuFileSelect, got.MenuType)

	g.LeaveOverworld()
	got, err = g.Reader().Read()
	require.NoError(t, err)
	assert.False(t, got.HasOverworld)
	assert.False(t, got.ShowInputUI)
	assert.Equal(t, celeste.MenuInGame, got.MenuType)
}

func TestFindLegacyBase(t *testing.T) {
	for _, v := range []celeste.PointerVersion{celeste.Xna, celeste.OpenGl, celeste.Itch} {
		t.Run(v.String(), func(t *testing.T) {
			g := celestetest.NewLegacy(v)
			version, base, err := celeste.FindLegacyBase(g.Img, []proc.Region{g.Code})
			require.NoError(t, err)
			assert.Equal(t, v, version)
			assert.Equal(t, g.Base, base)
		})
	}

	g := celestetest.NewMono()
	_, _, err := celeste.FindLegacyBase(g.Img, []proc.Region{{Start: 0x10_0000, Size: 0x1000}})
	assert.True(t, errors.Is(err, proc.ErrSignatureNotFound))
}

func TestMonoOffsets(t *testing.T) {
	g := celestetest.NewMono()
	r := celeste.NewMonoReader(g.Img, &mono.DefaultLayout, g.Table)

	info, err := r.Info()
	require.NoError(t, err)
	assert.Equal(t, g.InfoAddr(), info)

	offsets, err := r.Offsets(info)
	require.NoError(t, err)
	assert.Equal(t, celestetest.ManagedInfoOffsets, offsets)
}
