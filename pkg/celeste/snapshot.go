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
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/text/encoding/unicode"

	"github.com/rhelmot/CelesteAutosplitterCore/pkg/proc"
)

// ErrSnapshotInvalid is returned when the completion flag or the area id
// cannot be read. The session re-attaches on the next tick.
var ErrSnapshotInvalid = errors.New("snapshot invalid")

// TicksPerSecond is the resolution of the game's elapsed time fields.
const TicksPerSecond = 10_000_000

// Snapshot is one tick's view of the game.
type Snapshot struct {
	Runtime RuntimeKind

	Completed   bool
	Started     bool
	TimerActive bool
	AreaID      Area
	Mode        AreaMode
	Level       string

	LevelTime time.Duration
	FileTime  time.Duration

	FileStrawberries    int32
	FileCassettes       int32
	FileHearts          int32
	ChapterStrawberries int32
	ChapterCassette     bool
	ChapterHeart        bool

	// legacy overworld state
	HasOverworld bool
	ShowInputUI  bool
	MenuType     MenuType
}

// Reader produces snapshots from one attached process.
type Reader interface {
	Read() (Snapshot, error)
	Kind() RuntimeKind
}

// TicksToDuration converts a 100ns tick count.
func TicksToDuration(ticks int64) time.Duration {
	return time.Duration(ticks) * (time.Second / TicksPerSecond)
}

var utf16Decoder = unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM)

// readUTF16 reads a length prefixed UTF-16 buffer. A length outside
// [0, bound] or any undecodable sequence yields "".
func readUTF16(mem proc.MemoryReader, lenAddr, charsAddr proc.Address, bound int32) (string, error) {
	n, err := proc.ReadInt32(mem, lenAddr)
	if err != nil {
		return "", err
	}
	if n < 0 || n > bound {
		return "", nil
	}
	if n == 0 {
		return "", nil
	}
	raw := make([]byte, int(n)*2)
	if err := proc.ReadBytes(mem, charsAddr, raw); err != nil {
		return "", err
	}
	return decodeUTF16(raw), nil
}

func decodeUTF16(raw []byte) string {
	out, err := utf16Decoder.NewDecoder().Bytes(raw)
	if err != nil {
		return ""
	}
	s := string(out)
	if strings.ContainsRune(s, utf8.RuneError) && !hasReplacementUnit(raw) {
		// the decoder substitutes unpaired surrogates
		return ""
	}
	return s
}

func hasReplacementUnit(raw []byte) bool {
	for i := 0; i+1 < len(raw); i += 2 {
		if raw[i] == 0xfd && raw[i+1] == 0xff {
			return true
		}
	}
	return false
}
