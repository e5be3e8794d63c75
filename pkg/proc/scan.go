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

package proc

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"github.com/go-delve/delve/pkg/logflags"
)

// scanChunkSize bounds a single read issued by Scan.
const scanChunkSize = 64 * 1024

// ErrSignatureNotFound is returned when no region contains the pattern.
var ErrSignatureNotFound = errors.New("signature not found")

// Region is a contiguous mapped range of the target.
type Region struct {
	Start Address
	Size  uint64
}

// End returns the first address past the region.
func (r Region) End() Address {
	return r.Start.Add(int64(r.Size))
}

// Signature is a byte pattern where some positions match any byte.
type Signature struct {
	raw   string
	bytes []byte
	wild  []bool
}

// ParseSignature parses a pattern such as "8D15????????E8". Two hex digits
// form one byte, "??" matches anything and whitespace is ignored.
func ParseSignature(pattern string) (Signature, error) {
	s := strings.Join(strings.Fields(pattern), "")
	if len(s) == 0 || len(s)%2 != 0 {
		return Signature{}, fmt.Errorf("invalid signature %q: odd length", pattern)
	}
	sig := Signature{raw: pattern, bytes: make([]byte, len(s)/2), wild: make([]bool, len(s)/2)}
	for i := 0; i < len(s); i += 2 {
		pair := s[i : i+2]
		if pair == "??" {
			sig.wild[i/2] = true
			continue
		}
		b, err := hex.DecodeString(pair)
		if err != nil {
			return Signature{}, fmt.Errorf("invalid signature %q: %w", pattern, err)
		}
		sig.bytes[i/2] = b[0]
	}
	return sig, nil
}

// MustParseSignature is ParseSignature for patterns known at compile time.
func MustParseSignature(pattern string) Signature {
	sig, err := ParseSignature(pattern)
	if err != nil {
		panic(err)
	}
	return sig
}

// Len returns the pattern length in bytes.
func (s Signature) Len() int {
	return len(s.bytes)
}

func (s Signature) String() string {
	return s.raw
}

// index returns the first position in buf where s matches, or -1.
func (s Signature) index(buf []byte) int {
	n := len(s.bytes)
	for i := 0; i+n <= len(buf); i++ {
		ok := true
		for j := 0; j < n; j++ {
			if !s.wild[j] && buf[i+j] != s.bytes[j] {
				ok = false
				break
			}
		}
		if ok {
			return i
		}
	}
	return -1
}

// Scan searches regions in order for sig and returns the address of the
// first match. Unreadable chunks are skipped.
func Scan(mem MemoryReader, regions []Region, sig Signature) (Address, error) {
	n := sig.Len()
	if n == 0 {
		return 0, ErrSignatureNotFound
	}
	buf := make([]byte, scanChunkSize+n-1)
	for _, r := range regions {
		for addr := r.Start; addr < r.End(); addr = addr.Add(scanChunkSize) {
			size := int(r.End().Sub(addr))
			if size > len(buf) {
				size = len(buf)
			}
			if size < n {
				break
			}
			chunk := buf[:size]
			if err := ReadBytes(mem, addr, chunk); err != nil {
				if errors.Is(err, ErrProcessExited) {
					return 0, err
				}
				logflags.DebuggerLogger().Debugf("skip unreadable chunk at %v: %v", addr, err)
				continue
			}
			if i := sig.index(chunk); i >= 0 {
				return addr.Add(int64(i)), nil
			}
		}
	}
	return 0, ErrSignatureNotFound
}
