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
	"errors"
	"testing"
)

type sliceMem struct {
	base uint64
	data []byte
}

func (s *sliceMem) ReadMemory(buf []byte, addr uint64) (int, error) {
	if addr < s.base || addr+uint64(len(buf)) > s.base+uint64(len(s.data)) {
		return 0, errors.New("out of range")
	}
	return copy(buf, s.data[addr-s.base:]), nil
}

func TestParseSignature(t *testing.T) {
	sig, err := ParseSignature("8D 15 ???????? E8")
	if err != nil {
		t.Fatal(err)
	}
	if sig.Len() != 7 {
		t.Fatalf("len = %d, want 7", sig.Len())
	}
	for _, bad := range []string{"", "8D1", "ZZ"} {
		if _, err := ParseSignature(bad); err == nil {
			t.Errorf("ParseSignature(%q) succeeded", bad)
		}
	}
}

func TestScanAcrossChunks(t *testing.T) {
	data := make([]byte, 3*scanChunkSize)
	// straddle the first chunk boundary
	pos := scanChunkSize - 3
	copy(data[pos:], []byte{0x8D, 0x15, 0x44, 0x33, 0x22, 0x11, 0xE8})
	mem := &sliceMem{base: 0x40_0000, data: data}

	got, err := Scan(mem, []Region{{Start: 0x40_0000, Size: uint64(len(data))}}, MustParseSignature("8D15????????E8"))
	if err != nil {
		t.Fatal(err)
	}
	if want := Address(0x40_0000 + pos); got != want {
		t.Fatalf("Scan = %v, want %v", got, want)
	}
}

func TestScanNotFound(t *testing.T) {
	mem := &sliceMem{base: 0x40_0000, data: make([]byte, 1024)}
	_, err := Scan(mem, []Region{{Start: 0x40_0000, Size: 1024}}, MustParseSignature("C605"))
	if !errors.Is(err, ErrSignatureNotFound) {
		t.Fatalf("err = %v", err)
	}
}

func TestDecodeMemOperand(t *testing.T) {
	tests := []struct {
		name string
		code []byte
		addr Address
		mode int
		want Address
	}{
		{
			name: "lea edx absolute",
			code: []byte{0x8D, 0x15, 0x78, 0x56, 0x34, 0x12},
			addr: 0x1000,
			mode: 32,
			want: 0x12345678,
		},
		{
			name: "mov rax rip relative",
			code: []byte{0x48, 0x8B, 0x05, 0x10, 0x00, 0x00, 0x00},
			addr: 0x7f00_0000,
			mode: 64,
			want: 0x7f00_0000 + 7 + 0x10,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code := append(append([]byte{}, tt.code...), make([]byte, maxInstLen)...)
			got, err := decodeMemOperand(code, tt.addr, tt.mode)
			if err != nil {
				t.Fatal(err)
			}
			if got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
