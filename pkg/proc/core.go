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
	"bytes"
	"cmp"
	"debug/elf"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"slices"
)

// ntFile is the core note listing file backed mappings.
const ntFile = 0x46494c45

// CoreMappings reads the readable regions and the file backed modules of
// an ELF core dump. Regions come from the PT_LOAD segments that carry
// memory; modules come from the NT_FILE note.
func CoreMappings(path string) ([]Region, []Module, error) {
	f, err := elf.Open(path)
	if err != nil {
		var ferr *elf.FormatError
		if errors.As(err, &ferr) {
			return nil, nil, fmt.Errorf("%s: %w", path, ErrUnsupported)
		}
		return nil, nil, err
	}
	defer f.Close()
	if f.Type != elf.ET_CORE {
		return nil, nil, fmt.Errorf("%s is not a core file", path)
	}
	wordSize := 8
	if f.Class == elf.ELFCLASS32 {
		wordSize = 4
	}

	var regions []Region
	var maps []mapping
	for _, p := range f.Progs {
		switch p.Type {
		case elf.PT_LOAD:
			if p.Flags&elf.PF_R == 0 || p.Filesz == 0 {
				continue
			}
			regions = append(regions, Region{Start: Address(p.Vaddr), Size: p.Memsz})
		case elf.PT_NOTE:
			data, err := io.ReadAll(p.Open())
			if err != nil {
				return nil, nil, fmt.Errorf("read notes: %w", err)
			}
			m, err := fileNoteMappings(data, f.ByteOrder, wordSize)
			if err != nil {
				return nil, nil, err
			}
			maps = append(maps, m...)
		}
	}
	slices.SortFunc(regions, func(a, b Region) int { return cmp.Compare(a.Start, b.Start) })
	slices.SortFunc(maps, func(a, b mapping) int { return cmp.Compare(a.start, b.start) })
	return regions, modulesOf(maps), nil
}

// fileNoteMappings walks the notes in data and decodes the NT_FILE one:
// a count, the page size, count (start, end, offset) triples and then
// count NUL terminated paths.
func fileNoteMappings(data []byte, order binary.ByteOrder, wordSize int) ([]mapping, error) {
	word := func(b []byte) uint64 {
		if wordSize == 4 {
			return uint64(order.Uint32(b))
		}
		return order.Uint64(b)
	}
	align := func(n uint32) int { return int((n + 3) &^ 3) }

	for len(data) >= 12 {
		namesz, descsz, typ := order.Uint32(data), order.Uint32(data[4:]), order.Uint32(data[8:])
		data = data[12:]
		if align(namesz)+align(descsz) > len(data) {
			return nil, errors.New("truncated core note")
		}
		name := data[:namesz]
		desc := data[align(namesz) : align(namesz)+int(descsz)]
		data = data[align(namesz)+align(descsz):]
		if typ != ntFile || string(bytes.TrimRight(name, "\x00")) != "CORE" {
			continue
		}

		if len(desc) < 2*wordSize {
			return nil, errors.New("truncated NT_FILE note")
		}
		table := desc[2*wordSize:]
		n := word(desc)
		if n > uint64(len(table)/(3*wordSize)) {
			return nil, errors.New("truncated NT_FILE note")
		}
		count := int(n)
		names := bytes.Split(table[count*3*wordSize:], []byte{0})
		if len(names) < count {
			return nil, errors.New("truncated NT_FILE paths")
		}
		maps := make([]mapping, count)
		for i := range maps {
			e := table[i*3*wordSize:]
			maps[i] = mapping{
				start:    Address(word(e)),
				end:      Address(word(e[wordSize:])),
				readable: true,
				path:     string(names[i]),
			}
		}
		return maps, nil
	}
	return nil, nil
}
