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
	"debug/elf"
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func note(name string, typ uint32, desc []byte) []byte {
	var b bytes.Buffer
	n := append([]byte(name), 0)
	binary.Write(&b, binary.LittleEndian, []uint32{uint32(len(n)), uint32(len(desc)), typ})
	b.Write(n)
	b.Write(make([]byte, (4-len(n)%4)%4))
	b.Write(desc)
	b.Write(make([]byte, (4-len(desc)%4)%4))
	return b.Bytes()
}

func fileNote(files []mapping) []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, []uint64{uint64(len(files)), 0x1000})
	for _, f := range files {
		binary.Write(&b, binary.LittleEndian, []uint64{uint64(f.start), uint64(f.end), 0})
	}
	for _, f := range files {
		b.WriteString(f.path)
		b.WriteByte(0)
	}
	return b.Bytes()
}

var coreFiles = []mapping{
	{start: 0x7f0000010000, end: 0x7f0000011000, path: "/opt/celeste/libmonosgen-2.0.so"},
	{start: 0x400000, end: 0x401000, path: "/opt/celeste/Celeste"},
	{start: 0x7f0000011000, end: 0x7f0000015000, path: "/opt/celeste/libmonosgen-2.0.so"},
}

func writeCore(t *testing.T, typ elf.Type) string {
	t.Helper()
	notes := append(note("CORE", 1, make([]byte, 20)), note("CORE", ntFile, fileNote(coreFiles))...)
	loads := []struct {
		vaddr, filesz, memsz uint64
		flags                elf.ProgFlag
	}{
		{vaddr: 0x7f0000010000, filesz: 0x10, memsz: 0x1000, flags: elf.PF_R | elf.PF_X},
		{vaddr: 0x400000, filesz: 0x10, memsz: 0x1000, flags: elf.PF_R},
		{vaddr: 0x600000, filesz: 0, memsz: 0x1000, flags: elf.PF_R},
		{vaddr: 0x700000, filesz: 0x10, memsz: 0x1000},
	}

	const ehsize, phentsize = 64, 56
	phnum := 1 + len(loads)
	off := uint64(ehsize + phentsize*phnum)

	hdr := elf.Header64{
		Type:      uint16(typ),
		Machine:   uint16(elf.EM_X86_64),
		Version:   uint32(elf.EV_CURRENT),
		Phoff:     ehsize,
		Ehsize:    ehsize,
		Phentsize: phentsize,
		Phnum:     uint16(phnum),
	}
	copy(hdr.Ident[:], elf.ELFMAG)
	hdr.Ident[elf.EI_CLASS] = byte(elf.ELFCLASS64)
	hdr.Ident[elf.EI_DATA] = byte(elf.ELFDATA2LSB)
	hdr.Ident[elf.EI_VERSION] = byte(elf.EV_CURRENT)

	var b bytes.Buffer
	require.NoError(t, binary.Write(&b, binary.LittleEndian, &hdr))
	progs := []elf.Prog64{{Type: uint32(elf.PT_NOTE), Off: off, Filesz: uint64(len(notes)), Align: 4}}
	off += uint64(len(notes))
	for _, l := range loads {
		progs = append(progs, elf.Prog64{
			Type: uint32(elf.PT_LOAD), Flags: uint32(l.flags), Off: off,
			Vaddr: l.vaddr, Filesz: l.filesz, Memsz: l.memsz, Align: 0x1000,
		})
		off += l.filesz
	}
	require.NoError(t, binary.Write(&b, binary.LittleEndian, progs))
	b.Write(notes)
	for _, l := range loads {
		b.Write(make([]byte, l.filesz))
	}

	path := filepath.Join(t.TempDir(), "core")
	require.NoError(t, os.WriteFile(path, b.Bytes(), 0o644))
	return path
}

func TestCoreMappings(t *testing.T) {
	regions, mods, err := CoreMappings(writeCore(t, elf.ET_CORE))
	require.NoError(t, err)
	assert.Equal(t, []Region{
		{Start: 0x400000, Size: 0x1000},
		{Start: 0x7f0000010000, Size: 0x1000},
	}, regions)
	assert.Equal(t, []Module{
		{Name: "Celeste", Path: "/opt/celeste/Celeste", Base: 0x400000, Size: 0x1000},
		{Name: "libmonosgen-2.0.so", Path: "/opt/celeste/libmonosgen-2.0.so", Base: 0x7f0000010000, Size: 0x5000},
	}, mods)
}

func TestCoreMappingsRejects(t *testing.T) {
	_, _, err := CoreMappings(writeCore(t, elf.ET_EXEC))
	assert.ErrorContains(t, err, "not a core file")

	dump := filepath.Join(t.TempDir(), "Celeste.dmp")
	require.NoError(t, os.WriteFile(dump, append([]byte("MDMP\x93\xa7\x00\x00"), make([]byte, 64)...), 0o644))
	_, _, err = CoreMappings(dump)
	assert.ErrorIs(t, err, ErrUnsupported)
}

func TestFileNoteTruncated(t *testing.T) {
	desc := fileNote(coreFiles)
	_, err := fileNoteMappings(note("CORE", ntFile, desc[:40]), binary.LittleEndian, 8)
	assert.Error(t, err)

	maps, err := fileNoteMappings(note("LINUX", ntFile, desc), binary.LittleEndian, 8)
	require.NoError(t, err)
	assert.Empty(t, maps)
}
