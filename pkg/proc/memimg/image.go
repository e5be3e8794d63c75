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

// Package memimg provides a sparse synthetic address space that satisfies
// the memory port, for building runtime metadata layouts in tests and
// replaying captured snapshots.
package memimg

import (
	"encoding/binary"
	"errors"
	"fmt"
	"sync"
	"unicode/utf16"

	"github.com/rhelmot/CelesteAutosplitterCore/pkg/proc"
)

const (
	pageSize  = 4096
	allocBase = 0x10_0000
)

var errUnmapped = errors.New("unmapped address")

// Image is a sparse little endian address space. Pages are mapped on
// first write; reads of unmapped or faulted pages fail.
type Image struct {
	mu     sync.Mutex
	pages  map[uint64]*[pageSize]byte
	faults map[uint64]bool
	exited bool
	next   uint64
	reads  int
}

// New returns an empty image.
func New() *Image {
	return &Image{
		pages:  map[uint64]*[pageSize]byte{},
		faults: map[uint64]bool{},
		next:   allocBase,
	}
}

// Alloc reserves size bytes, 16-byte aligned, and maps them zeroed.
func (m *Image) Alloc(size int) uint64 {
	m.mu.Lock()
	addr := m.next
	m.next += uint64((size + 15) &^ 15)
	m.mu.Unlock()
	m.Write(addr, make([]byte, size))
	return addr
}

// Write stores data at addr, mapping pages as needed.
func (m *Image) Write(addr uint64, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for len(data) > 0 {
		base := addr &^ (pageSize - 1)
		page := m.pages[base]
		if page == nil {
			page = new([pageSize]byte)
			m.pages[base] = page
		}
		n := copy(page[addr-base:], data)
		data = data[n:]
		addr += uint64(n)
	}
}

// PutUint8 stores one byte.
func (m *Image) PutUint8(addr uint64, v uint8) {
	m.Write(addr, []byte{v})
}

// PutUint16 stores a 16-bit value.
func (m *Image) PutUint16(addr uint64, v uint16) {
	var b [2]byte
	binary.LittleEndian.PutUint16(b[:], v)
	m.Write(addr, b[:])
}

// PutUint32 stores a 32-bit value.
func (m *Image) PutUint32(addr uint64, v uint32) {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], v)
	m.Write(addr, b[:])
}

// PutUint64 stores a 64-bit value.
func (m *Image) PutUint64(addr uint64, v uint64) {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	m.Write(addr, b[:])
}

// PutPointer stores v with the given pointer width.
func (m *Image) PutPointer(addr, v uint64, ptrSize int) {
	if ptrSize == 4 {
		m.PutUint32(addr, uint32(v))
		return
	}
	m.PutUint64(addr, v)
}

// CString allocates a NUL terminated copy of s and returns its address.
func (m *Image) CString(s string) uint64 {
	addr := m.Alloc(len(s) + 1)
	m.Write(addr, append([]byte(s), 0))
	return addr
}

// PutUTF16 stores s as little endian UTF-16 code units without a length.
func (m *Image) PutUTF16(addr uint64, s string) {
	units := utf16.Encode([]rune(s))
	buf := make([]byte, len(units)*2)
	for i, u := range units {
		binary.LittleEndian.PutUint16(buf[i*2:], u)
	}
	m.Write(addr, buf)
}

// Fault makes the page containing addr unreadable.
func (m *Image) Fault(addr uint64) {
	m.mu.Lock()
	m.faults[addr&^(pageSize-1)] = true
	m.mu.Unlock()
}

// Exit makes every following read report that the process is gone.
func (m *Image) Exit() {
	m.mu.Lock()
	m.exited = true
	m.mu.Unlock()
}

// Reads returns the number of ReadMemory calls served so far.
func (m *Image) Reads() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.reads
}

func (m *Image) ReadMemory(buf []byte, addr uint64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	if m.exited {
		return 0, proc.ErrProcessExited
	}
	n := 0
	for n < len(buf) {
		cur := addr + uint64(n)
		base := cur &^ (pageSize - 1)
		page := m.pages[base]
		if page == nil || m.faults[base] {
			return n, fmt.Errorf("%w: %#x", errUnmapped, cur)
		}
		n += copy(buf[n:], page[cur-base:])
	}
	return n, nil
}
