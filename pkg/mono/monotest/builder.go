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

// Package monotest builds runtime metadata structures inside a synthetic
// address space, laid out as a mono.Layout describes them.
package monotest

import (
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/mono"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/proc/memimg"
)

const classRecordSize = 0x140

// Field describes one field table entry. Flags land in the upper half of
// the packed offset word.
type Field struct {
	Name   string
	Offset uint32
	Flags  uint32
}

// Builder lays out classes, objects and statics in Img.
type Builder struct {
	Img    *memimg.Image
	Layout *mono.Layout

	table   uint64
	buckets uint64
	tails   map[int]uint64
}

// NewBuilder allocates an empty class cache with n buckets.
func NewBuilder(img *memimg.Image, layout *mono.Layout, n int) *Builder {
	b := &Builder{Img: img, Layout: layout, tails: map[int]uint64{}}
	b.table = img.Alloc(0x40)
	b.buckets = img.Alloc(n * layout.PointerSize)
	img.PutUint32(b.table+uint64(layout.HashTableSize), uint32(n))
	b.putPtr(b.table+uint64(layout.HashTableTable), b.buckets)
	return b
}

// Table returns the class cache address.
func (b *Builder) Table() mono.HashTable {
	return mono.HashTable(b.table)
}

// TableAddr returns the class cache address as a raw integer.
func (b *Builder) TableAddr() uint64 {
	return b.table
}

func (b *Builder) putPtr(addr, v uint64) {
	b.Img.PutPointer(addr, v, b.Layout.PointerSize)
}

func (b *Builder) off(o int64) uint64 {
	return uint64(o)
}

// Link appends class to the chain of bucket.
func (b *Builder) Link(bucket int, class uint64) {
	if tail, ok := b.tails[bucket]; ok {
		b.putPtr(tail+b.off(b.Layout.ClassDefNextCache), class)
	} else {
		b.putPtr(b.buckets+uint64(bucket*b.Layout.PointerSize), class)
	}
	b.tails[bucket] = class
}

// NewClass allocates a class record of the given kind with a field table
// and links it into bucket. A negative bucket leaves it unlinked.
func (b *Builder) NewClass(bucket int, name string, kind mono.ClassKind, fields ...Field) uint64 {
	l := b.Layout
	c := b.Img.Alloc(classRecordSize)
	// high bits of the kind byte belong to other bitfields
	b.Img.PutUint8(c+b.off(l.ClassKind), uint8(kind)|0xa8)
	b.putPtr(c+b.off(l.ClassName), b.Img.CString(name))
	b.putPtr(c+b.off(l.ClassNamespace), b.Img.CString("Celeste"))
	if len(fields) > 0 {
		rec := l.FieldRecordWords * int64(l.PointerSize)
		table := b.Img.Alloc(len(fields) * int(rec))
		for i, f := range fields {
			at := table + uint64(int64(i)*rec)
			b.putPtr(at, b.Img.Alloc(16)) // type
			if f.Name != "" {
				b.putPtr(at+uint64(l.FieldNameWord*int64(l.PointerSize)), b.Img.CString(f.Name))
			}
			b.putPtr(at+uint64(2*l.PointerSize), c) // parent
			packed := uint64(f.Flags)<<32 | uint64(f.Offset)
			b.putPtr(at+uint64(l.FieldOffsetWord*int64(l.PointerSize)), packed)
		}
		b.putPtr(c+b.off(l.ClassFields), table)
	}
	b.Img.PutUint32(c+b.off(l.ClassDefFieldCount), uint32(len(fields)))
	if bucket >= 0 {
		b.Link(bucket, c)
	}
	return c
}

// NewGenericInst allocates an instantiation of def and links it into
// bucket.
func (b *Builder) NewGenericInst(bucket int, name string, def uint64) uint64 {
	l := b.Layout
	c := b.Img.Alloc(classRecordSize)
	b.Img.PutUint8(c+b.off(l.ClassKind), uint8(mono.KindGInst))
	b.putPtr(c+b.off(l.ClassName), b.Img.CString(name))
	gc := b.Img.Alloc(0x40)
	b.putPtr(gc+b.off(l.GenericClassContainer), def)
	b.putPtr(c+b.off(l.ClassGenericClass), gc)
	if bucket >= 0 {
		b.Link(bucket, c)
	}
	return c
}

// SetKindByte overwrites the raw kind byte of class.
func (b *Builder) SetKindByte(class uint64, v uint8) {
	b.Img.PutUint8(class+b.off(b.Layout.ClassKind), v)
}

// SetStatics gives class a runtime info, a vtable of vtLen slots and
// static storage of size bytes, and returns the storage address.
func (b *Builder) SetStatics(class uint64, vtLen int32, size int) uint64 {
	l := b.Layout
	info := b.Img.Alloc(0x20)
	vtable := b.Img.Alloc(int(l.VTableHeaderSize) + (int(vtLen)+1)*l.PointerSize)
	data := b.Img.Alloc(size)
	b.putPtr(class+b.off(l.ClassRuntimeInfo), info)
	b.putPtr(info+b.off(l.RuntimeInfoDomainVTables), vtable)
	b.Img.PutUint32(class+b.off(l.ClassVTableSize), uint32(vtLen))
	b.putPtr(vtable+uint64(l.VTableHeaderSize)+uint64(int(vtLen)*l.PointerSize), data)
	return data
}

// NewObject allocates an instance of class whose header carries tag in
// its low bits.
func (b *Builder) NewObject(class uint64, size int, tag uint8) uint64 {
	obj := b.Img.Alloc(size)
	b.putPtr(obj, class|uint64(tag))
	return obj
}

// NewString allocates a managed string object holding s.
func (b *Builder) NewString(s string) uint64 {
	l := b.Layout
	n := len(utf16Units(s))
	obj := b.Img.Alloc(int(l.StringChars) + n*2 + 2)
	b.Img.PutUint32(obj+b.off(l.StringLength), uint32(n))
	b.Img.PutUTF16(obj+b.off(l.StringChars), s)
	return obj
}

// NewDomain builds a root domain whose assembly list holds one assembly
// per name, each with a fresh image, and returns the domain and images.
func (b *Builder) NewDomain(names ...string) (domain uint64, images []uint64) {
	l := b.Layout
	domain = b.Img.Alloc(0x200)
	prev := domain + b.off(l.DomainAssemblies)
	for _, name := range names {
		asm := b.Img.Alloc(0x100)
		image := b.Img.Alloc(int(l.ImageClassCache) + 0x40)
		b.putPtr(asm+b.off(l.AssemblyName), b.Img.CString(name))
		b.putPtr(asm+b.off(l.AssemblyImage), image)
		node := b.Img.Alloc(2 * l.PointerSize)
		b.putPtr(node, asm)
		b.putPtr(prev, node)
		prev = node + uint64(l.PointerSize)
		images = append(images, image)
	}
	return domain, images
}

func utf16Units(s string) []uint16 {
	var out []uint16
	for _, r := range s {
		if r >= 0x10000 {
			r -= 0x10000
			out = append(out, uint16(0xd800+(r>>10)), uint16(0xdc00+(r&0x3ff)))
			continue
		}
		out = append(out, uint16(r))
	}
	return out
}
