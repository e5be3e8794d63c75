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

package mono

import (
	"bytes"
	"fmt"

	"github.com/rhelmot/CelesteAutosplitterCore/pkg/proc"
)

const (
	// maxNameLen bounds every name buffer read from the target.
	maxNameLen = 128
	// maxGenericDepth bounds generic instantiation redirections; one is
	// the only legitimate case.
	maxGenericDepth = 4
	// maxBucketSteps bounds a single bucket chain; longer chains are
	// taken as a cycle.
	maxBucketSteps = 1 << 16
	maxBuckets     = 1 << 20
	maxFieldCount  = 1 << 12
)

// ClassKind is the low three bits of a class record's kind byte.
type ClassKind uint8

const (
	// KindDef is a plain class definition.
	KindDef ClassKind = 1
	// KindGTD is a generic type definition. It shares the definition
	// layout, including the field table.
	KindGTD ClassKind = 2
	// KindGInst is an instantiation of a generic type definition. It has
	// no field table of its own.
	KindGInst ClassKind = 3
)

func (k ClassKind) String() string {
	switch k {
	case KindDef:
		return "def"
	case KindGTD:
		return "gtd"
	case KindGInst:
		return "ginst"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Class is the address of a class record.
type Class proc.Address

// HashTable is the address of a class cache hash table.
type HashTable proc.Address

// FieldDescriptor is one decoded entry of a class field table.
type FieldDescriptor struct {
	Name   string
	Offset uint32
}

// Resolver answers metadata queries against one process. It holds no
// state besides the memory port and layout, so every query re-reads the
// target.
type Resolver struct {
	mem    proc.MemoryReader
	layout *Layout
}

// NewResolver returns a resolver reading mem with the given layout.
func NewResolver(mem proc.MemoryReader, layout *Layout) *Resolver {
	return &Resolver{mem: mem, layout: layout}
}

// Layout returns the layout the resolver was built with.
func (r *Resolver) Layout() *Layout {
	return r.layout
}

func (r *Resolver) ptr(addr proc.Address) (proc.Address, error) {
	return proc.ReadPointer(r.mem, addr, r.layout.PointerSize)
}

// nameEquals compares the NUL terminated string at addr with name without
// reading more than maxNameLen bytes.
func (r *Resolver) nameEquals(addr proc.Address, name string) (bool, error) {
	if len(name)+1 > maxNameLen {
		return false, nil
	}
	buf := make([]byte, len(name)+1)
	if err := proc.ReadBytes(r.mem, addr, buf); err != nil {
		return false, err
	}
	return buf[len(name)] == 0 && string(buf[:len(name)]) == name, nil
}

// readCString reads a NUL terminated string of at most maxNameLen bytes.
func (r *Resolver) readCString(addr proc.Address) (string, error) {
	var out []byte
	var chunk [16]byte
	for len(out) < maxNameLen {
		if err := proc.ReadBytes(r.mem, addr.Add(int64(len(out))), chunk[:]); err != nil {
			return "", err
		}
		if i := bytes.IndexByte(chunk[:], 0); i >= 0 {
			return string(append(out, chunk[:i]...)), nil
		}
		out = append(out, chunk[:]...)
	}
	return string(out[:maxNameLen]), nil
}

// LookupClass scans the class cache for a class called name. Buckets are
// visited in index order and each chain in link order, so the result is
// deterministic for a fixed table.
func (r *Resolver) LookupClass(table HashTable, name string) (Class, error) {
	l := r.layout
	tableAddr := proc.Address(table)
	size, err := proc.ReadInt32(r.mem, tableAddr.Add(l.HashTableSize))
	if err != nil {
		return 0, structural("read class cache size", tableAddr, err)
	}
	if size < 0 || size > maxBuckets {
		return 0, structural("read class cache size", tableAddr, fmt.Errorf("%w: %d", errBadTableSize, size))
	}
	buckets, err := r.ptr(tableAddr.Add(l.HashTableTable))
	if err != nil {
		return 0, structural("read class cache buckets", tableAddr, err)
	}
	bucketMem := proc.CacheRange(r.mem, buckets, int(size)*l.PointerSize)

	for bidx := int64(0); bidx < int64(size); bidx++ {
		klass, err := proc.ReadPointer(bucketMem, buckets.Add(bidx*int64(l.PointerSize)), l.PointerSize)
		if err != nil {
			return 0, structural("read class cache bucket", buckets, err)
		}
		for steps := 0; !klass.IsNull(); steps++ {
			if steps >= maxBucketSteps {
				return 0, structural("walk class cache bucket", buckets, errChainTooLong)
			}
			namePtr, err := r.ptr(klass.Add(l.ClassName))
			if err != nil {
				return 0, structural("read class name", klass, err)
			}
			ok, err := r.nameEquals(namePtr, name)
			if err != nil {
				return 0, structural("read class name", namePtr, err)
			}
			if ok {
				return Class(klass), nil
			}
			next, err := r.ptr(klass.Add(l.ClassDefNextCache))
			if err != nil {
				return 0, structural("read next class in bucket", klass, err)
			}
			klass = next
		}
	}
	return 0, fmt.Errorf("class %q: %w", name, ErrNotFound)
}

// ClassName returns the simple name of c.
func (r *Resolver) ClassName(c Class) (string, error) {
	namePtr, err := r.ptr(proc.Address(c).Add(r.layout.ClassName))
	if err != nil {
		return "", structural("read class name", proc.Address(c), err)
	}
	return r.readCString(namePtr)
}

// Kind reads the kind byte of c. Kinds outside the known set are
// structural errors.
func (r *Resolver) Kind(c Class) (ClassKind, error) {
	b, err := proc.ReadUint8(r.mem, proc.Address(c).Add(r.layout.ClassKind))
	if err != nil {
		return 0, structural("read class kind", proc.Address(c), err)
	}
	kind := ClassKind(b & 0x7)
	switch kind {
	case KindDef, KindGTD, KindGInst:
		return kind, nil
	}
	return 0, structural("read class kind", proc.Address(c), fmt.Errorf("%w: %v", errUnknownKind, kind))
}

// definition follows generic instantiations to the class that owns the
// field table.
func (r *Resolver) definition(c Class) (Class, error) {
	for depth := 0; ; depth++ {
		kind, err := r.Kind(c)
		if err != nil {
			return 0, err
		}
		if kind != KindGInst {
			return c, nil
		}
		if depth >= maxGenericDepth {
			return 0, structural("follow generic instantiation", proc.Address(c), errGenericDepth)
		}
		gc, err := r.ptr(proc.Address(c).Add(r.layout.ClassGenericClass))
		if err != nil {
			return 0, structural("read generic class", proc.Address(c), err)
		}
		container, err := r.ptr(gc.Add(r.layout.GenericClassContainer))
		if err != nil {
			return 0, structural("read generic container class", gc, err)
		}
		c = Class(container)
	}
}

// Fields decodes the whole field table of c, following a generic
// instantiation to its definition.
func (r *Resolver) Fields(c Class) ([]FieldDescriptor, error) {
	var fields []FieldDescriptor
	err := r.walkFields(c, func(name proc.Address, offset uint32) (bool, error) {
		s, err := r.readCString(name)
		if err != nil {
			return false, structural("read field name", name, err)
		}
		fields = append(fields, FieldDescriptor{Name: s, Offset: offset})
		return false, nil
	})
	return fields, err
}

// FieldOffset returns the offset of the field called name in c. The
// offset is relative to the object start for instance fields and to the
// static storage for static fields.
func (r *Resolver) FieldOffset(c Class, name string) (uint32, error) {
	var found uint32
	var ok bool
	err := r.walkFields(c, func(namePtr proc.Address, offset uint32) (bool, error) {
		match, err := r.nameEquals(namePtr, name)
		if err != nil {
			return false, structural("read field name", namePtr, err)
		}
		if match {
			found, ok = offset, true
		}
		return match, nil
	})
	if err != nil {
		return 0, err
	}
	if !ok {
		return 0, fmt.Errorf("field %q: %w", name, ErrNotFound)
	}
	return found, nil
}

// walkFields calls fn for every named record of the field table of c in
// table order until fn returns true.
func (r *Resolver) walkFields(c Class, fn func(name proc.Address, offset uint32) (bool, error)) error {
	l := r.layout
	def, err := r.definition(c)
	if err != nil {
		return err
	}
	defAddr := proc.Address(def)
	count, err := proc.ReadInt32(r.mem, defAddr.Add(l.ClassDefFieldCount))
	if err != nil {
		return structural("read field count", defAddr, err)
	}
	if count < 0 || count > maxFieldCount {
		return structural("read field count", defAddr, fmt.Errorf("%w: %d", errBadFieldCount, count))
	}
	if count == 0 {
		return nil
	}
	table, err := r.ptr(defAddr.Add(l.ClassFields))
	if err != nil {
		return structural("read field table", defAddr, err)
	}
	recSize := l.fieldRecordSize()
	mem := proc.CacheRange(r.mem, table, int(int64(count)*recSize))
	for i := int64(0); i < int64(count); i++ {
		rec := table.Add(i * recSize)
		name, err := proc.ReadPointer(mem, rec.Add(l.FieldNameWord*int64(l.PointerSize)), l.PointerSize)
		if err != nil {
			return structural("read field record", rec, err)
		}
		packed, err := proc.ReadPointer(mem, rec.Add(l.FieldOffsetWord*int64(l.PointerSize)), l.PointerSize)
		if err != nil {
			return structural("read field record", rec, err)
		}
		if name.IsNull() {
			continue
		}
		// upper bits of the packed word are unrelated flags
		done, err := fn(name, uint32(packed))
		if err != nil || done {
			return err
		}
	}
	return nil
}

// StaticFieldSlot returns the address of the vtable slot holding the
// static storage pointer of c. The slot index is the class's vtable
// length, which varies per class and is re-read on every call.
func (r *Resolver) StaticFieldSlot(c Class) (proc.Address, error) {
	l := r.layout
	addr := proc.Address(c)
	info, err := r.ptr(addr.Add(l.ClassRuntimeInfo))
	if err != nil {
		return 0, structural("read runtime info", addr, err)
	}
	if info.IsNull() {
		return 0, fmt.Errorf("runtime info of class at %v: %w", addr, ErrNotInitialized)
	}
	vtable, err := r.ptr(info.Add(l.RuntimeInfoDomainVTables))
	if err != nil {
		return 0, structural("read domain vtable", info, err)
	}
	if vtable.IsNull() {
		return 0, fmt.Errorf("vtable of class at %v: %w", addr, ErrNotInitialized)
	}
	vtLen, err := proc.ReadInt32(r.mem, addr.Add(l.ClassVTableSize))
	if err != nil {
		return 0, structural("read vtable size", addr, err)
	}
	if vtLen < 0 {
		return 0, structural("read vtable size", addr, fmt.Errorf("negative vtable size %d", vtLen))
	}
	return vtable.Add(l.VTableHeaderSize + int64(vtLen)*int64(l.PointerSize)), nil
}

// InstanceClass returns the dynamic class of the object at obj. The
// header word carries lock bits that are masked off before use.
func (r *Resolver) InstanceClass(obj proc.Address) (Class, error) {
	if obj.IsNull() {
		return 0, fmt.Errorf("object: %w", ErrNotInitialized)
	}
	header, err := proc.ReadTaggedPointer(r.mem, obj, r.layout.PointerSize)
	if err != nil {
		return 0, err
	}
	if header.Untagged().IsNull() {
		return 0, fmt.Errorf("object header at %v: %w", obj, ErrNotInitialized)
	}
	return Class(header.Untagged()), nil
}

// ResolveField returns the address of the instance field name of obj.
func (r *Resolver) ResolveField(obj proc.Address, name string) (proc.Address, error) {
	c, err := r.InstanceClass(obj)
	if err != nil {
		return 0, err
	}
	off, err := r.FieldOffset(c, name)
	if err != nil {
		return 0, err
	}
	return obj.Add(int64(off)), nil
}

// ResolveStaticField returns the address of the static field name of c.
func (r *Resolver) ResolveStaticField(c Class, name string) (proc.Address, error) {
	off, err := r.FieldOffset(c, name)
	if err != nil {
		return 0, err
	}
	slot, err := r.StaticFieldSlot(c)
	if err != nil {
		return 0, err
	}
	data, err := r.ptr(slot)
	if err != nil {
		return 0, structural("read static storage", slot, err)
	}
	if data.IsNull() {
		return 0, fmt.Errorf("static storage of class at %v: %w", proc.Address(c), ErrNotInitialized)
	}
	return data.Add(int64(off)), nil
}
