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

// Package mono resolves classes, instance fields and static fields of a
// running Mono runtime by walking its private metadata structures.
package mono

// Layout lists the byte offsets of the runtime structures the resolver
// reads. The values are tied to a runtime build; a layout that does not
// match the target fails closed with structural errors instead of
// guessing.
type Layout struct {
	Name        string
	PointerSize int

	// MonoInternalHashTable
	HashTableSize  int64
	HashTableTable int64

	// MonoClass, shared by every class kind
	ClassKind        int64
	ClassName        int64
	ClassNamespace   int64
	ClassVTableSize  int64
	ClassFields      int64
	ClassRuntimeInfo int64

	// MonoClassDef / MonoClassGtd
	ClassDefFieldCount int64
	ClassDefNextCache  int64

	// MonoClassGenericInst -> MonoGenericClass
	ClassGenericClass     int64
	GenericClassContainer int64

	// MonoClassField is FieldRecordWords pointer-sized words; the name
	// pointer and the packed offset word sit at these word indexes.
	FieldRecordWords int64
	FieldNameWord    int64
	FieldOffsetWord  int64

	// MonoClassRuntimeInfo / MonoVTable
	RuntimeInfoDomainVTables int64
	VTableHeaderSize         int64

	// MonoDomain / MonoAssembly / MonoImage
	DomainAssemblies int64
	AssemblyName     int64
	AssemblyImage    int64
	ImageClassCache  int64

	// MonoObject / MonoString
	ObjectHeaderSize int64
	StringLength     int64
	StringChars      int64
}

// DefaultLayout matches the 64-bit Mono 5.x/6.x runtime shipped with the
// Linux builds of the game.
var DefaultLayout = Layout{
	Name:        "mono-amd64",
	PointerSize: 8,

	HashTableSize:  0x18,
	HashTableTable: 0x20,

	ClassKind:        0x1b,
	ClassName:        0x48,
	ClassNamespace:   0x50,
	ClassVTableSize:  0x5c,
	ClassFields:      0x98,
	ClassRuntimeInfo: 0xd0,

	ClassDefFieldCount: 0x100,
	ClassDefNextCache:  0x108,

	ClassGenericClass:     0xe0,
	GenericClassContainer: 0x0,

	FieldRecordWords: 4,
	FieldNameWord:    1,
	FieldOffsetWord:  3,

	RuntimeInfoDomainVTables: 0x8,
	VTableHeaderSize:         0x48,

	DomainAssemblies: 0xa0,
	AssemblyName:     0x10,
	AssemblyImage:    0x60,
	ImageClassCache:  0x4c0,

	ObjectHeaderSize: 0x10,
	StringLength:     0x10,
	StringChars:      0x14,
}

// fieldRecordSize returns the size in bytes of one field descriptor.
func (l *Layout) fieldRecordSize() int64 {
	return l.FieldRecordWords * int64(l.PointerSize)
}
