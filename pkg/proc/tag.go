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

// TagMask covers the low bits of an object header word that the runtime
// reserves for its locking scheme.
const TagMask = 0x3

// TaggedPointer is a header word split into its address and tag bits.
type TaggedPointer struct {
	Addr Address
	Tag  uint8
}

// SplitTag separates the bits selected by mask from word.
func SplitTag(word uint64, mask uint64) TaggedPointer {
	return TaggedPointer{Addr: Address(word &^ mask), Tag: uint8(word & mask)}
}

// Untagged returns the address with every tag bit cleared.
func (p TaggedPointer) Untagged() Address {
	return p.Addr
}

// ReadTaggedPointer reads a pointer-sized header word at addr and splits
// off the tag bits.
func ReadTaggedPointer(mem MemoryReader, addr Address, ptrSize int) (TaggedPointer, error) {
	word, err := ReadPointer(mem, addr, ptrSize)
	if err != nil {
		return TaggedPointer{}, err
	}
	return SplitTag(uint64(word), TagMask), nil
}
