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

// ResolveChain walks a nested field access path. Starting at base, every
// offset but the last is added and then dereferenced; the last is only
// added. A failed read aborts the walk, no partial address is returned.
//
// Address arithmetic wraps at the pointer width, so a 32-bit target keeps
// 32-bit addresses.
func ResolveChain(mem MemoryReader, base Address, offsets []int32, ptrSize int) (Address, error) {
	addr := base
	for i, off := range offsets {
		addr = wrap(addr.Add(int64(off)), ptrSize)
		if i == len(offsets)-1 {
			break
		}
		next, err := ReadPointer(mem, addr, ptrSize)
		if err != nil {
			return 0, err
		}
		addr = next
	}
	return addr, nil
}

func wrap(addr Address, ptrSize int) Address {
	if ptrSize == 4 {
		return Address(uint32(addr))
	}
	return addr
}
