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
	"fmt"

	"golang.org/x/arch/x86/x86asm"
)

// maxInstLen is the longest x86 instruction encoding.
const maxInstLen = 15

// MemOperand decodes the instruction at addr and returns the absolute
// address referenced by its memory operand. mode is 32 or 64. Both
// absolute ([disp32]) and RIP-relative ([rip+disp32]) forms are accepted.
func MemOperand(mem MemoryReader, addr Address, mode int) (Address, error) {
	buf := make([]byte, maxInstLen)
	if err := ReadBytes(mem, addr, buf); err != nil {
		return 0, err
	}
	return decodeMemOperand(buf, addr, mode)
}

func decodeMemOperand(code []byte, addr Address, mode int) (Address, error) {
	inst, err := x86asm.Decode(code, mode)
	if err != nil {
		return 0, fmt.Errorf("decode instruction at %v: %w", addr, err)
	}
	for _, arg := range inst.Args {
		m, ok := arg.(x86asm.Mem)
		if !ok {
			continue
		}
		switch {
		case m.Base == x86asm.RIP:
			return addr.Add(int64(inst.Len) + m.Disp), nil
		case m.Base == 0 && m.Index == 0:
			if mode == 32 {
				return Address(uint32(m.Disp)), nil
			}
			return Address(m.Disp), nil
		default:
			return 0, fmt.Errorf("instruction %q at %v is register relative", inst.String(), addr)
		}
	}
	return 0, fmt.Errorf("instruction %q at %v has no memory operand", inst.String(), addr)
}
