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
	"debug/elf"
	"errors"
	"fmt"

	"github.com/go-delve/delve/pkg/logflags"

	"github.com/rhelmot/CelesteAutosplitterCore/pkg/proc"
)

const (
	rootDomainSymbol = "mono_get_root_domain"
	maxAssemblies    = 1 << 12
)

// RootDomain locates the runtime's root domain in p. The exported
// accessor mono_get_root_domain loads a global with a RIP-relative mov;
// decoding that instruction yields the global's address.
func RootDomain(p proc.Process, layout *Layout) (proc.Address, error) {
	mods, err := p.Modules()
	if err != nil {
		return 0, err
	}
	for _, m := range mods {
		fn, err := symbolAddress(m, rootDomainSymbol)
		if err != nil {
			continue
		}
		global, err := proc.MemOperand(p, fn, 64)
		if err != nil {
			return 0, structural("decode "+rootDomainSymbol, fn, err)
		}
		domain, err := proc.ReadPointer(p, global, layout.PointerSize)
		if err != nil {
			return 0, err
		}
		if domain.IsNull() {
			return 0, fmt.Errorf("root domain: %w", ErrNotInitialized)
		}
		logflags.DebuggerLogger().Debugf("root domain %v via %s in %s", domain, rootDomainSymbol, m.Name)
		return domain, nil
	}
	return 0, fmt.Errorf("symbol %s: %w", rootDomainSymbol, ErrNotFound)
}

// symbolAddress returns the load address of a dynamic symbol of m.
func symbolAddress(m proc.Module, name string) (proc.Address, error) {
	f, err := elf.Open(m.Path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	syms, err := f.DynamicSymbols()
	if err != nil {
		return 0, err
	}
	var lowest uint64
	first := true
	for _, prog := range f.Progs {
		if prog.Type != elf.PT_LOAD {
			continue
		}
		vaddr := prog.Vaddr
		if prog.Align > 1 {
			vaddr &^= prog.Align - 1
		}
		if first || vaddr < lowest {
			lowest, first = vaddr, false
		}
	}
	for _, s := range syms {
		if s.Name == name && elf.ST_TYPE(s.Info) == elf.STT_FUNC && s.Value != 0 {
			if f.Type == elf.ET_EXEC {
				return proc.Address(s.Value), nil
			}
			return m.Base.Add(int64(s.Value - lowest)), nil
		}
	}
	return 0, errors.New("symbol not exported")
}

// FindImage walks the assemblies loaded in domain and returns the image of
// the one called assembly.
func (r *Resolver) FindImage(domain proc.Address, assembly string) (proc.Address, error) {
	l := r.layout
	node, err := r.ptr(domain.Add(l.DomainAssemblies))
	if err != nil {
		return 0, err
	}
	for steps := 0; !node.IsNull(); steps++ {
		if steps >= maxAssemblies {
			return 0, structural("walk domain assemblies", domain, errChainTooLong)
		}
		asm, err := r.ptr(node)
		if err != nil {
			return 0, structural("read assembly list node", node, err)
		}
		if !asm.IsNull() {
			namePtr, err := r.ptr(asm.Add(l.AssemblyName))
			if err != nil {
				return 0, structural("read assembly name", asm, err)
			}
			ok, err := r.nameEquals(namePtr, assembly)
			if err != nil {
				return 0, structural("read assembly name", namePtr, err)
			}
			if ok {
				image, err := r.ptr(asm.Add(l.AssemblyImage))
				if err != nil {
					return 0, structural("read assembly image", asm, err)
				}
				if image.IsNull() {
					return 0, fmt.Errorf("image of %s: %w", assembly, ErrNotInitialized)
				}
				return image, nil
			}
		}
		next, err := r.ptr(node.Add(int64(l.PointerSize)))
		if err != nil {
			return 0, structural("read assembly list link", node, err)
		}
		node = next
	}
	return 0, fmt.Errorf("assembly %q: %w", assembly, ErrNotFound)
}

// ClassCache returns the class cache table embedded in image.
func (r *Resolver) ClassCache(image proc.Address) HashTable {
	return HashTable(image.Add(r.layout.ImageClassCache))
}
