// Copyright (c) 2014 Derek Parker
//
// Permission is hereby granted, free of charge, to any person obtaining a copy of
// this software and associated documentation files (the "Software"), to deal in
// the Software without restriction, including without limitation the rights to
// use, copy, modify, merge, publish, distribute, sublicense, and/or sell copies of
// the Software, and to permit persons to whom the Software is furnished to do so,
// subject to the following conditions:
//
// The above copyright notice and this permission notice shall be included in all
// copies or substantial portions of the Software.
//
// This file may have been modified by CloudWeGo authors. All CloudWeGo
// Modifications are Copyright 2024 CloudWeGo Authors.

package proc

const (
	cacheEnabled   = true
	cacheThreshold = 1024 * 1024 // 1MB
)

// memCache serves reads inside [cacheAddr, cacheAddr+len(cache)) from one
// bulk read of the whole range. It lives only as long as the operation
// that created it.
type memCache struct {
	loaded    bool
	cacheAddr uint64
	cache     []byte
	mem       MemoryReader
}

func (m *memCache) contains(addr uint64, size int) bool {
	end := addr + uint64(size)
	if end < addr {
		// overflow
		return false
	}
	return addr >= m.cacheAddr && end <= m.cacheAddr+uint64(len(m.cache))
}

func (m *memCache) ReadMemory(data []byte, addr uint64) (n int, err error) {
	if m.contains(addr, len(data)) {
		if !m.loaded {
			if err := ReadBytes(m.mem, Address(m.cacheAddr), m.cache); err != nil {
				return 0, err
			}
			m.loaded = true
		}
		copy(data, m.cache[addr-m.cacheAddr:])
		return len(data), nil
	}

	return m.mem.ReadMemory(data, addr)
}

// CacheRange returns a reader that satisfies every read inside
// [addr, addr+size) from a single read of the target.
func CacheRange(mem MemoryReader, addr Address, size int) MemoryReader {
	if !cacheEnabled {
		return mem
	}
	if size <= 0 {
		return mem
	}
	if uint64(addr)+uint64(size) < uint64(addr) {
		// overflow
		return mem
	}
	if size > cacheThreshold {
		return mem
	}
	switch cacheMem := mem.(type) {
	case *memCache:
		if cacheMem.contains(uint64(addr), size) {
			return mem
		}
		return &memCache{false, uint64(addr), make([]byte, size), cacheMem.mem}
	}
	return &memCache{false, uint64(addr), make([]byte, size), mem}
}
