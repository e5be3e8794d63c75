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

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/go-delve/delve/pkg/proc"
)

// MemoryReader is the memory port every resolver is built on. Any delve
// target memory, a live process handle or a synthetic image satisfies it.
type MemoryReader = proc.MemoryReader

// nullPageSize is the size of the unmapped low region; reads below it
// never succeed on the targets we support.
const nullPageSize = 0x10000

var (
	// ErrProcessExited is wrapped by read errors once the target is gone.
	ErrProcessExited = errors.New("target process exited")
	// ErrNullPointer is returned for reads inside the null page.
	ErrNullPointer = errors.New("null pointer dereference")
	errShortRead   = errors.New("short read")
)

// ReadError describes a failed read of Size bytes at Addr.
type ReadError struct {
	Addr Address
	Size int
	Err  error
}

func (e *ReadError) Error() string {
	return fmt.Sprintf("read %d bytes at %v: %v", e.Size, e.Addr, e.Err)
}

func (e *ReadError) Unwrap() error {
	return e.Err
}

// ReadBytes fills buf from addr. A short read is a failure.
func ReadBytes(mem MemoryReader, addr Address, buf []byte) error {
	if addr < nullPageSize {
		return &ReadError{Addr: addr, Size: len(buf), Err: ErrNullPointer}
	}
	n, err := mem.ReadMemory(buf, uint64(addr))
	if err != nil {
		return &ReadError{Addr: addr, Size: len(buf), Err: err}
	}
	if n < len(buf) {
		return &ReadError{Addr: addr, Size: len(buf), Err: errShortRead}
	}
	return nil
}

func readUintRaw(mem MemoryReader, addr Address, size int64) (uint64, error) {
	var n uint64

	var tmp [8]byte
	val := tmp[:size]
	if err := ReadBytes(mem, addr, val); err != nil {
		return 0, err
	}

	switch size {
	case 1:
		n = uint64(val[0])
	case 2:
		n = uint64(binary.LittleEndian.Uint16(val))
	case 4:
		n = uint64(binary.LittleEndian.Uint32(val))
	case 8:
		n = binary.LittleEndian.Uint64(val)
	}

	return n, nil
}

// ReadUint8 reads one byte.
func ReadUint8(mem MemoryReader, addr Address) (uint8, error) {
	v, err := readUintRaw(mem, addr, 1)
	return uint8(v), err
}

// ReadBool reads one byte, nonzero meaning true.
func ReadBool(mem MemoryReader, addr Address) (bool, error) {
	v, err := readUintRaw(mem, addr, 1)
	return v != 0, err
}

// ReadUint32 reads a little endian 32-bit value.
func ReadUint32(mem MemoryReader, addr Address) (uint32, error) {
	v, err := readUintRaw(mem, addr, 4)
	return uint32(v), err
}

// ReadInt32 reads a little endian signed 32-bit value.
func ReadInt32(mem MemoryReader, addr Address) (int32, error) {
	v, err := readUintRaw(mem, addr, 4)
	return int32(uint32(v)), err
}

// ReadUint64 reads a little endian 64-bit value.
func ReadUint64(mem MemoryReader, addr Address) (uint64, error) {
	return readUintRaw(mem, addr, 8)
}

// ReadInt64 reads a little endian signed 64-bit value.
func ReadInt64(mem MemoryReader, addr Address) (int64, error) {
	v, err := readUintRaw(mem, addr, 8)
	return int64(v), err
}

// ReadPointer reads a pointer of ptrSize bytes (4 or 8).
func ReadPointer(mem MemoryReader, addr Address, ptrSize int) (Address, error) {
	if ptrSize != 4 && ptrSize != 8 {
		return 0, fmt.Errorf("unsupported pointer size %d", ptrSize)
	}
	v, err := readUintRaw(mem, addr, int64(ptrSize))
	return Address(v), err
}
