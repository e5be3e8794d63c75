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

package proc_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhelmot/CelesteAutosplitterCore/pkg/proc"
	"github.com/rhelmot/CelesteAutosplitterCore/pkg/proc/memimg"
)

func TestResolveChain(t *testing.T) {
	for _, ptrSize := range []int{4, 8} {
		img := memimg.New()
		base := img.Alloc(0x40)
		first := img.Alloc(0x100)
		second := img.Alloc(0x100)
		img.PutPointer(base+0x10, first, ptrSize)
		img.PutPointer(first+0x8c, second, ptrSize)

		got, err := proc.ResolveChain(img, proc.Address(base), []int32{0x10, 0x8c, 0x18}, ptrSize)
		require.NoError(t, err)
		assert.Equal(t, proc.Address(second+0x18), got, "ptrSize %d", ptrSize)
	}
}

func TestResolveChainSingleOffsetIsAddOnly(t *testing.T) {
	img := memimg.New()
	got, err := proc.ResolveChain(img, 0x2000_0000, []int32{0x20}, 8)
	require.NoError(t, err)
	assert.Equal(t, proc.Address(0x2000_0020), got)
	assert.Zero(t, img.Reads())
}

func TestResolveChainFailsOnFirstRead(t *testing.T) {
	img := memimg.New()
	base := img.Alloc(0x40)
	first := img.Alloc(0x100)
	img.PutPointer(base+0x10, first, 8)
	img.Fault(base)

	got, err := proc.ResolveChain(img, proc.Address(base), []int32{0x10, 0x8c, 0x18}, 8)
	require.Error(t, err)
	assert.Zero(t, got)
	var re *proc.ReadError
	require.ErrorAs(t, err, &re)
	assert.Equal(t, proc.Address(base+0x10), re.Addr)
}

func TestResolveChainNullIntermediate(t *testing.T) {
	img := memimg.New()
	base := img.Alloc(0x40)

	_, err := proc.ResolveChain(img, proc.Address(base), []int32{0x0, 0x8c, 0x18}, 4)
	assert.ErrorIs(t, err, proc.ErrNullPointer)
}

func TestResolveChainWrapsAt32Bits(t *testing.T) {
	img := memimg.New()
	base := img.Alloc(0x10)
	img.PutUint32(base, 0xffff_fff0)

	got, err := proc.ResolveChain(img, proc.Address(base), []int32{0, 0x20}, 4)
	require.NoError(t, err)
	assert.Equal(t, proc.Address(0x10), got)
}

func TestReadAfterExit(t *testing.T) {
	img := memimg.New()
	addr := img.Alloc(8)
	img.Exit()

	_, err := proc.ReadUint32(img, proc.Address(addr))
	assert.ErrorIs(t, err, proc.ErrProcessExited)
}

func TestCacheRange(t *testing.T) {
	img := memimg.New()
	addr := img.Alloc(64)
	for i := 0; i < 8; i++ {
		img.PutUint64(addr+uint64(i*8), uint64(i))
	}

	mem := proc.CacheRange(img, proc.Address(addr), 64)
	for i := 0; i < 8; i++ {
		v, err := proc.ReadUint64(mem, proc.Address(addr+uint64(i*8)))
		require.NoError(t, err)
		assert.Equal(t, uint64(i), v)
	}
	assert.Equal(t, 1, img.Reads())
}
