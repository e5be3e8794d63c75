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

//go:build windows

package proc

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

const stillActive = 259

type windowsProcess struct {
	pid     int
	handle  windows.Handle
	ptrSize int
}

// FindProcesses returns the pids of running processes whose executable
// name matches name.
func FindProcesses(name string) ([]int, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPPROCESS, 0)
	if err != nil {
		return nil, err
	}
	defer windows.CloseHandle(snap)

	var pids []int
	var entry windows.ProcessEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	for err = windows.Process32First(snap, &entry); err == nil; err = windows.Process32Next(snap, &entry) {
		if matchName(windows.UTF16ToString(entry.ExeFile[:]), name) {
			pids = append(pids, int(entry.ProcessID))
		}
	}
	if len(pids) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProcessNotFound, name)
	}
	return pids, nil
}

// OpenProcess opens pid for reading.
func OpenProcess(pid int) (Process, error) {
	h, err := windows.OpenProcess(windows.PROCESS_VM_READ|windows.PROCESS_QUERY_INFORMATION, false, uint32(pid))
	if err != nil {
		return nil, err
	}
	p := &windowsProcess{pid: pid, handle: h, ptrSize: 8}
	var wow64 bool
	if err := windows.IsWow64Process(h, &wow64); err == nil && wow64 {
		p.ptrSize = 4
	}
	return p, nil
}

func (p *windowsProcess) Pid() int { return p.pid }

func (p *windowsProcess) PointerSize() int { return p.ptrSize }

func (p *windowsProcess) ReadMemory(buf []byte, addr uint64) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	var n uintptr
	err := windows.ReadProcessMemory(p.handle, uintptr(addr), &buf[0], uintptr(len(buf)), &n)
	if err != nil && !p.alive() {
		return int(n), ErrProcessExited
	}
	return int(n), err
}

func (p *windowsProcess) alive() bool {
	var code uint32
	if err := windows.GetExitCodeProcess(p.handle, &code); err != nil {
		return false
	}
	return code == stillActive
}

func (p *windowsProcess) Regions() ([]Region, error) {
	var regions []Region
	var info windows.MemoryBasicInformation
	var addr uintptr
	for {
		if err := windows.VirtualQueryEx(p.handle, addr, &info, unsafe.Sizeof(info)); err != nil {
			break
		}
		if info.State == windows.MEM_COMMIT && info.Protect&windows.PAGE_GUARD == 0 && info.Protect&windows.PAGE_NOACCESS == 0 {
			regions = append(regions, Region{Start: Address(info.BaseAddress), Size: uint64(info.RegionSize)})
		}
		next := info.BaseAddress + info.RegionSize
		if next <= addr {
			break
		}
		addr = next
	}
	if len(regions) == 0 && !p.alive() {
		return nil, ErrProcessExited
	}
	return regions, nil
}

func (p *windowsProcess) Modules() ([]Module, error) {
	snap, err := windows.CreateToolhelp32Snapshot(windows.TH32CS_SNAPMODULE|windows.TH32CS_SNAPMODULE32, uint32(p.pid))
	if err != nil {
		return nil, err
	}
	defer windows.CloseHandle(snap)

	var mods []Module
	var entry windows.ModuleEntry32
	entry.Size = uint32(unsafe.Sizeof(entry))
	for err = windows.Module32First(snap, &entry); err == nil; err = windows.Module32Next(snap, &entry) {
		mods = append(mods, Module{
			Name: windows.UTF16ToString(entry.Module[:]),
			Path: windows.UTF16ToString(entry.ExePath[:]),
			Base: Address(entry.ModBaseAddr),
			Size: uint64(entry.ModBaseSize),
		})
	}
	if !errors.Is(err, windows.ERROR_NO_MORE_FILES) {
		return mods, err
	}
	return mods, nil
}

func (p *windowsProcess) Close() error {
	return windows.CloseHandle(p.handle)
}

func procRegions(pid int) ([]Region, error) {
	return nil, ErrUnsupported
}

func procModules(pid int) ([]Module, error) {
	return nil, ErrUnsupported
}
