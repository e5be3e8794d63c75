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

//go:build linux

package proc

import (
	"bufio"
	"debug/elf"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"golang.org/x/sys/unix"
)

type linuxProcess struct {
	pid     int
	ptrSize int
}

// FindProcesses returns the pids of running processes whose executable
// or command name matches name, lowest first.
func FindProcesses(name string) ([]int, error) {
	return findProcesses("/proc", name)
}

func findProcesses(root, name string) ([]int, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, err
	}
	var pids []int
	for _, e := range entries {
		pid, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		if linuxProcessMatches(filepath.Join(root, e.Name()), name) {
			pids = append(pids, pid)
		}
	}
	if len(pids) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrProcessNotFound, name)
	}
	slices.Sort(pids)
	return pids, nil
}

// linuxProcessMatches checks the /proc/<pid> directory dir. Only the
// program itself counts, or the assembly when the program is a mono
// host; launchers that carry the game path further down their argument
// list do not match.
func linuxProcessMatches(dir, name string) bool {
	if exe, err := os.Readlink(filepath.Join(dir, "exe")); err == nil && matchName(exe, name) {
		return true
	}
	if cmdline, err := os.ReadFile(filepath.Join(dir, "cmdline")); err == nil {
		args := strings.Split(strings.TrimRight(string(cmdline), "\x00"), "\x00")
		if matchName(args[0], name) {
			return true
		}
		if isMonoHost(args[0]) {
			for _, arg := range args[1:] {
				if !strings.HasPrefix(arg, "-") {
					if matchName(arg, name) {
						return true
					}
					break
				}
			}
		}
	}
	comm, err := os.ReadFile(filepath.Join(dir, "comm"))
	return err == nil && matchName(strings.TrimSpace(string(comm)), name)
}

func isMonoHost(arg string) bool {
	return strings.HasPrefix(strings.ToLower(filepath.Base(arg)), "mono")
}

// OpenProcess attaches to pid without stopping it.
func OpenProcess(pid int) (Process, error) {
	p := &linuxProcess{pid: pid, ptrSize: 8}
	if f, err := elf.Open(fmt.Sprintf("/proc/%d/exe", pid)); err == nil {
		if f.Class == elf.ELFCLASS32 {
			p.ptrSize = 4
		}
		f.Close()
	}
	return p, nil
}

func (p *linuxProcess) Pid() int { return p.pid }

func (p *linuxProcess) PointerSize() int { return p.ptrSize }

func (p *linuxProcess) ReadMemory(buf []byte, addr uint64) (int, error) {
	if len(buf) == 0 {
		return 0, nil
	}
	local := []unix.Iovec{{Base: &buf[0]}}
	local[0].SetLen(len(buf))
	remote := []unix.RemoteIovec{{Base: uintptr(addr), Len: len(buf)}}
	n, err := unix.ProcessVMReadv(p.pid, local, remote, 0)
	if errors.Is(err, unix.ESRCH) {
		return n, ErrProcessExited
	}
	return n, err
}

func (p *linuxProcess) Regions() ([]Region, error) {
	maps, err := readMaps(p.pid)
	if err != nil {
		return nil, err
	}
	var regions []Region
	for _, m := range maps {
		if m.readable {
			regions = append(regions, Region{Start: m.start, Size: uint64(m.end.Sub(m.start))})
		}
	}
	return regions, nil
}

func (p *linuxProcess) Modules() ([]Module, error) {
	return procModules(p.pid)
}

func (p *linuxProcess) Close() error { return nil }

func readMaps(pid int) ([]mapping, error) {
	f, err := os.Open(fmt.Sprintf("/proc/%d/maps", pid))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrProcessExited
		}
		return nil, err
	}
	defer f.Close()

	var maps []mapping
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		// start-end perms offset dev inode [path]
		fields := strings.Fields(sc.Text())
		if len(fields) < 5 {
			continue
		}
		bounds := strings.SplitN(fields[0], "-", 2)
		if len(bounds) != 2 {
			continue
		}
		start, err1 := strconv.ParseUint(bounds[0], 16, 64)
		end, err2 := strconv.ParseUint(bounds[1], 16, 64)
		if err1 != nil || err2 != nil {
			continue
		}
		m := mapping{start: Address(start), end: Address(end), readable: strings.HasPrefix(fields[1], "r")}
		if len(fields) >= 6 {
			m.path = strings.Join(fields[5:], " ")
		}
		maps = append(maps, m)
	}
	return maps, sc.Err()
}

func procModules(pid int) ([]Module, error) {
	maps, err := readMaps(pid)
	if err != nil {
		return nil, err
	}
	return modulesOf(maps), nil
}

func procRegions(pid int) ([]Region, error) {
	return (&linuxProcess{pid: pid}).Regions()
}
