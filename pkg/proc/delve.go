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
	"github.com/go-delve/delve/pkg/proc"
	"github.com/go-delve/delve/service/debugger"
)

// DelveTarget is a process halted by delve, or a core dump opened by it.
// Reads go through the delve target memory. Regions and modules come from
// the operating system for a live pid and from the core file's own
// mappings otherwise.
type DelveTarget struct {
	dbg     *debugger.Debugger
	mem     proc.MemoryReadWriter
	pid     int
	ptrSize int

	core        bool
	coreRegions []Region
	coreModules []Module
	coreErr     error
}

// OpenDelve attaches to attachPid, or opens coreFile with exeFile when
// attachPid is zero.
func OpenDelve(attachPid int, exeFile, coreFile string, debugInfoDirs []string) (*DelveTarget, error) {
	dConf := debugger.Config{
		AttachPid:             attachPid,
		Backend:               "default",
		CoreFile:              coreFile,
		DebugInfoDirectories:  debugInfoDirs,
		AttachWaitFor:         "",
		AttachWaitForInterval: 1,
		AttachWaitForDuration: 0,
	}
	var args []string
	if exeFile != "" {
		args = []string{exeFile}
	}
	dbg, err := debugger.New(&dConf, args)
	if err != nil {
		return nil, err
	}
	t := dbg.Target()
	d := &DelveTarget{
		dbg:     dbg,
		mem:     t.Memory(),
		pid:     attachPid,
		ptrSize: t.BinInfo().Arch.PtrSize(),
		core:    coreFile != "",
	}
	if d.core {
		d.coreRegions, d.coreModules, d.coreErr = CoreMappings(coreFile)
	}
	return d, nil
}

func (d *DelveTarget) ReadMemory(buf []byte, addr uint64) (int, error) {
	return d.mem.ReadMemory(buf, addr)
}

func (d *DelveTarget) Pid() int { return d.pid }

func (d *DelveTarget) PointerSize() int { return d.ptrSize }

func (d *DelveTarget) Regions() ([]Region, error) {
	if d.core {
		return d.coreRegions, d.coreErr
	}
	if d.pid == 0 {
		return nil, ErrUnsupported
	}
	return procRegions(d.pid)
}

func (d *DelveTarget) Modules() ([]Module, error) {
	if d.core {
		return d.coreModules, d.coreErr
	}
	if d.pid == 0 {
		return nil, ErrUnsupported
	}
	return procModules(d.pid)
}

// Close detaches, leaving an attached process running.
func (d *DelveTarget) Close() error {
	return d.dbg.Detach(false)
}
