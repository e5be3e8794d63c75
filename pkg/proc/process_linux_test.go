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
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeProc struct {
	exe     string
	cmdline []string
	comm    string
}

func writeFakeProc(t *testing.T, root string, pid int, p fakeProc) {
	t.Helper()
	dir := filepath.Join(root, strconv.Itoa(pid))
	require.NoError(t, os.MkdirAll(dir, 0o755))
	if p.exe != "" {
		require.NoError(t, os.Symlink(p.exe, filepath.Join(dir, "exe")))
	}
	if p.cmdline != nil {
		data := strings.Join(p.cmdline, "\x00") + "\x00"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "cmdline"), []byte(data), 0o644))
	}
	if p.comm != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "comm"), []byte(p.comm+"\n"), 0o644))
	}
}

const gamePath = "/home/u/.steam/steam/steamapps/common/Celeste/Celeste"

func TestLinuxProcessMatches(t *testing.T) {
	tests := []struct {
		name string
		proc fakeProc
		want bool
	}{
		{name: "native executable", proc: fakeProc{exe: gamePath, cmdline: []string{gamePath}, comm: "Celeste"}, want: true},
		{name: "comm only", proc: fakeProc{comm: "Celeste"}, want: true},
		{name: "argv zero", proc: fakeProc{cmdline: []string{"./Celeste"}}, want: true},
		{name: "mono host", proc: fakeProc{exe: "/usr/bin/mono-sgen", cmdline: []string{"mono", "Celeste.exe"}, comm: "mono-sgen"}, want: true},
		{name: "mono host with flags", proc: fakeProc{exe: "/usr/bin/mono-sgen", cmdline: []string{"/usr/bin/mono", "--debug", "Celeste.exe"}}, want: true},
		{name: "mono host other assembly", proc: fakeProc{cmdline: []string{"mono", "Other.exe", "Celeste.exe"}}},
		{
			name: "steam reaper",
			proc: fakeProc{
				exe:     "/home/u/.steam/steam/ubuntu12_32/reaper",
				cmdline: []string{"/home/u/.steam/steam/ubuntu12_32/reaper", "SteamLaunch", "AppId=504230", "--", gamePath},
				comm:    "reaper",
			},
		},
		{name: "shell wrapper", proc: fakeProc{exe: "/usr/bin/bash", cmdline: []string{"/bin/sh", "-c", gamePath}, comm: "sh"}},
		{name: "empty", proc: fakeProc{}},
	}
	for i, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			root := t.TempDir()
			writeFakeProc(t, root, 100+i, tt.proc)
			dir := filepath.Join(root, strconv.Itoa(100+i))
			assert.Equal(t, tt.want, linuxProcessMatches(dir, "Celeste"))
		})
	}
}

func TestFindProcessesSkipsLauncher(t *testing.T) {
	root := t.TempDir()
	writeFakeProc(t, root, 1200, fakeProc{
		exe:     "/home/u/.steam/steam/ubuntu12_32/reaper",
		cmdline: []string{"reaper", "SteamLaunch", "--", gamePath},
		comm:    "reaper",
	})
	writeFakeProc(t, root, 1250, fakeProc{exe: gamePath, cmdline: []string{gamePath}, comm: "Celeste"})
	writeFakeProc(t, root, 1210, fakeProc{comm: "Celeste"})
	require.NoError(t, os.WriteFile(filepath.Join(root, "uptime"), nil, 0o644))

	pids, err := findProcesses(root, "Celeste")
	require.NoError(t, err)
	assert.Equal(t, []int{1210, 1250}, pids)

	_, err = findProcesses(root, "Celeste.bin.x86_64")
	assert.ErrorIs(t, err, ErrProcessNotFound)
}
