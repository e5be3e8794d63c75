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

//go:build !linux && !windows

package proc

// FindProcesses is unavailable on this platform.
func FindProcesses(name string) ([]int, error) {
	return nil, ErrUnsupported
}

// OpenProcess is unavailable on this platform.
func OpenProcess(pid int) (Process, error) {
	return nil, ErrUnsupported
}

func procRegions(pid int) ([]Region, error) {
	return nil, ErrUnsupported
}

func procModules(pid int) ([]Module, error) {
	return nil, ErrUnsupported
}
