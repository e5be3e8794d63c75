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

package version

import (
	"fmt"
	"runtime"
	"runtime/debug"
)

// Version represents the version of csplit.
type Version struct {
	Major    string
	Minor    string
	Patch    string
	Metadata string
	Build    string
}

// Current is the version of this build. Build is filled from the
// embedded VCS revision when empty.
var Current = Version{
	Major: "0", Minor: "3", Patch: "0", Metadata: "",
}

// Short returns "major.minor.patch[-metadata]".
func (v Version) Short() string {
	ver := fmt.Sprintf("%s.%s.%s", v.Major, v.Minor, v.Patch)
	if v.Metadata != "" {
		ver += "-" + v.Metadata
	}
	return ver
}

func (v Version) String() string {
	fixBuild(&v)
	return fmt.Sprintf("Version: %s\nBuild: %s", v.Short(), v.Build)
}

// BuildInfo returns the Go version and module dependencies of the binary.
func BuildInfo() string {
	return fmt.Sprintf("%s\n%s", runtime.Version(), buildInfo())
}

var readBuildInfo = debug.ReadBuildInfo

func buildInfo() string {
	info, ok := readBuildInfo()
	if !ok {
		return ""
	}
	out := info.Main.Path + " " + info.Main.Version
	for _, dep := range info.Deps {
		out += "\n  " + dep.Path + " " + dep.Version
	}
	return out
}

func fixBuild(v *Version) {
	if v.Build != "" {
		return
	}
	info, ok := readBuildInfo()
	if !ok {
		return
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" {
			v.Build = s.Value
			return
		}
	}
}
