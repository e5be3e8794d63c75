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

import "testing"

func TestSplitTag(t *testing.T) {
	tests := []struct {
		name string
		word uint64
		addr Address
		tag  uint8
	}{
		{name: "untagged", word: 0x7f00_1000, addr: 0x7f00_1000, tag: 0},
		{name: "lock bit", word: 0x7f00_1001, addr: 0x7f00_1000, tag: 1},
		{name: "both bits", word: 0x7f00_1003, addr: 0x7f00_1000, tag: 3},
		{name: "high bits kept", word: 0xffff_8000_0000_0002, addr: 0xffff_8000_0000_0000, tag: 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := SplitTag(tt.word, TagMask)
			if p.Untagged() != tt.addr || p.Tag != tt.tag {
				t.Errorf("SplitTag(%#x) = %v/%d, want %v/%d", tt.word, p.Untagged(), p.Tag, tt.addr, tt.tag)
			}
		})
	}
}
