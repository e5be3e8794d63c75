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

package splitter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rhelmot/CelesteAutosplitterCore/pkg/celeste"
)

var defaultRoute = []string{
	"Prologue",
	"Chapter1Checkpoint1", "Chapter1Checkpoint2", "Chapter1",
	"Chapter2Checkpoint1", "Chapter2Checkpoint2", "Chapter2",
	"Chapter3Checkpoint1", "Chapter3Checkpoint2", "Chapter3Checkpoint3", "Chapter3",
	"Chapter4Checkpoint1", "Chapter4Checkpoint2", "Chapter4Checkpoint3", "Chapter4",
	"Chapter5Checkpoint1", "Chapter5Checkpoint2", "Chapter5Checkpoint3", "Chapter5Checkpoint4", "Chapter5",
	"Chapter6Checkpoint1", "Chapter6Checkpoint2", "Chapter6Checkpoint3", "Chapter6Checkpoint4", "Chapter6Checkpoint5", "Chapter6",
	"Chapter7Checkpoint1", "Chapter7Checkpoint2", "Chapter7Checkpoint3", "Chapter7Checkpoint4", "Chapter7Checkpoint5", "Chapter7Checkpoint6", "Chapter7",
}

func ids(rules []Rule) []string {
	out := make([]string, len(rules))
	for i, r := range rules {
		out[i] = r.ID
	}
	return out
}

func TestDefaultRoute(t *testing.T) {
	var s Settings
	assert.Equal(t, defaultRoute, ids(s.Route()))
	assert.False(t, s.Options().LevelTimer)
}

func TestSurface(t *testing.T) {
	surface := Surface()
	require.Len(t, surface, len(Rules)+1)
	assert.Equal(t, LevelTimerID, surface[0].ID)
	assert.False(t, surface[0].Default)

	seen := map[string]bool{}
	for i, s := range surface {
		assert.False(t, seen[s.ID], "duplicate id %s", s.ID)
		seen[s.ID] = true
		assert.NotEmpty(t, s.Label, s.ID)
		assert.NotEmpty(t, s.Section, s.ID)
		if i > 0 {
			assert.Equal(t, Rules[i-1].ID, s.ID)
		}
	}
}

func TestRuleTable(t *testing.T) {
	for _, r := range Rules {
		switch r.Kind {
		case Checkpoint:
			assert.NotEmpty(t, r.Tokens[0], r.ID)
			assert.NotEmpty(t, r.Tokens[1], r.ID)
			assert.Equal(t, r.Tokens[1], r.Token(celeste.ModeC), r.ID)
			assert.NotEqual(t, celeste.Menu, r.Area, r.ID)
		case ChapterComplete:
			if !r.AnyArea {
				assert.NotEqual(t, celeste.Menu, r.Area, r.ID)
			}
		}
	}
}

func TestSettingsOverrides(t *testing.T) {
	s := Settings{Values: map[string]bool{
		LevelTimerID:          true,
		"Prologue":            false,
		"Chapter8Checkpoint1": true,
	}}
	assert.True(t, s.Options().LevelTimer)
	route := ids(s.Route())
	assert.Equal(t, "Chapter1Checkpoint1", route[0])
	assert.Equal(t, "Chapter8Checkpoint1", route[len(route)-1])
	assert.False(t, s.Enabled("NoSuchRule"))
}

func TestSettingsOrder(t *testing.T) {
	s := Settings{Order: []string{"Chapter1", "Bogus", "Prologue", "Chapter1"}}
	assert.Equal(t, []string{"Chapter1", "Prologue", "Chapter1"}, ids(s.Route()))
}
