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

// LevelTimerID is the toggle that reports level time instead of file
// time and splits a chapter as soon as it is completed.
const LevelTimerID = "LevelTimer"

// Setting is one boolean toggle of the settings surface.
type Setting struct {
	ID      string
	Label   string
	Section string
	Default bool
}

// Surface lists every toggle in display order: the timer option first,
// then one per rule.
func Surface() []Setting {
	out := make([]Setting, 0, len(Rules)+1)
	out = append(out, Setting{
		ID:      LevelTimerID,
		Label:   "Use level time instead of file time",
		Section: sectionGeneral,
	})
	for _, r := range Rules {
		out = append(out, Setting{ID: r.ID, Label: r.Label, Section: r.Section, Default: r.Default})
	}
	return out
}

// Settings holds toggle values. Toggles absent from Values keep their
// default. A non-empty Order replaces the table order of the route.
type Settings struct {
	Values map[string]bool
	Order  []string
}

// Enabled reports the value of toggle id.
func (s *Settings) Enabled(id string) bool {
	if v, ok := s.Values[id]; ok {
		return v
	}
	if r, ok := Lookup(id); ok {
		return r.Default
	}
	return false
}

// Options returns the engine options selected by s.
func (s *Settings) Options() Options {
	return Options{LevelTimer: s.Enabled(LevelTimerID)}
}

// Route returns the rules to split on, in order. An explicit order lists
// rule ids, unknown ids are skipped.
func (s *Settings) Route() []Rule {
	var route []Rule
	if len(s.Order) > 0 {
		for _, id := range s.Order {
			if r, ok := Lookup(id); ok {
				route = append(route, r)
			}
		}
		return route
	}
	for _, r := range Rules {
		if s.Enabled(r.ID) {
			route = append(route, r)
		}
	}
	return route
}
