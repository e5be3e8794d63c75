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

// Package config loads csplit's configuration from a YAML file and
// CSPLIT_ environment variables, and keeps the split settings current
// while the file changes.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/rhelmot/CelesteAutosplitterCore/pkg/splitter"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "CSPLIT_"

// Config is the full csplit configuration.
type Config struct {
	// Processes are executable names tried in order when attaching.
	Processes      []string      `yaml:"processes" env:"PROCESSES" envSeparator:"," validate:"required,min=1,dive,required"`
	Tick           time.Duration `yaml:"tick" env:"TICK" validate:"min=1ms,max=1s"`
	AttachInterval time.Duration `yaml:"attach_interval" env:"ATTACH_INTERVAL" validate:"min=10ms"`
	// Listen is the HTTP address serving metrics, the timer websocket
	// and debug endpoints. Empty disables the server.
	Listen string `yaml:"listen" env:"LISTEN" validate:"omitempty,hostname_port"`
	// LiveSplit is the address of a LiveSplit Server component. Empty
	// disables it.
	LiveSplit string `yaml:"livesplit" env:"LIVESPLIT" validate:"omitempty,hostname_port"`
	// History is the path of the run history database. Empty disables
	// recording.
	History string `yaml:"history" env:"HISTORY"`

	Splits Splits `yaml:"splits" envPrefix:"SPLITS_"`
}

// Splits is the persisted settings surface.
type Splits struct {
	LevelTimer bool            `yaml:"level_timer" env:"LEVEL_TIMER"`
	Toggles    map[string]bool `yaml:"toggles" validate:"dive,keys,split_id,endkeys"`
	// Order replaces the enabled rules with an explicit route.
	Order []string `yaml:"order" env:"ORDER" envSeparator:"," validate:"dive,split_id"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		Processes:      []string{"Celeste.exe", "Celeste.bin.x86_64", "Celeste"},
		Tick:           16 * time.Millisecond,
		AttachInterval: time.Second,
		Listen:         "127.0.0.1:16835",
	}
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("split_id", func(fl validator.FieldLevel) bool {
		_, ok := splitter.Lookup(fl.Field().String())
		return ok
	})
	return v
}

// Load reads path over the defaults, then applies environment
// overrides, then validates. An empty path skips the file.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints and split ids.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid config: %s: failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value())
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Settings converts the split block to engine settings.
func (s *Splits) Settings() splitter.Settings {
	values := make(map[string]bool, len(s.Toggles)+1)
	for id, v := range s.Toggles {
		values[id] = v
	}
	values[splitter.LevelTimerID] = s.LevelTimer
	order := append([]string(nil), s.Order...)
	return splitter.Settings{Values: values, Order: order}
}
