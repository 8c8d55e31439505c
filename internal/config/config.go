/*
 *
 * Copyright 2025 gRPC authors.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 *
 */

// Package config holds the settings shared by the supervisor and the
// generators: where the shared objects live, what they are called and how
// the ring is sized.
package config

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/proskur1n/threecolor/internal/logging"
	"github.com/proskur1n/threecolor/internal/shm"
)

// Default configuration constants
const (
	DefaultPrefix   = "3color"
	DefaultLogLevel = "info"
)

var (
	ErrInvalidPrefix    = errors.New("prefix must be a plain object name")
	ErrInvalidCapacity  = fmt.Errorf("capacity must be in [1, %d]", shm.MaxCapacity)
	ErrInvalidMaxBad    = fmt.Errorf("max_bad must be in [1, %d]", shm.MaxMaxBad)
	ErrInvalidWaitSlice = errors.New("wait_slice must not be negative")
	ErrUnknownKey       = errors.New("unknown configuration key")
)

// Config holds the configuration of one process.
//
// Capacity and MaxBad only matter to the supervisor, which stamps them into
// the region; generators take both from the region they attach to.
type Config struct {
	// Dir is the directory holding the shared objects. Empty means
	// /dev/shm, or the temporary directory where /dev/shm is missing.
	Dir string `toml:"dir"`

	// Prefix names the objects: <prefix>_shm, <prefix>_mutex,
	// <prefix>_free and <prefix>_used.
	Prefix string `toml:"prefix"`

	Capacity int `toml:"capacity"`
	MaxBad   int `toml:"max_bad"`

	// WaitSlice bounds each kernel sleep in a semaphore wait so that a stop
	// request is noticed. Zero means shm.DefaultWaitSlice.
	WaitSlice time.Duration `toml:"wait_slice"`

	LogLevel string `toml:"log_level"`
}

// Names are the object names derived from a prefix.
type Names struct {
	Region string
	Triad  shm.TriadNames
}

// All returns every object name, region first.
func (n Names) All() []string {
	return []string{n.Region, n.Triad.Mutex, n.Triad.Free, n.Triad.Used}
}

// DefaultConfig returns the classic ring size:
// 32 slots of up to 12 edges.
func DefaultConfig() *Config {
	return &Config{
		Prefix:   DefaultPrefix,
		Capacity: shm.DefaultCapacity,
		MaxBad:   shm.DefaultMaxBad,
		LogLevel: DefaultLogLevel,
	}
}

// Load reads a TOML file over the defaults and validates the result. Keys
// the file sets but Config does not know are an error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		sort.Strings(keys)
		return nil, fmt.Errorf("%s: %w: %s", path, ErrUnknownKey, strings.Join(keys, ", "))
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

// Validate checks if the config is valid
func (c *Config) Validate() error {
	if err := shm.ValidateName(c.Prefix + "_shm"); err != nil || c.Prefix == "" {
		return fmt.Errorf("%w: %q", ErrInvalidPrefix, c.Prefix)
	}
	if c.Capacity < 1 || c.Capacity > shm.MaxCapacity {
		return fmt.Errorf("%w: got %d", ErrInvalidCapacity, c.Capacity)
	}
	if c.MaxBad < 1 || c.MaxBad > shm.MaxMaxBad {
		return fmt.Errorf("%w: got %d", ErrInvalidMaxBad, c.MaxBad)
	}
	if c.WaitSlice < 0 {
		return fmt.Errorf("%w: got %s", ErrInvalidWaitSlice, c.WaitSlice)
	}
	if _, err := logging.ParseLevel(c.LogLevel); err != nil {
		return err
	}
	return nil
}

// Names returns the object names for the configured prefix.
func (c *Config) Names() Names {
	return Names{
		Region: c.Prefix + "_shm",
		Triad: shm.TriadNames{
			Mutex: c.Prefix + "_mutex",
			Free:  c.Prefix + "_free",
			Used:  c.Prefix + "_used",
		},
	}
}

// Logger builds the process logger at the configured level.
func (c *Config) Logger() *logging.Logger {
	l := logging.New()
	if level, err := logging.ParseLevel(c.LogLevel); err == nil {
		l.SetLevel(level)
	}
	return l
}
