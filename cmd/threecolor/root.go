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

package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/proskur1n/threecolor/internal/config"
)

var (
	configPath string
	dir        string
	prefix     string
	capacity   int
	maxBad     int
	waitSlice  time.Duration
	logLevel   string
)

var rootCmd = &cobra.Command{
	Use:   "threecolor",
	Short: "Randomized 3-coloring search over shared memory",
	Long: `threecolor looks for the smallest set of edges whose removal makes a graph
3-colorable. A supervisor owns a ring buffer in shared memory; generators
color the graph at random and publish the edges they had to give up on.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[%s] %v\n", rootCmd.Name(), err)
		if errors.Is(err, os.ErrExist) {
			fmt.Fprintf(os.Stderr, "[%s] objects from an earlier run are still present; remove them with %q\n",
				rootCmd.Name(), rootCmd.Name()+" clean")
		}
		os.Exit(1)
	}
}

func init() {
	defaults := config.DefaultConfig()
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configPath, "config", "c", "", "TOML config file")
	flags.StringVar(&dir, "dir", defaults.Dir, "Directory holding the shared objects (default /dev/shm)")
	flags.StringVarP(&prefix, "prefix", "p", defaults.Prefix, "Name prefix of the shared objects")
	flags.IntVar(&capacity, "capacity", defaults.Capacity, "Number of ring slots (supervisor only)")
	flags.IntVar(&maxBad, "max-bad", defaults.MaxBad, "Largest candidate a slot holds (supervisor only)")
	flags.DurationVar(&waitSlice, "wait-slice", defaults.WaitSlice, "Longest single sleep in a semaphore wait (0 for the default)")
	flags.StringVar(&logLevel, "log-level", defaults.LogLevel, "Log level: debug, info, warn or error")
}

// loadConfig reads the config file, if any, and applies the flags that were
// set explicitly on top of it.
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg := config.DefaultConfig()
	if configPath != "" {
		var err error
		if cfg, err = config.Load(configPath); err != nil {
			return nil, err
		}
	}

	flags := cmd.Flags()
	if flags.Changed("dir") {
		cfg.Dir = dir
	}
	if flags.Changed("prefix") {
		cfg.Prefix = prefix
	}
	if flags.Changed("capacity") {
		cfg.Capacity = capacity
	}
	if flags.Changed("max-bad") {
		cfg.MaxBad = maxBad
	}
	if flags.Changed("wait-slice") {
		cfg.WaitSlice = waitSlice
	}
	if flags.Changed("log-level") {
		cfg.LogLevel = logLevel
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
