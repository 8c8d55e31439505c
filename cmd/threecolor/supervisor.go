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
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/proskur1n/threecolor/internal/logging"
	"github.com/proskur1n/threecolor/internal/supervisor"
)

var supervisorCmd = &cobra.Command{
	Use:   "supervisor",
	Short: "Create the ring and collect candidates",
	Long: `Create the shared ring and its semaphores, then print every candidate that
is smaller than the best one so far. Stops on a perfect coloring or on
SIGINT/SIGTERM, tells the generators to quit and removes the shared objects.

Examples:
  # Default ring: 32 slots of up to 12 edges
  threecolor supervisor

  # A small ring under a custom prefix
  threecolor supervisor --prefix=lab --capacity=4 --max-bad=2`,
	Args: cobra.NoArgs,
	RunE: runSupervisor,
}

func init() {
	rootCmd.AddCommand(supervisorCmd)
}

func runSupervisor(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := cfg.Logger()

	s, err := supervisor.Create(cfg, os.Stdout, log)
	if err != nil {
		return err
	}
	defer func() {
		if err := s.Close(); err != nil {
			log.Error("cleanup failed", logging.Fields{"error": err})
		}
	}()
	s.SetProgName(cmd.CommandPath())

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	_, err = s.Run(ctx)
	return err
}
