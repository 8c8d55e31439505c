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
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/proskur1n/threecolor/internal/config"
	"github.com/proskur1n/threecolor/internal/shm"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove shared objects left by a crashed supervisor",
	Long: `Remove the region and semaphores for the configured prefix. Only run this
when no supervisor is running: a live supervisor keeps working, but new
generators can no longer attach to it.`,
	Args: cobra.NoArgs,
	RunE: runClean,
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}

func runClean(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	return clean(cmd.OutOrStdout(), cfg)
}

func clean(w io.Writer, cfg *config.Config) error {
	removed, err := shm.RemoveObjects(cfg.Dir, cfg.Names().All()...)
	for _, name := range removed {
		fmt.Fprintf(w, "removed %s\n", name)
	}
	if len(removed) == 0 && err == nil {
		fmt.Fprintf(w, "nothing to remove\n")
	}
	if err != nil {
		return fmt.Errorf("clean incomplete: %w", err)
	}
	return nil
}
