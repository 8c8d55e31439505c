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
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/proskur1n/threecolor/internal/generator"
	"github.com/proskur1n/threecolor/internal/graph"
	"github.com/proskur1n/threecolor/internal/logging"
)

var generatorCmd = &cobra.Command{
	Use:   "generator EDGE...",
	Short: "Color the graph at random and publish the bad edges",
	Long: `Attach to a running supervisor and publish candidate edge sets until the
supervisor says to quit or the process receives SIGINT/SIGTERM. Edges are
given as a-b with non-negative node ids.

Examples:
  threecolor generator 0-1 0-2 0-3 1-2 1-3 2-3`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGenerator,
}

func init() {
	rootCmd.AddCommand(generatorCmd)
}

func runGenerator(cmd *cobra.Command, args []string) error {
	g, err := graph.Parse(args)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := cfg.Logger()

	gen, err := generator.Attach(cfg, g, log)
	if err != nil {
		return err
	}
	defer gen.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := gen.Run(ctx)
	log.WithComponent("generator").Info("exiting", logging.Fields{
		"attempts":    stats.Attempts,
		"discarded":   stats.Discarded,
		"published":   stats.Published,
		"interrupted": stats.Interrupted,
	})
	return err
}
