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

// Package generator implements the producer side: it repeatedly colors the
// graph at random and publishes the resulting bad-edge sets to the
// supervisor's ring until told to stop.
package generator

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/proskur1n/threecolor/internal/config"
	"github.com/proskur1n/threecolor/internal/graph"
	"github.com/proskur1n/threecolor/internal/logging"
	"github.com/proskur1n/threecolor/internal/shm"
)

// Source produces candidate edge sets. Attempt returns false when it gave up
// on the current attempt; the returned slice may be reused by the next call.
type Source interface {
	Attempt() ([]graph.Edge, bool)
}

// Stats counts what one Run did.
type Stats struct {
	Attempts    int // candidates requested from the source
	Discarded   int // abandoned or too large for a slot
	Published   int
	Interrupted int // waits cut short by a stop request
}

// Generator is one producer attached to a supervisor's ring.
type Generator struct {
	ring   *shm.Ring
	region *shm.Region
	triad  *shm.Triad
	source Source
	log    *logging.Logger
}

// Attach opens the region and semaphores named by cfg and prepares a random
// coloring of g bounded by the region's slot size. The region must already
// exist; a missing one yields an error wrapping os.ErrNotExist.
func Attach(cfg *config.Config, g *graph.Graph, log *logging.Logger) (*Generator, error) {
	names := cfg.Names()

	region, err := shm.OpenRegion(cfg.Dir, names.Region)
	if err != nil {
		return nil, fmt.Errorf("failed to attach region: %w", err)
	}
	triad, err := shm.OpenTriad(cfg.Dir, names.Triad)
	if err != nil {
		region.Close()
		return nil, fmt.Errorf("failed to attach semaphores: %w", err)
	}
	if cfg.WaitSlice > 0 {
		triad.SetWaitSlice(cfg.WaitSlice)
	}

	pid := os.Getpid()
	gen := &Generator{
		ring:   shm.NewRing(region, triad),
		region: region,
		triad:  triad,
		source: graph.NewColorer(g, region.MaxBad(), uint64(pid)),
		log:    log.WithComponent("generator").WithPID(pid),
	}
	gen.log.Debug("attached", logging.Fields{
		"region":     region.Path(),
		"capacity":   region.Capacity(),
		"max_bad":    region.MaxBad(),
		"generation": region.Generation().String(),
	})
	return gen, nil
}

// SetSource replaces the random coloring with src.
func (g *Generator) SetSource(src Source) {
	g.source = src
}

// Ring returns the ring the generator publishes to.
func (g *Generator) Ring() *shm.Ring { return g.ring }

// Run publishes candidates until the supervisor sets the quit flag or ctx is
// done. Both are a clean exit and return a nil error; anything else that
// stops the loop is returned.
func (g *Generator) Run(ctx context.Context) (Stats, error) {
	var stats Stats
	maxBad := g.region.MaxBad()

	for {
		if g.ring.Quit() {
			g.log.Debug("quit flag set", statsFields(stats))
			return stats, nil
		}
		if ctx.Err() != nil {
			g.log.Debug("stop requested", statsFields(stats))
			return stats, nil
		}

		edges, ok := g.source.Attempt()
		stats.Attempts++
		if !ok || len(edges) > maxBad {
			stats.Discarded++
			continue
		}

		err := g.ring.Publish(ctx, edges)
		switch {
		case err == nil:
			stats.Published++
		case errors.Is(err, shm.ErrInterrupted):
			stats.Interrupted++
		case errors.Is(err, shm.ErrShutdown):
			g.log.Debug("ring shut down", statsFields(stats))
			return stats, nil
		case errors.Is(err, shm.ErrCandidateTooLarge):
			stats.Discarded++
		default:
			g.log.Error("publish failed", logging.Fields{"error": err})
			return stats, err
		}
	}
}

func statsFields(s Stats) logging.Fields {
	return logging.Fields{
		"attempts":    s.Attempts,
		"discarded":   s.Discarded,
		"published":   s.Published,
		"interrupted": s.Interrupted,
	}
}

// Close unmaps the region and semaphores. The names stay; they belong to the
// supervisor.
func (g *Generator) Close() error {
	return errors.Join(g.triad.Close(), g.region.Close())
}
