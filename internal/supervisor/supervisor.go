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

// Package supervisor implements the consumer side: it owns the shared region
// and semaphores, reads candidates from the ring and reports every strictly
// smaller one until a generator finds a perfect coloring.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/proskur1n/threecolor/internal/config"
	"github.com/proskur1n/threecolor/internal/graph"
	"github.com/proskur1n/threecolor/internal/logging"
	"github.com/proskur1n/threecolor/internal/shm"
)

// ErrExists means a shared object with one of the configured names is still
// around, usually left behind by a supervisor that crashed.
var ErrExists = fmt.Errorf("shared objects already exist: %w", os.ErrExist)

// Result summarizes a Run.
type Result struct {
	Best      int // size of the smallest candidate seen, -1 if none
	BestEdges []graph.Edge
	Colorable bool
	Consumed  int
}

// Supervisor owns a ring and everything it is made of.
type Supervisor struct {
	ring   *shm.Ring
	region *shm.Region
	triad  *shm.Triad

	out  io.Writer
	prog string
	log  *logging.Logger
}

// Create creates the region and then the semaphores, removing the region
// again if the semaphores fail. Progress lines are written to out.
func Create(cfg *config.Config, out io.Writer, log *logging.Logger) (*Supervisor, error) {
	names := cfg.Names()

	region, err := shm.CreateRegion(cfg.Dir, names.Region, cfg.Capacity, cfg.MaxBad)
	if err != nil {
		return nil, wrapCreate("region", err)
	}
	triad, err := shm.CreateTriad(cfg.Dir, names.Triad, cfg.Capacity)
	if err != nil {
		region.Destroy()
		return nil, wrapCreate("semaphores", err)
	}
	if cfg.WaitSlice > 0 {
		triad.SetWaitSlice(cfg.WaitSlice)
	}

	s := &Supervisor{
		ring:   shm.NewRing(region, triad),
		region: region,
		triad:  triad,
		out:    out,
		prog:   filepath.Base(os.Args[0]),
		log:    log.WithComponent("supervisor"),
	}
	s.log.Info("ring created", logging.Fields{
		"region":     region.Path(),
		"capacity":   region.Capacity(),
		"max_bad":    region.MaxBad(),
		"generation": region.Generation().String(),
	})
	return s, nil
}

func wrapCreate(what string, err error) error {
	if errors.Is(err, os.ErrExist) {
		return fmt.Errorf("failed to create %s: %w (%v)", what, ErrExists, err)
	}
	return fmt.Errorf("failed to create %s: %w", what, err)
}

// SetProgName sets the name that prefixes every progress line. It defaults
// to the base name of the executable.
func (s *Supervisor) SetProgName(prog string) {
	s.prog = prog
}

// Ring returns the ring the supervisor consumes.
func (s *Supervisor) Ring() *shm.Ring { return s.ring }

// Run consumes candidates until one is empty or ctx is done. Whichever way
// it ends, Run tells the generators to quit before returning.
func (s *Supervisor) Run(ctx context.Context) (Result, error) {
	res := Result{Best: -1}
	buf := make([]graph.Edge, 0, s.region.MaxBad())

	var runErr error
	for ctx.Err() == nil {
		edges, err := s.ring.Next(ctx, buf)
		if errors.Is(err, shm.ErrInterrupted) {
			continue
		}
		if err != nil {
			runErr = err
			break
		}
		res.Consumed++

		if len(edges) == 0 {
			res.Best, res.BestEdges, res.Colorable = 0, nil, true
			fmt.Fprintf(s.out, "[%s] The graph is 3-colorable!\n", s.prog)
			break
		}
		if res.Best < 0 || len(edges) < res.Best {
			res.Best = len(edges)
			res.BestEdges = append(res.BestEdges[:0], edges...)
			fmt.Fprintf(s.out, "[%s] Solution with %d edges:%s\n", s.prog, res.Best, formatEdges(edges))
		}
		buf = edges
	}

	if err := s.ring.Shutdown(); err != nil {
		runErr = errors.Join(runErr, fmt.Errorf("shutdown: %w", err))
	}
	s.log.Info("stopped", logging.Fields{
		"consumed":  res.Consumed,
		"best":      res.Best,
		"colorable": res.Colorable,
	})
	return res, runErr
}

func formatEdges(edges []graph.Edge) string {
	var b strings.Builder
	for _, e := range edges {
		b.WriteByte(' ')
		b.WriteString(e.String())
	}
	return b.String()
}

// Close tells any remaining generators to quit and removes the semaphores
// and the region. Generators that still have them mapped are unaffected.
func (s *Supervisor) Close() error {
	return errors.Join(s.ring.Shutdown(), s.triad.Destroy(), s.region.Destroy())
}
