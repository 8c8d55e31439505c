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

package graph

import (
	"math/rand/v2"
)

// NumColors is the number of colors a node may receive.
const NumColors = 3

// Colorer assigns every node an independent random color and collects the
// edges whose endpoints ended up with the same color.
//
// A Colorer is not safe for concurrent use; each generator owns one.
type Colorer struct {
	g      *Graph
	maxBad int
	rng    *rand.Rand
	colors []uint8
	bad    []Edge
}

// NewColorer returns a Colorer for g that gives up on an attempt as soon as it
// exceeds maxBad bad edges. The seed makes the sequence of attempts
// reproducible; generators seed with their pid.
func NewColorer(g *Graph, maxBad int, seed uint64) *Colorer {
	return &Colorer{
		g:      g,
		maxBad: maxBad,
		rng:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		colors: make([]uint8, g.Nodes),
		bad:    make([]Edge, 0, maxBad),
	}
}

// Attempt colors the graph once. It returns the bad edges and true when there
// are at most maxBad of them, or nil and false when the attempt was abandoned.
// The returned slice is reused by the next call.
func (c *Colorer) Attempt() ([]Edge, bool) {
	for i := range c.colors {
		c.colors[i] = uint8(c.rng.IntN(NumColors))
	}
	c.bad = c.bad[:0]
	for _, e := range c.g.Edges {
		if c.colors[e.First] != c.colors[e.Second] {
			continue
		}
		if len(c.bad) >= c.maxBad {
			return nil, false
		}
		c.bad = append(c.bad, e)
	}
	return c.bad, true
}
