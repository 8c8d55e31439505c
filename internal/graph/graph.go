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

// Package graph holds the undirected graph a generator tries to 3-color and
// the random coloring heuristic that produces candidate edge sets.
package graph

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrNoEdges       = errors.New("graph has no edges")
	ErrMalformedEdge = errors.New("edges must have the format a-b")
)

// Edge is an undirected edge between the First and Second nodes.
type Edge struct {
	First  int32
	Second int32
}

// String formats the edge the way it is accepted on the command line.
func (e Edge) String() string {
	return fmt.Sprintf("%d-%d", e.First, e.Second)
}

// ParseEdge parses a single "a-b" token with non-negative node ids.
func ParseEdge(s string) (Edge, error) {
	first, second, ok := strings.Cut(strings.TrimSpace(s), "-")
	if !ok {
		return Edge{}, fmt.Errorf("%w: %q", ErrMalformedEdge, s)
	}
	a, err := parseNode(first)
	if err != nil {
		return Edge{}, fmt.Errorf("%w: %q", ErrMalformedEdge, s)
	}
	b, err := parseNode(second)
	if err != nil {
		return Edge{}, fmt.Errorf("%w: %q", ErrMalformedEdge, s)
	}
	return Edge{First: a, Second: b}, nil
}

func parseNode(s string) (int32, error) {
	// ParseUint rejects signs, so "-1" style ids never get this far.
	v, err := strconv.ParseUint(s, 10, 31)
	if err != nil {
		return 0, err
	}
	return int32(v), nil
}

// Graph is an edge list plus the number of nodes it spans (highest id + 1).
type Graph struct {
	Edges []Edge
	Nodes int
}

// New builds a graph from already-parsed edges.
func New(edges []Edge) (*Graph, error) {
	if len(edges) == 0 {
		return nil, ErrNoEdges
	}
	g := &Graph{Edges: make([]Edge, len(edges))}
	copy(g.Edges, edges)
	for _, e := range edges {
		if e.First < 0 || e.Second < 0 {
			return nil, fmt.Errorf("%w: %s", ErrMalformedEdge, e)
		}
		if n := int(max(e.First, e.Second)) + 1; n > g.Nodes {
			g.Nodes = n
		}
	}
	return g, nil
}

// Parse builds a graph from command line tokens such as "0-1" "1-2".
func Parse(args []string) (*Graph, error) {
	edges := make([]Edge, 0, len(args))
	for _, arg := range args {
		e, err := ParseEdge(arg)
		if err != nil {
			return nil, err
		}
		edges = append(edges, e)
	}
	return New(edges)
}
