//go:build linux

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

package shm

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/proskur1n/threecolor/internal/graph"
)

func mustPublish(t *testing.T, q *Ring, edges ...graph.Edge) {
	t.Helper()
	if err := q.Publish(context.Background(), edges); err != nil {
		t.Fatalf("Publish(%v) failed: %v", edges, err)
	}
}

func mustNext(t *testing.T, q *Ring) []graph.Edge {
	t.Helper()
	got, err := q.Next(context.Background(), nil)
	if err != nil {
		t.Fatalf("Next() failed: %v", err)
	}
	return got
}

func checkInvariant(t *testing.T, q *Ring) {
	t.Helper()
	if err := q.State().CheckInvariant(); err != nil {
		t.Fatalf("ring invariant violated: %v (%s)", err, q.State())
	}
}

func TestRingFIFO(t *testing.T) {
	consumer, attach := testRing(t, 4, 3)
	producer := attach()

	mustPublish(t, producer, graph.Edge{0, 1})
	mustPublish(t, producer, graph.Edge{2, 3}, graph.Edge{4, 5})
	mustPublish(t, producer, graph.Edge{6, 7}, graph.Edge{8, 9}, graph.Edge{1, 1})
	checkInvariant(t, consumer)

	for i, want := range [][]graph.Edge{
		{{0, 1}},
		{{2, 3}, {4, 5}},
		{{6, 7}, {8, 9}, {1, 1}},
	} {
		got := mustNext(t, consumer)
		if len(got) != len(want) {
			t.Fatalf("candidate %d = %v, want %v", i, got, want)
		}
		for j := range want {
			if got[j] != want[j] {
				t.Fatalf("candidate %d = %v, want %v", i, got, want)
			}
		}
		checkInvariant(t, consumer)
	}
}

func TestRingWrapsAndFills(t *testing.T) {
	consumer, attach := testRing(t, 4, 2)
	producer := attach()

	// Go around the ring a few times, leaving it full at the end.
	for round := 0; round < 3; round++ {
		for i := 0; i < 4; i++ {
			mustPublish(t, producer, graph.Edge{int32(round), int32(i)})
		}
		state := consumer.State()
		if state.Used != 4 || state.Free != 0 || state.Write != state.Read {
			t.Fatalf("round %d: full ring state %s", round, state)
		}
		checkInvariant(t, consumer)
		for i := 0; i < 4; i++ {
			got := mustNext(t, consumer)
			if len(got) != 1 || got[0] != (graph.Edge{int32(round), int32(i)}) {
				t.Fatalf("round %d slot %d: got %v", round, i, got)
			}
		}
		checkInvariant(t, consumer)
	}
}

func TestRingRejectsOversizeCandidate(t *testing.T) {
	consumer, attach := testRing(t, 4, 12)
	producer := attach()

	crafted := make([]graph.Edge, 13)
	err := producer.Publish(context.Background(), crafted)
	if !errors.Is(err, ErrCandidateTooLarge) {
		t.Fatalf("Publish(13 edges) error = %v, want ErrCandidateTooLarge", err)
	}

	state := consumer.State()
	if state.Write != 0 || state.Used != 0 || state.Free != 4 || state.Mutex != 1 {
		t.Fatalf("rejected candidate changed the ring: %s", state)
	}
	for slot := 0; slot < consumer.Capacity(); slot++ {
		if n := consumer.Region().SlotSize(slot); n != 0 {
			t.Fatalf("slot %d has size %d after a rejected publish", slot, n)
		}
	}
}

func TestRingSentinelStopsConsumption(t *testing.T) {
	consumer, attach := testRing(t, 4, 2)
	producer := attach()

	mustPublish(t, producer, graph.Edge{0, 1})
	mustPublish(t, producer)
	mustPublish(t, producer, graph.Edge{1, 2})

	if got := mustNext(t, consumer); len(got) != 1 {
		t.Fatalf("first candidate = %v", got)
	}
	free := consumer.State().Free

	got := mustNext(t, consumer)
	if len(got) != 0 {
		t.Fatalf("expected the success sentinel, got %v", got)
	}
	state := consumer.State()
	if state.Read != 1 {
		t.Fatalf("sentinel advanced the read cursor to %d", state.Read)
	}
	if state.Free != free {
		t.Fatalf("sentinel released a slot: free %d -> %d", free, state.Free)
	}
}

func TestRingNextInterrupted(t *testing.T) {
	consumer, _ := testRing(t, 2, 2)
	consumer.triad.SetWaitSlice(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := consumer.Next(ctx, nil)
	if !errors.Is(err, ErrInterrupted) {
		t.Fatalf("Next() error = %v, want ErrInterrupted", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("interrupt took %v", elapsed)
	}
	checkInvariant(t, consumer)
}

// TestRingPublishInterruptedWhileFull parks a producer on the free semaphore
// and interrupts it: it must give the mutex back and write nothing.
func TestRingPublishInterruptedWhileFull(t *testing.T) {
	consumer, attach := testRing(t, 1, 2)
	producer := attach()
	producer.triad.SetWaitSlice(10 * time.Millisecond)

	mustPublish(t, producer, graph.Edge{0, 1})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- producer.Publish(ctx, []graph.Edge{{7, 7}})
	}()

	time.Sleep(50 * time.Millisecond)
	if got := consumer.State().Mutex; got != 0 {
		t.Fatalf("parked producer should hold the mutex, value = %d", got)
	}
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, ErrInterrupted) {
			t.Fatalf("Publish() error = %v, want ErrInterrupted", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("interrupted Publish() did not return")
	}

	state := consumer.State()
	if state.Mutex != 1 {
		t.Fatalf("mutex not released after interrupt: %s", state)
	}
	checkInvariant(t, consumer)
	if got := mustNext(t, consumer); len(got) != 1 || got[0] != (graph.Edge{0, 1}) {
		t.Fatalf("ring content changed by interrupted publish: %v", got)
	}
}

// TestRingConcurrentPublishInvariant runs several producers, each with its
// own mappings, against one consumer and checks that nothing is lost,
// duplicated or torn, and that the used count matches the cursors once
// everything is quiet.
func TestRingConcurrentPublishInvariant(t *testing.T) {
	const producers = 6
	const perProducer = 300
	const maxBad = 4

	consumer, attach := testRing(t, 8, maxBad)

	g, ctx := errgroup.WithContext(context.Background())
	for p := 0; p < producers; p++ {
		q := attach()
		id := int32(p)
		g.Go(func() error {
			for seq := int32(0); seq < perProducer; seq++ {
				// Every edge carries the same (producer, seq) pair so a torn
				// slot shows up as mixed edges.
				n := int(seq)%maxBad + 1
				edges := make([]graph.Edge, n)
				for i := range edges {
					edges[i] = graph.Edge{First: id, Second: seq}
				}
				if err := q.Publish(ctx, edges); err != nil {
					return err
				}
			}
			return nil
		})
	}

	next := make([]int32, producers)
	var buf []graph.Edge
	for i := 0; i < producers*perProducer; i++ {
		var err error
		buf, err = consumer.Next(context.Background(), buf)
		if err != nil {
			t.Fatalf("Next() failed: %v", err)
		}
		if len(buf) < 1 || len(buf) > maxBad {
			t.Fatalf("candidate %d has %d edges, want [1, %d]", i, len(buf), maxBad)
		}
		id, seq := buf[0].First, buf[0].Second
		for _, e := range buf {
			if e.First != id || e.Second != seq {
				t.Fatalf("torn candidate %v", buf)
			}
		}
		if want := int(seq)%maxBad + 1; len(buf) != want {
			t.Fatalf("candidate (%d, %d) has %d edges, want %d", id, seq, len(buf), want)
		}
		if seq != next[id] {
			t.Fatalf("producer %d: got seq %d, want %d", id, seq, next[id])
		}
		next[id]++
	}

	if err := g.Wait(); err != nil {
		t.Fatalf("producer failed: %v", err)
	}
	checkInvariant(t, consumer)
	if state := consumer.State(); state.Used != 0 || state.Mutex != 1 {
		t.Fatalf("ring not drained: %s", state)
	}
}

// TestRingSingleSlotMutualExclusion drives one slot from many producers.
// Publishes into slot 0 must never overlap: every consumed candidate is
// intact, and the slot is never observed holding data the consumer has not
// yet been told about.
func TestRingSingleSlotMutualExclusion(t *testing.T) {
	const producers = 8
	const perProducer = 200
	const maxBad = 6

	consumer, attach := testRing(t, 1, maxBad)

	var published atomic.Int64
	g, ctx := errgroup.WithContext(context.Background())
	for p := 0; p < producers; p++ {
		q := attach()
		id := int32(p)
		g.Go(func() error {
			edges := make([]graph.Edge, maxBad)
			for seq := int32(0); seq < perProducer; seq++ {
				for i := range edges {
					edges[i] = graph.Edge{First: id, Second: seq}
				}
				if err := q.Publish(ctx, edges); err != nil {
					return err
				}
				published.Add(1)
			}
			return nil
		})
	}

	var buf []graph.Edge
	for i := 0; i < producers*perProducer; i++ {
		var err error
		buf, err = consumer.Next(context.Background(), buf)
		if err != nil {
			t.Fatalf("Next() failed: %v", err)
		}
		if len(buf) != maxBad {
			t.Fatalf("candidate %d has %d edges, want %d", i, len(buf), maxBad)
		}
		for _, e := range buf {
			if e != buf[0] {
				t.Fatalf("two publishes overlapped in slot 0: %v", buf)
			}
		}
		if st := consumer.State(); st.Write != 0 || st.Read != 0 {
			t.Fatalf("cursors left slot 0 with capacity 1: %s", st)
		}
	}

	if err := g.Wait(); err != nil {
		t.Fatalf("producer failed: %v", err)
	}
	if got := published.Load(); got != producers*perProducer {
		t.Fatalf("published %d candidates, want %d", got, producers*perProducer)
	}
	checkInvariant(t, consumer)
}

// TestRingShutdownWakesParkedProducers fills the ring, parks more producers
// than there are slots, and shuts down. Every producer must return
// ErrShutdown promptly and none may write.
func TestRingShutdownWakesParkedProducers(t *testing.T) {
	const capacity = 2
	const producers = 5

	consumer, attach := testRing(t, capacity, 2)
	filler := attach()
	mustPublish(t, filler, graph.Edge{0, 1})
	mustPublish(t, filler, graph.Edge{2, 3})

	done := make(chan error, producers)
	for p := 0; p < producers; p++ {
		q := attach()
		go func() {
			done <- q.Publish(context.Background(), []graph.Edge{{9, 9}})
		}()
	}

	time.Sleep(100 * time.Millisecond)
	before := consumer.State()
	if before.Used != capacity || before.Mutex != 0 {
		t.Fatalf("producers should be parked on a full ring: %s", before)
	}

	if err := consumer.Shutdown(); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}

	deadline := time.After(3 * time.Second)
	for p := 0; p < producers; p++ {
		select {
		case err := <-done:
			if !errors.Is(err, ErrShutdown) {
				t.Fatalf("parked Publish() error = %v, want ErrShutdown", err)
			}
		case <-deadline:
			t.Fatalf("only %d of %d parked producers woke after shutdown", p, producers)
		}
	}

	after := consumer.State()
	if after.Write != before.Write || after.Used != capacity {
		t.Fatalf("a producer wrote after shutdown: before %s, after %s", before, after)
	}
	if !after.Quit || after.Mutex != 1 {
		t.Fatalf("unexpected state after drain: %s", after)
	}

	// Late producers see the flag without blocking.
	if err := filler.Publish(context.Background(), nil); !errors.Is(err, ErrShutdown) {
		t.Fatalf("Publish() after shutdown error = %v, want ErrShutdown", err)
	}
}

func TestRingShutdownIsIdempotent(t *testing.T) {
	consumer, _ := testRing(t, 3, 2)

	if err := consumer.Shutdown(); err != nil {
		t.Fatalf("Shutdown() failed: %v", err)
	}
	if err := consumer.Shutdown(); err != nil {
		t.Fatalf("second Shutdown() failed: %v", err)
	}
	state := consumer.State()
	if !state.Quit || state.Free != 6 {
		t.Fatalf("Shutdown() should post free exactly capacity times once: %s", state)
	}
}
