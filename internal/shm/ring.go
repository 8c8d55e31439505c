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
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/proskur1n/threecolor/internal/graph"
)

// RingState is a snapshot of the ring for diagnostics. Fields are read one
// at a time, so a snapshot taken while processes are active may be torn.
type RingState struct {
	Capacity   int
	MaxBad     int
	Write      int    // write cursor, mod Capacity
	Read       int    // read cursor, mod Capacity
	Mutex      uint32 // mutex semaphore value
	Free       uint32 // free-slot semaphore value
	Used       uint32 // used-slot semaphore value
	Quit       bool
	Generation uuid.UUID
	CreatorPID int
}

// Pending returns the number of slots the cursors say are filled. Cursors
// are kept mod Capacity, so a full ring and an empty ring both give zero;
// Used tells them apart.
func (s RingState) Pending() int {
	return ((s.Write-s.Read)%s.Capacity + s.Capacity) % s.Capacity
}

// CheckInvariant verifies, for a quiescent ring that has not been shut down,
// that the used count matches the cursors and that free and used add up to
// the capacity.
func (s RingState) CheckInvariant() error {
	used := int(s.Used)
	switch {
	case used == s.Capacity:
		if s.Write != s.Read {
			return fmt.Errorf("ring full but cursors differ: wr=%d rd=%d", s.Write, s.Read)
		}
	case used != s.Pending():
		return fmt.Errorf("used=%d but (wr-rd) mod %d = %d", used, s.Capacity, s.Pending())
	}
	if int(s.Free)+used != s.Capacity {
		return fmt.Errorf("free=%d + used=%d != capacity %d", s.Free, used, s.Capacity)
	}
	return nil
}

func (s RingState) String() string {
	return fmt.Sprintf("Ring: Used=%d/%d Wr=%d Rd=%d Mutex=%d Free=%d Quit=%v MaxBad=%d Generation=%s CreatorPID=%d",
		s.Used, s.Capacity, s.Write, s.Read, s.Mutex, s.Free, s.Quit, s.MaxBad, s.Generation, s.CreatorPID)
}

// Ring is the candidate queue: a Region plus the Triad that guards it.
//
// Any number of producers may call Publish concurrently, from any number of
// processes. Exactly one consumer calls Next and, when it is done, Shutdown.
type Ring struct {
	region *Region
	triad  *Triad

	shutdownOnce sync.Once
	shutdownErr  error
}

// NewRing combines a mapped region and its semaphores.
func NewRing(region *Region, triad *Triad) *Ring {
	return &Ring{region: region, triad: triad}
}

// Region returns the underlying region.
func (q *Ring) Region() *Region { return q.region }

// Capacity returns the number of slots.
func (q *Ring) Capacity() int { return q.region.Capacity() }

// MaxBad returns the largest candidate Publish accepts.
func (q *Ring) MaxBad() int { return q.region.MaxBad() }

// Quit reports whether the consumer has started shutting down.
func (q *Ring) Quit() bool { return q.region.Quit() }

// Publish appends a candidate to the ring, blocking while the ring is full.
//
// It returns:
//   - nil once the candidate is visible to the consumer;
//   - ErrCandidateTooLarge without touching any semaphore if the candidate
//     does not fit in a slot;
//   - ErrInterrupted if ctx was done while waiting. Nothing is held and the
//     candidate was not written; the caller starts over with a fresh one;
//   - ErrShutdown if the quit flag was observed. The caller must exit;
//   - any other error if a semaphore failed. Everything Publish held has been
//     released on a best-effort basis and the caller must exit.
func (q *Ring) Publish(ctx context.Context, edges []graph.Edge) error {
	r, t := q.region, q.triad
	if len(edges) > r.MaxBad() {
		return fmt.Errorf("%w: %d edges, limit %d", ErrCandidateTooLarge, len(edges), r.MaxBad())
	}

	if err := t.Mutex.Wait(ctx); err != nil {
		return err
	}
	if r.Quit() {
		return release(ErrShutdown, t.Mutex)
	}

	if err := t.Free.Wait(ctx); err != nil {
		return release(err, t.Mutex)
	}
	if r.Quit() {
		// Hand the free token on: it may be the one that wakes the next
		// producer parked behind us.
		return release(ErrShutdown, t.Free, t.Mutex)
	}

	slot := r.WriteIndex()
	r.writeSlot(slot, edges)
	r.setWriteIndex((slot + 1) % r.Capacity())

	if err := t.Mutex.Post(); err != nil {
		return err
	}
	return t.Used.Post()
}

// release posts every semaphore in held and returns cause joined with any
// post failure.
func release(cause error, held ...*Semaphore) error {
	errs := []error{cause}
	for _, s := range held {
		if err := s.Post(); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) == 1 {
		return cause
	}
	return errors.Join(errs...)
}

// Next waits for the oldest unconsumed candidate and appends its edges to
// dst[:0].
//
// An empty result is the success sentinel: a perfect coloring. In that case
// the read cursor is left where it is and no slot is released, because the
// consumer stops consuming. Otherwise the slot is handed back to producers
// before Next returns.
//
// ErrInterrupted means ctx was done while the ring was empty; the caller
// re-checks its loop condition. Any other error is fatal.
func (q *Ring) Next(ctx context.Context, dst []graph.Edge) ([]graph.Edge, error) {
	r, t := q.region, q.triad
	dst = dst[:0]

	if err := t.Used.Wait(ctx); err != nil {
		return dst, err
	}

	slot := r.ReadIndex()
	dst, err := r.readSlot(slot, dst)
	if err != nil {
		return dst[:0], err
	}
	if len(dst) == 0 {
		return dst, nil
	}

	r.setReadIndex((slot + 1) % r.Capacity())
	if err := t.Free.Post(); err != nil {
		return dst, err
	}
	return dst, nil
}

// Shutdown sets the quit flag and then posts the free semaphore Capacity
// times, whether or not anyone is waiting, so that producers parked in
// Publish wake up and see the flag. Only the consumer calls Shutdown, and
// only after it no longer needs the ring. Further calls return the result of
// the first.
func (q *Ring) Shutdown() error {
	q.shutdownOnce.Do(func() {
		q.region.SetQuit()
		var errs []error
		for i := 0; i < q.region.Capacity(); i++ {
			if err := q.triad.Free.Post(); err != nil {
				errs = append(errs, err)
			}
		}
		q.shutdownErr = errors.Join(errs...)
	})
	return q.shutdownErr
}

// State returns a snapshot of the cursors, semaphores and flags.
func (q *Ring) State() RingState {
	r, t := q.region, q.triad
	return RingState{
		Capacity:   r.Capacity(),
		MaxBad:     r.MaxBad(),
		Write:      r.WriteIndex(),
		Read:       r.ReadIndex(),
		Mutex:      t.Mutex.Value(),
		Free:       t.Free.Value(),
		Used:       t.Used.Value(),
		Quit:       r.Quit(),
		Generation: r.Generation(),
		CreatorPID: r.CreatorPID(),
	}
}
