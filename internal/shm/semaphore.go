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
	"sync/atomic"
	"time"
	"unsafe"
)

const (
	// SemaphoreSize is the size of a semaphore object.
	SemaphoreSize = 64

	semaphoreMagic = uint32(0x33534d31) // "3SM1"

	// DefaultWaitSlice bounds a single kernel sleep while the caller's
	// context can still be cancelled. It is how a stop request reaches a
	// process parked in Wait.
	DefaultWaitSlice = 50 * time.Millisecond
)

// semWord is the shared state of a semaphore.
type semWord struct {
	magic   uint32 // 0x00: semaphoreMagic
	value   uint32 // 0x04: current count; futex word
	waiters uint32 // 0x08: processes sleeping (or about to sleep) on value
	pad     [52]byte
}

// Semaphore is a named counting semaphore shared between processes.
//
// Wait decrements the count, sleeping in the kernel while it is zero. Post
// increments it and wakes one sleeper. The count lives in its own shared
// object, so every process that opens the same name sees the same semaphore.
type Semaphore struct {
	name  string
	path  string
	mem   []byte
	word  *semWord
	slice time.Duration
	owner bool
}

// CreateSemaphore creates a semaphore called name in dir with the given
// initial count. It fails with an error wrapping os.ErrExist if the name is
// already taken.
func CreateSemaphore(dir, name string, initial uint32) (*Semaphore, error) {
	path, err := objectPath(dir, name)
	if err != nil {
		return nil, err
	}
	mem, err := createObject(path, SemaphoreSize)
	if err != nil {
		return nil, err
	}
	s := newSemaphore(name, path, mem)
	s.owner = true
	atomic.StoreUint32(&s.word.value, initial)
	atomic.StoreUint32(&s.word.magic, semaphoreMagic)
	return s, nil
}

// OpenSemaphore attaches to an existing semaphore.
func OpenSemaphore(dir, name string) (*Semaphore, error) {
	path, err := objectPath(dir, name)
	if err != nil {
		return nil, err
	}
	mem, err := openObject(path, SemaphoreSize)
	if err != nil {
		return nil, err
	}
	s := newSemaphore(name, path, mem)
	if atomic.LoadUint32(&s.word.magic) != semaphoreMagic {
		unmapObject(mem)
		return nil, fmt.Errorf("invalid semaphore %s: %w", path, ErrBadHeader)
	}
	return s, nil
}

func newSemaphore(name, path string, mem []byte) *Semaphore {
	return &Semaphore{
		name:  name,
		path:  path,
		mem:   mem,
		word:  (*semWord)(unsafe.Pointer(&mem[0])),
		slice: DefaultWaitSlice,
	}
}

// Name returns the object name of the semaphore.
func (s *Semaphore) Name() string { return s.name }

// SetWaitSlice changes how long a single kernel sleep may last while the
// waiter's context is cancellable. Non-positive values restore the default.
func (s *Semaphore) SetWaitSlice(d time.Duration) {
	if d <= 0 {
		d = DefaultWaitSlice
	}
	s.slice = d
}

// Value returns the current count. It is only a snapshot.
func (s *Semaphore) Value() uint32 {
	return atomic.LoadUint32(&s.word.value)
}

// TryWait decrements the count if it is positive and reports whether it did.
func (s *Semaphore) TryWait() bool {
	for {
		v := atomic.LoadUint32(&s.word.value)
		if v == 0 {
			return false
		}
		if atomic.CompareAndSwapUint32(&s.word.value, v, v-1) {
			return true
		}
	}
}

// Wait decrements the count, blocking while it is zero.
//
// If ctx is done while the count is zero, Wait returns ErrInterrupted without
// having acquired anything. A done context does not prevent acquiring a
// semaphore that is immediately available. Any other error means the
// semaphore can no longer be used.
func (s *Semaphore) Wait(ctx context.Context) error {
	var slice time.Duration
	if ctx.Done() != nil {
		slice = s.slice
	}

	w := s.word
	for {
		if s.TryWait() {
			return nil
		}
		if ctx.Err() != nil {
			return ErrInterrupted
		}

		// Announce the sleeper before sleeping: Post increments value
		// first and checks waiters second, so either the kernel sees the
		// new value and refuses to sleep or Post sees the waiter.
		atomic.AddUint32(&w.waiters, 1)
		err := futexWait(&w.value, 0, slice)
		atomic.AddUint32(&w.waiters, ^uint32(0))

		if err != nil && !errors.Is(err, errFutexTimeout) {
			return fmt.Errorf("semaphore %s: wait: %w", s.name, err)
		}
	}
}

// Post increments the count and wakes one waiter if any process is waiting.
func (s *Semaphore) Post() error {
	w := s.word
	if atomic.AddUint32(&w.value, 1) == 0 {
		atomic.AddUint32(&w.value, ^uint32(0))
		return fmt.Errorf("semaphore %s: post: %w", s.name, errSemaphoreOverflow)
	}
	if atomic.LoadUint32(&w.waiters) == 0 {
		return nil
	}
	if _, err := futexWake(&w.value, 1); err != nil {
		return fmt.Errorf("semaphore %s: post: %w", s.name, err)
	}
	return nil
}

// Close unmaps the semaphore. It is idempotent.
func (s *Semaphore) Close() error {
	if s.mem == nil {
		return nil
	}
	err := unmapObject(s.mem)
	s.mem, s.word = nil, nil
	return err
}

// Destroy unmaps the semaphore and removes its name. Processes that still
// have it mapped keep a working semaphore; new ones can no longer open it.
func (s *Semaphore) Destroy() error {
	if !s.owner {
		return fmt.Errorf("semaphore %s: only the creator may remove it", s.name)
	}
	s.owner = false
	return errors.Join(s.Close(), removePath(s.path))
}
