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
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// TestFutexAtomicRecheck verifies futexWait returns at once when the value
// already changed.
func TestFutexAtomicRecheck(t *testing.T) {
	var addr uint32 = 43

	start := time.Now()
	if err := futexWait(&addr, 42, 0); err != nil {
		t.Fatalf("futexWait returned error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 100*time.Millisecond {
		t.Errorf("futexWait took too long (%v) when value already changed", elapsed)
	}
}

func TestFutexTimeout(t *testing.T) {
	data := make([]uint32, 1)
	addr := &data[0]
	atomic.StoreUint32(addr, 42)

	start := time.Now()
	err := futexWait(addr, 42, 50*time.Millisecond)
	elapsed := time.Since(start)

	if !errors.Is(err, errFutexTimeout) {
		t.Fatalf("futexWait() error = %v, want errFutexTimeout", err)
	}
	if elapsed < 40*time.Millisecond {
		t.Errorf("timeout after %v, expected ~50ms", elapsed)
	}
}

func TestFutexWakeFromAnotherGoroutine(t *testing.T) {
	data := make([]uint32, 1)
	addr := &data[0]
	atomic.StoreUint32(addr, 100)

	go func() {
		time.Sleep(50 * time.Millisecond)
		atomic.StoreUint32(addr, 101)
		futexWake(addr, 1)
	}()

	start := time.Now()
	for atomic.LoadUint32(addr) == 100 {
		if err := futexWait(addr, 100, time.Second); err != nil {
			t.Fatalf("futexWait() failed: %v", err)
		}
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("wake took %v, expected ~50ms", elapsed)
	}
}

// TestFutexLostWakeRace hammers the snapshot/sleep window: a waiter that
// snapshots the counter and then sleeps must not miss increments that happen
// in between.
func TestFutexLostWakeRace(t *testing.T) {
	const iterations = 100
	const numWorkers = 10

	for iter := 0; iter < iterations; iter++ {
		var counter uint32
		var wg sync.WaitGroup
		startCh := make(chan struct{})

		wg.Add(1)
		go func() {
			defer wg.Done()
			<-startCh
			snapshot := atomic.LoadUint32(&counter)
			time.Sleep(10 * time.Microsecond)
			futexWait(&counter, snapshot, 0)
		}()

		for i := 0; i < numWorkers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				<-startCh
				atomic.AddUint32(&counter, 1)
				futexWake(&counter, 1)
			}()
		}

		close(startCh)

		done := make(chan struct{})
		go func() {
			wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(time.Second):
			t.Fatalf("iteration %d: futexWait hung, lost wake", iter)
		}
	}
}
