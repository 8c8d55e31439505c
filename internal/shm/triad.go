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
	"fmt"
	"time"
)

// TriadNames are the object names of the three semaphores.
type TriadNames struct {
	Mutex string
	Free  string
	Used  string
}

// Triad is the semaphore set guarding a Region.
//
//   - Mutex (initially 1) serializes producers around the write cursor.
//   - Free (initially capacity) counts empty slots.
//   - Used (initially 0) counts filled slots.
type Triad struct {
	Mutex *Semaphore
	Free  *Semaphore
	Used  *Semaphore
}

// CreateTriad creates the three semaphores for a ring of the given capacity.
// If any of them cannot be created, the ones already created are destroyed
// again so that no names leak into the next run.
func CreateTriad(dir string, names TriadNames, capacity int) (*Triad, error) {
	t := &Triad{}
	var err error
	if t.Mutex, err = CreateSemaphore(dir, names.Mutex, 1); err != nil {
		return nil, err
	}
	if t.Free, err = CreateSemaphore(dir, names.Free, uint32(capacity)); err != nil {
		t.Destroy()
		return nil, err
	}
	if t.Used, err = CreateSemaphore(dir, names.Used, 0); err != nil {
		t.Destroy()
		return nil, err
	}
	return t, nil
}

// OpenTriad attaches to existing semaphores, closing whatever it opened if one
// of them is missing.
func OpenTriad(dir string, names TriadNames) (*Triad, error) {
	t := &Triad{}
	var err error
	if t.Mutex, err = OpenSemaphore(dir, names.Mutex); err != nil {
		return nil, err
	}
	if t.Free, err = OpenSemaphore(dir, names.Free); err != nil {
		t.Close()
		return nil, err
	}
	if t.Used, err = OpenSemaphore(dir, names.Used); err != nil {
		t.Close()
		return nil, err
	}
	return t, nil
}

// SetWaitSlice applies Semaphore.SetWaitSlice to all three semaphores.
func (t *Triad) SetWaitSlice(d time.Duration) {
	for _, s := range t.all() {
		s.SetWaitSlice(d)
	}
}

func (t *Triad) all() []*Semaphore {
	all := make([]*Semaphore, 0, 3)
	for _, s := range []*Semaphore{t.Mutex, t.Free, t.Used} {
		if s != nil {
			all = append(all, s)
		}
	}
	return all
}

// Close unmaps all semaphores and returns the first error.
func (t *Triad) Close() error {
	var errs []error
	for _, s := range t.all() {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Destroy unmaps and removes all semaphores the triad created.
func (t *Triad) Destroy() error {
	var errs []error
	for _, s := range t.all() {
		if err := s.Destroy(); err != nil {
			errs = append(errs, fmt.Errorf("destroy %s: %w", s.Name(), err))
		}
	}
	return errors.Join(errs...)
}
