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

import "errors"

var (
	// ErrInterrupted is returned by a wait that gave up because the calling
	// process was asked to stop. Nothing was acquired; callers retry or
	// re-check their loop condition.
	ErrInterrupted = errors.New("shm: wait interrupted")

	// ErrShutdown is returned by Publish once the supervisor has set the quit
	// flag. It is the normal way for a generator to learn it should exit.
	ErrShutdown = errors.New("shm: ring is shutting down")

	// ErrCandidateTooLarge rejects a candidate with more edges than a slot holds.
	ErrCandidateTooLarge = errors.New("shm: candidate exceeds slot size")

	// ErrBadHeader means an object exists but was not created by a compatible
	// supervisor.
	ErrBadHeader = errors.New("shm: incompatible shared object")

	// ErrCorruptSlot means a slot carries a size outside [0, MaxBad].
	ErrCorruptSlot = errors.New("shm: corrupt slot")

	ErrInvalidName = errors.New("shm: invalid object name")

	// ErrUnsupported is returned on platforms without shared futexes.
	ErrUnsupported = errors.New("shm: not supported on this platform")

	errSemaphoreOverflow = errors.New("semaphore overflow")
	errFutexTimeout      = errors.New("futex timeout")
)
