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

// Package shm implements the shared-memory candidate queue used by the
// supervisor and its generators.
//
// Everything that is shared between processes lives in named objects under a
// shared-memory directory (normally /dev/shm): one Region holding the ring of
// candidate slots together with its cursors and quit flag, and three counting
// Semaphores (mutex, free, used) that implement a bounded multi-producer,
// single-consumer buffer. The semaphores are built on shared Linux futexes, so
// a waiting process is descheduled by the kernel instead of spinning.
//
// The supervisor creates all four objects with exclusive-create semantics and
// is the only party that ever removes them. Generators only attach and unmap.
package shm
