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
	"os"
	"sync/atomic"
	"unsafe"

	"github.com/google/uuid"

	"github.com/proskur1n/threecolor/internal/graph"
)

// Region layout constants
const (
	// Magic bytes for region identification
	RegionMagic = "3COLSHM\x00"

	// Current layout version
	RegionVersion = uint32(1)

	// Region header size (aligned to 64 bytes)
	RegionHeaderSize = 64

	// Size of one edge in a slot: two int32 node ids
	EdgeSize = 8

	// Size of one per-slot candidate size entry
	SlotSizeSize = 4

	// Limits accepted by CalculateRegionSize
	MaxCapacity = 1 << 16
	MaxMaxBad   = 1 << 10

	// Defaults used by the supervisor
	DefaultCapacity = 32
	DefaultMaxBad   = 12
)

// regionHeader is the fixed prefix of a region. All fields are accessed
// atomically because several processes read them concurrently.
type regionHeader struct {
	magic      [8]byte  // 0x00: "3COLSHM\0"
	version    uint32   // 0x08: layout version
	capacity   uint32   // 0x0C: number of slots
	maxBad     uint32   // 0x10: edges per slot
	creatorPID uint32   // 0x14: supervisor process ID
	totalSize  uint64   // 0x18: total region size
	generation [16]byte // 0x20: random id of the supervisor run
	wr         uint32   // 0x30: write cursor, mod capacity
	rd         uint32   // 0x34: read cursor, mod capacity
	quit       uint32   // 0x38: 1 once the supervisor is shutting down
	pad        uint32   // 0x3C: padding to 64B
	// edges start at 0x40, sizes follow the edges
}

// CalculateRegionSize returns the size in bytes of a region with the given
// number of slots and edges per slot, together with the offset of the sizes
// array.
func CalculateRegionSize(capacity, maxBad int) (totalSize, sizesOffset uint64, err error) {
	if capacity < 1 || capacity > MaxCapacity {
		return 0, 0, fmt.Errorf("capacity %d is outside [1, %d]", capacity, MaxCapacity)
	}
	if maxBad < 1 || maxBad > MaxMaxBad {
		return 0, 0, fmt.Errorf("max bad edges %d is outside [1, %d]", maxBad, MaxMaxBad)
	}

	sizesOffset = RegionHeaderSize + uint64(capacity)*uint64(maxBad)*EdgeSize
	totalSize = alignTo64(sizesOffset + uint64(capacity)*SlotSizeSize)
	return totalSize, sizesOffset, nil
}

// alignTo64 aligns a size to 64-byte boundary
func alignTo64(size uint64) uint64 {
	return (size + 63) &^ 63
}

// validateHeader checks that a mapped header describes a region this build
// understands and that the mapping is large enough for it.
func validateHeader(h *regionHeader, mapped int) error {
	if string(h.magic[:]) != RegionMagic {
		return fmt.Errorf("%w: invalid magic bytes", ErrBadHeader)
	}
	if v := atomic.LoadUint32(&h.version); v != RegionVersion {
		return fmt.Errorf("%w: unsupported version %d, expected %d", ErrBadHeader, v, RegionVersion)
	}

	capacity := int(atomic.LoadUint32(&h.capacity))
	maxBad := int(atomic.LoadUint32(&h.maxBad))
	expected, _, err := CalculateRegionSize(capacity, maxBad)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	if got := atomic.LoadUint64(&h.totalSize); got != expected {
		return fmt.Errorf("%w: total size mismatch: got %d, expected %d", ErrBadHeader, got, expected)
	}
	if uint64(mapped) < expected {
		return fmt.Errorf("%w: mapped %d bytes, expected %d", ErrBadHeader, mapped, expected)
	}
	return nil
}

// Region is a mapped candidate ring. The supervisor owns it (CreateRegion);
// generators attach to it (OpenRegion).
type Region struct {
	name  string
	path  string
	mem   []byte
	hdr   *regionHeader
	edges []graph.Edge // capacity*maxBad, slot-major
	sizes []int32      // capacity

	capacity int
	maxBad   int
	owner    bool
}

// CreateRegion creates and initializes a new region called name in dir
// (DefaultDir when empty). It fails with an error wrapping os.ErrExist if the
// name is already taken: a leftover region from an earlier run is never
// reused.
func CreateRegion(dir, name string, capacity, maxBad int) (*Region, error) {
	path, err := objectPath(dir, name)
	if err != nil {
		return nil, err
	}
	totalSize, sizesOffset, err := CalculateRegionSize(capacity, maxBad)
	if err != nil {
		return nil, fmt.Errorf("layout calculation failed: %w", err)
	}

	mem, err := createObject(path, int(totalSize))
	if err != nil {
		return nil, err
	}

	r := newRegion(name, path, mem, capacity, maxBad, sizesOffset)
	r.owner = true

	// The file is freshly truncated, so cursors, sizes and quit are zero.
	h := r.hdr
	atomic.StoreUint32(&h.version, RegionVersion)
	atomic.StoreUint32(&h.capacity, uint32(capacity))
	atomic.StoreUint32(&h.maxBad, uint32(maxBad))
	atomic.StoreUint32(&h.creatorPID, uint32(os.Getpid()))
	atomic.StoreUint64(&h.totalSize, totalSize)
	generation := uuid.New()
	copy(h.generation[:], generation[:])
	// Magic goes last: a region without it is rejected by OpenRegion.
	copy(h.magic[:], RegionMagic)

	return r, nil
}

// OpenRegion attaches to an existing region. A missing region yields an error
// wrapping os.ErrNotExist; a region with a foreign layout yields ErrBadHeader.
func OpenRegion(dir, name string) (*Region, error) {
	path, err := objectPath(dir, name)
	if err != nil {
		return nil, err
	}
	mem, err := openObject(path, RegionHeaderSize)
	if err != nil {
		return nil, err
	}

	h := (*regionHeader)(unsafe.Pointer(&mem[0]))
	if err := validateHeader(h, len(mem)); err != nil {
		unmapObject(mem)
		return nil, fmt.Errorf("invalid region %s: %w", path, err)
	}

	capacity := int(atomic.LoadUint32(&h.capacity))
	maxBad := int(atomic.LoadUint32(&h.maxBad))
	_, sizesOffset, _ := CalculateRegionSize(capacity, maxBad)
	return newRegion(name, path, mem, capacity, maxBad, sizesOffset), nil
}

func newRegion(name, path string, mem []byte, capacity, maxBad int, sizesOffset uint64) *Region {
	return &Region{
		name:     name,
		path:     path,
		mem:      mem,
		hdr:      (*regionHeader)(unsafe.Pointer(&mem[0])),
		edges:    unsafe.Slice((*graph.Edge)(unsafe.Pointer(&mem[RegionHeaderSize])), capacity*maxBad),
		sizes:    unsafe.Slice((*int32)(unsafe.Pointer(&mem[sizesOffset])), capacity),
		capacity: capacity,
		maxBad:   maxBad,
	}
}

// Name returns the object name of the region.
func (r *Region) Name() string { return r.name }

// Path returns the file backing the region.
func (r *Region) Path() string { return r.path }

// Capacity returns the number of slots.
func (r *Region) Capacity() int { return r.capacity }

// MaxBad returns the maximum number of edges a slot can hold.
func (r *Region) MaxBad() int { return r.maxBad }

// Size returns the mapped size in bytes.
func (r *Region) Size() int { return len(r.mem) }

// Generation returns the id the supervisor stamped into the region.
func (r *Region) Generation() uuid.UUID {
	var g uuid.UUID
	copy(g[:], r.hdr.generation[:])
	return g
}

// CreatorPID returns the process ID of the supervisor that created the region.
func (r *Region) CreatorPID() int {
	return int(atomic.LoadUint32(&r.hdr.creatorPID))
}

// Quit reports whether the supervisor has asked everyone to stop.
func (r *Region) Quit() bool {
	return atomic.LoadUint32(&r.hdr.quit) != 0
}

// SetQuit sets the termination flag.
func (r *Region) SetQuit() {
	atomic.StoreUint32(&r.hdr.quit, 1)
}

// WriteIndex returns the write cursor.
func (r *Region) WriteIndex() int {
	return int(atomic.LoadUint32(&r.hdr.wr))
}

// ReadIndex returns the read cursor.
func (r *Region) ReadIndex() int {
	return int(atomic.LoadUint32(&r.hdr.rd))
}

func (r *Region) setWriteIndex(idx int) {
	atomic.StoreUint32(&r.hdr.wr, uint32(idx))
}

func (r *Region) setReadIndex(idx int) {
	atomic.StoreUint32(&r.hdr.rd, uint32(idx))
}

// writeSlot stores edges in slot. The caller holds the mutex and a free token
// and has checked len(edges) <= maxBad.
func (r *Region) writeSlot(slot int, edges []graph.Edge) {
	copy(r.edges[slot*r.maxBad:(slot+1)*r.maxBad], edges)
	r.sizes[slot] = int32(len(edges))
}

// readSlot appends the candidate stored in slot to dst.
func (r *Region) readSlot(slot int, dst []graph.Edge) ([]graph.Edge, error) {
	n := int(r.sizes[slot])
	if n < 0 || n > r.maxBad {
		return dst, fmt.Errorf("%w: slot %d has size %d, limit %d", ErrCorruptSlot, slot, n, r.maxBad)
	}
	base := slot * r.maxBad
	return append(dst, r.edges[base:base+n]...), nil
}

// SlotSize returns the size recorded in slot without copying its edges.
func (r *Region) SlotSize(slot int) int {
	return int(r.sizes[slot])
}

// Close unmaps the region. It never removes the name; generators call only
// this. Close is idempotent.
func (r *Region) Close() error {
	if r.mem == nil {
		return nil
	}
	err := unmapObject(r.mem)
	r.mem, r.hdr, r.edges, r.sizes = nil, nil, nil, nil
	return err
}

// Destroy unmaps the region and removes its name. Only the creator may
// destroy a region.
func (r *Region) Destroy() error {
	if !r.owner {
		return fmt.Errorf("region %s: only the creator may remove it", r.name)
	}
	r.owner = false
	return errors.Join(r.Close(), removePath(r.path))
}

func removePath(path string) error {
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}
