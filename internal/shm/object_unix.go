//go:build unix

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
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// createObject exclusively creates the file at path, sizes it and maps it
// shared. The file descriptor is not needed once the mapping exists. If the
// name is already taken the returned error wraps os.ErrExist.
func createObject(path string, size int) ([]byte, error) {
	file, err := os.OpenFile(path, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	if err := file.Truncate(int64(size)); err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to resize %s: %w", path, err)
	}

	mem, err := mmapFile(file, size)
	if err != nil {
		os.Remove(path)
		return nil, fmt.Errorf("failed to map %s: %w", path, err)
	}
	return mem, nil
}

// openObject maps an existing object. A missing object yields an error
// wrapping os.ErrNotExist.
func openObject(path string, minSize int) ([]byte, error) {
	file, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat %s: %w", path, err)
	}
	if info.Size() < int64(minSize) {
		return nil, fmt.Errorf("%w: %s is %d bytes, need at least %d", ErrBadHeader, path, info.Size(), minSize)
	}

	mem, err := mmapFile(file, int(info.Size()))
	if err != nil {
		return nil, fmt.Errorf("failed to map %s: %w", path, err)
	}
	return mem, nil
}

func mmapFile(file *os.File, size int) ([]byte, error) {
	data, err := unix.Mmap(int(file.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, fmt.Errorf("mmap failed: %w", err)
	}
	return data, nil
}

func unmapObject(mem []byte) error {
	if len(mem) == 0 {
		return nil
	}
	if err := unix.Munmap(mem); err != nil {
		return fmt.Errorf("munmap failed: %w", err)
	}
	return nil
}
