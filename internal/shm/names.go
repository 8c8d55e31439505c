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
	"path/filepath"
	"strings"
)

// DefaultDir returns /dev/shm when it exists and the temporary directory
// otherwise.
func DefaultDir() string {
	if info, err := os.Stat("/dev/shm"); err == nil && info.IsDir() {
		return "/dev/shm"
	}
	return os.TempDir()
}

// ValidateName reports whether name can identify a shared object. Names are
// single path elements inside the shared-memory directory.
func ValidateName(name string) error {
	if name == "" || name == "." || name == ".." || strings.ContainsRune(name, filepath.Separator) || strings.ContainsRune(name, '/') {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}

func objectPath(dir, name string) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	if dir == "" {
		dir = DefaultDir()
	}
	return filepath.Join(dir, name), nil
}

// ObjectExists reports whether a shared object called name exists in dir.
func ObjectExists(dir, name string) bool {
	path, err := objectPath(dir, name)
	if err != nil {
		return false
	}
	_, err = os.Stat(path)
	return err == nil
}

// RemoveObject unlinks a shared object. Processes that still have it mapped
// keep their mapping; only the name goes away. Removing a missing object
// returns an error wrapping os.ErrNotExist.
func RemoveObject(dir, name string) error {
	path, err := objectPath(dir, name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		return fmt.Errorf("failed to remove %s: %w", path, err)
	}
	return nil
}

// RemoveObjects unlinks every named object that exists and returns the names
// it removed. Missing objects are skipped.
func RemoveObjects(dir string, names ...string) ([]string, error) {
	var removed []string
	var errs []error
	for _, name := range names {
		err := RemoveObject(dir, name)
		switch {
		case err == nil:
			removed = append(removed, name)
		case errors.Is(err, os.ErrNotExist):
		default:
			errs = append(errs, err)
		}
	}
	return removed, errors.Join(errs...)
}
