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
	"testing"

	"github.com/google/uuid"
)

// testNames returns object names that are unique to this test run.
func testNames() (region string, triad TriadNames) {
	id := uuid.NewString()[:8]
	return "3color_" + id + "_shm", TriadNames{
		Mutex: "3color_" + id + "_mutex",
		Free:  "3color_" + id + "_free",
		Used:  "3color_" + id + "_used",
	}
}

// testRing creates a ring the way the supervisor does, in a private
// directory, and registers its destruction with t.Cleanup. It returns the
// owning ring and a function that attaches an independent producer-side ring
// with its own mappings, the way a generator process would.
func testRing(t *testing.T, capacity, maxBad int) (*Ring, func() *Ring) {
	t.Helper()

	dir := t.TempDir()
	regionName, names := testNames()

	region, err := CreateRegion(dir, regionName, capacity, maxBad)
	if err != nil {
		t.Fatalf("CreateRegion() failed: %v", err)
	}
	triad, err := CreateTriad(dir, names, capacity)
	if err != nil {
		region.Destroy()
		t.Fatalf("CreateTriad() failed: %v", err)
	}
	t.Cleanup(func() {
		triad.Destroy()
		region.Destroy()
	})

	attach := func() *Ring {
		t.Helper()
		r, err := OpenRegion(dir, regionName)
		if err != nil {
			t.Fatalf("OpenRegion() failed: %v", err)
		}
		tr, err := OpenTriad(dir, names)
		if err != nil {
			r.Close()
			t.Fatalf("OpenTriad() failed: %v", err)
		}
		t.Cleanup(func() {
			tr.Close()
			r.Close()
		})
		return NewRing(r, tr)
	}

	return NewRing(region, triad), attach
}
