// Copyright 2025 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package freemap is the external free-sector-map collaborator: an atomic
// allocate-N/release-N bitmap over the device's sector space. It is the
// narrow reference implementation the inode layer is tested against.
package freemap

import (
	"sync"

	"github.com/osdev-course/blockfs/internal/blockfserr"
	"github.com/osdev-course/blockfs/internal/device"
)

// Map is a bitmap free-sector-map covering sectors [0, n).
type Map struct {
	mu   sync.Mutex
	used []bool
}

// New returns a Map with the first `reserved` sectors (e.g. the boot sector,
// superblock) already marked in-use, covering a device of n total sectors.
func New(n uint32, reserved uint32) *Map {
	used := make([]bool, n)
	for i := uint32(0); i < reserved && i < n; i++ {
		used[i] = true
	}
	return &Map{used: used}
}

// Allocate reserves the first run of n contiguous free sectors and returns
// the first one of the run. The inode layer never calls with n > 1, but a general
// allocator costs nothing extra and the scan is simple enough to audit.
func (m *Map) Allocate(n int) (device.SectorID, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if n <= 0 {
		return 0, blockfserr.New("freemap.Allocate", blockfserr.OutOfSpace)
	}

	first := device.SectorID(0)
	found := 0
	for i, u := range m.used {
		if !u {
			if found == 0 {
				first = device.SectorID(i)
			}
			found++
			if found == n {
				for j := int(first); j <= i; j++ {
					m.used[j] = true
				}
				return first, nil
			}
		} else {
			found = 0
		}
	}

	return 0, blockfserr.New("freemap.Allocate", blockfserr.OutOfSpace)
}

// AllocateOne is the common case: reserve exactly one sector.
func (m *Map) AllocateOne() (device.SectorID, error) {
	return m.Allocate(1)
}

// Release returns n sectors starting at id to the free pool.
func (m *Map) Release(id device.SectorID, n int) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i := 0; i < n; i++ {
		idx := int(id) + i
		if idx >= 0 && idx < len(m.used) {
			m.used[idx] = false
		}
	}
}

// MarkUsed flags id as allocated without returning it from Allocate. Used by
// a process that reopens an existing image to rebuild free-map state by
// walking the sectors already owned by files on disk; the map itself has no
// on-disk representation and does not survive a process exit on its own.
func (m *Map) MarkUsed(id device.SectorID) {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := int(id)
	if idx >= 0 && idx < len(m.used) {
		m.used[idx] = true
	}
}

// FreeCount reports how many sectors remain unallocated, for tests and
// diagnostics that check exact post-release free counts.
func (m *Map) FreeCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, u := range m.used {
		if !u {
			n++
		}
	}
	return n
}

// IsFree reports whether a single sector is currently unallocated.
func (m *Map) IsFree(id device.SectorID) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	idx := int(id)
	if idx < 0 || idx >= len(m.used) {
		return false
	}
	return !m.used[idx]
}
