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

package device

import "sync"

// MemDevice is an in-memory Device, used by tests and by the CLI's
// --in-memory mode. Sectors are allocated lazily and read as all-zero until
// first written.
type MemDevice struct {
	mu         sync.Mutex
	sectorSize int
	numSectors uint32
	sectors    map[SectorID][]byte

	// ReadErr/WriteErr, when non-nil, are returned instead of performing the
	// operation. Tests use these to exercise device-error paths above this
	// layer without a real failing disk.
	ReadErr  error
	WriteErr error
}

var _ Device = (*MemDevice)(nil)

// NewMemDevice creates an empty in-memory device of the given geometry.
func NewMemDevice(sectorSize int, numSectors uint32) *MemDevice {
	return &MemDevice{
		sectorSize: sectorSize,
		numSectors: numSectors,
		sectors:    make(map[SectorID][]byte),
	}
}

func (d *MemDevice) SectorSize() int    { return d.sectorSize }
func (d *MemDevice) NumSectors() uint32 { return d.numSectors }

func (d *MemDevice) ReadSector(id SectorID, dst []byte) error {
	if err := checkLen("device.ReadSector", dst, d.sectorSize); err != nil {
		return err
	}
	if err := checkBounds("device.ReadSector", id, d.numSectors); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.ReadErr != nil {
		return d.ReadErr
	}

	if existing, ok := d.sectors[id]; ok {
		copy(dst, existing)
	} else {
		for i := range dst {
			dst[i] = 0
		}
	}
	return nil
}

func (d *MemDevice) WriteSector(id SectorID, src []byte) error {
	if err := checkLen("device.WriteSector", src, d.sectorSize); err != nil {
		return err
	}
	if err := checkBounds("device.WriteSector", id, d.numSectors); err != nil {
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.WriteErr != nil {
		return d.WriteErr
	}

	buf := make([]byte, d.sectorSize)
	copy(buf, src)
	d.sectors[id] = buf
	return nil
}

func (d *MemDevice) Close() error { return nil }

// Peek reads a sector's raw bytes directly, bypassing any cache, for tests
// that assert on write-back behavior.
func (d *MemDevice) Peek(id SectorID) []byte {
	d.mu.Lock()
	defer d.mu.Unlock()

	if existing, ok := d.sectors[id]; ok {
		out := make([]byte, len(existing))
		copy(out, existing)
		return out
	}
	return make([]byte, d.sectorSize)
}
