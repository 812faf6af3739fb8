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

// Package device is the external block-device collaborator: synchronous,
// sector-granular, fixed-size reads and writes. Everything above the buffer
// cache reaches the device only through this interface; the real hardware
// driver is out of scope, so this package supplies the narrow reference
// implementations (in-memory and file-backed) the rest of the tree is
// tested against.
package device

import (
	"github.com/osdev-course/blockfs/internal/blockfserr"
)

// SectorID addresses a single fixed-width sector on a Device.
type SectorID uint32

// Device is the synchronous, sector-granular block device adapter.
type Device interface {
	// SectorSize returns S, the fixed width of every sector in bytes.
	SectorSize() int

	// NumSectors returns the number of addressable sectors on the device.
	NumSectors() uint32

	// ReadSector fills dst (len(dst) == SectorSize()) with the contents of
	// sector id.
	ReadSector(id SectorID, dst []byte) error

	// WriteSector writes src (len(src) == SectorSize()) to sector id.
	WriteSector(id SectorID, src []byte) error

	// Close releases any resources (file handles) held by the device.
	Close() error
}

func checkLen(op string, buf []byte, sectorSize int) error {
	if len(buf) != sectorSize {
		return blockfserr.New(op, blockfserr.IoError)
	}
	return nil
}

func checkBounds(op string, id SectorID, n uint32) error {
	if uint32(id) >= n {
		return blockfserr.New(op, blockfserr.IoError)
	}
	return nil
}
