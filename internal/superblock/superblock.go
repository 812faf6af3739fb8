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

// Package superblock formats sector 0 of a blockfs image: a magic number, a
// per-format UUID session tag (so two image files can be told apart in
// logs), and the sector holding the root file's inode.
package superblock

import (
	"encoding/binary"

	"github.com/google/uuid"

	"github.com/osdev-course/blockfs/internal/blockfserr"
	"github.com/osdev-course/blockfs/internal/device"
)

// Magic identifies a sector as a formatted blockfs superblock.
const Magic uint32 = 0x424C4B46 // "BLKF"

// Sector is the fixed sector id a superblock always lives at; the free map
// is constructed with this sector reserved.
const Sector device.SectorID = 0

// Superblock is the minimal image-level header written by `blockfsctl
// format` and read back by every other subcommand.
type Superblock struct {
	SessionID  uuid.UUID
	RootSector device.SectorID
}

// New stamps a fresh superblock with a random session id.
func New(rootSector device.SectorID) Superblock {
	return Superblock{SessionID: uuid.New(), RootSector: rootSector}
}

// Marshal encodes sb into a buffer of sectorSize bytes: magic(4) |
// session-id(16) | root-sector(4) | zero padding.
func (sb Superblock) Marshal(sectorSize int) []byte {
	buf := make([]byte, sectorSize)
	binary.LittleEndian.PutUint32(buf[0:], Magic)
	idBytes, _ := sb.SessionID.MarshalBinary()
	copy(buf[4:20], idBytes)
	binary.LittleEndian.PutUint32(buf[20:], uint32(sb.RootSector))
	return buf
}

// Unmarshal decodes a superblock previously written by Marshal, failing if
// the magic doesn't match (the image was never formatted, or this sector
// holds something else).
func Unmarshal(buf []byte) (Superblock, error) {
	if len(buf) < 24 {
		return Superblock{}, blockfserr.New("superblock.Unmarshal", blockfserr.IoError)
	}
	if binary.LittleEndian.Uint32(buf[0:]) != Magic {
		return Superblock{}, blockfserr.New("superblock.Unmarshal", blockfserr.IoError)
	}

	var sb Superblock
	if err := sb.SessionID.UnmarshalBinary(buf[4:20]); err != nil {
		return Superblock{}, blockfserr.Wrap("superblock.Unmarshal", blockfserr.IoError, err)
	}
	sb.RootSector = device.SectorID(binary.LittleEndian.Uint32(buf[20:]))
	return sb, nil
}
