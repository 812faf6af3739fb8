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

package inode

import (
	"github.com/osdev-course/blockfs/internal/blockfserr"
	"github.com/osdev-course/blockfs/internal/device"
)

// sectorForIndex returns the data sector already addressed by disk at
// 0-based data-sector index idx. idx must be within the tree's currently
// allocated range; callers that may be reading or writing past the end must
// grow the tree first.
func sectorForIndex(g Geometry, cache sectorCache, disk *OnDiskInode, idx int) (device.SectorID, error) {
	if idx < g.Nd {
		return disk.Direct[idx], nil
	}
	idx -= g.Nd

	if idx < g.Ni {
		if disk.IndirectPtr == 0 {
			return 0, blockfserr.New("inode.sectorForIndex", blockfserr.NotFound)
		}
		ib, err := readIndirectBlock(g, cache, disk.IndirectPtr)
		if err != nil {
			return 0, err
		}
		return ib.Blocks[idx], nil
	}
	idx -= g.Ni

	if disk.DblIndirectPtr == 0 {
		return 0, blockfserr.New("inode.sectorForIndex", blockfserr.NotFound)
	}
	db, err := readDblIndirectBlock(g, cache, disk.DblIndirectPtr)
	if err != nil {
		return 0, err
	}

	outer, inner := idx/g.Ni, idx%g.Ni
	if outer >= len(db.Indirect) || db.Indirect[outer] == 0 {
		return 0, blockfserr.New("inode.sectorForIndex", blockfserr.NotFound)
	}
	ib, err := readIndirectBlock(g, cache, db.Indirect[outer])
	if err != nil {
		return 0, err
	}
	return ib.Blocks[inner], nil
}

// byteOffsetToIndex converts a wide, unsigned byte offset into a data-
// sector index and the in-sector byte offset, using uint64 throughout so an
// offset near the top of a large file cannot silently wrap.
func byteOffsetToIndex(g Geometry, offset uint64) (index int, inSector int) {
	s := uint64(g.SectorSize)
	return int(offset / s), int(offset % s)
}

func readIndirectBlock(g Geometry, cache sectorCache, sector device.SectorID) (*IndirectBlock, error) {
	buf := make([]byte, g.SectorSize)
	if err := cache.Read(sector, buf); err != nil {
		return nil, blockfserr.Wrap("inode.readIndirectBlock", blockfserr.IoError, err)
	}
	return UnmarshalIndirectBlock(g, buf)
}

func readDblIndirectBlock(g Geometry, cache sectorCache, sector device.SectorID) (*DblIndirectBlock, error) {
	buf := make([]byte, g.SectorSize)
	if err := cache.Read(sector, buf); err != nil {
		return nil, blockfserr.Wrap("inode.readDblIndirectBlock", blockfserr.IoError, err)
	}
	return UnmarshalDblIndirectBlock(g, buf)
}
