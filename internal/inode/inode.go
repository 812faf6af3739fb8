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
	"github.com/osdev-course/blockfs/internal/metrics"
)

// Create allocates a fresh inode of the given initial length, reserving
// every sector its index tree needs in one atomic step: if allocation fails
// partway through (direct pointers succeed, an indirect block does not, say)
// every sector reserved during this call is released and no partial inode
// is left on disk or in the table.
func (t *Table) Create(length int64) (*OpenInode, error) {
	if length < 0 || length > 1<<32-1 {
		return nil, blockfserr.New("inode.Table.Create", blockfserr.TooLarge)
	}

	sectors := currentSectorCount(t.g, &OnDiskInode{Length: uint32(length)})
	if _, err := computeBudget(t.g, sectors); err != nil {
		return nil, err
	}

	a := newAllocator(t.g, t.fm, t.cache)

	disk := newOnDiskInode(t.g)
	selfID, err := a.allocIndexBlock(a.zeroes)
	if err != nil {
		return nil, err
	}
	disk.Self = selfID

	if err := growTo(t.g, a, disk, sectors); err != nil {
		return nil, err
	}
	disk.Length = uint32(length)

	if err := t.cache.Write(disk.Self, disk.Marshal(t.g)); err != nil {
		a.rollback()
		return nil, blockfserr.Wrap("inode.Table.Create", blockfserr.IoError, err)
	}
	a.commit()

	oi := &OpenInode{sector: disk.Self, openCount: 1, disk: disk}

	t.mu.Lock()
	t.adopt(oi)
	t.mu.Unlock()

	return oi, nil
}

// ReadAt copies min(len(dst), Length()-offset) bytes starting at offset into
// dst and returns the number of bytes actually copied. Reading at or past
// the end of the file returns (0, nil), matching io.ReaderAt's convention
// loosely but without erroring on a short read — callers that want io.EOF
// semantics can wrap this.
func (t *Table) ReadAt(oi *OpenInode, offset uint64, dst []byte) (int, error) {
	oi.mu.Lock()
	defer oi.mu.Unlock()

	length := uint64(oi.disk.Length)
	if offset >= length {
		return 0, nil
	}

	avail := length - offset
	if uint64(len(dst)) > avail {
		dst = dst[:avail]
	}

	n := 0
	for n < len(dst) {
		idx, inSector := byteOffsetToIndex(t.g, offset+uint64(n))
		sector, err := sectorForIndex(t.g, t.cache, oi.disk, idx)
		if err != nil {
			return n, err
		}

		chunk := t.g.SectorSize - inSector
		if chunk > len(dst)-n {
			chunk = len(dst) - n
		}

		if err := t.cache.ReadPartial(sector, dst[n:n+chunk], inSector, chunk); err != nil {
			return n, blockfserr.Wrap("inode.Table.ReadAt", blockfserr.IoError, err)
		}
		n += chunk
	}

	if t.metrics != nil {
		t.metrics.BytesRead(n)
	}
	return n, nil
}

// WriteAt writes src starting at offset, growing the file (and its index
// tree) if offset+len(src) exceeds the current length. If oi currently has
// deny-write in effect, it writes nothing and returns (0, nil) rather than
// an error; a caller that needs to distinguish "denied" from "short write"
// should check DenyWriteActive() first.
func (t *Table) WriteAt(oi *OpenInode, offset uint64, src []byte) (int, error) {
	oi.mu.Lock()
	defer oi.mu.Unlock()

	if oi.denyWriteCount > 0 {
		return 0, nil
	}
	if len(src) == 0 {
		return 0, nil
	}

	newLength := offset + uint64(len(src))
	if newLength > 1<<32-1 {
		return 0, blockfserr.New("inode.Table.WriteAt", blockfserr.TooLarge)
	}
	newSectors := currentSectorCount(t.g, &OnDiskInode{Length: uint32(newLength)})

	oldSectors := currentSectorCount(t.g, oi.disk)
	if newSectors > oldSectors {
		if _, err := computeBudget(t.g, newSectors); err != nil {
			return 0, err
		}

		a := newAllocator(t.g, t.fm, t.cache)
		if err := growTo(t.g, a, oi.disk, newSectors); err != nil {
			return 0, err
		}
		a.commit()
	}

	grown := newLength > uint64(oi.disk.Length)
	if grown {
		oi.disk.Length = uint32(newLength)
	}

	n := 0
	for n < len(src) {
		idx, inSector := byteOffsetToIndex(t.g, offset+uint64(n))
		sector, err := sectorForIndex(t.g, t.cache, oi.disk, idx)
		if err != nil {
			return n, err
		}

		chunk := t.g.SectorSize - inSector
		if chunk > len(src)-n {
			chunk = len(src) - n
		}

		if err := t.cache.WritePartial(sector, src[n:n+chunk], inSector, chunk); err != nil {
			return n, blockfserr.Wrap("inode.Table.WriteAt", blockfserr.IoError, err)
		}
		n += chunk
	}

	if err := t.persist(oi); err != nil {
		return n, err
	}

	if t.metrics != nil {
		t.metrics.BytesWritten(n)
		if grown {
			t.metrics.Grow()
		}
	}
	return n, nil
}

func (t *Table) persist(oi *OpenInode) error {
	if err := t.cache.Write(oi.sector, oi.disk.Marshal(t.g)); err != nil {
		return blockfserr.Wrap("inode.Table.persist", blockfserr.IoError, err)
	}
	return nil
}

// SetMetrics attaches a metrics handle used by ReadAt/WriteAt to record
// bytes moved and file growth. A nil handle (the default) makes these calls
// no-ops.
func (t *Table) SetMetrics(m *metrics.Handle) {
	t.metrics = m
}
