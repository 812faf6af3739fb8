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

// sectorBudget is the (direct, indirect, dbl, remain) split produced by
// peeling a sector count across the direct, indirect and double-indirect
// ranges in order ("Sector budget computation").
type sectorBudget struct {
	direct   int
	indirect int
	dbl      int // fully-used second-level indirect blocks
	remain   int // data sectors in a partially used trailing second-level block
}

// computeBudget peels s sectors off direct, then indirect, then
// double-indirect capacity, in that order. It fails (TooLarge) if sectors
// remain unaccounted for once every level is exhausted.
func computeBudget(g Geometry, s int) (sectorBudget, error) {
	var b sectorBudget

	b.direct = min(s, g.Nd)
	s -= b.direct

	b.indirect = min(s, g.Ni)
	s -= b.indirect

	b.dbl = min(s/g.Ni, g.Nd2)
	s -= b.dbl * g.Ni

	b.remain = s % g.Ni
	s -= b.remain

	// A trailing partial block needs an indirect slot past the Nd2 full ones.
	if s != 0 || (b.remain > 0 && b.dbl == g.Nd2) {
		return sectorBudget{}, blockfserr.New("inode.computeBudget", blockfserr.TooLarge)
	}

	return b, nil
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

// allocator bundles the free map and cache allocation needs for the growth
// and create paths. It accumulates every sector it hands out across a
// sequence of calls so a caller spanning several allocation routines (direct,
// then indirect, then double-indirect) can undo all of them as one unit:
// call rollback() on any failure, commit() once the whole operation
// succeeds. This is what makes Create atomic: a failure allocating the
// Nd2'th indirect block no longer leaks the Nd sectors already reserved for
// direct pointers.
type allocator struct {
	fm     freeMap
	cache  sectorCache
	g      Geometry
	zeroes []byte

	granted []device.SectorID
}

func newAllocator(g Geometry, fm freeMap, cache sectorCache) *allocator {
	return &allocator{fm: fm, cache: cache, g: g, zeroes: make([]byte, g.SectorSize)}
}

// allocOne allocates a single fresh sector and zero-fills it through the
// cache, observable by any subsequent read.
func (a *allocator) allocOne() (device.SectorID, error) {
	id, err := a.fm.AllocateOne()
	if err != nil {
		return 0, blockfserr.Wrap("inode.allocOne", blockfserr.OutOfSpace, err)
	}
	if err := a.cache.Write(id, a.zeroes); err != nil {
		a.fm.Release(id, 1)
		return 0, blockfserr.Wrap("inode.allocOne", blockfserr.IoError, err)
	}
	a.granted = append(a.granted, id)
	return id, nil
}

// allocIndexBlock allocates a single fresh sector and writes content (an
// already-marshaled IndirectBlock or DblIndirectBlock) into it, for the
// index-tree nodes rather than file data.
func (a *allocator) allocIndexBlock(content []byte) (device.SectorID, error) {
	id, err := a.fm.AllocateOne()
	if err != nil {
		return 0, blockfserr.Wrap("inode.allocIndexBlock", blockfserr.OutOfSpace, err)
	}
	if err := a.cache.Write(id, content); err != nil {
		a.fm.Release(id, 1)
		return 0, blockfserr.Wrap("inode.allocIndexBlock", blockfserr.IoError, err)
	}
	a.granted = append(a.granted, id)
	return id, nil
}

// rollback releases every sector granted since the allocator was built (or
// since the last commit), undoing a partially completed multi-step
// allocation.
func (a *allocator) rollback() {
	for _, id := range a.granted {
		a.fm.Release(id, 1)
	}
	a.granted = nil
}

// commit discards the tracking list without releasing anything: the
// sectors it recorded are now permanently owned by the inode.
func (a *allocator) commit() {
	a.granted = nil
}

// freeMap is the subset of freemap.Map the inode layer needs; it exists so
// tests can substitute a fake without importing the freemap package's
// concrete type.
type freeMap interface {
	AllocateOne() (device.SectorID, error)
	Release(id device.SectorID, n int)
}

// sectorCache is the subset of bcache.Cache the inode layer needs.
type sectorCache interface {
	SectorSize() int
	Read(id device.SectorID, dst []byte) error
	Write(id device.SectorID, src []byte) error
	ReadPartial(id device.SectorID, dst []byte, offset, length int) error
	WritePartial(id device.SectorID, src []byte, offset, length int) error
}

// growTo extends disk from its current sector count up to newTotal data
// sectors, in three allocation routines run in order: direct, then
// indirect, then double-indirect. newTotal must not exceed
// g.MaxSectors(); the caller (create/write_at growth) is responsible for
// that check via computeBudget. On any failure every sector allocated
// during this call — across all three routines — is released before
// returning, so a caller never observes a half-grown tree.
func growTo(g Geometry, a *allocator, disk *OnDiskInode, newTotal int) error {
	oldTotal := currentSectorCount(g, disk)
	if newTotal <= oldTotal {
		return nil
	}

	oldBudget, err := computeBudget(g, oldTotal)
	if err != nil {
		return err
	}
	newBudget, err := computeBudget(g, newTotal)
	if err != nil {
		return err
	}

	saved := *disk
	saved.Direct = append([]device.SectorID(nil), disk.Direct...)
	fail := func(err error) error {
		a.rollback()
		*disk = saved
		return err
	}

	if err := allocateDirectRange(a, disk, oldBudget.direct, newBudget.direct); err != nil {
		return fail(err)
	}

	if newBudget.indirect > oldBudget.indirect {
		if err := allocateIndirectRange(g, a, disk, disk.Self, oldBudget.indirect, newBudget.indirect); err != nil {
			return fail(err)
		}
	}

	oldDblData := oldBudget.dbl*g.Ni + oldBudget.remain
	newDblData := newBudget.dbl*g.Ni + newBudget.remain
	if newDblData > oldDblData {
		if err := allocateDoubleIndirectRange(g, a, disk, disk.Self, oldDblData, newDblData); err != nil {
			return fail(err)
		}
	}

	return nil
}

// currentSectorCount returns how many data sectors disk's index tree
// currently addresses, derived from its byte length. The tree is always
// contiguously allocated up through this count; there are no holes.
func currentSectorCount(g Geometry, disk *OnDiskInode) int {
	if disk.Length == 0 {
		return 0
	}
	return (int(disk.Length) + g.SectorSize - 1) / g.SectorSize
}

// allocateDirectRange fills disk.Direct[from:to] with freshly allocated,
// zero-filled data sectors.
func allocateDirectRange(a *allocator, disk *OnDiskInode, from, to int) error {
	for i := from; i < to; i++ {
		id, err := a.allocOne()
		if err != nil {
			return err
		}
		disk.Direct[i] = id
	}
	return nil
}

// allocateIndirectRange fills entries [from, to) of the single indirect
// block with freshly allocated data sectors, allocating the indirect block
// itself first if this is its first use.
func allocateIndirectRange(g Geometry, a *allocator, disk *OnDiskInode, parent device.SectorID, from, to int) error {
	var ib *IndirectBlock
	if disk.IndirectPtr == 0 {
		ib = newIndirectBlock(g)
		ib.Parent = parent
		id, err := a.allocIndexBlock(ib.Marshal(g))
		if err != nil {
			return err
		}
		ib.Self = id
		disk.IndirectPtr = id
	} else {
		buf := make([]byte, g.SectorSize)
		if err := a.cache.Read(disk.IndirectPtr, buf); err != nil {
			return blockfserr.Wrap("inode.allocateIndirectRange", blockfserr.IoError, err)
		}
		var err error
		ib, err = UnmarshalIndirectBlock(g, buf)
		if err != nil {
			return err
		}
	}

	for i := from; i < to; i++ {
		id, err := a.allocOne()
		if err != nil {
			return err
		}
		ib.Blocks[i] = id
		ib.Used = uint32(i + 1)
	}

	if err := a.cache.Write(disk.IndirectPtr, ib.Marshal(g)); err != nil {
		return blockfserr.Wrap("inode.allocateIndirectRange", blockfserr.IoError, err)
	}
	disk.IndirectUsed = ib.Used
	return nil
}

// allocateDoubleIndirectRange fills data-sector indices [from, to), counted
// from the start of the double-indirect region (0-based), allocating the
// double-indirect block and any second-level indirect blocks it crosses
// into along the way.
func allocateDoubleIndirectRange(g Geometry, a *allocator, disk *OnDiskInode, parent device.SectorID, from, to int) error {
	var db *DblIndirectBlock
	if disk.DblIndirectPtr == 0 {
		db = newDblIndirectBlock(g)
		db.Parent = parent
		id, err := a.allocIndexBlock(db.Marshal(g))
		if err != nil {
			return err
		}
		db.Self = id
		disk.DblIndirectPtr = id
	} else {
		buf := make([]byte, g.SectorSize)
		if err := a.cache.Read(disk.DblIndirectPtr, buf); err != nil {
			return blockfserr.Wrap("inode.allocateDoubleIndirectRange", blockfserr.IoError, err)
		}
		var err error
		db, err = UnmarshalDblIndirectBlock(g, buf)
		if err != nil {
			return err
		}
	}

	var ib *IndirectBlock
	curOuter := -1
	flushChild := func() error {
		if ib == nil {
			return nil
		}
		return blockfserr.Wrap("inode.allocateDoubleIndirectRange", blockfserr.IoError,
			a.cache.Write(db.Indirect[curOuter], ib.Marshal(g)))
	}

	for idx := from; idx < to; idx++ {
		outer := idx / g.Ni
		inner := idx % g.Ni

		if outer != curOuter {
			if err := flushChild(); err != nil {
				return err
			}
			if db.Indirect[outer] == 0 {
				child := newIndirectBlock(g)
				id, err := a.allocIndexBlock(child.Marshal(g))
				if err != nil {
					return err
				}
				child.Self = id
				child.Parent = db.Self
				db.Indirect[outer] = id
				db.Used = uint32(outer + 1)
				ib = child
			} else {
				buf := make([]byte, g.SectorSize)
				if err := a.cache.Read(db.Indirect[outer], buf); err != nil {
					return blockfserr.Wrap("inode.allocateDoubleIndirectRange", blockfserr.IoError, err)
				}
				var err error
				ib, err = UnmarshalIndirectBlock(g, buf)
				if err != nil {
					return err
				}
			}
			curOuter = outer
		}

		id, err := a.allocOne()
		if err != nil {
			return err
		}
		ib.Blocks[inner] = id
		ib.Used = uint32(inner + 1)
	}

	if err := flushChild(); err != nil {
		return err
	}
	if err := a.cache.Write(disk.DblIndirectPtr, db.Marshal(g)); err != nil {
		return blockfserr.Wrap("inode.allocateDoubleIndirectRange", blockfserr.IoError, err)
	}
	disk.DblUsed = db.Used
	return nil
}
