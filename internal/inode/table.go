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
	"fmt"
	"sync"

	"github.com/jacobsa/syncutil"

	"github.com/osdev-course/blockfs/internal/blockfserr"
	"github.com/osdev-course/blockfs/internal/device"
	"github.com/osdev-course/blockfs/internal/metrics"
)

// OpenInode is a handle into the open-inode table, keyed by the sector
// holding the inode's fixed record. It carries a lookup-style open count and
// a deny-write count; it does not reference the Table that owns it, so there
// is no cycle between a handle and the table (only the table's map points at
// records, never the reverse).
type OpenInode struct {
	sector device.SectorID

	// mu guards every field below plus the contents of disk: one lock per
	// open inode, a separate lock guards only the table's sector->record
	// map. A plain mutex, not syncutil.InvariantMutex: there is no
	// cross-field invariant on a single handle worth checking on every
	// lock/unlock, unlike Table.mu below.
	mu sync.Mutex

	openCount      uint64 // number of live handles from Open/Reopen
	denyWriteCount uint64 // number of handles currently holding deny-write
	removed        bool   // Remove was called; final Close frees the tree

	disk *OnDiskInode // in-memory copy of the on-disk record
}

// Sector returns the sector id that addresses this inode's fixed record.
func (oi *OpenInode) Sector() device.SectorID { return oi.sector }

// Length returns the inode's current logical length in bytes.
func (oi *OpenInode) Length() int64 {
	oi.mu.Lock()
	defer oi.mu.Unlock()
	return int64(oi.disk.Length)
}

// DenyWriteActive reports whether any handle currently holds deny-write.
func (oi *OpenInode) DenyWriteActive() bool {
	oi.mu.Lock()
	defer oi.mu.Unlock()
	return oi.denyWriteCount > 0
}

// Table is the in-memory open-inode table: the single synchronization point
// mapping a sector id to at most one OpenInode record, reference-counted
// across concurrent opens of the same inode.
type Table struct {
	g       Geometry
	cache   sectorCache
	fm      freeMap
	metrics *metrics.Handle

	mu      syncutil.InvariantMutex
	records map[device.SectorID]*OpenInode // GUARDED_BY(mu)
}

// NewTable builds an open-inode table over the given geometry, sector cache
// and free map.
func NewTable(g Geometry, cache sectorCache, fm freeMap) *Table {
	t := &Table{
		g:       g,
		cache:   cache,
		fm:      fm,
		records: make(map[device.SectorID]*OpenInode),
	}
	t.mu = syncutil.NewInvariantMutex(t.checkInvariants)
	return t
}

func (t *Table) checkInvariants() {
	for sector, oi := range t.records {
		if oi.sector != sector {
			panic("inode.Table: record keyed under the wrong sector")
		}
	}
}

// Open returns the OpenInode for sector, loading its on-disk record the
// first time it's opened and incrementing the open count on every call.
// Concurrent opens of the same
// sector share one record.
func (t *Table) Open(sector device.SectorID) (*OpenInode, error) {
	t.mu.Lock()
	if oi, ok := t.records[sector]; ok {
		t.mu.Unlock()
		oi.mu.Lock()
		oi.openCount++
		oi.mu.Unlock()
		return oi, nil
	}
	// Not yet open: keep the table lock held across the disk read so two
	// concurrent first-opens of the same sector can't both win and create
	// two live records for one inode.
	defer t.mu.Unlock()

	buf := make([]byte, t.cache.SectorSize())
	if err := t.cache.Read(sector, buf); err != nil {
		return nil, blockfserr.Wrap("inode.Table.Open", blockfserr.IoError, err)
	}
	disk, err := UnmarshalOnDiskInode(t.g, buf)
	if err != nil {
		return nil, err
	}

	oi := &OpenInode{sector: sector, openCount: 1, disk: disk}
	t.records[sector] = oi
	return oi, nil
}

// adopt registers an OpenInode built by Create directly (bypassing the
// on-disk read, since the caller just wrote the record). Must be called
// with t.mu held.
func (t *Table) adopt(oi *OpenInode) {
	t.records[oi.sector] = oi
}

// Reopen increments the open count of an already-held handle, for callers
// duplicating a handle without going back through Open.
func (t *Table) Reopen(oi *OpenInode) {
	oi.mu.Lock()
	defer oi.mu.Unlock()
	oi.openCount++
}

// Close decrements oi's open count. If it reaches zero and Remove had been
// called on this inode, the full index tree is walked and every sector it
// owns — direct, indirect, double-indirect, and the inode's own sector — is
// released back to the free map, then the record is dropped from the table.
// Walking the complete tree here, rather than just the direct block range,
// is what keeps a removed file from leaking its indirect and
// double-indirect sectors.
func (t *Table) Close(oi *OpenInode) error {
	oi.mu.Lock()
	if oi.openCount == 0 {
		oi.mu.Unlock()
		panic("inode.Table.Close: close of an inode with zero open count")
	}
	oi.openCount--
	freeNow := oi.openCount == 0 && oi.removed
	oi.mu.Unlock()

	if !freeNow {
		return nil
	}

	t.mu.Lock()
	delete(t.records, oi.sector)
	t.mu.Unlock()

	// oi.openCount is 0 and it has been unlinked from the table, so no other
	// goroutine can reach oi.disk from here on; safe to read without oi.mu.
	return t.freeTree(oi.disk)
}

// walkTree calls visit once for every sector disk's index tree addresses:
// direct pointers, the indirect block and its data pointers, the
// double-indirect block, each second-level indirect block it points at and
// their data pointers, and finally the inode's own sector. Shared by
// freeTree (visit = release) and OccupiedSectors (visit = collect).
func (t *Table) walkTree(disk *OnDiskInode, visit func(device.SectorID)) error {
	for _, id := range disk.Direct {
		if id != 0 {
			visit(id)
		}
	}

	if disk.IndirectPtr != 0 {
		ib, err := t.readIndirect(disk.IndirectPtr)
		if err != nil {
			return err
		}
		for i := uint32(0); i < ib.Used; i++ {
			if ib.Blocks[i] != 0 {
				visit(ib.Blocks[i])
			}
		}
		visit(disk.IndirectPtr)
	}

	if disk.DblIndirectPtr != 0 {
		db, err := t.readDblIndirect(disk.DblIndirectPtr)
		if err != nil {
			return err
		}
		for i := uint32(0); i < db.Used; i++ {
			child := db.Indirect[i]
			if child == 0 {
				continue
			}
			ib, err := t.readIndirect(child)
			if err != nil {
				return err
			}
			for j := uint32(0); j < ib.Used; j++ {
				if ib.Blocks[j] != 0 {
					visit(ib.Blocks[j])
				}
			}
			visit(child)
		}
		visit(disk.DblIndirectPtr)
	}

	visit(disk.Self)
	return nil
}

// freeTree releases every sector disk's index tree addresses back to the
// free map.
func (t *Table) freeTree(disk *OnDiskInode) error {
	return t.walkTree(disk, func(id device.SectorID) { t.fm.Release(id, 1) })
}

// OccupiedSectors returns every sector oi's index tree currently addresses
// (data, indirect, double-indirect and the inode's own sector). A CLI
// process that holds no persistent free-map state across invocations uses
// this to rebuild one on open: mark everything OccupiedSectors returns as
// used, leave the rest free.
func (t *Table) OccupiedSectors(oi *OpenInode) ([]device.SectorID, error) {
	oi.mu.Lock()
	defer oi.mu.Unlock()

	var sectors []device.SectorID
	err := t.walkTree(oi.disk, func(id device.SectorID) { sectors = append(sectors, id) })
	return sectors, err
}

func (t *Table) readIndirect(sector device.SectorID) (*IndirectBlock, error) {
	buf := make([]byte, t.cache.SectorSize())
	if err := t.cache.Read(sector, buf); err != nil {
		return nil, blockfserr.Wrap("inode.Table.readIndirect", blockfserr.IoError, err)
	}
	return UnmarshalIndirectBlock(t.g, buf)
}

func (t *Table) readDblIndirect(sector device.SectorID) (*DblIndirectBlock, error) {
	buf := make([]byte, t.cache.SectorSize())
	if err := t.cache.Read(sector, buf); err != nil {
		return nil, blockfserr.Wrap("inode.Table.readDblIndirect", blockfserr.IoError, err)
	}
	return UnmarshalDblIndirectBlock(t.g, buf)
}

// Remove marks oi for destruction once its open count drops to zero. If no
// handle is currently open, the tree is freed immediately.
func (t *Table) Remove(oi *OpenInode) error {
	oi.mu.Lock()
	if oi.removed {
		oi.mu.Unlock()
		return nil
	}
	oi.removed = true
	freeNow := oi.openCount == 0
	oi.mu.Unlock()

	if !freeNow {
		return nil
	}

	t.mu.Lock()
	delete(t.records, oi.sector)
	t.mu.Unlock()

	return t.freeTree(oi.disk)
}

// DenyWrite increments oi's deny-write count, causing WriteAt to report zero
// bytes written (not an error) for as long as any handle holds it.
func (t *Table) DenyWrite(oi *OpenInode) {
	oi.mu.Lock()
	defer oi.mu.Unlock()
	oi.denyWriteCount++
}

// AllowWrite decrements oi's deny-write count.
func (t *Table) AllowWrite(oi *OpenInode) {
	oi.mu.Lock()
	defer oi.mu.Unlock()
	if oi.denyWriteCount == 0 {
		panic(fmt.Sprintf("inode.Table.AllowWrite: sector %d has no deny-write to release", oi.sector))
	}
	oi.denyWriteCount--
}
