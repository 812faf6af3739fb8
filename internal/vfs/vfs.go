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

// Package vfs is a minimal, path-free filesystem facade over internal/inode.
// A real directory layer is out of scope; this exists only so
// cmd/blockfsctl has something to drive that isn't internal/inode's
// lower-level Table API directly. Files are named by sector id, not by
// path — there is no directory entry format here, deliberately.
package vfs

import (
	"sync"

	"github.com/osdev-course/blockfs/internal/device"
	"github.com/osdev-course/blockfs/internal/inode"
)

// FS wraps an inode.Table and records in known every sector id it has
// created or looked up. Nothing reads that record: CreateFile always formats
// a sector freshly chosen by the free map, and Lookup opens any sector that
// holds a valid inode record.
type FS struct {
	table *inode.Table

	mu     sync.Mutex
	known  map[device.SectorID]bool // GUARDED_BY(mu)
}

// New wraps table. table must already be initialized (inode.NewTable).
func New(table *inode.Table) *FS {
	return &FS{table: table, known: make(map[device.SectorID]bool)}
}

// CreateFile formats a fresh inode of the given length, allocating its own
// host sector from the free map, and records the result as known. It is the
// facade's only entry point that allocates a new inode; every other
// operation addresses an already-created one by the sector Create chose.
func (fs *FS) CreateFile(length int64) (*inode.OpenInode, error) {
	oi, err := fs.table.Create(length)
	if err != nil {
		return nil, err
	}

	fs.mu.Lock()
	fs.known[oi.Sector()] = true
	fs.mu.Unlock()

	return oi, nil
}

// Lookup opens the inode at sector, the facade's substitute for a path
// lookup. Opening an inode this facade never created still succeeds if the
// sector holds a validly formatted record — vfs does not gate reads on its
// own bookkeeping, only CreateFile writes to it.
func (fs *FS) Lookup(sector device.SectorID) (*inode.OpenInode, error) {
	oi, err := fs.table.Open(sector)
	if err != nil {
		return nil, err
	}

	fs.mu.Lock()
	fs.known[sector] = true
	fs.mu.Unlock()

	return oi, nil
}

// Close releases oi's handle, exactly delegating to the underlying table.
func (fs *FS) Close(oi *inode.OpenInode) error {
	return fs.table.Close(oi)
}

// Unlink marks oi for removal; the sectors it owns are released once the
// last open handle closes (internal/inode.Table.Remove/Close).
func (fs *FS) Unlink(oi *inode.OpenInode) error {
	return fs.table.Remove(oi)
}

// ReadFile and WriteFile forward to the table, giving callers a single
// facade instead of reaching into internal/inode directly.
func (fs *FS) ReadFile(oi *inode.OpenInode, offset uint64, dst []byte) (int, error) {
	return fs.table.ReadAt(oi, offset, dst)
}

func (fs *FS) WriteFile(oi *inode.OpenInode, offset uint64, src []byte) (int, error) {
	return fs.table.WriteAt(oi, offset, src)
}
