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

// Package inode is the multi-level indexed inode layer: a fixed-size
// on-disk inode format addressed through direct, indirect and
// double-indirect sector trees, an in-memory open-inode table with
// reference counting, and byte-offset read/write with implicit growth.
package inode

import (
	"encoding/binary"

	"github.com/osdev-course/blockfs/internal/blockfserr"
	"github.com/osdev-course/blockfs/internal/device"
)

// Magic identifies a valid on-disk inode record.
const Magic uint32 = 0x494E4F44 // "INOD"

// Geometry parametrizes the index tree. The reference values are S=512,
// Nd=10, Ni=125, Nd2=125, giving a max file size of ~8MiB.
type Geometry struct {
	SectorSize int
	Nd         int // direct pointers held inline in the inode
	Ni         int // pointers held in one indirect block
	Nd2        int // indirect-block pointers held in the double-indirect block
}

// DefaultGeometry is the reference parameter set.
var DefaultGeometry = Geometry{SectorSize: 512, Nd: 10, Ni: 125, Nd2: 125}

// MaxSectors returns the largest number of data sectors a file can address
// under this geometry: Nd + Ni + Nd2*Ni.
func (g Geometry) MaxSectors() int {
	return g.Nd + g.Ni + g.Nd2*g.Ni
}

// MaxFileSize returns MaxSectors() * SectorSize, in bytes.
func (g Geometry) MaxFileSize() int64 {
	return int64(g.MaxSectors()) * int64(g.SectorSize)
}

// OnDiskInode is the fixed S-byte inode record.
type OnDiskInode struct {
	Direct          []device.SectorID // length Nd
	Length          uint32
	Self            device.SectorID
	IndirectPtr     device.SectorID
	DblIndirectPtr  device.SectorID
	IndirectUsed    uint32
	DblUsed         uint32
}

// newOnDiskInode returns a zeroed inode sized for g.
func newOnDiskInode(g Geometry) *OnDiskInode {
	return &OnDiskInode{Direct: make([]device.SectorID, g.Nd)}
}

// Marshal encodes oi into exactly g.SectorSize bytes in the layout:
// start(4, legacy/unused, always 0) | direct[Nd](4*Nd) | length(4) | self(4)
// | indirect_ptr(4) | dbl_indirect_ptr(4) | indirect_used(4) | dbl_used(4)
// | magic(4) | zero padding.
func (oi *OnDiskInode) Marshal(g Geometry) []byte {
	buf := make([]byte, g.SectorSize)
	off := 0

	binary.LittleEndian.PutUint32(buf[off:], 0) // legacy start, always 0
	off += 4

	for i := 0; i < g.Nd; i++ {
		binary.LittleEndian.PutUint32(buf[off:], uint32(oi.Direct[i]))
		off += 4
	}

	binary.LittleEndian.PutUint32(buf[off:], oi.Length)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(oi.Self))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(oi.IndirectPtr))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(oi.DblIndirectPtr))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], oi.IndirectUsed)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], oi.DblUsed)
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], Magic)

	return buf
}

// UnmarshalOnDiskInode decodes the layout Marshal produces. It returns an
// IoError-kinded error if buf is the wrong length or the magic doesn't
// match, since either means the sector doesn't hold a formatted inode.
func UnmarshalOnDiskInode(g Geometry, buf []byte) (*OnDiskInode, error) {
	if len(buf) != g.SectorSize {
		return nil, blockfserr.New("inode.Unmarshal", blockfserr.IoError)
	}

	oi := newOnDiskInode(g)
	off := 4 // skip legacy start field

	for i := 0; i < g.Nd; i++ {
		oi.Direct[i] = device.SectorID(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
	}

	oi.Length = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	oi.Self = device.SectorID(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	oi.IndirectPtr = device.SectorID(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	oi.DblIndirectPtr = device.SectorID(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	oi.IndirectUsed = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	oi.DblUsed = binary.LittleEndian.Uint32(buf[off:])
	off += 4

	magic := binary.LittleEndian.Uint32(buf[off:])
	if magic != Magic {
		return nil, blockfserr.New("inode.Unmarshal", blockfserr.IoError)
	}

	return oi, nil
}

// IndirectBlock is the S-byte record:
// self(4) | parent(4) | used(4) | blocks[Ni](4*Ni), zero-padded.
type IndirectBlock struct {
	Self   device.SectorID
	Parent device.SectorID
	Used   uint32
	Blocks []device.SectorID // length Ni
}

func newIndirectBlock(g Geometry) *IndirectBlock {
	return &IndirectBlock{Blocks: make([]device.SectorID, g.Ni)}
}

func (ib *IndirectBlock) Marshal(g Geometry) []byte {
	buf := make([]byte, g.SectorSize)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], uint32(ib.Self))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(ib.Parent))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], ib.Used)
	off += 4
	for i := 0; i < g.Ni; i++ {
		binary.LittleEndian.PutUint32(buf[off:], uint32(ib.Blocks[i]))
		off += 4
	}
	return buf
}

func UnmarshalIndirectBlock(g Geometry, buf []byte) (*IndirectBlock, error) {
	if len(buf) != g.SectorSize {
		return nil, blockfserr.New("inode.UnmarshalIndirectBlock", blockfserr.IoError)
	}
	ib := newIndirectBlock(g)
	off := 0
	ib.Self = device.SectorID(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	ib.Parent = device.SectorID(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	ib.Used = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	for i := 0; i < g.Ni; i++ {
		ib.Blocks[i] = device.SectorID(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
	}
	return ib, nil
}

// DblIndirectBlock is the S-byte record, identical shape to IndirectBlock
// with Indirect[Nd2] (indirect-block sector ids) in place of Blocks[Ni]
// (data-sector ids).
type DblIndirectBlock struct {
	Self     device.SectorID
	Parent   device.SectorID
	Used     uint32
	Indirect []device.SectorID // length Nd2
}

func newDblIndirectBlock(g Geometry) *DblIndirectBlock {
	return &DblIndirectBlock{Indirect: make([]device.SectorID, g.Nd2)}
}

func (db *DblIndirectBlock) Marshal(g Geometry) []byte {
	buf := make([]byte, g.SectorSize)
	off := 0
	binary.LittleEndian.PutUint32(buf[off:], uint32(db.Self))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], uint32(db.Parent))
	off += 4
	binary.LittleEndian.PutUint32(buf[off:], db.Used)
	off += 4
	for i := 0; i < g.Nd2; i++ {
		binary.LittleEndian.PutUint32(buf[off:], uint32(db.Indirect[i]))
		off += 4
	}
	return buf
}

func UnmarshalDblIndirectBlock(g Geometry, buf []byte) (*DblIndirectBlock, error) {
	if len(buf) != g.SectorSize {
		return nil, blockfserr.New("inode.UnmarshalDblIndirectBlock", blockfserr.IoError)
	}
	db := newDblIndirectBlock(g)
	off := 0
	db.Self = device.SectorID(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	db.Parent = device.SectorID(binary.LittleEndian.Uint32(buf[off:]))
	off += 4
	db.Used = binary.LittleEndian.Uint32(buf[off:])
	off += 4
	for i := 0; i < g.Nd2; i++ {
		db.Indirect[i] = device.SectorID(binary.LittleEndian.Uint32(buf[off:]))
		off += 4
	}
	return db, nil
}
