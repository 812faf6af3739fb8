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
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/osdev-course/blockfs/internal/device"
)

func TestOnDiskInodeMarshalRoundTrip(t *testing.T) {
	g := testGeometry

	oi := newOnDiskInode(g)
	oi.Self = 7
	oi.Length = 123
	oi.IndirectPtr = 9
	oi.DblIndirectPtr = 10
	oi.IndirectUsed = 2
	oi.DblUsed = 1
	for i := range oi.Direct {
		oi.Direct[i] = device.SectorID(100 + i)
	}

	buf := oi.Marshal(g)
	require.Len(t, buf, g.SectorSize)

	got, err := UnmarshalOnDiskInode(g, buf)
	require.NoError(t, err)
	require.Equal(t, oi, got)
}

func TestUnmarshalOnDiskInodeRejectsBadMagic(t *testing.T) {
	g := testGeometry
	buf := make([]byte, g.SectorSize)
	_, err := UnmarshalOnDiskInode(g, buf)
	require.Error(t, err)
}

func TestUnmarshalOnDiskInodeRejectsWrongSize(t *testing.T) {
	g := testGeometry
	_, err := UnmarshalOnDiskInode(g, make([]byte, g.SectorSize-1))
	require.Error(t, err)
}

func TestIndirectBlockMarshalRoundTrip(t *testing.T) {
	g := testGeometry

	ib := newIndirectBlock(g)
	ib.Self = 3
	ib.Parent = 1
	ib.Used = 2
	ib.Blocks[0] = 50
	ib.Blocks[1] = 51

	got, err := UnmarshalIndirectBlock(g, ib.Marshal(g))
	require.NoError(t, err)
	require.Equal(t, ib, got)
}

func TestDblIndirectBlockMarshalRoundTrip(t *testing.T) {
	g := testGeometry

	db := newDblIndirectBlock(g)
	db.Self = 4
	db.Parent = 1
	db.Used = 1
	db.Indirect[0] = 60

	got, err := UnmarshalDblIndirectBlock(g, db.Marshal(g))
	require.NoError(t, err)
	require.Equal(t, db, got)
}
