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
	"github.com/stretchr/testify/suite"

	"github.com/osdev-course/blockfs/clock"
	"github.com/osdev-course/blockfs/internal/bcache"
	"github.com/osdev-course/blockfs/internal/blockfserr"
	"github.com/osdev-course/blockfs/internal/device"
	"github.com/osdev-course/blockfs/internal/freemap"
)

// A small geometry so direct/indirect/double-indirect crossovers happen
// within a handful of sectors instead of needing megabytes of test data.
var testGeometry = Geometry{SectorSize: 64, Nd: 2, Ni: 3, Nd2: 2}

type InodeTest struct {
	suite.Suite
	dev   *device.MemDevice
	cache *bcache.Cache
	fm    *freemap.Map
	table *Table
}

func TestInodeSuite(t *testing.T) {
	suite.Run(t, new(InodeTest))
}

func (t *InodeTest) SetupTest() {
	t.dev = device.NewMemDevice(testGeometry.SectorSize, 128)
	t.cache = bcache.New(t.dev, 32, &clock.SimulatedClock{}, 0, nil)
	t.fm = freemap.New(128, 0)
	t.table = NewTable(testGeometry, t.cache, t.fm)
}

func pattern(n int, seed byte) []byte {
	buf := make([]byte, n)
	for i := range buf {
		buf[i] = seed + byte(i)
	}
	return buf
}

// Small-file round trip, entirely within the direct range.
func (t *InodeTest) TestSmallFileRoundTrip() {
	oi, err := t.table.Create(0)
	require.NoError(t.T(), err)

	data := pattern(20, 0x10)
	n, err := t.table.WriteAt(oi, 0, data)
	require.NoError(t.T(), err)
	t.Equal(len(data), n)
	t.EqualValues(20, oi.Length())

	out := make([]byte, 20)
	n, err = t.table.ReadAt(oi, 0, out)
	require.NoError(t.T(), err)
	t.Equal(len(data), n)
	t.Equal(data, out)
}

// Growth crosses from the direct range into the single indirect block.
func (t *InodeTest) TestDirectToIndirectCrossover() {
	oi, err := t.table.Create(0)
	require.NoError(t.T(), err)

	// Nd=2 direct sectors hold 128 bytes; write enough to reach into the
	// indirect range (sector index 3, inside Ni).
	data := pattern(int(testGeometry.SectorSize)*4, 0x20)
	n, err := t.table.WriteAt(oi, 0, data)
	require.NoError(t.T(), err)
	t.Equal(len(data), n)
	t.NotZero(oi.disk.IndirectPtr)

	out := make([]byte, len(data))
	_, err = t.table.ReadAt(oi, 0, out)
	require.NoError(t.T(), err)
	t.Equal(data, out)
}

// Growth crosses from the indirect block into the double-indirect tree.
func (t *InodeTest) TestIndirectToDoubleIndirectCrossover() {
	oi, err := t.table.Create(0)
	require.NoError(t.T(), err)

	// Nd+Ni = 5 sectors before the double-indirect region starts; write
	// across that boundary.
	total := testGeometry.Nd + testGeometry.Ni + 2
	data := pattern(total*testGeometry.SectorSize, 0x30)
	n, err := t.table.WriteAt(oi, 0, data)
	require.NoError(t.T(), err)
	t.Equal(len(data), n)
	t.NotZero(oi.disk.DblIndirectPtr)

	out := make([]byte, len(data))
	_, err = t.table.ReadAt(oi, 0, out)
	require.NoError(t.T(), err)
	t.Equal(data, out)
}

// A file at exactly the max file size succeeds; one byte more fails TooLarge.
func (t *InodeTest) TestMaxFileSize() {
	maxLen := testGeometry.MaxFileSize()

	oi, err := t.table.Create(maxLen)
	require.NoError(t.T(), err)
	t.EqualValues(maxLen, oi.Length())

	freeBefore := t.fm.FreeCount()
	_, err = t.table.Create(maxLen + 1)
	t.Error(err)
	t.True(blockfserr.Is(err, blockfserr.TooLarge))
	// A rejected create must not have leaked any sectors.
	t.Equal(freeBefore, t.fm.FreeCount())
}

// Deny-write causes WriteAt to report zero bytes written, not an error, and
// a second handle observes it.
func (t *InodeTest) TestDenyWrite() {
	oi, err := t.table.Create(0)
	require.NoError(t.T(), err)

	handle2, err := t.table.Open(oi.Sector())
	require.NoError(t.T(), err)

	t.table.DenyWrite(oi)

	n, err := t.table.WriteAt(handle2, 0, []byte("hello"))
	require.NoError(t.T(), err)
	t.Equal(0, n)

	t.table.AllowWrite(oi)

	n, err = t.table.WriteAt(handle2, 0, []byte("hello"))
	require.NoError(t.T(), err)
	t.Equal(5, n)

	require.NoError(t.T(), t.table.Close(handle2))
	require.NoError(t.T(), t.table.Close(oi))
}

// Remove-then-close frees the inode's own sector plus every sector its
// index tree addressed, not just the direct block range.
func (t *InodeTest) TestRemoveThenCloseFreesFullTree() {
	oi, err := t.table.Create(0)
	require.NoError(t.T(), err)

	total := testGeometry.Nd + testGeometry.Ni + 2
	_, err = t.table.WriteAt(oi, 0, pattern(total*testGeometry.SectorSize, 0x40))
	require.NoError(t.T(), err)

	freeBefore := t.fm.FreeCount()

	require.NoError(t.T(), t.table.Remove(oi))
	require.NoError(t.T(), t.table.Close(oi))

	// Every data sector (total), the indirect block, the double-indirect
	// block, and every second-level indirect block it points at, plus the
	// inode's own sector, must all be back in the free pool.
	freed := t.fm.FreeCount() - freeBefore
	t.Greater(freed, total) // strictly more than just the data sectors
}

func (t *InodeTest) TestCreateAtomicRollbackOnOutOfSpace() {
	tiny := device.NewMemDevice(testGeometry.SectorSize, 4)
	tinyCache := bcache.New(tiny, 8, &clock.SimulatedClock{}, 0, nil)
	tinyFM := freemap.New(4, 0)
	tinyTable := NewTable(testGeometry, tinyCache, tinyFM)

	freeBefore := tinyFM.FreeCount()

	// A file needing more sectors than the 4-sector device has must fail,
	// and must not leave any of its partial allocation behind.
	_, err := tinyTable.Create(int64(testGeometry.MaxFileSize()))
	t.Error(err)
	t.Equal(freeBefore, tinyFM.FreeCount())
}

func (t *InodeTest) TestOccupiedSectorsMatchesFreeTree() {
	oi, err := t.table.Create(0)
	require.NoError(t.T(), err)

	total := testGeometry.Nd + testGeometry.Ni + 2
	_, err = t.table.WriteAt(oi, 0, pattern(total*testGeometry.SectorSize, 0x50))
	require.NoError(t.T(), err)

	occupied, err := t.table.OccupiedSectors(oi)
	require.NoError(t.T(), err)

	// Every sector OccupiedSectors names must be currently unavailable for
	// fresh allocation -- a fresh freemap rebuilt from this list must agree
	// with the live one on every id this file holds.
	for _, id := range occupied {
		t.False(t.fm.IsFree(id), "sector %d reported occupied but freemap says free", id)
	}
	t.Greater(len(occupied), total) // data sectors plus index blocks plus self
}
