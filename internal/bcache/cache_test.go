package bcache

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/osdev-course/blockfs/clock"
	"github.com/osdev-course/blockfs/internal/device"
)

const sectorSize = 512

var errSentinel = errors.New("injected device failure")

type CacheTest struct {
	suite.Suite
	dev *device.MemDevice
}

func TestCacheSuite(t *testing.T) {
	suite.Run(t, new(CacheTest))
}

func (t *CacheTest) SetupTest() {
	t.dev = device.NewMemDevice(sectorSize, 16)
}

func (t *CacheTest) newCache(capacity int) *Cache {
	return New(t.dev, capacity, &clock.SimulatedClock{}, 0, nil)
}

func fill(b byte) []byte {
	buf := make([]byte, sectorSize)
	for i := range buf {
		buf[i] = b
	}
	return buf
}

// LRU eviction.
func (t *CacheTest) TestLRUEviction() {
	c := t.newCache(2)
	a, b, cc := device.SectorID(0), device.SectorID(1), device.SectorID(2)

	buf := make([]byte, sectorSize)
	require.NoError(t.T(), c.Read(a, buf)) // miss
	require.NoError(t.T(), c.Read(b, buf)) // miss
	require.NoError(t.T(), c.Read(a, buf)) // hit, A is MRU

	// C forces eviction of B (the LRU).
	require.NoError(t.T(), c.Read(cc, buf))
	t.Equal(2, c.Len())

	// B should now be a miss (not resident); A should still be a hit. With
	// every device read failing, only a resident sector can be served.
	t.dev.ReadErr = errSentinel
	require.NoError(t.T(), c.Read(a, buf)) // hit
	t.Error(c.Read(b, buf))                // miss
	t.dev.ReadErr = nil

	require.NoError(t.T(), c.Read(b, buf))
	t.Equal(2, c.Len())
}

// Write-back under eviction.
func (t *CacheTest) TestWriteBackUnderEviction() {
	c := t.newCache(1)
	a, b := device.SectorID(0), device.SectorID(1)

	written := fill(0x42)
	require.NoError(t.T(), c.Write(a, written))

	// Device must still be untouched (write-back, not write-through).
	t.Equal(make([]byte, sectorSize), t.dev.Peek(a))

	// Forces eviction of A.
	buf := make([]byte, sectorSize)
	require.NoError(t.T(), c.Read(b, buf))

	// Bypass the cache: A's bytes must now be on the device.
	t.Equal(written, t.dev.Peek(a))
}

func (t *CacheTest) TestRoundTripWriteThenRead() {
	c := t.newCache(4)
	id := device.SectorID(3)
	written := fill(0x7)

	require.NoError(t.T(), c.Write(id, written))

	out := make([]byte, sectorSize)
	require.NoError(t.T(), c.Read(id, out))
	t.Equal(written, out)
}

func (t *CacheTest) TestFlushWritesBackAndDropsResidency() {
	c := t.newCache(4)
	id := device.SectorID(0)
	require.NoError(t.T(), c.Write(id, fill(0x9)))

	require.NoError(t.T(), c.Flush())

	t.Equal(0, c.Len())
	t.Equal(fill(0x9), t.dev.Peek(id))
}

func (t *CacheTest) TestCleanAllKeepsResidency() {
	c := t.newCache(4)
	id := device.SectorID(0)
	require.NoError(t.T(), c.Write(id, fill(0x9)))

	require.NoError(t.T(), c.CleanAll())

	t.Equal(1, c.Len())
	t.Equal(fill(0x9), t.dev.Peek(id))
}

func (t *CacheTest) TestIdempotentFlush() {
	c := t.newCache(4)
	id := device.SectorID(0)
	require.NoError(t.T(), c.Write(id, fill(0x1)))

	require.NoError(t.T(), c.Flush())
	require.NoError(t.T(), c.Flush())

	t.Equal(0, c.Len())
}

func (t *CacheTest) TestPartialWritePreservesUntouchedBytes() {
	c := t.newCache(4)
	id := device.SectorID(0)
	require.NoError(t.T(), c.Write(id, fill(0xAA)))

	require.NoError(t.T(), c.WritePartial(id, []byte{0x01, 0x02}, 4, 2))

	out := make([]byte, sectorSize)
	require.NoError(t.T(), c.Read(id, out))
	t.Equal(byte(0xAA), out[0])
	t.Equal(byte(0x01), out[4])
	t.Equal(byte(0x02), out[5])
	t.Equal(byte(0xAA), out[6])
}

func (t *CacheTest) TestFullSectorWritePartialSkipsReadPhase() {
	c := t.newCache(4)
	id := device.SectorID(5)
	// No prior write/read of this sector; a full-sector partial write must
	// not need to read it first (it would see garbage/zero and that's fine
	// since every byte is being overwritten).
	full := fill(0x55)

	require.NoError(t.T(), c.WritePartial(id, full, 0, sectorSize))

	out := make([]byte, sectorSize)
	require.NoError(t.T(), c.ReadPartial(id, out, 0, sectorSize))
	t.Equal(full, out)
}

func (t *CacheTest) TestCapacityNeverExceeded() {
	c := t.newCache(3)
	buf := make([]byte, sectorSize)
	for i := device.SectorID(0); i < 10; i++ {
		require.NoError(t.T(), c.Read(i, buf))
		t.LessOrEqual(c.Len(), 3)
	}
}

func (t *CacheTest) TestPeriodicFlushDropsResidency() {
	sc := &clock.SimulatedClock{}
	c := New(t.dev, 4, sc, time.Second, nil)
	defer c.Shutdown()

	require.NoError(t.T(), c.Write(device.SectorID(0), fill(0x3)))
	t.Equal(1, c.Len())

	sc.AdvanceTime(2 * time.Second)
	t.Equal(1, sc.FlushTicks())

	// Give the background goroutine a moment to observe the fired timer.
	deadline := time.Now().Add(2 * time.Second)
	for c.Len() != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	t.Equal(0, c.Len())
	t.Equal(fill(0x3), t.dev.Peek(device.SectorID(0)))

	// Let the goroutine loop back around and register its next After call
	// before advancing again.
	time.Sleep(10 * time.Millisecond)

	// A second advance past another full interval should wake the ticker
	// again rather than leaving it parked on the first fire.
	sc.AdvanceTime(2 * time.Second)
	t.Equal(2, sc.FlushTicks())
}

func (t *CacheTest) TestDeviceReadErrorDoesNotInsertSlot() {
	c := t.newCache(4)
	t.dev.ReadErr = errSentinel

	buf := make([]byte, sectorSize)
	err := c.Read(device.SectorID(0), buf)

	t.Error(err)
	t.Equal(0, c.Len())
}
