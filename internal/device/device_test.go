package device

import (
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemDeviceReadUnwrittenSectorIsZero(t *testing.T) {
	d := NewMemDevice(512, 4)
	buf := make([]byte, 512)

	require.NoError(t, d.ReadSector(0, buf))

	for _, b := range buf {
		assert.Zero(t, b)
	}
}

func TestMemDeviceRoundTrip(t *testing.T) {
	d := NewMemDevice(512, 4)
	src := make([]byte, 512)
	src[0] = 0xAB
	src[511] = 0xCD

	require.NoError(t, d.WriteSector(2, src))

	dst := make([]byte, 512)
	require.NoError(t, d.ReadSector(2, dst))
	assert.Equal(t, src, dst)
}

func TestMemDeviceOutOfBounds(t *testing.T) {
	d := NewMemDevice(512, 4)
	buf := make([]byte, 512)

	assert.Error(t, d.ReadSector(4, buf))
	assert.Error(t, d.WriteSector(10, buf))
}

func TestMemDeviceWrongSizedBuffer(t *testing.T) {
	d := NewMemDevice(512, 4)
	assert.Error(t, d.ReadSector(0, make([]byte, 10)))
}

func TestMemDeviceInjectedReadError(t *testing.T) {
	d := NewMemDevice(512, 4)
	want := errors.New("disk on fire")
	d.ReadErr = want

	err := d.ReadSector(0, make([]byte, 512))

	assert.ErrorIs(t, err, want)
}

func TestFileDeviceRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.bin")

	fd, err := CreateFileDevice(path, 512, 8)
	require.NoError(t, err)
	defer fd.Close()

	src := make([]byte, 512)
	for i := range src {
		src[i] = byte(i)
	}
	require.NoError(t, fd.WriteSector(3, src))

	dst := make([]byte, 512)
	require.NoError(t, fd.ReadSector(3, dst))
	assert.Equal(t, src, dst)

	// A freshly created image's unwritten sectors are zero-filled by Truncate.
	zero := make([]byte, 512)
	require.NoError(t, fd.ReadSector(0, zero))
	for _, b := range zero {
		assert.Zero(t, b)
	}
}

func TestOpenFileDeviceRecoversGeometry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "image.bin")

	fd, err := CreateFileDevice(path, 512, 8)
	require.NoError(t, err)
	require.NoError(t, fd.Close())

	reopened, err := OpenFileDevice(path, 512)
	require.NoError(t, err)
	defer reopened.Close()

	assert.Equal(t, uint32(8), reopened.NumSectors())
}

func TestRateLimitedDeviceThrottles(t *testing.T) {
	d := NewMemDevice(512, 4)
	limited := NewRateLimitedDevice(d, 1000, 1)

	start := time.Now()
	buf := make([]byte, 512)
	for i := 0; i < 3; i++ {
		require.NoError(t, limited.ReadSector(0, buf))
	}

	// With a burst of 1 at 1000/s, three ops take at least ~2ms; this just
	// guards against the limiter being bypassed entirely, not exact timing.
	assert.GreaterOrEqual(t, time.Since(start), time.Millisecond)
}
