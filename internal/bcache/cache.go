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

// Package bcache is the bounded, write-back sector cache sitting between the
// inode layer and the block device. It owns the only path to the device:
// every other package reaches a sector through a Cache.
package bcache

import (
	"context"
	"time"

	"github.com/jacobsa/syncutil"
	"golang.org/x/sync/errgroup"

	"github.com/osdev-course/blockfs/clock"
	"github.com/osdev-course/blockfs/internal/blockfserr"
	"github.com/osdev-course/blockfs/internal/container"
	"github.com/osdev-course/blockfs/internal/device"
	"github.com/osdev-course/blockfs/internal/logger"
	"github.com/osdev-course/blockfs/internal/metrics"
)

// Cache is a bounded set of sector-sized slots, write-back, LRU, with
// periodic and on-demand flush. Zero value is not usable; build one with New.
type Cache struct {
	// Guards everything below. GUARDED_BY annotations on fields mean "must
	// hold mu".
	mu syncutil.InvariantMutex

	dev      device.Device
	capacity int
	metrics  *metrics.Handle

	slots   map[device.SectorID]*slot // GUARDED_BY(mu)
	order   *container.RecencyList[device.SectorID] // GUARDED_BY(mu)

	clock        clock.Clock
	flushPeriod  time.Duration
	cancelFlush  context.CancelFunc
	flushGroup   *errgroup.Group
}

// New builds a Cache of the given capacity backed by dev. If flushPeriod is
// positive, a background goroutine calls Flush every period using clk as
// its time source.
func New(dev device.Device, capacity int, clk clock.Clock, flushPeriod time.Duration, m *metrics.Handle) *Cache {
	c := &Cache{
		dev:         dev,
		capacity:    capacity,
		metrics:     m,
		slots:       make(map[device.SectorID]*slot),
		order:       container.NewRecencyList[device.SectorID](),
		clock:       clk,
		flushPeriod: flushPeriod,
	}
	c.mu = syncutil.NewInvariantMutex(c.checkInvariants)

	if flushPeriod > 0 {
		c.startPeriodicFlush()
	}

	return c
}

func (c *Cache) checkInvariants() {
	if len(c.slots) != c.order.Len() {
		panic("bcache: mapping and recency order have diverged")
	}
	if len(c.slots) > c.capacity {
		panic("bcache: resident slot count exceeds capacity")
	}
}

func (c *Cache) startPeriodicFlush() {
	ctx, cancel := context.WithCancel(context.Background())
	c.cancelFlush = cancel

	g, ctx := errgroup.WithContext(ctx)
	c.flushGroup = g

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-c.clock.After(c.flushPeriod):
				if err := c.Flush(); err != nil {
					logger.Errorf("bcache: periodic flush failed: %v", err)
				}
			}
		}
	})
}

// Shutdown stops the periodic flush goroutine (if any) and waits for the
// in-flight flush, if one was running, to finish. It does not itself flush.
func (c *Cache) Shutdown() {
	if c.cancelFlush != nil {
		c.cancelFlush()
		_ = c.flushGroup.Wait()
	}
}

// SectorSize returns S, the fixed sector width this cache operates on.
func (c *Cache) SectorSize() int { return c.dev.SectorSize() }

// Read fills dst (len == SectorSize()) with the current logical contents of
// sector id, satisfying it from the cache if resident.
func (c *Cache) Read(id device.SectorID, dst []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, err := c.fetch(id)
	if err != nil {
		return err
	}
	s.accessed = true
	c.order.MoveToFront(id)
	copy(dst, s.bytes)
	return nil
}

// Write overwrites sector id with src (len == SectorSize()). Future reads
// observe src; the device is not touched until eviction or Flush.
func (c *Cache) Write(id device.SectorID, src []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if err := checkLen("bcache.Write", src, c.dev.SectorSize()); err != nil {
		return err
	}

	if s, ok := c.slots[id]; ok {
		c.metrics.Hit()
		copy(s.bytes, src)
		s.dirty = true
		s.accessed = true
		c.order.MoveToFront(id)
		return nil
	}

	c.metrics.Miss()
	if len(c.slots) >= c.capacity {
		c.evictOne()
	}

	s := newSlot(id, c.dev.SectorSize())
	copy(s.bytes, src)
	s.dirty = true
	s.accessed = true
	c.insert(s)
	return nil
}

// ReadPartial copies [offset, offset+len) of sector id into dst via a
// stack-sized bounce read of the whole sector.
func (c *Cache) ReadPartial(id device.SectorID, dst []byte, offset, length int) error {
	if err := c.checkWindow("bcache.ReadPartial", offset, length); err != nil {
		return err
	}

	var bounce [MaxSectorSize]byte
	buf := bounce[:c.dev.SectorSize()]
	if err := c.Read(id, buf); err != nil {
		return err
	}
	copy(dst, buf[offset:offset+length])
	return nil
}

// WritePartial overlays src onto [offset, offset+len) of sector id,
// preserving the untouched bytes. A full-sector write skips the read phase.
func (c *Cache) WritePartial(id device.SectorID, src []byte, offset, length int) error {
	if err := c.checkWindow("bcache.WritePartial", offset, length); err != nil {
		return err
	}

	var bounce [MaxSectorSize]byte
	buf := bounce[:c.dev.SectorSize()]

	if offset == 0 && length == c.dev.SectorSize() {
		copy(buf, src)
	} else {
		if err := c.Read(id, buf); err != nil {
			return err
		}
		copy(buf[offset:offset+length], src)
	}

	return c.Write(id, buf)
}

func (c *Cache) checkWindow(op string, offset, length int) error {
	if offset < 0 || length < 0 || offset+length > c.dev.SectorSize() {
		return blockfserr.New(op, blockfserr.IoError)
	}
	if c.dev.SectorSize() > MaxSectorSize {
		return blockfserr.New(op, blockfserr.OutOfMemory)
	}
	return nil
}

// fetch returns the resident slot for id, loading it from the device on a
// miss. Must be called with mu held.
func (c *Cache) fetch(id device.SectorID) (*slot, error) {
	if s, ok := c.slots[id]; ok {
		c.metrics.Hit()
		return s, nil
	}

	c.metrics.Miss()
	if len(c.slots) >= c.capacity {
		c.evictOne()
	}

	s := newSlot(id, c.dev.SectorSize())
	if err := c.dev.ReadSector(id, s.bytes); err != nil {
		return nil, blockfserr.Wrap("bcache.fetch", blockfserr.IoError, err)
	}
	c.insert(s)
	return s, nil
}

// insert adds a freshly loaded/written slot as the MRU entry. Must be called
// with mu held.
func (c *Cache) insert(s *slot) {
	c.slots[s.sectorID] = s
	c.order.PushFront(s.sectorID)
	c.metrics.SetResidentSlots(len(c.slots))
}

// evictOne writes back the LRU slot if dirty and removes it. Must be called
// with mu held. A device write error during eviction is logged and the slot
// is dropped anyway rather than retried or escalated.
func (c *Cache) evictOne() {
	id, ok := c.order.Back()
	if !ok {
		return
	}
	s := c.slots[id]

	if s.dirty {
		if err := c.dev.WriteSector(id, s.bytes); err != nil {
			logger.Errorf("bcache: write-back of sector %d failed during eviction: %v", id, err)
		} else {
			c.metrics.Writeback()
		}
	}

	delete(c.slots, id)
	c.order.Remove(id)
	c.metrics.Eviction()
	c.metrics.SetResidentSlots(len(c.slots))
}

// Flush writes back every dirty slot and empties the cache, dropping
// residency in addition to durability: a subsequent read of any sector
// misses and reloads from the device.
func (c *Cache) Flush() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeBackAll(true)
}

// CleanAll writes back every dirty slot but keeps all slots resident: a
// durability checkpoint without discarding cache warmth, exposed alongside
// Flush's drop-everything behavior.
func (c *Cache) CleanAll() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeBackAll(false)
}

func (c *Cache) writeBackAll(drop bool) error {
	for id, s := range c.slots {
		if s.dirty {
			if err := c.dev.WriteSector(id, s.bytes); err != nil {
				return blockfserr.Wrap("bcache.writeBackAll", blockfserr.IoError, err)
			}
			c.metrics.Writeback()
			s.dirty = false
		}
	}

	if drop {
		c.slots = make(map[device.SectorID]*slot)
		c.order = container.NewRecencyList[device.SectorID]()
	}
	c.metrics.SetResidentSlots(len(c.slots))
	return nil
}

// Len reports the number of currently resident slots, never more than
// capacity.
func (c *Cache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.slots)
}

func checkLen(op string, buf []byte, want int) error {
	if len(buf) != want {
		return blockfserr.New(op, blockfserr.IoError)
	}
	return nil
}

// MaxSectorSize bounds the stack-allocated bounce buffer used for partial
// I/O. The reference geometry uses 512-byte sectors; this gives headroom
// for larger sector sizes without a heap allocation on the common path.
const MaxSectorSize = 4096
