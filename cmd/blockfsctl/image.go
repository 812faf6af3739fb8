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

package main

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/osdev-course/blockfs/clock"
	"github.com/osdev-course/blockfs/internal/bcache"
	"github.com/osdev-course/blockfs/internal/cfgfs"
	"github.com/osdev-course/blockfs/internal/device"
	"github.com/osdev-course/blockfs/internal/freemap"
	"github.com/osdev-course/blockfs/internal/inode"
	"github.com/osdev-course/blockfs/internal/metrics"
	"github.com/osdev-course/blockfs/internal/superblock"
	"github.com/osdev-course/blockfs/internal/vfs"
)

// image bundles every layer a subcommand needs, torn down in reverse order
// by Close.
type image struct {
	dev   device.Device
	cache *bcache.Cache
	fm    *freemap.Map
	table *inode.Table
	fs    *vfs.FS
}

func (img *image) geometry() inode.Geometry {
	g := cfg.Geometry
	return inode.Geometry{SectorSize: g.SectorSize, Nd: g.DirectPointers, Ni: g.IndirectFanout, Nd2: g.DblIndirectFanout}
}

// openDevice builds the configured Device, optionally decorated with a
// sectors/sec rate limit (internal/device.RateLimitedDevice).
func openDevice(create bool) (device.Device, error) {
	if cfg.InMemory {
		return device.NewMemDevice(cfg.Geometry.SectorSize, cfg.NumSectors), nil
	}

	var dev device.Device
	var err error
	if create {
		dev, err = device.CreateFileDevice(cfg.ImagePath, cfg.Geometry.SectorSize, cfg.NumSectors)
	} else {
		dev, err = device.OpenFileDevice(cfg.ImagePath, cfg.Geometry.SectorSize)
	}
	if err != nil {
		return nil, err
	}

	if cfg.DeviceRateLimit > 0 {
		dev = device.NewRateLimitedDevice(dev, float64(cfg.DeviceRateLimit), cfg.DeviceRateLimit)
	}
	return dev, nil
}

// newImage creates a freshly formatted image: a new device, an empty free
// map (sector 0 reserved for the superblock), a root file of rootLength
// bytes, and a superblock pointing at it.
func newImage(rootLength int64) (*image, *superblock.Superblock, error) {
	dev, err := openDevice(true)
	if err != nil {
		return nil, nil, err
	}

	// flushPeriod 0: blockfsctl is a one-shot process, not a resident daemon,
	// so there is no wall-clock window for the periodic flush goroutine to
	// matter here -- every subcommand flushes explicitly before exit
	// instead. `serve-metrics` is the one long-running subcommand and builds
	// its own cache with a real period (see serve_metrics.go).
	img := &image{
		dev:   dev,
		cache: bcache.New(dev, cfg.CacheCapacity, clock.RealClock{}, 0, metrics.NewHandle(prometheus.NewRegistry())),
		fm:    freemap.New(dev.NumSectors(), 1),
	}
	img.table = inode.NewTable(img.geometry(), img.cache, img.fm)
	img.fs = vfs.New(img.table)

	oi, err := img.fs.CreateFile(rootLength)
	if err != nil {
		img.cache.Shutdown()
		dev.Close()
		return nil, nil, err
	}

	sb := superblock.New(oi.Sector())
	if err := img.cache.Write(superblock.Sector, sb.Marshal(cfg.Geometry.SectorSize)); err != nil {
		img.cache.Shutdown()
		dev.Close()
		return nil, nil, err
	}

	if err := img.fs.Close(oi); err != nil {
		img.cache.Shutdown()
		dev.Close()
		return nil, nil, err
	}

	return img, &sb, nil
}

// openImage opens an existing image, reads its superblock, and rebuilds
// free-map state by walking the root file's tree (the free map is not
// persisted across process invocations and has no on-disk representation of
// its own). Returns the image and the root file's open handle, which the
// caller must Close.
func openImage() (*image, *superblock.Superblock, *inode.OpenInode, error) {
	dev, err := openDevice(false)
	if err != nil {
		return nil, nil, nil, err
	}

	img := &image{
		dev:   dev,
		cache: bcache.New(dev, cfg.CacheCapacity, clock.RealClock{}, 0, metrics.NewHandle(prometheus.NewRegistry())),
		fm:    freemap.New(dev.NumSectors(), 1),
	}
	img.table = inode.NewTable(img.geometry(), img.cache, img.fm)
	img.fs = vfs.New(img.table)

	buf := make([]byte, cfg.Geometry.SectorSize)
	if err := img.cache.Read(superblock.Sector, buf); err != nil {
		dev.Close()
		return nil, nil, nil, err
	}
	sb, err := superblock.Unmarshal(buf)
	if err != nil {
		dev.Close()
		return nil, nil, nil, fmt.Errorf("blockfsctl: %s does not look like a formatted blockfs image: %w", cfg.ImagePath, err)
	}

	oi, err := img.fs.Lookup(sb.RootSector)
	if err != nil {
		dev.Close()
		return nil, nil, nil, err
	}

	occupied, err := img.table.OccupiedSectors(oi)
	if err != nil {
		img.fs.Close(oi)
		dev.Close()
		return nil, nil, nil, err
	}
	for _, id := range occupied {
		img.fm.MarkUsed(id)
	}

	return img, &sb, oi, nil
}

// Close flushes every dirty sector back to the device and releases it.
func (img *image) Close() error {
	if err := img.cache.Flush(); err != nil {
		img.dev.Close()
		return err
	}
	return img.dev.Close()
}
