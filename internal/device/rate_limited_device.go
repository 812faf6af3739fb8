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

package device

import (
	"context"

	"golang.org/x/time/rate"

	"github.com/osdev-course/blockfs/internal/blockfserr"
)

// RateLimitedDevice decorates a Device with a sectors-per-second ceiling
// using a token-bucket limiter. It throttles the buffer cache's miss path,
// so a slow disk can be simulated without touching the cache's policy code.
type RateLimitedDevice struct {
	Device
	limiter *rate.Limiter
}

// NewRateLimitedDevice wraps d so no more than sectorsPerSecond read-or-write
// operations complete per second, with a burst of burst operations.
func NewRateLimitedDevice(d Device, sectorsPerSecond float64, burst int) *RateLimitedDevice {
	return &RateLimitedDevice{
		Device:  d,
		limiter: rate.NewLimiter(rate.Limit(sectorsPerSecond), burst),
	}
}

func (d *RateLimitedDevice) ReadSector(id SectorID, dst []byte) error {
	if err := d.limiter.Wait(context.Background()); err != nil {
		return blockfserr.Wrap("device.ReadSector", blockfserr.IoError, err)
	}
	return d.Device.ReadSector(id, dst)
}

func (d *RateLimitedDevice) WriteSector(id SectorID, src []byte) error {
	if err := d.limiter.Wait(context.Background()); err != nil {
		return blockfserr.Wrap("device.WriteSector", blockfserr.IoError, err)
	}
	return d.Device.WriteSector(id, src)
}
