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

package bcache

import "github.com/osdev-course/blockfs/internal/device"

// slot is a resident copy of one sector. State machine: empty (never
// constructed) -> loading (briefly, while ReadSector runs) -> clean or dirty
// -> evicted (removed from the cache's maps).
type slot struct {
	sectorID device.SectorID
	bytes    []byte
	dirty    bool
	accessed bool
}

func newSlot(id device.SectorID, sectorSize int) *slot {
	return &slot{sectorID: id, bytes: make([]byte, sectorSize)}
}
