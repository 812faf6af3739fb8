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

package superblock

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osdev-course/blockfs/internal/device"
)

func TestMarshalUnmarshalRoundTrip(t *testing.T) {
	sb := New(device.SectorID(1))

	buf := sb.Marshal(512)
	got, err := Unmarshal(buf)
	require.NoError(t, err)

	assert.Equal(t, sb.SessionID, got.SessionID)
	assert.Equal(t, sb.RootSector, got.RootSector)
}

func TestUnmarshalRejectsBadMagic(t *testing.T) {
	buf := make([]byte, 512)
	_, err := Unmarshal(buf)
	assert.Error(t, err)
}
