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

package cfgfs

import (
	"reflect"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfigValidates(t *testing.T) {
	c := Default()
	require.NoError(t, c.Validate())
	assert.Equal(t, 8069120, c.MaxSectors()*c.Geometry.SectorSize)
}

func TestValidateRejectsBadGeometry(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero sector size", func(c *Config) { c.Geometry.SectorSize = 0 }},
		{"zero direct pointers", func(c *Config) { c.Geometry.DirectPointers = 0 }},
		{"zero indirect fanout", func(c *Config) { c.Geometry.IndirectFanout = 0 }},
		{"unaligned sector size", func(c *Config) { c.Geometry.SectorSize = 513 }},
		{"indirect fanout too big for sector", func(c *Config) { c.Geometry.IndirectFanout = 1000 }},
		{"negative cache capacity", func(c *Config) { c.CacheCapacity = -1 }},
		{"negative flush interval", func(c *Config) { c.FlushInterval = -1 }},
		{"negative rate limit", func(c *Config) { c.DeviceRateLimit = -1 }},
		{"bad severity", func(c *Config) { c.Logging.Severity = "CATASTROPHIC" }},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c := Default()
			tc.mutate(&c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestValidateRequiresImagePathUnlessInMemory(t *testing.T) {
	c := Default()
	c.ImagePath = ""
	assert.Error(t, c.Validate())

	c.InMemory = true
	assert.NoError(t, c.Validate())
}

func TestDecodeHookRejectsInvalidSeverity(t *testing.T) {
	hook := hookFunc()
	_, err := hook(
		reflect.TypeOf(""),
		reflect.TypeOf(LogSeverity("")),
		"NOT-A-LEVEL",
	)
	assert.Error(t, err)
}
