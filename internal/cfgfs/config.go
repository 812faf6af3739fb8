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

// Package cfgfs is the configuration layer for blockfsctl: a plain Config
// struct decoded from flags, a YAML file and the environment through viper,
// with a Validate method run once after binding finishes.
package cfgfs

import (
	"fmt"
	"time"
)

// LogSeverity is a validated enum string, uppercased and checked by
// DecodeHook at decode time.
type LogSeverity string

const (
	SeverityTrace   LogSeverity = "TRACE"
	SeverityDebug   LogSeverity = "DEBUG"
	SeverityInfo    LogSeverity = "INFO"
	SeverityWarning LogSeverity = "WARNING"
	SeverityError   LogSeverity = "ERROR"
	SeverityOff     LogSeverity = "OFF"
)

func (s LogSeverity) valid() bool {
	switch s {
	case SeverityTrace, SeverityDebug, SeverityInfo, SeverityWarning, SeverityError, SeverityOff:
		return true
	default:
		return false
	}
}

// LoggingConfig controls internal/logger's output.
type LoggingConfig struct {
	FilePath string      `mapstructure:"file"`
	Severity LogSeverity `mapstructure:"severity"`
	Format   string      `mapstructure:"format"`
}

// GeometryConfig is the index tree's parameter block: sector width and
// index-tree fanout. Fields are exported so a YAML config file can override
// any of them; Validate enforces the relationships the rest of the tree
// requires.
type GeometryConfig struct {
	SectorSize     int `mapstructure:"sector-size"`
	DirectPointers int `mapstructure:"direct-pointers"`
	IndirectFanout int `mapstructure:"indirect-fanout"`
	DblIndirectFanout int `mapstructure:"dbl-indirect-fanout"`
}

// Config is the full set of knobs blockfsctl accepts, bound from a YAML
// config file, BLOCKFS_-prefixed environment variables and pflag flags, in
// that order of increasing precedence (flags win).
type Config struct {
	Geometry GeometryConfig `mapstructure:"geometry"`

	CacheCapacity int           `mapstructure:"cache-capacity"`
	FlushInterval time.Duration `mapstructure:"flush-interval"`

	ImagePath  string `mapstructure:"image-path"`
	InMemory   bool   `mapstructure:"in-memory"`
	NumSectors uint32 `mapstructure:"num-sectors"`

	DeviceRateLimit int `mapstructure:"device-rate-limit"` // sectors/sec, 0 disables

	Logging LoggingConfig `mapstructure:"logging"`

	MetricsAddr string `mapstructure:"metrics-addr"` // empty disables serve-metrics
}

// Default returns the reference parameter set: S=512, C=64, Nd=10, Ni=125,
// Nd2=125, a 30s periodic flush, text logging to stderr at INFO.
func Default() Config {
	return Config{
		Geometry: GeometryConfig{
			SectorSize:        512,
			DirectPointers:    10,
			IndirectFanout:    125,
			DblIndirectFanout: 125,
		},
		CacheCapacity: 64,
		FlushInterval: 30 * time.Second,
		ImagePath:     "blockfs.img",
		NumSectors:    1 << 16,
		Logging: LoggingConfig{
			Severity: SeverityInfo,
			Format:   "text",
		},
	}
}

// Validate checks the relationships the rest of the tree assumes hold:
// positive geometry, a cache that can hold at least one slot, and a logging
// severity from the accepted enum. Geometry is checked strictly before
// anything downstream does pointer arithmetic with it, since mixing narrow
// and wide integer types around sector counts is an easy source of
// off-by-one bugs.
func (c *Config) Validate() error {
	if c.Geometry.SectorSize <= 0 {
		return fmt.Errorf("cfgfs: sector-size must be positive, got %d", c.Geometry.SectorSize)
	}
	if c.Geometry.DirectPointers <= 0 {
		return fmt.Errorf("cfgfs: direct-pointers must be positive, got %d", c.Geometry.DirectPointers)
	}
	if c.Geometry.IndirectFanout <= 0 {
		return fmt.Errorf("cfgfs: indirect-fanout must be positive, got %d", c.Geometry.IndirectFanout)
	}
	if c.Geometry.DblIndirectFanout <= 0 {
		return fmt.Errorf("cfgfs: dbl-indirect-fanout must be positive, got %d", c.Geometry.DblIndirectFanout)
	}
	if c.Geometry.SectorSize%4 != 0 {
		return fmt.Errorf("cfgfs: sector-size must be a multiple of 4 (fixed-width uint32 pointers), got %d", c.Geometry.SectorSize)
	}
	// 3 self-describing uint32 header fields per indirect block (self,
	// parent, used) plus its Ni uint32 pointers must fit in one sector
	// (ondisk.go's IndirectBlock layout).
	if c.Geometry.IndirectFanout*4+12 > c.Geometry.SectorSize {
		return fmt.Errorf("cfgfs: indirect-fanout %d does not fit sector-size %d", c.Geometry.IndirectFanout, c.Geometry.SectorSize)
	}
	if c.CacheCapacity <= 0 {
		return fmt.Errorf("cfgfs: cache-capacity must be positive, got %d", c.CacheCapacity)
	}
	if c.FlushInterval < 0 {
		return fmt.Errorf("cfgfs: flush-interval must not be negative, got %s", c.FlushInterval)
	}
	if !c.InMemory && c.ImagePath == "" {
		return fmt.Errorf("cfgfs: image-path is required unless in-memory is set")
	}
	if c.Logging.Severity != "" && !c.Logging.Severity.valid() {
		return fmt.Errorf("cfgfs: invalid logging severity %q", c.Logging.Severity)
	}
	if c.DeviceRateLimit < 0 {
		return fmt.Errorf("cfgfs: device-rate-limit must not be negative, got %d", c.DeviceRateLimit)
	}
	return nil
}

// MaxSectors returns Nd + Ni + Nd2*Ni for the configured geometry.
func (c Config) MaxSectors() int {
	g := c.Geometry
	return g.DirectPointers + g.IndirectFanout + g.DblIndirectFanout*g.IndirectFanout
}
