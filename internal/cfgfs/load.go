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
	"fmt"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// BindFlags registers every Config field as a pflag, seeded with Default()'s
// values, one flag per Config field. Callers pass the same *pflag.FlagSet to
// Load.
func BindFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.Int("sector-size", d.Geometry.SectorSize, "sector width in bytes (S)")
	fs.Int("direct-pointers", d.Geometry.DirectPointers, "direct pointers held inline in the inode (Nd)")
	fs.Int("indirect-fanout", d.Geometry.IndirectFanout, "pointers per indirect block (Ni)")
	fs.Int("dbl-indirect-fanout", d.Geometry.DblIndirectFanout, "indirect-block pointers per double-indirect block (Nd2)")
	fs.Int("cache-capacity", d.CacheCapacity, "resident cache slots (C)")
	fs.Duration("flush-interval", d.FlushInterval, "periodic cache flush interval, 0 disables")
	fs.String("image-path", d.ImagePath, "path to the backing device image file")
	fs.Bool("in-memory", d.InMemory, "use an in-memory device instead of an image file")
	fs.Uint32("num-sectors", d.NumSectors, "device size in sectors, for format/in-memory")
	fs.Int("device-rate-limit", d.DeviceRateLimit, "sectors/sec device throttle, 0 disables")
	fs.String("logging.file", d.Logging.FilePath, "log file path; empty logs to stderr")
	fs.String("logging.severity", string(d.Logging.Severity), "TRACE|DEBUG|INFO|WARNING|ERROR|OFF")
	fs.String("logging.format", d.Logging.Format, "text|json")
	fs.String("metrics-addr", d.MetricsAddr, "address to serve Prometheus metrics on; empty disables")
}

// Load builds a Config from, in increasing order of precedence: Default(),
// a YAML file at configFile (if non-empty), BLOCKFS_-prefixed environment
// variables, and fs's bound flags. The result is validated before return.
func Load(fs *pflag.FlagSet, configFile string) (Config, error) {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("cfgfs: reading config file %s: %w", configFile, err)
		}
	}

	v.SetEnvPrefix("BLOCKFS")
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return Config{}, fmt.Errorf("cfgfs: binding flags: %w", err)
	}
	// The geometry flags have flat names; bind each to its nested key too.
	for _, name := range []string{"sector-size", "direct-pointers", "indirect-fanout", "dbl-indirect-fanout"} {
		if f := fs.Lookup(name); f != nil {
			if err := v.BindPFlag("geometry."+name, f); err != nil {
				return Config{}, fmt.Errorf("cfgfs: binding flag %s: %w", name, err)
			}
		}
	}

	cfg := Default()
	if err := v.Unmarshal(&cfg, viper.DecodeHook(DecodeHook())); err != nil {
		return Config{}, fmt.Errorf("cfgfs: unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
