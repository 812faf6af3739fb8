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
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// statReport is the structured dump stat prints, yaml.v3 being the same
// library the config layer decodes with (SPEC_FULL's "Configuration"
// section names it as the config-file format; stat reuses it for output).
type statReport struct {
	SessionID    string `yaml:"session-id"`
	RootSector   uint32 `yaml:"root-sector"`
	LengthBytes  int64  `yaml:"length-bytes"`
	SectorSize   int    `yaml:"sector-size"`
	MaxFileBytes int64  `yaml:"max-file-bytes"`
}

var statCmd = &cobra.Command{
	Use:   "stat",
	Short: "Print a structured summary of the image's root file",
	RunE: func(cmd *cobra.Command, args []string) error {
		img, sb, oi, err := openImage()
		if err != nil {
			return err
		}
		defer img.fs.Close(oi)
		defer img.Close()

		report := statReport{
			SessionID:    sb.SessionID.String(),
			RootSector:   uint32(sb.RootSector),
			LengthBytes:  oi.Length(),
			SectorSize:   cfg.Geometry.SectorSize,
			MaxFileBytes: img.geometry().MaxFileSize(),
		}

		enc := yaml.NewEncoder(os.Stdout)
		defer enc.Close()
		return enc.Encode(report)
	},
}
