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

	"github.com/spf13/cobra"

	"github.com/osdev-course/blockfs/internal/logger"
)

var formatLength int64

var formatCmd = &cobra.Command{
	Use:   "format",
	Short: "Create a new device image with a single root file",
	RunE: func(cmd *cobra.Command, args []string) error {
		img, sb, err := newImage(formatLength)
		if err != nil {
			return err
		}
		defer img.Close()

		logger.Infof("formatted %s: %d sectors of %d bytes, root at sector %d, session %s",
			cfg.ImagePath, cfg.NumSectors, cfg.Geometry.SectorSize, sb.RootSector, sb.SessionID)
		fmt.Printf("root-sector: %d\nsession-id: %s\n", sb.RootSector, sb.SessionID)
		return nil
	},
}

func init() {
	formatCmd.Flags().Int64Var(&formatLength, "length", 0, "initial length in bytes of the root file")
}
