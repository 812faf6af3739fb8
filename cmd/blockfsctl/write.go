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
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/osdev-course/blockfs/internal/logger"
)

var writeOffset int64

var writeCmd = &cobra.Command{
	Use:   "write",
	Short: "Write stdin to the root file at an offset, growing it if needed",
	RunE: func(cmd *cobra.Command, args []string) error {
		src, err := io.ReadAll(os.Stdin)
		if err != nil {
			return err
		}

		img, _, oi, err := openImage()
		if err != nil {
			return err
		}
		defer img.fs.Close(oi)
		defer img.Close()

		if oi.DenyWriteActive() {
			return fmt.Errorf("blockfsctl: write denied: root file has an active deny-write hold")
		}

		n, err := img.fs.WriteFile(oi, uint64(writeOffset), src)
		if err != nil {
			return err
		}
		logger.Infof("wrote %d bytes at offset %d, new length %d", n, writeOffset, oi.Length())
		return nil
	},
}

func init() {
	writeCmd.Flags().Int64Var(&writeOffset, "offset", 0, "byte offset to write at")
}
