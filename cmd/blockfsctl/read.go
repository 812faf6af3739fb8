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
)

var (
	readOffset int64
	readLength int
)

var readCmd = &cobra.Command{
	Use:   "read",
	Short: "Read bytes from the root file and print them to stdout",
	RunE: func(cmd *cobra.Command, args []string) error {
		img, _, oi, err := openImage()
		if err != nil {
			return err
		}
		defer img.fs.Close(oi)
		defer img.Close()

		buf := make([]byte, readLength)
		n, err := img.fs.ReadFile(oi, uint64(readOffset), buf)
		if err != nil {
			return err
		}
		_, err = os.Stdout.Write(buf[:n])
		return err
	},
}

func init() {
	readCmd.Flags().Int64Var(&readOffset, "offset", 0, "byte offset to read from")
	readCmd.Flags().IntVar(&readLength, "length", 0, "number of bytes to read")
}
