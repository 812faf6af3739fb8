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
	"github.com/spf13/cobra"

	"github.com/osdev-course/blockfs/internal/logger"
)

// flushCmd exists mostly to exercise the "idempotent flush" law from the
// command line: opening an image and flushing it twice in a row must behave
// like flushing it once, since every other subcommand already flushes
// before exit as part of Close.
var flushCmd = &cobra.Command{
	Use:   "flush",
	Short: "Open the image, flush the cache, and close it",
	RunE: func(cmd *cobra.Command, args []string) error {
		img, _, oi, err := openImage()
		if err != nil {
			return err
		}
		if err := img.fs.Close(oi); err != nil {
			return err
		}

		if err := img.cache.Flush(); err != nil {
			return err
		}
		if err := img.cache.Flush(); err != nil {
			return err
		}

		logger.Infof("flushed %s", cfg.ImagePath)
		return img.dev.Close()
	},
}
