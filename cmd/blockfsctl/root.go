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

	"github.com/osdev-course/blockfs/internal/cfgfs"
	"github.com/osdev-course/blockfs/internal/logger"
)

// cfgFile is bound to --config-file and read in PersistentPreRunE, splitting
// flag registration time (init) from parse time (PersistentPreRunE).
var cfgFile string

// cfg holds the fully resolved configuration once rootCmd's
// PersistentPreRunE has run; every subcommand reads it from there.
var cfg cfgfs.Config

var rootCmd = &cobra.Command{
	Use:   "blockfsctl",
	Short: "Format and inspect blockfs device images",
	Long: `blockfsctl drives the blockfs storage core directly: it formats a
device image, creates a single root file in it, and reads/writes/stats that
file by sector id. There is no directory layer, so every subcommand after
format finds the root file through the superblock in sector 0.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = cfgfs.Load(cmd.Flags(), cfgFile)
		if err != nil {
			return err
		}

		if cfg.Logging.FilePath != "" {
			if err := logger.InitLogFile(cfg.Logging.FilePath, string(cfg.Logging.Severity), cfg.Logging.Format, logger.DefaultRotateConfig()); err != nil {
				return err
			}
		} else {
			logger.SetLoggingLevel(string(cfg.Logging.Severity))
			logger.SetLogFormat(cfg.Logging.Format)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config-file", "", "path to a YAML config file")
	cfgfs.BindFlags(rootCmd.PersistentFlags())

	rootCmd.AddCommand(formatCmd)
	rootCmd.AddCommand(statCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(writeCmd)
	rootCmd.AddCommand(flushCmd)
	rootCmd.AddCommand(serveMetricsCmd)
}
