// Copyright 2024
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/gosimple/slug"
	"github.com/penny-vault/ssrdata/report"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var exportFN string

// exportCmd represents the export command
var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export every stored short position to a csv file",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		records := loadPositions(ctx)

		if len(records) == 0 {
			log.Info().Msg("nothing to export")
			return
		}

		fn := exportFN
		if fn == "" {
			fn = slug.Make(fmt.Sprintf("short positions %s", time.Now().Format("2006-01-02"))) + ".csv"
		}

		emit(report.PositionHeaders, report.Positions(records), fn)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportFN, "output", "o", "", "csv file name (default short-positions-<date>.csv)")
}
