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

	"github.com/penny-vault/ssrdata/analytics"
	"github.com/penny-vault/ssrdata/report"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	changesCSV   string
	changesLimit int
)

// changesCmd represents the changes command
var changesCmd = &cobra.Command{
	Use:   "changes",
	Short: "Show the largest changes between each issuer's two latest disclosures",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		records := loadPositions(ctx)

		changes := analytics.LargestChanges(records)
		if len(changes) == 0 {
			log.Info().Msg("no issuer has more than one disclosure yet")
			return
		}

		if changesLimit > 0 && len(changes) > changesLimit {
			changes = changes[:changesLimit]
		}

		emit(report.ChangeHeaders, report.Changes(changes), changesCSV)
	},
}

func init() {
	rootCmd.AddCommand(changesCmd)
	changesCmd.Flags().IntVarP(&changesLimit, "limit", "n", 20, "maximum number of issuers to show, 0 shows all")
	changesCmd.Flags().StringVar(&changesCSV, "csv", "", "save the changes to a csv file")
}
