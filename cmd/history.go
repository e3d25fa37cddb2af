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
	"strings"

	"github.com/penny-vault/ssrdata/analytics"
	"github.com/penny-vault/ssrdata/report"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	historyCSV     string
	historyIssuers []string
	historyList    bool
)

// historyCmd represents the history command
var historyCmd = &cobra.Command{
	Use:   "history [query]",
	Short: "Show the daily short percent history of matching issuers",
	Long: `The history sub-command aggregates positions per issuer and day and shows
the change from each issuer's previous observation. The optional query is a
case-insensitive match against issuer names and ISINs; --issuer restricts the
output to exact issuer names.`,
	Args: cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		records := loadPositions(ctx)

		query := ""
		if len(args) == 1 {
			query = args[0]
		}

		records = analytics.Filter(records, query, historyIssuers)

		if historyList {
			issuers := analytics.Issuers(records)
			if len(issuers) == 0 {
				log.Info().Str("Query", query).Msg("no issuers match")
				return
			}
			fmt.Println(strings.Join(issuers, "\n"))
			return
		}

		series := analytics.Aggregate(records)
		if len(series) == 0 {
			log.Info().Str("Query", query).Msg("no short positions match")
			return
		}

		emit(report.HistoryHeaders, report.History(series, analytics.DailyChanges(series)), historyCSV)
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringSliceVarP(&historyIssuers, "issuer", "i", nil, "only include these issuers (repeatable)")
	historyCmd.Flags().BoolVar(&historyList, "list", false, "list matching issuer names instead of the history")
	historyCmd.Flags().StringVar(&historyCSV, "csv", "", "save the history to a csv file")
}
