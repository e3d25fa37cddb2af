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
	"time"

	"github.com/penny-vault/ssrdata/analytics"
	"github.com/penny-vault/ssrdata/report"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var (
	topCSV string
	topAll bool
)

// topCmd represents the top command
var topCmd = &cobra.Command{
	Use:   "top",
	Short: "Rank issuers by short pressure index",
	Long: `The top sub-command selects the issuers with the highest mean short percent
over a trailing window and scores each with the short pressure index, which
combines the level of short interest with its change across the window.
Issuers whose change cannot be computed are hidden unless --all is given.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		records := loadPositions(ctx)

		windowDays := viper.GetInt("analytics.window_days")
		ranking := analytics.TopN(records, windowDays, viper.GetInt("analytics.top_n"), time.Now())
		if !topAll {
			ranking = analytics.Scored(ranking)
		}

		if len(ranking) == 0 {
			log.Info().Int("WindowDays", windowDays).Msg("no short positions were disclosed in the window")
			return
		}

		emit(report.PressureHeaders, report.Pressures(ranking), topCSV)
	},
}

func init() {
	rootCmd.AddCommand(topCmd)

	topCmd.Flags().Int("window", analytics.DefaultWindowDays, "trailing window in days")
	if err := viper.BindPFlag("analytics.window_days", topCmd.Flags().Lookup("window")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for window failed")
	}

	topCmd.Flags().IntP("limit", "n", analytics.DefaultTopN, "number of issuers to rank")
	if err := viper.BindPFlag("analytics.top_n", topCmd.Flags().Lookup("limit")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for limit failed")
	}

	topCmd.Flags().BoolVar(&topAll, "all", false, "include issuers without a pressure score")
	topCmd.Flags().StringVar(&topCSV, "csv", "", "save the ranking to a csv file")
}
