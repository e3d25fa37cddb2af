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
	"github.com/spf13/viper"
)

var alertsCSV string

// alertsCmd represents the alerts command
var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List issuers whose latest short percent crossed the alert threshold",
	Long: `The alerts sub-command flags every issuer whose latest short percent is at or
above the threshold while the observation before it was below the threshold,
or that has no earlier observation at all.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		records := loadPositions(ctx)

		threshold := viper.GetFloat64("analytics.threshold")
		alerts := analytics.NewPositions(records, threshold)
		if len(alerts) == 0 {
			log.Info().Float64("Threshold", threshold).Msg("no issuer crossed the threshold")
			return
		}

		emit(report.AlertHeaders, report.Alerts(alerts), alertsCSV)
	},
}

func init() {
	rootCmd.AddCommand(alertsCmd)

	alertsCmd.Flags().Float64("threshold", analytics.DefaultThreshold, "short percent that triggers an alert")
	if err := viper.BindPFlag("analytics.threshold", alertsCmd.Flags().Lookup("threshold")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for threshold failed")
	}

	alertsCmd.Flags().StringVar(&alertsCSV, "csv", "", "save the alerts to a csv file")
}
