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
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/hako/durafmt"
	"github.com/penny-vault/ssrdata/healthcheck"
	"github.com/penny-vault/ssrdata/ingest"
	"github.com/penny-vault/ssrdata/ssr"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"golang.org/x/time/rate"
)

var updateInterval time.Duration

// updateCmd represents the update command
var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Download the short sale register and store new positions",
	Long: `The update sub-command downloads the complete short sale register, appends
every position whose (isin, date) pair is not already stored and records the
run in the update log. When --interval is set update stays in the foreground
and repeats the merge once per interval until interrupted.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		ctx = log.Logger.WithContext(ctx)

		myLibrary := openLibrary(ctx)
		defer myLibrary.Close()

		if err := myLibrary.Migrate(); err != nil {
			log.Fatal().Err(err).Msg("error running database migration")
		}

		client := ssr.New(
			ssr.WithURL(viper.GetString("ssr.url")),
			ssr.WithBackoff(viper.GetDuration("ssr.backoff")),
			ssr.WithTimeout(viper.GetDuration("ssr.timeout")),
			ssr.WithCacheTTL(viper.GetDuration("ssr.cache_ttl")),
		)

		merger := ingest.NewMerger(client, myLibrary, ingest.WithMaxRetries(viper.GetInt("ssr.max_retries")))

		if updateInterval <= 0 {
			err := runUpdate(ctx, merger)
			if err != nil && !errors.Is(err, ssr.ErrFetchFailed) {
				log.Fatal().Err(err).Msg("update failed")
			}
			return
		}

		log.Info().Str("Interval", durafmt.Parse(updateInterval).String()).Msg("polling the short sale register")

		limiter := rate.NewLimiter(rate.Every(updateInterval), 1)
		for {
			if err := limiter.Wait(ctx); err != nil {
				log.Info().Msg("polling stopped")
				return
			}

			// errors are logged by runUpdate; keep polling
			_ = runUpdate(ctx, merger)
		}
	},
}

// runUpdate performs a single merge and reports it to the configured
// healthcheck endpoint
func runUpdate(ctx context.Context, merger *ingest.Merger) error {
	startTime := time.Now()
	newRows, err := merger.MergeUpdate(ctx)
	runTime := time.Since(startTime)

	switch {
	case errors.Is(err, ssr.ErrFetchFailed):
		log.Warn().Err(err).Msg("could not download the short sale register, stored data is unchanged")
	case err != nil:
		log.Error().Err(err).Msg("could not store short positions")
	default:
		log.Info().Str("RunTime", durafmt.Parse(runTime).String()).Int("NewRows", newRows).Msg("update complete")
	}

	pingErr := healthcheck.Ping(ctx, viper.GetString("healthchecks.ping_url"), err, fmt.Sprintf("%d new records", newRows))
	if pingErr != nil {
		log.Warn().Err(pingErr).Msg("could not ping healthcheck endpoint")
	}

	return err
}

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().DurationVar(&updateInterval, "interval", 0, "repeat the update at this interval (e.g. 1h), 0 runs once")
}
