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
	"os"
	"strings"

	"github.com/penny-vault/ssrdata/analytics"
	"github.com/penny-vault/ssrdata/data"
	"github.com/penny-vault/ssrdata/library"
	"github.com/penny-vault/ssrdata/ssr"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ssrdata",
	Short: "ssrdata tracks disclosed short positions from the Norwegian short sale register",
	Long: `ssrdata is a command line utility for building and analysing a local
history of the short sale register published by Finanstilsynet. Every
update downloads the full register, appends positions that have not been
seen before and records the run in an update log.

The collected history can be queried for:

	* the largest recent changes in short interest
	* issuers that crossed an alert threshold
	* a ranked short pressure index over a trailing window
	* daily changes for individual issuers

Data is kept in a SQLite file by default. A PostgreSQL connection string
may be used instead.`,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level, err := zerolog.ParseLevel(viper.GetString("log.level"))
		if err != nil {
			log.Warn().Err(err).Str("Level", viper.GetString("log.level")).Msg("invalid log level, using info")
			level = zerolog.InfoLevel
		}
		zerolog.SetGlobalLevel(level)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	viper.SetDefault("db.url", "ssrdata.db")
	viper.SetDefault("ssr.url", ssr.ExportURL)
	viper.SetDefault("ssr.max_retries", ssr.DefaultMaxRetries)
	viper.SetDefault("ssr.backoff", ssr.DefaultBackoff)
	viper.SetDefault("ssr.timeout", ssr.DefaultTimeout)
	viper.SetDefault("ssr.cache_ttl", ssr.DefaultCacheTTL)
	viper.SetDefault("analytics.threshold", analytics.DefaultThreshold)
	viper.SetDefault("analytics.window_days", analytics.DefaultWindowDays)
	viper.SetDefault("analytics.top_n", analytics.DefaultTopN)
	viper.SetDefault("healthchecks.ping_url", "")
	viper.SetDefault("log.level", "info")

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is $HOME/.ssrdata.toml)")

	rootCmd.PersistentFlags().String("db", "", "database location, a SQLite file path or postgres:// connection string")
	if err := viper.BindPFlag("db.url", rootCmd.PersistentFlags().Lookup("db")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for db failed")
	}

	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	if err := viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level")); err != nil {
		log.Panic().Err(err).Msg("BindPFlag for log-level failed")
	}
}

// initConfig reads in config file and ENV variables if set.
func initConfig() {
	if cfgFile != "" {
		// Use config file from the flag.
		viper.SetConfigFile(cfgFile)
	} else {
		// Find home directory.
		home, err := os.UserHomeDir()
		cobra.CheckErr(err)

		// Search config in home directory with name ".ssrdata" (without extension).
		viper.AddConfigPath(home)
		viper.SetConfigType("toml")
		viper.SetConfigName(".ssrdata")
	}

	viper.SetEnvPrefix("ssrdata")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv() // read in environment variables that match

	// If a config file is found, read it in.
	if err := viper.ReadInConfig(); err == nil {
		log.Debug().Str("ConfigFN", viper.ConfigFileUsed()).Msg("Using config file")
	}
}

// openLibrary connects to the configured store, exiting on failure
func openLibrary(ctx context.Context) *library.Library {
	myLibrary, err := library.Open(ctx, viper.GetString("db.url"))
	if err != nil {
		log.Fatal().Err(err).Str("DBUrl", viper.GetString("db.url")).Msg("could not open library")
	}

	return myLibrary
}

// loadPositions reads every stored position for the analysis commands. A store
// that has never been updated yields no positions.
func loadPositions(ctx context.Context) []*data.ShortPosition {
	myLibrary := openLibrary(ctx)
	defer myLibrary.Close()

	records, err := myLibrary.ReadAll(ctx)
	if errors.Is(err, library.ErrNoData) {
		log.Info().Msg("no data has been collected yet, run `ssrdata update` first")
		return nil
	}

	if err != nil {
		log.Fatal().Err(err).Msg("could not read short positions")
	}

	return records
}
