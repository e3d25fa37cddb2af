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
	"path/filepath"
	"strings"

	"github.com/charmbracelet/huh"
	"github.com/jackc/pgx/v5"
	"github.com/pelletier/go-toml/v2"
	"github.com/penny-vault/ssrdata/library"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var resetSchema bool

type dbSettings struct {
	URL string `toml:"url"`
}

type settings struct {
	DB dbSettings `toml:"db"`
}

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Choose a database location and setup schema",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		config := settings{
			DB: dbSettings{URL: viper.GetString("db.url")},
		}

		if !cmd.Flags().Changed("db") {
			form := huh.NewForm(
				huh.NewGroup(
					huh.NewInput().
						Title("Where should short positions be stored? Provide a SQLite file path or a PostgreSQL DSN (postgres://[user[:password]@][netloc][:port][/dbname][?param1=value1&...])").
						Value(&config.DB.URL).
						Validate(validateDBUrl),
				),
			)

			if err := form.Run(); err != nil {
				log.Fatal().Err(err).Msg("error gathering database settings")
			}
		}

		myLibrary, err := library.Open(ctx, config.DB.URL)
		if err != nil {
			log.Fatal().Err(err).Msg("could not connect to database")
		}
		defer myLibrary.Close()

		if resetSchema {
			log.Warn().Msg("dropping existing short positions and update log")
			if err := myLibrary.Reset(); err != nil {
				log.Fatal().Err(err).Msg("error resetting database")
			}
		}

		log.Info().Msg("creating database tables")
		if err := myLibrary.Migrate(); err != nil {
			log.Fatal().Err(err).Msg("error running database migration")
		}
		log.Info().Msg("database tables created")

		// save database settings to config file
		configFN := cfgFile
		if configFN == "" {
			home, err := os.UserHomeDir()
			if err != nil {
				log.Fatal().Err(err).Msg("could not determine user home directory")
			}
			configFN = filepath.Join(home, ".ssrdata.toml")
		}

		log.Info().Str("ConfigFile", configFN).Msg("Saving database connection info to config file")
		configData, err := toml.Marshal(config)
		if err != nil {
			log.Fatal().Err(err).Msg("could not marshal configuration data")
		}

		err = os.WriteFile(configFN, configData, 0600)
		if err != nil {
			log.Fatal().Err(err).Str("FileName", configFN).Msg("could not save configuration to file")
		}

		log.Info().Msg("Your short position library has been initialized")
	},
}

func validateDBUrl(dbURL string) error {
	dbURL = strings.TrimSpace(dbURL)
	switch {
	case dbURL == "":
		return errors.New("a database location is required")
	case strings.HasPrefix(dbURL, "postgres://"), strings.HasPrefix(dbURL, "postgresql://"):
		_, err := pgx.ParseConfig(dbURL)
		return err
	case strings.Contains(dbURL, "://") && !strings.HasPrefix(dbURL, "sqlite://"):
		return library.ErrUnsupportedURL
	}

	return nil
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&resetSchema, "reset", false, "drop all stored data before creating the schema")
}
