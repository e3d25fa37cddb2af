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
package db

import (
	"embed"
	"errors"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
)

//go:embed migrations/*
var migrationFS embed.FS

// Migrate runs database migrations for a short sale library. The dialect is
// picked from the URL scheme: pgx5:// for PostgreSQL and sqlite:// for SQLite.
func Migrate(databaseURL string) error {
	migration, err := newMigration(databaseURL)
	if err != nil {
		return err
	}
	defer migration.Close()

	err = migration.Up()
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}

	return err
}

// Reset rolls back every migration, dropping all stored positions and the update log
func Reset(databaseURL string) error {
	migration, err := newMigration(databaseURL)
	if err != nil {
		return err
	}
	defer migration.Close()

	err = migration.Down()
	if errors.Is(err, migrate.ErrNoChange) {
		return nil
	}

	return err
}

func newMigration(databaseURL string) (*migrate.Migrate, error) {
	dialect := "sqlite"
	if strings.HasPrefix(databaseURL, "pgx5://") {
		dialect = "postgres"
	}

	migrationDir, err := iofs.New(migrationFS, "migrations/"+dialect)
	if err != nil {
		return nil, err
	}

	return migrate.NewWithSourceInstance("iofs", migrationDir, databaseURL)
}
