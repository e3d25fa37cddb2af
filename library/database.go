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
package library

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/penny-vault/ssrdata/data"
	"github.com/penny-vault/ssrdata/db"
)

var (
	ErrStore          = errors.New("short sale library error")
	ErrNoData         = errors.New("no short positions have been stored yet")
	ErrUnsupportedURL = errors.New("unsupported database url")
)

// backend is implemented once per database engine
type backend interface {
	appendRecords(ctx context.Context, records []*data.ShortPosition) error
	readAll(ctx context.Context) ([]*data.ShortPosition, error)
	appendLogEntry(ctx context.Context, entry *data.UpdateLogEntry) error
	latestLogEntry(ctx context.Context) (*data.UpdateLogEntry, error)
	countAll(ctx context.Context) (int, error)
	countIssuers(ctx context.Context) (int, error)
	isMissingTable(err error) bool
	migrationURL() string
	close()
}

// Library is the local store of short positions and the log of ingestion runs
type Library struct {
	DBUrl string

	store backend
}

// Open connects to the library at dbURL. postgres:// and postgresql:// URLs are
// served by PostgreSQL, sqlite:// URLs and plain file paths by SQLite.
func Open(ctx context.Context, dbURL string) (*Library, error) {
	var (
		store backend
		err   error
	)

	switch {
	case strings.HasPrefix(dbURL, "postgres://"), strings.HasPrefix(dbURL, "postgresql://"):
		store, err = openPostgres(ctx, dbURL)
	case strings.HasPrefix(dbURL, "sqlite://"):
		store, err = openSqlite(ctx, strings.TrimPrefix(dbURL, "sqlite://"))
	case strings.Contains(dbURL, "://"), dbURL == "":
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedURL, dbURL)
	default:
		store, err = openSqlite(ctx, dbURL)
	}

	if err != nil {
		return nil, fmt.Errorf("%w: open %s: %w", ErrStore, dbURL, err)
	}

	return &Library{
		DBUrl: dbURL,
		store: store,
	}, nil
}

// Close the underlying database connection
func (myLibrary *Library) Close() {
	myLibrary.store.close()
}

// Migrate creates or upgrades the library tables
func (myLibrary *Library) Migrate() error {
	if err := db.Migrate(myLibrary.store.migrationURL()); err != nil {
		return fmt.Errorf("%w: migrate: %w", ErrStore, err)
	}

	return nil
}

// Reset drops the library tables. The next Migrate starts from an empty library.
func (myLibrary *Library) Reset() error {
	if err := db.Reset(myLibrary.store.migrationURL()); err != nil {
		return fmt.Errorf("%w: reset: %w", ErrStore, err)
	}

	return nil
}

// AppendRecords inserts positions in a single transaction. Rows are never
// updated; an empty slice is a no-op.
func (myLibrary *Library) AppendRecords(ctx context.Context, records []*data.ShortPosition) error {
	if len(records) == 0 {
		return nil
	}

	if err := myLibrary.store.appendRecords(ctx, records); err != nil {
		return fmt.Errorf("%w: append records: %w", ErrStore, err)
	}

	return nil
}

// ReadAll returns every stored position. ErrNoData is returned when the library
// tables have not been created yet.
func (myLibrary *Library) ReadAll(ctx context.Context) ([]*data.ShortPosition, error) {
	records, err := myLibrary.store.readAll(ctx)
	if err != nil {
		if myLibrary.store.isMissingTable(err) {
			return nil, ErrNoData
		}
		return nil, fmt.Errorf("%w: read records: %w", ErrStore, err)
	}

	return records, nil
}

// AppendLogEntry records an ingestion run
func (myLibrary *Library) AppendLogEntry(ctx context.Context, entry *data.UpdateLogEntry) error {
	if err := myLibrary.store.appendLogEntry(ctx, entry); err != nil {
		return fmt.Errorf("%w: append update log: %w", ErrStore, err)
	}

	return nil
}

// LatestLogEntry returns the most recent ingestion run or nil if there has not
// been one
func (myLibrary *Library) LatestLogEntry(ctx context.Context) (*data.UpdateLogEntry, error) {
	entry, err := myLibrary.store.latestLogEntry(ctx)
	if err != nil {
		if myLibrary.store.isMissingTable(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: read update log: %w", ErrStore, err)
	}

	return entry, nil
}

// CountAll returns the total number of stored positions
func (myLibrary *Library) CountAll(ctx context.Context) (int, error) {
	count, err := myLibrary.store.countAll(ctx)
	if err != nil {
		if myLibrary.store.isMissingTable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: count records: %w", ErrStore, err)
	}

	return count, nil
}

// TotalIssuers returns the number of distinct issuers in the library
func (myLibrary *Library) TotalIssuers(ctx context.Context) (int, error) {
	count, err := myLibrary.store.countIssuers(ctx)
	if err != nil {
		if myLibrary.store.isMissingTable(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("%w: count issuers: %w", ErrStore, err)
	}

	return count, nil
}

// LastUpdated returns the time of the most recent ingestion run or the zero time
func (myLibrary *Library) LastUpdated(ctx context.Context) (time.Time, error) {
	entry, err := myLibrary.LatestLogEntry(ctx)
	if err != nil || entry == nil {
		return time.Time{}, err
	}

	return entry.Timestamp, nil
}

func nullString(val string) any {
	if val == "" {
		return nil
	}
	return val
}

func nullFloat(val *float64) any {
	if val == nil {
		return nil
	}
	return *val
}

func nullInt(val *int64) any {
	if val == nil {
		return nil
	}
	return *val
}
