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
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/sqlscan"
	"github.com/google/uuid"
	"github.com/penny-vault/ssrdata/data"
	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"
)

const sqliteTimestampLayout = "2006-01-02 15:04:05.000000"

type sqliteStore struct {
	path string
	db   *sql.DB
}

type sqlitePosition struct {
	ISIN         string   `db:"isin"`
	IssuerName   *string  `db:"issuer_name"`
	EventDate    *string  `db:"event_date"`
	RawDate      *string  `db:"raw_date"`
	ShortPercent *float64 `db:"short_percent"`
	Shares       *int64   `db:"shares"`
}

type sqliteLogEntry struct {
	RunID   string `db:"run_id"`
	TS      string `db:"ts"`
	NewRows int    `db:"new_rows"`
}

func openSqlite(ctx context.Context, path string) (*sqliteStore, error) {
	sqlDB, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	// a single connection keeps writers from tripping over each other's locks
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := sqlDB.ExecContext(ctx, pragma); err != nil {
			sqlDB.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		sqlDB.Close()
		return nil, err
	}

	return &sqliteStore{
		path: path,
		db:   sqlDB,
	}, nil
}

func (store *sqliteStore) appendRecords(ctx context.Context, records []*data.ShortPosition) error {
	tx, err := store.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}

	defer func() {
		if err := tx.Rollback(); err != nil && !errors.Is(err, sql.ErrTxDone) {
			log.Error().Err(err).Msg("error rolling back short position transaction")
		}
	}()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO short_positions (
		isin,
		issuer_name,
		event_date,
		raw_date,
		short_percent,
		shares
	) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, record := range records {
		if _, err := stmt.ExecContext(ctx, record.ISIN, nullString(record.IssuerName),
			nullString(data.FormatDate(record.Date)), nullString(record.RawDate), nullFloat(record.ShortPercent),
			nullInt(record.Shares)); err != nil {
			return err
		}
	}

	return tx.Commit()
}

func (store *sqliteStore) readAll(ctx context.Context) ([]*data.ShortPosition, error) {
	var rows []*sqlitePosition
	if err := sqlscan.Select(ctx, store.db, &rows, `SELECT isin, issuer_name, event_date,
	raw_date, short_percent, shares FROM short_positions ORDER BY rowid`); err != nil {
		return nil, err
	}

	records := make([]*data.ShortPosition, 0, len(rows))
	for _, row := range rows {
		record := &data.ShortPosition{
			ISIN:         row.ISIN,
			ShortPercent: row.ShortPercent,
			Shares:       row.Shares,
		}

		if row.IssuerName != nil {
			record.IssuerName = *row.IssuerName
		}

		if row.EventDate != nil {
			record.Date = data.ParseDate(*row.EventDate)
		}

		if row.RawDate != nil {
			record.RawDate = *row.RawDate
		}

		records = append(records, record)
	}

	return records, nil
}

func (store *sqliteStore) appendLogEntry(ctx context.Context, entry *data.UpdateLogEntry) error {
	_, err := store.db.ExecContext(ctx, `INSERT INTO updates_log (run_id, ts, new_rows) VALUES (?, ?, ?)`,
		entry.RunID.String(), entry.Timestamp.UTC().Format(sqliteTimestampLayout), entry.NewRows)
	return err
}

func (store *sqliteStore) latestLogEntry(ctx context.Context) (*data.UpdateLogEntry, error) {
	row := sqliteLogEntry{}
	err := sqlscan.Get(ctx, store.db, &row, `SELECT run_id, ts, new_rows FROM updates_log
	ORDER BY ts DESC, rowid DESC LIMIT 1`)
	if err != nil {
		if sqlscan.NotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	ts, err := time.ParseInLocation(sqliteTimestampLayout, row.TS, time.UTC)
	if err != nil {
		return nil, fmt.Errorf("parse update log timestamp %q: %w", row.TS, err)
	}

	runID, err := uuid.Parse(row.RunID)
	if err != nil {
		return nil, fmt.Errorf("parse update log run id %q: %w", row.RunID, err)
	}

	return &data.UpdateLogEntry{
		RunID:     runID,
		Timestamp: ts,
		NewRows:   row.NewRows,
	}, nil
}

func (store *sqliteStore) countAll(ctx context.Context) (int, error) {
	count := 0
	err := store.db.QueryRowContext(ctx, "SELECT count(*) FROM short_positions").Scan(&count)
	return count, err
}

func (store *sqliteStore) countIssuers(ctx context.Context) (int, error) {
	count := 0
	err := store.db.QueryRowContext(ctx, "SELECT count(DISTINCT issuer_name) FROM short_positions").Scan(&count)
	return count, err
}

func (store *sqliteStore) isMissingTable(err error) bool {
	return err != nil && strings.Contains(err.Error(), "no such table")
}

func (store *sqliteStore) migrationURL() string {
	return "sqlite://" + store.path
}

func (store *sqliteStore) close() {
	if err := store.db.Close(); err != nil {
		log.Error().Err(err).Str("Path", store.path).Msg("error closing sqlite database")
	}
}
