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
	"strings"
	"time"

	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/penny-vault/ssrdata/data"
	"github.com/rs/zerolog/log"
)

type postgresStore struct {
	dbURL string
	Pool  *pgxpool.Pool
}

type postgresPosition struct {
	ISIN         string     `db:"isin"`
	IssuerName   *string    `db:"issuer_name"`
	EventDate    *time.Time `db:"event_date"`
	RawDate      *string    `db:"raw_date"`
	ShortPercent *float64   `db:"short_percent"`
	Shares       *int64     `db:"shares"`
}

type postgresLogEntry struct {
	RunID   string    `db:"run_id"`
	TS      time.Time `db:"ts"`
	NewRows int       `db:"new_rows"`
}

func openPostgres(ctx context.Context, dbURL string) (*postgresStore, error) {
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &postgresStore{
		dbURL: dbURL,
		Pool:  pool,
	}, nil
}

func (store *postgresStore) appendRecords(ctx context.Context, records []*data.ShortPosition) error {
	conn, err := store.Pool.Acquire(ctx)
	if err != nil {
		return err
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return err
	}

	defer func() {
		if err := tx.Rollback(ctx); err != nil {
			if !errors.Is(err, pgx.ErrTxClosed) {
				log.Error().Err(err).Msg("error rollingback tx")
			}
		}
	}()

	_, err = tx.CopyFrom(ctx, pgx.Identifier{"short_positions"},
		[]string{"isin", "issuer_name", "event_date", "raw_date", "short_percent", "shares"},
		pgx.CopyFromSlice(len(records), func(idx int) ([]any, error) {
			record := records[idx]

			var eventDate any
			if !record.Date.IsZero() {
				eventDate = record.Date
			}

			return []any{record.ISIN, nullString(record.IssuerName), eventDate,
				nullString(record.RawDate), nullFloat(record.ShortPercent), nullInt(record.Shares)}, nil
		}))
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func (store *postgresStore) readAll(ctx context.Context) ([]*data.ShortPosition, error) {
	var rows []*postgresPosition
	if err := pgxscan.Select(ctx, store.Pool, &rows, `SELECT isin, issuer_name, event_date,
	raw_date, short_percent, shares FROM short_positions ORDER BY id`); err != nil {
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
			record.Date = time.Date(row.EventDate.Year(), row.EventDate.Month(), row.EventDate.Day(), 0, 0, 0, 0, time.UTC)
		}

		if row.RawDate != nil {
			record.RawDate = *row.RawDate
		}

		records = append(records, record)
	}

	return records, nil
}

func (store *postgresStore) appendLogEntry(ctx context.Context, entry *data.UpdateLogEntry) error {
	_, err := store.Pool.Exec(ctx, `INSERT INTO updates_log ("run_id", "ts", "new_rows") VALUES ($1, $2, $3)`,
		entry.RunID.String(), entry.Timestamp, entry.NewRows)
	return err
}

func (store *postgresStore) latestLogEntry(ctx context.Context) (*data.UpdateLogEntry, error) {
	row := postgresLogEntry{}
	err := pgxscan.Get(ctx, store.Pool, &row, `SELECT run_id::text AS run_id, ts, new_rows
	FROM updates_log ORDER BY ts DESC LIMIT 1`)
	if err != nil {
		if pgxscan.NotFound(err) {
			return nil, nil
		}
		return nil, err
	}

	runID, err := uuid.Parse(row.RunID)
	if err != nil {
		return nil, err
	}

	return &data.UpdateLogEntry{
		RunID:     runID,
		Timestamp: row.TS,
		NewRows:   row.NewRows,
	}, nil
}

func (store *postgresStore) countAll(ctx context.Context) (int, error) {
	count := 0
	err := store.Pool.QueryRow(ctx, "SELECT count(*) FROM short_positions").Scan(&count)
	return count, err
}

func (store *postgresStore) countIssuers(ctx context.Context) (int, error) {
	count := 0
	err := store.Pool.QueryRow(ctx, "SELECT count(DISTINCT issuer_name) FROM short_positions").Scan(&count)
	return count, err
}

func (store *postgresStore) isMissingTable(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UndefinedTable
}

// migrationURL rewrites the connection string for golang-migrate's pgx/v5 driver
func (store *postgresStore) migrationURL() string {
	dbURL := strings.Replace(store.dbURL, "postgresql://", "pgx5://", 1)
	return strings.Replace(dbURL, "postgres://", "pgx5://", 1)
}

func (store *postgresStore) close() {
	store.Pool.Close()
}
