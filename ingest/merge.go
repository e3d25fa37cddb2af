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
package ingest

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/penny-vault/ssrdata/data"
	"github.com/penny-vault/ssrdata/library"
	"github.com/penny-vault/ssrdata/ssr"
	"github.com/rs/zerolog"
)

// Fetcher downloads the raw short sale register
type Fetcher interface {
	Fetch(ctx context.Context, maxRetries int) ([]*data.Instrument, error)
}

// Store persists short positions and the update log
type Store interface {
	ReadAll(ctx context.Context) ([]*data.ShortPosition, error)
	AppendRecords(ctx context.Context, records []*data.ShortPosition) error
	AppendLogEntry(ctx context.Context, entry *data.UpdateLogEntry) error
}

// Merger appends the positions in the upstream register that are not already in
// the store
type Merger struct {
	fetcher    Fetcher
	store      Store
	maxRetries int
	now        func() time.Time

	mu sync.Mutex
}

type Option func(*Merger)

func WithMaxRetries(maxRetries int) Option {
	return func(m *Merger) { m.maxRetries = maxRetries }
}

func WithClock(now func() time.Time) Option {
	return func(m *Merger) { m.now = now }
}

func NewMerger(fetcher Fetcher, store Store, opts ...Option) *Merger {
	merger := &Merger{
		fetcher:    fetcher,
		store:      store,
		maxRetries: ssr.DefaultMaxRetries,
		now:        time.Now,
	}

	for _, opt := range opts {
		opt(merger)
	}

	return merger
}

// MergeUpdate fetches the register, appends positions whose (isin, date) key is
// not yet stored and records the run in the update log. A fetch that fails
// returns the error without writing a log entry.
func (merger *Merger) MergeUpdate(ctx context.Context) (int, error) {
	merger.mu.Lock()
	defer merger.mu.Unlock()

	runID := uuid.New()
	logger := zerolog.Ctx(ctx).With().Str("RunID", runID.String()).Logger()
	ctx = logger.WithContext(ctx)

	instruments, err := merger.fetcher.Fetch(ctx, merger.maxRetries)
	if err != nil {
		logger.Warn().Err(err).Msg("no data available from the short sale register")
		return 0, err
	}

	fresh := data.Normalize(instruments)

	existing, err := merger.store.ReadAll(ctx)
	if err != nil && !errors.Is(err, library.ErrNoData) {
		return 0, err
	}

	newRecords := Diff(existing, fresh)
	if skipped := countMissingISIN(fresh); skipped > 0 {
		logger.Warn().Int("NumSkipped", skipped).Msg("skipped short positions without an isin")
	}

	if unparsed := countRawDates(fresh); unparsed > 0 {
		logger.Warn().Int("NumUnparsed", unparsed).Msg("kept short positions with unparseable dates as raw text")
	}

	if err := merger.store.AppendRecords(ctx, newRecords); err != nil {
		return 0, err
	}

	entry := &data.UpdateLogEntry{
		RunID:     runID,
		Timestamp: merger.now(),
		NewRows:   len(newRecords),
	}

	if err := merger.store.AppendLogEntry(ctx, entry); err != nil {
		return 0, err
	}

	logger.Info().Int("NumFetched", len(fresh)).Int("NumExisting", len(existing)).Int("NumNew", len(newRecords)).Msg("merged short sale register")

	return len(newRecords), nil
}

// Diff returns the fresh positions whose key is neither in existing nor earlier
// in fresh. Positions without an isin are dropped.
func Diff(existing, fresh []*data.ShortPosition) []*data.ShortPosition {
	seen := make(map[data.PositionKey]struct{}, len(existing)+len(fresh))
	for _, position := range existing {
		seen[position.Key()] = struct{}{}
	}

	newRecords := make([]*data.ShortPosition, 0)
	for _, position := range fresh {
		if position.ISIN == "" {
			continue
		}

		key := position.Key()
		if _, ok := seen[key]; ok {
			continue
		}

		seen[key] = struct{}{}
		newRecords = append(newRecords, position)
	}

	return newRecords
}

func countMissingISIN(positions []*data.ShortPosition) int {
	count := 0
	for _, position := range positions {
		if position.ISIN == "" {
			count++
		}
	}
	return count
}

func countRawDates(positions []*data.ShortPosition) int {
	count := 0
	for _, position := range positions {
		if position.RawDate != "" {
			count++
		}
	}
	return count
}
