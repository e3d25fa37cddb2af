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
package data

import (
	"time"

	"github.com/google/uuid"
)

const DateLayout = "2006-01-02"

// Instrument is a security in the short sale register export along with every
// short position event that has been disclosed for it
type Instrument struct {
	ISIN       string   `json:"isin"`
	IssuerName string   `json:"issuerName"`
	Events     []*Event `json:"events"`
}

// Event is a single disclosure of the aggregate net short position in an instrument
type Event struct {
	Date         string   `json:"date"`
	ShortPercent *float64 `json:"shortPercent"`
	Shares       *float64 `json:"shares"`
}

// ShortPosition is a flattened instrument event. Empty strings, the zero date and
// nil pointers represent values that were missing in the upstream feed. RawDate
// holds the upstream date text when it could not be parsed.
type ShortPosition struct {
	ISIN         string
	IssuerName   string
	Date         time.Time
	RawDate      string
	ShortPercent *float64
	Shares       *int64
}

// PositionKey is the natural key of a short position
type PositionKey struct {
	ISIN string
	Date string
}

// Key returns the (isin, date) pair used to deduplicate positions. Unparseable
// dates are keyed on their raw text.
func (position *ShortPosition) Key() PositionKey {
	date := FormatDate(position.Date)
	if date == "" {
		date = position.RawDate
	}

	return PositionKey{
		ISIN: position.ISIN,
		Date: date,
	}
}

// UpdateLogEntry records a single ingestion run
type UpdateLogEntry struct {
	RunID     uuid.UUID
	Timestamp time.Time
	NewRows   int
}

// FormatDate renders a calendar date, the zero time renders as an empty string
func FormatDate(date time.Time) string {
	if date.IsZero() {
		return ""
	}

	return date.Format(DateLayout)
}

// ParseDate parses the date formats used by the short sale register. The zero
// time is returned when the string is empty or cannot be parsed.
func ParseDate(dateStr string) time.Time {
	if dateStr == "" {
		return time.Time{}
	}

	for _, layout := range []string{DateLayout, "2006-01-02T15:04:05", time.RFC3339Nano} {
		if parsed, err := time.Parse(layout, dateStr); err == nil {
			return time.Date(parsed.Year(), parsed.Month(), parsed.Day(), 0, 0, 0, 0, time.UTC)
		}
	}

	return time.Time{}
}
