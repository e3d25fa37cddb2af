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
// Package analytics derives leaderboards, deltas and alerts from stored short
// positions. Every function is pure: inputs are never modified and empty input
// yields an empty result.
package analytics

import (
	"slices"
	"strings"
	"time"

	"github.com/penny-vault/ssrdata/data"
)

// IssuerDay is the total short percent of an issuer on one date, summed across
// all of the issuer's instruments
type IssuerDay struct {
	Issuer       string
	Date         time.Time
	ShortPercent float64
}

type issuerDate struct {
	issuer string
	date   string
}

// Aggregate groups positions by (issuer, date) and sums the short percent. Rows
// missing an issuer, date or percent are dropped. The result is sorted by issuer
// and date.
func Aggregate(records []*data.ShortPosition) []*IssuerDay {
	groups := make(map[issuerDate]*IssuerDay)
	series := make([]*IssuerDay, 0)

	for _, record := range records {
		if record == nil || record.IssuerName == "" || record.Date.IsZero() || record.ShortPercent == nil {
			continue
		}

		key := issuerDate{issuer: record.IssuerName, date: data.FormatDate(record.Date)}
		if group, ok := groups[key]; ok {
			group.ShortPercent += *record.ShortPercent
			continue
		}

		group := &IssuerDay{
			Issuer:       record.IssuerName,
			Date:         record.Date,
			ShortPercent: *record.ShortPercent,
		}
		groups[key] = group
		series = append(series, group)
	}

	slices.SortStableFunc(series, compareIssuerDay)

	return series
}

func compareIssuerDay(a, b *IssuerDay) int {
	if c := strings.Compare(a.Issuer, b.Issuer); c != 0 {
		return c
	}
	return a.Date.Compare(b.Date)
}

// byIssuer splits a sorted aggregate series into per-issuer runs, preserving
// issuer order
func byIssuer(series []*IssuerDay) [][]*IssuerDay {
	runs := make([][]*IssuerDay, 0)
	start := 0
	for idx := 1; idx <= len(series); idx++ {
		if idx == len(series) || series[idx].Issuer != series[start].Issuer {
			runs = append(runs, series[start:idx])
			start = idx
		}
	}
	return runs
}

// Issuers returns the distinct issuer names in records, sorted
func Issuers(records []*data.ShortPosition) []string {
	issuers := make([]string, 0)
	for _, record := range records {
		if record != nil && record.IssuerName != "" {
			issuers = append(issuers, record.IssuerName)
		}
	}

	slices.Sort(issuers)
	return slices.Compact(issuers)
}

// Filter narrows records to those whose issuer or isin contains query (case
// insensitive). When issuers is not empty only records for those issuers are
// kept.
func Filter(records []*data.ShortPosition, query string, issuers []string) []*data.ShortPosition {
	query = strings.ToLower(strings.TrimSpace(query))

	selected := make(map[string]struct{}, len(issuers))
	for _, issuer := range issuers {
		selected[issuer] = struct{}{}
	}

	filtered := make([]*data.ShortPosition, 0)
	for _, record := range records {
		if record == nil {
			continue
		}

		if query != "" &&
			!strings.Contains(strings.ToLower(record.IssuerName), query) &&
			!strings.Contains(strings.ToLower(record.ISIN), query) {
			continue
		}

		if len(selected) > 0 {
			if _, ok := selected[record.IssuerName]; !ok {
				continue
			}
		}

		filtered = append(filtered, record)
	}

	return filtered
}
