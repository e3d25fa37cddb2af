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
package analytics

import (
	"math"
	"slices"
	"time"

	"github.com/penny-vault/ssrdata/data"
)

const DefaultThreshold = 0.5

// Change is the difference between an issuer's two most recent observations
type Change struct {
	Issuer       string
	Date         time.Time
	PreviousDate time.Time
	ShortPercent float64
	Previous     float64
	Change       float64
}

// LargestChanges compares each issuer's latest observation with the one
// immediately before it. Issuers with a single observation are left out. Results
// are ordered by the absolute size of the change, largest first.
func LargestChanges(records []*data.ShortPosition) []*Change {
	changes := make([]*Change, 0)

	for _, run := range byIssuer(Aggregate(records)) {
		if len(run) < 2 {
			continue
		}

		latest := run[len(run)-1]
		previous := run[len(run)-2]

		changes = append(changes, &Change{
			Issuer:       latest.Issuer,
			Date:         latest.Date,
			PreviousDate: previous.Date,
			ShortPercent: latest.ShortPercent,
			Previous:     previous.ShortPercent,
			Change:       latest.ShortPercent - previous.ShortPercent,
		})
	}

	slices.SortStableFunc(changes, func(a, b *Change) int {
		return compareDesc(math.Abs(a.Change), math.Abs(b.Change))
	})

	return changes
}

// Alert flags an issuer whose latest short percent has reached the threshold
type Alert struct {
	Issuer       string
	Date         time.Time
	ShortPercent float64

	// Previous is NaN when the issuer has no earlier observation
	Previous float64
}

// HasPrevious reports whether the issuer had an observation before the alert
func (alert *Alert) HasPrevious() bool {
	return !math.IsNaN(alert.Previous)
}

// NewPositions returns the issuers whose latest short percent is at or above
// threshold while the previous observation, if any, was below it. Alerts are
// ordered by date (newest first) and then by short percent (largest first).
func NewPositions(records []*data.ShortPosition, threshold float64) []*Alert {
	alerts := make([]*Alert, 0)

	for _, run := range byIssuer(Aggregate(records)) {
		latest := run[len(run)-1]
		if latest.ShortPercent < threshold {
			continue
		}

		previous := math.NaN()
		if len(run) > 1 {
			previous = run[len(run)-2].ShortPercent
			if previous >= threshold {
				continue
			}
		}

		alerts = append(alerts, &Alert{
			Issuer:       latest.Issuer,
			Date:         latest.Date,
			ShortPercent: latest.ShortPercent,
			Previous:     previous,
		})
	}

	slices.SortStableFunc(alerts, func(a, b *Alert) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		return compareDesc(a.ShortPercent, b.ShortPercent)
	})

	return alerts
}

// DailyChange is the movement of an issuer's short percent since its previous
// observation
type DailyChange struct {
	Issuer string
	Date   time.Time
	Change float64
}

// DailyChanges returns the change between consecutive observations for every
// issuer in an aggregated series. The first observation of an issuer has a
// change of 0.
func DailyChanges(series []*IssuerDay) []*DailyChange {
	sorted := slices.Clone(series)
	slices.SortStableFunc(sorted, compareIssuerDay)

	changes := make([]*DailyChange, 0, len(sorted))
	for _, run := range byIssuer(sorted) {
		for idx, obs := range run {
			change := 0.0
			if idx > 0 {
				change = obs.ShortPercent - run[idx-1].ShortPercent
			}

			changes = append(changes, &DailyChange{
				Issuer: obs.Issuer,
				Date:   obs.Date,
				Change: change,
			})
		}
	}

	return changes
}

// compareDesc orders larger values first
func compareDesc(a, b float64) int {
	switch {
	case a > b:
		return -1
	case a < b:
		return 1
	default:
		return 0
	}
}
