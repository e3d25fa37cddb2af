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

const (
	DefaultWindowDays = 30
	DefaultTopN       = 10

	magnitudeWeight = 0.7
	trendWeight     = 3.0
)

// Pressure ranks an issuer by its mean short percent over a window
type Pressure struct {
	Issuer string
	Mean   float64

	// Change is the short percent on the last date of the window minus the short
	// percent on the first date. It is NaN when the issuer was not reported on
	// both dates.
	Change float64

	// Score is the Short Pressure Index, clipped to [0, 100]. It is NaN whenever
	// Change is NaN.
	Score float64
}

// Scored reports whether a Short Pressure Index could be computed
func (pressure *Pressure) Scored() bool {
	return !math.IsNaN(pressure.Score)
}

// Rising reports whether short interest grew over the window
func (pressure *Pressure) Rising() bool {
	return pressure.Change > 0
}

// PressureIndex blends the magnitude and trend of short interest into a score
// between 0 and 100
func PressureIndex(mean, change float64) float64 {
	score := mean*magnitudeWeight + change*trendWeight
	if math.IsNaN(score) {
		return math.NaN()
	}
	return math.Min(math.Max(score, 0), 100)
}

// TopN returns the n issuers with the highest mean short percent over the
// windowDays days up to asOf. Ties keep the issuer order of the aggregated
// series. Each entry carries the change between the first and last date of the
// window and the resulting Short Pressure Index.
func TopN(records []*data.ShortPosition, windowDays, n int, asOf time.Time) []*Pressure {
	if n <= 0 {
		return []*Pressure{}
	}

	windowDays = max(windowDays, 0)
	today := time.Date(asOf.Year(), asOf.Month(), asOf.Day(), 0, 0, 0, 0, time.UTC)
	cutoff := today.AddDate(0, 0, -windowDays)

	window := make([]*IssuerDay, 0)
	for _, obs := range Aggregate(records) {
		if !obs.Date.Before(cutoff) {
			window = append(window, obs)
		}
	}

	ranking := make([]*Pressure, 0)
	runs := make(map[string][]*IssuerDay)
	for _, run := range byIssuer(window) {
		total := 0.0
		for _, obs := range run {
			total += obs.ShortPercent
		}

		issuer := run[0].Issuer
		runs[issuer] = run
		ranking = append(ranking, &Pressure{
			Issuer: issuer,
			Mean:   total / float64(len(run)),
		})
	}

	slices.SortStableFunc(ranking, func(a, b *Pressure) int {
		return compareDesc(a.Mean, b.Mean)
	})

	if len(ranking) > n {
		ranking = ranking[:n]
	}

	// window endpoints are shared by every ranked issuer
	var first, last time.Time
	for _, pressure := range ranking {
		for _, obs := range runs[pressure.Issuer] {
			if first.IsZero() || obs.Date.Before(first) {
				first = obs.Date
			}
			if obs.Date.After(last) {
				last = obs.Date
			}
		}
	}

	for _, pressure := range ranking {
		firstValue, hasFirst := valueOn(runs[pressure.Issuer], first)
		lastValue, hasLast := valueOn(runs[pressure.Issuer], last)

		pressure.Change = math.NaN()
		if hasFirst && hasLast {
			pressure.Change = lastValue - firstValue
		}
		pressure.Score = PressureIndex(pressure.Mean, pressure.Change)
	}

	return ranking
}

// Scored drops the entries without a Short Pressure Index
func Scored(ranking []*Pressure) []*Pressure {
	scored := make([]*Pressure, 0, len(ranking))
	for _, pressure := range ranking {
		if pressure.Scored() {
			scored = append(scored, pressure)
		}
	}
	return scored
}

func valueOn(run []*IssuerDay, date time.Time) (float64, bool) {
	for _, obs := range run {
		if obs.Date.Equal(date) {
			return obs.ShortPercent, true
		}
	}
	return 0, false
}
