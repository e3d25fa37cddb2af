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

import "math"

// Normalize flattens the instrument/event tree into one short position per event.
// Instrument order and event order are preserved and missing values are passed
// through untouched; filtering incomplete rows is left to the consumer. Dates
// that cannot be parsed keep their original text in RawDate.
func Normalize(instruments []*Instrument) []*ShortPosition {
	positions := make([]*ShortPosition, 0, len(instruments))

	for _, instrument := range instruments {
		if instrument == nil {
			continue
		}

		for _, event := range instrument.Events {
			if event == nil {
				continue
			}

			position := &ShortPosition{
				ISIN:       instrument.ISIN,
				IssuerName: instrument.IssuerName,
				Date:       ParseDate(event.Date),
			}

			if position.Date.IsZero() {
				position.RawDate = event.Date
			}

			if event.ShortPercent != nil {
				pct := *event.ShortPercent
				position.ShortPercent = &pct
			}

			if event.Shares != nil {
				shares := int64(math.Round(*event.Shares))
				position.Shares = &shares
			}

			positions = append(positions, position)
		}
	}

	return positions
}
