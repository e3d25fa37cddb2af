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
package report

import (
	"io"
	"math"
	"strconv"

	"github.com/gocarina/gocsv"
	"github.com/penny-vault/ssrdata/analytics"
	"github.com/penny-vault/ssrdata/data"
)

// Row is a record that can be rendered as a table row
type Row interface {
	Cells() []string
}

type PositionRow struct {
	ISIN         string `csv:"isin"`
	IssuerName   string `csv:"issuerName"`
	Date         string `csv:"date"`
	ShortPercent string `csv:"shortPercent"`
	Shares       string `csv:"shares"`
}

var PositionHeaders = []string{"ISIN", "Issuer", "Date", "Short %", "Shares"}

func (row *PositionRow) Cells() []string {
	return []string{row.ISIN, row.IssuerName, row.Date, row.ShortPercent, row.Shares}
}

type ChangeRow struct {
	Issuer       string `csv:"issuerName"`
	PreviousDate string `csv:"previousDate"`
	Date         string `csv:"date"`
	Previous     string `csv:"previousShortPercent"`
	ShortPercent string `csv:"shortPercent"`
	Change       string `csv:"change"`
}

var ChangeHeaders = []string{"Issuer", "Previous Date", "Date", "Previous %", "Short %", "Change"}

func (row *ChangeRow) Cells() []string {
	return []string{row.Issuer, row.PreviousDate, row.Date, row.Previous, row.ShortPercent, row.Change}
}

type AlertRow struct {
	Issuer       string `csv:"issuerName"`
	Date         string `csv:"date"`
	ShortPercent string `csv:"shortPercent"`
	Previous     string `csv:"previousShortPercent"`
}

var AlertHeaders = []string{"Issuer", "Date", "Short %", "Previous %"}

func (row *AlertRow) Cells() []string {
	return []string{row.Issuer, row.Date, row.ShortPercent, row.Previous}
}

type PressureRow struct {
	Issuer    string `csv:"issuerName"`
	Mean      string `csv:"shortPercent"`
	Change    string `csv:"change"`
	Score     string `csv:"shortPressureIndex"`
	Direction string `csv:"direction"`
}

var PressureHeaders = []string{"Issuer", "Mean Short %", "Change", "Short Pressure Index", "Direction"}

func (row *PressureRow) Cells() []string {
	return []string{row.Issuer, row.Mean, row.Change, row.Score, row.Direction}
}

type HistoryRow struct {
	Issuer       string `csv:"issuerName"`
	Date         string `csv:"date"`
	ShortPercent string `csv:"shortPercent"`
	Change       string `csv:"change"`
}

var HistoryHeaders = []string{"Issuer", "Date", "Short %", "Daily Change"}

func (row *HistoryRow) Cells() []string {
	return []string{row.Issuer, row.Date, row.ShortPercent, row.Change}
}

func Positions(records []*data.ShortPosition) []*PositionRow {
	rows := make([]*PositionRow, 0, len(records))
	for _, record := range records {
		row := &PositionRow{
			ISIN:       record.ISIN,
			IssuerName: record.IssuerName,
			Date:       record.Key().Date,
		}

		if record.ShortPercent != nil {
			row.ShortPercent = formatFloat(*record.ShortPercent)
		}

		if record.Shares != nil {
			row.Shares = strconv.FormatInt(*record.Shares, 10)
		}

		rows = append(rows, row)
	}
	return rows
}

func Changes(changes []*analytics.Change) []*ChangeRow {
	rows := make([]*ChangeRow, 0, len(changes))
	for _, change := range changes {
		rows = append(rows, &ChangeRow{
			Issuer:       change.Issuer,
			PreviousDate: data.FormatDate(change.PreviousDate),
			Date:         data.FormatDate(change.Date),
			Previous:     formatFloat(change.Previous),
			ShortPercent: formatFloat(change.ShortPercent),
			Change:       formatFloat(change.Change),
		})
	}
	return rows
}

func Alerts(alerts []*analytics.Alert) []*AlertRow {
	rows := make([]*AlertRow, 0, len(alerts))
	for _, alert := range alerts {
		rows = append(rows, &AlertRow{
			Issuer:       alert.Issuer,
			Date:         data.FormatDate(alert.Date),
			ShortPercent: formatFloat(alert.ShortPercent),
			Previous:     formatFloat(alert.Previous),
		})
	}
	return rows
}

func Pressures(ranking []*analytics.Pressure) []*PressureRow {
	rows := make([]*PressureRow, 0, len(ranking))
	for _, pressure := range ranking {
		direction := "falling"
		if pressure.Rising() {
			direction = "rising"
		}

		rows = append(rows, &PressureRow{
			Issuer:    pressure.Issuer,
			Mean:      formatFloat(pressure.Mean),
			Change:    formatFloat(pressure.Change),
			Score:     formatFloat(pressure.Score),
			Direction: direction,
		})
	}
	return rows
}

// History joins an aggregated series with its daily changes
func History(series []*analytics.IssuerDay, daily []*analytics.DailyChange) []*HistoryRow {
	type issuerDate struct {
		issuer string
		date   string
	}

	changeOn := make(map[issuerDate]float64, len(daily))
	for _, change := range daily {
		changeOn[issuerDate{change.Issuer, data.FormatDate(change.Date)}] = change.Change
	}

	rows := make([]*HistoryRow, 0, len(series))
	for _, obs := range series {
		date := data.FormatDate(obs.Date)
		row := &HistoryRow{
			Issuer:       obs.Issuer,
			Date:         date,
			ShortPercent: formatFloat(obs.ShortPercent),
		}

		if change, ok := changeOn[issuerDate{obs.Issuer, date}]; ok {
			row.Change = formatFloat(change)
		}

		rows = append(rows, row)
	}
	return rows
}

// WriteCSV writes a slice of row structs as CSV with a header line
func WriteCSV(w io.Writer, rows any) error {
	return gocsv.Marshal(rows, w)
}

// formatFloat renders NaN as an empty cell
func formatFloat(val float64) string {
	if math.IsNaN(val) {
		return ""
	}
	return strconv.FormatFloat(val, 'f', 2, 64)
}
