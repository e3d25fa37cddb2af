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
package cmd

import (
	"fmt"
	"os"

	"github.com/penny-vault/ssrdata/report"
	"github.com/rs/zerolog/log"
)

// emit prints rows as a terminal table, or saves them as CSV when a file name
// is given
func emit[T report.Row](headers []string, rows []T, csvFN string) {
	if csvFN == "" {
		fmt.Println(report.Table(headers, rows))
		return
	}

	fh, err := os.Create(csvFN)
	if err != nil {
		log.Fatal().Err(err).Str("FileName", csvFN).Msg("could not create csv file")
	}
	defer fh.Close()

	if err := report.WriteCSV(fh, rows); err != nil {
		log.Fatal().Err(err).Str("FileName", csvFN).Msg("could not write csv file")
	}

	log.Info().Str("FileName", csvFN).Int("NumRecords", len(rows)).Msg("saved csv")
}
