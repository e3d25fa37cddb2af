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
	"fmt"
	"net/url"
	"strings"

	"github.com/xeonx/timeago"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Summary returns a description of the library in markdown
func (myLibrary *Library) Summary(ctx context.Context) (string, error) {
	p := message.NewPrinter(language.English)
	builder := strings.Builder{}

	if _, err := builder.WriteString("# Short Sale Register\n"); err != nil {
		return "", err
	}

	if _, err := builder.WriteString("## Details\n\n"); err != nil {
		return "", err
	}

	// Database connection string
	if _, err := builder.WriteString(fmt.Sprintf("Database: %s\n\n", redact(myLibrary.DBUrl))); err != nil {
		return "", err
	}

	// Total record count
	totalRecords, err := myLibrary.CountAll(ctx)
	if err != nil {
		return "", err
	}

	if _, err := builder.WriteString(p.Sprintf("  * Total Records: %d\n", totalRecords)); err != nil {
		return "", err
	}

	// Issuer count
	totalIssuers, err := myLibrary.TotalIssuers(ctx)
	if err != nil {
		return "", err
	}

	if _, err := builder.WriteString(p.Sprintf("  * Issuers Tracked: %d\n\n", totalIssuers)); err != nil {
		return "", err
	}

	// Last update
	lastUpdate, err := myLibrary.LatestLogEntry(ctx)
	if err != nil {
		return "", err
	}

	if lastUpdate == nil {
		if _, err := builder.WriteString("Last Updated: Never\n\n"); err != nil {
			return "", err
		}
		return builder.String(), nil
	}

	age := timeago.English.Format(lastUpdate.Timestamp)
	if _, err := builder.WriteString(p.Sprintf("Last Updated: %s (%s), %d new records\n\n", age,
		lastUpdate.Timestamp.Local().Format("2006-01-02 15:04:05"), lastUpdate.NewRows)); err != nil {
		return "", err
	}

	return builder.String(), nil
}

// redact hides the password in connection strings
func redact(dbURL string) string {
	if !strings.Contains(dbURL, "://") {
		return dbURL
	}

	parsed, err := url.Parse(dbURL)
	if err != nil {
		return dbURL
	}

	return parsed.Redacted()
}
