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
package healthcheck

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-resty/resty/v2"
)

var (
	ErrStatus = errors.New("status code is invalid")
)

// Ping reports the outcome of an ingestion run to a healthchecks.io style ping
// URL. Failed runs are reported on the /fail endpoint. An empty URL disables
// monitoring.
func Ping(ctx context.Context, pingURL string, runErr error, message string) error {
	if pingURL == "" {
		return nil
	}

	url := strings.TrimSuffix(pingURL, "/")
	body := message
	if runErr != nil {
		url += "/fail"
		body = runErr.Error()
	}

	client := resty.New()
	resp, err := client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "text/plain").
		SetBody(body).
		Post(url)

	if err != nil {
		return err
	}

	if resp.StatusCode() != 200 {
		return fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode())
	}

	return nil
}
