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
package ssr_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/ssrdata/ssr"
)

const registerJSON = `[
  {
    "isin": "NO0010096985",
    "issuerName": "Equinor ASA",
    "events": [
      {"date": "2024-10-01T00:00:00", "shortPercent": 0.61, "shares": 1234567},
      {"date": "2024-10-02T00:00:00", "shortPercent": 0.72, "shares": 2345678}
    ]
  },
  {"isin": "NO0003054108", "issuerName": "Mowi ASA", "events": []}
]`

var _ = Describe("Client", func() {
	var (
		server   *httptest.Server
		requests atomic.Int32
		failures atomic.Int32
		body     atomic.Value
		now      time.Time
		client   *ssr.Client
		ctx      context.Context
	)

	BeforeEach(func() {
		ctx = context.Background()
		requests.Store(0)
		failures.Store(0)
		body.Store(registerJSON)
		now = time.Date(2024, 10, 18, 12, 0, 0, 0, time.UTC)

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			count := requests.Add(1)
			if count <= failures.Load() {
				w.WriteHeader(http.StatusServiceUnavailable)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(body.Load().(string)))
		}))

		client = ssr.New(
			ssr.WithURL(server.URL),
			ssr.WithBackoff(time.Millisecond),
			ssr.WithTimeout(5*time.Second),
			ssr.WithClock(func() time.Time { return now }),
		)
	})

	AfterEach(func() {
		server.Close()
	})

	It("decodes the register export", func() {
		instruments, err := client.Fetch(ctx, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(instruments).To(HaveLen(2))
		Expect(instruments[0].ISIN).To(Equal("NO0010096985"))
		Expect(instruments[0].Events).To(HaveLen(2))
		Expect(*instruments[0].Events[1].ShortPercent).To(BeNumerically("~", 0.72, 1e-9))
		Expect(instruments[1].Events).To(BeEmpty())
	})

	It("serves repeated calls from the cache until the ttl expires", func() {
		_, err := client.Fetch(ctx, 3)
		Expect(err).NotTo(HaveOccurred())
		_, err = client.Fetch(ctx, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(requests.Load()).To(Equal(int32(1)))

		now = now.Add(59 * time.Minute)
		_, err = client.Fetch(ctx, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(requests.Load()).To(Equal(int32(1)))

		now = now.Add(2 * time.Minute)
		_, err = client.Fetch(ctx, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(requests.Load()).To(Equal(int32(2)))
	})

	It("keys the cache by the retry count only", func() {
		_, err := client.Fetch(ctx, 3)
		Expect(err).NotTo(HaveOccurred())
		_, err = client.Fetch(ctx, 2)
		Expect(err).NotTo(HaveOccurred())
		Expect(requests.Load()).To(Equal(int32(2)))

		client.Invalidate()
		_, err = client.Fetch(ctx, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(requests.Load()).To(Equal(int32(3)))
	})

	It("retries failed attempts", func() {
		failures.Store(2)
		instruments, err := client.Fetch(ctx, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(instruments).To(HaveLen(2))
		Expect(requests.Load()).To(Equal(int32(3)))
	})

	It("reports a failed fetch after exhausting retries and does not cache it", func() {
		failures.Store(100)
		instruments, err := client.Fetch(ctx, 3)
		Expect(err).To(MatchError(ssr.ErrFetchFailed))
		Expect(instruments).To(BeEmpty())
		Expect(requests.Load()).To(Equal(int32(3)))

		failures.Store(0)
		requests.Store(0)
		instruments, err = client.Fetch(ctx, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(instruments).To(HaveLen(2))
	})

	It("treats malformed payloads as failed attempts", func() {
		body.Store(`{"not": "an array"`)
		_, err := client.Fetch(ctx, 2)
		Expect(err).To(MatchError(ssr.ErrFetchFailed))
		Expect(requests.Load()).To(Equal(int32(2)))
	})

	It("distinguishes an empty register from a failed fetch", func() {
		body.Store(`[]`)
		instruments, err := client.Fetch(ctx, 3)
		Expect(err).NotTo(HaveOccurred())
		Expect(instruments).To(BeEmpty())
	})

	It("stops waiting for the backoff when the context is cancelled", func() {
		failures.Store(100)
		slow := ssr.New(ssr.WithURL(server.URL), ssr.WithBackoff(time.Hour))
		cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
		defer cancel()

		_, err := slow.Fetch(cancelCtx, 3)
		Expect(err).To(MatchError(ssr.ErrFetchFailed))
		Expect(err).To(MatchError(context.DeadlineExceeded))
	})
})
