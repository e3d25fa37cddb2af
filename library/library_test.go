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
package library_test

import (
	"context"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/penny-vault/ssrdata/data"
	"github.com/penny-vault/ssrdata/library"
)

func pct(v float64) *float64 {
	return &v
}

func shares(v int64) *int64 {
	return &v
}

func day(year int, month time.Month, dayOfMonth int) time.Time {
	return time.Date(year, month, dayOfMonth, 0, 0, 0, 0, time.UTC)
}

// libraryBehaviour exercises the store contract against a freshly created database
func libraryBehaviour(openURL func() string) {
	var (
		ctx       context.Context
		myLibrary *library.Library
	)

	BeforeEach(func() {
		ctx = context.Background()

		var err error
		myLibrary, err = library.Open(ctx, openURL())
		Expect(err).NotTo(HaveOccurred())
	})

	AfterEach(func() {
		Expect(myLibrary.Reset()).To(Succeed())
		myLibrary.Close()
	})

	Context("before the schema exists", func() {
		It("reports that there is no data yet", func() {
			_, err := myLibrary.ReadAll(ctx)
			Expect(err).To(MatchError(library.ErrNoData))
		})

		It("counts zero rows and has no update log", func() {
			count, err := myLibrary.CountAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(0))

			entry, err := myLibrary.LatestLogEntry(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(entry).To(BeNil())
		})

		It("fails to write", func() {
			err := myLibrary.AppendRecords(ctx, []*data.ShortPosition{{ISIN: "NO0000000001"}})
			Expect(err).To(MatchError(library.ErrStore))
		})
	})

	Context("after migrating", func() {
		BeforeEach(func() {
			Expect(myLibrary.Migrate()).To(Succeed())
			Expect(myLibrary.Migrate()).To(Succeed())
		})

		It("starts empty", func() {
			records, err := myLibrary.ReadAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})

		It("treats an empty append as a no-op", func() {
			Expect(myLibrary.AppendRecords(ctx, nil)).To(Succeed())
			count, err := myLibrary.CountAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(0))
		})

		It("stores positions including missing values", func() {
			records := []*data.ShortPosition{
				{ISIN: "NO0010096985", IssuerName: "Equinor ASA", Date: day(2024, 10, 1), ShortPercent: pct(0.61), Shares: shares(1234567)},
				{ISIN: "NO0010096985", IssuerName: "Equinor ASA", Date: day(2024, 10, 2), ShortPercent: pct(0.72), Shares: shares(2345678)},
				{ISIN: "NO0003054108"},
			}
			Expect(myLibrary.AppendRecords(ctx, records)).To(Succeed())

			stored, err := myLibrary.ReadAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(ConsistOf(records))

			count, err := myLibrary.CountAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(3))

			issuers, err := myLibrary.TotalIssuers(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(issuers).To(Equal(1))
		})

		It("reads positions back in insertion order with raw dates", func() {
			records := []*data.ShortPosition{
				{ISIN: "NO0010209331", IssuerName: "Aker BP ASA", Date: day(2024, 10, 3), ShortPercent: pct(0.9)},
				{ISIN: "NO0003054108", IssuerName: "Mowi ASA", RawDate: "01.10.2024", ShortPercent: pct(0.5)},
				{ISIN: "NO0010096985", IssuerName: "Equinor ASA", Date: day(2024, 10, 1), ShortPercent: pct(0.61)},
			}
			Expect(myLibrary.AppendRecords(ctx, records[:2])).To(Succeed())
			Expect(myLibrary.AppendRecords(ctx, records[2:])).To(Succeed())

			stored, err := myLibrary.ReadAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(stored).To(Equal(records))
			Expect(stored[1].Key()).To(Equal(data.PositionKey{ISIN: "NO0003054108", Date: "01.10.2024"}))
		})

		It("allows repeated keys since the store is append only", func() {
			record := &data.ShortPosition{ISIN: "NO0010096985", IssuerName: "Equinor ASA", Date: day(2024, 10, 1), ShortPercent: pct(0.61)}
			Expect(myLibrary.AppendRecords(ctx, []*data.ShortPosition{record})).To(Succeed())
			Expect(myLibrary.AppendRecords(ctx, []*data.ShortPosition{record})).To(Succeed())

			count, err := myLibrary.CountAll(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(count).To(Equal(2))
		})

		It("returns the most recent update log entry", func() {
			first := &data.UpdateLogEntry{RunID: uuid.New(), Timestamp: time.Date(2024, 10, 1, 8, 0, 0, 0, time.UTC), NewRows: 10}
			second := &data.UpdateLogEntry{RunID: uuid.New(), Timestamp: time.Date(2024, 10, 2, 8, 0, 0, 0, time.UTC), NewRows: 0}

			Expect(myLibrary.AppendLogEntry(ctx, second)).To(Succeed())
			Expect(myLibrary.AppendLogEntry(ctx, first)).To(Succeed())

			entry, err := myLibrary.LatestLogEntry(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(entry).NotTo(BeNil())
			Expect(entry.RunID).To(Equal(second.RunID))
			Expect(entry.Timestamp.Equal(second.Timestamp)).To(BeTrue())
			Expect(entry.NewRows).To(Equal(0))

			lastUpdated, err := myLibrary.LastUpdated(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(lastUpdated.Equal(second.Timestamp)).To(BeTrue())
		})

		It("summarizes the library", func() {
			summary, err := myLibrary.Summary(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary).To(ContainSubstring("Total Records: 0"))
			Expect(summary).To(ContainSubstring("Last Updated: Never"))

			Expect(myLibrary.AppendRecords(ctx, []*data.ShortPosition{
				{ISIN: "NO0010096985", IssuerName: "Equinor ASA", Date: day(2024, 10, 1), ShortPercent: pct(0.61)},
			})).To(Succeed())
			Expect(myLibrary.AppendLogEntry(ctx, &data.UpdateLogEntry{RunID: uuid.New(), Timestamp: time.Now(), NewRows: 1})).To(Succeed())

			summary, err = myLibrary.Summary(ctx)
			Expect(err).NotTo(HaveOccurred())
			Expect(summary).To(ContainSubstring("Total Records: 1"))
			Expect(summary).To(ContainSubstring("Issuers Tracked: 1"))
			Expect(summary).To(ContainSubstring("1 new records"))
		})
	})
}

var _ = Describe("Library", func() {
	It("rejects unsupported database urls", func() {
		_, err := library.Open(context.Background(), "mysql://localhost/ssr")
		Expect(err).To(MatchError(library.ErrUnsupportedURL))
	})

	Describe("sqlite", func() {
		libraryBehaviour(func() string {
			return filepath.Join(GinkgoT().TempDir(), "ssrdata.db")
		})

		It("accepts sqlite:// urls", func() {
			dbURL := "sqlite://" + filepath.Join(GinkgoT().TempDir(), "ssrdata.db")
			myLibrary, err := library.Open(context.Background(), dbURL)
			Expect(err).NotTo(HaveOccurred())
			defer myLibrary.Close()
			Expect(myLibrary.Migrate()).To(Succeed())
		})
	})

	Describe("postgres", func() {
		libraryBehaviour(func() string {
			dbURL := os.Getenv("SSRDATA_TEST_PG_URL")
			if dbURL == "" {
				Skip("SSRDATA_TEST_PG_URL is not set")
			}
			return dbURL
		})
	})
})
