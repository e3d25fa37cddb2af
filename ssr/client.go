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
package ssr

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alphadose/haxmap"
	"github.com/go-resty/resty/v2"
	"github.com/goccy/go-json"
	"github.com/penny-vault/ssrdata/data"
	"github.com/rs/zerolog"
)

const (
	ExportURL = "https://ssr.finanstilsynet.no/api/v2/instruments/export-json"

	DefaultMaxRetries = 3
	DefaultBackoff    = 5 * time.Second
	DefaultTimeout    = 120 * time.Second
	DefaultCacheTTL   = time.Hour
)

var (
	ErrFetchFailed = errors.New("short sale register could not be fetched")
	ErrStatus      = errors.New("status code is invalid")
)

type cachedFeed struct {
	instruments []*data.Instrument
	fetchedAt   time.Time
}

// Client downloads the full short sale register export. Successful downloads are
// kept for CacheTTL so repeated calls do not hit the network.
type Client struct {
	URL      string
	Backoff  time.Duration
	Timeout  time.Duration
	CacheTTL time.Duration

	client *resty.Client
	cache  *haxmap.Map[int, *cachedFeed]
	now    func() time.Time
}

type Option func(*Client)

func WithURL(url string) Option {
	return func(c *Client) { c.URL = url }
}

func WithBackoff(backoff time.Duration) Option {
	return func(c *Client) { c.Backoff = backoff }
}

func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) { c.Timeout = timeout }
}

func WithCacheTTL(ttl time.Duration) Option {
	return func(c *Client) { c.CacheTTL = ttl }
}

// WithClock replaces the clock used to expire cached downloads
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// New creates a client for the short sale register export
func New(opts ...Option) *Client {
	client := &Client{
		URL:      ExportURL,
		Backoff:  DefaultBackoff,
		Timeout:  DefaultTimeout,
		CacheTTL: DefaultCacheTTL,
		cache:    haxmap.New[int, *cachedFeed](),
		now:      time.Now,
	}

	for _, opt := range opts {
		opt(client)
	}

	client.client = resty.New().
		SetTimeout(client.Timeout).
		SetHeader("Accept", "application/json")

	return client
}

// Fetch downloads the register, making at most maxRetries attempts. A feed that
// legitimately contains no instruments is returned as an empty slice; running out
// of attempts returns ErrFetchFailed.
func (c *Client) Fetch(ctx context.Context, maxRetries int) ([]*data.Instrument, error) {
	logger := zerolog.Ctx(ctx)

	if cached, ok := c.cache.Get(maxRetries); ok {
		if c.now().Sub(cached.fetchedAt) < c.CacheTTL {
			logger.Debug().Int("NumInstruments", len(cached.instruments)).Msg("using cached short sale register")
			return cached.instruments, nil
		}
		c.cache.Del(maxRetries)
	}

	for attempt := 1; attempt <= maxRetries; attempt++ {
		instruments, err := c.download(ctx)
		if err == nil {
			c.cache.Set(maxRetries, &cachedFeed{
				instruments: instruments,
				fetchedAt:   c.now(),
			})
			logger.Info().Int("NumInstruments", len(instruments)).Int("Attempt", attempt).Msg("downloaded short sale register")
			return instruments, nil
		}

		logger.Warn().Err(err).Int("Attempt", attempt).Int("MaxRetries", maxRetries).Str("URL", c.URL).Msg("short sale register download failed")

		if attempt == maxRetries {
			break
		}

		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("%w: %w", ErrFetchFailed, ctx.Err())
		case <-time.After(c.Backoff):
		}
	}

	return nil, fmt.Errorf("%w: gave up after %d attempts", ErrFetchFailed, maxRetries)
}

// Invalidate drops every cached download
func (c *Client) Invalidate() {
	keys := make([]int, 0, c.cache.Len())
	c.cache.ForEach(func(key int, _ *cachedFeed) bool {
		keys = append(keys, key)
		return true
	})
	c.cache.Del(keys...)
}

func (c *Client) download(ctx context.Context) ([]*data.Instrument, error) {
	resp, err := c.client.R().
		SetContext(ctx).
		Get(c.URL)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode() >= 300 {
		return nil, fmt.Errorf("%w: %d", ErrStatus, resp.StatusCode())
	}

	instruments := make([]*data.Instrument, 0)
	if err := json.Unmarshal(resp.Body(), &instruments); err != nil {
		return nil, fmt.Errorf("decode short sale register: %w", err)
	}

	return instruments, nil
}
