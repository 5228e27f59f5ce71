// Copyright 2026 Kapitor Technologies Ltd.
// All rights reserved.
// This material is licensed under the Apache License 2.0,
// available at https://github.com/kapitor/custody/blob/master/LICENSE.md.

package currency

import (
	"strings"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
)

// StaticRateSource serves rates from a fixed table, keyed "BASE/QUOTE".
// It backs configuration-provided fallback rates and tests.
type StaticRateSource struct {
	rates map[string]decimal.Decimal
}

func NewStaticRateSource(pairs map[string]string) (*StaticRateSource, error) {
	rates := make(map[string]decimal.Decimal, len(pairs))
	for pair, value := range pairs {
		rate, err := decimal.NewFromString(value)
		if err != nil {
			return nil, errors.Wrapf(err, "bad static rate %q for %q", value, pair)
		}
		rates[strings.ToUpper(pair)] = rate
	}
	return &StaticRateSource{rates: rates}, nil
}

func (s *StaticRateSource) Rate(base, quote string) (decimal.Decimal, error) {
	pair := strings.ToUpper(base) + "/" + strings.ToUpper(quote)
	rate, ok := s.rates[pair]
	if !ok {
		return decimal.Zero, errors.Errorf("no rate for %s", pair)
	}
	return rate, nil
}

type cachedRate struct {
	rate      decimal.Decimal
	fetchedAt time.Time
}

// CachedRateSource wraps a live source with a TTL'd LRU cache and an
// optional fallback, so the webhook path never blocks on a cold remote
// quote when a fallback is available.
type CachedRateSource struct {
	inner    RateSource
	fallback RateSource
	cache    *lru.Cache
	ttl      time.Duration

	mu  sync.Mutex
	now func() time.Time
}

func NewCachedRateSource(inner, fallback RateSource, size int, ttl time.Duration) (*CachedRateSource, error) {
	cache, err := lru.New(size)
	if err != nil {
		return nil, errors.Wrap(err, "failed to build rate cache")
	}
	return &CachedRateSource{
		inner:    inner,
		fallback: fallback,
		cache:    cache,
		ttl:      ttl,
		now:      time.Now,
	}, nil
}

func (c *CachedRateSource) Rate(base, quote string) (decimal.Decimal, error) {
	pair := strings.ToUpper(base) + "/" + strings.ToUpper(quote)

	c.mu.Lock()
	defer c.mu.Unlock()

	if v, ok := c.cache.Get(pair); ok {
		cached := v.(cachedRate)
		if c.now().Sub(cached.fetchedAt) < c.ttl {
			return cached.rate, nil
		}
	}

	if c.inner != nil {
		rate, err := c.inner.Rate(base, quote)
		if err == nil {
			c.cache.Add(pair, cachedRate{rate: rate, fetchedAt: c.now()})
			return rate, nil
		}
		if c.fallback == nil {
			return decimal.Zero, err
		}
	}
	if c.fallback == nil {
		return decimal.Zero, errors.Errorf("no rate source for %s", pair)
	}
	return c.fallback.Rate(base, quote)
}
