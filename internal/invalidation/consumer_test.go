// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

package invalidation

import (
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"

	"github.com/zipscore/zipscore/internal/cache"
	"github.com/zipscore/zipscore/internal/config"
)

func seededCache(t *testing.T) *cache.Cache {
	t.Helper()
	c := cache.New(time.Minute)
	c.Set("invest:score:aaa", 1, time.Minute)
	c.Set("invest:forecast:bbb", 2, time.Minute)
	c.Set("commercial:ccc", 3, time.Minute)
	c.Set("district:ddd", 4, time.Minute)
	c.Set("industry_rank:eee", 5, time.Minute)
	c.Set("integrated:fff", 6, time.Minute)
	return c
}

func newTestConsumer(c *cache.Cache) *Consumer {
	return &Consumer{
		cfg:   &config.NATSConfig{Topic: "statistics.refreshed"},
		cache: c,
	}
}

func TestApply_PriceRefreshEvictsInvestmentNamespaces(t *testing.T) {
	c := seededCache(t)
	consumer := newTestConsumer(c)

	evicted := consumer.Apply(&RefreshEvent{Dataset: "prices"})
	if evicted != 3 {
		t.Errorf("evicted = %d, want 3 (invest x2 + integrated)", evicted)
	}

	if _, ok := c.Get("invest:score:aaa"); ok {
		t.Error("invest entries must be evicted")
	}
	if _, ok := c.Get("commercial:ccc"); !ok {
		t.Error("commercial entries must survive a price refresh")
	}
}

func TestApply_DistrictRefresh(t *testing.T) {
	c := seededCache(t)
	consumer := newTestConsumer(c)

	evicted := consumer.Apply(&RefreshEvent{Dataset: "districts"})
	if evicted != 4 {
		t.Errorf("evicted = %d, want 4", evicted)
	}
	if _, ok := c.Get("invest:score:aaa"); !ok {
		t.Error("invest entries must survive a district refresh")
	}
}

func TestApply_UnknownDatasetFlushesAll(t *testing.T) {
	c := seededCache(t)
	consumer := newTestConsumer(c)

	evicted := consumer.Apply(&RefreshEvent{Dataset: "something-new"})
	if evicted != 6 {
		t.Errorf("evicted = %d, want the whole cache", evicted)
	}
	if c.Len() != 0 {
		t.Errorf("cache still holds %d entries", c.Len())
	}
}

func TestHandle_MalformedPayloadIsAcked(t *testing.T) {
	c := seededCache(t)
	consumer := newTestConsumer(c)

	msg := message.NewMessage(watermill.NewUUID(), []byte("{not json"))
	consumer.handle(msg)

	select {
	case <-msg.Acked():
	default:
		t.Error("malformed events must be acked to avoid redelivery loops")
	}
	if c.Len() != 6 {
		t.Error("malformed events must not evict anything")
	}
}

func TestHandle_ValidPayload(t *testing.T) {
	c := seededCache(t)
	consumer := newTestConsumer(c)

	msg := message.NewMessage(watermill.NewUUID(), []byte(`{"dataset":"industries","refresh_id":"r-42"}`))
	consumer.handle(msg)

	select {
	case <-msg.Acked():
	default:
		t.Error("processed events must be acked")
	}
	if _, ok := c.Get("industry_rank:eee"); ok {
		t.Error("industry_rank entries must be evicted")
	}
	if _, ok := c.Get("district:ddd"); !ok {
		t.Error("district entries must survive an industries refresh")
	}
}
