// Zipscore - Real-Estate Investment and Commercial District Analytics
// Copyright 2026 Zipscore contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/zipscore/zipscore

// Package invalidation consumes data-refresh events and evicts the cache
// namespaces the refreshed dataset feeds.
//
// The upstream collector publishes an event on NATS JetStream whenever it
// finishes loading a dataset. Consumption is durable and queue-grouped, so
// a restart resumes where it left off and multiple replicas split the
// stream. The consumer is an optional optimization: with it disabled the
// response-cache TTLs alone bound staleness.
package invalidation

import (
	"context"
	"fmt"

	"github.com/ThreeDotsLabs/watermill"
	wmNats "github.com/ThreeDotsLabs/watermill-nats/v2/pkg/nats"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/goccy/go-json"
	natsgo "github.com/nats-io/nats.go"
	"github.com/rs/zerolog"

	"github.com/zipscore/zipscore/internal/cache"
	"github.com/zipscore/zipscore/internal/config"
	"github.com/zipscore/zipscore/internal/logging"
	"github.com/zipscore/zipscore/internal/metrics"
)

// RefreshEvent is the payload the collector publishes after loading a
// dataset. Dataset "all" flushes everything.
type RefreshEvent struct {
	Dataset    string `json:"dataset"`
	RefreshID  string `json:"refresh_id,omitempty"`
	RecordRows int    `json:"record_rows,omitempty"`
}

// datasetNamespaces maps a refreshed dataset to the cache namespaces whose
// entries were derived from it.
var datasetNamespaces = map[string][]string{
	"prices":       {"invest", "integrated"},
	"jeonse":       {"invest", "integrated"},
	"transactions": {"invest", "integrated"},
	"districts":    {"commercial", "district", "industry_rank", "integrated"},
	"industries":   {"commercial", "industry_rank", "integrated"},
}

// Consumer subscribes to refresh events and applies cache invalidation.
// It implements suture.Service via Serve.
type Consumer struct {
	cfg   *config.NATSConfig
	cache *cache.Cache

	subscriber message.Subscriber
}

// NewConsumer creates a durable JetStream consumer for refresh events.
func NewConsumer(cfg *config.NATSConfig, c *cache.Cache) (*Consumer, error) {
	logger := newWatermillLogger()

	natsOpts := []natsgo.Option{
		natsgo.RetryOnFailedConnect(true),
		natsgo.MaxReconnects(cfg.MaxReconnects),
		natsgo.ReconnectWait(cfg.ReconnectWait),
		natsgo.DisconnectErrHandler(func(_ *natsgo.Conn, err error) {
			if err != nil {
				logging.Warn().Err(err).Msg("invalidation consumer disconnected")
			}
		}),
		natsgo.ReconnectHandler(func(nc *natsgo.Conn) {
			logging.Info().Str("url", nc.ConnectedUrl()).Msg("invalidation consumer reconnected")
		}),
	}

	subOpts := []natsgo.SubOpt{
		natsgo.AckWait(cfg.AckWait),
		natsgo.DeliverNew(),
	}

	wmConfig := wmNats.SubscriberConfig{
		URL:              cfg.URL,
		QueueGroupPrefix: cfg.QueueGroup,
		SubscribersCount: 1,
		AckWaitTimeout:   cfg.AckWait,
		CloseTimeout:     cfg.CloseTimeout,
		NatsOptions:      natsOpts,
		Unmarshaler:      &wmNats.NATSMarshaler{},
		JetStream: wmNats.JetStreamConfig{
			AutoProvision:    true,
			SubscribeOptions: subOpts,
			DurablePrefix:    cfg.DurableName,
		},
	}

	sub, err := wmNats.NewSubscriber(wmConfig, logger)
	if err != nil {
		return nil, fmt.Errorf("create invalidation subscriber: %w", err)
	}

	return &Consumer{cfg: cfg, cache: c, subscriber: sub}, nil
}

// Serve consumes refresh events until the context is canceled.
func (c *Consumer) Serve(ctx context.Context) error {
	messages, err := c.subscriber.Subscribe(ctx, c.cfg.Topic)
	if err != nil {
		return fmt.Errorf("subscribe %s: %w", c.cfg.Topic, err)
	}
	defer c.subscriber.Close()

	logging.Info().Str("topic", c.cfg.Topic).Msg("invalidation consumer started")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-messages:
			if !ok {
				return fmt.Errorf("invalidation subscription closed")
			}
			c.handle(msg)
		}
	}
}

// handle applies one refresh event. Malformed events are acked so the
// stream does not wedge on garbage.
func (c *Consumer) handle(msg *message.Message) {
	defer msg.Ack()

	var event RefreshEvent
	if err := json.Unmarshal(msg.Payload, &event); err != nil {
		metrics.InvalidationEvents.WithLabelValues("malformed").Inc()
		logging.Warn().Err(err).Str("message_id", msg.UUID).Msg("malformed refresh event")
		return
	}

	evicted := c.Apply(&event)
	metrics.InvalidationEvents.WithLabelValues("applied").Inc()

	logging.Info().
		Str("dataset", event.Dataset).
		Str("refresh_id", event.RefreshID).
		Int("evicted", evicted).
		Msg("cache invalidated after data refresh")
}

// Apply evicts the namespaces fed by the event's dataset and returns the
// number of entries removed. Unknown datasets flush everything, which is
// always safe.
func (c *Consumer) Apply(event *RefreshEvent) int {
	namespaces, ok := datasetNamespaces[event.Dataset]
	if !ok {
		n := c.cache.Len()
		c.cache.Clear()
		return n
	}

	var evicted int
	for _, ns := range namespaces {
		evicted += c.cache.InvalidatePrefix(ns + ":")
	}
	return evicted
}

// watermillLogger bridges watermill's logging onto zerolog.
type watermillLogger struct {
	fields watermill.LogFields
}

func newWatermillLogger() watermill.LoggerAdapter {
	return &watermillLogger{}
}

func addFields(ev *zerolog.Event, sets ...watermill.LogFields) {
	for _, fields := range sets {
		for k, v := range fields {
			ev.Interface(k, v)
		}
	}
}

func (l *watermillLogger) Error(msg string, err error, fields watermill.LogFields) {
	ev := logging.Error().Err(err)
	addFields(ev, l.fields, fields)
	ev.Msg(msg)
}

func (l *watermillLogger) Info(msg string, fields watermill.LogFields) {
	ev := logging.Info()
	addFields(ev, l.fields, fields)
	ev.Msg(msg)
}

func (l *watermillLogger) Debug(msg string, fields watermill.LogFields) {
	ev := logging.Debug()
	addFields(ev, l.fields, fields)
	ev.Msg(msg)
}

func (l *watermillLogger) Trace(msg string, fields watermill.LogFields) {
	ev := logging.Trace()
	addFields(ev, l.fields, fields)
	ev.Msg(msg)
}

func (l *watermillLogger) With(fields watermill.LogFields) watermill.LoggerAdapter {
	merged := make(watermill.LogFields, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	for k, v := range fields {
		merged[k] = v
	}
	return &watermillLogger{fields: merged}
}
