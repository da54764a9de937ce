// Package kafkaconsumer eagerly retires cached results when ingest events
// announce new raw data. The fingerprint probe on the read path catches what
// this consumer misses, so losing an event degrades to a lazy refresh.
package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/climate-agg-cache/internal/cache/keys"
	"github.com/mohammed-shakir/climate-agg-cache/internal/core/observability"
	"github.com/mohammed-shakir/climate-agg-cache/internal/invalidation"
)

// KeyDeleter drops every cached result under a key prefix.
type KeyDeleter interface {
	DeleteByPrefix(ctx context.Context, prefix string) (int, error)
}

type Consumer struct {
	cfg    Config
	logger *slog.Logger
	store  KeyDeleter
	dedupe *dedupe
}

func New(cfg Config, logger *slog.Logger, store KeyDeleter) (*Consumer, error) {
	if store == nil {
		return nil, errors.New("kafkaconsumer: store is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	dd, err := newDedupe(cfg.DedupeSize)
	if err != nil {
		return nil, fmt.Errorf("init dedupe: %w", err)
	}
	return &Consumer{cfg: cfg, logger: logger, store: store, dedupe: dd}, nil
}

// Start consumes ingest events until ctx ends.
func (c *Consumer) Start(ctx context.Context) error {
	cfg := sarama.NewConfig()
	cfg.Version = sarama.V2_1_0_0
	cfg.Consumer.Group.Session.Timeout = c.cfg.SessionTimeout
	cfg.Consumer.Group.Heartbeat.Interval = c.cfg.Heartbeat
	cfg.Consumer.Group.Rebalance.Timeout = c.cfg.RebalanceTimeout
	if c.cfg.InitialOffsetOldest {
		cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	} else {
		cfg.Consumer.Offsets.Initial = sarama.OffsetNewest
	}
	cfg.Consumer.Offsets.AutoCommit.Enable = true

	group, err := sarama.NewConsumerGroup(c.cfg.Brokers, c.cfg.GroupID, cfg)
	if err != nil {
		return fmt.Errorf("create consumer group: %w", err)
	}
	defer func() { _ = group.Close() }()

	handler := &groupHandler{process: c.ProcessOne}

	c.logger.Info("kafka invalidation consumer starting",
		"brokers", c.cfg.Brokers, "topic", c.cfg.Topic, "group", c.cfg.GroupID)

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("kafka invalidation consumer shutting down")
			return nil
		default:
			if err := group.Consume(ctx, []string{c.cfg.Topic}, handler); err != nil {
				c.logger.Error("consumer error", "topic", c.cfg.Topic, "err", err)
				time.Sleep(2 * time.Second)
			}
		}
	}
}

// ProcessOne handles a single ingest event message.
func (c *Consumer) ProcessOne(ctx context.Context, msg *sarama.ConsumerMessage) error {
	var ev invalidation.Event
	if err := json.Unmarshal(msg.Value, &ev); err != nil {
		observability.ObserveInvalidation("decode", err, 0)
		c.logger.Error("undecodable ingest event, skipping",
			"topic", msg.Topic, "partition", msg.Partition, "offset", msg.Offset, "err", err)
		// poison message: advance past it rather than wedge the partition
		return nil
	}
	if err := ev.Validate(); err != nil {
		observability.ObserveInvalidation(ev.Op, err, 0)
		c.logger.Error("invalid ingest event, skipping",
			"topic", msg.Topic, "offset", msg.Offset, "err", err)
		return nil
	}

	triple := ev.TripleKey()
	if c.dedupe.Stale(triple, ev.DataVersion) {
		c.logger.Debug("duplicate ingest event, skipping",
			"triple", triple, "data_version", ev.DataVersion)
		observability.ObserveInvalidation(ev.Op, nil, 0)
		return nil
	}

	prefix := keys.TriplePrefix(ev.RegionID, ev.MetricID, ev.ScenarioID)
	n, err := c.store.DeleteByPrefix(ctx, prefix)
	observability.ObserveInvalidation(ev.Op, err, n)
	if err != nil {
		// returning the error leaves the offset unmarked so the event is
		// retried after the cache recovers
		return fmt.Errorf("delete by prefix %q: %w", prefix, err)
	}

	c.dedupe.Mark(triple, ev.DataVersion)
	c.logger.Debug("invalidated triple",
		"triple", triple, "op", ev.Op, "keys", n, "data_version", ev.DataVersion)
	return nil
}
