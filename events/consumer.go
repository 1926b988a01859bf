package events

import (
	"context"
	stderrors "errors"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/jrsteele09/go-auth-gateway/internal/correlation"
	"github.com/jrsteele09/go-auth-gateway/internal/errors"
	"github.com/jrsteele09/go-auth-gateway/internal/metrics"
	pkgerrors "github.com/pkg/errors"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
)

// PayloadField is the stream entry field holding the JSON envelope
const PayloadField = "payload"

const (
	defaultBatchSize  = 16
	defaultJobTimeout = 30 * time.Second
)

// ConsumerConfig names the consumer group membership
type ConsumerConfig struct {
	Streams  []string
	Group    string
	Consumer string
	Workers  int
	Block    time.Duration
}

// Consumer reads user lifecycle events from Redis streams with a consumer group and
// hands them to a Handler on a worker pool. Every delivered entry is acknowledged
// once handled, including entries that fail to decode or to process.
type Consumer struct {
	client     redis.UniversalClient
	handler    Handler
	cfg        ConsumerConfig
	batchSize  int64
	jobTimeout time.Duration
	metrics    *metrics.Metrics
}

type ConsumerOption func(*Consumer)

func WithConsumerMetrics(m *metrics.Metrics) ConsumerOption {
	return func(c *Consumer) {
		c.metrics = m
	}
}

func WithBatchSize(n int64) ConsumerOption {
	return func(c *Consumer) {
		if n > 0 {
			c.batchSize = n
		}
	}
}

func WithJobTimeout(d time.Duration) ConsumerOption {
	return func(c *Consumer) {
		if d > 0 {
			c.jobTimeout = d
		}
	}
}

func NewConsumer(client redis.UniversalClient, handler Handler, cfg ConsumerConfig, options ...ConsumerOption) (*Consumer, error) {
	if client == nil || handler == nil {
		return nil, errors.Wrapf(errors.ErrConfiguration, "[NewConsumer] redis client and handler are required")
	}
	if len(cfg.Streams) == 0 || cfg.Group == "" || cfg.Consumer == "" {
		return nil, errors.Wrapf(errors.ErrConfiguration, "[NewConsumer] streams, group and consumer name are required")
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Block <= 0 {
		cfg.Block = 5 * time.Second
	}
	c := &Consumer{
		client:     client,
		handler:    handler,
		cfg:        cfg,
		batchSize:  defaultBatchSize,
		jobTimeout: defaultJobTimeout,
	}
	for _, opt := range options {
		opt(c)
	}
	return c, nil
}

// EnsureGroups creates the consumer group on every stream, creating streams as needed
func (c *Consumer) EnsureGroups(ctx context.Context) error {
	for _, stream := range c.cfg.Streams {
		err := c.client.XGroupCreateMkStream(ctx, stream, c.cfg.Group, "0").Err()
		if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
			return pkgerrors.Wrapf(err, "[Consumer.EnsureGroups] create group %s on %s", c.cfg.Group, stream)
		}
	}
	return nil
}

// Run consumes until ctx is cancelled. Entries already handed to workers are
// finished and acknowledged before Run returns.
func (c *Consumer) Run(ctx context.Context) error {
	if err := c.EnsureGroups(ctx); err != nil {
		return err
	}

	pool := NewPool(c.cfg.Workers, c.cfg.Workers*2)
	if err := pool.Start(context.WithoutCancel(ctx)); err != nil {
		return pkgerrors.Wrap(err, "[Consumer.Run] start pool")
	}
	defer pool.Stop()

	log.Info().
		Strs("streams", c.cfg.Streams).
		Str("group", c.cfg.Group).
		Str("consumer", c.cfg.Consumer).
		Int("workers", c.cfg.Workers).
		Msg("user event consumer started")

	if err := c.drainPending(ctx, pool); err != nil {
		log.Err(err).Msg("failed to redeliver pending user events")
	}

	readBackoff := backoff.NewExponentialBackOff()
	readBackoff.MaxInterval = 30 * time.Second

	for {
		if ctx.Err() != nil {
			log.Info().Msg("user event consumer stopping")
			return nil
		}
		streams, err := c.read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			wait := readBackoff.NextBackOff()
			log.Err(err).Dur("retry_in", wait).Msg("failed to read user events")
			select {
			case <-ctx.Done():
			case <-time.After(wait):
			}
			continue
		}
		readBackoff.Reset()

		for _, stream := range streams {
			for _, msg := range stream.Messages {
				if err := pool.Submit(ctx, c.job(stream.Stream, msg)); err != nil {
					// left pending for this consumer, redelivered when Run next starts
					log.Warn().Err(err).Str("stream", stream.Stream).Str("message_id", msg.ID).Msg("event not dispatched")
				}
			}
		}
	}
}

// drainPending re-dispatches entries delivered to this consumer but never
// acknowledged, e.g. by a previous run that crashed mid-batch. Each stream's
// pending list is walked once with an advancing cursor so nothing is
// dispatched twice while its job is still in flight.
func (c *Consumer) drainPending(ctx context.Context, pool *Pool) error {
	for _, stream := range c.cfg.Streams {
		cursor := "0"
		for ctx.Err() == nil {
			res, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
				Group:    c.cfg.Group,
				Consumer: c.cfg.Consumer,
				Streams:  []string{stream, cursor},
				Count:    c.batchSize,
				Block:    -1,
			}).Result()
			if err != nil && !stderrors.Is(err, redis.Nil) {
				return pkgerrors.Wrapf(err, "[Consumer.drainPending] XREADGROUP %s", stream)
			}
			var msgs []redis.XMessage
			for _, s := range res {
				msgs = append(msgs, s.Messages...)
			}
			if len(msgs) == 0 {
				break
			}
			log.Info().Str("stream", stream).Int("count", len(msgs)).Msg("redelivering pending user events")
			for _, msg := range msgs {
				if err := pool.Submit(ctx, c.job(stream, msg)); err != nil {
					return pkgerrors.Wrapf(err, "[Consumer.drainPending] submit %s", msg.ID)
				}
			}
			cursor = msgs[len(msgs)-1].ID
		}
	}
	return nil
}

func (c *Consumer) read(ctx context.Context) ([]redis.XStream, error) {
	args := make([]string, 0, len(c.cfg.Streams)*2)
	args = append(args, c.cfg.Streams...)
	for range c.cfg.Streams {
		args = append(args, ">")
	}
	res, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.cfg.Group,
		Consumer: c.cfg.Consumer,
		Streams:  args,
		Count:    c.batchSize,
		Block:    c.cfg.Block,
	}).Result()
	if stderrors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, pkgerrors.Wrap(err, "[Consumer.read] XREADGROUP")
	}
	return res, nil
}

func (c *Consumer) job(stream string, msg redis.XMessage) Job {
	return func(ctx context.Context) {
		ctx, cancel := context.WithTimeout(ctx, c.jobTimeout)
		defer cancel()
		defer c.ack(ctx, stream, msg.ID)
		c.Process(ctx, stream, msg)
	}
}

// Process decodes and handles one entry. Failures are logged, never returned.
func (c *Consumer) Process(ctx context.Context, stream string, msg redis.XMessage) {
	logger := log.With().Str("stream", stream).Str("message_id", msg.ID).Logger()

	raw, ok := msg.Values[PayloadField].(string)
	if !ok {
		logger.Error().Msg("user event has no payload field")
		c.metrics.Event(stream, metrics.OutcomeEventMalformed)
		return
	}
	evt, err := Parse([]byte(raw), stream)
	if err != nil {
		logger.Err(err).Msg("malformed user event")
		c.metrics.Event(stream, metrics.OutcomeEventMalformed)
		return
	}
	if evt.CorrelationID.Valid {
		ctx = correlation.WithID(ctx, evt.CorrelationID.UUID.String())
	}
	if err := c.handler.Handle(ctx, evt); err != nil {
		logger.Err(err).Str("event_id", evt.ID.String()).Str("type", evt.Type).Msg("failed to process user event")
	}
}

func (c *Consumer) ack(ctx context.Context, stream, id string) {
	if err := c.client.XAck(context.WithoutCancel(ctx), stream, c.cfg.Group, id).Err(); err != nil {
		log.Err(err).Str("stream", stream).Str("message_id", id).Msg("failed to ack user event")
	}
}
