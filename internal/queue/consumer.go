package queue

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"storyboard-server/internal/domain"
	"storyboard-server/internal/infra"
)

// Handler processes one decoded task message. A non-nil error dead-letters
// the message; it is never redelivered.
type Handler func(ctx context.Context, msg *domain.TaskMessage) error

// ConsumerOptions configures a Consumer.
type ConsumerOptions struct {
	Redis   *redis.Client
	Topic   string
	Workers int
	Handler Handler
	Logger  *infra.Logger
}

// Consumer serves one topic with a fixed pool of workers in a shared consumer
// group. Each worker holds at most one in-flight message: it acks or
// dead-letters the current entry before reading the next, so per-job progress
// writes never race.
type Consumer struct {
	rdb     *redis.Client
	topic   string
	workers int
	handler Handler
	logger  infra.Logger
}

// NewConsumer wires a Consumer from options.
func NewConsumer(opts ConsumerOptions) *Consumer {
	workers := opts.Workers
	if workers <= 0 {
		workers = 2
	}
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Consumer{
		rdb:     opts.Redis,
		topic:   opts.Topic,
		workers: workers,
		handler: opts.Handler,
		logger:  logger.With().Str("topic", opts.Topic).Logger(),
	}
}

// Run creates the consumer group if needed and blocks serving messages until
// the context is canceled.
func (c *Consumer) Run(ctx context.Context) error {
	err := c.rdb.XGroupCreateMkStream(ctx, c.topic, Group, "0").Err()
	if err != nil && !strings.Contains(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("queue: create group on %s: %w", c.topic, err)
	}

	var wg sync.WaitGroup
	for i := 0; i < c.workers; i++ {
		wg.Add(1)
		go func(worker int) {
			defer wg.Done()
			c.loop(ctx, fmt.Sprintf("%s-%d", c.topic, worker))
		}(i)
	}
	wg.Wait()
	return nil
}

func (c *Consumer) loop(ctx context.Context, consumer string) {
	for {
		if ctx.Err() != nil {
			return
		}
		streams, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
			Group:    Group,
			Consumer: consumer,
			Streams:  []string{c.topic, ">"},
			Count:    1,
			Block:    5 * time.Second,
		}).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error().Err(err).Str("consumer", consumer).Msg("read group failed")
			time.Sleep(time.Second)
			continue
		}
		for _, stream := range streams {
			for _, entry := range stream.Messages {
				c.process(ctx, entry)
			}
		}
	}
}

func (c *Consumer) process(ctx context.Context, entry redis.XMessage) {
	msg, err := decodeMessage(entry.Values)
	if err != nil {
		c.logger.Error().Err(err).Str("entry_id", entry.ID).Msg("malformed task message")
		c.deadLetter(ctx, entry, err)
		return
	}

	log := c.logger.With().Str("job_id", msg.JobID).Str("entry_id", entry.ID).Logger()
	if err := c.handler(ctx, msg); err != nil {
		// No requeue: billing and asset side effects are not idempotent
		// across redelivery. The entry goes straight to the dead stream.
		log.Error().Err(err).Msg("task dead-lettered")
		c.deadLetter(ctx, entry, err)
		return
	}
	if err := c.rdb.XAck(ctx, c.topic, Group, entry.ID).Err(); err != nil {
		log.Error().Err(err).Msg("ack failed")
		return
	}
	log.Debug().Msg("task acked")
}

func (c *Consumer) deadLetter(ctx context.Context, entry redis.XMessage, cause error) {
	values := map[string]any{
		"origin_id": entry.ID,
		"error":     cause.Error(),
	}
	if raw, ok := entry.Values[payloadField]; ok {
		values[payloadField] = raw
	}
	if err := c.rdb.XAdd(ctx, &redis.XAddArgs{Stream: DeadTopic(c.topic), Values: values}).Err(); err != nil {
		c.logger.Error().Err(err).Str("entry_id", entry.ID).Msg("dead-letter append failed")
		return
	}
	if err := c.rdb.XAck(ctx, c.topic, Group, entry.ID).Err(); err != nil {
		c.logger.Error().Err(err).Str("entry_id", entry.ID).Msg("dead-letter ack failed")
	}
}
