package queue

import (
	"context"
	"fmt"
	"io"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"storyboard-server/internal/domain"
	"storyboard-server/internal/infra"
)

// PublisherOptions configures a Publisher.
type PublisherOptions struct {
	Redis  *redis.Client
	Logger *infra.Logger
}

// Publisher appends task messages to the stream of their variant.
type Publisher struct {
	rdb    *redis.Client
	logger infra.Logger
}

// NewPublisher wires a Publisher from options.
func NewPublisher(opts PublisherOptions) *Publisher {
	logger := zerolog.New(io.Discard)
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Publisher{rdb: opts.Redis, logger: logger}
}

// Publish appends the message to its topic stream. Delivery is durable: the
// entry stays in the stream until a consumer group member acks it.
func (p *Publisher) Publish(ctx context.Context, msg *domain.TaskMessage) error {
	values, err := encodeMessage(msg)
	if err != nil {
		return err
	}
	topic := msg.Kind.Topic()
	if err := p.rdb.XAdd(ctx, &redis.XAddArgs{Stream: topic, Values: values}).Err(); err != nil {
		return fmt.Errorf("queue: publish to %s: %w", topic, err)
	}
	p.logger.Debug().Str("topic", topic).Str("job_id", msg.JobID).Msg("task published")
	return nil
}
