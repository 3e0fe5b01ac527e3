// Package redis provides Redis-based adapters for the driveline pipeline.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/driveline/driveline/internal/domain/model"
)

// DefaultIntakeKey is the list ingest requests are pushed onto.
const DefaultIntakeKey = "driveline:intake"

// IngestHandler accepts one attachment for the pipeline.
type IngestHandler interface {
	Ingest(ctx context.Context, req model.IngestRequest) error
}

// IntakeQueue is the producer side: the chat-event handler pushes requests here.
type IntakeQueue struct {
	client redis.UniversalClient
	key    string
}

// NewIntakeQueue creates a producer for key (DefaultIntakeKey when empty).
func NewIntakeQueue(client redis.UniversalClient, key string) *IntakeQueue {
	if strings.TrimSpace(key) == "" {
		key = DefaultIntakeKey
	}
	return &IntakeQueue{client: client, key: key}
}

// Push validates and enqueues a request.
func (q *IntakeQueue) Push(ctx context.Context, req model.IngestRequest) error {
	if err := req.Validate(); err != nil {
		return err
	}
	data, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal ingest request: %w", err)
	}
	if err := q.client.LPush(ctx, q.key, data).Err(); err != nil {
		return fmt.Errorf("redis lpush: %w", err)
	}
	return nil
}

// Len returns the number of waiting requests.
func (q *IntakeQueue) Len(ctx context.Context) (int64, error) {
	n, err := q.client.LLen(ctx, q.key).Result()
	if err != nil {
		return 0, fmt.Errorf("redis llen: %w", err)
	}
	return n, nil
}

// IntakeConsumerOptions configures NewIntakeConsumer.
type IntakeConsumerOptions struct {
	Client  redis.UniversalClient
	Key     string
	Handler IngestHandler
	Logger  *slog.Logger
	// PollTimeout bounds each BRPOP so cancellation is observed.
	PollTimeout time.Duration
	// Requeue reports whether a handler error should put the request back.
	Requeue func(error) bool
	// RequeueDelay pauses the loop after a requeue.
	RequeueDelay time.Duration
}

// IntakeConsumer pops ingest requests and hands them to the pipeline.
type IntakeConsumer struct {
	client       redis.UniversalClient
	key          string
	handler      IngestHandler
	logger       *slog.Logger
	pollTimeout  time.Duration
	requeue      func(error) bool
	requeueDelay time.Duration
}

// NewIntakeConsumer validates options and builds a consumer.
func NewIntakeConsumer(opts IntakeConsumerOptions) (*IntakeConsumer, error) {
	if opts.Client == nil {
		return nil, errors.New("redis client is required")
	}
	if opts.Handler == nil {
		return nil, errors.New("ingest handler is required")
	}
	key := strings.TrimSpace(opts.Key)
	if key == "" {
		key = DefaultIntakeKey
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	poll := opts.PollTimeout
	if poll <= 0 {
		poll = 5 * time.Second
	}
	delay := opts.RequeueDelay
	if delay <= 0 {
		delay = time.Second
	}
	requeue := opts.Requeue
	if requeue == nil {
		requeue = func(error) bool { return false }
	}
	return &IntakeConsumer{
		client:       opts.Client,
		key:          key,
		handler:      opts.Handler,
		logger:       logger.With("component", "intake_consumer"),
		pollTimeout:  poll,
		requeue:      requeue,
		requeueDelay: delay,
	}, nil
}

// Run consumes until ctx is cancelled.
func (c *IntakeConsumer) Run(ctx context.Context) error {
	c.logger.InfoContext(ctx, "starting intake consumer", "key", c.key)
	for {
		if ctx.Err() != nil {
			c.logger.InfoContext(ctx, "intake consumer stopped")
			return nil
		}

		res, err := c.client.BRPop(ctx, c.pollTimeout, c.key).Result()
		switch {
		case errors.Is(err, redis.Nil):
			continue
		case err != nil:
			if ctx.Err() != nil {
				continue
			}
			c.logger.ErrorContext(ctx, "intake pop failed", "error", err)
			sleepCtx(ctx, c.requeueDelay)
			continue
		}

		// BRPOP returns [key, value].
		if len(res) != 2 {
			continue
		}
		if requeued := c.handle(ctx, res[1]); requeued {
			sleepCtx(ctx, c.requeueDelay)
		}
	}
}

// handle processes one raw payload and reports whether it was put back.
func (c *IntakeConsumer) handle(ctx context.Context, raw string) bool {
	var req model.IngestRequest
	if err := json.Unmarshal([]byte(raw), &req); err != nil {
		c.logger.WarnContext(ctx, "dropping malformed ingest request", "error", err, "bytes", len(raw))
		return false
	}
	if err := req.Validate(); err != nil {
		c.logger.WarnContext(ctx, "dropping invalid ingest request", "error", err)
		return false
	}

	// A popped request is not in Redis anymore; finish it even during shutdown.
	err := c.handler.Ingest(context.WithoutCancel(ctx), req)
	if err == nil {
		return false
	}
	if c.requeue(err) {
		// RPUSH puts it back at the consuming end.
		if pushErr := c.client.RPush(context.WithoutCancel(ctx), c.key, raw).Err(); pushErr != nil {
			c.logger.ErrorContext(ctx, "requeue ingest request failed",
				"error", errors.Join(err, pushErr),
				"message_id", req.Attachment.MessageID,
			)
			return false
		}
		c.logger.InfoContext(ctx, "ingest request requeued", "message_id", req.Attachment.MessageID, "reason", err)
		return true
	}
	c.logger.ErrorContext(ctx, "ingest failed",
		"error", err,
		"message_id", req.Attachment.MessageID,
		"context_id", req.ContextID,
	)
	return false
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
