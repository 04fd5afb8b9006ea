// Package bus carries background tasks from the studio API to its worker over asynq.
package bus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/OdyseeTeam/mintstudio/internal/errors"
	"github.com/OdyseeTeam/mintstudio/internal/metrics"
	"github.com/OdyseeTeam/mintstudio/pkg/logging"
	"github.com/OdyseeTeam/mintstudio/pkg/logging/zapadapter"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
)

const (
	defaultQueue     = "default"
	defaultTimeout   = 5 * time.Minute
	defaultRetention = 72 * time.Hour
	statsInterval    = 5 * time.Second
)

type options struct {
	concurrency int
	retryDelay  asynq.RetryDelayFunc
	logger      logging.KVLogger
}

type Option func(*options)

func WithLogger(logger logging.KVLogger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

func WithConcurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// WithDelayFunc sets the wait before a failed task is retried.
func WithDelayFunc(f asynq.RetryDelayFunc) Option {
	return func(o *options) {
		o.retryDelay = f
	}
}

// Client schedules tasks.
type Client struct {
	asynq  *asynq.Client
	logger logging.KVLogger
}

// NewClient checks that redis is reachable and returns a Client enqueueing into it.
func NewClient(redisOpts asynq.RedisConnOpt, logger logging.KVLogger) (*Client, error) {
	if err := ping(redisOpts); err != nil {
		return nil, err
	}
	return &Client{asynq: asynq.NewClient(redisOpts), logger: logger}, nil
}

func ping(redisOpts asynq.RedisConnOpt) error {
	v := redisOpts.MakeRedisClient()
	rc, ok := v.(redis.UniversalClient)
	if !ok {
		return fmt.Errorf("unexpected redis client type %T", v)
	}
	defer rc.Close()
	if err := rc.Ping(context.Background()).Err(); err != nil {
		return fmt.Errorf("redis client failed: %w", err)
	}
	return nil
}

// Put enqueues a task for immediate processing.
func (c *Client) Put(ctx context.Context, taskType string, payload any, retry int) error {
	_, err := c.enqueue(ctx, taskType, payload, asynq.MaxRetry(retry))
	return err
}

// Schedule enqueues a task to run after delay. id deduplicates tasks of the same type:
// scheduling an id that is already queued is a no-op.
func (c *Client) Schedule(ctx context.Context, taskType, id string, payload any, delay time.Duration, retry int) error {
	_, err := c.enqueue(ctx, taskType, payload,
		asynq.TaskID(taskType+":"+id), asynq.ProcessIn(delay), asynq.MaxRetry(retry))
	if errors.Is(err, asynq.ErrTaskIDConflict) {
		c.logger.Debug("task already scheduled", "type", taskType, "id", id)
		return nil
	}
	return err
}

func (c *Client) enqueue(ctx context.Context, taskType string, payload any, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	pb, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	opts = append(opts, asynq.Timeout(defaultTimeout), asynq.Retention(defaultRetention))
	info, err := c.asynq.EnqueueContext(ctx, asynq.NewTask(taskType, pb), opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to enqueue %s: %w", taskType, err)
	}
	c.logger.Debug("task enqueued", "type", taskType, "task_id", info.ID, "process_at", info.NextProcessAt)
	return info, nil
}

func (c *Client) Close() error {
	return c.asynq.Close()
}

// Bus processes tasks with the handlers added to it.
type Bus struct {
	opts      options
	client    *Client
	server    *asynq.Server
	inspector *asynq.Inspector
	mux       *asynq.ServeMux
	stop      chan struct{}
}

func New(redisOpts asynq.RedisConnOpt, opts ...Option) (*Bus, error) {
	o := options{
		concurrency: 3,
		logger:      zapadapter.NewKV(nil),
		retryDelay: func(n int, err error, t *asynq.Task) time.Duration {
			return 30 * time.Second
		},
	}
	for _, opt := range opts {
		opt(&o)
	}
	c, err := NewClient(redisOpts, o.logger)
	if err != nil {
		return nil, err
	}
	return &Bus{
		opts:      o,
		client:    c,
		inspector: asynq.NewInspector(redisOpts),
		mux:       asynq.NewServeMux(),
		stop:      make(chan struct{}),
		server: asynq.NewServer(redisOpts, asynq.Config{
			Concurrency:    o.concurrency,
			Logger:         zapadapter.New(nil),
			RetryDelayFunc: o.retryDelay,
		}),
	}, nil
}

func (b *Bus) Client() *Client {
	return b.client
}

// AddHandler routes tasks of taskType to handler. Call before StartHandlers.
func (b *Bus) AddHandler(taskType string, handler asynq.HandlerFunc) {
	b.opts.logger.Info("adding task handler", "type", taskType)
	b.mux.Handle(taskType, handler)
}

// StartHandlers processes tasks until Shutdown is called.
func (b *Bus) StartHandlers() error {
	b.opts.logger.Info("starting bus", "concurrency", b.opts.concurrency)
	go b.reportQueue()
	return b.server.Run(b.mux)
}

func (b *Bus) reportQueue() {
	t := time.NewTicker(statsInterval)
	defer t.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-t.C:
			q, err := b.inspector.GetQueueInfo(defaultQueue)
			if err != nil {
				continue
			}
			for status, n := range map[string]int{
				"active": q.Active, "scheduled": q.Scheduled, "pending": q.Pending,
				"retry": q.Retry, "failed": q.Failed,
			} {
				metrics.QueueTasks.WithLabelValues(status).Set(float64(n))
			}
		}
	}
}

func (b *Bus) Shutdown() {
	b.opts.logger.Info("stopping bus")
	close(b.stop)
	b.server.Shutdown()
	b.client.Close()
	b.inspector.Close()
}
