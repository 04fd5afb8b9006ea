// Package notify delivers per-publish change notifications over Redis pub/sub.
// Messages carry no payload contract: receivers re-fetch the publish.
package notify

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/OdyseeTeam/mintstudio/internal/metrics"
	"github.com/OdyseeTeam/mintstudio/pkg/logging"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const channelPrefix = "publish:"

// Channel returns the pub/sub channel for a publish.
func Channel(publishID string) string {
	return channelPrefix + publishID
}

type Notifier struct {
	rdb    redis.UniversalClient
	logger logging.KVLogger
}

type Option func(*Notifier)

func WithLogger(logger logging.KVLogger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

func New(rdb redis.UniversalClient, opts ...Option) *Notifier {
	n := &Notifier{rdb: rdb, logger: logging.NoopKVLogger{}}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Notify signals that the publish changed.
func (n *Notifier) Notify(ctx context.Context, publishID string) error {
	return n.rdb.Publish(ctx, Channel(publishID), strconv.FormatInt(time.Now().UnixNano(), 10)).Err()
}

// Subscription is an open subscription to one publish's changes.
type Subscription struct {
	id        string
	publishID string
	ps        *redis.PubSub
	cancel    context.CancelFunc
	done      chan struct{}
	closeOnce sync.Once
}

// Subscribe calls fn for every change of publishID until the subscription is closed or ctx is done.
// Calls to fn are sequential. The subscription is confirmed before Subscribe returns.
func (n *Notifier) Subscribe(ctx context.Context, publishID string, fn func(ctx context.Context)) (*Subscription, error) {
	ps := n.rdb.Subscribe(ctx, Channel(publishID))
	if _, err := ps.Receive(ctx); err != nil {
		ps.Close()
		return nil, err
	}

	sctx, cancel := context.WithCancel(ctx)
	s := &Subscription{
		id:        uuid.NewString(),
		publishID: publishID,
		ps:        ps,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	metrics.NotifierSubscriptions.Inc()
	log := n.logger.With("publish_id", publishID, "subscription_id", s.id)
	log.Debug("subscribed")

	go func() {
		defer close(s.done)
		defer metrics.NotifierSubscriptions.Dec()
		ch := ps.Channel()
		for {
			select {
			case <-sctx.Done():
				return
			case _, ok := <-ch:
				if !ok {
					return
				}
				if sctx.Err() != nil {
					return
				}
				log.Debug("change received")
				fn(sctx)
			}
		}
	}()
	return s, nil
}

func (s *Subscription) ID() string {
	return s.id
}

func (s *Subscription) PublishID() string {
	return s.publishID
}

// Close tears the subscription down and waits for the delivery loop to exit.
// Must not be called from within the subscription callback.
func (s *Subscription) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.cancel()
		err = s.ps.Close()
		<-s.done
	})
	return err
}

// Done is closed once the subscription stops delivering.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}
