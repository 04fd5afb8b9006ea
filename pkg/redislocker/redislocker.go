// Package redislocker provides named locks shared by every studio replica.
package redislocker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-redsync/redsync/v4"
	"github.com/go-redsync/redsync/v4/redis/goredis/v9"
	"github.com/redis/go-redis/v9"
)

// ErrLocked is returned when the lock is held elsewhere.
var ErrLocked = errors.New("lock is held")

const defaultExpiry = 10 * time.Minute

type Locker struct {
	rs     *redsync.Redsync
	prefix string
	expiry time.Duration
}

type Option func(*Locker)

// WithExpiry bounds how long a lock outlives a crashed holder.
func WithExpiry(d time.Duration) Option {
	return func(l *Locker) {
		l.expiry = d
	}
}

func WithPrefix(prefix string) Option {
	return func(l *Locker) {
		l.prefix = prefix
	}
}

func New(client redis.UniversalClient, opts ...Option) (*Locker, error) {
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}
	l := &Locker{
		rs:     redsync.New(goredis.NewPool(client)),
		prefix: "studio:lock:",
		expiry: defaultExpiry,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

type Lock struct {
	name  string
	mutex *redsync.Mutex
}

// TryLock takes the named lock without waiting, returning ErrLocked if it is taken.
func (l *Locker) TryLock(ctx context.Context, name string) (*Lock, error) {
	m := l.rs.NewMutex(l.prefix+name, redsync.WithExpiry(l.expiry), redsync.WithTries(1))
	if err := m.TryLockContext(ctx); err != nil {
		var taken *redsync.ErrTaken
		if errors.Is(err, redsync.ErrFailed) || errors.As(err, &taken) {
			countOp("lock", "taken")
			return nil, fmt.Errorf("%w: %s", ErrLocked, name)
		}
		countOp("lock", "error")
		return nil, err
	}
	countOp("lock", "ok")
	return &Lock{name: name, mutex: m}, nil
}

func (l *Lock) Unlock(ctx context.Context) error {
	ok, err := l.mutex.UnlockContext(ctx)
	if err == nil && !ok {
		err = redsync.ErrLockAlreadyExpired
	}
	if err != nil {
		countOp("unlock", "error")
		return fmt.Errorf("cannot unlock %s: %w", l.name, err)
	}
	countOp("unlock", "ok")
	return nil
}
