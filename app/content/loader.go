package content

import (
	"context"
	"math/rand"
	"time"

	"github.com/OdyseeTeam/mintstudio/pkg/logging"

	"github.com/dgraph-io/ristretto"
	"golang.org/x/sync/singleflight"
)

const (
	defaultTTL = 2 * time.Minute

	keyAccount = "account:"
	keyProfile = "profile:"
)

// Loader caches accounts and profiles read on every page load.
// Chain actions revalidate it by invalidating the affected entries.
type Loader struct {
	svc    Service
	cache  *ristretto.Cache
	sf     *singleflight.Group
	ttl    time.Duration
	logger logging.KVLogger
}

type LoaderOption func(*Loader)

func WithTTL(ttl time.Duration) LoaderOption {
	return func(l *Loader) {
		l.ttl = ttl
	}
}

func WithLoaderLogger(logger logging.KVLogger) LoaderOption {
	return func(l *Loader) {
		l.logger = logger
	}
}

func NewLoader(svc Service, opts ...LoaderOption) (*Loader, error) {
	rc, err := ristretto.NewCache(&ristretto.Config{
		MaxCost:     1 << 24,
		NumCounters: 1e5,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	l := &Loader{
		svc:    svc,
		cache:  rc,
		sf:     &singleflight.Group{},
		ttl:    defaultTTL,
		logger: logging.NoopKVLogger{},
	}
	for _, opt := range opts {
		opt(l)
	}
	return l, nil
}

// Account returns the account of subject, loading it with token on a miss.
func (l *Loader) Account(ctx context.Context, token, subject string) (*Account, error) {
	v, err := l.get(keyAccount+subject, func() (any, error) {
		return l.svc.Viewer(ctx, token)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Account), nil
}

func (l *Loader) Profile(ctx context.Context, token, handle string) (*Profile, error) {
	v, err := l.get(keyProfile+handle, func() (any, error) {
		return l.svc.GetProfile(ctx, token, handle)
	})
	if err != nil {
		return nil, err
	}
	return v.(*Profile), nil
}

func (l *Loader) InvalidateAccount(subject string) {
	l.cache.Del(keyAccount + subject)
}

func (l *Loader) InvalidateProfile(handle string) {
	l.cache.Del(keyProfile + handle)
}

func (l *Loader) get(key string, retriever func() (any, error)) (any, error) {
	if v, ok := l.cache.Get(key); ok {
		return v, nil
	}
	v, err, _ := l.sf.Do(key, retriever)
	if err != nil {
		return nil, err
	}
	ttl := l.ttl
	if ttl >= 4 {
		ttl += time.Duration(rand.Int63n(int64(ttl / 4)))
	}
	l.cache.SetWithTTL(key, v, 1, ttl)
	l.cache.Wait()
	l.logger.Debug("cached", "key", key)
	return v, nil
}

func (l *Loader) Close() {
	l.cache.Close()
}
