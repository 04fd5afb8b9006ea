package studio

import (
	"context"
	"fmt"

	"github.com/OdyseeTeam/mintstudio/api"
	"github.com/OdyseeTeam/mintstudio/app/account"
	"github.com/OdyseeTeam/mintstudio/app/chain"
	"github.com/OdyseeTeam/mintstudio/app/content"
	"github.com/OdyseeTeam/mintstudio/app/identity"
	"github.com/OdyseeTeam/mintstudio/app/ingest"
	"github.com/OdyseeTeam/mintstudio/app/notify"
	"github.com/OdyseeTeam/mintstudio/app/publish"
	"github.com/OdyseeTeam/mintstudio/internal/tasks"
	"github.com/OdyseeTeam/mintstudio/pkg/bus"
	"github.com/OdyseeTeam/mintstudio/pkg/configng"
	"github.com/OdyseeTeam/mintstudio/pkg/gql"
	"github.com/OdyseeTeam/mintstudio/pkg/iprate"
	"github.com/OdyseeTeam/mintstudio/pkg/keybox"
	"github.com/OdyseeTeam/mintstudio/pkg/logging"
	"github.com/OdyseeTeam/mintstudio/pkg/redislocker"

	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"
)

// Services are the long-lived components of a running studio.
type Services struct {
	Handler *api.Handler
	Keyfob  *keybox.Keyfob

	studio  *publish.Studio
	loader  *content.Loader
	bus     *bus.Client
	rdb     *redis.Client
	limiter *iprate.Limiter
}

func gqlClient(name string, scfg configng.ServiceConfig, logger logging.KVLogger) *gql.Client {
	opts := []gql.Option{
		gql.WithLogger(logger),
		gql.WithTimeout(scfg.Timeout),
		gql.WithRetryMax(scfg.RetryMax),
	}
	if scfg.ServiceToken != "" {
		opts = append(opts, gql.WithServiceToken(scfg.ServiceToken))
	}
	return gql.New(name, scfg.URL, opts...)
}

// ContentService builds the content API client. Calls made without an identity token use
// the configured service token.
func ContentService(cfg *configng.Config, logger logging.KVLogger) (*content.Client, error) {
	scfg, err := cfg.ReadServiceConfig("ContentAPI")
	if err != nil {
		return nil, err
	}
	return content.NewClient(gqlClient("content", scfg, logger)), nil
}

// Notifier connects the change notifier to the configured redis.
func Notifier(cfg *configng.Config, logger logging.KVLogger) (*notify.Notifier, *redis.Client, error) {
	opts, err := redis.ParseURL(cfg.ReadRedisConfig("Redis").URL)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot parse redis url: %w", err)
	}
	rdb := redis.NewClient(opts)
	return notify.New(rdb, notify.WithLogger(logger)), rdb, nil
}

// NewServices wires every component of the studio from cfg.
func NewServices(ctx context.Context, cfg *configng.Config, logger logging.KVLogger) (*Services, error) {
	limits := cfg.ReadLimitsConfig("Limits")
	s := &Services{}

	contentSvc, err := ContentService(cfg, logger)
	if err != nil {
		return nil, err
	}
	s.loader, err = content.NewLoader(contentSvc, content.WithLoaderLogger(logger))
	if err != nil {
		return nil, err
	}

	chainCfg, err := cfg.ReadServiceConfig("ChainAPI")
	if err != nil {
		return nil, err
	}
	chainClient := chain.NewClient(gqlClient("chain", chainCfg, logger))

	ingestCfg, err := cfg.ReadServiceConfig("Ingest")
	if err != nil {
		return nil, err
	}
	ingestClient := ingest.New(ingestCfg.URL, ingest.WithLogger(logger))

	walletCfg, err := cfg.ReadServiceConfig("WalletBridge")
	if err != nil {
		return nil, err
	}
	bridge := account.NewWalletBridge(walletCfg.URL, walletCfg.Timeout, walletCfg.RetryMax, logger)

	notifier, rdb, err := Notifier(cfg, logger)
	if err != nil {
		return nil, err
	}
	s.rdb = rdb
	locker, err := redislocker.New(rdb, redislocker.WithExpiry(limits.MintTimeout))
	if err != nil {
		return nil, fmt.Errorf("cannot set up account locks: %w", err)
	}
	redislocker.RegisterMetrics(nil)

	branch := account.NewBranch(
		account.NewCustodial(chainClient, ingestClient, logger),
		account.NewNonCustodial(bridge, ingestClient,
			account.WithWritePolling(limits.SettleDelay, limits.MaxWriteAttempts, limits.WriteRetryInterval),
			account.WithNonCustodialLogger(logger),
		),
		chainClient,
		s.loader,
		account.WithLogger(logger),
		account.WithSharedLock(locker),
	)

	redisOpts, err := asynq.ParseRedisURI(cfg.ReadRedisConfig("RedisBus").URL)
	if err != nil {
		return nil, fmt.Errorf("cannot parse bus redis url: %w", err)
	}
	s.bus, err = bus.NewClient(redisOpts, logger)
	if err != nil {
		return nil, err
	}

	s.studio, err = publish.NewStudio(
		contentSvc, ingestClient,
		publish.NewBranchMinter(branch),
		publish.NewBusScheduler(s.bus, limits.MintTimeout),
		publish.WithLimits(publish.Limits{MaxVideoSize: limits.MaxVideoSize, MaxImageSize: limits.MaxImageSize}),
		publish.WithLogger(logger),
	)
	if err != nil {
		return nil, err
	}

	icfg, err := cfg.ReadIdentityConfig("Identity")
	if err != nil {
		return nil, err
	}
	verifier, err := identity.NewOIDCVerifier(ctx, icfg.IssuerURL, icfg.ClientID)
	if err != nil {
		return nil, fmt.Errorf("cannot set up identity verifier: %w", err)
	}
	scfg, err := cfg.ReadSessionConfig("Session")
	if err != nil {
		return nil, err
	}
	kf, err := keybox.KeyfobFromString(scfg.PrivateKey)
	if err != nil {
		return nil, fmt.Errorf("cannot load session key: %w", err)
	}
	s.Keyfob = kf.WithIssuer(scfg.Issuer)
	auth := identity.New(verifier, s.Keyfob, s.loader,
		identity.WithCookie(scfg.CookieName, scfg.TTL, scfg.Secure),
		identity.WithLogger(logger),
	)

	s.limiter = iprate.NewLimiter(rate.Limit(limits.SignInRate), limits.SignInBurst)
	s.Handler = api.NewHandler(s.studio, auth, branch, s.loader, notifier,
		api.WithLogger(logger),
		api.WithSignInLimiter(s.limiter),
	)
	logger.Info("studio services wired", "max_video_size", limits.MaxVideoSize, "mint_timeout", limits.MintTimeout)
	return s, nil
}

func (s *Services) Close() {
	s.studio.Close()
	s.loader.Close()
	s.limiter.Stop()
	s.bus.Close()
	s.rdb.Close()
}

// NewWorker builds the bus processing mint reconciliation tasks.
func NewWorker(cfg *configng.Config, logger logging.KVLogger) (*bus.Bus, func(), error) {
	contentSvc, err := ContentService(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	notifier, rdb, err := Notifier(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	redisOpts, err := asynq.ParseRedisURI(cfg.ReadRedisConfig("RedisBus").URL)
	if err != nil {
		rdb.Close()
		return nil, nil, fmt.Errorf("cannot parse bus redis url: %w", err)
	}
	b, err := bus.New(redisOpts, bus.WithLogger(logger), bus.WithConcurrency(cfg.V.GetInt("WorkerConcurrency")))
	if err != nil {
		rdb.Close()
		return nil, nil, err
	}
	reconciler := publish.NewReconciler(contentSvc, notifier, logger)
	b.AddHandler(tasks.TaskReconcileMint, reconciler.HandleTask)
	return b, func() { rdb.Close() }, nil
}
