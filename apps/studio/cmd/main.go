package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/OdyseeTeam/mintstudio/apps/studio"
	"github.com/OdyseeTeam/mintstudio/internal/monitor"
	"github.com/OdyseeTeam/mintstudio/pkg/configng"
	"github.com/OdyseeTeam/mintstudio/pkg/logging"
	"github.com/OdyseeTeam/mintstudio/pkg/logging/zapadapter"
	"github.com/OdyseeTeam/mintstudio/version"

	"github.com/alecthomas/kong"
)

var cli struct {
	Serve   struct{} `cmd:"" help:"Start studio HTTP service"`
	Worker  struct{} `cmd:"" help:"Start mint reconciliation worker"`
	Version struct{} `cmd:"" help:"Print version"`

	Config string `help:"Directory containing studio.yml" default:"./config"`
	Debug  bool   `help:"Enable verbose logging"`
}

func main() {
	ctx := kong.Parse(&cli)

	var logger logging.KVLogger
	if cli.Debug {
		logger = zapadapter.NewNamedKV("studio", logging.NewLoggingOpts(logging.LevelDebug, "console"))
	} else {
		logger = zapadapter.NewNamedKV("studio", logging.NewLoggingOpts(logging.LevelInfo, "json"))
	}

	switch ctx.Command() {
	case "serve":
		serve(readConfig(logger), logger)
	case "worker":
		work(readConfig(logger), logger)
	case "version":
		fmt.Println(version.GetFullBuildName())
	default:
		logger.Fatal("unknown command", "name", ctx.Command())
	}
}

func readConfig(logger logging.KVLogger) *configng.Config {
	cfg, err := configng.Read(cli.Config, "studio", "yaml")
	if err != nil {
		logger.Fatal("config reading failed", "err", err)
	}
	monitor.ConfigureSentry(cfg.V.GetString("SentryDSN"), version.GetDevVersion(), cfg.V.GetString("Environment"), logger)
	return cfg
}

func serve(cfg *configng.Config, logger logging.KVLogger) {
	logger.Info("starting studio", version.BuildInfo()...)
	services, err := studio.NewServices(context.Background(), cfg, logger)
	if err != nil {
		logger.Fatal("service wiring failed", "err", err)
	}

	runCtx, runCancel := context.WithCancel(context.Background())

	launcher := studio.NewLauncher(
		studio.WithLogger(logger),
		studio.WithAPI(services.Handler.Routes()),
		studio.WithPublicKey(services.Keyfob.PublicKey()),
		studio.WithHTTPAddress(cfg.V.GetString("Address")),
		studio.WithCORSDomains(cfg.V.GetStringSlice("CORSDomains")),
		studio.WithShutdownTimeout(cfg.V.GetDuration("ShutdownTimeout")),
		studio.WithShutdownHook(services.Close),
	)

	go func() {
		trap := make(chan os.Signal, 1)
		signal.Notify(trap, syscall.SIGTERM, syscall.SIGINT, syscall.SIGQUIT)
		<-trap

		launcher.StartShutdown()
		// Wait for the readiness check to detect the failure
		<-time.After(cfg.V.GetDuration("GracefulShutdown"))
		launcher.CompleteShutdown()
		runCancel()
	}()

	if _, err := launcher.Build(); err != nil {
		logger.Fatal(err.Error())
	}
	launcher.Launch()
	<-runCtx.Done()
}

func work(cfg *configng.Config, logger logging.KVLogger) {
	logger.Info("starting reconciliation worker", version.BuildInfo()...)
	b, closeFn, err := studio.NewWorker(cfg, logger)
	if err != nil {
		logger.Fatal("worker wiring failed", "err", err)
	}
	defer closeFn()
	defer b.Shutdown()
	if err := b.StartHandlers(); err != nil {
		logger.Error("worker stopped", "err", err)
	}
}
