// Package app wires the relay together and runs it.
package app

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/dalemusser/contactrelay/cache"
	"github.com/dalemusser/contactrelay/config"
	"github.com/dalemusser/contactrelay/deliverability"
	"github.com/dalemusser/contactrelay/health"
	"github.com/dalemusser/contactrelay/httputil"
	"github.com/dalemusser/contactrelay/logging"
	"github.com/dalemusser/contactrelay/mailer"
	"github.com/dalemusser/contactrelay/metrics"
	"github.com/dalemusser/contactrelay/middleware"
	"github.com/dalemusser/contactrelay/relay"
	"github.com/dalemusser/contactrelay/router"
	"github.com/dalemusser/contactrelay/server"
	"github.com/dalemusser/contactrelay/version"
	"github.com/dalemusser/contactrelay/workers"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
)

// Options are the command-line inputs to Run.
type Options struct {
	ConfigPath  string
	PrintConfig bool
	Flags       *pflag.FlagSet
	Stdout      io.Writer
}

// Deps are the collaborators BuildHandler mounts.
type Deps struct {
	Checker relay.ExistenceChecker
	Sender  mailer.Sender
	Checks  map[string]health.Check
}

// BuildHandler mounts every route on the standard router.
func BuildHandler(cfg *config.Config, deps Deps, logger *zap.Logger) http.Handler {
	r := router.New(cfg, logger)

	rl := relay.New(cfg, deps.Checker, deps.Sender, logger)
	r.With(middleware.RequireJSON()).
		Method(http.MethodPost, "/", relay.NewHandler(rl, cfg.Server.RequestTimeout, logger))

	health.Mount(r, deps.Checks, cfg.Server.SMTPTimeout, logger)
	version.Mount(r)
	r.Method(http.MethodGet, "/metrics", metrics.Handler())

	return r
}

// Run executes the startup sequence:
//
//  1. Bootstrap logger
//  2. Load config (or print it and return)
//  3. Build final logger from config
//  4. Register metrics
//  5. Open the verdict cache and build the deliverability checker
//  6. Build the SMTP sender
//  7. Wire shutdown signals to a context
//  8. Serve until shutdown, then release resources
//
// A config failure is returned before anything is served.
func Run(ctx context.Context, opts Options) error {
	bootstrap := logging.BootstrapLogger()
	defer bootstrap.Sync()

	path := config.ResolvePath(opts.ConfigPath)
	var flags []*pflag.FlagSet
	if opts.Flags != nil {
		flags = append(flags, opts.Flags)
	}
	cfg, err := config.Load(bootstrap, path, flags...)
	if err != nil {
		bootstrap.Error("config load failed", zap.Error(err))
		return err
	}

	if opts.PrintConfig {
		out := opts.Stdout
		if out == nil {
			out = os.Stdout
		}
		dump, err := cfg.Dump()
		if err != nil {
			return fmt.Errorf("dump config: %w", err)
		}
		_, err = io.WriteString(out, dump)
		return err
	}

	logger := logging.MustBuildLogger(cfg.Server.LogLevel, cfg.Server.Env)
	defer logger.Sync()
	logger.Info("starting contactrelay",
		zap.String("version", version.String()),
		zap.String("config", cfg.Path()),
		zap.Int("endpoints", len(cfg.Endpoints)),
	)

	metrics.RegisterDefault(logger)
	httputil.SetJSONLogger(logger)

	checks := map[string]health.Check{}

	verdicts, err := openCache(ctx, cfg.Probe, logger)
	if err != nil {
		logger.Error("verdict cache unavailable", zap.Error(err))
		return err
	}
	defer verdicts.Close()
	if cfg.Probe.RedisAddr != "" {
		checks["cache"] = verdicts.Ping
	}

	pool := workers.NewPool(cfg.Probe.Workers, logger)
	var probe deliverability.Probe = deliverability.NewEmailVerifier(cfg.Probe)
	if cfg.Probe.CacheTTL > 0 {
		probe = deliverability.NewCached(probe, verdicts, cfg.Probe.CacheTTL, logger)
	}
	checker := deliverability.NewAdapter(probe, pool, cfg.Probe.Timeout, logger)

	sender := mailer.NewSMTP(cfg.Server, logger)
	defer sender.Close()
	checks["smtp"] = sender.Ping

	ctx, cancel := server.WithShutdownSignals(ctx, logger)
	defer cancel()

	handler := BuildHandler(cfg, Deps{Checker: checker, Sender: sender, Checks: checks}, logger)

	if err := server.ListenAndServeWithContext(ctx, cfg.Server, handler, logger); err != nil {
		logger.Error("server exited with error", zap.Error(err))
		return err
	}
	logger.Info("server stopped", zap.Int("probes_in_flight", pool.Running()))
	return nil
}

func openCache(ctx context.Context, cfg config.ProbeSettings, logger *zap.Logger) (cache.Cache, error) {
	if cfg.RedisAddr == "" {
		return cache.NewMemory(time.Minute), nil
	}
	c, err := cache.NewRedis(ctx, cache.RedisConfig{
		Address:   cfg.RedisAddr,
		Password:  cfg.RedisPassword,
		DB:        cfg.RedisDB,
		KeyPrefix: "contactrelay:",
	})
	if err != nil {
		return nil, fmt.Errorf("open redis cache at %s: %w", cfg.RedisAddr, err)
	}
	logger.Info("using redis verdict cache", zap.String("addr", cfg.RedisAddr))
	return c, nil
}
