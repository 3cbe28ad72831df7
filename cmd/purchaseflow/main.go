package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"time"

	"purchaseflow/internal/backend"
	"purchaseflow/internal/cache"
	"purchaseflow/internal/cli"
	"purchaseflow/internal/config"
	"purchaseflow/internal/core"
	apphttp "purchaseflow/internal/http"
	"purchaseflow/internal/log"
	"purchaseflow/internal/middleware/security"
	"purchaseflow/internal/remote"
)

func main() {
	configFile := flag.String("config", "", "optional YAML configuration file")
	envFile := flag.String("env", ".env", "optional dotenv file")
	flag.Parse()

	boot := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg, err := cli.LoadConfig(*configFile, *envFile, false)
	if err != nil {
		cli.Fatal(boot, "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg.LogLevel)
	logger.Info("Starting purchaseflow", log.FieldOperation, log.OpStartup, "config", cfg.String())

	ctx, cancel := cli.SignalContext(context.Background(), logger)
	err = cli.WithStore(ctx, logger, cfg, true, func(ctx context.Context, res *backend.Result) error {
		return serve(ctx, logger, cfg, res)
	})
	cancel()
	if err != nil {
		cli.Fatal(logger, "Server failed", err, "port", cfg.Port)
	}
	logger.Info("Server stopped gracefully", log.FieldOperation, log.OpShutdown)
}

func serve(ctx context.Context, logger *log.Logger, cfg *config.Config, res *backend.Result) error {
	snap := res.Store.FetchAll(ctx)
	logger.Info("Initial load complete",
		log.FieldMode, snap.Mode.String(),
		log.FieldProducts, len(snap.Products),
		log.FieldPurchases, len(snap.Purchases))

	ipExtract, err := security.NewIPExtractor(cfg.TrustedProxyCIDRs()...)
	if err != nil {
		return err
	}
	opts := []apphttp.Option{
		apphttp.WithLogger(logger),
		apphttp.WithFormatter(core.NewFormatter(cfg.Currency)),
		apphttp.WithRateLimit(cfg.RateLimitPerMinute),
		apphttp.WithIPExtractor(ipExtract),
	}
	if client, ok := res.Remote.(*remote.Client); ok {
		if cfg.ReportCacheTTL > 0 {
			reports := cache.NewReports(client, 64, cfg.ReportCacheTTL)
			caches := cache.NewManager()
			caches.Register(reports)
			caches.StartCleanup(cfg.ReportCacheTTL)
			defer caches.Stop()
			opts = append(opts, apphttp.WithReports(reports))
		} else {
			opts = append(opts, apphttp.WithReports(client))
		}
	}

	srv := apphttp.NewServer(":"+cfg.Port, res.Store, opts...)
	srv.ReadTimeout = 10 * time.Second
	srv.WriteTimeout = cfg.APITimeout*2 + 5*time.Second
	srv.IdleTimeout = 60 * time.Second
	srv.MaxHeaderBytes = 1 << 16 // 64KB

	errCh := make(chan error, 1)
	go func() {
		logger.Info("HTTP server listening", "port", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", log.FieldOperation, log.OpShutdown, log.FieldError, err)
	}
	return nil
}
