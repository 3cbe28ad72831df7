package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"time"

	"purchaseflow/internal/amqp"
	"purchaseflow/internal/backend"
	"purchaseflow/internal/cli"
	"purchaseflow/internal/config"
	"purchaseflow/internal/log"
	gsheet "purchaseflow/internal/sheets/google"
	"purchaseflow/internal/worker"
)

type options struct {
	watch    bool
	interval time.Duration
}

func main() {
	configFile := flag.String("config", "", "optional YAML configuration file")
	envFile := flag.String("env", ".env", "optional dotenv file")
	var opts options
	flag.BoolVar(&opts.watch, "watch", false, "re-export on every purchase event from AMQP")
	flag.DurationVar(&opts.interval, "interval", 0, "also re-export periodically while watching (0 disables)")
	flag.Parse()

	boot := cli.SetupLogger(os.Getenv("LOG_LEVEL"))
	cfg, err := cli.LoadConfig(*configFile, *envFile, true)
	if err != nil {
		cli.Fatal(boot, "Configuration validation failed", err)
	}
	logger := cli.SetupLogger(cfg.LogLevel)

	ctx, cancel := cli.SignalContext(context.Background(), logger)
	err = cli.WithStore(ctx, logger, cfg, false, func(ctx context.Context, res *backend.Result) error {
		return run(ctx, logger, cfg, res, opts)
	})
	cancel()
	if err != nil {
		cli.Fatal(logger, "Exporter failed", err)
	}
}

func run(ctx context.Context, logger *log.Logger, cfg *config.Config, res *backend.Result, opts options) error {
	writer, err := gsheet.New(ctx, gsheet.Config{
		SpreadsheetID:   cfg.GoogleSpreadsheetID,
		SheetName:       cfg.GoogleSheetName,
		CredentialsJSON: cfg.GoogleServiceAccountJSON,
		CredentialsFile: cfg.GoogleServiceAccountFile,
	}, logger)
	if err != nil {
		return err
	}

	w := worker.NewExportWorker(res.Store, writer, logger)
	if _, err := w.ExportAll(ctx); err != nil {
		return err
	}
	if !opts.watch {
		return nil
	}

	go w.RunPeriodic(ctx, opts.interval)
	if err := consume(ctx, logger, cfg, w); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	exports, last := w.Stats()
	logger.Info("Exporter stopped",
		log.FieldOperation, log.OpShutdown,
		"exports", exports,
		"last_export", last.Format(time.RFC3339))
	return nil
}

// consume re-exports after each purchase event until ctx is cancelled.
func consume(ctx context.Context, logger *log.Logger, cfg *config.Config, w *worker.ExportWorker) error {
	if cfg.AMQPURL == "" {
		return errors.New("watch mode requires AMQP_URL")
	}
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	logger.InfoContext(ctx, "Watching purchase events", "queue", cfg.AMQPQueue)
	return client.ConsumePurchaseEvents(ctx, w.HandlePurchaseEvent)
}
