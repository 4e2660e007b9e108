package main

import (
	"context"
	"time"

	"github.com/spf13/cobra"

	"bilancio/internal/amqp"
	"bilancio/internal/cli"
	"bilancio/internal/config"
	"bilancio/internal/devapi"
	"bilancio/internal/log"
	"bilancio/internal/storage"
)

func newDevAPICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devapi",
		Short: "Run the reference backend on SQLite",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDevAPI()
		},
	}
}

func runDevAPI() error {
	logger := cli.SetupLogger(config.Load().LogLevel)
	cfg := cli.LoadAndValidateConfig(logger, (*config.Config).ValidateDevAPI)

	repo, err := storage.NewSQLiteRepository(cfg.SQLiteDBPath, logger.WithComponent(log.ComponentStorage))
	if err != nil {
		logger.Error("Failed to initialize SQLite repository", log.FieldError, err, "path", cfg.SQLiteDBPath)
		return err
	}
	defer repo.Close()

	opts := devapi.Options{
		Addr:       ":" + cfg.DevAPIPort,
		Repo:       repo,
		Logger:     logger.WithComponent(log.ComponentDevAPI),
		SessionTTL: cfg.SessionTTL,
	}

	var amqpClient *amqp.Client
	if cfg.AMQPURL != "" {
		amqpClient, err = amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.WithComponent(log.ComponentAMQP))
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			return err
		}
		defer amqpClient.Close()
		opts.Publisher = amqpClient
		logger.Info("Transaction events enabled", "exchange", cfg.AMQPExchange, "queue", cfg.AMQPQueue)
	} else {
		logger.Info("Transaction events disabled - no AMQP_URL provided")
	}

	srv := devapi.NewServer(opts)
	srv.StartSessionCleanup(10 * time.Minute)

	ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err)
		}
	})

	logger.Info("Starting dev backend", "port", cfg.DevAPIPort, "db", cfg.SQLiteDBPath)
	if err := cli.RunServer(ctx, done, srv.ListenAndServe); err != nil {
		logger.Error("Server error", log.FieldError, err, "port", cfg.DevAPIPort)
		return err
	}
	logger.Info("Dev backend stopped gracefully")
	return nil
}
