package main

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"bilancio/internal/amqp"
	"bilancio/internal/cli"
	"bilancio/internal/config"
	"bilancio/internal/core"
	"bilancio/internal/log"
)

func newEventsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "events",
		Short: "Print transaction events published by the dev backend",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := cli.SetupLogger(cfg.LogLevel)
			if cfg.AMQPURL == "" {
				return errors.New("AMQP_URL is not set")
			}

			client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue, logger.WithComponent(log.ComponentAMQP))
			if err != nil {
				return err
			}
			defer client.Close()

			ctx, done := cli.GracefulShutdown(logger, shutdownTimeout, nil)
			err = client.ConsumeTransactionEvents(ctx, func(ev *amqp.TransactionEvent) error {
				return printEvent(cmd.OutOrStdout(), ev)
			})
			if err != nil && !errors.Is(err, context.Canceled) {
				return err
			}
			cli.WaitForShutdown(ctx, done)
			return nil
		},
	}
}

func printEvent(out io.Writer, ev *amqp.TransactionEvent) error {
	_, err := fmt.Fprintf(out, "%s %-7s tx=%s account=%s user=%s %s %s %s\n",
		ev.Timestamp.Format("2006-01-02 15:04:05"),
		ev.Action,
		ev.TransactionID,
		ev.AccountID,
		ev.UserID,
		ev.Type,
		core.Money{Cents: ev.AmountCents}.Format(),
		ev.Name)
	return err
}
