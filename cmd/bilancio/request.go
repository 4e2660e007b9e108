package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/spf13/cobra"

	"bilancio/internal/cli"
	"bilancio/internal/config"
	"bilancio/internal/log"
	"bilancio/internal/request"
)

func newRequestCmd() *cobra.Command {
	var cookies []string
	cmd := &cobra.Command{
		Use:   "request METHOD PATH [key=value...]",
		Short: "Send one request to the backend and print the envelope",
		Example: `  bilancio request GET /account
  bilancio request GET /transaction account_id=3 --cookie bilancio_api_session=...
  bilancio request PUT /account name=Contanti`,
		Args: cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := config.Load()
			logger := cli.SetupLogger(cfg.LogLevel).WithComponent(log.ComponentRequest)

			opts, err := requestOptions(args, cookies)
			if err != nil {
				return err
			}
			rc, err := request.New(cfg.BackendURL,
				request.WithTimeout(cfg.RequestTimeout),
				request.WithLogger(logger))
			if err != nil {
				return err
			}
			return runRequest(cmd.Context(), rc, opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringArrayVar(&cookies, "cookie", nil, "cookie to send as name=value (repeatable)")
	return cmd
}

// requestOptions turns command arguments into request options.
func requestOptions(args, cookies []string) (request.Options, error) {
	opts := request.Options{
		Method: strings.ToUpper(args[0]),
		URL:    args[1],
	}
	if len(args) > 2 {
		opts.Data = make(map[string]any, len(args)-2)
		for _, kv := range args[2:] {
			key, value, ok := strings.Cut(kv, "=")
			if !ok || key == "" {
				return opts, fmt.Errorf("invalid field %q: expected key=value", kv)
			}
			opts.Data[key] = value
		}
	}
	for _, c := range cookies {
		name, value, ok := strings.Cut(c, "=")
		if !ok || name == "" {
			return opts, fmt.Errorf("invalid cookie %q: expected name=value", c)
		}
		opts.Cookies = append(opts.Cookies, &http.Cookie{Name: name, Value: value})
	}
	return opts, nil
}

func runRequest(ctx context.Context, rc *request.Client, opts request.Options, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	env, err := rc.Send(ctx, opts)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(env); err != nil {
		return err
	}
	for _, c := range env.Cookies {
		fmt.Fprintf(out, "cookie: %s=%s\n", c.Name, c.Value)
	}
	return nil
}
