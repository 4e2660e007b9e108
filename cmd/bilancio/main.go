package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bilancio/internal/cli"
)

const shutdownTimeout = 30 * time.Second

var rootCmd = &cobra.Command{
	Use:           "bilancio",
	Short:         "Personal accounting front end and its development backend",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cli.LoadEnvFile()
	},
}

func main() {
	rootCmd.AddCommand(newServeCmd(), newDevAPICmd(), newRequestCmd(), newEventsCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
