package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

type rootOptions struct {
	configPath  string
	driver      string
	logLevel    string
	output      string
	auditLog    string
	metricsFile string
	timeout     time.Duration
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	if cerr := a.Close(ctx); err == nil {
		err = cerr
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd(a *app) *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "pgrun",
		Short:         "pgrun - run one statement against a named Postgres connection",
		Long:          "Resolve a connection id or connection string, run a single statement, fetch or commit, and close.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.init(cmd, opts)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&opts.configPath, "config", "", "JSON config file")
	flags.StringVar(&opts.driver, "driver", "", "Database driver (pgx, pq, sqlite)")
	flags.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	flags.StringVarP(&opts.output, "output", "o", "table", "Output format (table, json, yaml)")
	flags.StringVar(&opts.auditLog, "audit-log", "", "Append one JSON line per statement to this file")
	flags.StringVar(&opts.metricsFile, "metrics-textfile", "", "Write Prometheus metrics to this file on exit")
	flags.DurationVar(&opts.timeout, "timeout", 0, "Statement timeout (0 = none)")

	rootCmd.AddCommand(
		execCmd(a),
		execFetchCmd(a),
		batchCmd(a),
		fetchCmd(a),
		fetchOneCmd(a),
		connCmd(a),
		secretCmd(a),
	)

	return rootCmd
}
