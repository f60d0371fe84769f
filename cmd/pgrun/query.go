package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oriys/pgrun/internal/records"
)

// readStatement returns sql, or the contents of a file for "@path", or
// standard input for "-".
func readStatement(cmd *cobra.Command, sql string) (string, error) {
	switch {
	case sql == "-":
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return "", fmt.Errorf("read statement: %w", err)
		}
		return string(data), nil
	case strings.HasPrefix(sql, "@"):
		data, err := os.ReadFile(sql[1:])
		if err != nil {
			return "", fmt.Errorf("read statement: %w", err)
		}
		return string(data), nil
	default:
		return sql, nil
	}
}

// statementArgs parses <conn-id> <sql> [args...].
func statementArgs(cmd *cobra.Command, args []string) (connID, sql string, params []any, err error) {
	sql, err = readStatement(cmd, args[1])
	if err != nil {
		return "", "", nil, err
	}
	return args[0], sql, records.ParseArgs(args[2:]), nil
}

func execCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exec <conn-id> <sql> [args...]",
		Short: "Execute a statement and commit",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			connID, sql, params, err := statementArgs(cmd, args)
			if err != nil {
				return err
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			ctx, cancel := a.statementContext(cmd.Context())
			defer cancel()

			if err := a.exec.Execute(ctx, connID, sql, params...); err != nil {
				return err
			}
			a.printer.PrintStatus("Committed")
			return nil
		},
	}
}

func execFetchCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "exec-fetch <conn-id> <sql> [args...]",
		Short: "Execute a statement, print the rows it returns, and commit",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			connID, sql, params, err := statementArgs(cmd, args)
			if err != nil {
				return err
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			ctx, cancel := a.statementContext(cmd.Context())
			defer cancel()

			rows, err := a.exec.ExecuteAndFetchAll(ctx, connID, sql, params...)
			if err != nil {
				return err
			}
			return a.printer.PrintRows(nil, rows)
		},
	}
}

func batchCmd(a *app) *cobra.Command {
	var (
		recordsPath string
		batchSize   int
	)

	cmd := &cobra.Command{
		Use:   "batch <conn-id> <sql>",
		Short: "Execute a statement once per record and commit once",
		Long:  "Records are read from a YAML or JSON file holding a list of rows, each row a list of values.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			sql, err := readStatement(cmd, args[1])
			if err != nil {
				return err
			}

			var recs [][]any
			if recordsPath == "-" {
				recs, err = records.Parse(cmd.InOrStdin())
			} else {
				recs, err = records.ParseFile(recordsPath)
			}
			if err != nil {
				return err
			}

			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			ctx, cancel := a.statementContext(cmd.Context())
			defer cancel()

			if batchSize < 1 {
				batchSize = a.exec.BatchSize()
			}
			if err := a.exec.ExecuteBatch(ctx, args[0], sql, recs, batchSize); err != nil {
				return err
			}
			pages := (len(recs) + batchSize - 1) / batchSize
			a.printer.PrintStatus("Committed %d records in %d batches", len(recs), pages)
			return nil
		},
	}

	cmd.Flags().StringVarP(&recordsPath, "records", "r", "", "Records file (- for stdin)")
	cmd.Flags().IntVarP(&batchSize, "batch-size", "b", 0, "Records per round-trip (0 = configured default)")
	cmd.MarkFlagRequired("records")

	return cmd
}

func fetchCmd(a *app) *cobra.Command {
	var withColumns bool

	cmd := &cobra.Command{
		Use:   "fetch <conn-id> <sql> [args...]",
		Short: "Run a query and print all rows",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			connID, sql, params, err := statementArgs(cmd, args)
			if err != nil {
				return err
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			ctx, cancel := a.statementContext(cmd.Context())
			defer cancel()

			if !withColumns {
				rows, err := a.exec.FetchAll(ctx, connID, sql, params...)
				if err != nil {
					return err
				}
				return a.printer.PrintRows(nil, rows)
			}
			rows, cols, err := a.exec.FetchAllWithColumns(ctx, connID, sql, params...)
			if err != nil {
				return err
			}
			return a.printer.PrintRows(cols, rows)
		},
	}

	cmd.Flags().BoolVarP(&withColumns, "columns", "c", false, "Include column names")

	return cmd
}

func fetchOneCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "fetch-one <conn-id> <sql> [args...]",
		Short: "Run a query and print the first column of the first row",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			connID, sql, params, err := statementArgs(cmd, args)
			if err != nil {
				return err
			}
			if err := a.open(cmd.Context()); err != nil {
				return err
			}
			ctx, cancel := a.statementContext(cmd.Context())
			defer cancel()

			v, err := a.exec.FetchOne(ctx, connID, sql, params...)
			if err != nil {
				return err
			}
			return a.printer.PrintValue(v)
		},
	}
}
