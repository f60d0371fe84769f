package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/oriys/pgrun/internal/secrets"
)

func secretCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Manage encrypted secrets referenced as $SECRET:<name>",
	}
	cmd.AddCommand(
		secretSetCmd(a),
		secretDeleteCmd(a),
		secretKeygenCmd(),
	)
	return cmd
}

func secretSetCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "set <name> <value|->",
		Short: "Encrypt and store a secret",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			value := args[1]
			if value == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("read secret: %w", err)
				}
				value = strings.TrimRight(string(data), "\r\n")
			}

			s, err := a.secretStore(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.Set(cmd.Context(), args[0], []byte(value)); err != nil {
				return err
			}
			a.printer.PrintStatus("Secret saved: %s (reference as %s)", args[0], secrets.Ref(args[0]))
			return nil
		},
	}
}

func secretDeleteCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <name>",
		Short: "Delete a secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := a.secretStore(cmd.Context())
			if err != nil {
				return err
			}
			if err := s.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			a.printer.PrintStatus("Secret deleted: %s", args[0])
			return nil
		},
	}
}

func secretKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Print a new hex-encoded secrets key",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := secrets.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}
