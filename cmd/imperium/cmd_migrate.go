package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

var migrateRollback bool

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply or revert PostgreSQL schema migrations",
	Long: `Applies pending migrations, or with --rollback reverts the newest one.
Only available with STORAGE_BACKEND=postgres.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if current.migrator == nil {
			return errors.New("migrate requires STORAGE_BACKEND=postgres")
		}
		out := cmd.OutOrStdout()

		if migrateRollback {
			v, err := current.migrator.Rollback(cmd.Context())
			if err != nil {
				return err
			}
			if v == 0 {
				fmt.Fprintln(out, "Nothing to roll back.")
				return nil
			}
			fmt.Fprintf(out, "Rolled back migration %03d\n", v)
			return nil
		}

		n, err := current.migrator.Migrate(cmd.Context())
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Applied %d migration(s)\n", n)
		return nil
	},
}

func init() {
	migrateCmd.Flags().BoolVar(&migrateRollback, "rollback", false, "revert the newest migration")
}
