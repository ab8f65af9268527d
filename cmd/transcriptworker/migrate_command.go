package main

import (
	"github.com/spf13/cobra"

	"podnotes/pkg/db"
)

func newMigrateCommand(configFlag *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate [command] [args...]",
		Short: "Run schema migrations (up, down, status, version, redo, reset)",
		RunE: func(cmd *cobra.Command, args []string) error {
			command := "up"
			if len(args) > 0 {
				command, args = args[0], args[1:]
			}

			a, err := loadApp(*configFlag)
			if err != nil {
				return err
			}
			defer a.Close()

			conn, err := a.connectDirect(cmd.Context())
			if err != nil {
				return err
			}
			return db.Migrate(conn, command, args...)
		},
	}
}
