package main

import (
	"context"
	"fmt"

	"github.com/brojonat/txconfirm/service/db"
	"github.com/urfave/cli/v2"
)

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply the submissions schema (idempotent)",
		Action: func(c *cli.Context) error {
			databaseURL := c.String("database-url")
			if databaseURL == "" {
				return fmt.Errorf("--database-url or DATABASE_URL is required")
			}

			ctx := context.Background()
			pool, err := db.Connect(ctx, databaseURL)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := db.NewStore(pool, nil).Migrate(ctx); err != nil {
				return err
			}
			fmt.Fprintln(c.App.Writer, "✓ Schema is up to date")
			return nil
		},
	}
}
