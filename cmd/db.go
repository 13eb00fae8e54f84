package cmd

import (
	"strconv"

	migrate "github.com/rubenv/sql-migrate"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/sabimarket/sabimarket-backend/db"
)

type DatabaseCommand struct{}

func (c *DatabaseCommand) Command() *cobra.Command {
	dbCmd := &cobra.Command{
		Use:   "db",
		Short: "Database schema management",
		Run: func(cmd *cobra.Command, _ []string) {
			if err := cmd.Help(); err != nil {
				log.Fatalf("Error calling help command: %s", err.Error())
			}
		},
	}

	dbCmd.AddCommand(&cobra.Command{
		Use:   "migrate-up [count]",
		Short: "Apply pending migrations; applies all when count is omitted",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			c.runMigration(args, migrate.Up)
		},
	})
	dbCmd.AddCommand(&cobra.Command{
		Use:   "migrate-down count",
		Short: "Roll back count migrations",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			c.runMigration(args, migrate.Down)
		},
	})

	return dbCmd
}

func (c *DatabaseCommand) runMigration(args []string, dir migrate.MigrationDirection) {
	count := 0
	if len(args) > 0 {
		var err error
		count, err = strconv.Atoi(args[0])
		if err != nil {
			log.Fatalf("Invalid migration count %q: %s", args[0], err.Error())
		}
	}

	applied, err := db.Migrate(globalOptions.cfg.DatabaseURL, dir, count)
	if err != nil {
		log.Fatalf("Error running migrations: %s", err.Error())
	}
	log.Infof("Successfully applied %d migrations.", applied)
}
