package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/zulandar/watchtower/internal/db"
)

func newDBCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Database management commands",
	}

	cmd.AddCommand(newDBMigrateCmd())
	return cmd
}

func newDBMigrateCmd() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create the database and migrate all tables",
		Long:  "For MySQL, creates the configured database if it does not exist. Then migrates the incident, shift, report and conversation tables.",
	}
	explicit := addConfigFlag(cmd, &configPath)
	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		return runDBMigrate(cmd, configPath, explicit())
	}
	return cmd
}

func runDBMigrate(cmd *cobra.Command, configPath string, explicit bool) error {
	out := cmd.OutOrStdout()

	cfg, err := loadConfig(configPath, explicit)
	if err != nil {
		return err
	}

	if cfg.Database.Driver == "mysql" {
		adminDB, err := db.ConnectAdmin(cfg.Database)
		if err != nil {
			return err
		}
		err = db.CreateDatabase(adminDB, cfg.Database.Name)
		db.Close(adminDB)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Database %s ready on %s:%d\n", cfg.Database.Name, cfg.Database.Host, cfg.Database.Port)
	}

	gormDB, err := openDB(cfg)
	if err != nil {
		return err
	}
	defer db.Close(gormDB)

	fmt.Fprintf(out, "Migrated %d tables (%s)\n", len(db.AllModels()), describeDB(cfg.Database.Driver, cfg.Database.Path, cfg.Database.Name))
	return nil
}

func describeDB(driver, path, name string) string {
	if driver == "mysql" {
		return "mysql " + name
	}
	return "sqlite " + path
}
