package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amishk599/hiringradar/internal/store"
)

var migrateSteps int

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply all pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := setupLogger(debug)
		cfg, err := loadConfig(cfgPath, logger)
		if err != nil {
			return err
		}
		// Open applies pending migrations.
		st, err := store.Open(cmd.Context(), storeOptions(cfg), logger)
		if err != nil {
			return err
		}
		return st.Close()
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := setupLogger(debug)
		cfg, err := loadConfig(cfgPath, logger)
		if err != nil {
			return err
		}
		return store.MigrateDown(storeOptions(cfg), migrateSteps, logger)
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the current schema version",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logger := setupLogger(debug)
		cfg, err := loadConfig(cfgPath, logger)
		if err != nil {
			return err
		}
		version, dirty, err := store.MigrationVersion(storeOptions(cfg))
		if err != nil {
			return err
		}
		fmt.Printf("version %d (dirty: %t)\n", version, dirty)
		return nil
	},
}

func init() {
	migrateDownCmd.Flags().IntVar(&migrateSteps, "steps", 1, "number of migrations to roll back")
	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}
