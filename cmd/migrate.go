package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hmoradi/banking-saga/internal/config"
	"github.com/hmoradi/banking-saga/internal/db"
	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations (dev: DROP & CREATE tables)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sqlDB, err := db.OpenMySQL(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("open mysql: %w", err)
		}
		defer sqlDB.Close()

		sqlPath := filepath.Join("migrations", "001_init.sql")
		sqlBytes, err := os.ReadFile(sqlPath)
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", sqlPath, err)
		}

		if _, err := sqlDB.Exec("SET FOREIGN_KEY_CHECKS = 0"); err != nil {
			return fmt.Errorf("disable fk checks: %w", err)
		}
		if _, err := sqlDB.Exec(string(sqlBytes)); err != nil {
			_, _ = sqlDB.Exec("SET FOREIGN_KEY_CHECKS = 1")
			return fmt.Errorf("exec migration: %w", err)
		}
		if _, err := sqlDB.Exec("SET FOREIGN_KEY_CHECKS = 1"); err != nil {
			return fmt.Errorf("enable fk checks: %w", err)
		}

		chDB, err := db.OpenClickHouse(cfg.ClickHouse)
		if err != nil {
			return fmt.Errorf("open clickhouse: %w", err)
		}
		defer chDB.Close()

		chPath := filepath.Join("migrations", "002_statements_clickhouse.sql")
		chBytes, err := os.ReadFile(chPath)
		if err != nil {
			return fmt.Errorf("read migration file %s: %w", chPath, err)
		}
		// ClickHouse takes one statement per Exec.
		for _, stmt := range strings.Split(string(chBytes), ";") {
			stmt = strings.TrimSpace(stmt)
			if stmt == "" {
				continue
			}
			if _, err := chDB.Exec(stmt); err != nil {
				return fmt.Errorf("exec clickhouse migration: %w", err)
			}
		}

		fmt.Println(">> Migration complete ✅")
		return nil
	},
}
