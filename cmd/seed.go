package cmd

import (
	"context"
	"fmt"

	"github.com/hmoradi/banking-saga/internal/config"
	"github.com/hmoradi/banking-saga/internal/db"
	"github.com/hmoradi/banking-saga/internal/model"
	"github.com/hmoradi/banking-saga/internal/repository"
	"github.com/spf13/cobra"
)

// Deterministic ids so demo requests can be replayed verbatim.
var seedUsers = []model.User{
	{ID: "01HZDEMOUSER00000000000001", Name: "Alice Zhang", Email: "alice@example.com"},
	{ID: "01HZDEMOUSER00000000000002", Name: "Bruno Costa", Email: "bruno@example.com"},
}

var seedAccounts = []model.Account{
	{ID: "01HZDEMOACCT00000000000001", OwnerID: "01HZDEMOUSER00000000000001", Balance: 100_00},
	{ID: "01HZDEMOACCT00000000000002", OwnerID: "01HZDEMOUSER00000000000002", Balance: 0},
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with demo users and accounts",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}

		sqlDB, err := db.OpenMySQL(cfg.MySQL)
		if err != nil {
			return fmt.Errorf("mysql connect: %w", err)
		}
		defer sqlDB.Close()

		ctx := context.Background()
		users := repository.NewUsersRepository(sqlDB)
		accounts := repository.NewAccountsRepository(sqlDB)

		for _, u := range seedUsers {
			if err := users.Insert(ctx, u); err != nil {
				return fmt.Errorf("insert user %q: %w", u.Name, err)
			}
		}
		for _, a := range seedAccounts {
			if err := accounts.Insert(ctx, a); err != nil {
				return fmt.Errorf("insert account %s: %w", a.ID, err)
			}
		}

		fmt.Println(">> Seed completed ✅")
		return nil
	},
}
