package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/nippolabs/nippo/internal/config"
	"github.com/nippolabs/nippo/internal/user"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed test users and demo reports",
	RunE:  runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

const seedPassword = "Test1234!"

func runSeed(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := pgxpool.New(ctx, cfg.Database.URL)
	if err != nil {
		return err
	}
	defer pool.Close()

	users := user.NewStore(pool)

	// Check if seed has already run.
	if _, err := users.GetByEmail(ctx, "admin@test.com"); err == nil {
		slog.Info("seed data already exists, skipping")
		return nil
	} else if !errors.Is(err, user.ErrNotFound) {
		return fmt.Errorf("checking existing users: %w", err)
	}

	admin, err := users.Create(ctx, user.CreateUserInput{
		Name: "管理太郎", Email: "admin@test.com", Password: seedPassword, Role: user.RoleAdmin,
	})
	if err != nil {
		return fmt.Errorf("creating admin: %w", err)
	}

	manager1, err := users.Create(ctx, user.CreateUserInput{
		Name: "上長一郎", Email: "manager1@test.com", Password: seedPassword, Role: user.RoleManager,
	})
	if err != nil {
		return fmt.Errorf("creating manager1: %w", err)
	}
	manager2, err := users.Create(ctx, user.CreateUserInput{
		Name: "上長二郎", Email: "manager2@test.com", Password: seedPassword, Role: user.RoleManager,
	})
	if err != nil {
		return fmt.Errorf("creating manager2: %w", err)
	}

	salesSeeds := []struct {
		name, email string
		managerID   int64
	}{
		{"営業太郎", "sales1@test.com", manager1.ID},
		{"営業花子", "sales2@test.com", manager1.ID},
		{"営業次郎", "sales3@test.com", manager2.ID},
	}

	var salesIDs []int64
	for _, s := range salesSeeds {
		managerID := s.managerID
		u, err := users.Create(ctx, user.CreateUserInput{
			Name: s.name, Email: s.email, Password: seedPassword,
			Role: user.RoleSales, ManagerID: &managerID,
		})
		if err != nil {
			return fmt.Errorf("creating %s: %w", s.email, err)
		}
		salesIDs = append(salesIDs, u.ID)
	}

	if err := seedReports(ctx, pool, salesIDs); err != nil {
		return err
	}

	slog.Info("seed complete",
		"admin", admin.Email,
		"managers", []string{manager1.Email, manager2.Email},
		"sales", len(salesIDs))
	fmt.Printf("\n=== Test Users Seeded ===\n")
	fmt.Printf("Admin:    admin@test.com\n")
	fmt.Printf("Managers: manager1@test.com, manager2@test.com\n")
	fmt.Printf("Sales:    sales1@test.com, sales2@test.com, sales3@test.com\n")
	fmt.Printf("Password: %s\n", seedPassword)
	return nil
}

// seedReports inserts a handful of demo reports with visits and comments so
// the listing endpoint has something to show right away.
func seedReports(ctx context.Context, pool *pgxpool.Pool, salesIDs []int64) error {
	problems := []string{
		"新商品の在庫が不足しており、追加発注の回答待ち。",
		"競合の値下げ提案があり、価格面での相談が必要。",
		"担当者不在が続き、キーパーソンと面談できていない。",
	}
	plans := []string{
		"明日、仕入れ部と在庫状況を確認して再訪問する。",
		"見積もりを再作成し、来週の商談に備える。",
		"アポイントを取り直し、決裁者との面談を設定する。",
	}

	for i, userID := range salesIDs {
		for d := 0; d < 3; d++ {
			date := time.Now().AddDate(0, 0, -d)
			var reportID int64
			err := pool.QueryRow(ctx,
				`INSERT INTO daily_reports (user_id, report_date, problem, plan)
				 VALUES ($1, $2, $3, $4)
				 ON CONFLICT (user_id, report_date) DO UPDATE SET problem = EXCLUDED.problem
				 RETURNING id`,
				userID, date.Format("2006-01-02"), problems[i%len(problems)], plans[i%len(plans)],
			).Scan(&reportID)
			if err != nil {
				return fmt.Errorf("creating demo report: %w", err)
			}

			if _, err := pool.Exec(ctx,
				`INSERT INTO visits (report_id, customer_name, notes)
				 VALUES ($1, $2, $3)`,
				reportID, fmt.Sprintf("株式会社サンプル%d", i+1), "定期訪問。次回提案の日程を調整。",
			); err != nil {
				return fmt.Errorf("creating demo visit: %w", err)
			}
		}
	}
	return nil
}
