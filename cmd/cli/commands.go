package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourorg/rentledger/internal/domain"
	"github.com/yourorg/rentledger/internal/infrastructure/logger"
	"github.com/yourorg/rentledger/internal/repository"
	"github.com/yourorg/rentledger/internal/security/auth"
	"github.com/yourorg/rentledger/internal/service"
	"github.com/yourorg/rentledger/pkg/config"
	"github.com/yourorg/rentledger/pkg/database"
)

// app is the database-backed environment shared by the commands.
type app struct {
	cfg  *config.Config
	log  *slog.Logger
	pool *database.ConnectionPool
	deps service.Deps
}

func openApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.NewLogger(cfg.LogLevel)

	pool, err := database.NewConnectionPool(ctx, &cfg.Database, log)
	if err != nil {
		return nil, err
	}
	return &app{
		cfg:  cfg,
		log:  log,
		pool: pool,
		deps: service.Deps{
			Store:  repository.NewStore(pool.ORM(), log),
			Clock:  time.Now,
			Logger: log,
		},
	}, nil
}

func (a *app) Close() { a.pool.Close() }

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			if err := repository.Migrate(cmd.Context(), a.pool.ORM()); err != nil {
				return fmt.Errorf("migration failed: %w", err)
			}
			fmt.Println("✓ Schema is up to date")
			return nil
		},
	}
}

func reportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Reconciliation reports",
	}

	monthly := &cobra.Command{
		Use:   "monthly",
		Short: "Monthly expected/received/pending summary for a landlord",
		RunE: func(cmd *cobra.Command, args []string) error {
			landlordID, _ := cmd.Flags().GetString("landlord")
			year, _ := cmd.Flags().GetInt("year")
			month, _ := cmd.Flags().GetInt("month")
			asCSV, _ := cmd.Flags().GetBool("csv")
			if landlordID == "" {
				return fmt.Errorf("--landlord is required")
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			reports := service.NewReportService(a.deps)
			actor := domain.SystemIdentity()
			if asCSV {
				return reports.LandlordMonthlyCSV(cmd.Context(), actor, landlordID, year, month, os.Stdout)
			}

			summary, err := reports.LandlordMonthlySummary(cmd.Context(), actor, landlordID, year, month)
			if err != nil {
				return err
			}
			printSummary(summary)
			return nil
		},
	}
	now := time.Now()
	monthly.Flags().String("landlord", "", "landlord ID")
	monthly.Flags().Int("year", now.Year(), "report year")
	monthly.Flags().Int("month", int(now.Month()), "report month (1-12)")
	monthly.Flags().Bool("csv", false, "write CSV instead of a table")

	cmd.AddCommand(monthly)
	return cmd
}

func printSummary(s *service.MonthlySummary) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintf(w, "PERIOD\t%s\n", s.Period)
	fmt.Fprintln(w, "PROPERTY\tEXPECTED\tRECEIVED\tPENDING")
	for _, p := range s.Properties {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", p.Name, p.Expected.StringFixed(2), p.Received.StringFixed(2), p.Pending.StringFixed(2))
	}
	fmt.Fprintf(w, "TOTAL\t%s\t%s\t%s\n", s.ExpectedTotal.StringFixed(2), s.ReceivedTotal.StringFixed(2), s.PendingTotal.StringFixed(2))
	w.Flush()

	if len(s.Arrears) == 0 {
		return
	}
	fmt.Println()
	w = tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TENANT\tUNIT\tPHONE\tPAID\tBALANCE")
	for _, r := range s.Arrears {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n", r.TenantName, r.UnitNumber, r.Phone, r.Paid.StringFixed(2), r.Balance.StringFixed(2))
	}
	w.Flush()
}

func remindCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remind",
		Short: "Run one rent-reminder pass",
		RunE: func(cmd *cobra.Command, args []string) error {
			year, _ := cmd.Flags().GetInt("year")
			month, _ := cmd.Flags().GetInt("month")
			period, err := domain.NewPeriod(year, month)
			if err != nil {
				return err
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			notes := service.NewNotificationService(a.deps, service.NewReportService(a.deps))
			run, err := notes.SendRentReminders(cmd.Context(), domain.SystemIdentity(), period)
			if err != nil {
				return err
			}
			fmt.Printf("✓ %s: %d landlord(s), %d tenant(s) reminded, %d digest(s)\n",
				run.Period, run.Landlords, run.TenantsReminded, run.DigestsSent)
			return nil
		},
	}
	now := time.Now()
	cmd.Flags().Int("year", now.Year(), "billing year")
	cmd.Flags().Int("month", int(now.Month()), "billing month (1-12)")
	return cmd
}

func createAdminCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Create an administrator account",
		RunE: func(cmd *cobra.Command, args []string) error {
			name, _ := cmd.Flags().GetString("name")
			phone, _ := cmd.Flags().GetString("phone")
			email, _ := cmd.Flags().GetString("email")
			password, _ := cmd.Flags().GetString("password")
			if password == "" {
				password = os.Getenv("ADMIN_PASSWORD")
			}

			a, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()

			tokens := auth.NewTokenManager(a.cfg.JWTSecret, a.cfg.JWTIssuer, a.cfg.JWTTTL)
			admin, err := service.NewAuthService(a.deps, tokens, nil).CreateAdmin(cmd.Context(), service.RegisterInput{
				Name:     name,
				Phone:    phone,
				Email:    email,
				Password: password,
			})
			if err != nil {
				return err
			}
			fmt.Printf("✓ Admin created: %s (%s)\n", admin.ID, admin.Phone)
			return nil
		},
	}
	cmd.Flags().String("name", "Administrator", "display name")
	cmd.Flags().String("phone", "", "phone number used to log in")
	cmd.Flags().String("email", "", "optional email")
	cmd.Flags().String("password", "", "password (defaults to $ADMIN_PASSWORD)")
	return cmd
}
