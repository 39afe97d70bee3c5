package cli

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mmynk/billtx/internal/calculator"
	"github.com/mmynk/billtx/internal/models"
	"github.com/mmynk/billtx/internal/service"
	"github.com/mmynk/billtx/internal/storage/sqlite"
)

// DemoCmd returns the demo command
func DemoCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "demo",
		Short: "Run the boundary scenarios on a scratch database",
		Long:  "Run every AddBills and AddBillsThenFail variant against a scratch SQLite file and print how the total moved",
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := os.MkdirTemp("", "billtx-demo-*")
			if err != nil {
				return fmt.Errorf("failed to create scratch directory: %w", err)
			}
			defer os.RemoveAll(dir)

			verbose, _ := cmd.Flags().GetBool("verbose")
			logger := slog.New(slog.NewTextHandler(io.Discard, nil))
			if verbose {
				logger = slog.Default()
			}
			return runDemo(cmd.Context(), cmd.OutOrStdout(), filepath.Join(dir, "demo.db"), logger)
		},
	}

	cmd.Flags().BoolP("verbose", "v", false, "Log service and boundary activity")

	return cmd
}

type scenario struct {
	name string
	run  func(ctx context.Context, user *models.User) error
}

func runDemo(ctx context.Context, w io.Writer, dbPath string, logger *slog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}

	store, err := sqlite.New(dbPath)
	if err != nil {
		return err
	}
	defer store.Close()

	svc := newUserService(store, logger)
	users, err := svc.AddUsers(ctx, "00000000000")
	if err != nil {
		return err
	}
	user := users[0]

	today := models.Day(time.Now())
	mixed := []models.BillInput{
		{Type: models.BillTypeFood, Value: decimal.NewFromInt(10), Date: today.AddDate(0, 0, -1)},
		{Type: models.BillTypeFood, Value: decimal.NewFromInt(20), Date: today.AddDate(0, 0, 1)},
	}
	valid := []models.BillInput{
		{Type: models.BillTypeTransport, Value: decimal.NewFromInt(5), Date: today},
		{Type: models.BillTypeLeisure, Value: decimal.NewFromInt(7), Date: today},
	}

	scenarios := []scenario{
		{"add_bill FOOD 50.00 + RENT 1000.00", func(ctx context.Context, u *models.User) error {
			if _, err := svc.AddBill(ctx, u.ID, models.BillTypeFood, decimal.RequireFromString("50.00")); err != nil {
				return err
			}
			_, err := svc.AddBill(ctx, u.ID, models.BillTypeRent, decimal.RequireFromString("1000.00"))
			return err
		}},
	}
	for _, mode := range []service.ValidationMode{
		service.ModePropagate,
		service.ModePropagateRollbackAny,
		service.ModePanic,
		service.ModeCatch,
		service.ModeCatchRemote,
	} {
		mode := mode
		scenarios = append(scenarios, scenario{"add_bills " + mode.String(), func(ctx context.Context, u *models.User) error {
			return svc.AddBills(ctx, u.ID, mixed, mode)
		}})
	}
	for _, mode := range []service.NestedMode{service.NestedDirect, service.NestedManaged} {
		mode := mode
		scenarios = append(scenarios, scenario{"add_bills_then_fail " + mode.String(), func(ctx context.Context, u *models.User) error {
			return svc.AddBillsThenFail(ctx, u.ID, valid, mode)
		}})
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "SCENARIO\tRESULT\tBEFORE\tAFTER\tDELTA")
	for _, sc := range scenarios {
		before, err := svc.TotalAmount(ctx)
		if err != nil {
			return err
		}
		result := "ok"
		if err := runScenario(ctx, sc, user); err != nil {
			result = err.Error()
		}
		after, err := svc.TotalAmount(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", sc.name, result, before.StringFixed(2), after.StringFixed(2), after.Sub(before).StringFixed(2))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	all, err := svc.ListUsers(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TYPE\tBILLS\tTOTAL")
	for _, tt := range calculator.TotalsByType(all) {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", tt.Type, tt.Count, tt.Total.StringFixed(2))
	}
	fmt.Fprintf(tw, "ALL\t\t%s\n", calculator.TotalAmount(all).StringFixed(2))
	return tw.Flush()
}

// runScenario reports a panic escaping sc as an error.
func runScenario(ctx context.Context, sc scenario, user *models.User) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("panic: %v", p)
		}
	}()
	return sc.run(ctx, user)
}
