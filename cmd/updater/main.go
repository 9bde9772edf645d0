// backend/cmd/updater/main.go
//
// updater is the operator CLI for the tax data acquisition workflow. It
// drives the same services as the HTTP backend, so a headless deployment
// can run checks and approvals from cron or by hand.
package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/stockvaluatorpro/taxdata/backend/config"
	"github.com/stockvaluatorpro/taxdata/backend/database"
	"github.com/stockvaluatorpro/taxdata/backend/models"
	"github.com/stockvaluatorpro/taxdata/backend/notify"
	"github.com/stockvaluatorpro/taxdata/backend/scraper"
	"github.com/stockvaluatorpro/taxdata/backend/services"
)

type app struct {
	cfg      *config.Config
	store    *database.Store
	checks   *services.CheckService
	updates  *services.UpdateService
	transfer *services.TransferService
	backup   *services.BackupManager
}

func newApp(configPath string) (*app, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, relying on environment and config file")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		log.Printf("Config file %s not found, using built-in defaults", configPath)
		configPath = ""
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading configuration: %w", err)
	}
	store, err := database.Open(cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("initializing database: %w", err)
	}

	client := scraper.NewClient(cfg.Source)
	dispatcher := notify.NewDispatcher(cfg.Notify)
	backup := services.NewBackupManager(store, cfg.Database.BackupDir)
	return &app{
		cfg:      cfg,
		store:    store,
		checks:   services.NewCheckService(cfg, client, store, dispatcher),
		updates:  services.NewUpdateService(cfg, client, store, store, backup),
		transfer: services.NewTransferService(store),
		backup:   backup,
	}, nil
}

func (a *app) close() {
	if err := a.store.Close(); err != nil {
		log.Printf("Error closing database: %v", err)
	}
}

func parseTarget(arg string) ([]models.DatasetType, error) {
	if arg == "all" {
		return models.AllDatasetTypes, nil
	}
	t, err := models.ParseDatasetType(arg)
	if err != nil {
		return nil, err
	}
	return []models.DatasetType{t}, nil
}

func main() {
	var configPath string

	root := &cobra.Command{
		Use:           "updater",
		Short:         "Check for and apply Japanese tax reference data updates",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&configPath, "config", "config/config.yaml", "path to the YAML config file")

	root.AddCommand(
		checkCmd(&configPath),
		approveCmd(&configPath),
		statusCmd(&configPath),
		historyCmd(&configPath),
		scheduleCmd(&configPath),
		importCmd(&configPath),
		exportCmd(&configPath),
		periodsCmd(&configPath),
		backupCmd(&configPath),
	)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func checkCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "check [type|all]",
		Short: "Probe the source site and record whether updates are available",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			target := "all"
			if len(args) == 1 {
				target = args[0]
			}
			types, err := parseTarget(target)
			if err != nil {
				return err
			}
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			var failures int
			for _, t := range types {
				rec, err := a.checks.Check(cmd.Context(), t)
				if err != nil {
					fmt.Printf("%-14s check failed: %v\n", t, err)
					failures++
					continue
				}
				if rec.UpdateAvailable {
					fmt.Printf("%-14s UPDATE AVAILABLE (%s)\n", t, rec.Notes)
				} else {
					fmt.Printf("%-14s up to date\n", t)
				}
			}
			if failures == len(types) {
				return fmt.Errorf("all %d checks failed", failures)
			}
			return nil
		},
	}
}

func approveCmd(configPath *string) *cobra.Command {
	var approver string
	cmd := &cobra.Command{
		Use:   "approve <type>",
		Short: "Approve the pending update for a dataset and acquire it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := models.ParseDatasetType(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			result, err := a.updates.Approve(cmd.Context(), t, approver)
			if errors.Is(err, services.ErrNothingToApprove) {
				fmt.Printf("%s: nothing to approve (run 'updater check %s' first)\n", t, t)
				return err
			}
			if err != nil {
				return fmt.Errorf("applying %s update: %w", t, err)
			}
			fmt.Printf("%s: imported %d rows for %04d-%02d\n",
				result.DatasetType, result.RowsImported, result.Year, result.Month)
			return nil
		},
	}
	cmd.Flags().StringVar(&approver, "approver", "", "name recorded on the approval")
	cmd.MarkFlagRequired("approver")
	return cmd
}

func statusCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the latest check and newest imported period per dataset",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			statuses, err := a.updates.Status(cmd.Context())
			if err != nil {
				return err
			}
			for _, st := range statuses {
				fmt.Printf("%-14s", st.DatasetType)
				if st.LatestCheck == nil {
					fmt.Printf(" never checked")
				} else {
					fmt.Printf(" checked %s status=%s available=%t",
						st.LatestCheck.CheckedAt.Format("2006-01-02 15:04"),
						st.LatestCheck.Status, st.LatestCheck.UpdateAvailable)
				}
				if st.LatestData != nil {
					fmt.Printf(" data=%04d-%02d", st.LatestData.Year, st.LatestData.Month)
				} else {
					fmt.Printf(" data=none")
				}
				fmt.Println()
			}
			return nil
		},
	}
}

func historyCmd(configPath *string) *cobra.Command {
	var limit int
	var typeArg string
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent update check records, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var t models.DatasetType
			if typeArg != "" {
				parsed, err := models.ParseDatasetType(typeArg)
				if err != nil {
					return err
				}
				t = parsed
			}
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			records, err := a.updates.History(cmd.Context(), t, limit)
			if err != nil {
				return err
			}
			if len(records) == 0 {
				fmt.Println("No check records.")
				return nil
			}
			for _, rec := range records {
				fmt.Printf("#%-5d %-14s %s available=%-5t status=%-9s",
					rec.ID, rec.DatasetType, rec.CheckedAt.Format("2006-01-02 15:04"),
					rec.UpdateAvailable, rec.Status)
				if rec.ApprovedBy != "" {
					fmt.Printf(" approved_by=%s", rec.ApprovedBy)
				}
				if rec.Notes != "" {
					fmt.Printf(" (%s)", rec.Notes)
				}
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 10, "maximum number of records to show")
	cmd.Flags().StringVar(&typeArg, "type", "", "restrict to one dataset type")
	return cmd
}

func scheduleCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "schedule",
		Short: "Run the periodic check loop in the foreground until interrupted",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			scheduler := services.NewScheduler(a.cfg, a.checks, a.updates)
			return scheduler.Run(ctx)
		},
	}
}

func importCmd(configPath *string) *cobra.Command {
	var year, month int
	cmd := &cobra.Command{
		Use:   "import <type> <file.csv>",
		Short: "Import a dataset for a period from a CSV file, replacing existing rows",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := models.ParseDatasetType(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			count, err := a.transfer.ImportCSV(cmd.Context(), t, args[1], year, month)
			if err != nil {
				return err
			}
			fmt.Printf("Imported %d %s rows for %04d-%02d\n", count, t, year, month)
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "period year the rows belong to")
	cmd.Flags().IntVar(&month, "month", int(time.Now().Month()), "period month the rows belong to")
	return cmd
}

func exportCmd(configPath *string) *cobra.Command {
	var year, month int
	var outputDir string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export all datasets for a period as CSV files",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			files, err := a.transfer.ExportPeriod(cmd.Context(), year, month, outputDir)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				fmt.Printf("No data stored for %04d-%02d\n", year, month)
				return nil
			}
			for _, f := range files {
				fmt.Println(f)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&year, "year", time.Now().Year(), "period year to export")
	cmd.Flags().IntVar(&month, "month", int(time.Now().Month()), "period month to export")
	cmd.Flags().StringVar(&outputDir, "out", ".", "directory to write CSV files into")
	return cmd
}

func periodsCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "periods <type>",
		Short: "List the data periods stored for a dataset, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			t, err := models.ParseDatasetType(args[0])
			if err != nil {
				return err
			}
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			periods, err := a.store.AvailablePeriods(cmd.Context(), t)
			if err != nil {
				return err
			}
			if len(periods) == 0 {
				fmt.Printf("No data stored for %s\n", t)
				return nil
			}
			for _, p := range periods {
				fmt.Printf("%04d-%02d\n", p.Year, p.Month)
			}
			return nil
		},
	}
}

func backupCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Write a point-in-time snapshot of the database",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*configPath)
			if err != nil {
				return err
			}
			defer a.close()

			snap, err := a.backup.Snapshot(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Snapshot written: %s (%d bytes)\n", snap.Path, snap.SizeBytes)
			return nil
		},
	}
}
