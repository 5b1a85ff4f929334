package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcpress/chatbot/internal/author"
	"github.com/mcpress/chatbot/internal/catalog"
	"github.com/mcpress/chatbot/internal/config"
	"github.com/mcpress/chatbot/internal/reconcile"
)

var reconcileFlags struct {
	dryRun bool
	limit  int
}

var reconcileCmd = &cobra.Command{
	Use:   "reconcile <export.csv>",
	Short: "Reconcile document authors against a store CSV export",
	Long: `Compares every document's author list against the CSV of record and
rewrites associations that differ. The action log is printed as JSON.
With --dry-run the same log is produced without touching the database.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runReconcile(cmd, args[0])
	},
}

func init() {
	reconcileCmd.Flags().BoolVar(&reconcileFlags.dryRun, "dry-run", false, "compute the action log without applying changes")
	reconcileCmd.Flags().IntVar(&reconcileFlags.limit, "limit", 0, "cap the number of corrective actions (0 = unlimited)")
	rootCmd.AddCommand(reconcileCmd)
}

func runReconcile(cmd *cobra.Command, csvPath string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	f, err := os.Open(csvPath)
	if err != nil {
		return fmt.Errorf("opening %s: %w", csvPath, err)
	}
	defer f.Close()

	rows, err := reconcile.ReadCSV(f)
	if err != nil {
		return fmt.Errorf("reading %s: %w", csvPath, err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, closePool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePool()

	logger := slog.Default()
	authors, err := author.NewStore(pool, logger)
	if err != nil {
		return fmt.Errorf("creating author store: %w", err)
	}
	cat, err := catalog.NewStore(pool, logger)
	if err != nil {
		return fmt.Errorf("creating catalog store: %w", err)
	}

	report, err := reconcile.New(cat, authors, logger).Run(ctx, rows, reconcile.Options{
		DryRun: reconcileFlags.dryRun,
		Limit:  reconcileFlags.limit,
	})
	if err != nil {
		return fmt.Errorf("reconciling: %w", err)
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}
