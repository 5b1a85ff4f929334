package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcpress/chatbot/internal/config"
	"github.com/mcpress/chatbot/internal/dedup"
)

var dedupeCmd = &cobra.Command{
	Use:   "dedupe",
	Short: "List duplicate author groups",
	Long: `Scans the author registry for records whose names collapse to the same
canonical form and prints the groups as JSON, highest document count
first, with a recommended survivor for each group.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withEngine(cmd, func(ctx context.Context, engine *dedup.Engine) error {
			groups, err := engine.FindDuplicateGroups(ctx)
			if err != nil {
				return fmt.Errorf("scanning for duplicates: %w", err)
			}
			return printJSON(cmd, groups)
		})
	},
}

var mergeFlags struct {
	keep   int64
	merge  []int64
	dryRun bool
}

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge duplicate authors into one record",
	Long: `Reassigns every association of the --merge authors to the --keep author,
deletes associations that would collide with an existing link to the
keep author, and removes the merged author rows. All inside one
transaction; --dry-run reports the plan and rolls back.`,
	RunE: func(cmd *cobra.Command, _ []string) error {
		if mergeFlags.keep <= 0 {
			return fmt.Errorf("--keep is required")
		}
		if len(mergeFlags.merge) == 0 {
			return fmt.Errorf("--merge is required")
		}
		return withEngine(cmd, func(ctx context.Context, engine *dedup.Engine) error {
			result, err := engine.MergeAuthors(ctx, mergeFlags.keep, mergeFlags.merge, mergeFlags.dryRun)
			if err != nil {
				return fmt.Errorf("merging authors: %w", err)
			}
			return printJSON(cmd, result)
		})
	},
}

func init() {
	mergeCmd.Flags().Int64Var(&mergeFlags.keep, "keep", 0, "author id to keep")
	mergeCmd.Flags().Int64SliceVar(&mergeFlags.merge, "merge", nil, "author ids to merge into the kept one")
	mergeCmd.Flags().BoolVar(&mergeFlags.dryRun, "dry-run", false, "report the merge plan without applying it")
	rootCmd.AddCommand(dedupeCmd)
	rootCmd.AddCommand(mergeCmd)
}

// withEngine loads config, opens the pool and hands a ready merge engine
// to fn.
func withEngine(cmd *cobra.Command, fn func(context.Context, *dedup.Engine) error) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("validating config: %w", err)
	}

	ctx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	pool, closePool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer closePool()

	return fn(ctx, dedup.NewEngine(pool, slog.Default()))
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encoding output: %w", err)
	}
	return nil
}
