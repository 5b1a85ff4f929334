package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/mcpress/chatbot/internal/author"
	"github.com/mcpress/chatbot/internal/catalog"
	"github.com/mcpress/chatbot/internal/config"
	"github.com/mcpress/chatbot/internal/ingest"
	"github.com/mcpress/chatbot/internal/search"
)

var ingestFlags struct {
	title    string
	docType  string
	authors  string
	url      string
	category string
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file.pdf> [file.pdf...]",
	Short: "Ingest PDF files into the catalog",
	Long: `Extracts text from each PDF, registers the document with its authors,
and stores embedded chunks for semantic search. Flags apply to every
file given; with multiple files, prefer per-file metadata via the API.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runIngest(cmd, args)
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFlags.title, "title", "", "document title (default: derived from filename)")
	ingestCmd.Flags().StringVar(&ingestFlags.docType, "type", "book", "document type: book or article")
	ingestCmd.Flags().StringVar(&ingestFlags.authors, "authors", "", `author names, store-export format ("A; B" or "A and B")`)
	ingestCmd.Flags().StringVar(&ingestFlags.url, "url", "", "store product URL")
	ingestCmd.Flags().StringVar(&ingestFlags.category, "category", "", "store category")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
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

	embedder, err := newEmbedder(ctx, cfg)
	if err != nil {
		return fmt.Errorf("creating embedder: %w", err)
	}

	logger := slog.Default()

	authors, err := author.NewStore(pool, logger)
	if err != nil {
		return fmt.Errorf("creating author store: %w", err)
	}
	cat, err := catalog.NewStore(pool, logger)
	if err != nil {
		return fmt.Errorf("creating catalog store: %w", err)
	}
	chunks, err := search.NewStore(pool, embedder, logger)
	if err != nil {
		return fmt.Errorf("creating search store: %w", err)
	}

	pipeline := ingest.New(cat, authors, chunks, ingest.PDFExtractor{},
		cfg.ChunkSize, cfg.ChunkOverlap, logger)

	for _, path := range args {
		content, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("reading %s: %w", path, err)
		}

		result, err := pipeline.Ingest(ctx, filepath.Base(path), content, ingest.Metadata{
			Title:      ingestFlags.title,
			Type:       catalog.DocumentType(ingestFlags.docType),
			Authors:    ingestFlags.authors,
			MCPressURL: ingestFlags.url,
			Category:   ingestFlags.category,
		})
		if err != nil {
			return fmt.Errorf("ingesting %s: %w", path, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "ingested %s: document %d, %d pages, %d chunks\n",
			result.Filename, result.DocumentID, result.Pages, result.Chunks)
	}
	return nil
}
