package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kirillkom/permit-query-assistant/internal/infrastructure/loader"
)

var (
	ingestIDColumn    string
	ingestTextColumns []string
	ingestSheet       string
	ingestQueue       bool
	ingestBatchSize   int
)

func init() {
	ingestCmd.Flags().StringVar(&ingestIDColumn, "id-column", "", "column holding the record id (default: <file>#<row>)")
	ingestCmd.Flags().StringSliceVar(&ingestTextColumns, "text-columns", nil, "columns that make up the document text (default: all)")
	ingestCmd.Flags().StringVar(&ingestSheet, "sheet", "", "XLSX sheet to read (default: first sheet)")
	ingestCmd.Flags().BoolVar(&ingestQueue, "queue", false, "publish to NATS for the worker instead of ingesting directly")
	ingestCmd.Flags().IntVar(&ingestBatchSize, "batch-size", 64, "documents per queued message")
	rootCmd.AddCommand(ingestCmd)
}

var ingestCmd = &cobra.Command{
	Use:   "ingest <file>...",
	Short: "Load permit exports into the document store",
	Long: `Read CSV, XLSX, PDF or plain-text permit exports, embed every record and
store it. Tabular files yield one document per row; text and PDF files are
split into overlapping chunks.

Examples:
  permitqa ingest permits.csv --id-column "Permit Number"
  permitqa ingest amendments.xlsx --sheet 2024 --text-columns Type,Status
  permitqa ingest notes.pdf --queue`,
	Args: cobra.MinimumNArgs(1),
	RunE: runIngest,
}

func runIngest(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	drafts, err := loader.LoadAll(args, loader.Options{
		IDColumn:     ingestIDColumn,
		TextColumns:  ingestTextColumns,
		Sheet:        ingestSheet,
		ChunkSize:    cfg.ChunkSize,
		ChunkOverlap: cfg.ChunkOverlap,
	})
	if err != nil {
		return err
	}
	if len(drafts) == 0 {
		return fmt.Errorf("no documents found in %d file(s)", len(args))
	}

	app, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	out := cmd.OutOrStdout()
	if ingestQueue {
		queue, err := app.OpenQueue()
		if err != nil {
			return err
		}
		size := ingestBatchSize
		if size <= 0 {
			size = len(drafts)
		}
		for start := 0; start < len(drafts); start += size {
			end := min(start+size, len(drafts))
			if err := queue.PublishDocuments(cmd.Context(), drafts[start:end]); err != nil {
				return fmt.Errorf("publish documents %d-%d: %w", start, end-1, err)
			}
		}
		fmt.Fprintf(out, "queued %d documents on %s\n", len(drafts), cfg.NATSSubject)
		return nil
	}

	ids, err := app.IngestUC.Ingest(cmd.Context(), drafts)
	if err != nil {
		return fmt.Errorf("ingest stopped after %d of %d documents: %w", len(ids), len(drafts), err)
	}
	fmt.Fprintf(out, "stored %d documents\n", len(ids))
	return nil
}
