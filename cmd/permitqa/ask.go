package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var askTopK int

func init() {
	askCmd.Flags().IntVarP(&askTopK, "k", "k", 0, "number of documents to retrieve (default: rag_top_k)")
	rootCmd.AddCommand(askCmd)
}

var askCmd = &cobra.Command{
	Use:   "ask <question>",
	Short: "Answer a question from the stored permit records",
	Long: `Retrieve the permit records closest to the question and ask the chat
backend to answer from them.

Examples:
  permitqa ask "Which permits were converted from long-form to short-form?"
  permitqa ask -k 5 "What amendment types exist?"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runAsk,
}

func runAsk(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	app, err := openApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer app.Close()

	k := cfg.RAGTopK
	if cmd.Flags().Changed("k") {
		k = askTopK
	}
	result, err := app.QueryUC.Answer(cmd.Context(), strings.Join(args, " "), k)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, result.Answer)
	if !result.Grounded() {
		fmt.Fprintln(out, "\n(no matching permit records)")
		return nil
	}
	fmt.Fprintln(out, "\nSources:")
	for _, doc := range result.Sources {
		fmt.Fprintf(out, "  - %s\n", doc.ID)
	}
	if result.DroppedSources > 0 {
		fmt.Fprintf(out, "  (%d more omitted to fit the context budget)\n", result.DroppedSources)
	}
	return nil
}
