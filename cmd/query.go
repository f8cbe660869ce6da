package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/bgdnvk/resonance/internal/knowledge"
)

var queryCmd = &cobra.Command{
	Use:   "query [text]",
	Short: "Search the knowledge index",
	Long: `Score every indexed chunk against the query and print the best matches.

Examples:
  resonance query "refund window"
  resonance query --top-k 8 --json "rolling restart"`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		k, _ := cmd.Flags().GetInt("top-k")
		asJSON, _ := cmd.Flags().GetBool("json")

		lex, err := loadLexicon(cfg.LexiconFile)
		if err != nil {
			return err
		}
		ctx := context.Background()
		store, err := knowledge.OpenStore(ctx, cfg.Knowledge.Artifact, sourceOptions(cfg))
		if err != nil {
			return err
		}
		r := knowledge.NewRetriever(nil, knowledge.NewTokenizer(lex.Stopwords), logger.Named("knowledge"))
		if err := r.Reload(ctx, store); err != nil {
			return fmt.Errorf("failed to load knowledge index (run `resonance index` first): %w", err)
		}

		hits, err := r.Search(strings.Join(args, " "), k)
		if err != nil {
			return err
		}
		return printSnippets(cmd, hits, asJSON)
	},
}

func printSnippets(cmd *cobra.Command, hits []knowledge.Snippet, asJSON bool) error {
	out := cmd.OutOrStdout()
	if asJSON {
		if hits == nil {
			hits = []knowledge.Snippet{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(hits)
	}
	if len(hits) == 0 {
		fmt.Fprintln(out, "No matches.")
		return nil
	}
	for i, h := range hits {
		fmt.Fprintf(out, "%d. %s (%s) score=%.3f\n", i+1, h.Title, h.Path, h.Score)
		fmt.Fprintf(out, "   %s\n\n", preview(h.Text, 240))
	}
	return nil
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}

func init() {
	queryCmd.Flags().Int("top-k", knowledge.DefaultTopK, "number of results")
	queryCmd.Flags().Bool("json", false, "print results as JSON")
	rootCmd.AddCommand(queryCmd)
}
