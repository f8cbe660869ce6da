package cmd

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/bgdnvk/resonance/internal/knowledge"
)

var indexCmd = &cobra.Command{
	Use:   "index [source]",
	Short: "Build the knowledge index from a document corpus",
	Long: `Chunk, tokenize and score every .md, .markdown, .txt and .pdf document under
the source and write the TF-IDF index artifact.

The source may be a local directory, s3://bucket/prefix, gs://bucket/prefix
or github://owner/repo[/path][@ref].

Examples:
  resonance index
  resonance index ./docs --out db/localrag.json
  resonance index s3://corp-handbook/policies --out s3://corp-handbook/index/localrag.json
  resonance index github://acme/handbook/docs@main --skip-unreadable`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		source := cfg.Knowledge.Source
		if len(args) == 1 {
			source = args[0]
		}
		out, _ := cmd.Flags().GetString("out")
		if out == "" {
			out = cfg.Knowledge.Artifact
		}

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		lex, err := loadLexicon(cfg.LexiconFile)
		if err != nil {
			return err
		}
		src, err := knowledge.OpenSource(ctx, source, sourceOptions(cfg))
		if err != nil {
			return err
		}
		store, err := knowledge.OpenStore(ctx, out, sourceOptions(cfg))
		if err != nil {
			return err
		}

		ix := knowledge.NewIndexer(src, knowledge.IndexerOptions{
			Tokenizer:      knowledge.NewTokenizer(lex.Stopwords),
			SkipUnreadable: cfg.Knowledge.SkipUnreadable,
			Progress:       cmd.OutOrStdout(),
			Logger:         logger.Named("indexer"),
		})
		if _, err := ix.Run(ctx, store); err != nil {
			logger.Error("Index build failed", zap.String("source", source), zap.Error(err))
			return err
		}
		return nil
	},
}

func init() {
	indexCmd.Flags().String("out", "", "artifact location (default from knowledge.artifact, db/localrag.json)")
	indexCmd.Flags().Bool("skip-unreadable", false, "skip documents that cannot be read instead of aborting")
	_ = viper.BindPFlag("knowledge.skip_unreadable", indexCmd.Flags().Lookup("skip-unreadable"))
	rootCmd.AddCommand(indexCmd)
}
