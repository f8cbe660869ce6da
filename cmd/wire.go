package cmd

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/bgdnvk/resonance/internal/ai"
	"github.com/bgdnvk/resonance/internal/audit"
	"github.com/bgdnvk/resonance/internal/config"
	"github.com/bgdnvk/resonance/internal/dispatch"
	"github.com/bgdnvk/resonance/internal/knowledge"
	"github.com/bgdnvk/resonance/internal/lexicon"
	"github.com/bgdnvk/resonance/internal/orchestrator"
	"github.com/bgdnvk/resonance/internal/routing"
	"github.com/bgdnvk/resonance/internal/semantic"
	"github.com/bgdnvk/resonance/internal/server"
)

// app holds the wired pipeline for commands that serve chat turns.
type app struct {
	cfg       config.Config
	orch      *orchestrator.Orchestrator
	retriever *knowledge.Retriever
	artifact  knowledge.ArtifactStore
	audit     *audit.Store
}

func loadLexicon(path string) (*lexicon.Lexicon, error) {
	if path == "" {
		return lexicon.Default(), nil
	}
	return lexicon.Load(path)
}

func sourceOptions(cfg config.Config) knowledge.SourceOptions {
	aws := cfg.Knowledge.AWS
	return knowledge.SourceOptions{
		GitHubToken:        cfg.Knowledge.GitHubToken,
		GCSCredentials:     cfg.Knowledge.GCSCredentials,
		AWSProfile:         aws.Profile,
		AWSRegion:          aws.Region,
		AWSAccessKeyID:     aws.AccessKeyID,
		AWSSecretAccessKey: aws.SecretAccessKey,
		AWSSessionToken:    aws.SessionToken,
		S3Endpoint:         aws.Endpoint,
	}
}

// newApp builds every stage. A missing knowledge index or audit database
// degrades the service instead of failing startup.
func newApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	lex, err := loadLexicon(cfg.LexiconFile)
	if err != nil {
		return nil, err
	}

	var analyzer semantic.TextAnalyzer
	if cfg.Analytics.Provider == "azure" {
		analyzer = semantic.NewAzureAnalyzer(cfg.Analytics.Endpoint, cfg.Analytics.APIKey)
	}
	extractor := semantic.NewExtractor(analyzer, semantic.ExtractorOptions{
		Lexicon: lex,
		Timeout: cfg.Analytics.Timeout,
		Logger:  logger.Named("extractor"),
	})

	analytic, err := ai.NewProvider(ctx, cfg.Analytic)
	if err != nil {
		return nil, fmt.Errorf("analytic backend: %w", err)
	}
	empathetic, err := ai.NewProvider(ctx, cfg.Empathetic)
	if err != nil {
		return nil, fmt.Errorf("empathetic backend: %w", err)
	}
	dispatcher := dispatch.New(dispatch.Backends{Analytic: analytic, Empathetic: empathetic}, dispatch.Options{
		MaxInFlight:  cfg.Dispatch.MaxInFlight,
		RetryBackoff: cfg.Dispatch.RetryBackoff,
		DualDeadline: cfg.Dispatch.DualDeadline,
		Logger:       logger.Named("dispatch"),
	})

	a := &app{cfg: cfg}
	a.retriever = knowledge.NewRetriever(nil, knowledge.NewTokenizer(lex.Stopwords), logger.Named("knowledge"))
	a.artifact, err = knowledge.OpenStore(ctx, cfg.Knowledge.Artifact, sourceOptions(cfg))
	if err != nil {
		logger.Warn("Knowledge store unavailable", zap.String("artifact", cfg.Knowledge.Artifact), zap.Error(err))
	} else if err := a.retriever.Reload(ctx, a.artifact); err != nil {
		logger.Warn("Knowledge index not loaded; answers will not be grounded", zap.Error(err))
	}

	opts := orchestrator.Options{TopK: cfg.Knowledge.TopK, Logger: logger}
	if cfg.Audit.DSN != "" {
		store, err := audit.Open(ctx, cfg.Audit.Driver, cfg.Audit.DSN)
		if err != nil {
			logger.Warn("Audit log disabled", zap.Error(err))
		} else {
			a.audit = store
			opts.Recorder = store
		}
	}

	a.orch = orchestrator.New(extractor, routing.NewPolicy(lex), a.retriever, dispatcher, opts)
	return a, nil
}

// auditReader avoids handing the server a typed nil.
func (a *app) auditReader() server.AuditReader {
	if a.audit == nil {
		return nil
	}
	return a.audit
}

func (a *app) Close() {
	if a.audit != nil {
		_ = a.audit.Close()
	}
}
