package knowledge

import (
	"context"
	"fmt"
	"io"
	"sync"

	"go.uber.org/zap"

	apperrors "github.com/bgdnvk/resonance/internal/errors"
)

// State is the indexer lifecycle: Idle -> Building -> Idle | Failed.
type State string

const (
	StateIdle     State = "idle"
	StateBuilding State = "building"
	StateFailed   State = "failed"
)

// IndexerOptions configures a build.
type IndexerOptions struct {
	Chunker   Chunker
	Tokenizer *Tokenizer
	Extractor TextExtractor
	// SkipUnreadable logs and skips documents that cannot be read or
	// extracted instead of failing the whole build.
	SkipUnreadable bool
	// Progress receives one line per indexed document. nil discards.
	Progress io.Writer
	Logger   *zap.Logger
}

// Indexer is a sequential batch job over a Source.
type Indexer struct {
	source Source
	opts   IndexerOptions

	mu      sync.Mutex
	state   State
	lastErr error
}

func NewIndexer(source Source, opts IndexerOptions) *Indexer {
	if opts.Chunker.Size == 0 {
		opts.Chunker = DefaultChunker()
	}
	if opts.Tokenizer == nil {
		opts.Tokenizer = DefaultTokenizer()
	}
	if opts.Extractor == nil {
		opts.Extractor = PDFToText{}
	}
	if opts.Progress == nil {
		opts.Progress = io.Discard
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Indexer{source: source, opts: opts, state: StateIdle}
}

// State reports the current lifecycle state.
func (ix *Indexer) State() State {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.state
}

// Err returns the error of the last failed build.
func (ix *Indexer) Err() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return ix.lastErr
}

func (ix *Indexer) transition(to State, err error) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.state = to
	ix.lastErr = err
}

// Build reads every document and returns the complete index. On any
// unreadable document (unless SkipUnreadable) it returns an
// INDEX_BUILD_ERROR and leaves the indexer Failed.
func (ix *Indexer) Build(ctx context.Context) (*Index, error) {
	ix.mu.Lock()
	if ix.state == StateBuilding {
		ix.mu.Unlock()
		return nil, fmt.Errorf("index build already in progress")
	}
	ix.state = StateBuilding
	ix.lastErr = nil
	ix.mu.Unlock()

	idx, err := ix.build(ctx)
	if err != nil {
		ix.transition(StateFailed, err)
		return nil, err
	}
	ix.transition(StateIdle, nil)
	return idx, nil
}

func (ix *Indexer) build(ctx context.Context) (*Index, error) {
	log := ix.opts.Logger
	refs, err := ix.source.List(ctx)
	if err != nil {
		return nil, apperrors.New(apperrors.IndexBuildError, "failed to enumerate "+ix.source.Location(), err)
	}
	log.Debug("Enumerated knowledge documents", zap.String("source", ix.source.Location()), zap.Int("documents", len(refs)))

	builder := newIndexBuilder(ix.opts.Chunker, ix.opts.Tokenizer)
	for _, ref := range refs {
		if err := ctx.Err(); err != nil {
			return nil, apperrors.New(apperrors.IndexBuildError, "index build cancelled", err)
		}

		text, err := ix.readDocument(ctx, ref)
		if err != nil {
			if ix.opts.SkipUnreadable {
				log.Warn("Skipping unreadable document", zap.String("path", ref.Path), zap.Error(err))
				continue
			}
			return nil, apperrors.New(apperrors.IndexBuildError, "unreadable document "+ref.Path, err)
		}

		doc := builder.add(SourceText{Path: ref.Path, Title: TitleFor(ref.Path), Text: text})
		fmt.Fprintf(ix.opts.Progress, "Indexed: %s (%d)\n", doc.Title, len(doc.Chunks))
	}

	idx := builder.finish()
	log.Info("Built knowledge index",
		zap.Int("documents", len(idx.Docs)),
		zap.Int("chunks", idx.TotalChunks),
		zap.Int("terms", len(idx.IDF)))
	return idx, nil
}

func (ix *Indexer) readDocument(ctx context.Context, ref DocumentRef) (string, error) {
	data, err := ix.source.Read(ctx, ref)
	if err != nil {
		return "", err
	}
	return documentText(ctx, ix.opts.Extractor, ref, data)
}

// Run builds the index and publishes it to store, then writes the summary
// line. Nothing is persisted when the build fails.
func (ix *Indexer) Run(ctx context.Context, store ArtifactStore) (*Index, error) {
	idx, err := ix.Build(ctx)
	if err != nil {
		return nil, err
	}
	if err := store.Save(ctx, idx); err != nil {
		ix.transition(StateFailed, err)
		return nil, err
	}
	fmt.Fprintf(ix.opts.Progress, "Indexed %d chunks from %d documents -> %s\n", idx.TotalChunks, len(idx.Docs), store.Location())
	return idx, nil
}
