package knowledge

import (
	"context"
	"slices"
	"strings"
	"sync/atomic"

	"go.uber.org/zap"

	apperrors "github.com/bgdnvk/resonance/internal/errors"
)

// DefaultTopK is the number of grounding snippets spliced into a prompt.
const DefaultTopK = 4

// Snippet is one scored chunk.
type Snippet struct {
	Path  string  `json:"path"`
	Title string  `json:"title"`
	Text  string  `json:"text"`
	Score float64 `json:"score"`
	Doc   int     `json:"doc"`
	Chunk int     `json:"chunk"`
}

// Retriever answers queries against the current index. The index pointer
// is swapped wholesale on reload; readers never see a partial index.
type Retriever struct {
	index  atomic.Pointer[Index]
	tok    *Tokenizer
	logger *zap.Logger
}

func NewRetriever(idx *Index, tok *Tokenizer, logger *zap.Logger) *Retriever {
	if tok == nil {
		tok = DefaultTokenizer()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Retriever{tok: tok, logger: logger}
	if idx != nil {
		r.index.Store(idx)
	}
	return r
}

// Swap installs a new index and returns the previous one.
func (r *Retriever) Swap(idx *Index) *Index {
	return r.index.Swap(idx)
}

// Index returns the index currently served.
func (r *Retriever) Index() *Index {
	return r.index.Load()
}

// Reload loads the artifact from store and swaps it in. The current index
// keeps serving if loading fails.
func (r *Retriever) Reload(ctx context.Context, store ArtifactStore) error {
	idx, err := store.Load(ctx)
	if err != nil {
		return err
	}
	r.Swap(idx)
	r.logger.Info("Loaded knowledge index",
		zap.String("location", store.Location()),
		zap.Int("chunks", idx.TotalChunks),
		zap.Int("documents", len(idx.Docs)))
	return nil
}

// Search scores every chunk as the sum over distinct query terms of
// tf(term, chunk) * idf(term) and returns the top k by descending score.
// Equal scores keep document order.
func (r *Retriever) Search(query string, k int) ([]Snippet, error) {
	idx := r.index.Load()
	if idx == nil {
		return nil, apperrors.New(apperrors.QueryError, "no knowledge index loaded", nil)
	}
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.New(apperrors.QueryError, "empty query", nil)
	}
	terms := r.queryTerms(query)
	if len(terms) == 0 {
		return nil, apperrors.Newf(apperrors.QueryError, nil, "query %q has no index terms", query)
	}
	if k <= 0 {
		k = DefaultTopK
	}

	var hits []Snippet
	for di, doc := range idx.Docs {
		for ci, ch := range doc.Chunks {
			score := 0.0
			for _, term := range terms {
				if n := ch.TF[term]; n > 0 {
					score += float64(n) * idx.IDF[term]
				}
			}
			if score <= 0 {
				continue
			}
			hits = append(hits, Snippet{
				Path:  doc.Path,
				Title: doc.Title,
				Text:  ch.Text,
				Score: score,
				Doc:   di,
				Chunk: ci,
			})
		}
	}

	slices.SortStableFunc(hits, func(a, b Snippet) int {
		switch {
		case a.Score > b.Score:
			return -1
		case a.Score < b.Score:
			return 1
		default:
			return 0
		}
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

func (r *Retriever) queryTerms(query string) []string {
	tokens := r.tok.Tokenize(query)
	seen := make(map[string]struct{}, len(tokens))
	terms := tokens[:0]
	for _, tok := range tokens {
		if _, dup := seen[tok]; dup {
			continue
		}
		seen[tok] = struct{}{}
		terms = append(terms, tok)
	}
	return terms
}

// Grounding is the request-path entry point: query errors are logged and
// produce an empty grounding set instead of failing the chat request.
func (r *Retriever) Grounding(ctx context.Context, query string, k int) []Snippet {
	if r == nil || ctx.Err() != nil {
		return nil
	}
	hits, err := r.Search(query, k)
	if err != nil {
		r.logger.Debug("Grounding unavailable", zap.Error(err))
		return nil
	}
	return hits
}
