package knowledge

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/bgdnvk/resonance/internal/errors"
)

func retrievalCorpus() *Index {
	return BuildIndex([]SourceText{
		{Path: "billing.md", Title: "Billing", Text: "refund refund invoice billing cycle"},
		{Path: "deploy.md", Title: "Deploy", Text: "deploy the service with a rolling restart"},
		{Path: "refunds.md", Title: "Refunds", Text: "refund window is thirty days"},
		{Path: "twin.md", Title: "Twin", Text: "refund window is thirty days"},
	}, DefaultChunker(), DefaultTokenizer())
}

func TestSearchRanksByTFIDF(t *testing.T) {
	r := NewRetriever(retrievalCorpus(), nil, nil)

	hits, err := r.Search("refund", 10)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	assert.Equal(t, "billing.md", hits[0].Path)
	assert.Greater(t, hits[0].Score, hits[1].Score)
	assert.InDelta(t, 2*IDF(4, 3), hits[0].Score, 1e-9)
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i-1].Score, hits[i].Score)
	}
}

func TestSearchTiesKeepDocumentOrder(t *testing.T) {
	r := NewRetriever(retrievalCorpus(), nil, nil)

	hits, err := r.Search("thirty days window", 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, hits[0].Score, hits[1].Score)
	assert.Equal(t, "refunds.md", hits[0].Path)
	assert.Equal(t, "twin.md", hits[1].Path)
}

func TestSearchDuplicateQueryTermsCountOnce(t *testing.T) {
	r := NewRetriever(retrievalCorpus(), nil, nil)

	once, err := r.Search("deploy", 1)
	require.NoError(t, err)
	twice, err := r.Search("deploy deploy DEPLOY", 1)
	require.NoError(t, err)
	assert.Equal(t, once[0].Score, twice[0].Score)
}

func TestSearchTopK(t *testing.T) {
	r := NewRetriever(retrievalCorpus(), nil, nil)

	hits, err := r.Search("refund", 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	hits, err = r.Search("refund deploy", 0)
	require.NoError(t, err)
	assert.Len(t, hits, DefaultTopK)
}

func TestSearchNoMatches(t *testing.T) {
	r := NewRetriever(retrievalCorpus(), nil, nil)
	hits, err := r.Search("kubernetes", 5)
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestSearchQueryErrors(t *testing.T) {
	r := NewRetriever(retrievalCorpus(), nil, nil)

	for _, q := range []string{"", "   ", "the of a", "!!"} {
		_, err := r.Search(q, 3)
		assert.True(t, apperrors.Is(err, apperrors.QueryError), "query %q: %v", q, err)
	}

	empty := NewRetriever(nil, nil, nil)
	_, err := empty.Search("refund", 3)
	assert.True(t, apperrors.Is(err, apperrors.QueryError))
}

func TestGroundingSwallowsErrors(t *testing.T) {
	r := NewRetriever(nil, nil, nil)
	assert.Nil(t, r.Grounding(context.Background(), "refund", 3))

	var nilRetriever *Retriever
	assert.Nil(t, nilRetriever.Grounding(context.Background(), "refund", 3))

	r.Swap(retrievalCorpus())
	assert.Len(t, r.Grounding(context.Background(), "refund", 3), 3)
}

func TestReloadSwapsIndex(t *testing.T) {
	path := filepath.Join(t.TempDir(), "localrag.json")
	store := NewFileStore(path)
	require.NoError(t, store.Save(context.Background(), retrievalCorpus()))

	r := NewRetriever(nil, nil, nil)
	require.NoError(t, r.Reload(context.Background(), store))
	assert.Equal(t, 4, r.Index().TotalChunks)

	missing := NewFileStore(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, r.Reload(context.Background(), missing))
	assert.Equal(t, 4, r.Index().TotalChunks, "failed reload keeps the served index")
}

func TestSearchDuringSwap(t *testing.T) {
	a := retrievalCorpus()
	b := BuildIndex([]SourceText{{Path: "only.md", Title: "Only", Text: "refund"}}, DefaultChunker(), DefaultTokenizer())
	r := NewRetriever(a, nil, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				hits, err := r.Search("refund", 10)
				if err != nil || (len(hits) != 3 && len(hits) != 1) {
					t.Errorf("torn read: %d hits, err %v", len(hits), err)
					return
				}
			}
		}()
	}
	for j := 0; j < 100; j++ {
		if j%2 == 0 {
			r.Swap(b)
		} else {
			r.Swap(a)
		}
	}
	wg.Wait()
}
