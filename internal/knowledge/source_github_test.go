package knowledge

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/google/go-github/v56/github"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGitHubTestClient(t *testing.T, mux *http.ServeMux) *github.Client {
	t.Helper()
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	client := github.NewClient(nil)
	base, err := url.Parse(server.URL + "/")
	require.NoError(t, err)
	client.BaseURL = base
	return client
}

func TestGitHubSourceLocationParsing(t *testing.T) {
	client := github.NewClient(nil)

	src, err := NewGitHubSourceWithClient(client, "acme/handbook/docs/support@v2")
	require.NoError(t, err)
	assert.Equal(t, "acme", src.owner)
	assert.Equal(t, "handbook", src.repo)
	assert.Equal(t, "docs/support", src.dir)
	assert.Equal(t, "v2", src.ref)
	assert.Equal(t, "github://acme/handbook/docs/support@v2", src.Location())

	_, err = NewGitHubSourceWithClient(client, "just-owner")
	assert.Error(t, err)
}

func TestGitHubSourceListAndRead(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/handbook", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"name": "handbook", "default_branch": "develop"})
	})
	mux.HandleFunc("/repos/acme/handbook/git/trees/develop", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "1", r.URL.Query().Get("recursive"))
		json.NewEncoder(w).Encode(map[string]any{
			"sha": "root",
			"tree": []map[string]any{
				{"path": "docs", "type": "tree", "sha": "t1"},
				{"path": "docs/refunds.md", "type": "blob", "sha": "b1"},
				{"path": "docs/logo.png", "type": "blob", "sha": "b2"},
				{"path": "docs/faq/login.txt", "type": "blob", "sha": "b3"},
				{"path": "README.md", "type": "blob", "sha": "b4"},
			},
			"truncated": false,
		})
	})
	mux.HandleFunc("/repos/acme/handbook/git/blobs/b1", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("Refunds are issued within five days."))
	})

	src, err := NewGitHubSourceWithClient(newGitHubTestClient(t, mux), "acme/handbook/docs")
	require.NoError(t, err)

	refs, err := src.List(context.Background())
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, DocumentRef{Path: "faq/login.txt", Key: "b3"}, refs[0])
	assert.Equal(t, DocumentRef{Path: "refunds.md", Key: "b1"}, refs[1])

	data, err := src.Read(context.Background(), refs[1])
	require.NoError(t, err)
	assert.Equal(t, "Refunds are issued within five days.", string(data))
}

func TestGitHubSourceListError(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/acme/private", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"message":"Not Found"}`))
	})

	src, err := NewGitHubSourceWithClient(newGitHubTestClient(t, mux), "acme/private")
	require.NoError(t, err)
	_, err = src.List(context.Background())
	assert.ErrorContains(t, err, "acme/private")
}
