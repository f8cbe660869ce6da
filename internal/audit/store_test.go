package audit

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(context.Background(), "sqlite", filepath.Join(t.TempDir(), "audit", "chat.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestRecordAndRecent(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	base := time.UnixMilli(1_700_000_000_000)

	entries := []Entry{
		{ID: "a", Emotion: "urgent", Escalation: 3, Route: "empathetic", Rule: "escalation", Intensity: "standard", Model: "claude-test", Latency: 1200 * time.Millisecond, CreatedAt: base},
		{ID: "b", Emotion: "neutral", Route: "analytic", Rule: "default", Intensity: "intense", Model: "fallback", Fallback: true, CreatedAt: base.Add(time.Second)},
		{ID: "c", Emotion: "positive", Route: "dual", Rule: "dual", Intensity: "maximum", Model: "gpt-test + claude-test", CreatedAt: base.Add(2 * time.Second)},
	}
	for _, e := range entries {
		require.NoError(t, s.Record(ctx, e))
	}

	got, err := s.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "c", got[0].ID)
	assert.Equal(t, "b", got[1].ID)
	assert.True(t, got[1].Fallback)
	assert.Equal(t, "gpt-test + claude-test", got[0].Model)

	all, err := s.Recent(ctx, 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, 3, all[2].Escalation)
	assert.Equal(t, 1200*time.Millisecond, all[2].Latency)
	assert.True(t, all[2].CreatedAt.Equal(base))
}

func TestRecordDuplicateID(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()
	require.NoError(t, s.Record(ctx, Entry{ID: "x", Emotion: "neutral", Route: "analytic", Intensity: "intense", Model: "m"}))
	assert.Error(t, s.Record(ctx, Entry{ID: "x", Emotion: "neutral", Route: "analytic", Intensity: "intense", Model: "m"}))
}

func TestReopenKeepsEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "chat.db")
	ctx := context.Background()

	s, err := Open(ctx, "sqlite3", path)
	require.NoError(t, err)
	require.NoError(t, s.Record(ctx, Entry{ID: "persisted", Emotion: "neutral", Route: "analytic", Intensity: "intense", Model: "m"}))
	require.NoError(t, s.Close())

	s, err = Open(ctx, "sqlite", path)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "persisted", got[0].ID)
}

func TestOpenErrors(t *testing.T) {
	_, err := Open(context.Background(), "oracle", "dsn")
	assert.Error(t, err)

	_, err = Open(context.Background(), "mysql", "")
	assert.Error(t, err)
}

func TestNormalizeDriver(t *testing.T) {
	tests := map[string]string{
		"":           "sqlite",
		"SQLite3":    "sqlite",
		"postgres":   "pgx",
		"postgresql": "pgx",
		"pgx":        "pgx",
		"mysql":      "mysql",
		"mssql":      "",
	}
	for in, want := range tests {
		assert.Equal(t, want, normalizeDriver(in), in)
	}
}

func TestRebind(t *testing.T) {
	pg := &Store{driver: "pgx"}
	assert.Equal(t, "SELECT $1, $2", pg.rebind("SELECT ?, ?"))

	lite := &Store{driver: "sqlite"}
	assert.Equal(t, "SELECT ?, ?", lite.rebind("SELECT ?, ?"))
}
