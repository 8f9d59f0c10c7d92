package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freeeve/chessnotes/internal/vault"
)

func TestBuildQuery(t *testing.T) {
	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"stopwords", "Attack on the king", `"Attack" OR "king"`},
		{"short words", "e4 a b", `"e4"`},
		{"punctuation", "(Najdorf), sicilian!", `"Najdorf" OR "sicilian"`},
		{"inner punctuation quoted", "spore.rs", `"spore.rs"`},
		{"all stopwords", "the a an in", ""},
		{"empty", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BuildQuery(tt.query))
		})
	}
}

func openIndex(t *testing.T) *Index {
	t.Helper()
	ix, err := Open(Config{Path: filepath.Join(t.TempDir(), "search.db"), Logger: zerolog.Nop()})
	require.NoError(t, err)
	t.Cleanup(func() { ix.Close() })
	return ix
}

func TestUpsertSearchRemove(t *testing.T) {
	ctx := context.Background()
	ix := openIndex(t)

	italian := vault.Note{Path: "Italian.md", Title: "Italian"}
	sicilian := vault.Note{Path: "openings/Sicilian.md", Title: "Sicilian", Folder: "openings"}
	require.NoError(t, ix.Upsert(ctx, italian, "The Italian game starts 1. e4 e5 2. Nf3 Nc6 3. Bc4 #opening"))
	require.NoError(t, ix.Upsert(ctx, sicilian, "Najdorf is the sharpest line"))

	hits, err := ix.Search(ctx, "Najdorf", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "openings/Sicilian.md", hits[0].Path)
	assert.Equal(t, "Sicilian", hits[0].Title)
	assert.Contains(t, hits[0].Snippet, "[Najdorf]")

	hits, err = ix.Search(ctx, "opening", 10)
	require.NoError(t, err)
	require.Len(t, hits, 1, "tags are indexed")
	assert.Equal(t, "Italian.md", hits[0].Path)

	// replacing text drops the old terms
	require.NoError(t, ix.Upsert(ctx, sicilian, "Dragon variation"))
	hits, err = ix.Search(ctx, "Najdorf", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, ix.Remove(ctx, "Italian.md"))
	hits, err = ix.Search(ctx, "Italian", 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	hits, err = ix.Search(ctx, "the", 10)
	require.NoError(t, err)
	assert.NotNil(t, hits)
	assert.Empty(t, hits)
}

func TestRebuildFromVault(t *testing.T) {
	ctx := context.Background()
	store, err := vault.NewStore(vault.Config{Dir: t.TempDir(), Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, store.Write("a.md", "rook endgame technique"))
	require.NoError(t, store.Write("b.md", "bishop pair"))

	ix := openIndex(t)
	require.NoError(t, ix.Upsert(ctx, vault.Note{Path: "stale.md", Title: "stale"}, "rook"))

	n, err := ix.Rebuild(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	hits, err := ix.Search(ctx, "rook bishop", 10)
	require.NoError(t, err)
	paths := []string{}
	for _, h := range hits {
		paths = append(paths, h.Path)
	}
	assert.ElementsMatch(t, []string{"a.md", "b.md"}, paths)
}

func TestMemoryIndex(t *testing.T) {
	ix, err := Open(Config{Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer ix.Close()
	require.NoError(t, ix.Upsert(context.Background(), vault.Note{Path: "x.md", Title: "x"}, "queen sacrifice"))
	hits, err := ix.Search(context.Background(), "sacrifice", 5)
	require.NoError(t, err)
	assert.Len(t, hits, 1)
}
