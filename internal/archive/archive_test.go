package archive

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const gameA = `[Event "A"]
[Site "?"]
[Date "2024.01.01"]
[White "alice"]
[Black "bob"]
[Result "1-0"]

1. e4 e5 2. Qh5 Nc6 3. Bc4 Nf6 4. Qxf7# 1-0`

const gameB = `[Event "B"]
[Site "?"]
[Date "2024.01.02"]
[White "carol"]
[Black "dave"]
[Result "*"]

1. d4 d5 *`

func TestAppendAndReadAll(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "games.pgn.zst")
	a, err := Open(Config{Path: path, Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer a.Close()

	require.NoError(t, a.Append(gameA))
	require.NoError(t, a.Append("\n"+gameB+"\n\n"))
	assert.Error(t, a.Append("   "))

	docs, err := ReadAll(path)
	require.NoError(t, err)
	assert.Equal(t, []string{gameA, gameB}, docs)
}

func TestAppendConcurrent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.pgn.zst")
	a, err := Open(Config{Path: path, Logger: zerolog.Nop()})
	require.NoError(t, err)
	defer a.Close()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, a.Append(gameB))
		}()
	}
	wg.Wait()

	docs, err := ReadAll(path)
	require.NoError(t, err)
	assert.Len(t, docs, 8)
}

func TestGamesParsesArchive(t *testing.T) {
	path := filepath.Join(t.TempDir(), "games.pgn.zst")
	a, err := Open(Config{Path: path, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, a.Append(gameA))
	require.NoError(t, a.Append(gameB))
	require.NoError(t, a.Close())

	var whites []string
	require.NoError(t, Games(path, func(s Summary) bool {
		whites = append(whites, s.Tags["White"])
		return true
	}))
	assert.Equal(t, []string{"alice", "carol"}, whites)
}

func TestOpenRejectsBadExtension(t *testing.T) {
	_, err := Open(Config{Path: filepath.Join(t.TempDir(), "games.pgn")})
	assert.Error(t, err)
}

func TestReadAllMissing(t *testing.T) {
	_, err := ReadAll(filepath.Join(t.TempDir(), "none.pgn.zst"))
	assert.True(t, os.IsNotExist(err))
}
