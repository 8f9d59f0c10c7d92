package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freeeve/chessnotes/internal/archive"
)

const archivedGame = `[Event "Club"]
[Site "https://lichess.org/abcdefgh"]
[Date "2024.01.01"]
[White "alice"]
[Black "bob"]
[Result "1-0"]

1. e4 e5 2. Qh5 Nc6 3. Bc4 Nf6 4. Qxf7# 1-0`

func runCLI(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs(args)
	require.NoError(t, rootCmd.Execute())
	return out.String()
}

func TestArchiveCommands(t *testing.T) {
	dir := t.TempDir()
	vaultDir := filepath.Join(dir, "vault")
	archivePath := filepath.Join(dir, "games.pgn.zst")
	cfgPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(cfgPath, []byte(
		"vault_dir = '"+vaultDir+"'\nlog_level = 'error'\n\n[import]\narchive_path = '"+archivePath+"'\nfolder = 'games'\n",
	), 0o644))

	a, err := archive.Open(archive.Config{Path: archivePath, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, a.Append(archivedGame))
	require.NoError(t, a.Append(archivedGame))
	require.NoError(t, a.Close())

	require.NoError(t, os.MkdirAll(filepath.Join(vaultDir, "games"), 0o755))
	existing := filepath.Join(vaultDir, "games", "alice vs bob 2024.01.01.md")
	require.NoError(t, os.WriteFile(existing, []byte("my notes"), 0o644))

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{"list", []string{"archive", "list"}, []string{"DATE", "2024.01.01", "alice", "bob", "1-0", "7"}},
		{"export", []string{"archive", "export"}, []string{`[White "alice"]`, "4. Qxf7#"}},
		{"restore", []string{"archive", "restore"}, []string{
			"games/alice vs bob 2024.01.01 (2).md",
			"games/alice vs bob 2024.01.01 (3).md",
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := runCLI(t, append([]string{"--config", cfgPath}, tt.args...)...)
			for _, w := range tt.want {
				assert.Contains(t, out, w)
			}
		})
	}

	body, err := os.ReadFile(existing)
	require.NoError(t, err)
	assert.Equal(t, "my notes", string(body))
	restored, err := os.ReadFile(filepath.Join(vaultDir, "games", "alice vs bob 2024.01.01 (2).md"))
	require.NoError(t, err)
	assert.Contains(t, string(restored), "Source: https://lichess.org/abcdefgh")
}
