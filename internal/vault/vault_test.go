package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freeeve/chessnotes/internal/layout"
)

func newStore(t *testing.T) *Store {
	t.Helper()
	s, err := NewStore(Config{Dir: t.TempDir(), SuppressWindow: time.Second, Logger: zerolog.Nop()})
	require.NoError(t, err)
	return s
}

func TestStoreCRUD(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Write("Openings.md", "# Openings"))
	require.NoError(t, s.Write("games/Game 1.md", "1. e4 e5"))

	notes, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []Note{
		{Path: "Openings.md", Title: "Openings", Folder: ""},
		{Path: "games/Game 1.md", Title: "Game 1", Folder: "games"},
	}, notes)

	body, err := s.Read("games/Game 1.md")
	require.NoError(t, err)
	assert.Equal(t, "1. e4 e5", body)

	require.NoError(t, s.Rename("games/Game 1.md", "games/Italian.md"))
	_, err = s.Read("games/Game 1.md")
	assert.Error(t, err)
	assert.ErrorIs(t, s.Rename("Openings.md", "games/Italian.md"), fs.ErrExist)

	require.NoError(t, s.Delete("Openings.md"))
	notes, err = s.List()
	require.NoError(t, err)
	require.Len(t, notes, 1)
	assert.Equal(t, "Italian", notes[0].Title)
}

func TestCreatePicksFreeName(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Write("games/alice vs bob.md", "edited by hand"))

	rel, err := s.Create("games/alice vs bob.md", "game two")
	require.NoError(t, err)
	assert.Equal(t, "games/alice vs bob (2).md", rel)
	rel, err = s.Create("games/alice vs bob.md", "game three")
	require.NoError(t, err)
	assert.Equal(t, "games/alice vs bob (3).md", rel)
	rel, err = s.Create("games/new.md", "fresh")
	require.NoError(t, err)
	assert.Equal(t, "games/new.md", rel)

	body, err := s.Read("games/alice vs bob.md")
	require.NoError(t, err)
	assert.Equal(t, "edited by hand", body)
	body, err = s.Read("games/alice vs bob (2).md")
	require.NoError(t, err)
	assert.Equal(t, "game two", body)

	_, err = s.Create("../escape.md", "x")
	assert.ErrorIs(t, err, ErrPathEscape)
}

func TestCreateConcurrent(t *testing.T) {
	s := newStore(t)
	const n = 8
	var wg sync.WaitGroup
	paths := make([]string, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			rel, err := s.Create("same.md", "x")
			assert.NoError(t, err)
			paths[i] = rel
		}()
	}
	wg.Wait()

	seen := map[string]bool{}
	for _, p := range paths {
		seen[p] = true
	}
	assert.Len(t, seen, n)
	notes, err := s.List()
	require.NoError(t, err)
	assert.Len(t, notes, n)
}

func TestConcurrentWritesOfOneNote(t *testing.T) {
	s := newStore(t)
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, s.Write("busy.md", fmt.Sprintf("version %d", i)))
		}()
	}
	wg.Wait()

	body, err := s.Read("busy.md")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(body, "version "), body)
	entries, err := os.ReadDir(s.Root())
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestSelfWriteMarksExpire(t *testing.T) {
	s, err := NewStore(Config{Dir: t.TempDir(), SuppressWindow: 20 * time.Millisecond, Logger: zerolog.Nop()})
	require.NoError(t, err)
	require.NoError(t, s.Write("a.md", "x"))
	require.NoError(t, s.Write("b.md", "x"))
	time.Sleep(50 * time.Millisecond)

	require.NoError(t, s.Write("c.md", "x"))
	s.mu.Lock()
	n := len(s.recent)
	s.mu.Unlock()
	assert.Equal(t, 1, n, "expired marks are pruned on the next write")
	assert.True(t, s.SelfWrite(filepath.Join(s.Root(), "c.md")))
	assert.False(t, s.SelfWrite(filepath.Join(s.Root(), "a.md")))
}

func TestStoreRejectsEscapes(t *testing.T) {
	s := newStore(t)
	tests := []struct {
		path string
		want error
	}{
		{"../outside.md", ErrPathEscape},
		{"a/../../outside.md", ErrPathEscape},
		{"notes.txt", ErrNotNote},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			err := s.Write(tt.path, "x")
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestNoteLookup(t *testing.T) {
	s := newStore(t)
	n, err := s.Note("games/Najdorf.md")
	require.NoError(t, err)
	assert.Equal(t, Note{Path: "games/Najdorf.md", Title: "Najdorf", Folder: "games"}, n)

	_, err = s.Note("../x.md")
	assert.ErrorIs(t, err, ErrPathEscape)

	n, ok := s.NoteAt(filepath.Join(s.Root(), "a", "b.md"))
	require.True(t, ok)
	assert.Equal(t, "a/b.md", n.Path)

	_, ok = s.NoteAt(filepath.Join(filepath.Dir(s.Root()), "other.md"))
	assert.False(t, ok)
	_, ok = s.NoteAt(filepath.Join(s.Root(), "image.png"))
	assert.False(t, ok)
}

func TestListSkipsHiddenDirs(t *testing.T) {
	s := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Join(s.Root(), ".trash"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), ".trash", "old.md"), []byte("x"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(s.Root(), "image.png"), []byte("x"), 0o644))
	require.NoError(t, s.Write("a.md", "x"))

	notes, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []Note{{Path: "a.md", Title: "a"}}, notes)
}

func TestLinks(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"plain", "see [[Italian Game]] and [[Sicilian]]", []string{"Italian Game", "Sicilian"}},
		{"alias", "[[Italian Game|the Italian]]", []string{"Italian Game"}},
		{"heading", "[[Italian Game#Main line]]", []string{"Italian Game"}},
		{"heading and alias", "[[Italian Game#Main|main]]", []string{"Italian Game"}},
		{"duplicates kept", "[[A]] [[A]]", []string{"A", "A"}},
		{"empty target", "[[ ]] [[#only heading]]", nil},
		{"none", "no links here [single]", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Links(tt.text))
		})
	}
}

func TestTags(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "front matter list and inline",
			text: "---\ntitle: x\ntags:\n  - chess\n  - endgame\n---\nStudy #tactics and #chess\n",
			want: []string{"chess", "endgame", "tactics"},
		},
		{
			name: "front matter string",
			text: "---\ntags: opening, repertoire\n---\nbody",
			want: []string{"opening", "repertoire"},
		},
		{
			name: "headings and anchors are not tags",
			text: "# Title\n## Section\nsee [[Note#part]] and #real-tag/sub",
			want: []string{"real-tag/sub"},
		},
		{
			name: "code is ignored",
			text: "```\n#notatag\n```\n#yes",
			want: []string{"yes"},
		},
		{
			name: "numbers are not tags",
			text: "issue #12 ok",
			want: nil,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Tags(tt.text))
		})
	}
}

func TestPGNBlocks(t *testing.T) {
	text := "# Game\n\n```pgn\n[Event \"Casual\"]\n\n1. e4 e5 *\n```\n\n```go\nfmt.Println()\n```\n\n```PGN\n1. d4 *\n```\n"
	blocks := PGNBlocks(text)
	require.Len(t, blocks, 2)
	assert.Equal(t, "[Event \"Casual\"]\n\n1. e4 e5 *", blocks[0])
	assert.Equal(t, "1. d4 *", blocks[1])
	assert.Empty(t, PGNBlocks("no code"))
}

func TestGraph(t *testing.T) {
	s := newStore(t)
	require.NoError(t, s.Write("A.md", "[[B]] [[B|again]] [[Missing]] [[A]]"))
	require.NoError(t, s.Write("sub/B.md", "[[C#top]]"))
	require.NoError(t, s.Write("C.md", "leaf"))

	ids, edges, err := Graph(s)
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "C", "B"}, ids)
	assert.Equal(t, []layout.Edge{
		{Source: "A", Target: "B"},
		{Source: "A", Target: "B"},
		{Source: "A", Target: "A"},
		{Source: "B", Target: "C"},
	}, edges)
}

func TestWatcherSuppressesSelfWrites(t *testing.T) {
	s := newStore(t)
	w, err := s.Watch()
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, s.Write("mine.md", "self"))
	external := filepath.Join(s.Root(), "theirs.md")
	require.NoError(t, os.WriteFile(external, []byte("external"), 0o644))

	select {
	case ev := <-w.Events():
		assert.Equal(t, external, ev.Path)
		assert.Contains(t, []EventKind{EventAdd, EventChange}, ev.Kind)
	case <-time.After(5 * time.Second):
		t.Fatal("no event for external write")
	}

	require.NoError(t, os.Remove(external))
	deadline := time.After(5 * time.Second)
	for {
		select {
		case ev := <-w.Events():
			require.Equal(t, external, ev.Path)
			if ev.Kind == EventDelete {
				return
			}
		case <-deadline:
			t.Fatal("no delete event")
		}
	}
}

func TestWatcherCloseClosesEvents(t *testing.T) {
	s := newStore(t)
	w, err := s.Watch()
	require.NoError(t, err)
	require.NoError(t, w.Close())
	_, ok := <-w.Events()
	assert.False(t, ok)
	assert.NoError(t, w.Close())
}
