// Package vault stores notes as markdown files in a directory and extracts
// the links, tags and pgn blocks the rest of the app works from.
package vault

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const noteExt = ".md"

var (
	// ErrPathEscape is returned when a path resolves outside the vault.
	ErrPathEscape = errors.New("path escapes vault")
	// ErrNotNote is returned for paths without the .md extension.
	ErrNotNote = errors.New("not a markdown note")
)

// Note identifies a note file. Path is vault-relative with forward slashes.
type Note struct {
	Path   string `json:"path"`
	Title  string `json:"title"`
	Folder string `json:"folder"`
}

// Config configures a Store.
type Config struct {
	Dir string
	// SuppressWindow is how long after a Store write the watcher ignores
	// events for that file.
	SuppressWindow time.Duration
	Logger         zerolog.Logger
}

// Store reads and writes notes under one directory.
type Store struct {
	root   string
	window time.Duration
	log    zerolog.Logger

	createMu sync.Mutex // serializes Create's free-name search

	mu     sync.Mutex
	recent map[string]time.Time // absolute path -> last self write
}

// NewStore opens (creating if needed) the vault directory.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Dir == "" {
		return nil, errors.New("vault directory required")
	}
	root, err := filepath.Abs(cfg.Dir)
	if err != nil {
		return nil, fmt.Errorf("resolve vault path: %w", err)
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("create vault: %w", err)
	}
	if cfg.SuppressWindow <= 0 {
		cfg.SuppressWindow = time.Second
	}
	return &Store{
		root:   root,
		window: cfg.SuppressWindow,
		log:    cfg.Logger.With().Str("component", "vault").Logger(),
		recent: make(map[string]time.Time),
	}, nil
}

// Root returns the absolute vault directory.
func (s *Store) Root() string { return s.root }

// safePath resolves a vault-relative note path and checks it stays inside
// the vault.
func (s *Store) safePath(rel string) (string, error) {
	if !strings.EqualFold(filepath.Ext(rel), noteExt) {
		return "", fmt.Errorf("%w: %s", ErrNotNote, rel)
	}
	abs, err := filepath.Abs(filepath.Join(s.root, filepath.FromSlash(rel)))
	if err != nil {
		return "", fmt.Errorf("resolve path: %w", err)
	}
	if !strings.HasPrefix(abs, s.root+string(filepath.Separator)) {
		return "", fmt.Errorf("%w: %s", ErrPathEscape, rel)
	}
	return abs, nil
}

func (s *Store) noteFor(abs string) Note {
	rel, _ := filepath.Rel(s.root, abs)
	rel = filepath.ToSlash(rel)
	folder := filepath.ToSlash(filepath.Dir(rel))
	if folder == "." {
		folder = ""
	}
	return Note{
		Path:   rel,
		Title:  strings.TrimSuffix(filepath.Base(rel), filepath.Ext(rel)),
		Folder: folder,
	}
}

// Note describes the note at a vault-relative path. The file need not exist.
func (s *Store) Note(rel string) (Note, error) {
	abs, err := s.safePath(rel)
	if err != nil {
		return Note{}, err
	}
	return s.noteFor(abs), nil
}

// NoteAt maps an absolute path, as reported by a Watcher, to its note.
func (s *Store) NoteAt(abs string) (Note, bool) {
	rel, err := filepath.Rel(s.root, abs)
	if err != nil || strings.HasPrefix(rel, "..") {
		return Note{}, false
	}
	n, err := s.Note(filepath.ToSlash(rel))
	return n, err == nil
}

// List returns every note, sorted by path. Hidden directories are skipped.
func (s *Store) List() ([]Note, error) {
	var notes []Note
	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if path != s.root && strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.EqualFold(filepath.Ext(path), noteExt) {
			notes = append(notes, s.noteFor(path))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list vault: %w", err)
	}
	sort.Slice(notes, func(i, j int) bool { return notes[i].Path < notes[j].Path })
	return notes, nil
}

// Read returns a note's text.
func (s *Store) Read(rel string) (string, error) {
	abs, err := s.safePath(rel)
	if err != nil {
		return "", err
	}
	b, err := os.ReadFile(abs)
	if err != nil {
		return "", fmt.Errorf("read note: %w", err)
	}
	return string(b), nil
}

// Write replaces a note's text atomically, creating parent folders.
func (s *Store) Write(rel, text string) error {
	abs, err := s.safePath(rel)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return fmt.Errorf("create folder: %w", err)
	}
	s.markSelf(abs)
	if err := atomicWrite(abs, text); err != nil {
		return fmt.Errorf("write note: %w", err)
	}
	s.log.Debug().Str("path", rel).Int("bytes", len(text)).Msg("note written")
	return nil
}

// Create writes text to a new note at rel, or at "name (2).md",
// "name (3).md", ... when rel is taken. It never replaces an existing note
// and returns the path it wrote.
func (s *Store) Create(rel, text string) (string, error) {
	if _, err := s.safePath(rel); err != nil {
		return "", err
	}
	s.createMu.Lock()
	defer s.createMu.Unlock()

	ext := filepath.Ext(rel)
	base := strings.TrimSuffix(rel, ext)
	for n := 1; ; n++ {
		candidate := rel
		if n > 1 {
			candidate = fmt.Sprintf("%s (%d)%s", base, n, ext)
		}
		abs, err := s.safePath(candidate)
		if err != nil {
			return "", err
		}
		if _, err := os.Lstat(abs); err == nil {
			continue
		} else if !errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("create note: %w", err)
		}
		if err := s.Write(candidate, text); err != nil {
			return "", err
		}
		return candidate, nil
	}
}

// Rename moves a note. The destination must not exist.
func (s *Store) Rename(from, to string) error {
	src, err := s.safePath(from)
	if err != nil {
		return err
	}
	dst, err := s.safePath(to)
	if err != nil {
		return err
	}
	if _, err := os.Stat(dst); err == nil {
		return fmt.Errorf("rename note: %s: %w", to, fs.ErrExist)
	}
	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return fmt.Errorf("create folder: %w", err)
	}
	s.markSelf(src)
	s.markSelf(dst)
	if err := os.Rename(src, dst); err != nil {
		return fmt.Errorf("rename note: %w", err)
	}
	s.log.Info().Str("from", from).Str("to", to).Msg("note renamed")
	return nil
}

// Delete removes a note.
func (s *Store) Delete(rel string) error {
	abs, err := s.safePath(rel)
	if err != nil {
		return err
	}
	s.markSelf(abs)
	if err := os.Remove(abs); err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	s.log.Info().Str("path", rel).Msg("note deleted")
	return nil
}

func (s *Store) markSelf(abs string) {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	for p, at := range s.recent {
		if now.Sub(at) > s.window {
			delete(s.recent, p)
		}
	}
	s.recent[abs] = now
}

// SelfWrite reports whether abs was written by this Store within the
// suppression window.
func (s *Store) SelfWrite(abs string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	at, ok := s.recent[abs]
	if !ok {
		return false
	}
	if time.Since(at) > s.window {
		delete(s.recent, abs)
		return false
	}
	return true
}

// atomicWrite writes content to a uniquely named temp file in the same
// directory and renames it over path.
func atomicWrite(path, content string) error {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return err
	}
	tmp := f.Name()
	if _, err := f.WriteString(content); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Chmod(tmp, 0o644); err != nil {
		os.Remove(tmp)
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}
