// Package archive keeps every imported game in an append-only .pgn.zst file.
//
// Each Append writes one complete zstd frame. Concatenated frames form a
// valid zstd stream, so the file can be read back by any zstd-aware PGN
// reader without a rewrite.
package archive

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/freeeve/pgn/v3"
	"github.com/klauspost/compress/zstd"
	"github.com/rs/zerolog"
)

// Config configures an Archive.
type Config struct {
	Path   string // must end in .pgn.zst
	Logger zerolog.Logger
}

// Archive appends PGN documents to a compressed file. Safe for concurrent use.
type Archive struct {
	path    string
	mu      sync.Mutex
	encoder *zstd.Encoder
	log     zerolog.Logger
}

// Open prepares an archive at cfg.Path, creating parent directories.
func Open(cfg Config) (*Archive, error) {
	if !strings.HasSuffix(cfg.Path, ".pgn.zst") {
		return nil, fmt.Errorf("archive path %q must end in .pgn.zst", cfg.Path)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Path), 0o755); err != nil {
		return nil, fmt.Errorf("create archive dir: %w", err)
	}
	encoder, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	return &Archive{
		path:    cfg.Path,
		encoder: encoder,
		log:     cfg.Logger.With().Str("component", "archive").Logger(),
	}, nil
}

// Path returns the archive file path.
func (a *Archive) Path() string { return a.path }

// Append writes one game as its own zstd frame.
func (a *Archive) Append(pgnText string) error {
	text := strings.TrimSpace(pgnText)
	if text == "" {
		return fmt.Errorf("archive: empty PGN")
	}
	frame := a.encoder.EncodeAll([]byte(text+"\n\n"), nil)

	a.mu.Lock()
	defer a.mu.Unlock()

	f, err := os.OpenFile(a.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	if _, err := f.Write(frame); err != nil {
		f.Close()
		return fmt.Errorf("write archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close archive: %w", err)
	}
	a.log.Debug().Int("bytes", len(frame)).Msg("game archived")
	return nil
}

// Close releases the encoder.
func (a *Archive) Close() error {
	return a.encoder.Close()
}

// ReadAll decompresses the archive and returns each stored PGN document.
func ReadAll(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	zr, err := zstd.NewReader(f, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer zr.Close()

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, zr); err != nil {
		return nil, fmt.Errorf("decompress archive: %w", err)
	}

	var docs []string
	for _, doc := range strings.Split(buf.String(), "\n\n[") {
		doc = strings.TrimSpace(doc)
		if doc == "" {
			continue
		}
		if !strings.HasPrefix(doc, "[") {
			doc = "[" + doc
		}
		docs = append(docs, doc)
	}
	return docs, nil
}

// Summary is one archived game as seen by the PGN parser.
type Summary struct {
	Tags  map[string]string
	Plies int
}

// Games streams the archive through the PGN game parser. fn returning false
// stops the scan early.
func Games(path string, fn func(Summary) bool) error {
	parser := pgn.Games(path)
	for game := range parser.Games {
		if !fn(Summary{Tags: game.Tags, Plies: len(game.Moves)}) {
			parser.Stop()
			break
		}
	}
	return parser.Err()
}
