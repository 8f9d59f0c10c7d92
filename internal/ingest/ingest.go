// Package ingest turns PGN files dropped into a folder into notes.
package ingest

import (
	"context"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/freeeve/pgn/v3"
	"github.com/rs/zerolog"

	"github.com/freeeve/chessnotes/internal/chessmove"
	"github.com/freeeve/chessnotes/internal/eco"
	"github.com/freeeve/chessnotes/internal/gameimport"
	"github.com/freeeve/chessnotes/internal/pgnfmt"
	"github.com/freeeve/chessnotes/internal/replay"
)

// NoteWriter receives one note per imported game. Create picks a free name
// when rel is taken and returns the path it wrote.
type NoteWriter interface {
	Create(rel, text string) (string, error)
}

// Archiver keeps a copy of every imported game.
type Archiver interface {
	Append(pgnText string) error
}

// Config configures the ingest worker.
type Config struct {
	WatchDir     string        // folder to watch for .pgn and .pgn.zst files
	ProcessedDir string        // where finished files are moved
	Folder       string        // vault folder for the generated notes
	RatingMin    int           // skip games where either side is rated below this
	Workers      int           // files processed in parallel
	PollInterval time.Duration // how often to check for new files

	Openings *eco.Database // optional ECO/Opening tagging
	Archive  Archiver      // optional
	Logger   zerolog.Logger
}

// Stats summarizes one pass over the watch folder.
type Stats struct {
	Files   int
	Failed  int
	Games   int
	Skipped int
}

// Worker watches a folder and ingests PGN files.
type Worker struct {
	cfg   Config
	notes NoteWriter
	log   zerolog.Logger
}

// NewWorker creates a new ingest worker. It returns nil when no watch
// folder is configured.
func NewWorker(cfg Config, notes NoteWriter) (*Worker, error) {
	if cfg.WatchDir == "" {
		return nil, nil
	}
	if notes == nil {
		return nil, fmt.Errorf("ingest: note writer required")
	}
	if cfg.ProcessedDir == "" {
		cfg.ProcessedDir = filepath.Join(cfg.WatchDir, "processed")
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 10 * time.Second
	}

	if err := os.MkdirAll(cfg.WatchDir, 0o755); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(cfg.ProcessedDir, 0o755); err != nil {
		return nil, err
	}

	return &Worker{
		cfg:   cfg,
		notes: notes,
		log:   cfg.Logger.With().Str("component", "ingest").Logger(),
	}, nil
}

// Run polls the watch folder until ctx is done.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info().
		Str("watch_dir", w.cfg.WatchDir).
		Str("processed_dir", w.cfg.ProcessedDir).
		Int("rating_min", w.cfg.RatingMin).
		Msg("ingest worker started")

	ticker := time.NewTicker(w.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := w.ProcessOnce(ctx); err != nil {
				w.log.Warn().Err(err).Msg("process files failed")
			}
		}
	}
}

// ProcessOnce ingests every PGN file currently in the watch folder, up to
// Workers files in parallel, and moves finished files to ProcessedDir.
func (w *Worker) ProcessOnce(ctx context.Context) (Stats, error) {
	if err := ctx.Err(); err != nil {
		return Stats{}, err
	}

	entries, err := os.ReadDir(w.cfg.WatchDir)
	if err != nil {
		return Stats{}, err
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && isPGNFile(e.Name()) {
			files = append(files, e.Name())
		}
	}
	if len(files) == 0 {
		return Stats{}, nil
	}
	sort.Strings(files)
	w.log.Info().Int("files", len(files)).Int("workers", w.cfg.Workers).Msg("found PGN files")

	type fileResult struct {
		name  string
		stats Stats
		err   error
	}
	fileChan := make(chan string, len(files))
	resultChan := make(chan fileResult, len(files))

	var wg sync.WaitGroup
	for i := 0; i < min(w.cfg.Workers, len(files)); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for name := range fileChan {
				if err := ctx.Err(); err != nil {
					resultChan <- fileResult{name: name, err: err}
					continue
				}
				st, err := w.processFile(ctx, filepath.Join(w.cfg.WatchDir, name))
				resultChan <- fileResult{name: name, stats: st, err: err}
			}
		}()
	}
	for _, name := range files {
		fileChan <- name
	}
	close(fileChan)
	go func() {
		wg.Wait()
		close(resultChan)
	}()

	var total Stats
	for res := range resultChan {
		total.Games += res.stats.Games
		total.Skipped += res.stats.Skipped
		if res.err != nil {
			w.log.Error().Err(res.err).Str("file", res.name).Msg("ingest failed")
			total.Failed++
			continue
		}
		total.Files++
		src := filepath.Join(w.cfg.WatchDir, res.name)
		dst := filepath.Join(w.cfg.ProcessedDir, res.name)
		if err := os.Rename(src, dst); err != nil {
			w.log.Warn().Err(err).Str("file", res.name).Msg("move to processed failed")
		}
	}
	w.log.Info().
		Int("files", total.Files).
		Int("failed", total.Failed).
		Int("games", total.Games).
		Int("skipped", total.Skipped).
		Msg("batch complete")
	return total, ctx.Err()
}

func (w *Worker) processFile(ctx context.Context, file string) (Stats, error) {
	start := time.Now()
	var st Stats

	parser := pgn.Games(file)
	stopped := false
	for game := range parser.Games {
		if ctx.Err() != nil {
			if !stopped {
				parser.Stop()
				stopped = true
			}
			continue
		}
		if !w.ratingOK(game.Tags) {
			st.Skipped++
			continue
		}
		if err := w.processGame(game); err != nil {
			w.log.Warn().Err(err).Str("file", filepath.Base(file)).Msg("game skipped")
			st.Skipped++
			continue
		}
		st.Games++
	}
	if err := parser.Err(); err != nil {
		return st, err
	}
	if err := ctx.Err(); err != nil {
		return st, err
	}

	w.log.Info().
		Str("file", filepath.Base(file)).
		Int("games", st.Games).
		Int("skipped", st.Skipped).
		Dur("elapsed", time.Since(start)).
		Msg("file ingest complete")
	return st, nil
}

func (w *Worker) ratingOK(tags map[string]string) bool {
	if w.cfg.RatingMin <= 0 {
		return true
	}
	for _, k := range []string{"WhiteElo", "BlackElo"} {
		r := pgnfmt.ParseRating(tags[k])
		if r == nil || *r < w.cfg.RatingMin {
			return false
		}
	}
	return true
}

// processGame re-renders one parsed game and writes it as a note.
func (w *Worker) processGame(game *pgn.Game) error {
	ucis := make([]string, len(game.Moves))
	for i, mv := range game.Moves {
		ucis[i] = moveToUCI(mv)
	}
	startFEN := ""
	if game.Tags["SetUp"] == "1" {
		startFEN = game.Tags["FEN"]
	}
	san, err := replay.UCI(startFEN, ucis)
	if err != nil {
		return err
	}
	if len(san) < len(ucis) {
		w.log.Warn().Int("moves", len(ucis)).Int("legal", len(san)).Msg("game truncated at illegal move")
	}

	headers := make(map[string]string, len(game.Tags)+2)
	for k, v := range game.Tags {
		headers[k] = v
	}
	if w.cfg.Openings != nil && startFEN == "" && headers["ECO"] == "" {
		if op := w.cfg.Openings.Classify(san); op != nil {
			headers["ECO"] = op.ECO
			headers["Opening"] = op.Name
		}
	}
	white := &pgnfmt.Player{Username: headers["White"], Rating: pgnfmt.ParseRating(headers["WhiteElo"])}
	black := &pgnfmt.Player{Username: headers["Black"], Rating: pgnfmt.ParseRating(headers["BlackElo"])}
	text := pgnfmt.Assemble(headers, san, white, black)
	rec := gameimport.RecordFromPGN(text)

	if w.cfg.Archive != nil {
		if err := w.cfg.Archive.Append(text); err != nil {
			w.log.Warn().Err(err).Msg("archive append failed")
		}
	}
	rel := path.Join(strings.Trim(w.cfg.Folder, "/"), gameimport.NoteTitle(rec)+".md")
	_, err = w.notes.Create(rel, gameimport.NoteBody(rec))
	return err
}

// moveToUCI converts a parsed move to coordinate notation.
func moveToUCI(mv pgn.Mv) string {
	var promo byte
	switch mv.Promo {
	case pgn.PromoQueen:
		promo = chessmove.PromoQueen
	case pgn.PromoRook:
		promo = chessmove.PromoRook
	case pgn.PromoBishop:
		promo = chessmove.PromoBishop
	case pgn.PromoKnight:
		promo = chessmove.PromoKnight
	}
	return chessmove.Encode(int(mv.From), int(mv.To), promo).UCI()
}

func isPGNFile(name string) bool {
	return strings.HasSuffix(name, ".pgn") || strings.HasSuffix(name, ".pgn.zst")
}
