// Package gameimport turns Lichess and Chess.com game links into canonical PGN.
//
// The pipeline is classify → fetch → decode → replay → assemble. Lichess
// serves PGN directly; Chess.com serves JSON with moves in TCN, which is
// decoded, replayed for legality and SAN, then assembled into PGN.
package gameimport

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/araddon/dateparse"
	"github.com/rs/zerolog"

	"github.com/freeeve/chessnotes/internal/eco"
	"github.com/freeeve/chessnotes/internal/pgnfmt"
)

const (
	DefaultLichessBaseURL  = "https://lichess.org"
	DefaultChessComBaseURL = "https://www.chess.com"
	DefaultUserAgent       = "chessnotes/1.0 (+https://github.com/freeeve/chessnotes)"

	maxBodyBytes = 4 << 20
)

// GameRecord is the result of a fetch. It is not persisted here.
type GameRecord struct {
	PGN    string        `json:"pgn"`
	White  pgnfmt.Player `json:"white"`
	Black  pgnfmt.Player `json:"black"`
	Date   string        `json:"date"`
	Result string        `json:"result"`
	GameID string        `json:"gameId"`
	Source Source        `json:"source"`
	URL    string        `json:"url"`
	// Played is the parsed start time when the headers carry one.
	Played time.Time `json:"played,omitempty"`
}

// Config configures a Fetcher.
type Config struct {
	HTTPClient      *http.Client
	LichessBaseURL  string
	ChessComBaseURL string
	UserAgent       string
	Timeout         time.Duration

	// Openings, when set, supplies ECO/Opening headers the platform omitted.
	Openings *eco.Database

	Logger zerolog.Logger
	Now    func() time.Time
}

// Fetcher downloads games and normalizes them into GameRecords.
// It is safe for concurrent use.
type Fetcher struct {
	cfg       Config
	client    *http.Client
	assembler pgnfmt.Assembler
	log       zerolog.Logger
}

// NewFetcher creates a Fetcher, applying defaults for unset fields.
func NewFetcher(cfg Config) *Fetcher {
	if cfg.LichessBaseURL == "" {
		cfg.LichessBaseURL = DefaultLichessBaseURL
	}
	if cfg.ChessComBaseURL == "" {
		cfg.ChessComBaseURL = DefaultChessComBaseURL
	}
	cfg.LichessBaseURL = strings.TrimRight(cfg.LichessBaseURL, "/")
	cfg.ChessComBaseURL = strings.TrimRight(cfg.ChessComBaseURL, "/")
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Fetcher{
		cfg:       cfg,
		client:    client,
		assembler: pgnfmt.Assembler{Now: cfg.Now},
		log:       cfg.Logger.With().Str("component", "gameimport").Logger(),
	}
}

// Fetch classifies url, downloads the game and returns it as a GameRecord.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*GameRecord, error) {
	ref, ok := Classify(url)
	if !ok {
		return nil, ErrUnrecognizedURL
	}

	start := time.Now()
	var (
		rec *GameRecord
		err error
	)
	switch ref.Source {
	case SourceLichess:
		rec, err = f.fetchLichess(ctx, ref)
	case SourceChessCom:
		rec, err = f.fetchChessCom(ctx, ref)
	}
	if err != nil {
		f.log.Warn().Err(err).Str("source", string(ref.Source)).Str("game", ref.GameID).Msg("fetch failed")
		return nil, err
	}
	rec.URL = strings.TrimSpace(url)

	f.log.Info().
		Str("source", string(ref.Source)).
		Str("game", ref.GameID).
		Str("white", rec.White.Username).
		Str("black", rec.Black.Username).
		Dur("elapsed", time.Since(start)).
		Msg("game imported")
	return rec, nil
}

func (f *Fetcher) fetchLichess(ctx context.Context, ref Ref) (*GameRecord, error) {
	body, err := f.get(ctx, ref, f.cfg.LichessBaseURL+"/game/export/"+ref.GameID, "application/x-chess-pgn")
	if err != nil {
		return nil, err
	}
	rec := RecordFromPGN(string(body))
	rec.GameID = ref.GameID
	rec.Source = SourceLichess
	return rec, nil
}

// get issues a GET and maps 404 and other non-2xx statuses to typed errors.
func (f *Fetcher) get(ctx context.Context, ref Ref, url, accept string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("User-Agent", f.cfg.UserAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Source: ref.Source, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &NotFoundError{Source: ref.Source, GameID: ref.GameID}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{Source: ref.Source, StatusCode: resp.StatusCode, Status: resp.Status}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%s read body: %w", ref.Source, err)
	}
	return body, nil
}

// playedAt parses UTCDate/UTCTime, falling back to Date. Zero when unknown.
func playedAt(headers map[string]string) time.Time {
	date := headers["UTCDate"]
	if date == "" {
		date = headers["Date"]
	}
	if date == "" || strings.Contains(date, "?") {
		return time.Time{}
	}
	s := strings.ReplaceAll(date, ".", "-")
	if t := headers["UTCTime"]; t != "" {
		s += " " + t
	}
	ts, err := dateparse.ParseIn(s, time.UTC)
	if err != nil {
		return time.Time{}
	}
	return ts
}
