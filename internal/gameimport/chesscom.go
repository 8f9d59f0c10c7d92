package gameimport

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/freeeve/chessnotes/internal/pgnfmt"
	"github.com/freeeve/chessnotes/internal/replay"
	"github.com/freeeve/chessnotes/internal/tcn"
)

// chessComGame is the subset of the callback payload we read.
type chessComGame struct {
	Game struct {
		MoveList   string         `json:"moveList"`
		PGNHeaders map[string]any `json:"pgnHeaders"`
		EndTime    int64          `json:"endTime"`
	} `json:"game"`
	Players struct {
		Top    chessComPlayer `json:"top"`
		Bottom chessComPlayer `json:"bottom"`
	} `json:"players"`
}

type chessComPlayer struct {
	Username  string `json:"username"`
	Rating    *int   `json:"rating"`
	Color     int    `json:"color"`
	ColorName string `json:"colorName"`
}

func (p chessComPlayer) isWhite() bool {
	return p.Color == 1 || p.ColorName == "white"
}

func (p chessComPlayer) player() *pgnfmt.Player {
	if p.Username == "" && p.Rating == nil {
		return nil
	}
	return &pgnfmt.Player{Username: p.Username, Rating: p.Rating}
}

func (f *Fetcher) fetchChessCom(ctx context.Context, ref Ref) (*GameRecord, error) {
	kind := ref.Kind
	if kind == "" {
		kind = KindLive
	}
	body, err := f.get(ctx, ref, f.cfg.ChessComBaseURL+"/callback/"+kind+"/game/"+ref.GameID, "application/json")
	if err != nil {
		return nil, err
	}

	var payload chessComGame
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("chesscom decode: %w", err)
	}

	headers := stringHeaders(payload.Game.PGNHeaders)
	white, black := resolveColors(payload.Players.Top, payload.Players.Bottom)

	// Games from a custom position carry SetUp/FEN.
	startFEN := ""
	if headers["SetUp"] == "1" {
		startFEN = headers["FEN"]
	}

	uciMoves := tcn.Decode(payload.Game.MoveList)
	san, err := replay.UCI(startFEN, uciMoves)
	if err != nil {
		return nil, fmt.Errorf("chesscom replay: %w", err)
	}
	if len(san) < len(uciMoves) {
		f.log.Warn().
			Str("game", ref.GameID).
			Int("decoded", len(uciMoves)).
			Int("replayed", len(san)).
			Msg("move list truncated at first illegal move")
	}

	if startFEN == "" && f.cfg.Openings != nil && headers["ECO"] == "" {
		if o := f.cfg.Openings.Classify(san); o != nil {
			headers["ECO"] = o.ECO
			headers["Opening"] = o.Name
		}
	}
	if headers["Site"] == "" {
		headers["Site"] = "Chess.com"
	}
	if headers["Link"] == "" {
		headers["Link"] = f.cfg.ChessComBaseURL + "/game/" + kind + "/" + ref.GameID
	}

	pgn := f.assembler.Assemble(headers, san, white, black)
	final := pgnfmt.ParseHeaders(pgn)

	rec := &GameRecord{
		PGN:    pgn,
		Date:   final["Date"],
		Result: final["Result"],
		GameID: ref.GameID,
		Source: SourceChessCom,
		Played: playedAt(headers),
	}
	rec.White = pgnfmt.Player{Username: final["White"], Rating: pgnfmt.ParseRating(final["WhiteElo"])}
	rec.Black = pgnfmt.Player{Username: final["Black"], Rating: pgnfmt.ParseRating(final["BlackElo"])}
	if rec.Played.IsZero() && payload.Game.EndTime > 0 {
		rec.Played = time.Unix(payload.Game.EndTime, 0).UTC()
	}
	return rec, nil
}

// resolveColors maps Chess.com's board-relative top/bottom to white/black.
// Without a declared colour the bottom player is white.
func resolveColors(top, bottom chessComPlayer) (white, black *pgnfmt.Player) {
	switch {
	case top.isWhite():
		return top.player(), bottom.player()
	case bottom.isWhite():
		return bottom.player(), top.player()
	default:
		return bottom.player(), top.player()
	}
}

// stringHeaders flattens pgnHeaders, whose values may be JSON numbers.
func stringHeaders(raw map[string]any) map[string]string {
	out := make(map[string]string, len(raw)+2)
	for k, v := range raw {
		switch t := v.(type) {
		case string:
			out[k] = t
		case float64:
			out[k] = strconv.FormatFloat(t, 'f', -1, 64)
		case bool:
			out[k] = strconv.FormatBool(t)
		case nil:
		default:
			out[k] = fmt.Sprint(t)
		}
	}
	return out
}
