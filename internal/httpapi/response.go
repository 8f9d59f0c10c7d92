package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/freeeve/chessnotes/internal/gameimport"
	"github.com/freeeve/chessnotes/internal/layout"
	"github.com/freeeve/chessnotes/internal/review"
	"github.com/freeeve/chessnotes/internal/uciengine"
	"github.com/freeeve/chessnotes/internal/vault"
)

const maxRequestBytes = 1 << 20

// ImportRequest asks the bridge to fetch a game by URL.
type ImportRequest struct {
	URL string `json:"url"`
	// Save writes the game into a note under Folder.
	Save   bool   `json:"save,omitempty"`
	Folder string `json:"folder,omitempty"`
}

// ImportResponse carries the fetched game and, when saved, its note path.
type ImportResponse struct {
	Game *gameimport.GameRecord `json:"game"`
	Note string                 `json:"note,omitempty"`
}

// AnalyzeRequest starts an engine search. WhitePOV flips scores to White's
// perspective.
type AnalyzeRequest struct {
	FEN      string `json:"fen"`
	Depth    int    `json:"depth,omitempty"`
	MultiPV  int    `json:"multipv,omitempty"`
	WhitePOV bool   `json:"whitePov,omitempty"`
}

// ReviewRequest evaluates a game. Moves may be given directly as SAN or
// read from a PGN document.
type ReviewRequest struct {
	FEN   string   `json:"fen,omitempty"`
	Moves []string `json:"moves,omitempty"`
	PGN   string   `json:"pgn,omitempty"`
}

// ReviewResponse is a per-ply review and the annotated move text.
type ReviewResponse struct {
	Plies     []review.PlyEval `json:"plies"`
	Annotated string           `json:"annotated"`
}

// GraphResponse is the settled link-graph layout.
type GraphResponse struct {
	Nodes     []layout.Node `json:"nodes"`
	Edges     []layout.Edge `json:"edges"`
	Ticks     int           `json:"ticks"`
	Converged bool          `json:"converged"`
}

// writeJSON writes a JSON response
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(io.LimitReader(r.Body, maxRequestBytes))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// statusFor maps domain errors to HTTP status codes.
func statusFor(err error) int {
	var notFound *gameimport.NotFoundError
	var fetchErr *gameimport.FetchError
	switch {
	case errors.Is(err, gameimport.ErrUnrecognizedURL),
		errors.Is(err, uciengine.ErrInvalidFEN),
		errors.Is(err, vault.ErrPathEscape),
		errors.Is(err, vault.ErrNotNote):
		return http.StatusBadRequest
	case errors.As(err, &notFound):
		return http.StatusNotFound
	case errors.Is(err, uciengine.ErrInitTimeout),
		errors.Is(err, uciengine.ErrReadyTimeout),
		errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.As(err, &fetchErr):
		return http.StatusBadGateway
	case errors.Is(err, uciengine.ErrSuperseded):
		return http.StatusConflict
	case errors.Is(err, uciengine.ErrEngineClosed):
		return http.StatusServiceUnavailable
	case errors.Is(err, context.Canceled):
		return 499
	}
	return http.StatusInternalServerError
}
