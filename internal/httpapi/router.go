// Package httpapi is the local JSON bridge between the UI process and the
// import pipeline, engine session, search index and graph layout.
package httpapi

import (
	"context"
	"net/http"
	"net/http/pprof"
	"path"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"github.com/freeeve/chessnotes/internal/gameimport"
	"github.com/freeeve/chessnotes/internal/layout"
	"github.com/freeeve/chessnotes/internal/pgnfmt"
	"github.com/freeeve/chessnotes/internal/review"
	"github.com/freeeve/chessnotes/internal/search"
	"github.com/freeeve/chessnotes/internal/uciengine"
)

// Importer fetches games by URL.
type Importer interface {
	Fetch(ctx context.Context, url string) (*gameimport.GameRecord, error)
}

// Analyzer runs interactive engine searches.
type Analyzer interface {
	Analyze(ctx context.Context, fen string, depth, multiPV int) (*uciengine.Analysis, error)
	Stop() error
}

// Reviewer evaluates every ply of a game.
type Reviewer interface {
	Review(ctx context.Context, startFEN string, san []string) ([]review.PlyEval, error)
}

// Searcher queries the note index.
type Searcher interface {
	Search(ctx context.Context, query string, limit int) ([]search.Hit, error)
}

// NoteWriter saves imported games as new notes. Create never replaces an
// existing note; it returns the path actually written.
type NoteWriter interface {
	Create(rel, text string) (string, error)
}

// Archiver keeps a copy of every imported game.
type Archiver interface {
	Append(pgnText string) error
}

// GraphSource returns the current note link graph.
type GraphSource func() ([]string, []layout.Edge, error)

// Config wires the bridge. Nil dependencies make their routes answer 503.
type Config struct {
	Importer Importer
	Analyzer Analyzer
	Reviewer Reviewer
	Searcher Searcher
	Notes    NoteWriter
	Archive  Archiver
	Graph    GraphSource
	Layout   *layout.Engine

	// Debug mounts the pprof handlers under /debug/pprof/.
	Debug  bool
	Logger zerolog.Logger
}

// Handler serves the bridge routes.
type Handler struct {
	cfg     Config
	log     zerolog.Logger
	graphMu sync.Mutex
}

// NewRouter builds the bridge with request-id, access-log and CORS middleware.
func NewRouter(cfg Config) http.Handler {
	h := &Handler{
		cfg: cfg,
		log: cfg.Logger.With().Str("component", "httpapi").Logger(),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.health)
	mux.HandleFunc("POST /v1/import", h.importGame)
	mux.HandleFunc("POST /v1/analyze", h.analyze)
	mux.HandleFunc("POST /v1/analyze/stop", h.stop)
	mux.HandleFunc("POST /v1/review", h.review)
	mux.HandleFunc("GET /v1/graph", h.graph)
	mux.HandleFunc("GET /v1/search", h.search)

	if cfg.Debug {
		mux.HandleFunc("/debug/pprof/", pprof.Index)
		mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
		mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
		mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
		mux.HandleFunc("/debug/pprof/trace", pprof.Trace)
	}

	return CORS(RequestID(AccessLog(h.log, mux)))
}

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	code := statusFor(err)
	if code >= 500 {
		h.log.Error().Err(err).Str("rid", GetRequestID(r.Context())).Int("status", code).Msg("request failed")
	}
	http.Error(w, err.Error(), code)
}

func unavailable(w http.ResponseWriter, what string) {
	http.Error(w, what+" not configured", http.StatusServiceUnavailable)
}

func (h *Handler) importGame(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Importer == nil {
		unavailable(w, "importer")
		return
	}
	var req ImportRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}

	rec, err := h.cfg.Importer.Fetch(r.Context(), req.URL)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	if h.cfg.Archive != nil {
		if err := h.cfg.Archive.Append(rec.PGN); err != nil {
			h.log.Warn().Err(err).Str("game", rec.GameID).Msg("archive append failed")
		}
	}

	resp := ImportResponse{Game: rec}
	if req.Save {
		if h.cfg.Notes == nil {
			unavailable(w, "note storage")
			return
		}
		rel := path.Join(strings.Trim(req.Folder, "/"), gameimport.NoteTitle(rec)+".md")
		saved, err := h.cfg.Notes.Create(rel, gameimport.NoteBody(rec))
		if err != nil {
			h.fail(w, r, err)
			return
		}
		resp.Note = saved
	}
	writeJSON(w, resp)
}

func (h *Handler) analyze(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Analyzer == nil {
		unavailable(w, "engine")
		return
	}
	var req AnalyzeRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	a, err := h.cfg.Analyzer.Analyze(r.Context(), req.FEN, req.Depth, req.MultiPV)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if req.WhitePOV {
		pov := a.WhitePOV()
		a = &pov
	}
	writeJSON(w, a)
}

func (h *Handler) stop(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Analyzer == nil {
		unavailable(w, "engine")
		return
	}
	if err := h.cfg.Analyzer.Stop(); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Reviewer == nil {
		unavailable(w, "reviewer")
		return
	}
	var req ReviewRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "invalid JSON body: "+err.Error(), http.StatusBadRequest)
		return
	}
	moves, result := req.Moves, ""
	if req.PGN != "" {
		moves, result = pgnfmt.SplitMoveText(req.PGN)
		if req.FEN == "" {
			req.FEN = pgnfmt.ParseHeaders(req.PGN)["FEN"]
		}
	}
	if len(moves) == 0 {
		http.Error(w, "no moves to review", http.StatusBadRequest)
		return
	}

	plies, err := h.cfg.Reviewer.Review(r.Context(), req.FEN, moves)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, ReviewResponse{Plies: plies, Annotated: review.Annotate(plies, result)})
}

func (h *Handler) graph(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Graph == nil || h.cfg.Layout == nil {
		unavailable(w, "graph")
		return
	}
	ids, edges, err := h.cfg.Graph()
	if err != nil {
		h.fail(w, r, err)
		return
	}

	q := r.URL.Query()
	width, _ := strconv.ParseFloat(q.Get("width"), 64)
	height, _ := strconv.ParseFloat(q.Get("height"), 64)

	h.graphMu.Lock()
	defer h.graphMu.Unlock()
	h.cfg.Layout.SetGraph(ids, edges)
	if width > 0 && height > 0 {
		h.cfg.Layout.Resize(width, height)
	}
	ticks, converged := h.cfg.Layout.Settle()

	if edges == nil {
		edges = []layout.Edge{}
	}
	writeJSON(w, GraphResponse{
		Nodes:     h.cfg.Layout.Snapshot(),
		Edges:     edges,
		Ticks:     ticks,
		Converged: converged,
	})
}

func (h *Handler) search(w http.ResponseWriter, r *http.Request) {
	if h.cfg.Searcher == nil {
		unavailable(w, "search")
		return
	}
	q := r.URL.Query()
	query := strings.TrimSpace(q.Get("q"))
	if query == "" {
		http.Error(w, "missing q parameter", http.StatusBadRequest)
		return
	}
	limit := 20
	if s := q.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			http.Error(w, "invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, 200)
	}
	hits, err := h.cfg.Searcher.Search(r.Context(), query, limit)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, hits)
}
