// Package server exposes a read-only HTTP view of a revision map.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	rgerrors "github.com/matzehuels/revgraph/pkg/errors"
	"github.com/matzehuels/revgraph/pkg/plan"
	"github.com/matzehuels/revgraph/pkg/render"
	"github.com/matzehuels/revgraph/pkg/revision"
	"github.com/matzehuels/revgraph/pkg/version"
)

// Server serves revision data as JSON.
type Server struct {
	Map          *revision.Map
	Store        version.Store
	Renderer     *render.Renderer
	ManifestHash string
	Logger       *log.Logger
}

// Handler returns the router.
//
//	GET /heads
//	GET /branches
//	GET /history?range=lower:upper
//	GET /revisions/{id}
//	GET /current            (only with a store)
//	GET /graph/{dot,svg}
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.logRequests)
	r.Use(middleware.Heartbeat("/ping"))

	r.Get("/heads", s.heads)
	r.Get("/branches", s.branches)
	r.Get("/history", s.history)
	r.Get("/revisions/{id}", s.revision)
	r.Get("/current", s.current)
	r.Get("/graph/{format}", s.graph)
	return r
}

// ListenAndServe serves on addr until ctx is canceled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{Addr: addr, Handler: s.Handler(), ReadHeaderTimeout: 10 * time.Second}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.logger().Info("serving revision graph", "addr", addr)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return err
		}
		return ctx.Err()
	}
}

func (s *Server) logger() *log.Logger {
	if s.Logger == nil {
		return log.Default()
	}
	return s.Logger
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger().Debug("request", "method", r.Method, "path", r.URL.Path,
			"status", ww.Status(), "duration", time.Since(start))
	})
}

// =============================================================================
// Handlers
// =============================================================================

func (s *Server) heads(w http.ResponseWriter, r *http.Request) {
	revs, err := s.Map.GetRevisions("heads")
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"heads": summaries(revs)})
}

type branchJSON struct {
	Label    string   `json:"label"`
	Revision string   `json:"revision"`
	Heads    []string `json:"heads"`
}

func (s *Server) branches(w http.ResponseWriter, r *http.Request) {
	labels, err := s.Map.BranchLabels()
	if err != nil {
		s.writeError(w, err)
		return
	}
	revs, err := s.Map.Revisions()
	if err != nil {
		s.writeError(w, err)
		return
	}
	out := []branchJSON{}
	for _, rev := range revs {
		for _, label := range rev.BranchLabels {
			if labels[label] != rev.ID {
				continue
			}
			heads, err := s.Map.GetRevisions(label + "@heads")
			if err != nil {
				s.writeError(w, err)
				return
			}
			out = append(out, branchJSON{Label: label, Revision: rev.ID, Heads: ids(heads)})
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"branches": out})
}

func (s *Server) history(w http.ResponseWriter, r *http.Request) {
	revs, err := plan.History(s.Map, r.URL.Query().Get("range"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"revisions": summaries(revs)})
}

func (s *Server) revision(w http.ResponseWriter, r *http.Request) {
	rev, err := s.Map.GetRevision(chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if rev == nil {
		s.writeError(w, rgerrors.New(rgerrors.ErrCodeNotFound, "base is not a revision"))
		return
	}
	writeJSON(w, http.StatusOK, detailOf(rev))
}

func (s *Server) current(w http.ResponseWriter, r *http.Request) {
	if s.Store == nil {
		s.writeError(w, rgerrors.New(rgerrors.ErrCodeNotFound, "no version store configured"))
		return
	}
	heads, err := s.Store.Heads(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	revs, err := s.Map.GetRevisions(heads...)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"current": summaries(revs)})
}

func (s *Server) graph(w http.ResponseWriter, r *http.Request) {
	format, err := render.ParseFormat(chi.URLParam(r, "format"))
	if err != nil {
		s.writeError(w, rgerrors.Wrap(rgerrors.ErrCodeInvalidInput, err, "graph"))
		return
	}
	renderer := s.Renderer
	if renderer == nil {
		renderer = render.NewRenderer(nil, nil, s.Logger)
	}
	data, _, err := renderer.Render(r.Context(), render.Request{
		Map:          s.Map,
		ManifestHash: s.ManifestHash,
		Format:       format,
		Options:      render.Options{Detailed: r.URL.Query().Has("detailed"), Dependencies: true},
	})
	if err != nil {
		s.writeError(w, err)
		return
	}
	if format == render.FormatSVG {
		w.Header().Set("Content-Type", "image/svg+xml")
	} else {
		w.Header().Set("Content-Type", "text/vnd.graphviz")
	}
	w.Write(data)
}

// =============================================================================
// Encoding
// =============================================================================

type summaryJSON struct {
	ID            string   `json:"id"`
	DownRevisions []string `json:"down_revisions"`
	Doc           string   `json:"doc,omitempty"`
}

type detailJSON struct {
	summaryJSON
	Dependencies  []string `json:"dependencies,omitempty"`
	Normalized    []string `json:"normalized_down_revisions"`
	NextRevisions []string `json:"next_revisions"`
	BranchLabels  []string `json:"branch_labels,omitempty"`
	Branches      []string `json:"branches,omitempty"`
	IsHead        bool     `json:"is_head"`
	IsBase        bool     `json:"is_base"`
	IsBranchPoint bool     `json:"is_branch_point"`
	IsMergePoint  bool     `json:"is_merge_point"`
}

func summaryOf(r *revision.Revision) summaryJSON {
	down := r.DownRevisions
	if down == nil {
		down = []string{}
	}
	return summaryJSON{ID: r.ID, DownRevisions: down, Doc: r.Doc}
}

func summaries(revs []*revision.Revision) []summaryJSON {
	out := make([]summaryJSON, 0, len(revs))
	for _, r := range revs {
		out = append(out, summaryOf(r))
	}
	return out
}

func detailOf(r *revision.Revision) detailJSON {
	return detailJSON{
		summaryJSON:   summaryOf(r),
		Dependencies:  r.Dependencies,
		Normalized:    nonNil(r.NormalizedDownRevisions()),
		NextRevisions: nonNil(r.AllNextRevisions()),
		BranchLabels:  r.BranchLabels,
		Branches:      r.Branches(),
		IsHead:        r.IsHead(),
		IsBase:        r.IsBase(),
		IsBranchPoint: r.IsBranchPoint(),
		IsMergePoint:  r.IsMergePoint(),
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func ids(revs []*revision.Revision) []string {
	out := make([]string, 0, len(revs))
	for _, r := range revs {
		out = append(out, r.ID)
	}
	return out
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

type errorJSON struct {
	Error string        `json:"error"`
	Code  rgerrors.Code `json:"code,omitempty"`
	Heads []string      `json:"heads,omitempty"`
}

// writeError maps engine and store errors onto HTTP statuses by code.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	code := rgerrors.GetCode(err)
	status := http.StatusInternalServerError
	switch code {
	case rgerrors.ErrCodeRevisionNotFound, rgerrors.ErrCodeNotFound:
		status = http.StatusNotFound
	case rgerrors.ErrCodeMultipleHeads:
		status = http.StatusConflict
	case rgerrors.ErrCodeInvalidInput, rgerrors.ErrCodeInvalidRevision, rgerrors.ErrCodeRangeNotAncestor,
		rgerrors.ErrCodeDependencyResolution:
		status = http.StatusBadRequest
	}
	body := errorJSON{Error: rgerrors.UserMessage(err), Code: code}
	var mh *revision.MultipleHeadsError
	if errors.As(err, &mh) {
		body.Heads = mh.Heads
	}
	if status == http.StatusInternalServerError {
		s.logger().Error("request failed", "err", err)
	}
	writeJSON(w, status, body)
}
