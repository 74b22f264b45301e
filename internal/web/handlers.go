package web

import (
	"context"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/samber/lo"

	"github.com/JonMunkholm/csvload/internal/core"
	"github.com/JonMunkholm/csvload/internal/logging"
	"github.com/JonMunkholm/csvload/internal/store/pgstore"
)

// maxHistoryLimit caps the limit query parameter of the history endpoint.
const maxHistoryLimit = 500

// LoaderInfo describes a registered file loader.
type LoaderInfo struct {
	Key           string   `json:"key"`
	Loaders       []string `json:"loaders"`
	Header        bool     `json:"header"`
	Encoding      string   `json:"encoding,omitempty"`
	Delimiter     string   `json:"delimiter"`
	CarryBindings bool     `json:"carryBindings"`
}

// Describe summarizes f for listings.
func Describe(f *core.FileLoader) LoaderInfo {
	delim := f.Delimiter
	if delim == 0 {
		delim = ','
	}
	return LoaderInfo{
		Key:           f.Key,
		Loaders:       lo.Map(f.Loaders, func(l *core.LineLoader, _ int) string { return l.Name() }),
		Header:        f.Header,
		Encoding:      f.Encoding,
		Delimiter:     string(delim),
		CarryBindings: f.CarryBindings,
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"loaders": s.registry.Len(),
	})
}

func (s *Server) handleListLoaders(w http.ResponseWriter, r *http.Request) {
	infos := make([]LoaderInfo, 0, s.registry.Len())
	for _, key := range s.registry.Keys() {
		if f, ok := s.registry.Get(key); ok {
			infos = append(infos, Describe(f))
		}
	}
	writeJSON(w, http.StatusOK, infos)
}

func (s *Server) handleGetLoader(w http.ResponseWriter, r *http.Request) {
	f, err := s.registry.Lookup(chi.URLParam(r, "key"))
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	writeJSON(w, http.StatusOK, Describe(f))
}

// handleRun runs a file loader over the request body, which is the CSV
// itself. Query parameters:
//
//	file   name recorded for the run (default "<key>.csv")
//	carry  true/false, overrides the loader's CarryBindings
//
// The body is streamed; it is never held in memory as a whole.
func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	f, err := s.registry.Lookup(key)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}

	run := *f
	if v := r.URL.Query().Get("carry"); v != "" {
		carry, err := strconv.ParseBool(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, "REQ001", "carry must be true or false")
			return
		}
		run.CarryBindings = carry
	}
	name := r.URL.Query().Get("file")
	if name == "" {
		name = key + ".csv"
	}

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.Upload.MaxFileSize)

	if err := s.limiter.Acquire(r.Context()); err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	defer s.limiter.Release()

	ctx := r.Context()
	if s.cfg.Upload.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Upload.Timeout)
		defer cancel()
	}

	res, err := run.RunReader(ctx, name, r.Body, nil)
	s.record(r.Context(), res, err)
	if err != nil {
		s.respondError(w, r, err, &res)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// record stores the run in history. A failure to record is logged and does
// not change the response.
func (s *Server) record(ctx context.Context, res core.Result, runErr error) {
	if s.history == nil {
		return
	}
	if err := s.history.Record(context.WithoutCancel(ctx), res, runErr); err != nil {
		logging.FromContext(ctx).Warn("record run history failed", "run_id", res.RunID, "error", err)
	}
}

func (s *Server) handleRunHistory(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if _, err := s.registry.Lookup(key); err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	if s.history == nil {
		writeError(w, http.StatusNotImplemented, "HIST001", "run history is not configured")
		return
	}

	limit := parseIntParam(r, "limit", pgstore.DefaultHistoryLimit)
	limit = min(max(limit, 1), maxHistoryLimit)

	runs, err := s.history.Recent(r.Context(), key, limit)
	if err != nil {
		s.respondError(w, r, err, nil)
		return
	}
	if runs == nil {
		runs = []pgstore.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleRunStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.limiter.Status())
}

// parseIntParam reads an integer query parameter, falling back to
// defaultVal when it is absent or malformed.
func parseIntParam(r *http.Request, name string, defaultVal int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}
