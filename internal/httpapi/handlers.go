package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"html/template"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/dataset"
	"github.com/saulfrancisco-ruizacevedo/tissue-explorer/internal/protein"
)

const readinessTimeout = 2 * time.Second

// loadData handles GET /load-data/{tissue}
func (rt *Router) loadData(w http.ResponseWriter, r *http.Request) {
	tissue := chi.URLParam(r, "tissue")

	// A reload is not abandoned halfway because the client went away.
	report, err := rt.reloader.Reload(context.WithoutCancel(r.Context()), tissue)
	if err != nil {
		rt.logger.Error("Loading data failed",
			zap.String("tissue", tissue),
			zap.String("runID", report.RunID),
			zap.Error(err),
		)
		w.WriteHeader(statusFor(err))
		return
	}
	rt.respondJSON(w, http.StatusOK, "")
}

// getGraph handles GET /get-graph
func (rt *Router) getGraph(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var graph *protein.Graph
	err := rt.sharedRead(r, func(ctx context.Context) error {
		var err error
		graph, err = rt.assembler.Assemble(ctx)
		return err
	})
	if err != nil {
		if r.Context().Err() != nil {
			rt.logger.Info("Client went away before the graph was fetched", zap.Error(err))
		} else {
			rt.logger.Error("Data fetching went wrong", zap.Error(err))
		}
		w.WriteHeader(statusFor(err))
		return
	}

	rt.logger.Info("Data fetched",
		zap.Int("nodes", len(graph.Nodes)),
		zap.Int("links", len(graph.Links)),
		zap.Duration("duration", time.Since(start)),
	)
	rt.respondJSON(w, http.StatusOK, graph)
}

// proteinProperties handles GET /protein-properties/{proteinId}
func (rt *Router) proteinProperties(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	raw := chi.URLParam(r, "proteinId")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		rt.logger.Info("Protein id is not an integer", zap.String("proteinId", raw))
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var lookup *protein.Lookup
	err = rt.sharedRead(r, func(ctx context.Context) error {
		var err error
		lookup, err = rt.resolver.ByID(ctx, id)
		return err
	})
	if err != nil {
		rt.logger.Info("Protein properties fetching went wrong", zap.Int64("geneID", id), zap.Error(err))
		w.WriteHeader(statusFor(err))
		return
	}

	rt.logger.Info("Protein properties fetched",
		zap.Int64("geneID", id),
		zap.Duration("duration", time.Since(start)),
	)
	rt.respondJSON(w, http.StatusOK, lookup)
}

// sharedRead runs read as a shared section of the gate. The wait for a
// reload cannot be interrupted, so a request whose client left meanwhile is
// dropped once the gate opens instead of querying the store.
func (rt *Router) sharedRead(r *http.Request, read func(ctx context.Context) error) error {
	return rt.gate.Shared(func() error {
		if err := r.Context().Err(); err != nil {
			return err
		}
		return read(r.Context())
	})
}

// index handles GET /
func (rt *Router) index(w http.ResponseWriter, r *http.Request) {
	if rt.opts.TemplateDir == "" {
		http.NotFound(w, r)
		return
	}
	tmpl, err := template.ParseFiles(filepath.Join(rt.opts.TemplateDir, "index.html"))
	if err != nil {
		rt.logger.Error("Failed to parse index template", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := tmpl.Execute(w, nil); err != nil {
		rt.logger.Error("Failed to render index template", zap.Error(err))
	}
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	rt.respondJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
}

// readinessCheck reports whether the store answers.
func (rt *Router) readinessCheck(w http.ResponseWriter, r *http.Request) {
	if rt.ready != nil {
		ctx, cancel := context.WithTimeout(r.Context(), readinessTimeout)
		defer cancel()
		if err := rt.ready.Verify(ctx); err != nil {
			rt.logger.Warn("Store is not reachable", zap.Error(err))
			rt.respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	rt.respondJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (rt *Router) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	body, err := json.Marshal(data)
	if err != nil {
		rt.logger.Error("Failed to encode response", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if _, err := w.Write(body); err != nil {
		rt.logger.Warn("Failed to write response", zap.Error(err))
	}
}

// statusFor maps a component error onto the coarse status contract: failures
// that leave nothing to report are No Content, the rest are server errors.
// Error responses never carry a body.
func statusFor(err error) int {
	var (
		notFound      *protein.NotFoundError
		loadErr       *protein.LoadError
		clearErr      *protein.ClearError
		centralityErr *protein.CentralityError
	)
	switch {
	case errors.As(err, &notFound):
		return http.StatusNoContent
	case errors.As(err, &clearErr), errors.As(err, &centralityErr):
		return http.StatusNoContent
	case errors.As(err, &loadErr):
		if errors.Is(err, dataset.ErrInvalidTissue) {
			return http.StatusNoContent
		}
		return http.StatusInternalServerError
	}
	return http.StatusInternalServerError
}
