package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Router exposes the three entry points over plain HTTP for local runs.
// metrics may be nil.
func (h *Handler) Router(metrics http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(cors)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
	})
	if metrics != nil {
		r.Handle("/metrics", metrics)
	}

	r.Get("/fetch-events", func(w http.ResponseWriter, r *http.Request) {
		params := make(map[string]string)
		for k := range r.URL.Query() {
			params[k] = r.URL.Query().Get(k)
		}
		req, err := FetchEventsFromQuery(params)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, failure(err))
			return
		}
		resp, status := h.FetchEvents(r.Context(), req)
		writeJSON(w, status, resp)
	})
	r.Post("/fetch-events", serveJSON(h.FetchEvents))
	r.Post("/batch-scraper", serveJSON(h.Batch))
	r.Post("/master-scraper", serveJSON(h.Master))
	return r
}

func serveJSON[T any](handle func(context.Context, T) (Response, int)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req T
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeJSON(w, http.StatusBadRequest, failure(fmt.Errorf("%w: invalid JSON body: %v", ErrMissingInput, err)))
			return
		}
		resp, status := handle(r.Context(), req)
		writeJSON(w, status, resp)
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		for k, v := range CORSHeaders() {
			w.Header().Set(k, v)
		}
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("[API] Failed to write response: %v", err)
	}
}
