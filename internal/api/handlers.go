package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mot25/event-emitter-sync/internal/domain/event"
	"github.com/mot25/event-emitter-sync/internal/verifier"
)

type Emitter interface {
	Emit(kind event.Kind) int
}

type Reporter interface {
	Sample(ctx context.Context) (verifier.Report, error)
}

type Handlers struct {
	emitter  Emitter
	reporter Reporter
	kinds    []event.Kind
}

func NewHandlers(emitter Emitter, reporter Reporter, kinds []event.Kind) *Handlers {
	return &Handlers{
		emitter:  emitter,
		reporter: reporter,
		kinds:    kinds,
	}
}

func (h *Handlers) Emit(w http.ResponseWriter, r *http.Request) {
	kind, err := event.ParseKind(chi.URLParam(r, "kind"), h.kinds)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	n := h.emitter.Emit(kind)

	writeJSON(w, http.StatusAccepted, map[string]any{
		"kind":     kind,
		"notified": n,
	})
}

func (h *Handlers) GetStats(w http.ResponseWriter, r *http.Request) {
	rep, err := h.reporter.Sample(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (h *Handlers) GetKindStats(w http.ResponseWriter, r *http.Request) {
	kind, err := event.ParseKind(chi.URLParam(r, "kind"), h.kinds)
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}

	rep, err := h.reporter.Sample(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	row, ok := rep.Kind(kind)
	if !ok {
		http.Error(w, "kind not sampled", http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, row)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
