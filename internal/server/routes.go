package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/leapstack-labs/fieldsync/internal/store"
	"github.com/leapstack-labs/fieldsync/pkg/core"
)

// maxBody caps request bodies.
const maxBody = 1 << 20

func (s *Server) routes(r chi.Router) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Route("/records", func(r chi.Router) {
		r.Post("/", s.createRecord)
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", s.getRecord)
			r.Patch("/", s.saveRecord)
			r.Post("/validate", s.validateRecord)
			r.Get("/history", s.recordHistory)
		})
	})
}

type errorBody struct {
	Error  string              `json:"error"`
	Errors map[string][]string `json:"errors,omitempty"`
}

func (s *Server) createRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Create(r.Context())
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, rec)
}

func (s *Server) getRecord(w http.ResponseWriter, r *http.Request) {
	rec, err := s.svc.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rec)
}

func (s *Server) saveRecord(w http.ResponseWriter, r *http.Request) {
	var payload core.Payload
	if !s.decode(w, r, &payload) {
		return
	}
	rec, err := s.svc.Save(r.Context(), chi.URLParam(r, "id"), payload.Data)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, core.Response{Data: rec.Fields})
}

func (s *Server) validateRecord(w http.ResponseWriter, r *http.Request) {
	var req core.ValidationRequest
	if !s.decode(w, r, &req) {
		return
	}
	resp, err := s.svc.Validate(r.Context(), chi.URLParam(r, "id"), req)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) recordHistory(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, errorBody{Error: "limit must be a non-negative integer"})
			return
		}
		limit = n
	}
	changes, err := s.svc.History(r.Context(), chi.URLParam(r, "id"), r.URL.Query().Get("field"), limit)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if changes == nil {
		changes = []store.Change{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"changes": changes})
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid JSON body: " + err.Error()})
		return false
	}
	return true
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	var coreErr *core.Error
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "record not found"})
	case errors.As(err, &coreErr) && coreErr.Code == core.CodeValidation:
		writeJSON(w, http.StatusUnprocessableEntity, errorBody{Error: core.UserMessage(coreErr), Errors: coreErr.Details})
	default:
		s.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusInternalServerError, errorBody{Error: "internal error"})
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
