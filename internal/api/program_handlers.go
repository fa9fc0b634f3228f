package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/washbay-server/washbay-server-pro/internal/models"
	"github.com/washbay-server/washbay-server-pro/internal/storage"
)

// HandleListPrograms lists wash programs
func (s *RESTServer) HandleListPrograms(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePaging(r)
	activeOnly := r.URL.Query().Get("active") == "true"

	programs, total, err := s.store.ListPrograms(r.Context(), activeOnly, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"programs": programs,
		"total":    total,
	})
}

// HandleCreateProgram creates a wash program
func (s *RESTServer) HandleCreateProgram(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name           string           `json:"name" validate:"required,min=3,max=100"`
		Description    string           `json:"description"`
		PricePerSecond decimal.Decimal  `json:"pricePerSecond"`
		PricePerMinute *decimal.Decimal `json:"pricePerMinute,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.PricePerSecond.IsNegative() {
		s.respondError(w, http.StatusBadRequest, "pricePerSecond must not be negative")
		return
	}

	program := &models.WashProgram{
		Name:           req.Name,
		Description:    req.Description,
		PricePerSecond: req.PricePerSecond,
		PricePerMinute: req.PricePerMinute,
		IsActive:       true,
	}

	if err := s.store.CreateProgram(r.Context(), program); err != nil {
		if err == storage.ErrDuplicateKey {
			s.respondError(w, http.StatusConflict, "program already exists")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, program)
}

// HandleGetProgram gets a wash program
func (s *RESTServer) HandleGetProgram(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid program id")
		return
	}

	program, err := s.store.GetProgram(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "program not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, program)
}

// HandleUpdateProgram updates a wash program
func (s *RESTServer) HandleUpdateProgram(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid program id")
		return
	}

	var req struct {
		Name           string           `json:"name" validate:"required,min=3,max=100"`
		Description    string           `json:"description"`
		PricePerSecond decimal.Decimal  `json:"pricePerSecond"`
		PricePerMinute *decimal.Decimal `json:"pricePerMinute,omitempty"`
		IsActive       *bool            `json:"isActive,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.PricePerSecond.IsNegative() {
		s.respondError(w, http.StatusBadRequest, "pricePerSecond must not be negative")
		return
	}

	program, err := s.store.GetProgram(ctx, id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "program not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	program.Name = req.Name
	program.Description = req.Description
	program.PricePerSecond = req.PricePerSecond
	program.PricePerMinute = req.PricePerMinute
	if req.IsActive != nil {
		program.IsActive = *req.IsActive
	}

	if err := s.store.UpdateProgram(ctx, program); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, program)
}

// HandleDeleteProgram deletes a wash program. Historical sessions keep
// their records with the program reference cleared.
func (s *RESTServer) HandleDeleteProgram(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid program id")
		return
	}

	if err := s.store.DeleteProgram(r.Context(), id); err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "program not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ========== Session queries ==========

// HandleListSessions lists sessions across devices
func (s *RESTServer) HandleListSessions(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePaging(r)

	filters := storage.SessionFilters{}
	if v := r.URL.Query().Get("device_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid device_id filter")
			return
		}
		filters.DeviceID = &id
	}
	if v := r.URL.Query().Get("program_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid program_id filter")
			return
		}
		filters.ProgramID = &id
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := models.SessionStatus(v)
		filters.Status = &status
	}

	sessions, total, err := s.store.ListSessions(r.Context(), filters, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"sessions": sessions,
		"total":    total,
	})
}

// HandleGetSession gets a session
func (s *RESTServer) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	session, err := s.store.GetSession(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "session not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, session)
}
