package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/washbay-server/washbay-server-pro/internal/models"
	"github.com/washbay-server/washbay-server-pro/internal/storage"
)

// HandleListTemplates lists configuration templates
func (s *RESTServer) HandleListTemplates(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePaging(r)

	templates, total, err := s.store.ListTemplates(r.Context(), limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"templates": templates,
		"total":     total,
	})
}

// HandleCreateTemplate creates a configuration template
func (s *RESTServer) HandleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string           `json:"name" validate:"required,min=3,max=100"`
		Description string           `json:"description"`
		Settings    models.Variables `json:"settings"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.configs.ValidateSettings(req.Settings); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	template := &models.ConfigurationTemplate{
		Name:        req.Name,
		Description: req.Description,
		Settings:    req.Settings,
		IsActive:    true,
	}
	if claims := s.claimsFrom(r); claims != nil {
		template.CreatedBy = &claims.UserID
	}

	if err := s.store.CreateTemplate(r.Context(), template); err != nil {
		if err == storage.ErrDuplicateKey {
			s.respondError(w, http.StatusConflict, "template already exists")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, template)
}

// HandleGetTemplate gets a configuration template
func (s *RESTServer) HandleGetTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid template id")
		return
	}

	template, err := s.store.GetTemplate(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "template not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, template)
}

// HandleUpdateTemplate updates a configuration template
func (s *RESTServer) HandleUpdateTemplate(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid template id")
		return
	}

	var req struct {
		Name        string           `json:"name" validate:"required,min=3,max=100"`
		Description string           `json:"description"`
		Settings    models.Variables `json:"settings"`
		IsActive    *bool            `json:"isActive,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	if req.Settings != nil {
		if err := s.configs.ValidateSettings(req.Settings); err != nil {
			s.respondError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	template, err := s.store.GetTemplate(ctx, id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "template not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	template.Name = req.Name
	template.Description = req.Description
	if req.Settings != nil {
		template.Settings = req.Settings
	}
	if req.IsActive != nil {
		template.IsActive = *req.IsActive
	}

	if err := s.store.UpdateTemplate(ctx, template); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, template)
}

// HandleDeleteTemplate deletes a configuration template
func (s *RESTServer) HandleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid template id")
		return
	}

	if err := s.store.DeleteTemplate(r.Context(), id); err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "template not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleApplyTemplateToDevices applies a template to many devices
func (s *RESTServer) HandleApplyTemplateToDevices(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid template id")
		return
	}

	var req struct {
		DeviceIDs        []uuid.UUID `json:"deviceIds" validate:"required"`
		OverrideExisting bool        `json:"overrideExisting"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if len(req.DeviceIDs) == 0 {
		s.respondError(w, http.StatusBadRequest, "deviceIds must not be empty")
		return
	}

	var appliedBy *uuid.UUID
	if claims := s.claimsFrom(r); claims != nil {
		appliedBy = &claims.UserID
	}

	result, err := s.configs.ApplyToDevices(r.Context(), id, req.DeviceIDs, req.OverrideExisting, appliedBy)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

// HandleListTemplateApplications lists the application audit trail
func (s *RESTServer) HandleListTemplateApplications(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePaging(r)

	filters := storage.ApplicationFilters{}
	if v := r.URL.Query().Get("template_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid template_id filter")
			return
		}
		filters.TemplateID = &id
	}
	if v := r.URL.Query().Get("device_id"); v != "" {
		id, err := uuid.Parse(v)
		if err != nil {
			s.respondError(w, http.StatusBadRequest, "invalid device_id filter")
			return
		}
		filters.DeviceID = &id
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := models.ApplicationStatus(v)
		filters.Status = &status
	}

	applications, total, err := s.store.ListTemplateApplications(r.Context(), filters, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"applications": applications,
		"total":        total,
	})
}
