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

type programSettingRequest struct {
	ProgramID   uuid.UUID        `json:"programId" validate:"required"`
	CustomPrice *decimal.Decimal `json:"customPrice,omitempty"`
	IsEnabled   bool             `json:"isEnabled"`
}

type configurationRequest struct {
	DeviceID             *uuid.UUID              `json:"deviceId,omitempty"`
	PricePerMinute       decimal.Decimal         `json:"pricePerMinute"`
	DefaultTimeout       int                     `json:"defaultTimeout" validate:"min=0"`
	ValveResetTimeout    int                     `json:"valveResetTimeout" validate:"min=0"`
	BonusDurationEnabled bool                    `json:"bonusDurationEnabled"`
	BonusDurationAmount  int                     `json:"bonusDurationAmount" validate:"min=0"`
	EnginePerformance    int                     `json:"enginePerformance" validate:"min=0,max=100"`
	PumpPerformance      int                     `json:"pumpPerformance" validate:"min=0,max=100"`
	IsTemplate           bool                    `json:"isTemplate"`
	TemplateName         string                  `json:"templateName,omitempty"`
	ProgramSettings      []programSettingRequest `json:"programSettings,omitempty"`
}

// HandleListConfigurations lists device configurations or configuration
// templates, selected by the templates query parameter
func (s *RESTServer) HandleListConfigurations(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePaging(r)
	templates := r.URL.Query().Get("templates") == "true"

	configs, total, err := s.store.ListConfigurations(r.Context(), templates, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"configurations": configs,
		"total":          total,
	})
}

// HandleCreateConfiguration creates a device configuration or template
func (s *RESTServer) HandleCreateConfiguration(w http.ResponseWriter, r *http.Request) {
	var req configurationRequest

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	// A configuration either belongs to a device or is a named template.
	if req.IsTemplate == (req.DeviceID != nil) {
		s.respondError(w, http.StatusBadRequest, "configuration needs either a device or a template name")
		return
	}
	if req.IsTemplate && req.TemplateName == "" {
		s.respondError(w, http.StatusBadRequest, "template name is required")
		return
	}

	config := &models.DeviceConfiguration{
		DeviceID:             req.DeviceID,
		PricePerMinute:       req.PricePerMinute,
		DefaultTimeout:       req.DefaultTimeout,
		ValveResetTimeout:    req.ValveResetTimeout,
		BonusDurationEnabled: req.BonusDurationEnabled,
		BonusDurationAmount:  req.BonusDurationAmount,
		EnginePerformance:    req.EnginePerformance,
		PumpPerformance:      req.PumpPerformance,
		IsTemplate:           req.IsTemplate,
		TemplateName:         req.TemplateName,
		ProgramSettings:      toProgramSettings(req.ProgramSettings),
	}

	if err := s.store.CreateConfiguration(r.Context(), config); err != nil {
		if err == storage.ErrDuplicateKey {
			s.respondError(w, http.StatusConflict, "configuration already exists for this device")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, config)
}

// HandleGetConfiguration gets a configuration
func (s *RESTServer) HandleGetConfiguration(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid configuration id")
		return
	}

	config, err := s.store.GetConfiguration(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "configuration not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, config)
}

// HandleUpdateConfiguration updates a configuration's scalar values and
// program settings
func (s *RESTServer) HandleUpdateConfiguration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid configuration id")
		return
	}

	var req configurationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	config, err := s.store.GetConfiguration(ctx, id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "configuration not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	config.PricePerMinute = req.PricePerMinute
	config.DefaultTimeout = req.DefaultTimeout
	config.ValveResetTimeout = req.ValveResetTimeout
	config.BonusDurationEnabled = req.BonusDurationEnabled
	config.BonusDurationAmount = req.BonusDurationAmount
	config.EnginePerformance = req.EnginePerformance
	config.PumpPerformance = req.PumpPerformance
	if config.IsTemplate && req.TemplateName != "" {
		config.TemplateName = req.TemplateName
	}

	if err := s.store.UpdateConfiguration(ctx, config); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	if req.ProgramSettings != nil {
		settings := toProgramSettings(req.ProgramSettings)
		for i := range settings {
			settings[i].ConfigID = config.ID
		}
		if err := s.store.ReplaceProgramSettings(ctx, config.ID, settings); err != nil {
			s.respondError(w, http.StatusInternalServerError, err.Error())
			return
		}
		config.ProgramSettings = settings
	}

	s.respondJSON(w, http.StatusOK, config)
}

// HandleDeleteConfiguration deletes a configuration
func (s *RESTServer) HandleDeleteConfiguration(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid configuration id")
		return
	}

	if err := s.store.DeleteConfiguration(r.Context(), id); err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "configuration not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// HandleApplyTemplate copies a template configuration onto this one
func (s *RESTServer) HandleApplyTemplate(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid configuration id")
		return
	}

	var req struct {
		TemplateID uuid.UUID `json:"templateId" validate:"required"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	config, err := s.configs.ApplyTemplate(r.Context(), id, req.TemplateID)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, config)
}

// HandleUpdatePerformance adjusts engine and pump performance
func (s *RESTServer) HandleUpdatePerformance(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid configuration id")
		return
	}

	var req struct {
		EnginePerformance *int `json:"enginePerformance,omitempty"`
		PumpPerformance   *int `json:"pumpPerformance,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.EnginePerformance == nil && req.PumpPerformance == nil {
		s.respondError(w, http.StatusBadRequest, "no performance values given")
		return
	}

	config, err := s.configs.UpdatePerformance(r.Context(), id, req.EnginePerformance, req.PumpPerformance)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, config)
}

func toProgramSettings(reqs []programSettingRequest) []models.ProgramSetting {
	settings := make([]models.ProgramSetting, 0, len(reqs))
	for _, req := range reqs {
		settings = append(settings, models.ProgramSetting{
			ProgramID:   req.ProgramID,
			CustomPrice: req.CustomPrice,
			IsEnabled:   req.IsEnabled,
		})
	}
	return settings
}
