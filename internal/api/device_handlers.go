package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/washbay-server/washbay-server-pro/internal/core"
	"github.com/washbay-server/washbay-server-pro/internal/models"
	"github.com/washbay-server/washbay-server-pro/internal/storage"
)

// ========== Device registration ==========

// HandleRegisterDevice handles device self-registration
func (s *RESTServer) HandleRegisterDevice(w http.ResponseWriter, r *http.Request) {
	var req core.RegisterInput
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	device, created, err := s.registry.RegisterOrUpdate(r.Context(), req)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	s.respondJSON(w, status, device)
}

// ========== Device CRUD ==========

// HandleListDevices lists devices
func (s *RESTServer) HandleListDevices(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	limit, offset := parsePaging(r)

	filters := storage.DeviceFilters{
		Search: r.URL.Query().Get("search"),
	}
	if v := r.URL.Query().Get("status"); v != "" {
		status := models.DeviceStatus(v)
		filters.Status = &status
	}
	if v := r.URL.Query().Get("registration_status"); v != "" {
		regStatus := models.RegistrationStatus(v)
		filters.RegistrationStatus = &regStatus
	}
	if v := r.URL.Query().Get("is_active"); v != "" {
		isActive := v == "true"
		filters.IsActive = &isActive
	}

	devices, total, err := s.store.ListDevices(ctx, filters, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"devices": s.deviceListView(r, devices),
		"total":   total,
	})
}

// HandleCreateDevice creates a device
func (s *RESTServer) HandleCreateDevice(w http.ResponseWriter, r *http.Request) {
	var req struct {
		DeviceID  string  `json:"deviceId" validate:"required,min=3,max=100"`
		Name      string  `json:"name" validate:"required,min=3,max=100"`
		Location  string  `json:"location"`
		IPAddress *string `json:"ipAddress,omitempty"`
		Port      *int    `json:"port,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	device := &models.Device{
		DeviceID:  req.DeviceID,
		Name:      req.Name,
		Location:  req.Location,
		IPAddress: req.IPAddress,
		Port:      req.Port,
		IsActive:  true,
	}

	if err := s.store.CreateDevice(r.Context(), device); err != nil {
		if err == storage.ErrDuplicateKey {
			s.respondError(w, http.StatusConflict, "device already exists")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusCreated, device)
}

// HandleGetDevice gets a device
func (s *RESTServer) HandleGetDevice(w http.ResponseWriter, r *http.Request) {
	device, ok := s.loadDevice(w, r)
	if !ok {
		return
	}
	s.respondJSON(w, http.StatusOK, s.deviceView(r, device))
}

// HandleUpdateDevice updates a device. Registration status may be set
// manually here, including the rejected state that is never assigned
// automatically.
func (s *RESTServer) HandleUpdateDevice(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	device, ok := s.loadDevice(w, r)
	if !ok {
		return
	}

	var req struct {
		Name               string  `json:"name"`
		Location           string  `json:"location"`
		IPAddress          *string `json:"ipAddress,omitempty"`
		Port               *int    `json:"port,omitempty"`
		Status             *string `json:"status,omitempty"`
		IsActive           *bool   `json:"isActive,omitempty"`
		RegistrationStatus *string `json:"registrationStatus,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name != "" {
		device.Name = req.Name
	}
	if req.Location != "" {
		device.Location = req.Location
	}
	if req.IPAddress != nil {
		device.IPAddress = req.IPAddress
	}
	if req.Port != nil {
		device.Port = req.Port
	}
	if req.IsActive != nil {
		device.IsActive = *req.IsActive
	}
	if req.Status != nil {
		switch status := models.DeviceStatus(*req.Status); status {
		case models.DeviceStatusOnline, models.DeviceStatusOffline,
			models.DeviceStatusMaintenance, models.DeviceStatusError,
			models.DeviceStatusDisabled:
			device.Status = status
		default:
			s.respondError(w, http.StatusBadRequest, "invalid device status")
			return
		}
	}
	if req.RegistrationStatus != nil {
		switch regStatus := models.RegistrationStatus(*req.RegistrationStatus); regStatus {
		case models.RegistrationPending, models.RegistrationVerified, models.RegistrationRejected:
			device.RegistrationStatus = regStatus
		default:
			s.respondError(w, http.StatusBadRequest, "invalid registration status")
			return
		}
	}

	if err := s.store.UpdateDevice(ctx, device); err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, device)
}

// HandleDeleteDevice deletes a device
func (s *RESTServer) HandleDeleteDevice(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	if err := s.store.DeleteDevice(r.Context(), id); err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "device not found")
			return
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

// ========== Backend interaction ==========

// HandleVerifyDevice runs the verification handshake
func (s *RESTServer) HandleVerifyDevice(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	result, err := s.registry.Verify(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, result)
}

// HandleCheckDeviceStatus polls the backend for device reachability
func (s *RESTServer) HandleCheckDeviceStatus(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	device, err := s.registry.CheckStatus(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"status":   device.Status,
		"lastSeen": device.LastSeen,
	})
}

// HandlePushConfiguration pushes the device configuration to the backend
func (s *RESTServer) HandlePushConfiguration(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	accepted, message, err := s.registry.PushConfiguration(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"accepted": accepted,
		"message":  message,
	})
}

// ========== Session commands ==========

// HandleStartSession starts a session on a device
func (s *RESTServer) HandleStartSession(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	var req struct {
		ProgramID  uuid.UUID `json:"programId" validate:"required"`
		ClientCard *string   `json:"clientCard,omitempty"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.validator.Validate(req); err != nil {
		s.respondError(w, http.StatusBadRequest, err.Error())
		return
	}

	session, err := s.sessions.Start(r.Context(), id, req.ProgramID, req.ClientCard)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	s.respondJSON(w, http.StatusCreated, session)
}

// HandleStopSession stops the open session on a device
func (s *RESTServer) HandleStopSession(w http.ResponseWriter, r *http.Request) {
	s.handleSessionCommand(w, r, s.sessions.Stop)
}

// HandlePauseSession pauses the active session on a device
func (s *RESTServer) HandlePauseSession(w http.ResponseWriter, r *http.Request) {
	s.handleSessionCommand(w, r, s.sessions.Pause)
}

// HandleResumeSession resumes the paused session on a device
func (s *RESTServer) HandleResumeSession(w http.ResponseWriter, r *http.Request) {
	s.handleSessionCommand(w, r, s.sessions.Resume)
}

func (s *RESTServer) handleSessionCommand(w http.ResponseWriter, r *http.Request, command func(ctx context.Context, deviceID uuid.UUID) (*models.DeviceSession, error)) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	session, err := command(r.Context(), id)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	s.respondJSON(w, http.StatusOK, session)
}

// ========== Device history ==========

// HandleListDeviceLogs lists a device's log entries
func (s *RESTServer) HandleListDeviceLogs(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	limit, offset := parsePaging(r)

	filters := storage.LogFilters{DeviceID: &id}
	if v := r.URL.Query().Get("log_type"); v != "" {
		logType := models.LogType(v)
		filters.LogType = &logType
	}

	logs, total, err := s.store.ListDeviceLogs(r.Context(), filters, limit, offset)
	if err != nil {
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return
	}

	s.respondJSON(w, http.StatusOK, map[string]interface{}{
		"logs":  logs,
		"total": total,
	})
}

// HandleListDeviceSessions lists a device's sessions
func (s *RESTServer) HandleListDeviceSessions(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid device id")
		return
	}

	limit, offset := parsePaging(r)

	filters := storage.SessionFilters{DeviceID: &id}
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

// HandleGetDeviceConfiguration returns the device's configuration,
// creating a default one when missing
func (s *RESTServer) HandleGetDeviceConfiguration(w http.ResponseWriter, r *http.Request) {
	device, ok := s.loadDevice(w, r)
	if !ok {
		return
	}

	config, created, err := s.configs.GetOrCreateDefault(r.Context(), device)
	if err != nil {
		s.respondDomainError(w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	s.respondJSON(w, status, config)
}

func (s *RESTServer) loadDevice(w http.ResponseWriter, r *http.Request) (*models.Device, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		s.respondError(w, http.StatusBadRequest, "invalid device id")
		return nil, false
	}

	device, err := s.store.GetDevice(r.Context(), id)
	if err != nil {
		if err == storage.ErrNotFound {
			s.respondError(w, http.StatusNotFound, "device not found")
			return nil, false
		}
		s.respondError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}

	return device, true
}
