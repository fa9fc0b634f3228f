package api

import (
	"github.com/go-chi/chi/v5"
)

// setupAPIRoutes sets up API v1 routes
func (s *RESTServer) setupAPIRoutes(r chi.Router) {
	// Health check
	r.Get("/health", s.HandleHealth)
	r.Get("/", s.HandleRoot)

	// Auth routes (public)
	r.Route("/auth", func(r chi.Router) {
		r.Post("/login", s.HandleLogin)
		r.Post("/refresh", s.HandleRefresh)
	})

	// Device self-registration (public; devices hold no user tokens)
	r.Post("/devices/register", s.HandleRegisterDevice)

	// Protected routes
	r.Group(func(r chi.Router) {
		r.Use(s.authMiddleware)

		// Users
		r.Route("/users", func(r chi.Router) {
			r.Get("/me", s.HandleGetCurrentUser)
			r.With(s.requireOperator).Post("/", s.HandleCreateUser)
			r.Get("/{id}", s.HandleGetUser)
			r.With(s.requireOperator).Put("/{id}", s.HandleUpdateUser)
		})

		// Devices
		r.Route("/devices", func(r chi.Router) {
			r.Get("/", s.HandleListDevices)
			r.With(s.requireOperator).Post("/", s.HandleCreateDevice)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetDevice)
				r.With(s.requireOperator).Put("/", s.HandleUpdateDevice)
				r.With(s.requireOperator).Delete("/", s.HandleDeleteDevice)

				// Registration and backend interaction
				r.With(s.requireOperator).Post("/verify", s.HandleVerifyDevice)
				r.Get("/status", s.HandleCheckDeviceStatus)
				r.With(s.requireOperator).Post("/push-config", s.HandlePushConfiguration)

				// Session commands
				r.With(s.requireOperator).Post("/start", s.HandleStartSession)
				r.With(s.requireOperator).Post("/stop", s.HandleStopSession)
				r.With(s.requireOperator).Post("/pause", s.HandlePauseSession)
				r.With(s.requireOperator).Post("/resume", s.HandleResumeSession)

				// History
				r.Get("/logs", s.HandleListDeviceLogs)
				r.Get("/sessions", s.HandleListDeviceSessions)
				r.Get("/configuration", s.HandleGetDeviceConfiguration)

				// Real-time state relay
				r.Get("/ws", s.HandleDeviceStateSocket)
			})
		})

		// Wash programs
		r.Route("/programs", func(r chi.Router) {
			r.Get("/", s.HandleListPrograms)
			r.With(s.requireOperator).Post("/", s.HandleCreateProgram)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetProgram)
				r.With(s.requireOperator).Put("/", s.HandleUpdateProgram)
				r.With(s.requireOperator).Delete("/", s.HandleDeleteProgram)
			})
		})

		// Sessions
		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.HandleListSessions)
			r.Get("/{id}", s.HandleGetSession)
		})

		// Device configurations
		r.Route("/configurations", func(r chi.Router) {
			r.Get("/", s.HandleListConfigurations)
			r.With(s.requireOperator).Post("/", s.HandleCreateConfiguration)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetConfiguration)
				r.With(s.requireOperator).Put("/", s.HandleUpdateConfiguration)
				r.With(s.requireOperator).Delete("/", s.HandleDeleteConfiguration)
				r.With(s.requireOperator).Post("/apply-template", s.HandleApplyTemplate)
				r.With(s.requireOperator).Put("/performance", s.HandleUpdatePerformance)
			})
		})

		// Configuration templates
		r.Route("/templates", func(r chi.Router) {
			r.Get("/", s.HandleListTemplates)
			r.With(s.requireOperator).Post("/", s.HandleCreateTemplate)
			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", s.HandleGetTemplate)
				r.With(s.requireOperator).Put("/", s.HandleUpdateTemplate)
				r.With(s.requireOperator).Delete("/", s.HandleDeleteTemplate)
				r.With(s.requireOperator).Post("/apply", s.HandleApplyTemplateToDevices)
			})
		})

		// Template application audit trail
		r.Get("/template-applications", s.HandleListTemplateApplications)
	})
}
