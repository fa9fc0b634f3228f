package core

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/washbay-server/washbay-server-pro/internal/models"
	"github.com/washbay-server/washbay-server-pro/internal/storage"
)

const sweepPageSize = 100

// StatusSweeper periodically polls the backend for the reachability of
// every active verified device.
type StatusSweeper struct {
	store    storage.Store
	registry *DeviceRegistry
	schedule string
	cron     *cron.Cron
}

// NewStatusSweeper creates a status sweeper. The schedule uses cron
// syntax, e.g. "@every 60s".
func NewStatusSweeper(store storage.Store, registry *DeviceRegistry, schedule string) *StatusSweeper {
	return &StatusSweeper{
		store:    store,
		registry: registry,
		schedule: schedule,
	}
}

// Start schedules the sweep and returns immediately
func (s *StatusSweeper) Start() error {
	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.schedule, s.sweep); err != nil {
		return err
	}
	s.cron.Start()

	log.Info().Str("schedule", s.schedule).Msg("Status sweeper started")
	return nil
}

// Stop halts the schedule and waits for a running sweep to finish
func (s *StatusSweeper) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	log.Info().Msg("Status sweeper stopped")
}

func (s *StatusSweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	verified := models.RegistrationVerified
	active := true
	filters := storage.DeviceFilters{
		RegistrationStatus: &verified,
		IsActive:           &active,
	}

	checked := 0
	for offset := 0; ; offset += sweepPageSize {
		devices, _, err := s.store.ListDevices(ctx, filters, sweepPageSize, offset)
		if err != nil {
			log.Error().Err(err).Msg("Status sweep failed to list devices")
			return
		}
		if len(devices) == 0 {
			break
		}

		for _, device := range devices {
			if _, err := s.registry.CheckStatus(ctx, device.ID); err != nil {
				log.Warn().Err(err).
					Str("device_id", device.DeviceID).
					Msg("Status sweep check failed")
			}
			checked++
		}

		if len(devices) < sweepPageSize {
			break
		}
	}

	log.Debug().Int("devices", checked).Msg("Status sweep finished")
}
