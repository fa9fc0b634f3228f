package core

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/washbay-server/washbay-server-pro/internal/models"
)

func newTestSessionManager(t *testing.T) (*SessionManager, *mockStore, *recorderGateway, *fakeClock) {
	t.Helper()
	store := newMockStore()
	gateway := &recorderGateway{}
	clock := newFakeClock(time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC))

	manager := NewSessionManager(store, gateway)
	manager.now = clock.Now
	return manager, store, gateway, clock
}

func seedProgram(t *testing.T, store *mockStore, pricePerSecond string) *models.WashProgram {
	t.Helper()
	program := &models.WashProgram{
		Name:           "Foam wash",
		PricePerSecond: decimal.RequireFromString(pricePerSecond),
		IsActive:       true,
	}
	if err := store.CreateProgram(context.Background(), program); err != nil {
		t.Fatalf("seed program: %v", err)
	}
	return program
}

func TestStartSession(t *testing.T) {
	manager, store, gateway, _ := newTestSessionManager(t)
	device := seedDevice(store, models.RegistrationVerified)
	program := seedProgram(t, store, "0.25")

	session, err := manager.Start(context.Background(), device.ID, program.ID, nil)
	if err != nil {
		t.Fatalf("start: %v", err)
	}

	if session.Status != models.SessionActive {
		t.Errorf("session status = %s, want active", session.Status)
	}
	if session.ProgramID == nil || *session.ProgramID != program.ID {
		t.Error("session is not linked to the program")
	}
	if device.Status != models.DeviceStatusOnline {
		t.Errorf("device status = %s, want online", device.Status)
	}
	if device.LastSeen == nil {
		t.Error("device last seen was not stamped")
	}

	commands := store.logsOfType(device.ID, models.LogCommand)
	if len(commands) != 1 || !strings.Contains(commands[0].Message, program.Name) {
		t.Errorf("expected one command log naming the program, got %v", commands)
	}

	if gateway.count() != 1 {
		t.Errorf("published %d snapshots, want 1", gateway.count())
	}
	if snapshot, ok := gateway.last(); ok && snapshot.Status != "online" {
		t.Errorf("snapshot status = %s, want online", snapshot.Status)
	}
}

func TestStartUnverifiedDevice(t *testing.T) {
	manager, store, gateway, _ := newTestSessionManager(t)
	device := seedDevice(store, models.RegistrationPending)
	program := seedProgram(t, store, "0.25")

	_, err := manager.Start(context.Background(), device.ID, program.ID, nil)

	var unverified *UnverifiedDeviceError
	if !errors.As(err, &unverified) {
		t.Fatalf("expected UnverifiedDeviceError, got %v", err)
	}
	if unverified.DeviceID != device.DeviceID {
		t.Errorf("error device id = %s, want %s", unverified.DeviceID, device.DeviceID)
	}
	if gateway.count() != 0 {
		t.Error("no snapshot should be published on a rejected command")
	}
}

func TestStartConflictsWithOpenSession(t *testing.T) {
	manager, store, _, _ := newTestSessionManager(t)
	device := seedDevice(store, models.RegistrationVerified)
	program := seedProgram(t, store, "0.25")

	if _, err := manager.Start(context.Background(), device.ID, program.ID, nil); err != nil {
		t.Fatalf("first start: %v", err)
	}

	_, err := manager.Start(context.Background(), device.ID, program.ID, nil)
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestStartUnknownProgram(t *testing.T) {
	manager, store, _, _ := newTestSessionManager(t)
	device := seedDevice(store, models.RegistrationVerified)

	_, err := manager.Start(context.Background(), device.ID, uuid.New(), nil)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestStopChargesWholeSeconds(t *testing.T) {
	manager, store, _, clock := newTestSessionManager(t)
	device := seedDevice(store, models.RegistrationVerified)
	program := seedProgram(t, store, "0.50")

	if _, err := manager.Start(context.Background(), device.ID, program.ID, nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	// Fractional seconds are truncated before charging.
	clock.Advance(95*time.Second + 700*time.Millisecond)

	session, err := manager.Stop(context.Background(), device.ID)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}

	if session.Status != models.SessionCompleted {
		t.Errorf("session status = %s, want completed", session.Status)
	}
	if session.TotalDuration != 95 {
		t.Errorf("duration = %d, want 95", session.TotalDuration)
	}
	want := decimal.RequireFromString("47.50")
	if !session.AmountCharged.Equal(want) {
		t.Errorf("amount charged = %s, want %s", session.AmountCharged, want)
	}
	if session.EndedAt == nil {
		t.Error("ended at was not set")
	}
	if device.Status != models.DeviceStatusOffline {
		t.Errorf("device status = %s, want offline", device.Status)
	}
}

func TestBillingAccruesThroughPause(t *testing.T) {
	manager, store, _, clock := newTestSessionManager(t)
	device := seedDevice(store, models.RegistrationVerified)
	program := seedProgram(t, store, "1.00")

	if _, err := manager.Start(context.Background(), device.ID, program.ID, nil); err != nil {
		t.Fatalf("start: %v", err)
	}

	clock.Advance(10 * time.Second)
	if _, err := manager.Pause(context.Background(), device.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}

	clock.Advance(10 * time.Second)
	if _, err := manager.Resume(context.Background(), device.ID); err != nil {
		t.Fatalf("resume: %v", err)
	}

	clock.Advance(10 * time.Second)
	session, err := manager.Stop(context.Background(), device.ID)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}

	// Paused time is billable: 30 wall-clock seconds in total.
	if session.TotalDuration != 30 {
		t.Errorf("duration = %d, want 30", session.TotalDuration)
	}
	if !session.AmountCharged.Equal(decimal.RequireFromString("30")) {
		t.Errorf("amount charged = %s, want 30", session.AmountCharged)
	}
}

func TestStopReconcilesDuplicateSessions(t *testing.T) {
	manager, store, _, clock := newTestSessionManager(t)
	device := seedDevice(store, models.RegistrationVerified)
	program := seedProgram(t, store, "1.00")

	older := &models.DeviceSession{
		DeviceID:  device.ID,
		ProgramID: &program.ID,
		Status:    models.SessionActive,
		StartedAt: clock.Now().Add(-2 * time.Minute),
	}
	newer := &models.DeviceSession{
		DeviceID:  device.ID,
		ProgramID: &program.ID,
		Status:    models.SessionActive,
		StartedAt: clock.Now().Add(-time.Minute),
	}
	for _, session := range []*models.DeviceSession{older, newer} {
		if err := store.CreateSession(context.Background(), session); err != nil {
			t.Fatalf("seed session: %v", err)
		}
	}

	stopped, err := manager.Stop(context.Background(), device.ID)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}

	if stopped.ID != newer.ID {
		t.Error("most recent session should be the one stopped")
	}
	if stopped.Status != models.SessionCompleted {
		t.Errorf("stopped session status = %s, want completed", stopped.Status)
	}
	if older.Status != models.SessionCancelled {
		t.Errorf("stale session status = %s, want cancelled", older.Status)
	}
	if older.EndedAt == nil {
		t.Error("stale session ended at was not set")
	}

	warnings := store.logsOfType(device.ID, models.LogWarning)
	if len(warnings) != 1 {
		t.Fatalf("expected 1 warning log after reconciliation, got %d", len(warnings))
	}
	if !strings.Contains(warnings[0].Message, "Multiple active sessions") {
		t.Errorf("warning log message = %q", warnings[0].Message)
	}
}

func TestStopWithoutOpenSession(t *testing.T) {
	manager, store, _, _ := newTestSessionManager(t)
	device := seedDevice(store, models.RegistrationVerified)

	_, err := manager.Stop(context.Background(), device.ID)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestPauseRequiresActiveSession(t *testing.T) {
	manager, store, _, _ := newTestSessionManager(t)
	device := seedDevice(store, models.RegistrationVerified)
	program := seedProgram(t, store, "1.00")

	if _, err := manager.Start(context.Background(), device.ID, program.ID, nil); err != nil {
		t.Fatalf("start: %v", err)
	}
	if _, err := manager.Pause(context.Background(), device.ID); err != nil {
		t.Fatalf("pause: %v", err)
	}

	// Already paused: a second pause finds no active session.
	_, err := manager.Pause(context.Background(), device.ID)
	var notFound *NotFoundError
	if !errors.As(err, &notFound) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
}

func TestStopWithoutProgramChargesNothing(t *testing.T) {
	manager, store, _, clock := newTestSessionManager(t)
	device := seedDevice(store, models.RegistrationVerified)

	session := &models.DeviceSession{
		DeviceID:  device.ID,
		Status:    models.SessionActive,
		StartedAt: clock.Now(),
	}
	if err := store.CreateSession(context.Background(), session); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	clock.Advance(time.Minute)
	stopped, err := manager.Stop(context.Background(), device.ID)
	if err != nil {
		t.Fatalf("stop: %v", err)
	}

	if stopped.TotalDuration != 60 {
		t.Errorf("duration = %d, want 60", stopped.TotalDuration)
	}
	if !stopped.AmountCharged.IsZero() {
		t.Errorf("amount charged = %s, want 0", stopped.AmountCharged)
	}
}
