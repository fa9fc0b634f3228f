package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/washbay-server/washbay-server-pro/internal/models"
	"github.com/washbay-server/washbay-server-pro/internal/storage"
)

// mockStore is an in-memory storage.Store for tests. BeginTx returns
// the store itself; commit and rollback are counters.
type mockStore struct {
	mu sync.Mutex

	devices         map[uuid.UUID]*models.Device
	programs        map[uuid.UUID]*models.WashProgram
	configs         map[uuid.UUID]*models.DeviceConfiguration
	sessions        map[uuid.UUID]*models.DeviceSession
	logs            []*models.DeviceLog
	templates       map[uuid.UUID]*models.ConfigurationTemplate
	applications    []*models.TemplateApplication
	users           map[uuid.UUID]*models.User
	programSettings map[uuid.UUID][]models.ProgramSetting

	commits   int
	rollbacks int

	failUpdateDevice map[uuid.UUID]error
}

func newMockStore() *mockStore {
	return &mockStore{
		devices:          make(map[uuid.UUID]*models.Device),
		programs:         make(map[uuid.UUID]*models.WashProgram),
		configs:          make(map[uuid.UUID]*models.DeviceConfiguration),
		sessions:         make(map[uuid.UUID]*models.DeviceSession),
		templates:        make(map[uuid.UUID]*models.ConfigurationTemplate),
		users:            make(map[uuid.UUID]*models.User),
		programSettings:  make(map[uuid.UUID][]models.ProgramSetting),
		failUpdateDevice: make(map[uuid.UUID]error),
	}
}

func (s *mockStore) BeginTx(ctx context.Context) (storage.Store, error) { return s, nil }

func (s *mockStore) Commit() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
	return nil
}

func (s *mockStore) Rollback() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rollbacks++
	return nil
}

func (s *mockStore) Close() error { return nil }

// ===== Devices =====

func (s *mockStore) CreateDevice(ctx context.Context, device *models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if device.ID == uuid.Nil {
		device.ID = uuid.New()
	}
	for _, existing := range s.devices {
		if existing.DeviceID == device.DeviceID {
			return storage.ErrDuplicateKey
		}
	}
	if device.Status == "" {
		device.Status = models.DeviceStatusOffline
	}
	if device.RegistrationStatus == "" {
		device.RegistrationStatus = models.RegistrationPending
	}
	device.CreatedAt = time.Now()
	device.UpdatedAt = device.CreatedAt
	s.devices[device.ID] = device
	return nil
}

func (s *mockStore) GetDevice(ctx context.Context, id uuid.UUID) (*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	device, ok := s.devices[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return device, nil
}

func (s *mockStore) GetDeviceByDeviceID(ctx context.Context, deviceID string) (*models.Device, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, device := range s.devices {
		if device.DeviceID == deviceID {
			return device, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *mockStore) UpdateDevice(ctx context.Context, device *models.Device) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err, ok := s.failUpdateDevice[device.ID]; ok {
		return err
	}
	if _, ok := s.devices[device.ID]; !ok {
		return storage.ErrNotFound
	}
	device.UpdatedAt = time.Now()
	s.devices[device.ID] = device
	return nil
}

func (s *mockStore) DeleteDevice(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.devices[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.devices, id)
	return nil
}

func (s *mockStore) ListDevices(ctx context.Context, filters storage.DeviceFilters, limit, offset int) ([]*models.Device, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var devices []*models.Device
	for _, device := range s.devices {
		if filters.RegistrationStatus != nil && device.RegistrationStatus != *filters.RegistrationStatus {
			continue
		}
		if filters.IsActive != nil && device.IsActive != *filters.IsActive {
			continue
		}
		if filters.Status != nil && device.Status != *filters.Status {
			continue
		}
		devices = append(devices, device)
	}
	total := int64(len(devices))
	if offset >= len(devices) {
		return nil, total, nil
	}
	end := offset + limit
	if end > len(devices) {
		end = len(devices)
	}
	return devices[offset:end], total, nil
}

// ===== Programs =====

func (s *mockStore) CreateProgram(ctx context.Context, program *models.WashProgram) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if program.ID == uuid.Nil {
		program.ID = uuid.New()
	}
	s.programs[program.ID] = program
	return nil
}

func (s *mockStore) GetProgram(ctx context.Context, id uuid.UUID) (*models.WashProgram, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	program, ok := s.programs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return program, nil
}

func (s *mockStore) UpdateProgram(ctx context.Context, program *models.WashProgram) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.programs[program.ID]; !ok {
		return storage.ErrNotFound
	}
	s.programs[program.ID] = program
	return nil
}

func (s *mockStore) DeleteProgram(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.programs[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.programs, id)
	return nil
}

func (s *mockStore) ListPrograms(ctx context.Context, activeOnly bool, limit, offset int) ([]*models.WashProgram, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var programs []*models.WashProgram
	for _, program := range s.programs {
		if activeOnly && !program.IsActive {
			continue
		}
		programs = append(programs, program)
	}
	return programs, int64(len(programs)), nil
}

// ===== Configurations =====

func (s *mockStore) CreateConfiguration(ctx context.Context, config *models.DeviceConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if config.ID == uuid.Nil {
		config.ID = uuid.New()
	}
	s.configs[config.ID] = config
	if len(config.ProgramSettings) > 0 {
		s.programSettings[config.ID] = config.ProgramSettings
	}
	return nil
}

func (s *mockStore) GetConfiguration(ctx context.Context, id uuid.UUID) (*models.DeviceConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	config, ok := s.configs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	config.ProgramSettings = s.programSettings[config.ID]
	return config, nil
}

func (s *mockStore) GetConfigurationByDevice(ctx context.Context, deviceID uuid.UUID) (*models.DeviceConfiguration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, config := range s.configs {
		if config.DeviceID != nil && *config.DeviceID == deviceID {
			config.ProgramSettings = s.programSettings[config.ID]
			return config, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *mockStore) UpdateConfiguration(ctx context.Context, config *models.DeviceConfiguration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[config.ID]; !ok {
		return storage.ErrNotFound
	}
	s.configs[config.ID] = config
	return nil
}

func (s *mockStore) DeleteConfiguration(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.configs, id)
	return nil
}

func (s *mockStore) ListConfigurations(ctx context.Context, templates bool, limit, offset int) ([]*models.DeviceConfiguration, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var configs []*models.DeviceConfiguration
	for _, config := range s.configs {
		if config.IsTemplate == templates {
			configs = append(configs, config)
		}
	}
	return configs, int64(len(configs)), nil
}

func (s *mockStore) GetProgramSettings(ctx context.Context, configID uuid.UUID) ([]models.ProgramSetting, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.programSettings[configID], nil
}

func (s *mockStore) ReplaceProgramSettings(ctx context.Context, configID uuid.UUID, settings []models.ProgramSetting) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.programSettings[configID] = settings
	return nil
}

// ===== Sessions =====

func (s *mockStore) CreateSession(ctx context.Context, session *models.DeviceSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if session.ID == uuid.Nil {
		session.ID = uuid.New()
	}
	if session.StartedAt.IsZero() {
		session.StartedAt = time.Now()
	}
	if session.Status == "" {
		session.Status = models.SessionActive
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *mockStore) GetSession(ctx context.Context, id uuid.UUID) (*models.DeviceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return session, nil
}

func (s *mockStore) UpdateSession(ctx context.Context, session *models.DeviceSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return storage.ErrNotFound
	}
	s.sessions[session.ID] = session
	return nil
}

func (s *mockStore) ListDeviceSessionsByStatus(ctx context.Context, deviceID uuid.UUID, statuses ...models.SessionStatus) ([]*models.DeviceSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sessions []*models.DeviceSession
	for _, session := range s.sessions {
		if session.DeviceID != deviceID {
			continue
		}
		for _, status := range statuses {
			if session.Status == status {
				sessions = append(sessions, session)
				break
			}
		}
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].StartedAt.After(sessions[j].StartedAt)
	})
	return sessions, nil
}

func (s *mockStore) ListSessions(ctx context.Context, filters storage.SessionFilters, limit, offset int) ([]*models.DeviceSession, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var sessions []*models.DeviceSession
	for _, session := range s.sessions {
		if filters.DeviceID != nil && session.DeviceID != *filters.DeviceID {
			continue
		}
		if filters.Status != nil && session.Status != *filters.Status {
			continue
		}
		sessions = append(sessions, session)
	}
	return sessions, int64(len(sessions)), nil
}

// ===== Device logs =====

func (s *mockStore) CreateDeviceLog(ctx context.Context, entry *models.DeviceLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}
	s.logs = append(s.logs, entry)
	return nil
}

func (s *mockStore) ListDeviceLogs(ctx context.Context, filters storage.LogFilters, limit, offset int) ([]*models.DeviceLog, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []*models.DeviceLog
	for _, entry := range s.logs {
		if filters.DeviceID != nil && entry.DeviceID != *filters.DeviceID {
			continue
		}
		if filters.LogType != nil && entry.LogType != *filters.LogType {
			continue
		}
		entries = append(entries, entry)
	}
	return entries, int64(len(entries)), nil
}

func (s *mockStore) logsOfType(deviceID uuid.UUID, logType models.LogType) []*models.DeviceLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	var entries []*models.DeviceLog
	for _, entry := range s.logs {
		if entry.DeviceID == deviceID && entry.LogType == logType {
			entries = append(entries, entry)
		}
	}
	return entries
}

// ===== Templates =====

func (s *mockStore) CreateTemplate(ctx context.Context, template *models.ConfigurationTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if template.ID == uuid.Nil {
		template.ID = uuid.New()
	}
	s.templates[template.ID] = template
	return nil
}

func (s *mockStore) GetTemplate(ctx context.Context, id uuid.UUID) (*models.ConfigurationTemplate, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	template, ok := s.templates[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return template, nil
}

func (s *mockStore) UpdateTemplate(ctx context.Context, template *models.ConfigurationTemplate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[template.ID]; !ok {
		return storage.ErrNotFound
	}
	s.templates[template.ID] = template
	return nil
}

func (s *mockStore) DeleteTemplate(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.templates[id]; !ok {
		return storage.ErrNotFound
	}
	delete(s.templates, id)
	return nil
}

func (s *mockStore) ListTemplates(ctx context.Context, limit, offset int) ([]*models.ConfigurationTemplate, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var templates []*models.ConfigurationTemplate
	for _, template := range s.templates {
		templates = append(templates, template)
	}
	return templates, int64(len(templates)), nil
}

func (s *mockStore) CreateTemplateApplication(ctx context.Context, application *models.TemplateApplication) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if application.ID == uuid.Nil {
		application.ID = uuid.New()
	}
	s.applications = append(s.applications, application)
	return nil
}

func (s *mockStore) ListTemplateApplications(ctx context.Context, filters storage.ApplicationFilters, limit, offset int) ([]*models.TemplateApplication, int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var applications []*models.TemplateApplication
	for _, application := range s.applications {
		if filters.DeviceID != nil && application.DeviceID != *filters.DeviceID {
			continue
		}
		if filters.Status != nil && application.Status != *filters.Status {
			continue
		}
		applications = append(applications, application)
	}
	return applications, int64(len(applications)), nil
}

// ===== Users =====

func (s *mockStore) CreateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	s.users[user.ID] = user
	return nil
}

func (s *mockStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return user, nil
}

func (s *mockStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (s *mockStore) UpdateUser(ctx context.Context, user *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; !ok {
		return storage.ErrNotFound
	}
	s.users[user.ID] = user
	return nil
}

// recorderGateway captures published snapshots
type recorderGateway struct {
	mu        sync.Mutex
	published []Snapshot
}

func (g *recorderGateway) Publish(deviceID uuid.UUID, snapshot Snapshot) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.published = append(g.published, snapshot)
}

func (g *recorderGateway) count() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.published)
}

func (g *recorderGateway) last() (Snapshot, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.published) == 0 {
		return Snapshot{}, false
	}
	return g.published[len(g.published)-1], true
}

// fakeBackend scripts backend responses
type fakeBackend struct {
	mu sync.Mutex

	verifyOK  bool
	verifyMsg string
	verifyErr error

	configOK  bool
	configMsg string
	configErr error

	online    bool
	statusErr error

	lastVerify *VerifyRequest
}

func (b *fakeBackend) Verify(ctx context.Context, req VerifyRequest) (bool, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.lastVerify = &req
	return b.verifyOK, b.verifyMsg, b.verifyErr
}

func (b *fakeBackend) SendConfiguration(ctx context.Context, deviceID string, configuration models.Variables) (bool, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.configOK, b.configMsg, b.configErr
}

func (b *fakeBackend) CheckStatus(ctx context.Context, deviceID string) (bool, string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	status := "offline"
	if b.online {
		status = "online"
	}
	return b.online, status, b.statusErr
}

// fakeClock is a controllable time source
type fakeClock struct {
	mu  sync.Mutex
	cur time.Time
}

func newFakeClock(start time.Time) *fakeClock {
	return &fakeClock{cur: start}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cur
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cur = c.cur.Add(d)
}

func seedDevice(s *mockStore, registrationStatus models.RegistrationStatus) *models.Device {
	device := &models.Device{
		DeviceID:           fmt.Sprintf("BAY-%s", uuid.New().String()[:8]),
		Name:               "Bay 1",
		Location:           "North lot",
		Status:             models.DeviceStatusOffline,
		IsActive:           true,
		RegistrationStatus: registrationStatus,
	}
	if err := s.CreateDevice(context.Background(), device); err != nil {
		panic(err)
	}
	return device
}
