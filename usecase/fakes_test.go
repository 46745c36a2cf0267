package usecase_test

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"sync"
	"time"

	"wellness-sync/domain/apperror"
	"wellness-sync/domain/model"
	"wellness-sync/domain/repository"
	"wellness-sync/infrastructure/configuration"

	"github.com/stretchr/testify/mock"
)

var errNotImplemented = errors.New("not implemented")

func testConfig() *configuration.Config {
	return &configuration.Config{
		App: configuration.App{
			PublicURL:      "https://api.example.com",
			AllowedOrigins: []string{"https://app.example.com"},
			Timezone:       "UTC",
		},
		Strava: configuration.Strava{
			ClientID:           "123",
			ClientSecret:       "secret",
			WebhookVerifyToken: "verify-me",
			CallbackPath:       "/strava/callback",
			WebhookPath:        "/webhook",
		},
		Sync: configuration.Sync{
			Concurrency:      5,
			LookbackDays:     60,
			PageSize:         100,
			MaxPages:         10,
			MaxDetailFetches: 80,
			RefreshLockTTL:   time.Second,
		},
	}
}

// fakeStrava routes each call to an optional func field.
type fakeStrava struct {
	authCodeURL     func(state, redirectURI string) string
	exchangeCode    func(ctx context.Context, code, redirectURI string) (*model.TokenGrant, error)
	refreshToken    func(ctx context.Context, refreshToken string) (*model.TokenGrant, error)
	listActivities  func(ctx context.Context, accessToken string, p repository.ListActivitiesParams) ([]model.StravaActivity, error)
	getActivity     func(ctx context.Context, accessToken, id string) (*model.StravaActivity, error)
	getSegment      func(ctx context.Context, accessToken, id string) (*model.StravaSegment, error)
	listSubs        func(ctx context.Context) ([]model.Subscription, error)
	createSub       func(ctx context.Context, callbackURL, verifyToken string) (*model.Subscription, error)
	deleteSub       func(ctx context.Context, id int64) error
	refreshCalls    int
	refreshCallsMu  sync.Mutex
	activityFetches int
}

func (f *fakeStrava) AuthCodeURL(state, redirectURI string) string {
	if f.authCodeURL == nil {
		return ""
	}
	return f.authCodeURL(state, redirectURI)
}

func (f *fakeStrava) ExchangeCode(ctx context.Context, code, redirectURI string) (*model.TokenGrant, error) {
	if f.exchangeCode == nil {
		return nil, errNotImplemented
	}
	return f.exchangeCode(ctx, code, redirectURI)
}

func (f *fakeStrava) RefreshToken(ctx context.Context, refreshToken string) (*model.TokenGrant, error) {
	f.refreshCallsMu.Lock()
	f.refreshCalls++
	f.refreshCallsMu.Unlock()
	if f.refreshToken == nil {
		return nil, errNotImplemented
	}
	return f.refreshToken(ctx, refreshToken)
}

func (f *fakeStrava) RefreshCalls() int {
	f.refreshCallsMu.Lock()
	defer f.refreshCallsMu.Unlock()
	return f.refreshCalls
}

func (f *fakeStrava) ListActivities(ctx context.Context, accessToken string, p repository.ListActivitiesParams) ([]model.StravaActivity, error) {
	if f.listActivities == nil {
		return nil, errNotImplemented
	}
	return f.listActivities(ctx, accessToken, p)
}

func (f *fakeStrava) GetActivity(ctx context.Context, accessToken, id string) (*model.StravaActivity, error) {
	f.refreshCallsMu.Lock()
	f.activityFetches++
	f.refreshCallsMu.Unlock()
	if f.getActivity == nil {
		return nil, errNotImplemented
	}
	return f.getActivity(ctx, accessToken, id)
}

func (f *fakeStrava) GetSegment(ctx context.Context, accessToken, id string) (*model.StravaSegment, error) {
	if f.getSegment == nil {
		return nil, errNotImplemented
	}
	return f.getSegment(ctx, accessToken, id)
}

func (f *fakeStrava) ListSubscriptions(ctx context.Context) ([]model.Subscription, error) {
	if f.listSubs == nil {
		return nil, nil
	}
	return f.listSubs(ctx)
}

func (f *fakeStrava) CreateSubscription(ctx context.Context, callbackURL, verifyToken string) (*model.Subscription, error) {
	if f.createSub == nil {
		return nil, errNotImplemented
	}
	return f.createSub(ctx, callbackURL, verifyToken)
}

func (f *fakeStrava) DeleteSubscription(ctx context.Context, id int64) error {
	if f.deleteSub == nil {
		return errNotImplemented
	}
	return f.deleteSub(ctx, id)
}

type memorySecretStore struct {
	mu    sync.Mutex
	creds map[string]model.OAuthCredential
	saves int
}

func newMemorySecretStore() *memorySecretStore {
	return &memorySecretStore{creds: make(map[string]model.OAuthCredential)}
}

func (s *memorySecretStore) GetCredential(_ context.Context, userID, platform string) (*model.OAuthCredential, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.creds[userID+":"+platform]
	if !ok {
		return nil, apperror.NotFound("memory.Get", "no credential")
	}
	return &c, nil
}

// Writes honour ctx like database/sql ExecContext does.
func (s *memorySecretStore) SaveCredential(ctx context.Context, c *model.OAuthCredential) error {
	if err := ctx.Err(); err != nil {
		return apperror.Persistence("memory.Save", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saves++
	s.creds[c.UserID+":"+c.Platform] = *c
	return nil
}

func (s *memorySecretStore) UpdateCredential(ctx context.Context, c *model.OAuthCredential) error {
	if err := ctx.Err(); err != nil {
		return apperror.Persistence("memory.Update", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := c.UserID + ":" + c.Platform
	if _, ok := s.creds[key]; !ok {
		return apperror.NotFound("memory.Update", "no credential")
	}
	s.saves++
	s.creds[key] = *c
	return nil
}

func (s *memorySecretStore) DeleteCredential(_ context.Context, userID, platform string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.creds, userID+":"+platform)
	return nil
}

func (s *memorySecretStore) put(userID, access, refresh string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.creds[userID+":"+model.PlatformStrava] = model.OAuthCredential{
		UserID: userID, Platform: model.PlatformStrava, AccessToken: access, RefreshToken: refresh, ExpiresAt: expiresAt,
	}
}

type memoryConnections struct {
	mu    sync.Mutex
	conns map[string]model.DeviceConnection
}

func newMemoryConnections(conns ...model.DeviceConnection) *memoryConnections {
	m := &memoryConnections{conns: make(map[string]model.DeviceConnection)}
	for _, c := range conns {
		m.conns[c.UserID+":"+c.Platform] = c
	}
	return m
}

func (m *memoryConnections) UpsertConnection(_ context.Context, c *model.DeviceConnection) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.conns[c.UserID+":"+c.Platform] = *c
	return nil
}

func (m *memoryConnections) GetConnection(_ context.Context, userID, platform string) (*model.DeviceConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.conns[userID+":"+platform]
	if !ok {
		return nil, apperror.NotFound("memory.GetConnection", "none")
	}
	return &c, nil
}

func (m *memoryConnections) ResolveUserByProviderID(_ context.Context, platform, providerUserID string) (*model.DeviceConnection, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.conns {
		if c.Platform == platform && c.ProviderUserID == providerUserID && c.IsActive {
			c := c
			return &c, nil
		}
	}
	return nil, apperror.NotFound("memory.Resolve", "none")
}

func (m *memoryConnections) Deactivate(_ context.Context, userID, platform string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.conns[userID+":"+platform]; ok {
		c.IsActive = false
		m.conns[userID+":"+platform] = c
	}
	return nil
}

type memoryWorkouts struct {
	mu     sync.Mutex
	rows   map[string]model.WorkoutMetric
	nextID int64
	latest *time.Time
}

func newMemoryWorkouts() *memoryWorkouts {
	return &memoryWorkouts{rows: make(map[string]model.WorkoutMetric)}
}

func (m *memoryWorkouts) UpsertWorkoutMetric(_ context.Context, w *model.WorkoutMetric) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := w.SourcePlatform + ":" + w.ExternalID
	if existing, ok := m.rows[key]; ok {
		w.ID = existing.ID
	} else {
		m.nextID++
		w.ID = m.nextID
	}
	m.rows[key] = *w
	return nil
}

func (m *memoryWorkouts) DeleteWorkoutMetric(_ context.Context, platform, externalID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.rows, platform+":"+externalID)
	return nil
}

func (m *memoryWorkouts) LatestStartTime(_ context.Context, _, _ string) (*time.Time, error) {
	return m.latest, nil
}

func (m *memoryWorkouts) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *memoryWorkouts) get(externalID string) (model.WorkoutMetric, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.rows[model.PlatformStrava+":"+externalID]
	return w, ok
}

type memoryResults struct {
	mu       sync.Mutex
	stage    map[string]model.StageResult
	segments map[string]model.SegmentResult
	nextID   int64
}

func newMemoryResults() *memoryResults {
	return &memoryResults{stage: make(map[string]model.StageResult), segments: make(map[string]model.SegmentResult)}
}

func (m *memoryResults) UpsertStageResult(_ context.Context, r *model.StageResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := r.StageID + ":" + r.UserID
	if existing, ok := m.stage[key]; ok {
		r.ID = existing.ID
	} else {
		m.nextID++
		r.ID = m.nextID
	}
	m.stage[key] = *r
	return nil
}

func (m *memoryResults) UpsertSegmentResult(_ context.Context, r *model.SegmentResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := r.SegmentID + ":" + r.UserID
	if existing, ok := m.segments[key]; ok {
		r.ID = existing.ID
	} else {
		m.nextID++
		r.ID = m.nextID
	}
	r.Position, r.PointsEarned = nil, 0
	m.segments[key] = *r
	return nil
}

func (m *memoryResults) ListSegmentResults(_ context.Context, segmentID string) ([]model.SegmentResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.SegmentResult
	for _, r := range m.segments {
		if r.SegmentID == segmentID {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ElapsedTimeSeconds < out[j].ElapsedTimeSeconds })
	return out, nil
}

func (m *memoryResults) UpdateSegmentPlacement(_ context.Context, id int64, position, points int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, r := range m.segments {
		if r.ID == id {
			p := position
			r.Position, r.PointsEarned = &p, points
			m.segments[k] = r
		}
	}
	return nil
}

func (m *memoryResults) SumSegmentPoints(_ context.Context, stageID string) (map[string]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	totals := make(map[string]int)
	for _, r := range m.segments {
		if r.StageID == stageID {
			totals[r.UserID] += r.PointsEarned
		}
	}
	return totals, nil
}

func (m *memoryResults) SetMountainPoints(_ context.Context, stageID, userID string, points int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := stageID + ":" + userID
	if r, ok := m.stage[key]; ok {
		r.MountainPoints = points
		m.stage[key] = r
	}
	return nil
}

func (m *memoryResults) result(stageID, userID string) (model.StageResult, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	r, ok := m.stage[stageID+":"+userID]
	return r, ok
}

type fakeStages struct {
	stages       map[string]model.EventStage
	segments     map[string][]model.StageSegment
	participants map[string][]string
}

func (f *fakeStages) GetStage(_ context.Context, stageID string) (*model.EventStage, error) {
	s, ok := f.stages[stageID]
	if !ok {
		return nil, apperror.NotFound("fake.GetStage", "stage not found")
	}
	return &s, nil
}

func (f *fakeStages) ListStagesByDate(_ context.Context, date string) ([]model.EventStage, error) {
	var out []model.EventStage
	for _, s := range f.stages {
		if s.Date.Format(model.DateLayout) == date {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStages) ListStageSegments(_ context.Context, stageID string) ([]model.StageSegment, error) {
	return f.segments[stageID], nil
}

func (f *fakeStages) ListParticipants(_ context.Context, eventID string) ([]string, error) {
	return f.participants[eventID], nil
}

func (f *fakeStages) IsParticipant(_ context.Context, eventID, userID string) (bool, error) {
	for _, id := range f.participants[eventID] {
		if id == userID {
			return true, nil
		}
	}
	return false, nil
}

type MockLeaderboard struct {
	mock.Mock
}

func (m *MockLeaderboard) TriggerRecalculation(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Notify(ctx context.Context, n *model.Notification) error {
	args := m.Called(ctx, n)
	return args.Error(0)
}

type MockEventLog struct {
	mock.Mock
}

func (m *MockEventLog) Record(ctx context.Context, evt *model.WebhookEvent, outcome string) error {
	args := m.Called(ctx, evt, outcome)
	return args.Error(0)
}

type MockSecretStore struct {
	mock.Mock
}

func (m *MockSecretStore) GetCredential(ctx context.Context, userID, platform string) (*model.OAuthCredential, error) {
	args := m.Called(ctx, userID, platform)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.OAuthCredential), args.Error(1)
}

func (m *MockSecretStore) SaveCredential(ctx context.Context, c *model.OAuthCredential) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockSecretStore) UpdateCredential(ctx context.Context, c *model.OAuthCredential) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockSecretStore) DeleteCredential(ctx context.Context, userID, platform string) error {
	args := m.Called(ctx, userID, platform)
	return args.Error(0)
}

func activity(id int64, start time.Time, distance float64, segmentIDs ...int64) *model.StravaActivity {
	a := &model.StravaActivity{
		ID:          id,
		Name:        "Activity " + strconv.FormatInt(id, 10),
		Type:        "Ride",
		StartDate:   start,
		MovingTime:  3000,
		ElapsedTime: 3600,
		Distance:    &distance,
	}
	for i, sid := range segmentIDs {
		a.SegmentEfforts = append(a.SegmentEfforts, model.StravaSegmentEffort{
			ID:          id*100 + int64(i),
			ElapsedTime: 300 + i*10,
			StartDate:   start.Add(time.Duration(i+1) * 10 * time.Minute),
			Segment:     model.StravaSegmentRef{ID: sid},
		})
	}
	return a
}
