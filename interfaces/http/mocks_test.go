package http_test

import (
	"context"

	"wellness-sync/domain/dto"
	"wellness-sync/domain/model"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/mock"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type MockIngestor struct {
	mock.Mock
}

func (m *MockIngestor) VerifyChallenge(mode, verifyToken string) bool {
	return m.Called(mode, verifyToken).Bool(0)
}

func (m *MockIngestor) HandleEvent(ctx context.Context, evt *model.WebhookEvent) (string, error) {
	args := m.Called(ctx, evt)
	return args.String(0), args.Error(1)
}

type MockFlow struct {
	mock.Mock
}

func (m *MockFlow) BuildAuthorizationURL(origin, returnURL string) (string, string) {
	args := m.Called(origin, returnURL)
	return args.String(0), args.String(1)
}

func (m *MockFlow) ExchangeCode(ctx context.Context, code, userID, origin string) (*model.StravaAthlete, error) {
	args := m.Called(ctx, code, userID, origin)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.StravaAthlete), args.Error(1)
}

func (m *MockFlow) DecodeState(state string) (*model.AuthorizationState, error) {
	args := m.Called(state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.AuthorizationState), args.Error(1)
}

type MockSubscriptions struct {
	mock.Mock
}

func (m *MockSubscriptions) CallbackURL(host string) string {
	return m.Called(host).String(0)
}

func (m *MockSubscriptions) View(ctx context.Context, host string) (*dto.SubscriptionView, error) {
	args := m.Called(ctx, host)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.SubscriptionView), args.Error(1)
}

func (m *MockSubscriptions) Create(ctx context.Context, host, verifyToken string) (*dto.SubscriptionResult, error) {
	args := m.Called(ctx, host, verifyToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.SubscriptionResult), args.Error(1)
}

func (m *MockSubscriptions) Delete(ctx context.Context) (*dto.SubscriptionResult, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.SubscriptionResult), args.Error(1)
}

func (m *MockSubscriptions) Validate(ctx context.Context, host, verifyToken string) (*dto.WebhookValidation, error) {
	args := m.Called(ctx, host, verifyToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.WebhookValidation), args.Error(1)
}

type MockBatchSync struct {
	mock.Mock
}

func (m *MockBatchSync) Run(ctx context.Context, stageID string) (*dto.StageSyncReport, error) {
	args := m.Called(ctx, stageID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.StageSyncReport), args.Error(1)
}

type MockActivitySync struct {
	mock.Mock
}

func (m *MockActivitySync) SyncUser(ctx context.Context, userID string) (*dto.UserSyncResult, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.UserSyncResult), args.Error(1)
}

func (m *MockActivitySync) Status(ctx context.Context, userID string) (*dto.ConnectionStatus, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.ConnectionStatus), args.Error(1)
}

type MockSegmentLookup struct {
	mock.Mock
}

func (m *MockSegmentLookup) GetSegment(ctx context.Context, userID, segmentID string) (*dto.SegmentInfo, error) {
	args := m.Called(ctx, userID, segmentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*dto.SegmentInfo), args.Error(1)
}
