package repository

import (
	"context"
	"time"

	"wellness-sync/domain/model"
)

// ListActivitiesParams bounds an athlete activity listing. Zero values are omitted.
type ListActivitiesParams struct {
	Before  int64 `url:"before,omitempty"`
	After   int64 `url:"after,omitempty"`
	Page    int   `url:"page,omitempty"`
	PerPage int   `url:"per_page,omitempty"`
}

// IStrava is the fitness provider API as seen by the use cases.
type IStrava interface {
	// OAuth
	AuthCodeURL(state, redirectURI string) string
	ExchangeCode(ctx context.Context, code, redirectURI string) (*model.TokenGrant, error)
	RefreshToken(ctx context.Context, refreshToken string) (*model.TokenGrant, error)

	// Athlete data
	ListActivities(ctx context.Context, accessToken string, params ListActivitiesParams) ([]model.StravaActivity, error)
	GetActivity(ctx context.Context, accessToken, activityID string) (*model.StravaActivity, error)
	GetSegment(ctx context.Context, accessToken, segmentID string) (*model.StravaSegment, error)

	// Push subscriptions (application credentials, no user token)
	ListSubscriptions(ctx context.Context) ([]model.Subscription, error)
	CreateSubscription(ctx context.Context, callbackURL, verifyToken string) (*model.Subscription, error)
	DeleteSubscription(ctx context.Context, id int64) error
}

// IRefreshLock serializes token refreshes for one key across processes.
type IRefreshLock interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
