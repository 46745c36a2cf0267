package dto

import (
	"time"

	"wellness-sync/domain/model"
)

// Res is the generic error envelope used by middleware.
type Res struct {
	ResponseCode    string `json:"responseCode"`
	ResponseMessage string `json:"responseMessage"`
}

const AuthRequestAuthorizeURL = "authorize_url"

// StravaAuthRequest covers both the authorize_url request and the code exchange.
type StravaAuthRequest struct {
	Type      string `json:"type,omitempty"`
	ReturnURL string `json:"return_url,omitempty"`
	Code      string `json:"code,omitempty"`
	State     string `json:"state,omitempty"`
}

type AuthorizeURLResponse struct {
	URL string `json:"url"`
}

type ExchangeResponse struct {
	Success   bool                 `json:"success"`
	Athlete   *model.StravaAthlete `json:"athlete"`
	ReturnURL string               `json:"return_url,omitempty"`
}

type ConnectionStatus struct {
	Connected bool       `json:"connected"`
	Active    bool       `json:"active"`
	AthleteID string     `json:"athlete_id,omitempty"`
	ExpiresAt *time.Time `json:"expires_at,omitempty"`
}

// WebhookAdminRequest drives the subscription administration endpoint.
type WebhookAdminRequest struct {
	Action      string `json:"action" binding:"required"`
	VerifyToken string `json:"verify_token,omitempty"`
}

type StravaConfigView struct {
	ClientIDSet        bool   `json:"client_id_set"`
	VerifyTokenSet     bool   `json:"verify_token_set"`
	DerivedCallbackURL string `json:"derived_callback_url"`
}

type SubscriptionView struct {
	StravaConfig         StravaConfigView     `json:"strava_config"`
	CurrentSubscriptions []model.Subscription `json:"current_subscriptions"`
}

type SubscriptionResult struct {
	Success      bool                `json:"success"`
	Message      string              `json:"message,omitempty"`
	Subscription *model.Subscription `json:"subscription,omitempty"`
	Current      *model.Subscription `json:"current,omitempty"`
}

type WebhookValidation struct {
	Success   bool   `json:"success"`
	Status    int    `json:"status"`
	Response  string `json:"response"`
	URLUsed   string `json:"url_used"`
	TokenUsed string `json:"token_used"`
}

const (
	ParticipantSaved   = "saved"
	ParticipantSkipped = "skipped"
	ParticipantFailed  = "failed"
)

type ParticipantOutcome struct {
	UserID  string `json:"user_id"`
	Status  string `json:"status"`
	Message string `json:"message"`
}

// StageSyncReport is returned by a batch sync run.
type StageSyncReport struct {
	Success           bool                 `json:"success"`
	StageID           string               `json:"stage_id"`
	ProcessedCount    int                  `json:"processed"`
	SegmentsProcessed int                  `json:"segments_processed"`
	Message           string               `json:"message"`
	Participants      []ParticipantOutcome `json:"participants"`
	Logs              []string             `json:"logs"`
}

type UserSyncResult struct {
	Success       bool   `json:"success"`
	Synced        int    `json:"synced"`
	Pages         int    `json:"pages"`
	DetailFetches int    `json:"detail_fetches"`
	Error         string `json:"error,omitempty"`
}

type SegmentInfo struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	Distance      float64 `json:"distance"`
	AverageGrade  float64 `json:"average_grade"`
	ElevationHigh float64 `json:"elevation_high"`
	ElevationLow  float64 `json:"elevation_low"`
	ClimbCategory int     `json:"climb_category"`
	Category      string  `json:"category"`
}
