package model

import (
	"encoding/json"
	"time"
)

type StravaAthlete struct {
	ID        int64  `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstname"`
	LastName  string `json:"lastname"`
	Profile   string `json:"profile"`
}

// TokenGrant is the result of a code exchange or refresh-token grant.
type TokenGrant struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
	Athlete      *StravaAthlete
}

type StravaSegmentRef struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type StravaSegmentEffort struct {
	ID          int64            `json:"id"`
	Name        string           `json:"name"`
	ElapsedTime int              `json:"elapsed_time"`
	StartDate   time.Time        `json:"start_date"`
	Segment     StravaSegmentRef `json:"segment"`
}

// End returns the instant the effort finished.
func (e StravaSegmentEffort) End() time.Time {
	return e.StartDate.Add(time.Duration(e.ElapsedTime) * time.Second)
}

type StravaActivity struct {
	ID                 int64                 `json:"id"`
	Name               string                `json:"name"`
	Type               string                `json:"type"`
	StartDate          time.Time             `json:"start_date"`
	MovingTime         int                   `json:"moving_time"`
	ElapsedTime        int                   `json:"elapsed_time"`
	Distance           *float64              `json:"distance"`
	Calories           float64               `json:"calories"`
	Kilojoules         float64               `json:"kilojoules"`
	TotalElevationGain float64               `json:"total_elevation_gain"`
	SegmentEfforts     []StravaSegmentEffort `json:"segment_efforts"`
}

type StravaSegment struct {
	ID            int64   `json:"id"`
	Name          string  `json:"name"`
	ActivityType  string  `json:"activity_type"`
	Distance      float64 `json:"distance"`
	AverageGrade  float64 `json:"average_grade"`
	MaximumGrade  float64 `json:"maximum_grade"`
	ElevationHigh float64 `json:"elevation_high"`
	ElevationLow  float64 `json:"elevation_low"`
	ClimbCategory int     `json:"climb_category"`
	City          string  `json:"city"`
	Country       string  `json:"country"`
}

// Subscription is a provider-side webhook registration.
type Subscription struct {
	ID            int64     `json:"id"`
	ResourceState int       `json:"resource_state"`
	ApplicationID int64     `json:"application_id"`
	CallbackURL   string    `json:"callback_url"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

const (
	AspectCreate = "create"
	AspectUpdate = "update"
	AspectDelete = "delete"

	ObjectActivity = "activity"
	ObjectAthlete  = "athlete"
)

// WebhookEvent is a decoded push event. Ids arrive as string or number and are kept as strings.
type WebhookEvent struct {
	AspectType     string            `json:"aspect_type" bson:"aspect_type"`
	ObjectType     string            `json:"object_type" bson:"object_type"`
	ObjectID       string            `json:"object_id" bson:"object_id"`
	OwnerID        string            `json:"owner_id" bson:"owner_id"`
	SubscriptionID int64             `json:"subscription_id" bson:"subscription_id"`
	EventTime      int64             `json:"event_time" bson:"event_time"`
	Updates        map[string]string `json:"updates,omitempty" bson:"updates,omitempty"`
	Raw            json.RawMessage   `json:"-" bson:"-"`
}

// Deauthorization reports whether the event revokes the athlete's grant.
func (e *WebhookEvent) Deauthorization() bool {
	return e.ObjectType == ObjectAthlete && e.AspectType == AspectUpdate && e.Updates["authorized"] == "false"
}
