package model

import "time"

// WorkoutMetric is the canonical normalized activity, unique per (SourcePlatform, ExternalID).
type WorkoutMetric struct {
	ID                  int64     `json:"id"`
	UserID              string    `json:"user_id"`
	SourcePlatform      string    `json:"source_platform"`
	ExternalID          string    `json:"external_id"`
	Title               string    `json:"title"`
	ActivityType        string    `json:"activity_type"`
	StartTime           time.Time `json:"start_time"`
	DurationSeconds     int       `json:"duration_seconds"`
	DistanceMeters      float64   `json:"distance_meters"`
	Calories            float64   `json:"calories"`
	ElevationGainMeters float64   `json:"elevation_gain_meters"`
	Points              int       `json:"points"`
	UpdatedAt           time.Time `json:"updated_at"`
}
