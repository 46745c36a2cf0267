package model

import (
	"time"

	"github.com/lib/pq"
)

type ResultStatus string

const (
	ResultPending  ResultStatus = "pending"
	ResultOfficial ResultStatus = "official"
	ResultDNF      ResultStatus = "dnf"
)

const (
	FinishModeActivity = "activity"
	FinishModeSegment  = "segment"
)

// EventStage is a dated sub-event of an Event.
type EventStage struct {
	ID                 string         `json:"id" gorm:"primaryKey"`
	EventID            string         `json:"event_id" gorm:"column:event_id"`
	Name               string         `json:"name"`
	Date               time.Time      `json:"date" gorm:"type:date"`
	MountainSegmentIDs pq.StringArray `json:"mountain_segment_ids" gorm:"column:mountain_segment_ids;type:text[]"`
	FinishMode         string         `json:"finish_mode"`
	FinishSegmentID    *string        `json:"finish_segment_id,omitempty" gorm:"column:finish_segment_id"`
}

func (EventStage) TableName() string { return "event_stages" }

const DateLayout = "2006-01-02"

// Window returns the stage day from local midnight to the last second of the day in loc.
func (s *EventStage) Window(loc *time.Location) (start, end time.Time) {
	start = time.Date(s.Date.Year(), s.Date.Month(), s.Date.Day(), 0, 0, 0, 0, loc)
	end = start.AddDate(0, 0, 1).Add(-time.Second)
	return start, end
}

// FinishStravaSegmentID resolves the finish segment to its Strava id when the stage finishes
// on a segment. It returns "" in activity mode or when the segment is not configured.
func (s *EventStage) FinishStravaSegmentID(segments []StageSegment) string {
	if s.FinishMode != FinishModeSegment || s.FinishSegmentID == nil {
		return ""
	}
	for _, seg := range segments {
		if seg.ID == *s.FinishSegmentID {
			return seg.StravaSegmentID
		}
	}
	return ""
}

// TargetSegmentIDs merges configured segment ids with the legacy mountain segment list.
func (s *EventStage) TargetSegmentIDs(segments []StageSegment) []string {
	seen := make(map[string]struct{})
	var ids []string
	add := func(id string) {
		if _, ok := seen[id]; ok || id == "" {
			return
		}
		seen[id] = struct{}{}
		ids = append(ids, id)
	}
	for _, seg := range segments {
		add(seg.StravaSegmentID)
	}
	for _, id := range s.MountainSegmentIDs {
		add(id)
	}
	return ids
}

// StageSegment is a configured timed segment of a stage. The same Strava segment may be
// configured several times to score successive passes.
type StageSegment struct {
	ID              string        `json:"id" gorm:"primaryKey"`
	StageID         string        `json:"stage_id" gorm:"column:stage_id"`
	StravaSegmentID string        `json:"strava_segment_id" gorm:"column:strava_segment_id"`
	Name            string        `json:"name"`
	Category        string        `json:"category"`
	PointsScale     pq.Int64Array `json:"points_scale" gorm:"column:points_scale;type:integer[]"`
	SegmentOrder    int           `json:"segment_order"`
}

func (StageSegment) TableName() string { return "stage_segments" }

// PointsFor returns the points awarded for a 1-based finishing position.
func (s *StageSegment) PointsFor(position int) int {
	if position < 1 || position > len(s.PointsScale) {
		return 0
	}
	return int(s.PointsScale[position-1])
}

type EventParticipant struct {
	EventID string `json:"event_id" gorm:"primaryKey"`
	UserID  string `json:"user_id" gorm:"primaryKey"`
}

func (EventParticipant) TableName() string { return "event_participants" }

// StageResult is one participant's scored outcome for a stage, unique per (StageID, UserID).
type StageResult struct {
	ID                 int64        `json:"id"`
	StageID            string       `json:"stage_id"`
	UserID             string       `json:"user_id"`
	StravaActivityID   string       `json:"strava_activity_id"`
	ElapsedTimeSeconds *int         `json:"elapsed_time_seconds"`
	MountainPoints     int          `json:"mountain_points"`
	IsDNF              bool         `json:"is_dnf"`
	Status             ResultStatus `json:"status"`
	UpdatedAt          time.Time    `json:"updated_at"`
}

// SegmentResult is one participant's pass over a configured stage segment.
type SegmentResult struct {
	ID                 int64     `json:"id"`
	StageID            string    `json:"stage_id"`
	SegmentID          string    `json:"segment_id"`
	UserID             string    `json:"user_id"`
	StravaEffortID     string    `json:"strava_effort_id"`
	ElapsedTimeSeconds int       `json:"elapsed_time_seconds"`
	Position           *int      `json:"position,omitempty"`
	PointsEarned       int       `json:"points_earned"`
	UpdatedAt          time.Time `json:"updated_at"`
}

type Notification struct {
	UserID   string            `json:"user_id"`
	Title    string            `json:"title"`
	Message  string            `json:"message"`
	Type     string            `json:"type"`
	Metadata map[string]string `json:"metadata,omitempty"`
}

const NotificationStageResult = "stage_result"
