package usecase

import (
	"context"

	"wellness-sync/domain/dto"
	"wellness-sync/domain/model"
	"wellness-sync/domain/repository"
)

type ISegmentLookup interface {
	GetSegment(ctx context.Context, userID, segmentID string) (*dto.SegmentInfo, error)
}

type segmentLookup struct {
	refresher ITokenRefresher
	strava    repository.IStrava
}

func NewSegmentLookup(refresher ITokenRefresher, strava repository.IStrava) ISegmentLookup {
	return &segmentLookup{refresher: refresher, strava: strava}
}

// ClimbCategory maps the provider's numeric climb category to the label used by stage setup.
func ClimbCategory(c int) string {
	switch c {
	case 5:
		return "hc"
	case 4:
		return "cat1"
	case 3:
		return "cat2"
	case 2:
		return "cat3"
	default:
		return "cat4"
	}
}

func (s *segmentLookup) GetSegment(ctx context.Context, userID, segmentID string) (*dto.SegmentInfo, error) {
	cred, err := s.refresher.FreshCredential(ctx, userID, model.PlatformStrava)
	if err != nil {
		return nil, err
	}
	seg, err := s.strava.GetSegment(ctx, cred.AccessToken, segmentID)
	if err != nil {
		return nil, err
	}
	return &dto.SegmentInfo{
		ID:            seg.ID,
		Name:          seg.Name,
		Distance:      seg.Distance,
		AverageGrade:  seg.AverageGrade,
		ElevationHigh: seg.ElevationHigh,
		ElevationLow:  seg.ElevationLow,
		ClimbCategory: seg.ClimbCategory,
		Category:      ClimbCategory(seg.ClimbCategory),
	}, nil
}
