package audit

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
// No Update/Delete methods are provided by design.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service logs operator actions. Callers should treat audit logging as
// best-effort: log the error and move on.
type Service struct {
	repo  Repository
	clock func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, clock: time.Now}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	now := s.clock().UTC()
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	return s.repo.Append(ctx, e)
}

// LogCampaignControl records a start/stop/pause/resume action.
func (s *Service) LogCampaignControl(ctx context.Context, actorUserID, actorRole, ip, campaignID, action string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeCampaignControl,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		CampaignID:  campaignID,
		Message:     action,
	})
}

// LogConfigChange records a campaign configuration update.
func (s *Service) LogConfigChange(ctx context.Context, actorUserID, actorRole, ip, campaignID, metadata string) error {
	return s.Append(ctx, Event{
		Type:        EventTypeConfigChange,
		ActorUserID: actorUserID,
		ActorRole:   actorRole,
		IPAddress:   ip,
		CampaignID:  campaignID,
		Message:     "config updated",
		Metadata:    metadata,
	})
}
