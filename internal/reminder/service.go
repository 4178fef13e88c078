// Package reminder holds the reminder use cases shared by the bot, the HTTP
// API and the assistant skill.
package reminder

import (
	"context"
	"strings"
	"time"

	"github.com/hray3182/gabay/internal/models"
	"github.com/hray3182/gabay/internal/timeparse"
	"github.com/rs/zerolog"
)

type Store interface {
	Create(ctx context.Context, reminder *models.Reminder) error
	List(ctx context.Context, filter models.ReminderFilter) ([]models.Reminder, error)
	DeleteMatching(ctx context.Context, ownerID, substring string) (int, error)
}

// Waker is told about new reminders so near-term ones fire before the next tick.
type Waker interface {
	Notify()
}

type CreateInput struct {
	OwnerID         string
	Message         string
	TriggerText     string
	Frequency       string
	IntervalSeconds *int
	RemainingCount  *int
	Recipient       string
	ActionTag       string
	Payload         string
}

type Created struct {
	Reminder models.Reminder
	Source   timeparse.Source
}

type Service struct {
	store Store
	waker Waker
	clock func() time.Time
	log   zerolog.Logger
}

func NewService(store Store, waker Waker, log zerolog.Logger) *Service {
	return &Service{
		store: store,
		waker: waker,
		clock: time.Now,
		log:   log.With().Str("component", "reminder").Logger(),
	}
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Created, error) {
	if strings.TrimSpace(in.Message) == "" {
		return nil, models.NewValidationError("message", "is required")
	}
	if strings.TrimSpace(in.TriggerText) == "" {
		return nil, models.NewValidationError("trigger_time", "is required")
	}
	freq, err := models.ParseFrequency(in.Frequency)
	if err != nil {
		return nil, err
	}

	at, src := timeparse.Resolve(in.TriggerText, s.clock())
	if src == timeparse.SourceDefault {
		s.log.Warn().Str("trigger", in.TriggerText).Time("fallback", at).Msg("could not parse trigger time, using default delay")
	}

	rec := models.Reminder{
		OwnerID:         in.OwnerID,
		Message:         strings.TrimSpace(in.Message),
		TriggerTime:     at,
		OriginalTrigger: strings.TrimSpace(in.TriggerText),
		Frequency:       freq,
		IntervalSeconds: in.IntervalSeconds,
		RemainingCount:  in.RemainingCount,
		Recipient:       strings.TrimSpace(in.Recipient),
		ActionTag:       strings.TrimSpace(in.ActionTag),
		Payload:         in.Payload,
	}
	if err := s.store.Create(ctx, &rec); err != nil {
		return nil, err
	}
	s.log.Info().Str("reminder", rec.ID).Str("owner", rec.OwnerID).Time("trigger", rec.TriggerTime).Msg("reminder created")

	if s.waker != nil {
		s.waker.Notify()
	}
	return &Created{Reminder: rec, Source: src}, nil
}

// Pending lists the owner's reminders that have not fired for the last time.
func (s *Service) Pending(ctx context.Context, ownerID string) ([]models.Reminder, error) {
	return s.store.List(ctx, models.ReminderFilter{OwnerID: ownerID, Status: models.StatusPending})
}

func (s *Service) List(ctx context.Context, filter models.ReminderFilter) ([]models.Reminder, error) {
	return s.store.List(ctx, filter)
}

func (s *Service) Delete(ctx context.Context, ownerID, match string) (int, error) {
	if strings.TrimSpace(match) == "" {
		return 0, models.NewValidationError("match", "is required")
	}
	n, err := s.store.DeleteMatching(ctx, ownerID, strings.TrimSpace(match))
	if err != nil {
		return 0, err
	}
	s.log.Info().Str("owner", ownerID).Str("match", match).Int("deleted", n).Msg("reminders deleted")
	return n, nil
}
