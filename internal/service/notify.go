package service

import (
	"context"

	"github.com/fitstudio/staff-console/internal/apperr"
	"github.com/fitstudio/staff-console/internal/models"
	"github.com/fitstudio/staff-console/internal/notify"
	"github.com/fitstudio/staff-console/internal/utils"
)

type NotifyRequest struct {
	Type        notify.Type
	CoachID     string
	Motivo      string
	Corrections []models.Correction
}

// Notify re-sends a workflow notification for a decision that was already
// made. Delivery problems come back as a warning, never as an error.
func (s *Service) Notify(ctx context.Context, actor Actor, req NotifyRequest) (string, error) {
	if !req.Type.Valid() {
		return "", apperr.Validation("unknown notification type", "tipo: must be approval, rejection or corrections")
	}
	coach, err := s.store.GetCoach(ctx, req.CoachID)
	if err != nil {
		return "", translate(err, "coach")
	}

	ev := coachEvent(req.Type, coach, actor.ID)
	switch req.Type {
	case notify.TypeRejection:
		ev.Motivo = utils.SanitizeText(req.Motivo)
		if ev.Motivo == "" {
			ev.Motivo = coach.RejectionReason
		}
		if ev.Motivo == "" {
			return "", apperr.Validation("rejection reason required", "motivo: must not be empty")
		}
	case notify.TypeCorrections:
		items, err := cleanCorrections(req.Corrections)
		if err != nil {
			return "", err
		}
		ev.Corrections = items
	}
	return s.dispatch(ctx, ev), nil
}
