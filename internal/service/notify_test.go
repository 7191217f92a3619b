package service

import (
	"errors"

	"github.com/fitstudio/staff-console/internal/apperr"
	"github.com/fitstudio/staff-console/internal/models"
	"github.com/fitstudio/staff-console/internal/notify"
)

// =============================================================================
// Manual notifications
// =============================================================================

func (s *WorkflowSuite) TestNotify() {
	s.Run("unknown type", func() {
		c := s.seedCoach()
		_, err := s.svc.Notify(s.ctx, s.admin, NotifyRequest{Type: "reminder", CoachID: c.ID})
		s.requireCode(err, apperr.CodeValidation)
	})

	s.Run("unknown coach", func() {
		_, err := s.svc.Notify(s.ctx, s.admin, NotifyRequest{Type: notify.TypeApproval, CoachID: "COA00NOPE0"})
		s.requireCode(err, apperr.CodeNotFound)
	})

	s.Run("rejection falls back to the stored reason", func() {
		c := s.seedCoach(withStatus(models.CoachStatusRejected), func(c *models.Coach) {
			c.RejectionReason = "Falta el certificado"
		})
		ev := s.expectDispatch(nil)

		warning, err := s.svc.Notify(s.ctx, s.admin, NotifyRequest{Type: notify.TypeRejection, CoachID: c.ID})
		s.Require().NoError(err)
		s.Empty(warning)
		s.Equal("Falta el certificado", ev.Motivo)
		s.Equal(s.admin.ID, ev.ActorID)
	})

	s.Run("rejection without any reason", func() {
		c := s.seedCoach()
		_, err := s.svc.Notify(s.ctx, s.admin, NotifyRequest{Type: notify.TypeRejection, CoachID: c.ID, Motivo: "<b></b>"})
		e := s.requireCode(err, apperr.CodeValidation)
		s.Equal([]string{"motivo: must not be empty"}, e.Details)
	})

	s.Run("corrections are validated", func() {
		c := s.seedCoach()
		_, err := s.svc.Notify(s.ctx, s.admin, NotifyRequest{Type: notify.TypeCorrections, CoachID: c.ID})
		s.requireCode(err, apperr.CodeValidation)
	})

	s.Run("delivery failure is a warning", func() {
		c := s.seedCoach()
		s.expectDispatch(errors.New("smtp timeout"))

		warning, err := s.svc.Notify(s.ctx, s.admin, NotifyRequest{
			Type:        notify.TypeCorrections,
			CoachID:     c.ID,
			Corrections: []models.Correction{{Campo: "bio", Mensaje: "ampliar"}},
		})
		s.Require().NoError(err)
		s.Equal("notification could not be delivered: smtp timeout", warning)
		s.Empty(s.auditActions(c.ID), "manual notifications are not audited")
	})
}
