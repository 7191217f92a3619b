package service

import (
	"errors"
	"sync"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/fitstudio/staff-console/internal/apperr"
	"github.com/fitstudio/staff-console/internal/lifecycle"
	"github.com/fitstudio/staff-console/internal/models"
	"github.com/fitstudio/staff-console/internal/notify"
)

// =============================================================================
// Approve
// =============================================================================

func (s *WorkflowSuite) TestApproveBlockedOnUnverifiedDocuments() {
	c := s.seedCoach()
	s.seedDocuments(c.ID, false)
	s.seedContract(c.ID, true, true)

	cl, err := s.svc.Checklist(s.ctx, c.ID)
	s.Require().NoError(err)
	s.True(cl.DocumentsComplete)
	s.False(cl.DocumentsVerified)

	_, err = s.svc.Approve(s.ctx, s.admin, c.ID)
	e := s.requireRule(err, apperr.RuleChecklistIncomplete)
	data, ok := e.Data.(map[string]interface{})
	s.Require().True(ok)
	s.Equal([]lifecycle.Item{lifecycle.ItemDocumentsVerified}, data["failing"])

	s.Equal(models.CoachStatusPending, s.reload(c.ID).Status)
	s.Empty(s.auditActions(c.ID))
	s.Equal(1.0, testutil.ToFloat64(s.metrics.ChecklistBlocked.WithLabelValues("documents_verified")))
}

func (s *WorkflowSuite) TestApproveReadyCoach() {
	c := s.seedReadyCoach()
	ev := s.expectDispatch(nil)

	res, err := s.svc.Approve(s.ctx, s.admin, c.ID)
	s.Require().NoError(err)
	s.True(res.Changed)
	s.Empty(res.Warning)
	s.Equal("coach approved", res.Message)

	stored := s.reload(c.ID)
	s.Equal(models.CoachStatusActive, stored.Status)
	s.True(stored.Active)
	s.Require().NotNil(stored.ApprovedBy)
	s.Equal(s.admin.ID, *stored.ApprovedBy)
	s.Require().NotNil(stored.ApprovedAt)
	s.True(stored.ApprovedAt.Equal(s.now))

	s.Equal([]string{models.ActionCoachApproved}, s.auditActions(c.ID))
	entries, err := s.store.ListAudit(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Equal([]models.FieldChange{
		{Field: "status", Before: "pending", After: "active"},
		{Field: "active", Before: "false", After: "true"},
		{Field: "approved_at", Before: "", After: "2026-03-10T12:00:00Z"},
		{Field: "approved_by", Before: "", After: "USR00ADMIN"},
	}, []models.FieldChange(entries[0].ChangedFields))

	s.Equal(notify.TypeApproval, ev.Type)
	s.Equal(c.ID, ev.CoachID)
	s.Equal(c.Email, ev.Email)
	s.Equal("Lucia Ferrer", ev.Name)
	s.NotEmpty(ev.ID)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.WorkflowOutcome.WithLabelValues("approve", "changed")))
}

func (s *WorkflowSuite) TestApproveNeverMutatesOnFailure() {
	cases := map[string]func(c *models.Coach){
		"profile": func(c *models.Coach) { c.Bio = "" },
		"banking": func(c *models.Coach) { c.BankName = "" },
	}
	for name, mutate := range cases {
		s.Run(name, func() {
			c := s.seedCoach(func(c *models.Coach) { mutate(c) })
			s.seedDocuments(c.ID, true)
			s.seedContract(c.ID, true, true)

			_, err := s.svc.Approve(s.ctx, s.admin, c.ID)
			s.requireRule(err, apperr.RuleChecklistIncomplete)
			stored := s.reload(c.ID)
			s.Equal(models.CoachStatusPending, stored.Status)
			s.Nil(stored.ApprovedAt)
			s.Empty(s.auditActions(c.ID))
		})
	}

	s.Run("unsigned contract", func() {
		c := s.seedCoach()
		s.seedDocuments(c.ID, true)
		s.seedContract(c.ID, false, true)

		_, err := s.svc.Approve(s.ctx, s.admin, c.ID)
		e := s.requireRule(err, apperr.RuleChecklistIncomplete)
		s.Equal([]lifecycle.Item{lifecycle.ItemContractSigned}, e.Data.(map[string]interface{})["failing"])
	})

	s.Run("expired certification does not block", func() {
		c := s.seedReadyCoach()
		exp := s.now.AddDate(0, -1, 0)
		s.Require().NoError(s.store.CreateCertification(s.ctx, &models.Certification{
			CoachID: c.ID, Name: "Spinning Instructor", ObtainedAt: s.now.AddDate(-3, 0, 0), ExpiresAt: &exp,
		}))
		s.expectDispatch(nil)

		res, err := s.svc.Approve(s.ctx, s.admin, c.ID)
		s.Require().NoError(err)
		s.True(res.Changed)
	})
}

func (s *WorkflowSuite) TestApproveAlreadyActiveIsNoop() {
	c := s.seedReadyCoach(withStatus(models.CoachStatusActive))

	res, err := s.svc.Approve(s.ctx, s.admin, c.ID)
	s.Require().NoError(err)
	s.False(res.Changed)
	s.Equal("coach already active, no changes", res.Message)
	s.Empty(s.auditActions(c.ID))
}

func (s *WorkflowSuite) TestApproveInvalidStates() {
	s.Run("rejected coach", func() {
		c := s.seedReadyCoach(withStatus(models.CoachStatusRejected))
		_, err := s.svc.Approve(s.ctx, s.admin, c.ID)
		e := s.requireRule(err, apperr.RuleInvalidTransition)
		s.Equal(map[string]string{"from": "rejected", "to": "active"}, e.Data)
	})

	s.Run("unknown coach", func() {
		_, err := s.svc.Approve(s.ctx, s.admin, "COA00NOPE0")
		s.requireCode(err, apperr.CodeNotFound)
	})
}

func (s *WorkflowSuite) TestConcurrentApproveTransitionsOnce() {
	c := s.seedReadyCoach()
	s.expectDispatch(nil)

	const callers = 2
	var wg sync.WaitGroup
	results := make([]*Result, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i], errs[i] = s.svc.Approve(s.ctx, s.admin, c.ID)
		}()
	}
	wg.Wait()

	changed := 0
	for i := range results {
		s.Require().NoError(errs[i])
		if results[i].Changed {
			changed++
		}
	}
	s.Equal(1, changed)
	s.Equal([]string{models.ActionCoachApproved}, s.auditActions(c.ID))
}

func (s *WorkflowSuite) TestApproveNotificationFailureIsWarning() {
	c := s.seedReadyCoach()
	s.expectDispatch(errors.New("broker unreachable"))

	res, err := s.svc.Approve(s.ctx, s.admin, c.ID)
	s.Require().NoError(err)
	s.True(res.Changed)
	s.Contains(res.Warning, "broker unreachable")
	s.Equal(models.CoachStatusActive, s.reload(c.ID).Status)
	s.Equal(1.0, testutil.ToFloat64(s.metrics.Notifications.WithLabelValues("approval", "failed")))
}

// =============================================================================
// Reject
// =============================================================================

func (s *WorkflowSuite) TestRejectRequiresMotivo() {
	c := s.seedCoach()
	for _, motivo := range []string{"", "   ", "<p> </p>"} {
		_, err := s.svc.Reject(s.ctx, s.admin, c.ID, motivo)
		e := s.requireCode(err, apperr.CodeValidation)
		s.Equal([]string{"motivo: must not be empty"}, e.Details)
	}
	s.Equal(models.CoachStatusPending, s.reload(c.ID).Status)
	s.Empty(s.auditActions(c.ID))
}

func (s *WorkflowSuite) TestRejectPendingCoach() {
	c := s.seedCoach()
	ev := s.expectDispatch(nil)

	res, err := s.svc.Reject(s.ctx, s.admin, c.ID, "  Documentación ilegible ")
	s.Require().NoError(err)
	s.True(res.Changed)

	stored := s.reload(c.ID)
	s.Equal(models.CoachStatusRejected, stored.Status)
	s.False(stored.Active)
	s.Equal("Documentación ilegible", stored.RejectionReason)
	s.Require().NotNil(stored.RejectedBy)
	s.Equal(s.admin.ID, *stored.RejectedBy)

	entries, err := s.store.ListAudit(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal("Documentación ilegible", entries[0].Comments)
	s.Equal([]models.FieldChange{
		{Field: "status", Before: "pending", After: "rejected"},
		{Field: "rejection_reason", Before: "", After: "Documentación ilegible"},
		{Field: "rejected_at", Before: "", After: "2026-03-10T12:00:00Z"},
		{Field: "rejected_by", Before: "", After: "USR00ADMIN"},
	}, []models.FieldChange(entries[0].ChangedFields))

	s.Equal(notify.TypeRejection, ev.Type)
	s.Equal("Documentación ilegible", ev.Motivo)

	s.Run("rejecting again is a no-op", func() {
		res, err := s.svc.Reject(s.ctx, s.admin, c.ID, "otra vez")
		s.Require().NoError(err)
		s.False(res.Changed)
		s.Equal("Documentación ilegible", s.reload(c.ID).RejectionReason)
	})
}

func (s *WorkflowSuite) TestRejectActiveCoachIsInvalid() {
	c := s.seedCoach(withStatus(models.CoachStatusActive))
	_, err := s.svc.Reject(s.ctx, s.admin, c.ID, "late")
	s.requireRule(err, apperr.RuleInvalidTransition)
	s.Equal(models.CoachStatusActive, s.reload(c.ID).Status)
}

// =============================================================================
// Corrections
// =============================================================================

func (s *WorkflowSuite) TestRequestCorrections() {
	c := s.seedCoach()

	s.Run("needs at least one item", func() {
		_, err := s.svc.RequestCorrections(s.ctx, s.admin, c.ID, nil)
		s.requireCode(err, apperr.CodeValidation)
	})

	s.Run("itemizes blank entries", func() {
		_, err := s.svc.RequestCorrections(s.ctx, s.admin, c.ID, []models.Correction{
			{Campo: "bio", Mensaje: "too short"},
			{Campo: " ", Mensaje: "<i></i>"},
		})
		e := s.requireCode(err, apperr.CodeValidation)
		s.Equal([]string{
			"correcciones[1].campo: must not be empty",
			"correcciones[1].mensaje: must not be empty",
		}, e.Details)
	})

	s.Run("audits and notifies", func() {
		ev := s.expectDispatch(nil)
		res, err := s.svc.RequestCorrections(s.ctx, s.admin, c.ID, []models.Correction{
			{Campo: " id_front ", Mensaje: "La foto está <b>borrosa</b>"},
		})
		s.Require().NoError(err)
		s.True(res.Changed)

		s.Equal(notify.TypeCorrections, ev.Type)
		s.Equal([]models.Correction{{Campo: "id_front", Mensaje: "La foto está borrosa"}}, ev.Corrections)
		s.Equal([]string{models.ActionCorrectionsRequested}, s.auditActions(c.ID))
		s.Equal(models.CoachStatusPending, s.reload(c.ID).Status)
	})
}
