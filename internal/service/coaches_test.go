package service

import (
	"encoding/json"
	"strings"

	"github.com/fitstudio/staff-console/internal/apperr"
	"github.com/fitstudio/staff-console/internal/lifecycle"
	"github.com/fitstudio/staff-console/internal/models"
	"github.com/fitstudio/staff-console/internal/utils"
)

// =============================================================================
// CreateCoach
// =============================================================================

func (s *WorkflowSuite) TestCreateCoach() {
	s.Run("creates a pending coach with sealed banking", func() {
		c, err := s.svc.CreateCoach(s.ctx, s.admin, s.patch(map[lifecycle.Field]string{
			lifecycle.FieldFirstName:     "Marta",
			lifecycle.FieldLastName:      "Gil",
			lifecycle.FieldEmail:         "Marta.Gil@Example.com",
			lifecycle.FieldAccountNumber: "ES9876543210",
		}))
		s.Require().NoError(err)
		s.True(strings.HasPrefix(c.ID, "COA00"))
		s.Equal(models.CoachStatusPending, c.Status)
		s.Equal(models.CategoryCycling, c.Category)
		s.Equal("marta.gil@example.com", c.Email)

		stored := s.reload(c.ID)
		s.Equal("3210", stored.AccountLast4)
		plain, err := s.cipher.Open(stored.AccountNumberEnc)
		s.Require().NoError(err)
		s.Equal("ES9876543210", plain)

		entries, err := s.store.ListAudit(s.ctx, c.ID)
		s.Require().NoError(err)
		s.Require().Len(entries, 1)
		s.Equal(models.ActionCoachCreated, entries[0].Action)
		for _, ch := range entries[0].ChangedFields {
			s.NotContains(ch.After, "9876543210")
		}
	})

	s.Run("requires identity fields", func() {
		_, err := s.svc.CreateCoach(s.ctx, s.admin, s.patch(map[lifecycle.Field]string{
			lifecycle.FieldFirstName: "Marta",
		}))
		e := s.requireCode(err, apperr.CodeValidation)
		s.Equal([]string{"last_name: required", "email: required"}, e.Details)
	})

	s.Run("status cannot be chosen", func() {
		_, err := s.svc.CreateCoach(s.ctx, s.admin, s.patch(map[lifecycle.Field]string{
			lifecycle.FieldFirstName: "Marta",
			lifecycle.FieldLastName:  "Gil",
			lifecycle.FieldEmail:     "m2@example.com",
			lifecycle.FieldStatus:    "active",
		}))
		s.requireCode(err, apperr.CodeValidation)
	})

	s.Run("retries when the generated id is taken", func() {
		taken := s.seedCoach()
		ids := []string{taken.ID, "COA00FRESH"}
		s.svc.newCoachID = func() (string, error) {
			id := ids[0]
			ids = ids[1:]
			return id, nil
		}
		defer func() { s.svc.newCoachID = utils.GenerateCoachID }()

		c, err := s.svc.CreateCoach(s.ctx, s.admin, s.patch(map[lifecycle.Field]string{
			lifecycle.FieldFirstName: "Nuria",
			lifecycle.FieldLastName:  "Vidal",
			lifecycle.FieldEmail:     "nuria@example.com",
		}))
		s.Require().NoError(err)
		s.Equal("COA00FRESH", c.ID)
		s.Empty(ids)
		s.Equal("Lucia", s.reload(taken.ID).FirstName)
		s.Equal([]string{models.ActionCoachCreated}, s.auditActions("COA00FRESH"))
	})

	s.Run("duplicate email", func() {
		existing := s.seedCoach()
		_, err := s.svc.CreateCoach(s.ctx, s.admin, s.patch(map[lifecycle.Field]string{
			lifecycle.FieldFirstName: "Otra",
			lifecycle.FieldLastName:  "Persona",
			lifecycle.FieldEmail:     existing.Email,
		}))
		s.requireRule(err, apperr.RuleInvalidState)
	})
}

// =============================================================================
// UpdateCoach and the critical-change guard
// =============================================================================

func (s *WorkflowSuite) TestUpdateCoachCriticalChangeNeedsConfirmation() {
	c := s.seedCoach(withStatus(models.CoachStatusActive))
	p := s.patch(map[lifecycle.Field]string{
		lifecycle.FieldStatus: "inactive",
		lifecycle.FieldBio:    "new bio",
	})

	_, err := s.svc.UpdateCoach(s.ctx, s.admin, c.ID, p, false)
	e := s.requireRule(err, apperr.RuleConfirmationRequired)
	data := e.Data.(map[string]interface{})
	s.Equal([]string{"status"}, data["critical_changes"])

	unchanged := s.reload(c.ID)
	s.Equal(models.CoachStatusActive, unchanged.Status)
	s.Equal("Indoor cycling since 2019", unchanged.Bio)
	s.Empty(s.auditActions(c.ID))

	res, err := s.svc.UpdateCoach(s.ctx, s.admin, c.ID, p, true)
	s.Require().NoError(err)
	s.Len(res.Changes, 2)

	stored := s.reload(c.ID)
	s.Equal(models.CoachStatusInactive, stored.Status)
	s.False(stored.Active)
	s.Equal("new bio", stored.Bio)

	entries, err := s.store.ListAudit(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(models.ActionCoachUpdated, entries[0].Action)
	s.Len(entries[0].ChangedFields, 2)
}

func (s *WorkflowSuite) TestUpdateCoachWithoutCriticalFields() {
	c := s.seedCoach(withStatus(models.CoachStatusActive))

	res, err := s.svc.UpdateCoach(s.ctx, s.admin, c.ID, s.patch(map[lifecycle.Field]string{
		lifecycle.FieldPhone:      "+34 611 222 333",
		lifecycle.FieldAdminNotes: "prefers mornings",
	}), false)
	s.Require().NoError(err)
	s.Equal("coach updated", res.Message)
	s.Equal("+34 611 222 333", s.reload(c.ID).Phone)

	s.Run("identical values change nothing", func() {
		res, err := s.svc.UpdateCoach(s.ctx, s.admin, c.ID, s.patch(map[lifecycle.Field]string{
			lifecycle.FieldPhone:  "+34 611 222 333",
			lifecycle.FieldStatus: "active",
		}), false)
		s.Require().NoError(err)
		s.Equal("no changes", res.Message)
		s.Empty(res.Changes)
		s.Len(s.auditActions(c.ID), 1)
	})
}

func (s *WorkflowSuite) TestUpdateCoachAccountNumber() {
	c := s.seedCoach()
	p := s.patch(map[lifecycle.Field]string{lifecycle.FieldAccountNumber: "ES5555554321"})

	_, err := s.svc.UpdateCoach(s.ctx, s.admin, c.ID, p, false)
	e := s.requireRule(err, apperr.RuleConfirmationRequired)
	changes := e.Data.(map[string]interface{})["changes"].([]models.FieldChange)
	s.Equal("****7890", changes[0].Before)
	s.Equal("****4321", changes[0].After)

	res, err := s.svc.UpdateCoach(s.ctx, s.admin, c.ID, p, true)
	s.Require().NoError(err)
	s.Equal("****4321", res.Changes[0].After)

	stored := s.reload(c.ID)
	s.Equal("4321", stored.AccountLast4)
	plain, err := s.cipher.Open(stored.AccountNumberEnc)
	s.Require().NoError(err)
	s.Equal("ES5555554321", plain)
}

// =============================================================================
// Coach self-service edits
// =============================================================================

func (s *WorkflowSuite) coachActor(c *models.Coach) Actor {
	return Actor{ID: *c.UserID, Role: models.RoleCoach}
}

func (s *WorkflowSuite) TestSelfEditOnActiveCoachQueuesProtectedFields() {
	c := s.seedCoach(withStatus(models.CoachStatusActive), linkedTo("USR00COACH"))
	actor := s.coachActor(c)

	res, err := s.svc.SubmitCoachEdit(s.ctx, actor, s.patch(map[lifecycle.Field]string{
		lifecycle.FieldBirthDate: "1991-02-03",
	}))
	s.Require().NoError(err)
	s.Empty(res.Applied)
	s.Equal([]string{"birth_date"}, res.Pending)
	s.Require().NotNil(res.ChangeRequest)
	s.Require().Len(res.ChangeRequest.Fields, 1)
	s.Equal(models.FieldPending, res.ChangeRequest.Fields[0].Status)
	s.Equal("1991-02-03", res.ChangeRequest.Fields[0].NewValue)
	s.Equal("1990-05-01", res.ChangeRequest.Fields[0].OldValue)

	s.Equal("1990-05-01", s.reload(c.ID).BirthDate.Format("2006-01-02"))

	review, err := s.svc.RejectAll(s.ctx, s.admin, res.ChangeRequest.ID, "keep the documented date")
	s.Require().NoError(err)
	s.True(review.Changed)

	cr, err := s.svc.GetChangeRequest(s.ctx, res.ChangeRequest.ID)
	s.Require().NoError(err)
	s.Equal(models.ChangeRequestRejected, cr.Status)
	s.Equal(models.FieldRejected, cr.Fields[0].Status)
	s.Equal("keep the documented date", cr.Comments)
	s.Require().NotNil(cr.ResolvedBy)
	s.Equal("1990-05-01", s.reload(c.ID).BirthDate.Format("2006-01-02"))
}

func (s *WorkflowSuite) TestSelfEditSplitsFreeAndProtected() {
	c := s.seedCoach(withStatus(models.CoachStatusActive), linkedTo("USR00COACH"))

	res, err := s.svc.SubmitCoachEdit(s.ctx, s.coachActor(c), s.patch(map[lifecycle.Field]string{
		lifecycle.FieldInstagram: "@lucia.rides",
		lifecycle.FieldEmail:     "lucia.new@example.com",
	}))
	s.Require().NoError(err)
	s.Require().Len(res.Applied, 1)
	s.Equal("instagram", res.Applied[0].Field)
	s.Equal([]string{"email"}, res.Pending)

	stored := s.reload(c.ID)
	s.Equal("@lucia.rides", stored.Instagram)
	s.Equal(c.Email, stored.Email)
	s.Equal([]string{models.ActionCoachSelfUpdated, models.ActionChangeRequestOpened}, s.auditActions(c.ID))

	s.Run("resubmitting a field replaces the pending value", func() {
		again, err := s.svc.SubmitCoachEdit(s.ctx, s.coachActor(c), s.patch(map[lifecycle.Field]string{
			lifecycle.FieldEmail: "lucia.other@example.com",
		}))
		s.Require().NoError(err)
		s.Equal(res.ChangeRequest.ID, again.ChangeRequest.ID)

		cr, err := s.svc.GetChangeRequest(s.ctx, again.ChangeRequest.ID)
		s.Require().NoError(err)
		s.Require().Len(cr.Fields, 1)
		s.Equal("lucia.other@example.com", cr.Fields[0].NewValue)
	})
}

func (s *WorkflowSuite) TestSelfEditBackToCurrentValueWithdrawsPendingEntry() {
	c := s.seedCoach(withStatus(models.CoachStatusActive), linkedTo("USR00COACH"))
	actor := s.coachActor(c)

	first, err := s.svc.SubmitCoachEdit(s.ctx, actor, s.patch(map[lifecycle.Field]string{
		lifecycle.FieldBirthDate: "1990-06-01",
		lifecycle.FieldBankName:  "Banco Sur",
	}))
	s.Require().NoError(err)
	s.ElementsMatch([]string{"birth_date", "bank_name"}, first.Pending)

	res, err := s.svc.SubmitCoachEdit(s.ctx, actor, s.patch(map[lifecycle.Field]string{
		lifecycle.FieldBirthDate: "1990-05-01",
	}))
	s.Require().NoError(err)
	s.Empty(res.Pending)
	s.Equal([]string{"birth_date"}, res.Withdrawn)

	cr, err := s.svc.GetChangeRequest(s.ctx, first.ChangeRequest.ID)
	s.Require().NoError(err)
	s.Equal(models.ChangeRequestPending, cr.Status)
	for _, f := range cr.Fields {
		if f.Field == "birth_date" {
			s.Equal(models.FieldWithdrawn, f.Status)
			s.Require().NotNil(f.ReviewedBy)
			s.Equal(actor.ID, *f.ReviewedBy)
		} else {
			s.Equal(models.FieldPending, f.Status)
		}
	}
	s.Equal([]string{models.ActionChangeRequestOpened, models.ActionChangeRequestWithdrawn}, s.auditActions(c.ID))

	review, err := s.svc.ApproveAll(s.ctx, s.admin, cr.ID)
	s.Require().NoError(err)
	s.Require().Len(review.Applied, 1)
	s.Equal("bank_name", review.Applied[0].Field)

	stored := s.reload(c.ID)
	s.Equal("1990-05-01", stored.BirthDate.Format("2006-01-02"))
	s.Equal("Banco Sur", stored.BankName)

	cr, err = s.svc.GetChangeRequest(s.ctx, cr.ID)
	s.Require().NoError(err)
	s.Equal(models.ChangeRequestApproved, cr.Status)

	s.Run("nothing pending leaves no trace", func() {
		before := len(s.auditActions(c.ID))
		again, err := s.svc.SubmitCoachEdit(s.ctx, actor, s.patch(map[lifecycle.Field]string{
			lifecycle.FieldBirthDate: "1990-05-01",
		}))
		s.Require().NoError(err)
		s.Empty(again.Withdrawn)
		s.Nil(again.ChangeRequest)
		s.Len(s.auditActions(c.ID), before)
	})
}

func (s *WorkflowSuite) TestSelfEditWithdrawingEveryEntryClosesRequest() {
	c := s.seedCoach(withStatus(models.CoachStatusActive), linkedTo("USR00COACH"))
	actor := s.coachActor(c)

	first, err := s.svc.SubmitCoachEdit(s.ctx, actor, s.patch(map[lifecycle.Field]string{
		lifecycle.FieldBirthDate: "1990-06-01",
	}))
	s.Require().NoError(err)

	res, err := s.svc.SubmitCoachEdit(s.ctx, actor, s.patch(map[lifecycle.Field]string{
		lifecycle.FieldBirthDate: "1990-05-01",
	}))
	s.Require().NoError(err)
	s.Equal([]string{"birth_date"}, res.Withdrawn)

	cr, err := s.svc.GetChangeRequest(s.ctx, first.ChangeRequest.ID)
	s.Require().NoError(err)
	s.Equal(models.ChangeRequestWithdrawn, cr.Status)
	s.Require().NotNil(cr.ResolvedAt)

	open, err := s.svc.ListChangeRequests(s.ctx, true)
	s.Require().NoError(err)
	s.Empty(open)

	review, err := s.svc.ApproveAll(s.ctx, s.admin, cr.ID)
	s.Require().NoError(err)
	s.False(review.Changed)
	s.Equal("1990-05-01", s.reload(c.ID).BirthDate.Format("2006-01-02"))
}

func (s *WorkflowSuite) TestSelfEditWhilePendingAppliesDirectly() {
	c := s.seedCoach(linkedTo("USR00COACH"))

	res, err := s.svc.SubmitCoachEdit(s.ctx, s.coachActor(c), s.patch(map[lifecycle.Field]string{
		lifecycle.FieldLastName: "Ferrer Soto",
	}))
	s.Require().NoError(err)
	s.Len(res.Applied, 1)
	s.Empty(res.Pending)
	s.Nil(res.ChangeRequest)
	s.Equal("Ferrer Soto", s.reload(c.ID).LastName)
}

func (s *WorkflowSuite) TestSelfEditRejectsAdminOnlyFields() {
	c := s.seedCoach(linkedTo("USR00COACH"))

	_, err := s.svc.SubmitCoachEdit(s.ctx, s.coachActor(c), s.patch(map[lifecycle.Field]string{
		lifecycle.FieldPhone:       "+34 699 999 999",
		lifecycle.FieldIsHeadCoach: "true",
	}))
	e := s.requireCode(err, apperr.CodeValidation)
	s.Equal([]string{"is_head_coach: can only be changed by an administrator"}, e.Details)
	s.Equal(c.Phone, s.reload(c.ID).Phone)

	s.Run("unlinked user has no profile", func() {
		_, err := s.svc.SubmitCoachEdit(s.ctx, Actor{ID: "USR00GHOST", Role: models.RoleCoach},
			s.patch(map[lifecycle.Field]string{lifecycle.FieldPhone: "1"}))
		s.requireCode(err, apperr.CodeNotFound)
	})
}

func (s *WorkflowSuite) TestSensitiveChangeRequestRoundTrip() {
	c := s.seedCoach(withStatus(models.CoachStatusActive), linkedTo("USR00COACH"))

	res, err := s.svc.SubmitCoachEdit(s.ctx, s.coachActor(c), s.patch(map[lifecycle.Field]string{
		lifecycle.FieldAccountNumber: "ES0000004321",
	}))
	s.Require().NoError(err)
	entry := res.ChangeRequest.Fields[0]
	s.True(entry.Sensitive)
	s.Equal("****7890", entry.OldValue)
	s.NotContains(entry.NewValue, "ES0000004321")

	raw, err := json.Marshal(entry)
	s.Require().NoError(err)
	s.Contains(string(raw), models.MaskedValue)
	s.NotContains(string(raw), entry.NewValue)

	review, err := s.svc.ApproveAll(s.ctx, s.admin, res.ChangeRequest.ID)
	s.Require().NoError(err)
	s.Require().Len(review.Applied, 1)
	s.Equal("****4321", review.Applied[0].After)

	stored := s.reload(c.ID)
	s.Equal("4321", stored.AccountLast4)
	plain, err := s.cipher.Open(stored.AccountNumberEnc)
	s.Require().NoError(err)
	s.Equal("ES0000004321", plain)
}
