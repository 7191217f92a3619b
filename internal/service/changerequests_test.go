package service

import (
	"github.com/fitstudio/staff-console/internal/apperr"
	"github.com/fitstudio/staff-console/internal/lifecycle"
	"github.com/fitstudio/staff-console/internal/models"
)

// =============================================================================
// Change request review
// =============================================================================

// openRequest queues bank_name, account_holder and birth_date changes for an
// active coach.
func (s *WorkflowSuite) openRequest() (*models.Coach, *models.ChangeRequest) {
	c := s.seedCoach(withStatus(models.CoachStatusActive), linkedTo("USR00COACH"))
	res, err := s.svc.SubmitCoachEdit(s.ctx, s.coachActor(c), s.patch(map[lifecycle.Field]string{
		lifecycle.FieldBankName:      "Banco Sur",
		lifecycle.FieldAccountHolder: "Lucia Ferrer Soto",
		lifecycle.FieldBirthDate:     "1990-06-01",
	}))
	s.Require().NoError(err)
	s.Require().NotNil(res.ChangeRequest)
	s.Require().Len(res.ChangeRequest.Fields, 3)
	return c, res.ChangeRequest
}

func (s *WorkflowSuite) TestApproveAllIsIdempotent() {
	c, cr := s.openRequest()

	first, err := s.svc.ApproveAll(s.ctx, s.admin, cr.ID)
	s.Require().NoError(err)
	s.True(first.Changed)
	s.Equal(models.ChangeRequestApproved, first.Request.Status)
	s.Len(first.Applied, 3)

	stored := s.reload(c.ID)
	s.Equal("Banco Sur", stored.BankName)
	s.Equal("Lucia Ferrer Soto", stored.AccountHolder)
	s.Equal("1990-06-01", stored.BirthDate.Format("2006-01-02"))
	auditsAfterFirst := len(s.auditActions(c.ID))

	second, err := s.svc.ApproveAll(s.ctx, s.admin, cr.ID)
	s.Require().NoError(err)
	s.False(second.Changed)
	s.Equal("nothing pending, no changes", second.Message)
	s.Len(s.auditActions(c.ID), auditsAfterFirst)
}

func (s *WorkflowSuite) TestAdjudicatePartially() {
	c, cr := s.openRequest()

	res, err := s.svc.Adjudicate(s.ctx, s.admin, cr.ID,
		[]string{"bank_name"}, []string{"birth_date"}, "fecha sin justificar")
	s.Require().NoError(err)
	s.True(res.Changed)
	s.Equal(models.ChangeRequestPartiallyReviewed, res.Request.Status)
	s.Require().Len(res.Applied, 1)
	s.Equal("bank_name", res.Applied[0].Field)

	stored := s.reload(c.ID)
	s.Equal("Banco Sur", stored.BankName)
	s.Equal("Lucia Ferrer", stored.AccountHolder)
	s.Equal("1990-05-01", stored.BirthDate.Format("2006-01-02"))

	got, err := s.svc.GetChangeRequest(s.ctx, cr.ID)
	s.Require().NoError(err)
	statuses := map[string]models.FieldReviewStatus{}
	for _, f := range got.Fields {
		statuses[f.Field] = f.Status
	}
	s.Equal(map[string]models.FieldReviewStatus{
		"bank_name":      models.FieldApproved,
		"account_holder": models.FieldPending,
		"birth_date":     models.FieldRejected,
	}, statuses)
	s.Nil(got.ResolvedAt)

	s.Run("a resolved field cannot be decided again", func() {
		_, err := s.svc.Adjudicate(s.ctx, s.admin, cr.ID, []string{"birth_date"}, nil, "")
		s.requireRule(err, apperr.RuleInvalidState)
	})

	s.Run("the last decision closes the request", func() {
		res, err := s.svc.Adjudicate(s.ctx, s.admin, cr.ID, nil, []string{"account_holder"}, "")
		s.Require().NoError(err)
		s.Equal(models.ChangeRequestResolved, res.Request.Status)
		s.NotNil(res.Request.ResolvedAt)

		open, err := s.svc.ListChangeRequests(s.ctx, true)
		s.Require().NoError(err)
		s.Empty(open)
	})
}

func (s *WorkflowSuite) TestReviewErrors() {
	s.Run("unknown request", func() {
		_, err := s.svc.ApproveAll(s.ctx, s.admin, "00000000-0000-0000-0000-000000000000")
		s.requireCode(err, apperr.CodeNotFound)
	})

	s.Run("unknown action", func() {
		_, cr := s.openRequest()
		_, err := s.svc.ReviewChangeRequest(s.ctx, s.admin, Review{RequestID: cr.ID, Action: "approve_some"})
		s.requireCode(err, apperr.CodeValidation)
	})
}
