package service

import (
	"context"
	"errors"
	"time"

	"github.com/fitstudio/staff-console/internal/apperr"
	"github.com/fitstudio/staff-console/internal/lifecycle"
	"github.com/fitstudio/staff-console/internal/models"
)

// =============================================================================
// Document verification
// =============================================================================

func (s *WorkflowSuite) TestSetVerification() {
	c := s.seedCoach()
	docs := s.seedDocuments(c.ID, false)

	s.Run("verify", func() {
		d, err := s.svc.SetVerification(s.ctx, s.admin, docs[0].ID, true, "")
		s.Require().NoError(err)
		s.True(d.Verified)
		s.Require().NotNil(d.VerifiedBy)
		s.Equal(s.admin.ID, *d.VerifiedBy)
		s.True(d.VerifiedAt.Equal(s.now))
	})

	s.Run("verifying again is a no-op", func() {
		verifiedAt := s.now
		s.now = s.now.Add(time.Hour)
		defer func() { s.now = verifiedAt }()

		d, err := s.svc.SetVerification(s.ctx, s.admin, docs[0].ID, true, "")
		s.Require().NoError(err)
		s.True(d.Verified)
		s.True(d.VerifiedAt.Equal(verifiedAt))
		s.Len(s.auditActions(c.ID), 1)
	})

	s.Run("an unreviewed document can be rejected without notes", func() {
		d, err := s.svc.SetVerification(s.ctx, s.admin, docs[1].ID, false, "")
		s.Require().NoError(err)
		s.False(d.Verified)
		s.NotNil(d.ReviewedAt)
	})

	s.Run("revoking needs notes", func() {
		_, err := s.svc.SetVerification(s.ctx, s.admin, docs[0].ID, false, "  ")
		s.requireCode(err, apperr.CodeValidation)

		d, err := s.svc.SetVerification(s.ctx, s.admin, docs[0].ID, false, "caducado")
		s.Require().NoError(err)
		s.False(d.Verified)
		s.Nil(d.VerifiedBy)
		s.Equal("caducado", d.RejectionNotes)

		_, err = s.svc.SetVerification(s.ctx, s.admin, docs[0].ID, false, "caducado")
		s.Require().NoError(err)
		s.Len(s.auditActions(c.ID), 3, "same rejection twice is recorded once")
	})

	s.Run("rejecting a reviewed document again needs notes", func() {
		_, err := s.svc.SetVerification(s.ctx, s.admin, docs[1].ID, false, "")
		s.requireCode(err, apperr.CodeValidation)
	})

	s.Run("unknown document", func() {
		_, err := s.svc.SetVerification(s.ctx, s.admin, "missing", true, "")
		s.requireCode(err, apperr.CodeNotFound)
	})

	entries, err := s.store.ListAudit(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Len(entries, 3)
	for _, e := range entries {
		s.Equal(models.ActionDocumentVerification, e.Action)
	}
	s.Equal("caducado", entries[2].Comments)
	s.Equal([]models.FieldChange{
		{Field: "reviewed_at", Before: "", After: "2026-03-10T12:00:00Z"},
	}, []models.FieldChange(entries[1].ChangedFields))
	for _, ch := range entries[2].ChangedFields {
		s.NotEqual(ch.Before, ch.After)
	}
}

type stubPresigner struct {
	fail map[string]bool
}

func (p stubPresigner) PresignGetObject(_ context.Context, key string, ttl time.Duration) (string, error) {
	if p.fail[key] {
		return "", errors.New("signing failed")
	}
	return "https://files.example.com/" + key + "?ttl=" + ttl.String(), nil
}

func (s *WorkflowSuite) TestListDocumentsMarksLatestUpload() {
	c := s.seedCoach()
	docs := s.seedDocuments(c.ID, false)
	newer := &models.Document{
		ID:        "doc-newer",
		CoachID:   c.ID,
		Type:      docs[0].Type,
		FileKey:   "coaches/" + c.ID + "/again",
		CreatedAt: s.now,
	}
	s.Require().NoError(s.store.CreateDocument(s.ctx, newer))

	s.svc.presigner = stubPresigner{fail: map[string]bool{docs[1].FileKey: true}}
	s.svc.urlTTL = 10 * time.Minute

	views, err := s.svc.ListDocuments(s.ctx, c.ID)
	s.Require().NoError(err)
	s.Len(views, len(docs)+1)

	byID := map[string]DocumentView{}
	for _, v := range views {
		byID[v.ID] = v
	}
	s.True(byID["doc-newer"].Latest)
	s.False(byID[docs[0].ID].Latest)
	s.True(byID[docs[1].ID].Latest)
	s.Equal("https://files.example.com/"+newer.FileKey+"?ttl=10m0s", byID["doc-newer"].ViewURL)
	s.Empty(byID[docs[1].ID].ViewURL, "a signing failure leaves the url out")

	_, err = s.svc.ListDocuments(s.ctx, "COA00NOPE0")
	s.requireCode(err, apperr.CodeNotFound)
}

// =============================================================================
// Contracts
// =============================================================================

func (s *WorkflowSuite) TestSetCurrentContract() {
	c := s.seedCoach()
	first := s.seedContract(c.ID, true, true)
	second := s.seedContract(c.ID, true, false)

	ct, err := s.svc.SetCurrentContract(s.ctx, s.admin, second.ID)
	s.Require().NoError(err)
	s.True(ct.Vigente)

	contracts, err := s.store.ListContracts(s.ctx, c.ID)
	s.Require().NoError(err)
	for _, k := range contracts {
		s.Equal(k.ID == second.ID, k.Vigente, "contract %s", k.ID)
	}
	s.NotEqual(first.ID, second.ID)
	s.Equal([]string{models.ActionContractMadeCurrent}, s.auditActions(c.ID))

	s.Run("the current contract is a no-op", func() {
		_, err := s.svc.SetCurrentContract(s.ctx, s.admin, second.ID)
		s.Require().NoError(err)
		s.Len(s.auditActions(c.ID), 1)
	})

	s.Run("unknown contract", func() {
		_, err := s.svc.SetCurrentContract(s.ctx, s.admin, "missing")
		s.requireCode(err, apperr.CodeNotFound)
	})
}

// =============================================================================
// Listings
// =============================================================================

func (s *WorkflowSuite) TestListCoachesWithChecklists() {
	ready := s.seedReadyCoach()
	bare := s.seedCoach(func(c *models.Coach) { c.Bio = "" })
	s.seedCoach(withStatus(models.CoachStatusActive))

	pending, err := s.svc.ListCoaches(s.ctx, models.CoachStatusPending)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)

	byID := map[string]CoachWithChecklist{}
	for _, row := range pending {
		byID[row.ID] = row
	}
	s.True(byID[ready.ID].Checklist.Ready())
	s.Empty(byID[ready.ID].Failing)
	s.Contains(byID[bare.ID].Failing, lifecycle.ItemProfileComplete)
	s.False(byID[bare.ID].Checklist.ProfileComplete)

	all, err := s.svc.ListCoaches(s.ctx, "")
	s.Require().NoError(err)
	s.Len(all, 3)

	_, err = s.svc.ListCoaches(s.ctx, "archived")
	s.requireCode(err, apperr.CodeValidation)

	_, err = ParseStatusFilter("Paused")
	s.requireCode(err, apperr.CodeValidation)
	st, err := ParseStatusFilter(" Active ")
	s.Require().NoError(err)
	s.Equal(models.CoachStatusActive, st)
}

func (s *WorkflowSuite) TestChecklistUnknownCoach() {
	_, err := s.svc.Checklist(s.ctx, "COA00NOPE0")
	s.requireCode(err, apperr.CodeNotFound)
}
