package service

import (
	"context"
	"time"

	"github.com/fitstudio/staff-console/internal/apperr"
	"github.com/fitstudio/staff-console/internal/audit"
	"github.com/fitstudio/staff-console/internal/lifecycle"
	"github.com/fitstudio/staff-console/internal/models"
	"github.com/fitstudio/staff-console/internal/store"
	"github.com/fitstudio/staff-console/internal/utils"
)

// Review is one administrator decision on a change request.
type Review struct {
	RequestID string
	Action    lifecycle.ReviewAction
	Approved  []string
	Rejected  []string
	Comments  string
}

type ReviewResult struct {
	Request *models.ChangeRequest `json:"request"`
	Changed bool                  `json:"changed"`
	Applied []models.FieldChange  `json:"applied"`
	Message string                `json:"message"`
}

func (s *Service) ListChangeRequests(ctx context.Context, openOnly bool) ([]*models.ChangeRequest, error) {
	out, err := s.store.ListChangeRequests(ctx, openOnly)
	if err != nil {
		return nil, translate(err, "change requests")
	}
	return out, nil
}

func (s *Service) GetChangeRequest(ctx context.Context, id string) (*models.ChangeRequest, error) {
	cr, err := s.store.GetChangeRequest(ctx, id)
	if err != nil {
		return nil, translate(err, "change request")
	}
	return cr, nil
}

// ApproveAll approves every pending entry of a request.
func (s *Service) ApproveAll(ctx context.Context, actor Actor, requestID string) (*ReviewResult, error) {
	return s.ReviewChangeRequest(ctx, actor, Review{RequestID: requestID, Action: lifecycle.ReviewApproveAll})
}

// RejectAll rejects every pending entry of a request.
func (s *Service) RejectAll(ctx context.Context, actor Actor, requestID, comments string) (*ReviewResult, error) {
	return s.ReviewChangeRequest(ctx, actor, Review{RequestID: requestID, Action: lifecycle.ReviewRejectAll, Comments: comments})
}

// Adjudicate resolves the named fields and leaves the rest pending.
func (s *Service) Adjudicate(ctx context.Context, actor Actor, requestID string, approved, rejected []string, comments string) (*ReviewResult, error) {
	return s.ReviewChangeRequest(ctx, actor, Review{
		RequestID: requestID,
		Action:    lifecycle.ReviewAdjudicate,
		Approved:  approved,
		Rejected:  rejected,
		Comments:  comments,
	})
}

// ReviewChangeRequest resolves entries of a change request. Approved values
// are written to the coach in the same transaction as the entry statuses and
// the audit entry. A review that resolves nothing is a no-op.
func (s *Service) ReviewChangeRequest(ctx context.Context, actor Actor, r Review) (res *ReviewResult, err error) {
	start := time.Now()
	defer func() { err = s.finish("review_change_request", start, res != nil && res.Changed, err) }()

	if !r.Action.Valid() {
		return nil, apperr.Validation("unknown review action", "accion: must be approve_all, reject_all or adjudicate")
	}
	comments := utils.SanitizeText(r.Comments)

	res = &ReviewResult{Applied: []models.FieldChange{}}
	err = s.store.RunInTx(ctx, func(tx store.Repository) error {
		cr, err := tx.GetChangeRequestForUpdate(ctx, r.RequestID)
		if err != nil {
			return translate(err, "change request")
		}
		plan, err := lifecycle.PlanReview(cr.Fields, r.Action, r.Approved, r.Rejected)
		if err != nil {
			return err
		}
		res.Request = cr
		if plan.Empty() {
			res.Message = "nothing pending, no changes"
			return nil
		}

		coach, err := tx.GetCoachForUpdate(ctx, cr.CoachID)
		if err != nil {
			return translate(err, "coach")
		}
		if err := s.openAccount(coach); err != nil {
			return err
		}

		var applied []models.FieldChange
		for _, idx := range plan.Approve {
			entry := cr.Fields[idx]
			after := entry.NewValue
			if entry.Sensitive {
				if after, err = s.cipher.OpenString(entry.NewValue); err != nil {
					return apperr.Wrap(err, apperr.CodeInternal, "could not decrypt pending value")
				}
			}
			f := lifecycle.Field(entry.Field)
			if before := lifecycle.Get(coach, f); before != after {
				applied = append(applied, models.FieldChange{Field: entry.Field, Before: before, After: after})
			}
		}
		if len(applied) > 0 {
			lifecycle.Apply(coach, applied)
			if err := s.sealAccount(coach); err != nil {
				return err
			}
			if err := tx.UpdateCoachFields(ctx, coach.ID, lifecycle.Columns(coach, applied)); err != nil {
				return err
			}
		}

		now := s.now().UTC()
		actorID := actor.ID
		mark := func(idxs []int, st models.FieldReviewStatus) ([]string, error) {
			names := make([]string, 0, len(idxs))
			for _, idx := range idxs {
				entry := &cr.Fields[idx]
				entry.Status = st
				entry.ReviewedBy = &actorID
				entry.ReviewedAt = &now
				if err := tx.UpdateChangeRequestField(ctx, entry.ID, map[string]interface{}{
					"status":      st,
					"reviewed_by": entry.ReviewedBy,
					"reviewed_at": entry.ReviewedAt,
				}); err != nil {
					return nil, err
				}
				names = append(names, entry.Field)
			}
			return names, nil
		}
		approvedNames, err := mark(plan.Approve, models.FieldApproved)
		if err != nil {
			return err
		}
		rejectedNames, err := mark(plan.Reject, models.FieldRejected)
		if err != nil {
			return err
		}

		cr.Status = lifecycle.DeriveStatus(cr.Fields)
		update := map[string]interface{}{"status": cr.Status}
		if comments != "" {
			cr.Comments = comments
			update["comments"] = comments
		}
		if !cr.Status.Open() {
			cr.ResolvedBy = &actorID
			cr.ResolvedAt = &now
			update["resolved_by"] = cr.ResolvedBy
			update["resolved_at"] = cr.ResolvedAt
		}
		if err := tx.UpdateChangeRequest(ctx, cr.ID, update); err != nil {
			return err
		}

		redacted := lifecycle.Redact(applied)
		if _, err := s.recorder.Record(ctx, tx, audit.Entry{
			ActorID:  actor.ID,
			Action:   models.ActionChangeRequestReview,
			CoachID:  coach.ID,
			Changes:  redacted,
			Comments: comments,
			Details: map[string]interface{}{
				"request_id":      cr.ID,
				"action":          string(r.Action),
				"approved_fields": approvedNames,
				"rejected_fields": rejectedNames,
				"status":          string(cr.Status),
			},
		}); err != nil {
			return err
		}

		res.Changed = true
		res.Applied = redacted
		res.Message = "change request " + string(cr.Status)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}
