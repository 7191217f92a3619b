package service

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/fitstudio/staff-console/internal/apperr"
	"github.com/fitstudio/staff-console/internal/audit"
	"github.com/fitstudio/staff-console/internal/lifecycle"
	"github.com/fitstudio/staff-console/internal/models"
	"github.com/fitstudio/staff-console/internal/notify"
	"github.com/fitstudio/staff-console/internal/store"
	"github.com/fitstudio/staff-console/internal/utils"
)

// Result reports a workflow decision. Changed is false for no-ops such as
// approving a coach that is already active.
type Result struct {
	Coach   *models.Coach `json:"coach"`
	Changed bool          `json:"changed"`
	Message string        `json:"message"`
	Warning string        `json:"warning,omitempty"`
}

// Approve moves a pending coach to active once every blocking checklist item
// passes. The checklist is rebuilt under the coach row lock.
func (s *Service) Approve(ctx context.Context, actor Actor, coachID string) (res *Result, err error) {
	start := time.Now()
	defer func() { err = s.finish("approve", start, res != nil && res.Changed, err) }()

	res = &Result{}
	err = s.store.RunInTx(ctx, func(tx store.Repository) error {
		coach, err := tx.GetCoachForUpdate(ctx, coachID)
		if err != nil {
			return translate(err, "coach")
		}
		if coach.Status != models.CoachStatusPending && coach.Status != models.CoachStatusActive {
			return invalidTransition(coach.Status, models.CoachStatusActive)
		}
		snap, err := loadSnapshot(ctx, tx, coach)
		if err != nil {
			return err
		}
		now := s.now()
		cl := lifecycle.BuildChecklist(snap, now)
		if failing := cl.Failing(); len(failing) > 0 {
			for _, it := range failing {
				s.metrics.IncChecklistBlocked(string(it))
			}
			return apperr.BusinessRule(apperr.RuleChecklistIncomplete,
				"approval checklist incomplete", blockedOn(cl, now))
		}
		if coach.Status == models.CoachStatusActive {
			res.Coach = coach
			res.Message = "coach already active, no changes"
			return nil
		}

		approvedAt := now.UTC()
		actorID := actor.ID
		before := *coach
		coach.Status = models.CoachStatusActive
		coach.Active = true
		coach.ApprovedAt = &approvedAt
		coach.ApprovedBy = &actorID
		if err := tx.UpdateCoachFields(ctx, coach.ID, map[string]interface{}{
			"status":      coach.Status,
			"active":      true,
			"approved_at": coach.ApprovedAt,
			"approved_by": coach.ApprovedBy,
		}); err != nil {
			return err
		}
		if _, err := s.recorder.Record(ctx, tx, audit.Entry{
			ActorID: actor.ID,
			Action:  models.ActionCoachApproved,
			CoachID: coach.ID,
			Changes: written(
				models.FieldChange{Field: string(lifecycle.FieldStatus), Before: string(before.Status), After: string(coach.Status)},
				models.FieldChange{Field: "active", Before: strconv.FormatBool(before.Active), After: strconv.FormatBool(coach.Active)},
				models.FieldChange{Field: "approved_at", Before: formatTime(before.ApprovedAt), After: formatTime(coach.ApprovedAt)},
				models.FieldChange{Field: "approved_by", Before: deref(before.ApprovedBy), After: deref(coach.ApprovedBy)},
			),
		}); err != nil {
			return err
		}
		res.Coach = coach
		res.Changed = true
		res.Message = "coach approved"
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Changed {
		res.Warning = s.dispatch(ctx, coachEvent(notify.TypeApproval, res.Coach, actor.ID))
	}
	return res, nil
}

// Reject closes a pending application. motivo is required and travels with
// the rejection notification.
func (s *Service) Reject(ctx context.Context, actor Actor, coachID, motivo string) (res *Result, err error) {
	start := time.Now()
	defer func() { err = s.finish("reject", start, res != nil && res.Changed, err) }()

	motivo = utils.SanitizeText(motivo)
	if motivo == "" {
		return nil, apperr.Validation("rejection reason required", "motivo: must not be empty")
	}

	res = &Result{}
	err = s.store.RunInTx(ctx, func(tx store.Repository) error {
		coach, err := tx.GetCoachForUpdate(ctx, coachID)
		if err != nil {
			return translate(err, "coach")
		}
		switch coach.Status {
		case models.CoachStatusRejected:
			res.Coach = coach
			res.Message = "coach already rejected, no changes"
			return nil
		case models.CoachStatusPending:
		default:
			return invalidTransition(coach.Status, models.CoachStatusRejected)
		}

		rejectedAt := s.now().UTC()
		actorID := actor.ID
		before := *coach
		coach.Status = models.CoachStatusRejected
		coach.Active = false
		coach.RejectionReason = motivo
		coach.RejectedAt = &rejectedAt
		coach.RejectedBy = &actorID
		if err := tx.UpdateCoachFields(ctx, coach.ID, map[string]interface{}{
			"status":           coach.Status,
			"active":           false,
			"rejection_reason": motivo,
			"rejected_at":      coach.RejectedAt,
			"rejected_by":      coach.RejectedBy,
		}); err != nil {
			return err
		}
		if _, err := s.recorder.Record(ctx, tx, audit.Entry{
			ActorID: actor.ID,
			Action:  models.ActionCoachRejected,
			CoachID: coach.ID,
			Changes: written(
				models.FieldChange{Field: string(lifecycle.FieldStatus), Before: string(before.Status), After: string(coach.Status)},
				models.FieldChange{Field: "active", Before: strconv.FormatBool(before.Active), After: strconv.FormatBool(coach.Active)},
				models.FieldChange{Field: "rejection_reason", Before: before.RejectionReason, After: coach.RejectionReason},
				models.FieldChange{Field: "rejected_at", Before: formatTime(before.RejectedAt), After: formatTime(coach.RejectedAt)},
				models.FieldChange{Field: "rejected_by", Before: deref(before.RejectedBy), After: deref(coach.RejectedBy)},
			),
			Comments: motivo,
		}); err != nil {
			return err
		}
		res.Coach = coach
		res.Changed = true
		res.Message = "coach rejected"
		return nil
	})
	if err != nil {
		return nil, err
	}
	if res.Changed {
		ev := coachEvent(notify.TypeRejection, res.Coach, actor.ID)
		ev.Motivo = motivo
		res.Warning = s.dispatch(ctx, ev)
	}
	return res, nil
}

// RequestCorrections asks the coach to fix the listed items. Nothing on the
// coach changes; the request is audited and notified.
func (s *Service) RequestCorrections(ctx context.Context, actor Actor, coachID string, items []models.Correction) (res *Result, err error) {
	start := time.Now()
	defer func() { err = s.finish("request_corrections", start, res != nil && res.Changed, err) }()

	clean, err := cleanCorrections(items)
	if err != nil {
		return nil, err
	}

	res = &Result{}
	err = s.store.RunInTx(ctx, func(tx store.Repository) error {
		coach, err := tx.GetCoachForUpdate(ctx, coachID)
		if err != nil {
			return translate(err, "coach")
		}
		if _, err := s.recorder.Record(ctx, tx, audit.Entry{
			ActorID: actor.ID,
			Action:  models.ActionCorrectionsRequested,
			CoachID: coach.ID,
			Details: map[string]interface{}{"correcciones": clean},
		}); err != nil {
			return err
		}
		res.Coach = coach
		res.Changed = true
		res.Message = "corrections requested"
		return nil
	})
	if err != nil {
		return nil, err
	}
	ev := coachEvent(notify.TypeCorrections, res.Coach, actor.ID)
	ev.Corrections = clean
	res.Warning = s.dispatch(ctx, ev)
	return res, nil
}

func cleanCorrections(items []models.Correction) ([]models.Correction, error) {
	if len(items) == 0 {
		return nil, apperr.Validation("at least one correction is required", "correcciones: must not be empty")
	}
	var problems []string
	out := make([]models.Correction, 0, len(items))
	for i, it := range items {
		c := models.Correction{
			Campo:   strings.TrimSpace(it.Campo),
			Mensaje: utils.SanitizeText(it.Mensaje),
		}
		if c.Campo == "" {
			problems = append(problems, itemProblem(i, "campo"))
		}
		if c.Mensaje == "" {
			problems = append(problems, itemProblem(i, "mensaje"))
		}
		out = append(out, c)
	}
	if len(problems) > 0 {
		return nil, apperr.Validation("invalid corrections", problems...)
	}
	return out, nil
}

func itemProblem(i int, field string) string {
	return "correcciones[" + strconv.Itoa(i) + "]." + field + ": must not be empty"
}

func invalidTransition(from, to models.CoachStatus) error {
	return apperr.BusinessRule(apperr.RuleInvalidTransition,
		"cannot move coach from "+string(from)+" to "+string(to),
		map[string]string{"from": string(from), "to": string(to)})
}

// written keeps the columns whose value actually moved.
func written(changes ...models.FieldChange) []models.FieldChange {
	out := make([]models.FieldChange, 0, len(changes))
	for _, ch := range changes {
		if ch.Before != ch.After {
			out = append(out, ch)
		}
	}
	return out
}
