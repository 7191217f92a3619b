package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fitstudio/staff-console/internal/apperr"
	"github.com/fitstudio/staff-console/internal/audit"
	"github.com/fitstudio/staff-console/internal/lifecycle"
	"github.com/fitstudio/staff-console/internal/models"
	"github.com/fitstudio/staff-console/internal/sentinel"
	"github.com/fitstudio/staff-console/internal/store"
	"github.com/fitstudio/staff-console/internal/utils"
)

const maxIDAttempts = 5

// EditResult is the outcome of an administrative coach edit. Changes are
// redacted.
type EditResult struct {
	Coach   *models.Coach        `json:"coach"`
	Changes []models.FieldChange `json:"changes"`
	Message string               `json:"message"`
}

// SelfEditResult splits a coach's own edit into what applied directly and
// what waits for review.
type SelfEditResult struct {
	Coach         *models.Coach         `json:"coach"`
	Applied       []models.FieldChange  `json:"applied"`
	Pending       []string              `json:"pending"`
	Withdrawn     []string              `json:"withdrawn"`
	ChangeRequest *models.ChangeRequest `json:"change_request,omitempty"`
}

func invalidStatusFilter(status models.CoachStatus) error {
	return apperr.Validation("invalid status filter", "status: unknown status "+string(status))
}

var requiredOnCreate = []lifecycle.Field{lifecycle.FieldFirstName, lifecycle.FieldLastName, lifecycle.FieldEmail}

// CreateCoach registers a new pending coach from a validated patch. Status is
// owned by the approval workflow and cannot be set here.
func (s *Service) CreateCoach(ctx context.Context, actor Actor, p lifecycle.Patch) (*models.Coach, error) {
	var problems []string
	for _, f := range requiredOnCreate {
		if v, ok := p.Value(f); !ok || v == "" {
			problems = append(problems, string(f)+": required")
		}
	}
	if _, ok := p.Value(lifecycle.FieldStatus); ok {
		problems = append(problems, "status: new coaches always start as pending")
	}
	if len(problems) > 0 {
		return nil, apperr.Validation("invalid coach", problems...)
	}

	coach := &models.Coach{
		Category:    models.CategoryCycling,
		Status:      models.CoachStatusPending,
		Specialties: []string{},
	}
	changes := lifecycle.Diff(coach, p)
	lifecycle.Apply(coach, changes)
	if err := s.sealAccount(coach); err != nil {
		return nil, err
	}

	err := s.store.RunInTx(ctx, func(tx store.Repository) error {
		if _, err := tx.GetCoachByEmail(ctx, coach.Email); err == nil {
			return apperr.BusinessRule(apperr.RuleInvalidState,
				"a coach with this email already exists", map[string]string{"field": string(lifecycle.FieldEmail)})
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}
		if err := s.insertCoach(ctx, tx, coach); err != nil {
			return err
		}
		_, err := s.recorder.Record(ctx, tx, audit.Entry{
			ActorID: actor.ID,
			Action:  models.ActionCoachCreated,
			CoachID: coach.ID,
			Changes: lifecycle.Redact(changes),
		})
		return err
	})
	if err != nil {
		return nil, translate(err, "coach")
	}
	return coach, nil
}

// insertCoach retries on id collisions, which the short prefixed ids make
// possible. Each attempt runs in a nested transaction so a unique violation
// does not abort the caller's transaction on postgres.
func (s *Service) insertCoach(ctx context.Context, tx store.Repository, coach *models.Coach) error {
	for i := 0; i < maxIDAttempts; i++ {
		id, err := s.newCoachID()
		if err != nil {
			return err
		}
		coach.ID = id
		err = tx.RunInTx(ctx, func(attempt store.Repository) error {
			return attempt.CreateCoach(ctx, coach)
		})
		if err == nil {
			return nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return err
		}
	}
	return errors.New("could not allocate a unique coach id")
}

func (s *Service) GetCoach(ctx context.Context, id string) (*models.Coach, error) {
	c, err := s.store.GetCoach(ctx, id)
	if err != nil {
		return nil, translate(err, "coach")
	}
	return c, nil
}

// GetOwnCoach resolves the coach record linked to a coach user.
func (s *Service) GetOwnCoach(ctx context.Context, actor Actor) (*models.Coach, error) {
	c, err := s.store.GetCoachByUserID(ctx, actor.ID)
	if err != nil {
		return nil, translate(err, "coach profile")
	}
	return c, nil
}

func (s *Service) ListAudit(ctx context.Context, coachID string) ([]*models.AuditLog, error) {
	if _, err := s.store.GetCoach(ctx, coachID); err != nil {
		return nil, translate(err, "coach")
	}
	entries, err := s.store.ListAudit(ctx, coachID)
	if err != nil {
		return nil, translate(err, "audit log")
	}
	return entries, nil
}

// UpdateCoach applies an administrative edit. Changes to critical fields
// need confirmed=true; without it the critical fields are reported back and
// nothing is written. A status edit here is an administrative correction and
// may move a coach between any two states.
func (s *Service) UpdateCoach(ctx context.Context, actor Actor, coachID string, p lifecycle.Patch, confirmed bool) (res *EditResult, err error) {
	start := time.Now()
	defer func() { err = s.finish("update_coach", start, res != nil && len(res.Changes) > 0, err) }()

	res = &EditResult{Changes: []models.FieldChange{}}
	err = s.store.RunInTx(ctx, func(tx store.Repository) error {
		coach, err := tx.GetCoachForUpdate(ctx, coachID)
		if err != nil {
			return translate(err, "coach")
		}
		if err := s.openAccount(coach); err != nil {
			return err
		}
		changes := lifecycle.Diff(coach, p)
		if len(changes) == 0 {
			res.Coach = coach
			res.Message = "no changes"
			return nil
		}
		if critical := lifecycle.CriticalChanges(changes); len(critical) > 0 && !confirmed {
			return apperr.BusinessRule(apperr.RuleConfirmationRequired,
				"critical fields changed, resubmit with confirmed=true",
				map[string]interface{}{
					"critical_changes": critical,
					"changes":          lifecycle.Redact(changes),
				})
		}

		lifecycle.Apply(coach, changes)
		if err := s.sealAccount(coach); err != nil {
			return err
		}
		if err := tx.UpdateCoachFields(ctx, coach.ID, lifecycle.Columns(coach, changes)); err != nil {
			return err
		}
		redacted := lifecycle.Redact(changes)
		if _, err := s.recorder.Record(ctx, tx, audit.Entry{
			ActorID: actor.ID,
			Action:  models.ActionCoachUpdated,
			CoachID: coach.ID,
			Changes: redacted,
		}); err != nil {
			return err
		}
		res.Coach = coach
		res.Changes = redacted
		res.Message = "coach updated"
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// SubmitCoachEdit handles a coach editing their own record. Fields the
// coach may edit in the current status apply immediately; protected fields
// on a coach past pending are queued on the open change request.
func (s *Service) SubmitCoachEdit(ctx context.Context, actor Actor, p lifecycle.Patch) (res *SelfEditResult, err error) {
	start := time.Now()
	defer func() {
		changed := res != nil && (len(res.Applied) > 0 || len(res.Pending) > 0 || len(res.Withdrawn) > 0)
		err = s.finish("submit_coach_edit", start, changed, err)
	}()

	var adminOnly []string
	for _, f := range p.Fields() {
		if lifecycle.ClassOf(f) == lifecycle.ClassAdminOnly {
			adminOnly = append(adminOnly, string(f)+": can only be changed by an administrator")
		}
	}
	if len(adminOnly) > 0 {
		return nil, apperr.Validation("fields not editable", adminOnly...)
	}

	res = &SelfEditResult{Applied: []models.FieldChange{}, Pending: []string{}, Withdrawn: []string{}}
	err = s.store.RunInTx(ctx, func(tx store.Repository) error {
		own, err := tx.GetCoachByUserID(ctx, actor.ID)
		if err != nil {
			return translate(err, "coach profile")
		}
		coach, err := tx.GetCoachForUpdate(ctx, own.ID)
		if err != nil {
			return translate(err, "coach profile")
		}
		if err := s.openAccount(coach); err != nil {
			return err
		}

		var direct, queued []models.FieldChange
		diffed := map[string]bool{}
		for _, ch := range lifecycle.Diff(coach, p) {
			diffed[ch.Field] = true
			if lifecycle.IsEditable(lifecycle.Field(ch.Field), actor.Role, coach.Status) {
				direct = append(direct, ch)
			} else {
				queued = append(queued, ch)
			}
		}
		// A protected field sent back at its current value takes back any
		// pending entry for it.
		var unchanged []string
		for _, f := range p.Fields() {
			if !diffed[string(f)] && !lifecycle.IsEditable(f, actor.Role, coach.Status) {
				unchanged = append(unchanged, string(f))
			}
		}

		if len(direct) > 0 {
			lifecycle.Apply(coach, direct)
			if err := s.sealAccount(coach); err != nil {
				return err
			}
			if err := tx.UpdateCoachFields(ctx, coach.ID, lifecycle.Columns(coach, direct)); err != nil {
				return err
			}
			res.Applied = lifecycle.Redact(direct)
			if _, err := s.recorder.Record(ctx, tx, audit.Entry{
				ActorID: actor.ID,
				Action:  models.ActionCoachSelfUpdated,
				CoachID: coach.ID,
				Changes: res.Applied,
			}); err != nil {
				return err
			}
		}

		if len(unchanged) > 0 {
			withdrawn, err := s.withdrawChanges(ctx, tx, actor, coach.ID, unchanged)
			if err != nil {
				return err
			}
			res.Withdrawn = append(res.Withdrawn, withdrawn...)
		}

		if len(queued) > 0 {
			cr, err := s.queueChanges(ctx, tx, actor, coach, queued)
			if err != nil {
				return err
			}
			res.ChangeRequest = cr
			for _, ch := range queued {
				res.Pending = append(res.Pending, ch.Field)
			}
		}
		res.Coach = coach
		return nil
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

// queueChanges adds changes to the coach's open change request, creating one
// when none is open. A field already pending on the request is overwritten
// in place so each field appears once per open request.
func (s *Service) queueChanges(ctx context.Context, tx store.Repository, actor Actor, coach *models.Coach, changes []models.FieldChange) (*models.ChangeRequest, error) {
	cr, err := tx.GetOpenChangeRequest(ctx, coach.ID)
	switch {
	case errors.Is(err, sentinel.ErrNotFound):
		cr = &models.ChangeRequest{
			ID:          utils.GenerateID(),
			CoachID:     coach.ID,
			Status:      models.ChangeRequestPending,
			SubmittedBy: actor.ID,
			Fields:      []models.ChangeRequestField{},
		}
		if err := tx.CreateChangeRequest(ctx, cr); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, err
	}

	for _, ch := range changes {
		entry, err := s.fieldEntry(ch)
		if err != nil {
			return nil, err
		}
		if idx := pendingEntry(cr.Fields, ch.Field); idx >= 0 {
			existing := &cr.Fields[idx]
			if err := tx.UpdateChangeRequestField(ctx, existing.ID, map[string]interface{}{
				"old_value": entry.OldValue,
				"new_value": entry.NewValue,
				"sensitive": entry.Sensitive,
			}); err != nil {
				return nil, err
			}
			existing.OldValue, existing.NewValue, existing.Sensitive = entry.OldValue, entry.NewValue, entry.Sensitive
			continue
		}
		entry.ChangeRequestID = cr.ID
		entry.Position = len(cr.Fields)
		if err := tx.AddChangeRequestField(ctx, &entry); err != nil {
			return nil, err
		}
		cr.Fields = append(cr.Fields, entry)
	}

	cr.Status = lifecycle.DeriveStatus(cr.Fields)
	if err := tx.UpdateChangeRequest(ctx, cr.ID, map[string]interface{}{"status": cr.Status}); err != nil {
		return nil, err
	}

	if _, err := s.recorder.Record(ctx, tx, audit.Entry{
		ActorID: actor.ID,
		Action:  models.ActionChangeRequestOpened,
		CoachID: coach.ID,
		Changes: lifecycle.Redact(changes),
		Details: map[string]interface{}{"request_id": cr.ID},
	}); err != nil {
		return nil, err
	}
	return cr, nil
}

// withdrawChanges resolves the pending entries for the named fields on the
// coach's open change request as withdrawn. It returns the fields it touched.
func (s *Service) withdrawChanges(ctx context.Context, tx store.Repository, actor Actor, coachID string, fields []string) ([]string, error) {
	cr, err := tx.GetOpenChangeRequest(ctx, coachID)
	if errors.Is(err, sentinel.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	actorID := actor.ID
	var withdrawn []string
	for _, name := range fields {
		idx := pendingEntry(cr.Fields, name)
		if idx < 0 {
			continue
		}
		entry := &cr.Fields[idx]
		entry.Status = models.FieldWithdrawn
		entry.ReviewedBy = &actorID
		entry.ReviewedAt = &now
		if err := tx.UpdateChangeRequestField(ctx, entry.ID, map[string]interface{}{
			"status":      entry.Status,
			"reviewed_by": entry.ReviewedBy,
			"reviewed_at": entry.ReviewedAt,
		}); err != nil {
			return nil, err
		}
		withdrawn = append(withdrawn, name)
	}
	if len(withdrawn) == 0 {
		return nil, nil
	}

	cr.Status = lifecycle.DeriveStatus(cr.Fields)
	update := map[string]interface{}{"status": cr.Status}
	if !cr.Status.Open() {
		cr.ResolvedBy = &actorID
		cr.ResolvedAt = &now
		update["resolved_by"] = cr.ResolvedBy
		update["resolved_at"] = cr.ResolvedAt
	}
	if err := tx.UpdateChangeRequest(ctx, cr.ID, update); err != nil {
		return nil, err
	}

	if _, err := s.recorder.Record(ctx, tx, audit.Entry{
		ActorID: actor.ID,
		Action:  models.ActionChangeRequestWithdrawn,
		CoachID: coachID,
		Details: map[string]interface{}{
			"request_id":       cr.ID,
			"withdrawn_fields": withdrawn,
			"status":           string(cr.Status),
		},
	}); err != nil {
		return nil, err
	}
	return withdrawn, nil
}

// fieldEntry builds a pending change-request entry. Sensitive values are
// sealed and the old value is stored masked.
func (s *Service) fieldEntry(ch models.FieldChange) (models.ChangeRequestField, error) {
	entry := models.ChangeRequestField{
		Field:    ch.Field,
		OldValue: ch.Before,
		NewValue: ch.After,
		Status:   models.FieldPending,
	}
	if lifecycle.IsSensitive(lifecycle.Field(ch.Field)) {
		sealed, err := s.cipher.SealString(ch.After)
		if err != nil {
			return entry, apperr.Wrap(err, apperr.CodeInternal, "could not encrypt account number")
		}
		entry.OldValue = utils.MaskAccount(ch.Before)
		entry.NewValue = sealed
		entry.Sensitive = true
	}
	return entry, nil
}

func pendingEntry(fields []models.ChangeRequestField, name string) int {
	for i, f := range fields {
		if f.Field == name && f.Status == models.FieldPending {
			return i
		}
	}
	return -1
}

// ParseStatusFilter accepts an empty filter or a known status.
func ParseStatusFilter(raw string) (models.CoachStatus, error) {
	st := models.CoachStatus(strings.ToLower(strings.TrimSpace(raw)))
	if st != "" && !st.Valid() {
		return "", invalidStatusFilter(st)
	}
	return st, nil
}
