package service

import (
	"context"
	"strconv"
	"time"

	"github.com/fitstudio/staff-console/internal/audit"
	"github.com/fitstudio/staff-console/internal/models"
	"github.com/fitstudio/staff-console/internal/store"
)

// SetCurrentContract makes contractID the coach's only vigente contract.
func (s *Service) SetCurrentContract(ctx context.Context, actor Actor, contractID string) (ct *models.Contract, err error) {
	start := time.Now()
	changed := false
	defer func() { err = s.finish("set_current_contract", start, changed, err) }()

	err = s.store.RunInTx(ctx, func(tx store.Repository) error {
		c, err := tx.GetContractForUpdate(ctx, contractID)
		if err != nil {
			return translate(err, "contract")
		}
		if c.Vigente {
			ct = c
			return nil
		}
		// Lock the coach so two admins switching contracts serialize.
		if _, err := tx.GetCoachForUpdate(ctx, c.CoachID); err != nil {
			return translate(err, "coach")
		}
		if err := tx.SetCurrentContract(ctx, c.CoachID, c.ID); err != nil {
			return err
		}
		c.Vigente = true
		if _, err := s.recorder.Record(ctx, tx, audit.Entry{
			ActorID: actor.ID,
			Action:  models.ActionContractMadeCurrent,
			CoachID: c.CoachID,
			Changes: []models.FieldChange{
				{Field: "contract_vigente", Before: "false", After: "true"},
			},
			Details: map[string]interface{}{
				"contract_id": c.ID,
				"signed":      strconv.FormatBool(c.Signed),
			},
		}); err != nil {
			return err
		}
		ct = c
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return ct, nil
}
