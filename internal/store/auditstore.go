package store

import (
	"context"

	"github.com/fitstudio/staff-console/internal/models"
)

// AppendAudit inserts an entry. Entries are never updated or deleted; the
// model hooks reject both.
func (s *Store) AppendAudit(ctx context.Context, e *models.AuditLog) error {
	return mapErr(s.DB.WithContext(ctx).Create(e).Error)
}

func (s *Store) ListAudit(ctx context.Context, coachID string) ([]*models.AuditLog, error) {
	var res []*models.AuditLog
	err := s.DB.WithContext(ctx).Where("coach_id = ?", coachID).Order("created_at asc").Find(&res).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return res, nil
}
