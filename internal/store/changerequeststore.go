package store

import (
	"context"
	"time"

	"github.com/fitstudio/staff-console/internal/models"
	"gorm.io/gorm"
)

var openChangeRequestStatuses = []models.ChangeRequestStatus{
	models.ChangeRequestPending,
	models.ChangeRequestPartiallyReviewed,
}

func orderedFields(db *gorm.DB) *gorm.DB {
	return db.Order("position asc, id asc")
}

// CreateChangeRequest inserts the request and its fields in one statement batch.
func (s *Store) CreateChangeRequest(ctx context.Context, cr *models.ChangeRequest) error {
	return mapErr(s.DB.WithContext(ctx).Create(cr).Error)
}

func (s *Store) GetChangeRequest(ctx context.Context, id string) (*models.ChangeRequest, error) {
	var cr models.ChangeRequest
	if err := s.DB.WithContext(ctx).Preload("Fields", orderedFields).First(&cr, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &cr, nil
}

func (s *Store) GetChangeRequestForUpdate(ctx context.Context, id string) (*models.ChangeRequest, error) {
	var cr models.ChangeRequest
	if err := s.forUpdate(ctx).First(&cr, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	if err := s.DB.WithContext(ctx).Scopes(orderedFields).Where("change_request_id = ?", cr.ID).Find(&cr.Fields).Error; err != nil {
		return nil, mapErr(err)
	}
	return &cr, nil
}

func (s *Store) GetOpenChangeRequest(ctx context.Context, coachID string) (*models.ChangeRequest, error) {
	var cr models.ChangeRequest
	err := s.forUpdate(ctx).
		Where("coach_id = ? AND status IN ?", coachID, openChangeRequestStatuses).
		Order("created_at desc").
		First(&cr).Error
	if err != nil {
		return nil, mapErr(err)
	}
	if err := s.DB.WithContext(ctx).Scopes(orderedFields).Where("change_request_id = ?", cr.ID).Find(&cr.Fields).Error; err != nil {
		return nil, mapErr(err)
	}
	return &cr, nil
}

func (s *Store) ListChangeRequests(ctx context.Context, openOnly bool) ([]*models.ChangeRequest, error) {
	var res []*models.ChangeRequest
	q := s.DB.WithContext(ctx).Preload("Fields", orderedFields).Order("created_at desc")
	if openOnly {
		q = q.Where("status IN ?", openChangeRequestStatuses)
	}
	if err := q.Find(&res).Error; err != nil {
		return nil, mapErr(err)
	}
	return res, nil
}

func (s *Store) AddChangeRequestField(ctx context.Context, f *models.ChangeRequestField) error {
	return mapErr(s.DB.WithContext(ctx).Create(f).Error)
}

func (s *Store) UpdateChangeRequestField(ctx context.Context, id uint, fields map[string]interface{}) error {
	return s.updateFields(ctx, &models.ChangeRequestField{}, fields, "id = ?", id)
}

func (s *Store) UpdateChangeRequest(ctx context.Context, id string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	return s.updateFields(ctx, &models.ChangeRequest{}, fields, "id = ?", id)
}
