package store

import (
	"context"
	"strings"
	"time"

	"github.com/fitstudio/staff-console/internal/models"
)

func (s *Store) CreateCoach(ctx context.Context, c *models.Coach) error {
	return mapErr(s.DB.WithContext(ctx).Create(c).Error)
}

func (s *Store) GetCoach(ctx context.Context, id string) (*models.Coach, error) {
	var c models.Coach
	if err := s.DB.WithContext(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

// GetCoachForUpdate takes a row lock so concurrent workflow actions on the
// same coach serialize.
func (s *Store) GetCoachForUpdate(ctx context.Context, id string) (*models.Coach, error) {
	var c models.Coach
	if err := s.forUpdate(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (s *Store) GetCoachByUserID(ctx context.Context, userID string) (*models.Coach, error) {
	var c models.Coach
	if err := s.DB.WithContext(ctx).First(&c, "user_id = ?", userID).Error; err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (s *Store) GetCoachByEmail(ctx context.Context, email string) (*models.Coach, error) {
	var c models.Coach
	err := s.DB.WithContext(ctx).
		Where("email = ?", strings.ToLower(email)).
		Order("created_at desc").
		First(&c).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (s *Store) ListCoaches(ctx context.Context, status models.CoachStatus) ([]*models.Coach, error) {
	var res []*models.Coach
	q := s.DB.WithContext(ctx).Order("created_at desc")
	if status != "" {
		q = q.Where("status = ?", status)
	}
	if err := q.Find(&res).Error; err != nil {
		return nil, mapErr(err)
	}
	return res, nil
}

func (s *Store) UpdateCoachFields(ctx context.Context, id string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	return s.updateFields(ctx, &models.Coach{}, fields, "id = ?", id)
}
