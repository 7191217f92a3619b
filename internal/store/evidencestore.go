package store

import (
	"context"
	"time"

	"github.com/fitstudio/staff-console/internal/models"
	"gorm.io/gorm"
)

/* ------------------ Documents ------------------ */

func (s *Store) CreateDocument(ctx context.Context, d *models.Document) error {
	return mapErr(s.DB.WithContext(ctx).Create(d).Error)
}

func (s *Store) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	var d models.Document
	if err := s.DB.WithContext(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

func (s *Store) GetDocumentForUpdate(ctx context.Context, id string) (*models.Document, error) {
	var d models.Document
	if err := s.forUpdate(ctx).First(&d, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &d, nil
}

func (s *Store) ListDocuments(ctx context.Context, coachID string) ([]*models.Document, error) {
	var res []*models.Document
	err := s.DB.WithContext(ctx).Where("coach_id = ?", coachID).Order("created_at asc").Find(&res).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return res, nil
}

func (s *Store) UpdateDocumentFields(ctx context.Context, id string, fields map[string]interface{}) error {
	fields["updated_at"] = time.Now()
	return s.updateFields(ctx, &models.Document{}, fields, "id = ?", id)
}

/* ------------------ Certifications ------------------ */

func (s *Store) CreateCertification(ctx context.Context, c *models.Certification) error {
	return mapErr(s.DB.WithContext(ctx).Create(c).Error)
}

func (s *Store) ListCertifications(ctx context.Context, coachID string) ([]*models.Certification, error) {
	var res []*models.Certification
	err := s.DB.WithContext(ctx).Where("coach_id = ?", coachID).Order("obtained_at asc").Find(&res).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return res, nil
}

/* ------------------ Contracts ------------------ */

func (s *Store) CreateContract(ctx context.Context, c *models.Contract) error {
	return mapErr(s.DB.WithContext(ctx).Create(c).Error)
}

func (s *Store) GetContractForUpdate(ctx context.Context, id string) (*models.Contract, error) {
	var c models.Contract
	if err := s.forUpdate(ctx).First(&c, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &c, nil
}

func (s *Store) ListContracts(ctx context.Context, coachID string) ([]*models.Contract, error) {
	var res []*models.Contract
	err := s.DB.WithContext(ctx).Where("coach_id = ?", coachID).Order("created_at asc").Find(&res).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return res, nil
}

// SetCurrentContract clears vigente on the coach's other contracts before
// setting it on contractID, so the partial unique index never trips.
func (s *Store) SetCurrentContract(ctx context.Context, coachID, contractID string) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		now := time.Now()
		if err := tx.Model(&models.Contract{}).
			Where("coach_id = ? AND vigente = true AND id <> ?", coachID, contractID).
			Updates(map[string]interface{}{"vigente": false, "updated_at": now}).Error; err != nil {
			return mapErr(err)
		}
		return s.withDB(tx).updateFields(ctx, &models.Contract{}, map[string]interface{}{
			"vigente":    true,
			"updated_at": now,
		}, "id = ? AND coach_id = ?", contractID, coachID)
	})
}
