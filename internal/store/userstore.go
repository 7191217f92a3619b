package store

import (
	"context"
	"strings"
	"time"

	"github.com/fitstudio/staff-console/internal/models"
	"github.com/fitstudio/staff-console/internal/sentinel"
	"github.com/fitstudio/staff-console/internal/utils"
	"gorm.io/gorm"
)

/* ------------------ Accounts ------------------ */

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	return mapErr(s.DB.WithContext(ctx).Create(u).Error)
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).Where("email = ?", strings.ToLower(email)).First(&u).Error; err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	var u models.User
	if err := s.DB.WithContext(ctx).First(&u, "id = ?", id).Error; err != nil {
		return nil, mapErr(err)
	}
	return &u, nil
}

/* ------------------ Refresh tokens ------------------ */

// SaveRefreshToken stores a token (hashed) and expiry
func (s *Store) SaveRefreshToken(ctx context.Context, userID, plainToken string, expiresAt time.Time) error {
	rt := models.RefreshToken{
		ID:        utils.GenerateID(),
		UserID:    userID,
		TokenHash: utils.HashToken(plainToken),
		IssuedAt:  time.Now(),
		ExpiresAt: expiresAt,
	}
	return mapErr(s.DB.WithContext(ctx).Create(&rt).Error)
}

// FindRefreshToken returns the token row if valid and not revoked
func (s *Store) FindRefreshToken(ctx context.Context, plainToken string) (*models.RefreshToken, error) {
	var rt models.RefreshToken
	err := s.DB.WithContext(ctx).
		Where("token_hash = ? AND revoked = false AND expires_at > ?", utils.HashToken(plainToken), time.Now()).
		First(&rt).Error
	if err != nil {
		return nil, mapErr(err)
	}
	return &rt, nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, plainToken string) error {
	return mapErr(s.DB.WithContext(ctx).Model(&models.RefreshToken{}).
		Where("token_hash = ?", utils.HashToken(plainToken)).
		Updates(map[string]interface{}{"revoked": true}).Error)
}

// RotateRefreshToken revokes the old token and issues a new one atomically.
func (s *Store) RotateRefreshToken(ctx context.Context, oldPlain, newPlain string, newExpiry time.Time) error {
	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var old models.RefreshToken
		err := tx.Where("token_hash = ? AND revoked = false AND expires_at > ?", utils.HashToken(oldPlain), time.Now()).
			First(&old).Error
		if err != nil {
			return mapErr(err)
		}
		res := tx.Model(&models.RefreshToken{}).Where("id = ? AND revoked = false", old.ID).Update("revoked", true)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return sentinel.ErrInvalidState
		}
		return tx.Create(&models.RefreshToken{
			ID:        utils.GenerateID(),
			UserID:    old.UserID,
			TokenHash: utils.HashToken(newPlain),
			IssuedAt:  time.Now(),
			ExpiresAt: newExpiry,
		}).Error
	})
}
