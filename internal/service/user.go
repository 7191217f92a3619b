package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/fitstudio/staff-console/internal/apperr"
	"github.com/fitstudio/staff-console/internal/auth"
	"github.com/fitstudio/staff-console/internal/config"
	"github.com/fitstudio/staff-console/internal/models"
	"github.com/fitstudio/staff-console/internal/sentinel"
	"github.com/fitstudio/staff-console/internal/store"
	"github.com/fitstudio/staff-console/internal/utils"
)

type UserService struct {
	store store.Repository
	cfg   *config.Config
}

func NewUserService(s store.Repository, cfg *config.Config) *UserService {
	return &UserService{store: s, cfg: cfg}
}

// Session is the token pair handed out at sign-in.
type Session struct {
	AccessToken    string
	ExpiresIn      int64
	RefreshToken   string
	RefreshExpires time.Time
}

func (u *UserService) CreateUser(ctx context.Context, email, password, firstName, lastName string, role models.Role) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return nil, apperr.Validation("invalid user", "email: required")
	}
	if role != models.RoleAdmin && role != models.RoleCoach {
		return nil, apperr.Validation("invalid user", "role: must be admin or coach")
	}
	if password == "" {
		// passwordless accounts (Google sign-in) get an unusable random password
		p, err := utils.RandomToken()
		if err != nil {
			return nil, err
		}
		password = p
	}
	hash, err := utils.HashPassword(password)
	if err != nil {
		return nil, err
	}
	if _, err := u.store.GetUserByEmail(ctx, email); err == nil {
		return nil, apperr.BusinessRule(apperr.RuleInvalidState, "a user with this email already exists",
			map[string]string{"field": "email"})
	}

	now := time.Now()
	user := &models.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    strings.TrimSpace(firstName),
		LastName:     strings.TrimSpace(lastName),
		Role:         role,
		Active:       true,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	// retry on the rare id collision
	for i := 0; i < maxIDAttempts; i++ {
		uid, err := utils.GenerateUserID()
		if err != nil {
			return nil, err
		}
		user.ID = uid
		err = u.store.CreateUser(ctx, user)
		if err == nil {
			return user, nil
		}
		if !errors.Is(err, sentinel.ErrConflict) {
			return nil, translate(err, "user")
		}
	}
	return nil, apperr.New(apperr.CodeInternal, "could not create unique user id")
}

// Authenticate checks an email and password pair.
func (u *UserService) Authenticate(ctx context.Context, email, password string) (*models.User, error) {
	invalid := apperr.New(apperr.CodeUnauthorized, "invalid credentials")
	user, err := u.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, invalid
		}
		return nil, translate(err, "user")
	}
	ok, err := utils.ComparePasswordAndHash(password, user.PasswordHash)
	if err != nil || !ok {
		return nil, invalid
	}
	if !user.Active {
		return nil, apperr.New(apperr.CodeForbidden, "account disabled")
	}
	return user, nil
}

// ResolveGoogleUser maps a verified Google identity to an account. Unknown
// emails only get an account when an unlinked coach record carries the same
// email; the new coach user is linked to it.
func (u *UserService) ResolveGoogleUser(ctx context.Context, email, firstName, lastName string) (*models.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	existing, err := u.store.GetUserByEmail(ctx, email)
	switch {
	case err == nil:
		if !existing.Active {
			return nil, apperr.New(apperr.CodeForbidden, "account disabled")
		}
		return existing, nil
	case !errors.Is(err, sentinel.ErrNotFound):
		return nil, translate(err, "user")
	}

	var created *models.User
	err = u.store.RunInTx(ctx, func(tx store.Repository) error {
		coach, err := tx.GetCoachByEmail(ctx, email)
		if errors.Is(err, sentinel.ErrNotFound) || (err == nil && coach.UserID != nil) {
			return apperr.New(apperr.CodeForbidden, "no staff account for this email")
		}
		if err != nil {
			return err
		}
		created, err = NewUserService(tx, u.cfg).CreateUser(ctx, email, "", firstName, lastName, models.RoleCoach)
		if err != nil {
			return err
		}
		return tx.UpdateCoachFields(ctx, coach.ID, map[string]interface{}{"user_id": &created.ID})
	})
	if err != nil {
		return nil, translate(err, "user")
	}
	return created, nil
}

// StartSession issues an access token and a stored refresh token.
func (u *UserService) StartSession(ctx context.Context, user *models.User) (*Session, error) {
	access, err := auth.GenerateAccessToken(u.cfg, user.ID, string(user.Role))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "token error")
	}
	rt, err := utils.RandomToken()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "token error")
	}
	expires := time.Now().Add(u.cfg.RefreshTokenTTL)
	if err := u.store.SaveRefreshToken(ctx, user.ID, rt, expires); err != nil {
		return nil, translate(err, "refresh token")
	}
	return &Session{
		AccessToken:    access,
		ExpiresIn:      int64(u.cfg.AccessTokenTTL.Seconds()),
		RefreshToken:   rt,
		RefreshExpires: expires,
	}, nil
}

// RefreshSession rotates a refresh token and issues a new access token.
func (u *UserService) RefreshSession(ctx context.Context, refreshToken string) (*Session, error) {
	invalid := apperr.New(apperr.CodeUnauthorized, "invalid refresh token")
	rt, err := u.store.FindRefreshToken(ctx, refreshToken)
	if err != nil {
		return nil, invalid
	}
	user, err := u.store.GetUserByID(ctx, rt.UserID)
	if err != nil {
		return nil, invalid
	}
	if !user.Active {
		return nil, apperr.New(apperr.CodeForbidden, "account disabled")
	}
	newPlain, err := utils.RandomToken()
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "token error")
	}
	newExpiry := time.Now().Add(u.cfg.RefreshTokenTTL)
	if err := u.store.RotateRefreshToken(ctx, refreshToken, newPlain, newExpiry); err != nil {
		// concurrently revoked or expired
		return nil, invalid
	}
	access, err := auth.GenerateAccessToken(u.cfg, user.ID, string(user.Role))
	if err != nil {
		return nil, apperr.Wrap(err, apperr.CodeInternal, "token error")
	}
	return &Session{
		AccessToken:    access,
		ExpiresIn:      int64(u.cfg.AccessTokenTTL.Seconds()),
		RefreshToken:   newPlain,
		RefreshExpires: newExpiry,
	}, nil
}

func (u *UserService) EndSession(ctx context.Context, refreshToken string) error {
	if err := u.store.RevokeRefreshToken(ctx, refreshToken); err != nil {
		return translate(err, "refresh token")
	}
	return nil
}

func (u *UserService) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	user, err := u.store.GetUserByID(ctx, id)
	if err != nil {
		return nil, translate(err, "user")
	}
	return user, nil
}
