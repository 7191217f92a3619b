package store

import (
	"context"
	"time"

	"github.com/fitstudio/staff-console/internal/models"
)

// Repository is the persistence boundary of the console. Implementations
// return sentinel errors: ErrNotFound for missing rows and ErrConflict for
// unique violations.
//
// Methods suffixed ForUpdate lock the row until the surrounding RunInTx
// commits. Outside a transaction they behave like plain reads.
type Repository interface {
	// RunInTx runs fn in one atomic unit. Any error rolls back every write.
	RunInTx(ctx context.Context, fn func(tx Repository) error) error
	// ReadSnapshot runs fn against one consistent read-only snapshot.
	ReadSnapshot(ctx context.Context, fn func(tx Repository) error) error
	Ping(ctx context.Context) error

	UserStore
	CoachStore
	EvidenceStore
	ChangeRequestStore
	AuditStore
}

type UserStore interface {
	CreateUser(ctx context.Context, u *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	SaveRefreshToken(ctx context.Context, userID, plainToken string, expiresAt time.Time) error
	FindRefreshToken(ctx context.Context, plainToken string) (*models.RefreshToken, error)
	RotateRefreshToken(ctx context.Context, oldPlain, newPlain string, newExpiry time.Time) error
	RevokeRefreshToken(ctx context.Context, plainToken string) error
}

type CoachStore interface {
	CreateCoach(ctx context.Context, c *models.Coach) error
	GetCoach(ctx context.Context, id string) (*models.Coach, error)
	GetCoachForUpdate(ctx context.Context, id string) (*models.Coach, error)
	GetCoachByUserID(ctx context.Context, userID string) (*models.Coach, error)
	GetCoachByEmail(ctx context.Context, email string) (*models.Coach, error)
	// ListCoaches filters by status when status is non-empty.
	ListCoaches(ctx context.Context, status models.CoachStatus) ([]*models.Coach, error)
	UpdateCoachFields(ctx context.Context, id string, fields map[string]interface{}) error
}

// EvidenceStore covers the records the approval checklist is computed from.
type EvidenceStore interface {
	CreateDocument(ctx context.Context, d *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	GetDocumentForUpdate(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, coachID string) ([]*models.Document, error)
	UpdateDocumentFields(ctx context.Context, id string, fields map[string]interface{}) error

	CreateCertification(ctx context.Context, c *models.Certification) error
	ListCertifications(ctx context.Context, coachID string) ([]*models.Certification, error)

	CreateContract(ctx context.Context, c *models.Contract) error
	GetContractForUpdate(ctx context.Context, id string) (*models.Contract, error)
	ListContracts(ctx context.Context, coachID string) ([]*models.Contract, error)
	// SetCurrentContract makes contractID the only vigente contract of coachID.
	SetCurrentContract(ctx context.Context, coachID, contractID string) error
}

type ChangeRequestStore interface {
	// CreateChangeRequest inserts the request together with its fields.
	CreateChangeRequest(ctx context.Context, cr *models.ChangeRequest) error
	GetChangeRequest(ctx context.Context, id string) (*models.ChangeRequest, error)
	GetChangeRequestForUpdate(ctx context.Context, id string) (*models.ChangeRequest, error)
	// GetOpenChangeRequest returns the coach's request that still has pending fields.
	GetOpenChangeRequest(ctx context.Context, coachID string) (*models.ChangeRequest, error)
	ListChangeRequests(ctx context.Context, openOnly bool) ([]*models.ChangeRequest, error)
	AddChangeRequestField(ctx context.Context, f *models.ChangeRequestField) error
	UpdateChangeRequestField(ctx context.Context, id uint, fields map[string]interface{}) error
	UpdateChangeRequest(ctx context.Context, id string, fields map[string]interface{}) error
}

// AuditStore is append-only.
type AuditStore interface {
	AppendAudit(ctx context.Context, e *models.AuditLog) error
	ListAudit(ctx context.Context, coachID string) ([]*models.AuditLog, error)
}
