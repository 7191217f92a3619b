package models

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type User struct {
	ID    string `gorm:"primaryKey;size:10" json:"id"`
	Email string `gorm:"uniqueIndex;not null" json:"email"`

	PasswordHash string    `json:"-"`
	FirstName    string    `json:"first_name"`
	LastName     string    `json:"last_name"`
	Role         Role      `gorm:"type:text;not null" json:"role"`
	Active       bool      `gorm:"default:true" json:"active"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

type RefreshToken struct {
	ID        string    `gorm:"type:uuid;default:gen_random_uuid();primaryKey" json:"id"`
	UserID    string    `gorm:"index;size:10" json:"user_id"`
	TokenHash string    `gorm:"not null;index" json:"-"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
	Revoked   bool      `gorm:"default:false" json:"revoked"`
}

// Coach is the onboarding record of an instructor. AccountNumber only carries
// plaintext while a request is being processed; the column holds ciphertext.
type Coach struct {
	ID     string  `gorm:"primaryKey;size:10" json:"id"`
	UserID *string `gorm:"size:10;uniqueIndex" json:"user_id,omitempty"`

	FirstName             string                      `json:"first_name"`
	LastName              string                      `json:"last_name"`
	Email                 string                      `gorm:"index;not null" json:"email"`
	Phone                 string                      `json:"phone"`
	BirthDate             *time.Time                  `gorm:"type:date" json:"birth_date,omitempty"`
	TaxID                 string                      `json:"tax_id"`
	Address               string                      `json:"address"`
	Bio                   string                      `gorm:"type:text" json:"bio"`
	YearsExperience       *int                        `json:"years_experience,omitempty"`
	Specialties           datatypes.JSONSlice[string] `gorm:"type:jsonb" json:"specialties"`
	Instagram             string                      `json:"instagram"`
	TikTok                string                      `gorm:"column:tiktok" json:"tiktok"`
	EmergencyContactName  string                      `json:"emergency_contact_name"`
	EmergencyContactPhone string                      `json:"emergency_contact_phone"`

	Category     CoachCategory  `gorm:"type:text;not null;default:cycling" json:"category"`
	Status       CoachStatus    `gorm:"type:text;not null;default:pending;index" json:"status"`
	Active       bool           `gorm:"default:false" json:"active"`
	IsHeadCoach  bool           `gorm:"default:false" json:"is_head_coach"`
	HeadCategory *CoachCategory `gorm:"type:text" json:"head_category,omitempty"`

	BankName         string `json:"bank_name"`
	AccountNumber    string `gorm:"-" json:"-"`
	AccountNumberEnc []byte `json:"-"`
	AccountLast4     string `gorm:"size:4" json:"account_last4,omitempty"`
	AccountHolder    string `json:"account_holder"`

	AdminNotes      string     `gorm:"type:text" json:"admin_notes,omitempty"`
	ApprovedAt      *time.Time `json:"approved_at,omitempty"`
	ApprovedBy      *string    `gorm:"size:10" json:"approved_by,omitempty"`
	RejectionReason string     `gorm:"type:text" json:"rejection_reason,omitempty"`
	RejectedAt      *time.Time `json:"rejected_at,omitempty"`
	RejectedBy      *string    `gorm:"size:10" json:"rejected_by,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Document struct {
	ID             string       `gorm:"type:uuid;primaryKey" json:"id"`
	CoachID        string       `gorm:"size:10;index;not null" json:"coach_id"`
	Type           DocumentType `gorm:"type:text;not null" json:"type"`
	FileKey        string       `gorm:"not null" json:"-"`
	FileName       string       `json:"file_name"`
	Verified       bool         `gorm:"default:false" json:"verified"`
	VerifiedBy     *string      `gorm:"size:10" json:"verified_by,omitempty"`
	VerifiedAt     *time.Time   `json:"verified_at,omitempty"`
	ReviewedAt     *time.Time   `json:"reviewed_at,omitempty"`
	RejectionNotes string       `gorm:"type:text" json:"rejection_notes,omitempty"`
	CreatedAt      time.Time    `json:"created_at"`
	UpdatedAt      time.Time    `json:"updated_at"`
}

type Certification struct {
	ID          string     `gorm:"type:uuid;primaryKey" json:"id"`
	CoachID     string     `gorm:"size:10;index;not null" json:"coach_id"`
	Name        string     `gorm:"not null" json:"name"`
	Institution string     `json:"institution"`
	ObtainedAt  time.Time  `gorm:"type:date" json:"obtained_at"`
	ExpiresAt   *time.Time `gorm:"type:date" json:"expires_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Contract rows are unique per coach while vigente.
type Contract struct {
	ID                 string     `gorm:"type:uuid;primaryKey" json:"id"`
	CoachID            string     `gorm:"size:10;not null;index;index:idx_contracts_coach_vigente,unique,where:vigente = true" json:"coach_id"`
	Signed             bool       `gorm:"default:false" json:"signed"`
	SignedAt           *time.Time `json:"signed_at,omitempty"`
	Vigente            bool       `gorm:"default:false" json:"vigente"`
	CompensationScheme string     `json:"compensation_scheme"`
	RatePerClassCents  int64      `json:"rate_per_class_cents"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

type ChangeRequest struct {
	ID          string               `gorm:"type:uuid;primaryKey" json:"id"`
	CoachID     string               `gorm:"size:10;index;not null" json:"coach_id"`
	Status      ChangeRequestStatus  `gorm:"type:text;not null;index" json:"status"`
	SubmittedBy string               `gorm:"size:10" json:"submitted_by"`
	Comments    string               `gorm:"type:text" json:"comments,omitempty"`
	ResolvedBy  *string              `gorm:"size:10" json:"resolved_by,omitempty"`
	ResolvedAt  *time.Time           `json:"resolved_at,omitempty"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
	Fields      []ChangeRequestField `gorm:"foreignKey:ChangeRequestID" json:"fields"`
}

// MaskedValue replaces sensitive values in API output.
const MaskedValue = "********"

// ChangeRequestField keeps sensitive new values sealed; see Sensitive.
type ChangeRequestField struct {
	ID              uint              `gorm:"primaryKey" json:"id"`
	ChangeRequestID string            `gorm:"type:uuid;index;not null" json:"-"`
	Position        int               `json:"position"`
	Field           string            `gorm:"not null" json:"field"`
	OldValue        string            `gorm:"type:text" json:"old_value"`
	NewValue        string            `gorm:"type:text" json:"new_value"`
	Sensitive       bool              `gorm:"default:false" json:"sensitive"`
	Status          FieldReviewStatus `gorm:"type:text;not null" json:"status"`
	ReviewedBy      *string           `gorm:"size:10" json:"reviewed_by,omitempty"`
	ReviewedAt      *time.Time        `json:"reviewed_at,omitempty"`
}

func (f ChangeRequestField) MarshalJSON() ([]byte, error) {
	type plain ChangeRequestField
	p := plain(f)
	if p.Sensitive {
		p.NewValue = MaskedValue
	}
	return json.Marshal(p)
}

var ErrAuditImmutable = errors.New("audit log entries are append-only")

type AuditLog struct {
	ID              string                           `gorm:"type:uuid;primaryKey" json:"id"`
	ActorID         string                           `gorm:"size:10;index;not null" json:"actor_id"`
	Action          string                           `gorm:"not null;index" json:"action"`
	CoachID         string                           `gorm:"size:10;index" json:"coach_id"`
	ChangedFields   datatypes.JSONSlice[FieldChange] `gorm:"type:jsonb" json:"changed_fields"`
	RequestMetadata datatypes.JSONMap                `gorm:"type:jsonb" json:"request_metadata,omitempty"`
	Details         datatypes.JSONMap                `gorm:"type:jsonb" json:"details,omitempty"`
	Comments        string                           `gorm:"type:text" json:"comments,omitempty"`
	CreatedAt       time.Time                        `gorm:"index" json:"created_at"`
}

func (a *AuditLog) BeforeUpdate(tx *gorm.DB) error { return ErrAuditImmutable }

func (a *AuditLog) BeforeDelete(tx *gorm.DB) error { return ErrAuditImmutable }

// uuid-keyed rows get an id on insert when the caller left it empty.

func (d *Document) BeforeCreate(tx *gorm.DB) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	return nil
}

func (c *Certification) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (c *Contract) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	return nil
}

func (cr *ChangeRequest) BeforeCreate(tx *gorm.DB) error {
	if cr.ID == "" {
		cr.ID = uuid.NewString()
	}
	return nil
}
