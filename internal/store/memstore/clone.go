package memstore

import (
	"time"

	"github.com/fitstudio/staff-console/internal/models"
	"gorm.io/datatypes"
)

// Clones copy every pointer and slice so callers never alias stored rows.

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneUser(u *models.User) *models.User {
	v := *u
	return &v
}

func cloneCoach(c *models.Coach) *models.Coach {
	v := *c
	v.UserID = cloneString(c.UserID)
	v.BirthDate = cloneTime(c.BirthDate)
	if c.YearsExperience != nil {
		n := *c.YearsExperience
		v.YearsExperience = &n
	}
	if c.Specialties != nil {
		v.Specialties = append(datatypes.JSONSlice[string]{}, c.Specialties...)
	}
	if c.HeadCategory != nil {
		hc := *c.HeadCategory
		v.HeadCategory = &hc
	}
	if c.AccountNumberEnc != nil {
		v.AccountNumberEnc = append([]byte(nil), c.AccountNumberEnc...)
	}
	v.AccountNumber = ""
	v.ApprovedAt = cloneTime(c.ApprovedAt)
	v.ApprovedBy = cloneString(c.ApprovedBy)
	v.RejectedAt = cloneTime(c.RejectedAt)
	v.RejectedBy = cloneString(c.RejectedBy)
	return &v
}

func cloneDocument(d *models.Document) *models.Document {
	v := *d
	v.VerifiedBy = cloneString(d.VerifiedBy)
	v.VerifiedAt = cloneTime(d.VerifiedAt)
	v.ReviewedAt = cloneTime(d.ReviewedAt)
	return &v
}

func cloneCertification(c *models.Certification) *models.Certification {
	v := *c
	v.ExpiresAt = cloneTime(c.ExpiresAt)
	return &v
}

func cloneContract(c *models.Contract) *models.Contract {
	v := *c
	v.SignedAt = cloneTime(c.SignedAt)
	return &v
}

// cloneRequestHeader drops Fields; entries live in their own table.
func cloneRequestHeader(cr *models.ChangeRequest) *models.ChangeRequest {
	v := *cr
	v.ResolvedBy = cloneString(cr.ResolvedBy)
	v.ResolvedAt = cloneTime(cr.ResolvedAt)
	v.Fields = []models.ChangeRequestField{}
	return &v
}

func cloneField(f *models.ChangeRequestField) *models.ChangeRequestField {
	v := *f
	v.ReviewedBy = cloneString(f.ReviewedBy)
	v.ReviewedAt = cloneTime(f.ReviewedAt)
	return &v
}

func cloneAudit(e *models.AuditLog) *models.AuditLog {
	v := *e
	if e.ChangedFields != nil {
		v.ChangedFields = append(datatypes.JSONSlice[models.FieldChange]{}, e.ChangedFields...)
	}
	if e.RequestMetadata != nil {
		v.RequestMetadata = datatypes.JSONMap{}
		for k, val := range e.RequestMetadata {
			v.RequestMetadata[k] = val
		}
	}
	if e.Details != nil {
		v.Details = datatypes.JSONMap{}
		for k, val := range e.Details {
			v.Details[k] = val
		}
	}
	return &v
}
