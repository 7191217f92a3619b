package service

import (
	"context"
	"strconv"
	"time"

	"github.com/fitstudio/staff-console/internal/apperr"
	"github.com/fitstudio/staff-console/internal/audit"
	"github.com/fitstudio/staff-console/internal/lifecycle"
	"github.com/fitstudio/staff-console/internal/models"
	"github.com/fitstudio/staff-console/internal/store"
	"github.com/fitstudio/staff-console/internal/utils"
	"go.uber.org/zap"
)

// Presigner issues short-lived read URLs for uploaded files.
type Presigner interface {
	PresignGetObject(ctx context.Context, objectKey string, ttl time.Duration) (string, error)
}

// WithDocumentURLs enables review URLs on document listings.
func WithDocumentURLs(p Presigner, ttl time.Duration) Option {
	return func(s *Service) {
		s.presigner = p
		s.urlTTL = ttl
	}
}

// DocumentView is a document with a temporary review URL when storage is
// configured.
type DocumentView struct {
	*models.Document
	ViewURL string `json:"view_url,omitempty"`
	Latest  bool   `json:"latest"`
}

// ListDocuments returns the coach's documents, marking the upload the
// checklist uses for each type.
func (s *Service) ListDocuments(ctx context.Context, coachID string) ([]DocumentView, error) {
	if _, err := s.store.GetCoach(ctx, coachID); err != nil {
		return nil, translate(err, "coach")
	}
	docs, err := s.store.ListDocuments(ctx, coachID)
	if err != nil {
		return nil, translate(err, "documents")
	}
	latest := latestIDs(docs)
	out := make([]DocumentView, 0, len(docs))
	for _, d := range docs {
		v := DocumentView{Document: d, Latest: latest[d.ID]}
		if s.presigner != nil && d.FileKey != "" {
			url, err := s.presigner.PresignGetObject(ctx, d.FileKey, s.urlTTL)
			if err != nil {
				s.logger.Warn("presign document url failed", zap.String("document_id", d.ID), zap.Error(err))
			} else {
				v.ViewURL = url
			}
		}
		out = append(out, v)
	}
	return out, nil
}

// SetVerification records an administrator's decision on one document.
// Revoking a verification, or rejecting a document that was already
// reviewed, requires notes.
func (s *Service) SetVerification(ctx context.Context, actor Actor, documentID string, verified bool, notes string) (doc *models.Document, err error) {
	start := time.Now()
	changed := false
	defer func() { err = s.finish("set_verification", start, changed, err) }()

	notes = utils.SanitizeText(notes)
	err = s.store.RunInTx(ctx, func(tx store.Repository) error {
		d, err := tx.GetDocumentForUpdate(ctx, documentID)
		if err != nil {
			return translate(err, "document")
		}
		if !verified && notes == "" && (d.Verified || d.ReviewedAt != nil) {
			return apperr.Validation("notes required",
				"notes: required when rejecting a document that was already reviewed")
		}

		// Repeating the current decision leaves the review untouched.
		if (verified && d.Verified) || (!verified && !d.Verified && d.ReviewedAt != nil && notes == d.RejectionNotes) {
			doc = d
			return nil
		}

		now := s.now().UTC()
		before := *d
		d.ReviewedAt = &now
		if verified {
			actorID := actor.ID
			d.Verified = true
			d.VerifiedBy = &actorID
			d.VerifiedAt = &now
			d.RejectionNotes = ""
		} else {
			d.Verified = false
			d.VerifiedBy = nil
			d.VerifiedAt = nil
			d.RejectionNotes = notes
		}
		if err := tx.UpdateDocumentFields(ctx, d.ID, map[string]interface{}{
			"verified":        d.Verified,
			"verified_by":     d.VerifiedBy,
			"verified_at":     d.VerifiedAt,
			"reviewed_at":     d.ReviewedAt,
			"rejection_notes": d.RejectionNotes,
		}); err != nil {
			return err
		}

		if _, err := s.recorder.Record(ctx, tx, audit.Entry{
			ActorID: actor.ID,
			Action:  models.ActionDocumentVerification,
			CoachID: d.CoachID,
			Changes: written(
				models.FieldChange{Field: "verified", Before: strconv.FormatBool(before.Verified), After: strconv.FormatBool(d.Verified)},
				models.FieldChange{Field: "verified_by", Before: deref(before.VerifiedBy), After: deref(d.VerifiedBy)},
				models.FieldChange{Field: "verified_at", Before: formatTime(before.VerifiedAt), After: formatTime(d.VerifiedAt)},
				models.FieldChange{Field: "rejection_notes", Before: before.RejectionNotes, After: d.RejectionNotes},
				models.FieldChange{Field: "reviewed_at", Before: formatTime(before.ReviewedAt), After: formatTime(d.ReviewedAt)},
			),
			Comments: notes,
			Details:  map[string]interface{}{"document_id": d.ID, "type": string(d.Type)},
		}); err != nil {
			return err
		}
		doc = d
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func latestIDs(docs []*models.Document) map[string]bool {
	out := map[string]bool{}
	for _, d := range lifecycle.LatestDocuments(docs) {
		out[d.ID] = true
	}
	return out
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}
