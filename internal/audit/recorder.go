// Package audit records administrative mutations. Entries are written through
// the caller's transaction so a mutation and its entry commit together, and
// are mirrored to the structured log.
package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/fitstudio/staff-console/internal/models"
	"github.com/fitstudio/staff-console/internal/requestctx"
	"github.com/fitstudio/staff-console/internal/utils"
	"go.uber.org/zap"
	"gorm.io/datatypes"
)

// Appender is the slice of a transactional store the recorder writes to.
type Appender interface {
	AppendAudit(ctx context.Context, e *models.AuditLog) error
}

// Entry describes one mutation. Changes must already be redacted.
type Entry struct {
	ActorID  string
	Action   string
	CoachID  string
	Changes  []models.FieldChange
	Comments string
	Details  map[string]interface{}
}

type Recorder struct {
	logger *zap.Logger
	now    func() time.Time
}

func NewRecorder(logger *zap.Logger) *Recorder {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Recorder{logger: logger, now: time.Now}
}

// Record appends e through tx. A failed append is returned so the caller's
// transaction rolls back; nothing is mirrored to the log in that case.
func (r *Recorder) Record(ctx context.Context, tx Appender, e Entry) (*models.AuditLog, error) {
	changes := e.Changes
	if changes == nil {
		changes = []models.FieldChange{}
	}
	entry := &models.AuditLog{
		ID:              utils.GenerateID(),
		ActorID:         e.ActorID,
		Action:          e.Action,
		CoachID:         e.CoachID,
		ChangedFields:   datatypes.JSONSlice[models.FieldChange](changes),
		RequestMetadata: datatypes.JSONMap(requestctx.Metadata(ctx)),
		Details:         datatypes.JSONMap(e.Details),
		Comments:        e.Comments,
		CreatedAt:       r.now().UTC(),
	}
	if err := tx.AppendAudit(ctx, entry); err != nil {
		return nil, fmt.Errorf("append audit entry %s: %w", e.Action, err)
	}
	r.log(entry)
	return entry, nil
}

func (r *Recorder) log(e *models.AuditLog) {
	fields := []zap.Field{
		zap.Bool("audit", true),
		zap.String("audit_id", e.ID),
		zap.String("action", e.Action),
		zap.String("actor_id", e.ActorID),
		zap.String("coach_id", e.CoachID),
	}
	names := make([]string, 0, len(e.ChangedFields))
	for _, ch := range e.ChangedFields {
		names = append(names, ch.Field)
	}
	if len(names) > 0 {
		fields = append(fields, zap.Strings("changed_fields", names))
	}
	if v, ok := e.RequestMetadata["request_id"].(string); ok {
		fields = append(fields, zap.String("request_id", v))
	}
	r.logger.Info("audit event", fields...)
}
