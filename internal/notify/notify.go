// Package notify is the outbound boundary for coach notifications. The
// console only emits events; delivering email happens in another service.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fitstudio/staff-console/internal/config"
	"github.com/fitstudio/staff-console/internal/models"
	"go.uber.org/zap"
)

//go:generate mockgen -source=notify.go -destination=mocks/mocks.go -package=mocks Dispatcher

type Type string

const (
	TypeApproval    Type = "approval"
	TypeRejection   Type = "rejection"
	TypeCorrections Type = "corrections"
)

func (t Type) Valid() bool {
	return t == TypeApproval || t == TypeRejection || t == TypeCorrections
}

type Event struct {
	ID          string              `json:"id"`
	Type        Type                `json:"tipo"`
	CoachID     string              `json:"coachId"`
	Email       string              `json:"email"`
	Name        string              `json:"nombre"`
	Motivo      string              `json:"motivo,omitempty"`
	Corrections []models.Correction `json:"correcciones,omitempty"`
	ActorID     string              `json:"actorId"`
	OccurredAt  time.Time           `json:"occurredAt"`
}

func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Dispatcher hands an event to the notification pipeline. Implementations
// must not retry internally; callers decide how to surface failures.
type Dispatcher interface {
	Dispatch(ctx context.Context, ev Event) error
	Close() error
}

// New builds the dispatcher selected by cfg.NotifyBackend.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (Dispatcher, error) {
	switch cfg.NotifyBackend {
	case config.NotifyBackendKafka:
		return NewKafkaDispatcher(cfg.KafkaBrokers, cfg.KafkaTopic)
	case config.NotifyBackendRedis:
		return NewRedisDispatcher(ctx, cfg.RedisURL, cfg.RedisStream)
	case config.NotifyBackendLog, "":
		return NewLogDispatcher(logger), nil
	}
	return nil, fmt.Errorf("unknown notify backend %q", cfg.NotifyBackend)
}
