//go:build integration

package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/fitstudio/staff-console/internal/models"
	"github.com/fitstudio/staff-console/internal/sentinel"
)

// =============================================================================
// Postgres Store Integration Suite
// =============================================================================
// Runs the gorm store against a disposable Postgres container. Requires a
// Docker daemon; run with `go test -tags integration ./internal/store/...`.

type GormStoreSuite struct {
	suite.Suite
	container testcontainers.Container
	store     *Store
	ctx       context.Context
}

func TestGormStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(GormStoreSuite))
}

func (s *GormStoreSuite) SetupSuite() {
	s.ctx = context.Background()
	pg, err := tcpostgres.Run(s.ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("staff_console"),
		tcpostgres.WithUsername("console"),
		tcpostgres.WithPassword("console"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err, "failed to start postgres container")
	s.container = pg

	dsn, err := pg.ConnectionString(s.ctx, "sslmode=disable")
	s.Require().NoError(err)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	s.Require().NoError(err)
	s.Require().NoError(Migrate(db))
	s.store = &Store{DB: db}
}

func (s *GormStoreSuite) TearDownSuite() {
	if s.store != nil {
		_ = s.store.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(s.ctx)
	}
}

func (s *GormStoreSuite) SetupTest() {
	s.Require().NoError(s.store.DB.Exec(
		"TRUNCATE users, refresh_tokens, coaches, documents, certifications, contracts, change_requests, change_request_fields, audit_logs",
	).Error)
}

func (s *GormStoreSuite) seedCoach(id string) {
	s.Require().NoError(s.store.CreateCoach(s.ctx, &models.Coach{
		ID:        id,
		FirstName: "Lucia",
		LastName:  "Ferrer",
		Email:     id + "@example.com",
		Category:  models.CategoryCycling,
		Status:    models.CoachStatusPending,
	}))
}

// =============================================================================
// Tests
// =============================================================================

func (s *GormStoreSuite) TestUniqueViolationMapsToConflict() {
	s.seedCoach("COA00AAAAA")
	err := s.store.CreateCoach(s.ctx, &models.Coach{ID: "COA00AAAAA", Email: "other@example.com"})
	s.ErrorIs(err, sentinel.ErrConflict)

	_, err = s.store.GetCoach(s.ctx, "COA00ZZZZZ")
	s.ErrorIs(err, sentinel.ErrNotFound)
	s.ErrorIs(s.store.UpdateCoachFields(s.ctx, "COA00ZZZZZ", map[string]interface{}{"bio": "x"}), sentinel.ErrNotFound)
}

func (s *GormStoreSuite) TestRunInTxRollsBack() {
	s.seedCoach("COA00AAAAA")
	boom := errors.New("boom")

	err := s.store.RunInTx(s.ctx, func(tx Repository) error {
		if _, err := tx.GetCoachForUpdate(s.ctx, "COA00AAAAA"); err != nil {
			return err
		}
		if err := tx.UpdateCoachFields(s.ctx, "COA00AAAAA", map[string]interface{}{
			"status": models.CoachStatusActive, "active": true,
		}); err != nil {
			return err
		}
		if err := tx.AppendAudit(s.ctx, &models.AuditLog{
			ID: "8f14e45f-ceea-467f-a0e6-6d7f2a3b2c11", ActorID: "USR00ADMIN", Action: models.ActionCoachApproved,
			CoachID: "COA00AAAAA", CreatedAt: time.Now(),
		}); err != nil {
			return err
		}
		return boom
	})
	s.ErrorIs(err, boom)

	c, err := s.store.GetCoach(s.ctx, "COA00AAAAA")
	s.Require().NoError(err)
	s.Equal(models.CoachStatusPending, c.Status)
	entries, err := s.store.ListAudit(s.ctx, "COA00AAAAA")
	s.Require().NoError(err)
	s.Empty(entries)
}

func (s *GormStoreSuite) TestNestedTxRecoversFromConflict() {
	s.seedCoach("COA00AAAAA")

	err := s.store.RunInTx(s.ctx, func(tx Repository) error {
		err := tx.RunInTx(s.ctx, func(inner Repository) error {
			return inner.CreateCoach(s.ctx, &models.Coach{ID: "COA00AAAAA", Email: "dup@example.com"})
		})
		s.Require().ErrorIs(err, sentinel.ErrConflict)
		return tx.CreateCoach(s.ctx, &models.Coach{
			ID: "COA00BBBBB", Email: "fresh@example.com",
			Category: models.CategoryCycling, Status: models.CoachStatusPending,
		})
	})
	s.Require().NoError(err)

	_, err = s.store.GetCoach(s.ctx, "COA00BBBBB")
	s.NoError(err)
}

func (s *GormStoreSuite) TestOneCurrentContractPerCoach() {
	s.seedCoach("COA00AAAAA")
	first := &models.Contract{CoachID: "COA00AAAAA", Signed: true, Vigente: true}
	s.Require().NoError(s.store.CreateContract(s.ctx, first))
	s.NotEmpty(first.ID)

	err := s.store.CreateContract(s.ctx, &models.Contract{CoachID: "COA00AAAAA", Vigente: true})
	s.ErrorIs(err, sentinel.ErrConflict)

	second := &models.Contract{CoachID: "COA00AAAAA", Signed: true}
	s.Require().NoError(s.store.CreateContract(s.ctx, second))
	s.Require().NoError(s.store.SetCurrentContract(s.ctx, "COA00AAAAA", second.ID))

	list, err := s.store.ListContracts(s.ctx, "COA00AAAAA")
	s.Require().NoError(err)
	s.Require().Len(list, 2)
	for _, c := range list {
		s.Equal(c.ID == second.ID, c.Vigente)
	}
}

func (s *GormStoreSuite) TestChangeRequestRoundTrip() {
	s.seedCoach("COA00AAAAA")
	cr := &models.ChangeRequest{
		CoachID:     "COA00AAAAA",
		Status:      models.ChangeRequestPending,
		SubmittedBy: "USR00COACH",
		Fields: []models.ChangeRequestField{
			{Field: "email", OldValue: "a@example.com", NewValue: "b@example.com", Status: models.FieldPending},
		},
	}
	s.Require().NoError(s.store.CreateChangeRequest(s.ctx, cr))
	s.Require().NoError(s.store.AddChangeRequestField(s.ctx, &models.ChangeRequestField{
		ChangeRequestID: cr.ID, Position: 1, Field: "bank_name", NewValue: "Sur", Status: models.FieldPending,
	}))

	open, err := s.store.GetOpenChangeRequest(s.ctx, "COA00AAAAA")
	s.Require().NoError(err)
	s.Require().Len(open.Fields, 2)
	s.Equal("email", open.Fields[0].Field)

	s.Require().NoError(s.store.UpdateChangeRequest(s.ctx, cr.ID, map[string]interface{}{"status": models.ChangeRequestApproved}))
	_, err = s.store.GetOpenChangeRequest(s.ctx, "COA00AAAAA")
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *GormStoreSuite) TestAuditLogIsAppendOnly() {
	s.seedCoach("COA00AAAAA")
	entry := &models.AuditLog{
		ID: "c4ca4238-a0b9-4382-8dcc-509a6f75849b", ActorID: "USR00ADMIN", Action: models.ActionCoachUpdated,
		CoachID: "COA00AAAAA", CreatedAt: time.Now(),
	}
	s.Require().NoError(s.store.AppendAudit(s.ctx, entry))

	err := s.store.DB.Model(entry).Update("comments", "edited").Error
	s.ErrorIs(err, models.ErrAuditImmutable)
}

func (s *GormStoreSuite) TestReadSnapshot() {
	s.seedCoach("COA00AAAAA")
	err := s.store.ReadSnapshot(s.ctx, func(tx Repository) error {
		c, err := tx.GetCoach(s.ctx, "COA00AAAAA")
		if err != nil {
			return err
		}
		s.Equal("Lucia", c.FirstName)
		return tx.UpdateCoachFields(s.ctx, "COA00AAAAA", map[string]interface{}{"bio": "x"})
	})
	s.Error(err, "snapshot transactions are read-only")
	s.NoError(s.store.Ping(s.ctx))
}
