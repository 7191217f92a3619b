package service

import (
	"context"
	"time"

	"github.com/fitstudio/staff-console/internal/lifecycle"
	"github.com/fitstudio/staff-console/internal/models"
	"github.com/fitstudio/staff-console/internal/store"
	"golang.org/x/sync/errgroup"
)

const listConcurrency = 4

// CoachWithChecklist is a coach row together with its current checklist.
type CoachWithChecklist struct {
	*models.Coach
	Checklist lifecycle.Checklist `json:"checklist"`
	Failing   []lifecycle.Item    `json:"failing"`
}

func loadSnapshot(ctx context.Context, tx store.Repository, coach *models.Coach) (lifecycle.Snapshot, error) {
	docs, err := tx.ListDocuments(ctx, coach.ID)
	if err != nil {
		return lifecycle.Snapshot{}, err
	}
	certs, err := tx.ListCertifications(ctx, coach.ID)
	if err != nil {
		return lifecycle.Snapshot{}, err
	}
	contracts, err := tx.ListContracts(ctx, coach.ID)
	if err != nil {
		return lifecycle.Snapshot{}, err
	}
	return lifecycle.Snapshot{Coach: coach, Documents: docs, Certifications: certs, Contracts: contracts}, nil
}

// Checklist recomputes the approval checklist of coachID from one snapshot.
func (s *Service) Checklist(ctx context.Context, coachID string) (lifecycle.Checklist, error) {
	var cl lifecycle.Checklist
	err := s.store.ReadSnapshot(ctx, func(tx store.Repository) error {
		coach, err := tx.GetCoach(ctx, coachID)
		if err != nil {
			return translate(err, "coach")
		}
		snap, err := loadSnapshot(ctx, tx, coach)
		if err != nil {
			return err
		}
		cl = lifecycle.BuildChecklist(snap, s.now())
		return nil
	})
	if err != nil {
		return lifecycle.Checklist{}, translate(err, "coach")
	}
	return cl, nil
}

// ListCoaches returns coaches, optionally filtered by status, each with its
// checklist. Checklists are computed concurrently, one snapshot per coach.
func (s *Service) ListCoaches(ctx context.Context, status models.CoachStatus) ([]CoachWithChecklist, error) {
	if status != "" && !status.Valid() {
		return nil, invalidStatusFilter(status)
	}
	coaches, err := s.store.ListCoaches(ctx, status)
	if err != nil {
		return nil, translate(err, "coaches")
	}

	out := make([]CoachWithChecklist, len(coaches))
	now := s.now()
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(listConcurrency)
	for i, c := range coaches {
		i, c := i, c
		g.Go(func() error {
			return s.store.ReadSnapshot(gctx, func(tx store.Repository) error {
				snap, err := loadSnapshot(gctx, tx, c)
				if err != nil {
					return err
				}
				cl := lifecycle.BuildChecklist(snap, now)
				out[i] = CoachWithChecklist{Coach: c, Checklist: cl, Failing: cl.Failing()}
				return nil
			})
		})
	}
	if err := g.Wait(); err != nil {
		return nil, translate(err, "coaches")
	}
	return out, nil
}

func blockedOn(cl lifecycle.Checklist, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"failing":      cl.Failing(),
		"checklist":    cl,
		"evaluated_at": now.UTC(),
	}
}
