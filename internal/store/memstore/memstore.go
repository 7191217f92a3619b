// Package memstore is an in-process Repository used for local runs without
// Postgres and for service tests. Transactions work on a private copy of the
// data that replaces the shared state on commit, under a single mutex.
package memstore

import (
	"context"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fitstudio/staff-console/internal/models"
	"github.com/fitstudio/staff-console/internal/sentinel"
	"github.com/fitstudio/staff-console/internal/store"
	"github.com/fitstudio/staff-console/internal/utils"
	"gorm.io/gorm/schema"
)

type data struct {
	users       map[string]*models.User
	tokens      map[string]*models.RefreshToken
	coaches     map[string]*models.Coach
	documents   map[string]*models.Document
	certs       map[string]*models.Certification
	contracts   map[string]*models.Contract
	requests    map[string]*models.ChangeRequest
	fields      map[uint]*models.ChangeRequestField
	nextFieldID uint
	audit       []*models.AuditLog
}

func newData() *data {
	return &data{
		users:     map[string]*models.User{},
		tokens:    map[string]*models.RefreshToken{},
		coaches:   map[string]*models.Coach{},
		documents: map[string]*models.Document{},
		certs:     map[string]*models.Certification{},
		contracts: map[string]*models.Contract{},
		requests:  map[string]*models.ChangeRequest{},
		fields:    map[uint]*models.ChangeRequestField{},
	}
}

func (d *data) clone() *data {
	out := newData()
	for k, v := range d.users {
		out.users[k] = cloneUser(v)
	}
	for k, v := range d.tokens {
		t := *v
		out.tokens[k] = &t
	}
	for k, v := range d.coaches {
		out.coaches[k] = cloneCoach(v)
	}
	for k, v := range d.documents {
		out.documents[k] = cloneDocument(v)
	}
	for k, v := range d.certs {
		out.certs[k] = cloneCertification(v)
	}
	for k, v := range d.contracts {
		out.contracts[k] = cloneContract(v)
	}
	for k, v := range d.requests {
		out.requests[k] = cloneRequestHeader(v)
	}
	for k, v := range d.fields {
		out.fields[k] = cloneField(v)
	}
	out.nextFieldID = d.nextFieldID
	out.audit = append(out.audit, d.audit...)
	return out
}

type Store struct {
	mu   *sync.Mutex
	d    *data
	inTx bool
}

var _ store.Repository = (*Store)(nil)

func New() *Store {
	return &Store{mu: &sync.Mutex{}, d: newData()}
}

// lock is a no-op inside a transaction, which already holds the mutex.
func (s *Store) lock() func() {
	if s.inTx {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}

// RunInTx nested inside another transaction acts as a savepoint: a failing
// fn discards only its own writes.
func (s *Store) RunInTx(ctx context.Context, fn func(tx store.Repository) error) error {
	if s.inTx {
		work := s.d.clone()
		if err := fn(&Store{mu: s.mu, d: work, inTx: true}); err != nil {
			return err
		}
		*s.d = *work
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	work := s.d.clone()
	if err := fn(&Store{mu: s.mu, d: work, inTx: true}); err != nil {
		return err
	}
	s.d = work
	return nil
}

func (s *Store) ReadSnapshot(ctx context.Context, fn func(tx store.Repository) error) error {
	if s.inTx {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(&Store{mu: s.mu, d: s.d.clone(), inTx: true})
}

func (s *Store) Ping(ctx context.Context) error {
	return ctx.Err()
}

/* ------------------ Accounts ------------------ */

func (s *Store) CreateUser(ctx context.Context, u *models.User) error {
	defer s.lock()()
	if _, ok := s.d.users[u.ID]; ok {
		return fmt.Errorf("%w: user id", sentinel.ErrConflict)
	}
	for _, other := range s.d.users {
		if strings.EqualFold(other.Email, u.Email) {
			return fmt.Errorf("%w: user email", sentinel.ErrConflict)
		}
	}
	stamp(&u.CreatedAt, &u.UpdatedAt)
	s.d.users[u.ID] = cloneUser(u)
	return nil
}

func (s *Store) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	defer s.lock()()
	u, ok := s.d.users[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneUser(u), nil
}

func (s *Store) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	defer s.lock()()
	for _, u := range s.d.users {
		if strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *Store) SaveRefreshToken(ctx context.Context, userID, plainToken string, expiresAt time.Time) error {
	defer s.lock()()
	h := utils.HashToken(plainToken)
	s.d.tokens[h] = &models.RefreshToken{
		ID:        utils.GenerateID(),
		UserID:    userID,
		TokenHash: h,
		IssuedAt:  time.Now(),
		ExpiresAt: expiresAt,
	}
	return nil
}

func (s *Store) FindRefreshToken(ctx context.Context, plainToken string) (*models.RefreshToken, error) {
	defer s.lock()()
	t, ok := s.d.tokens[utils.HashToken(plainToken)]
	if !ok || t.Revoked || !t.ExpiresAt.After(time.Now()) {
		return nil, sentinel.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *Store) RotateRefreshToken(ctx context.Context, oldPlain, newPlain string, newExpiry time.Time) error {
	defer s.lock()()
	old, ok := s.d.tokens[utils.HashToken(oldPlain)]
	if !ok || old.Revoked || !old.ExpiresAt.After(time.Now()) {
		return sentinel.ErrNotFound
	}
	old.Revoked = true
	h := utils.HashToken(newPlain)
	s.d.tokens[h] = &models.RefreshToken{
		ID:        utils.GenerateID(),
		UserID:    old.UserID,
		TokenHash: h,
		IssuedAt:  time.Now(),
		ExpiresAt: newExpiry,
	}
	return nil
}

func (s *Store) RevokeRefreshToken(ctx context.Context, plainToken string) error {
	defer s.lock()()
	if t, ok := s.d.tokens[utils.HashToken(plainToken)]; ok {
		t.Revoked = true
	}
	return nil
}

/* ------------------ Coaches ------------------ */

func (s *Store) CreateCoach(ctx context.Context, c *models.Coach) error {
	defer s.lock()()
	if _, ok := s.d.coaches[c.ID]; ok {
		return fmt.Errorf("%w: coach id", sentinel.ErrConflict)
	}
	if c.UserID != nil {
		for _, other := range s.d.coaches {
			if other.UserID != nil && *other.UserID == *c.UserID {
				return fmt.Errorf("%w: coach user_id", sentinel.ErrConflict)
			}
		}
	}
	if c.Status == "" {
		c.Status = models.CoachStatusPending
	}
	if c.Category == "" {
		c.Category = models.CategoryCycling
	}
	stamp(&c.CreatedAt, &c.UpdatedAt)
	s.d.coaches[c.ID] = cloneCoach(c)
	return nil
}

func (s *Store) GetCoach(ctx context.Context, id string) (*models.Coach, error) {
	defer s.lock()()
	c, ok := s.d.coaches[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneCoach(c), nil
}

func (s *Store) GetCoachForUpdate(ctx context.Context, id string) (*models.Coach, error) {
	return s.GetCoach(ctx, id)
}

func (s *Store) GetCoachByUserID(ctx context.Context, userID string) (*models.Coach, error) {
	defer s.lock()()
	for _, c := range s.d.coaches {
		if c.UserID != nil && *c.UserID == userID {
			return cloneCoach(c), nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *Store) GetCoachByEmail(ctx context.Context, email string) (*models.Coach, error) {
	defer s.lock()()
	var found *models.Coach
	for _, c := range s.d.coaches {
		if strings.EqualFold(c.Email, email) && (found == nil || c.CreatedAt.After(found.CreatedAt)) {
			found = c
		}
	}
	if found == nil {
		return nil, sentinel.ErrNotFound
	}
	return cloneCoach(found), nil
}

func (s *Store) ListCoaches(ctx context.Context, status models.CoachStatus) ([]*models.Coach, error) {
	defer s.lock()()
	var out []*models.Coach
	for _, c := range s.d.coaches {
		if status == "" || c.Status == status {
			out = append(out, cloneCoach(c))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (s *Store) UpdateCoachFields(ctx context.Context, id string, fields map[string]interface{}) error {
	defer s.lock()()
	c, ok := s.d.coaches[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	fields["updated_at"] = time.Now()
	next := cloneCoach(c)
	if err := applyColumns(ctx, next, fields); err != nil {
		return err
	}
	if next.UserID != nil {
		for oid, other := range s.d.coaches {
			if oid != id && other.UserID != nil && *other.UserID == *next.UserID {
				return fmt.Errorf("%w: coach user_id", sentinel.ErrConflict)
			}
		}
	}
	s.d.coaches[id] = next
	return nil
}

/* ------------------ Documents, certifications, contracts ------------------ */

func (s *Store) CreateDocument(ctx context.Context, d *models.Document) error {
	defer s.lock()()
	if d.ID == "" {
		d.ID = utils.GenerateID()
	}
	if _, ok := s.d.documents[d.ID]; ok {
		return fmt.Errorf("%w: document id", sentinel.ErrConflict)
	}
	stamp(&d.CreatedAt, &d.UpdatedAt)
	s.d.documents[d.ID] = cloneDocument(d)
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (*models.Document, error) {
	defer s.lock()()
	d, ok := s.d.documents[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneDocument(d), nil
}

func (s *Store) GetDocumentForUpdate(ctx context.Context, id string) (*models.Document, error) {
	return s.GetDocument(ctx, id)
}

func (s *Store) ListDocuments(ctx context.Context, coachID string) ([]*models.Document, error) {
	defer s.lock()()
	var out []*models.Document
	for _, d := range s.d.documents {
		if d.CoachID == coachID {
			out = append(out, cloneDocument(d))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) UpdateDocumentFields(ctx context.Context, id string, fields map[string]interface{}) error {
	defer s.lock()()
	d, ok := s.d.documents[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	fields["updated_at"] = time.Now()
	next := cloneDocument(d)
	if err := applyColumns(ctx, next, fields); err != nil {
		return err
	}
	s.d.documents[id] = next
	return nil
}

func (s *Store) CreateCertification(ctx context.Context, c *models.Certification) error {
	defer s.lock()()
	if c.ID == "" {
		c.ID = utils.GenerateID()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}
	s.d.certs[c.ID] = cloneCertification(c)
	return nil
}

func (s *Store) ListCertifications(ctx context.Context, coachID string) ([]*models.Certification, error) {
	defer s.lock()()
	var out []*models.Certification
	for _, c := range s.d.certs {
		if c.CoachID == coachID {
			out = append(out, cloneCertification(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ObtainedAt.Before(out[j].ObtainedAt) })
	return out, nil
}

func (s *Store) CreateContract(ctx context.Context, c *models.Contract) error {
	defer s.lock()()
	if c.ID == "" {
		c.ID = utils.GenerateID()
	}
	if c.Vigente {
		for _, other := range s.d.contracts {
			if other.CoachID == c.CoachID && other.Vigente {
				return fmt.Errorf("%w: idx_contracts_coach_vigente", sentinel.ErrConflict)
			}
		}
	}
	stamp(&c.CreatedAt, &c.UpdatedAt)
	s.d.contracts[c.ID] = cloneContract(c)
	return nil
}

func (s *Store) GetContractForUpdate(ctx context.Context, id string) (*models.Contract, error) {
	defer s.lock()()
	c, ok := s.d.contracts[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return cloneContract(c), nil
}

func (s *Store) ListContracts(ctx context.Context, coachID string) ([]*models.Contract, error) {
	defer s.lock()()
	var out []*models.Contract
	for _, c := range s.d.contracts {
		if c.CoachID == coachID {
			out = append(out, cloneContract(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) SetCurrentContract(ctx context.Context, coachID, contractID string) error {
	defer s.lock()()
	target, ok := s.d.contracts[contractID]
	if !ok || target.CoachID != coachID {
		return sentinel.ErrNotFound
	}
	now := time.Now()
	for _, c := range s.d.contracts {
		if c.CoachID == coachID && c.ID != contractID && c.Vigente {
			c.Vigente = false
			c.UpdatedAt = now
		}
	}
	target.Vigente = true
	target.UpdatedAt = now
	return nil
}

/* ------------------ Change requests ------------------ */

func (s *Store) CreateChangeRequest(ctx context.Context, cr *models.ChangeRequest) error {
	defer s.lock()()
	if cr.ID == "" {
		cr.ID = utils.GenerateID()
	}
	if _, ok := s.d.requests[cr.ID]; ok {
		return fmt.Errorf("%w: change request id", sentinel.ErrConflict)
	}
	stamp(&cr.CreatedAt, &cr.UpdatedAt)
	s.d.requests[cr.ID] = cloneRequestHeader(cr)
	for i := range cr.Fields {
		s.insertField(cr.ID, &cr.Fields[i])
	}
	return nil
}

func (s *Store) insertField(requestID string, f *models.ChangeRequestField) {
	s.d.nextFieldID++
	f.ID = s.d.nextFieldID
	f.ChangeRequestID = requestID
	s.d.fields[f.ID] = cloneField(f)
}

func (s *Store) GetChangeRequest(ctx context.Context, id string) (*models.ChangeRequest, error) {
	defer s.lock()()
	cr, ok := s.d.requests[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return s.withFields(cr), nil
}

func (s *Store) GetChangeRequestForUpdate(ctx context.Context, id string) (*models.ChangeRequest, error) {
	return s.GetChangeRequest(ctx, id)
}

func (s *Store) GetOpenChangeRequest(ctx context.Context, coachID string) (*models.ChangeRequest, error) {
	defer s.lock()()
	var found *models.ChangeRequest
	for _, cr := range s.d.requests {
		if cr.CoachID == coachID && cr.Status.Open() && (found == nil || cr.CreatedAt.After(found.CreatedAt)) {
			found = cr
		}
	}
	if found == nil {
		return nil, sentinel.ErrNotFound
	}
	return s.withFields(found), nil
}

func (s *Store) ListChangeRequests(ctx context.Context, openOnly bool) ([]*models.ChangeRequest, error) {
	defer s.lock()()
	var out []*models.ChangeRequest
	for _, cr := range s.d.requests {
		if !openOnly || cr.Status.Open() {
			out = append(out, s.withFields(cr))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out, nil
}

func (s *Store) AddChangeRequestField(ctx context.Context, f *models.ChangeRequestField) error {
	defer s.lock()()
	if _, ok := s.d.requests[f.ChangeRequestID]; !ok {
		return sentinel.ErrNotFound
	}
	s.insertField(f.ChangeRequestID, f)
	return nil
}

func (s *Store) UpdateChangeRequestField(ctx context.Context, id uint, fields map[string]interface{}) error {
	defer s.lock()()
	f, ok := s.d.fields[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	next := cloneField(f)
	if err := applyColumns(ctx, next, fields); err != nil {
		return err
	}
	s.d.fields[id] = next
	return nil
}

func (s *Store) UpdateChangeRequest(ctx context.Context, id string, fields map[string]interface{}) error {
	defer s.lock()()
	cr, ok := s.d.requests[id]
	if !ok {
		return sentinel.ErrNotFound
	}
	fields["updated_at"] = time.Now()
	next := cloneRequestHeader(cr)
	if err := applyColumns(ctx, next, fields); err != nil {
		return err
	}
	s.d.requests[id] = next
	return nil
}

func (s *Store) withFields(cr *models.ChangeRequest) *models.ChangeRequest {
	out := cloneRequestHeader(cr)
	for _, f := range s.d.fields {
		if f.ChangeRequestID == cr.ID {
			out.Fields = append(out.Fields, *cloneField(f))
		}
	}
	sort.Slice(out.Fields, func(i, j int) bool {
		if out.Fields[i].Position == out.Fields[j].Position {
			return out.Fields[i].ID < out.Fields[j].ID
		}
		return out.Fields[i].Position < out.Fields[j].Position
	})
	return out
}

/* ------------------ Audit ------------------ */

func (s *Store) AppendAudit(ctx context.Context, e *models.AuditLog) error {
	defer s.lock()()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now()
	}
	cp := cloneAudit(e)
	s.d.audit = append(s.d.audit, cp)
	return nil
}

func (s *Store) ListAudit(ctx context.Context, coachID string) ([]*models.AuditLog, error) {
	defer s.lock()()
	var out []*models.AuditLog
	for _, e := range s.d.audit {
		if e.CoachID == coachID {
			out = append(out, cloneAudit(e))
		}
	}
	return out, nil
}

/* ------------------ Helpers ------------------ */

func stamp(created, updated *time.Time) {
	now := time.Now()
	if created.IsZero() {
		*created = now
	}
	if updated.IsZero() {
		*updated = now
	}
}

var schemaCache sync.Map

// applyColumns sets struct fields from a column map the way gorm's Updates
// would, using gorm's own schema so column names match the Postgres store.
func applyColumns(ctx context.Context, dst interface{}, fields map[string]interface{}) error {
	sch, err := schema.Parse(dst, &schemaCache, schema.NamingStrategy{})
	if err != nil {
		return err
	}
	rv := reflect.ValueOf(dst).Elem()
	for col, v := range fields {
		f, ok := sch.FieldsByDBName[col]
		if !ok {
			return fmt.Errorf("memstore: unknown column %q on %s", col, sch.Name)
		}
		if err := f.Set(ctx, rv, v); err != nil {
			return fmt.Errorf("memstore: set %s.%s: %w", sch.Name, col, err)
		}
	}
	return nil
}
