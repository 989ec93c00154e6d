package services

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"github.com/zoneup/zoneup/internal/common"
	"github.com/zoneup/zoneup/internal/dbx"
	"github.com/zoneup/zoneup/internal/logging"
	"github.com/zoneup/zoneup/internal/server/config"
	"github.com/zoneup/zoneup/internal/server/models"
	"github.com/zoneup/zoneup/internal/server/repositories/actions"
	"github.com/zoneup/zoneup/internal/server/repositories/domains"
	"github.com/zoneup/zoneup/internal/server/repositories/users"
	"github.com/zoneup/zoneup/internal/server/tokens"
)

// fakeUserRepo is an in-memory users.Repository.
type fakeUserRepo struct {
	byID map[string]*models.User

	createErr error
	deleteErr error
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{byID: make(map[string]*models.User)}
}

func (r *fakeUserRepo) Create(_ context.Context, user *models.User) (*models.User, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	for _, u := range r.byID {
		if u.Email == user.Email {
			return nil, common.ErrConflict
		}
	}
	cp := *user
	r.byID[user.ID] = &cp
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	for _, u := range r.byID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeUserRepo) GetByID(_ context.Context, id string) (*models.User, error) {
	u, ok := r.byID[id]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) SetActive(_ context.Context, id string, active bool) error {
	u, ok := r.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	u.Active = active
	return nil
}

func (r *fakeUserRepo) UpdatePassword(_ context.Context, id string, passwordHash string) error {
	u, ok := r.byID[id]
	if !ok {
		return common.ErrNotFound
	}
	u.PasswordHash = passwordHash
	return nil
}

func (r *fakeUserRepo) Delete(_ context.Context, id string) error {
	if r.deleteErr != nil {
		return r.deleteErr
	}
	if _, ok := r.byID[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

// fakeDomainRepo is an in-memory domains.Repository.
type fakeDomainRepo struct {
	byID map[string]*models.Domain

	createErr error
	updateErr error
}

func newFakeDomainRepo() *fakeDomainRepo {
	return &fakeDomainRepo{byID: make(map[string]*models.Domain)}
}

func copyDomain(d *models.Domain) *models.Domain {
	cp := *d
	cp.Services = append([]models.Service(nil), d.Services...)
	return &cp
}

func (r *fakeDomainRepo) Create(_ context.Context, domain *models.Domain) (*models.Domain, error) {
	if r.createErr != nil {
		return nil, r.createErr
	}
	for _, d := range r.byID {
		if d.UserDomain == domain.UserDomain {
			return nil, common.ErrConflict
		}
	}
	r.byID[domain.ID] = copyDomain(domain)
	return copyDomain(domain), nil
}

func (r *fakeDomainRepo) GetByLabel(_ context.Context, label string) (*models.Domain, error) {
	for _, d := range r.byID {
		if d.UserDomain == label {
			return copyDomain(d), nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeDomainRepo) GetByUpdateToken(_ context.Context, token string) (*models.Domain, error) {
	if token == "" {
		return nil, common.ErrNotFound
	}
	for _, d := range r.byID {
		if d.UpdateToken == token {
			return copyDomain(d), nil
		}
	}
	return nil, common.ErrNotFound
}

func (r *fakeDomainRepo) ListByUserID(_ context.Context, userID string) ([]*models.Domain, error) {
	var out []*models.Domain
	for _, d := range r.byID {
		if d.UserID == userID {
			out = append(out, copyDomain(d))
		}
	}
	return out, nil
}

func (r *fakeDomainRepo) Update(_ context.Context, domain *models.Domain) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	stored, ok := r.byID[domain.ID]
	if !ok {
		return common.ErrNotFound
	}
	services := stored.Services
	cp := copyDomain(domain)
	cp.Services = services
	r.byID[domain.ID] = cp
	return nil
}

func (r *fakeDomainRepo) ReplaceServices(_ context.Context, domainID string, services []models.Service) error {
	d, ok := r.byID[domainID]
	if !ok {
		return common.ErrNotFound
	}
	d.Services = append([]models.Service(nil), services...)
	return nil
}

func (r *fakeDomainRepo) Delete(_ context.Context, id string) error {
	if _, ok := r.byID[id]; !ok {
		return common.ErrNotFound
	}
	delete(r.byID, id)
	return nil
}

// fakeActionRepo is an in-memory actions.Repository.
type fakeActionRepo struct {
	byToken map[string]*models.Action
}

func newFakeActionRepo() *fakeActionRepo {
	return &fakeActionRepo{byToken: make(map[string]*models.Action)}
}

func (r *fakeActionRepo) Create(_ context.Context, action *models.Action) error {
	cp := *action
	r.byToken[action.Token] = &cp
	return nil
}

func (r *fakeActionRepo) GetByToken(_ context.Context, token string) (*models.Action, error) {
	action, ok := r.byToken[token]
	if !ok {
		return nil, common.ErrNotFound
	}
	cp := *action
	return &cp, nil
}

func (r *fakeActionRepo) DeleteByToken(_ context.Context, token string) error {
	delete(r.byToken, token)
	return nil
}

func (r *fakeActionRepo) DeleteByUserAndType(_ context.Context, userID string, actionType models.ActionType) error {
	for token, action := range r.byToken {
		if action.UserID == userID && action.Type == actionType {
			delete(r.byToken, token)
		}
	}
	return nil
}

// fakeRepoManager vends the in-memory repositories regardless of the
// handle, so transactional and pool-scoped calls hit the same state.
type fakeRepoManager struct {
	users   *fakeUserRepo
	domains *fakeDomainRepo
	actions *fakeActionRepo
}

func newFakeRepoManager() *fakeRepoManager {
	return &fakeRepoManager{
		users:   newFakeUserRepo(),
		domains: newFakeDomainRepo(),
		actions: newFakeActionRepo(),
	}
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) users.Repository              { return m.users }
func (m *fakeRepoManager) Domains(dbx.DBTX) domains.Repository          { return m.domains }
func (m *fakeRepoManager) Actions(dbx.DBTX) actions.Repository          { return m.actions }

// fakeReconciler records reconciler calls and fails on demand.
type fakeReconciler struct {
	published  []string
	reconciled []string
	tornDown   []string

	publishErr   error
	reconcileErr error
	teardownErr  error
	failTeardown string // fail teardown for this label only
}

func (f *fakeReconciler) Publish(_ context.Context, d *models.Domain) error {
	if f.publishErr != nil {
		return f.publishErr
	}
	f.published = append(f.published, d.UserDomain)
	return nil
}

func (f *fakeReconciler) Reconcile(_ context.Context, _, newDomain *models.Domain) error {
	if f.reconcileErr != nil {
		return f.reconcileErr
	}
	f.reconciled = append(f.reconciled, newDomain.UserDomain)
	return nil
}

func (f *fakeReconciler) Teardown(_ context.Context, d *models.Domain) error {
	if f.teardownErr != nil {
		return f.teardownErr
	}
	if f.failTeardown != "" && d.UserDomain == f.failTeardown {
		return common.ErrInternal
	}
	f.tornDown = append(f.tornDown, d.UserDomain)
	return nil
}

// fakeMailer records sent mail.
type fakeMailer struct {
	activations []string // "email|url"
	resets      []string
	changed     []string
	sendErr     error
}

func (f *fakeMailer) SendActivation(_ context.Context, email, _, activationURL string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.activations = append(f.activations, email+"|"+activationURL)
	return nil
}

func (f *fakeMailer) SendPasswordReset(_ context.Context, email, resetURL string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.resets = append(f.resets, email+"|"+resetURL)
	return nil
}

func (f *fakeMailer) SendPasswordChanged(_ context.Context, email string) error {
	if f.sendErr != nil {
		return f.sendErr
	}
	f.changed = append(f.changed, email)
	return nil
}

func testLogger() logging.Logger {
	return logging.Discard()
}

// newMockDB returns a database handle whose transactions always succeed.
// The repositories are faked, so no statement ever reaches the driver.
func newMockDB(t *testing.T) *sql.DB {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	mock.MatchExpectationsInOrder(false)
	for range 32 {
		mock.ExpectBegin()
		mock.ExpectCommit()
		mock.ExpectRollback()
	}
	return db
}

type testEnv struct {
	db     *sql.DB
	rm     *fakeRepoManager
	rec    *fakeReconciler
	mailer *fakeMailer
	cfg    *config.Config

	users   *UserService
	domains *DomainService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		db:     newMockDB(t),
		rm:     newFakeRepoManager(),
		rec:    &fakeReconciler{},
		mailer: &fakeMailer{},
		cfg:    &config.Config{BaseURL: "https://zoneup.example", RootDomain: "zoneup.example"},
	}
	authority := tokens.NewAuthority(env.rm)
	env.users = NewUserService(env.db, env.rm, authority, env.mailer, env.rec, env.cfg, testLogger())
	env.domains = NewDomainService(env.db, env.rm, env.rec, testLogger())
	return env
}
