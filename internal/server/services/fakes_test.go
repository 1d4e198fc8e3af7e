package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/sessionkeeper/internal/common"
	"github.com/dmitrijs2005/sessionkeeper/internal/dbx"
	"github.com/dmitrijs2005/sessionkeeper/internal/logging"
	"github.com/dmitrijs2005/sessionkeeper/internal/server/models"
	passwordresetsrepo "github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/passwordresets"
	ratelimitsrepo "github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/ratelimits"
	remembertokensrepo "github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/remembertokens"
	usersrepo "github.com/dmitrijs2005/sessionkeeper/internal/server/repositories/users"
)

var errFakeDB = errors.New("fake db failure")

// memStore is an in-memory stand-in for the database shared by all fake
// repositories. fail makes the named operation return errFakeDB.
type memStore struct {
	mu sync.Mutex

	nextID int64
	users  map[int64]*models.User
	tokens map[string]*models.RememberToken
	resets map[int64]*models.PasswordReset
	rates  map[string]*models.RateLimit

	fail map[string]bool
}

func newMemStore() *memStore {
	return &memStore{
		users:  map[int64]*models.User{},
		tokens: map[string]*models.RememberToken{},
		resets: map[int64]*models.PasswordReset{},
		rates:  map[string]*models.RateLimit{},
		fail:   map[string]bool{},
	}
}

func (s *memStore) id() int64 {
	s.nextID++
	return s.nextID
}

func (s *memStore) failing(op string) bool { return s.fail[op] }

type snapshot struct {
	nextID int64
	users  map[int64]models.User
	tokens map[string]models.RememberToken
	resets map[int64]models.PasswordReset
	rates  map[string]models.RateLimit
}

func (s *memStore) snapshot() snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := snapshot{
		nextID: s.nextID,
		users:  map[int64]models.User{},
		tokens: map[string]models.RememberToken{},
		resets: map[int64]models.PasswordReset{},
		rates:  map[string]models.RateLimit{},
	}
	for k, v := range s.users {
		snap.users[k] = *v
	}
	for k, v := range s.tokens {
		snap.tokens[k] = *v
	}
	for k, v := range s.resets {
		snap.resets[k] = *v
	}
	for k, v := range s.rates {
		snap.rates[k] = *v
	}
	return snap
}

func (s *memStore) restore(snap snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID = snap.nextID
	s.users = map[int64]*models.User{}
	for k, v := range snap.users {
		s.users[k] = &v
	}
	s.tokens = map[string]*models.RememberToken{}
	for k, v := range snap.tokens {
		s.tokens[k] = &v
	}
	s.resets = map[int64]*models.PasswordReset{}
	for k, v := range snap.resets {
		s.resets[k] = &v
	}
	s.rates = map[string]*models.RateLimit{}
	for k, v := range snap.rates {
		s.rates[k] = &v
	}
}

// --- transactor ---

// fakeDB serialises transactions and rolls the store back when fn fails.
// beforeTx, if set, runs before the transaction lock is taken.
type fakeDB struct {
	store    *memStore
	txMu     sync.Mutex
	beforeTx func()
	txCount  int
}

func (d *fakeDB) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	return nil, errors.New("fakeDB: raw SQL not supported")
}
func (d *fakeDB) QueryContext(context.Context, string, ...any) (*sql.Rows, error) {
	return nil, errors.New("fakeDB: raw SQL not supported")
}
func (d *fakeDB) QueryRowContext(context.Context, string, ...any) *sql.Row { return nil }

func (d *fakeDB) WithTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	if d.beforeTx != nil {
		d.beforeTx()
	}
	d.txMu.Lock()
	defer d.txMu.Unlock()
	d.txCount++

	snap := d.store.snapshot()
	if err := fn(ctx, d); err != nil {
		d.store.restore(snap)
		return err
	}
	return nil
}

var _ dbx.Transactor = (*fakeDB)(nil)

// --- repository manager ---

type fakeRepoManager struct {
	store *memStore
}

func (m *fakeRepoManager) RunMigrations(context.Context, *sql.DB) error { return nil }
func (m *fakeRepoManager) Users(dbx.DBTX) usersrepo.Repository         { return &fakeUsersRepo{m.store} }
func (m *fakeRepoManager) RememberTokens(dbx.DBTX) remembertokensrepo.Repository {
	return &fakeRememberRepo{m.store}
}
func (m *fakeRepoManager) PasswordResets(dbx.DBTX) passwordresetsrepo.Repository {
	return &fakeResetsRepo{m.store}
}
func (m *fakeRepoManager) RateLimits(dbx.DBTX) ratelimitsrepo.Repository {
	return &fakeRatesRepo{m.store}
}

// --- users ---

type fakeUsersRepo struct{ s *memStore }

func (r *fakeUsersRepo) Create(_ context.Context, u *models.User) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failing("users.Create") {
		return nil, errFakeDB
	}
	for _, existing := range r.s.users {
		if existing.Email == u.Email || existing.UserName == u.UserName {
			return nil, common.ErrConflict
		}
	}
	u.ID = r.s.id()
	cp := *u
	r.s.users[u.ID] = &cp
	return u, nil
}

func (r *fakeUsersRepo) find(match func(*models.User) bool, op string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failing(op) {
		return nil, errFakeDB
	}
	for _, u := range r.s.users {
		if match(u) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeUsersRepo) GetByID(_ context.Context, id int64) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.ID == id }, "users.GetByID")
}

func (r *fakeUsersRepo) GetByEmail(_ context.Context, email string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.Email == email }, "users.GetByEmail")
}

func (r *fakeUsersRepo) GetByUserName(_ context.Context, name string) (*models.User, error) {
	return r.find(func(u *models.User) bool { return u.UserName == name }, "users.GetByUserName")
}

func (r *fakeUsersRepo) UpdatePassword(_ context.Context, id int64, hash string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failing("users.UpdatePassword") {
		return errFakeDB
	}
	u, ok := r.s.users[id]
	if !ok {
		return common.ErrorNotFound
	}
	u.PasswordHash = hash
	return nil
}

func (r *fakeUsersRepo) UpdateProfile(_ context.Context, id int64, name, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failing("users.UpdateProfile") {
		return nil, errFakeDB
	}
	u, ok := r.s.users[id]
	if !ok {
		return nil, common.ErrorNotFound
	}
	for _, other := range r.s.users {
		if other.ID != id && (other.Email == email || other.UserName == name) {
			return nil, common.ErrConflict
		}
	}
	u.UserName = name
	u.Email = email
	cp := *u
	return &cp, nil
}

func (r *fakeUsersRepo) RegisterFailedLogin(_ context.Context, id int64, threshold int, lockUntil time.Time) (int, *time.Time, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failing("users.RegisterFailedLogin") {
		return 0, nil, errFakeDB
	}
	u, ok := r.s.users[id]
	if !ok {
		return 0, nil, common.ErrorNotFound
	}
	u.FailedLoginAttempts++
	if u.FailedLoginAttempts >= threshold {
		t := lockUntil
		u.LockedUntil = &t
	}
	if u.LockedUntil == nil {
		return u.FailedLoginAttempts, nil, nil
	}
	t := *u.LockedUntil
	return u.FailedLoginAttempts, &t, nil
}

func (r *fakeUsersRepo) ResetFailedLogins(_ context.Context, id int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failing("users.ResetFailedLogins") {
		return errFakeDB
	}
	if u, ok := r.s.users[id]; ok {
		u.FailedLoginAttempts = 0
		u.LockedUntil = nil
	}
	return nil
}

// --- remember tokens ---

type fakeRememberRepo struct{ s *memStore }

func (r *fakeRememberRepo) Create(_ context.Context, t *models.RememberToken) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failing("tokens.Create") {
		return errFakeDB
	}
	t.ID = r.s.id()
	cp := *t
	r.s.tokens[t.JTI] = &cp
	return nil
}

func (r *fakeRememberRepo) FindByJTI(_ context.Context, jti string) (*models.RememberToken, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failing("tokens.FindByJTI") {
		return nil, errFakeDB
	}
	t, ok := r.s.tokens[jti]
	if !ok {
		return nil, common.ErrorNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeRememberRepo) RevokeByJTI(_ context.Context, jti string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failing("tokens.RevokeByJTI") {
		return false, errFakeDB
	}
	t, ok := r.s.tokens[jti]
	if !ok || t.Revoked {
		return false, nil
	}
	t.Revoked = true
	return true, nil
}

func (r *fakeRememberRepo) RevokeByJTIForUser(_ context.Context, userID int64, jti string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t, ok := r.s.tokens[jti]; ok && t.UserID == userID {
		t.Revoked = true
	}
	return nil
}

func (r *fakeRememberRepo) revokeWhere(match func(*models.RememberToken) bool) int64 {
	var n int64
	for _, t := range r.s.tokens {
		if match(t) && !t.Revoked {
			t.Revoked = true
			n++
		}
	}
	return n
}

func (r *fakeRememberRepo) RevokeFamily(_ context.Context, familyID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.revokeWhere(func(t *models.RememberToken) bool { return t.FamilyID == familyID }), nil
}

func (r *fakeRememberRepo) RevokeAllForUser(_ context.Context, userID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failing("tokens.RevokeAllForUser") {
		return 0, errFakeDB
	}
	return r.revokeWhere(func(t *models.RememberToken) bool { return t.UserID == userID }), nil
}

func (r *fakeRememberRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failing("tokens.DeleteExpired") {
		return 0, errFakeDB
	}
	var n int64
	for k, t := range r.s.tokens {
		if t.ExpiresAt.Before(now) {
			delete(r.s.tokens, k)
			n++
		}
	}
	return n, nil
}

// --- password resets ---

type fakeResetsRepo struct{ s *memStore }

func (r *fakeResetsRepo) Create(_ context.Context, userID int64, hash string, expiresAt time.Time) (*models.PasswordReset, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failing("resets.Create") {
		return nil, errFakeDB
	}
	pr := &models.PasswordReset{ID: r.s.id(), UserID: userID, TokenHash: hash, ExpiresAt: expiresAt}
	cp := *pr
	r.s.resets[pr.ID] = &cp
	return pr, nil
}

func (r *fakeResetsRepo) InvalidateForUser(_ context.Context, userID int64) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for _, pr := range r.s.resets {
		if pr.UserID == userID && !pr.Used {
			pr.Used = true
			n++
		}
	}
	return n, nil
}

func (r *fakeResetsRepo) FindValidByHash(_ context.Context, hash string, now time.Time) (*models.PasswordReset, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	ids := make([]int64, 0, len(r.s.resets))
	for id := range r.s.resets {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] > ids[j] })
	for _, id := range ids {
		pr := r.s.resets[id]
		if pr.TokenHash == hash && !pr.Used && pr.ExpiresAt.After(now) {
			cp := *pr
			return &cp, nil
		}
	}
	return nil, common.ErrorNotFound
}

func (r *fakeResetsRepo) MarkUsed(_ context.Context, id int64) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	pr, ok := r.s.resets[id]
	if !ok || pr.Used {
		return false, nil
	}
	pr.Used = true
	return true, nil
}

func (r *fakeResetsRepo) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, pr := range r.s.resets {
		if pr.Used || pr.ExpiresAt.Before(now) {
			delete(r.s.resets, id)
			n++
		}
	}
	return n, nil
}

// --- rate limits ---

type fakeRatesRepo struct{ s *memStore }

func rateKey(identifier, endpoint string) string { return identifier + "|" + endpoint }

func (r *fakeRatesRepo) PurgeStale(_ context.Context, endpoint string, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failing("rates.PurgeStale") {
		return 0, errFakeDB
	}
	var n int64
	for k, rl := range r.s.rates {
		if rl.Endpoint == endpoint && rl.WindowStart.Before(cutoff) {
			delete(r.s.rates, k)
			n++
		}
	}
	return n, nil
}

func (r *fakeRatesRepo) Hit(_ context.Context, identifier, endpoint string, maxHits int, now, cutoff time.Time) (int, bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.s.failing("rates.Hit") {
		return 0, false, errFakeDB
	}
	if maxHits <= 0 {
		return 0, false, nil
	}
	k := rateKey(identifier, endpoint)
	rl, ok := r.s.rates[k]
	switch {
	case !ok:
		r.s.rates[k] = &models.RateLimit{ID: r.s.id(), Identifier: identifier, Endpoint: endpoint, Hits: 1, WindowStart: now}
		return 1, true, nil
	case rl.WindowStart.Before(cutoff):
		rl.Hits, rl.WindowStart = 1, now
		return 1, true, nil
	case rl.Hits < maxHits:
		rl.Hits++
		return rl.Hits, true, nil
	default:
		return 0, false, nil
	}
}

func (r *fakeRatesRepo) DeleteOlderThan(_ context.Context, cutoff time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for k, rl := range r.s.rates {
		if rl.WindowStart.Before(cutoff) {
			delete(r.s.rates, k)
			n++
		}
	}
	return n, nil
}

// --- clock ---

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// --- hasher ---

// plainHasher keeps tests fast; real hashers are covered in cryptox.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) { return "plain$" + password, nil }
func (plainHasher) Verify(encoded, password string) (bool, error) {
	return encoded == "plain$"+password, nil
}

// --- logger ---

type logEntry struct {
	level string
	msg   string
	args  []any
}

// recordLogger keeps every entry so tests can assert on security events.
type recordLogger struct {
	mu      *sync.Mutex
	entries *[]logEntry
	with    []any
}

func newRecordLogger() *recordLogger {
	return &recordLogger{mu: &sync.Mutex{}, entries: &[]logEntry{}}
}

func (l *recordLogger) add(level, msg string, args []any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	all := append(append([]any{}, l.with...), args...)
	*l.entries = append(*l.entries, logEntry{level: level, msg: msg, args: all})
}

func (l *recordLogger) Debug(_ context.Context, msg string, args ...any) { l.add("DEBUG", msg, args) }
func (l *recordLogger) Info(_ context.Context, msg string, args ...any)  { l.add("INFO", msg, args) }
func (l *recordLogger) Warn(_ context.Context, msg string, args ...any)  { l.add("WARN", msg, args) }
func (l *recordLogger) Error(_ context.Context, msg string, args ...any) { l.add("ERROR", msg, args) }

func (l *recordLogger) With(args ...any) logging.Logger {
	return &recordLogger{mu: l.mu, entries: l.entries, with: append(append([]any{}, l.with...), args...)}
}

func (l *recordLogger) find(level, msg string) *logEntry {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := range *l.entries {
		e := (*l.entries)[i]
		if e.level == level && e.msg == msg {
			return &e
		}
	}
	return nil
}

// mentions reports whether any logged value contains s.
func (l *recordLogger) mentions(s string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, e := range *l.entries {
		if strings.Contains(e.msg, s) {
			return true
		}
		for _, a := range e.args {
			if strings.Contains(fmt.Sprint(a), s) {
				return true
			}
		}
	}
	return false
}
