package tokengate

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/tokengate/revocation"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap/zaptest"
	"golang.org/x/crypto/bcrypt"
)

const (
	testEmail    = "test@example.com"
	testPassword = "SecurePassword123!"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type mockDirectory struct {
	users       map[string]UserRecord
	findErr     error
	verifyErr   error
	findCalls   int
	verifyCalls int
	mu          sync.Mutex
}

func newMockDirectory(t testing.TB) *mockDirectory {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(testPassword), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	created := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	return &mockDirectory{
		users: map[string]UserRecord{
			testEmail: {
				ID:           42,
				Email:        testEmail,
				Name:         "Test User",
				PasswordHash: string(hash),
				CreatedAt:    created,
				UpdatedAt:    created,
			},
		},
	}
}

func (d *mockDirectory) FindByEmail(_ context.Context, email string) (UserRecord, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.findCalls++
	if d.findErr != nil {
		return UserRecord{}, d.findErr
	}
	u, ok := d.users[email]
	if !ok {
		return UserRecord{}, ErrUserNotFound
	}
	return u, nil
}

func (d *mockDirectory) VerifyCredential(_ context.Context, u UserRecord, proof string) (bool, error) {
	d.mu.Lock()
	d.verifyCalls++
	verifyErr := d.verifyErr
	d.mu.Unlock()
	if verifyErr != nil {
		return false, verifyErr
	}
	return bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(proof)) == nil, nil
}

// stubStore lets tests control revocation answers and failures.
type stubStore struct {
	revokeErr error
	lookupErr error
	// lookupDelay holds IsRevoked before answering "not revoked", ignoring ctx.
	lookupDelay time.Duration
	lookups     int
	mu          sync.Mutex
}

func (s *stubStore) Revoke(context.Context, revocation.Entry) error {
	return s.revokeErr
}

func (s *stubStore) IsRevoked(context.Context, string) (bool, error) {
	s.mu.Lock()
	s.lookups++
	s.mu.Unlock()
	if s.lookupDelay > 0 {
		time.Sleep(s.lookupDelay)
	}
	return false, s.lookupErr
}

func (s *stubStore) Lookups() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lookups
}

var errStoreDown = errors.New("connection refused")

func testConfig(clock *fakeClock) Config {
	cfg := DefaultConfig()
	cfg.JWT.Secret = []byte("test-secret-key")
	cfg.JWT.TTL = time.Hour
	cfg.Revocation.PruneInterval = 0
	cfg.Metrics.Enabled = true
	if clock != nil {
		cfg.Now = clock.Now
	}
	return cfg
}

type testEngineOptions struct {
	config    *Config
	store     revocation.Store
	directory UserDirectory
	sink      AuditSink
}

func newTestEngine(t testing.TB, clock *fakeClock, opts testEngineOptions) *Engine {
	t.Helper()

	cfg := testConfig(clock)
	if opts.config != nil {
		cfg = *opts.config
	}
	store := opts.store
	if store == nil {
		store = revocation.NewMemoryStore(0)
	}
	dir := opts.directory
	if dir == nil {
		dir = newMockDirectory(t)
	}

	b := New().
		WithConfig(cfg).
		WithRevocationStore(store).
		WithUserDirectory(dir)
	if opts.sink != nil {
		b = b.WithAuditSink(opts.sink)
	}
	if tt, ok := t.(*testing.T); ok {
		b = b.WithLogger(zaptest.NewLogger(tt))
	}

	engine, err := b.Build()
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	t.Cleanup(engine.Close)
	return engine
}

func newTestRedis(t testing.TB) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis.Run failed: %v", err)
	}
	client := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})
	return mr, client
}

func mustLogin(t testing.TB, e *Engine) string {
	t.Helper()
	res, err := e.Login(context.Background(), testEmail, testPassword)
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	return res.Token
}
