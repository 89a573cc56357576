package revocation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/MrEthical07/tokengate/internal/sqlitedb"
	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newRedisStoreTest(t *testing.T) (*RedisStore, *miniredis.Miniredis, func()) {
	t.Helper()
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("miniredis start: %v", err)
	}
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})
	store := NewRedisStore(rdb, "tg", time.Minute)
	return store, mr, func() {
		rdb.Close()
		mr.Close()
	}
}

func newSQLiteStoreTest(t *testing.T) *SQLiteStore {
	t.Helper()
	db, err := sqlitedb.Open(sqlitedb.Memory)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	store := NewSQLiteStore(db, time.Minute)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return store
}

// runStoreContract checks the behavior every backend must share.
func runStoreContract(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()

	entry := NewEntry("token-a", now, now.Add(time.Hour))
	revoked, err := store.IsRevoked(ctx, entry.TokenID)
	if err != nil {
		t.Fatalf("lookup before revoke: %v", err)
	}
	if revoked {
		t.Fatal("unexpected revoked before revoke")
	}

	if err := store.Revoke(ctx, entry); err != nil {
		t.Fatalf("first revoke: %v", err)
	}
	if err := store.Revoke(ctx, entry); err != nil {
		t.Fatalf("second revoke: %v", err)
	}

	revoked, err = store.IsRevoked(ctx, entry.TokenID)
	if err != nil {
		t.Fatalf("lookup after revoke: %v", err)
	}
	if !revoked {
		t.Fatal("expected revoked immediately after Revoke returned")
	}

	other, err := store.IsRevoked(ctx, TokenID("token-b"))
	if err != nil {
		t.Fatalf("lookup other: %v", err)
	}
	if other {
		t.Fatal("revoking one token must not revoke another")
	}

	noExpiry := NewEntry("garbage-without-exp", now, time.Time{})
	if err := store.Revoke(ctx, noExpiry); err != nil {
		t.Fatalf("revoke without expiry: %v", err)
	}
	if revoked, err := store.IsRevoked(ctx, noExpiry.TokenID); err != nil || !revoked {
		t.Fatalf("expected entry without expiry to be revoked, got %v err=%v", revoked, err)
	}
}

func runConcurrentRevoke(t *testing.T, store Store) {
	t.Helper()
	ctx := context.Background()
	entry := NewEntry("shared-token", time.Now(), time.Now().Add(time.Hour))

	var wg sync.WaitGroup
	errs := make(chan error, 16)
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- store.Revoke(ctx, entry)
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("concurrent revoke: %v", err)
		}
	}
	if revoked, err := store.IsRevoked(ctx, entry.TokenID); err != nil || !revoked {
		t.Fatalf("expected revoked after concurrent revokes, got %v err=%v", revoked, err)
	}
}

func TestMemoryStoreContract(t *testing.T) {
	store := NewMemoryStore(0)
	runStoreContract(t, store)
	runConcurrentRevoke(t, store)
}

func TestRedisStoreContract(t *testing.T) {
	store, _, done := newRedisStoreTest(t)
	defer done()
	runStoreContract(t, store)
	runConcurrentRevoke(t, store)
}

func TestSQLiteStoreContract(t *testing.T) {
	store := newSQLiteStoreTest(t)
	runStoreContract(t, store)
	runConcurrentRevoke(t, store)
}

func TestTokenIDIsStableHex(t *testing.T) {
	a := TokenID("abc")
	if a != TokenID("abc") {
		t.Fatal("expected deterministic token id")
	}
	if len(a) != 64 {
		t.Fatalf("expected 64 hex chars, got %d", len(a))
	}
	if a == TokenID("abd") {
		t.Fatal("expected distinct ids for distinct tokens")
	}
}

func TestMemoryStoreFirstWriteWins(t *testing.T) {
	store := NewMemoryStore(time.Minute)
	ctx := context.Background()
	first := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	if err := store.Revoke(ctx, NewEntry("t", first, time.Time{})); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if err := store.Revoke(ctx, NewEntry("t", first.Add(time.Hour), time.Time{})); err != nil {
		t.Fatalf("revoke again: %v", err)
	}
	got, ok := store.Get(TokenID("t"))
	if !ok || !got.RevokedAt.Equal(first) {
		t.Fatalf("expected first revocation time to be kept, got %+v", got)
	}
}

func TestMemoryStoreCanceledContextIsUnavailable(t *testing.T) {
	store := NewMemoryStore(0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := store.IsRevoked(ctx, TokenID("x")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestRedisStoreTTLFollowsExpiry(t *testing.T) {
	store, mr, done := newRedisStoreTest(t)
	defer done()
	ctx := context.Background()
	now := time.Now()

	entry := NewEntry("ttl-token", now, now.Add(10*time.Minute))
	if err := store.Revoke(ctx, entry); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	ttl := mr.TTL(store.key(entry.TokenID))
	if ttl < 10*time.Minute || ttl > 11*time.Minute+time.Second {
		t.Fatalf("unexpected ttl %v", ttl)
	}

	forever := NewEntry("no-exp", now, time.Time{})
	if err := store.Revoke(ctx, forever); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ttl := mr.TTL(store.key(forever.TokenID)); ttl != 0 {
		t.Fatalf("expected no ttl for unknown expiry, got %v", ttl)
	}

	mr.FastForward(12 * time.Minute)
	revoked, err := store.IsRevoked(ctx, entry.TokenID)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if revoked {
		t.Fatal("expected entry to lapse after token expiry plus grace")
	}
}

func TestRedisStoreTTLUsesInjectedClock(t *testing.T) {
	store, mr, done := newRedisStoreTest(t)
	defer done()
	past := time.Date(2020, 3, 1, 9, 0, 0, 0, time.UTC)
	store.WithClock(func() time.Time { return past })

	entry := NewEntry("clocked-token", past, past.Add(10*time.Minute))
	if err := store.Revoke(context.Background(), entry); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if ttl := mr.TTL(store.key(entry.TokenID)); ttl != 11*time.Minute {
		t.Fatalf("expected ttl of retention plus grace measured on the injected clock, got %v", ttl)
	}
}

func TestRedisStoreUnavailable(t *testing.T) {
	store, mr, done := newRedisStoreTest(t)
	defer done()
	mr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if _, err := store.IsRevoked(ctx, TokenID("x")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from lookup, got %v", err)
	}
	if err := store.Revoke(ctx, NewEntry("x", time.Now(), time.Time{})); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from revoke, got %v", err)
	}
	if err := store.Ping(ctx); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable from ping, got %v", err)
	}
}

func TestSQLiteStoreUnavailableAfterClose(t *testing.T) {
	db, err := sqlitedb.Open(sqlitedb.Memory)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	store := NewSQLiteStore(db, 0)
	if err := store.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	db.Close()

	if _, err := store.IsRevoked(context.Background(), TokenID("x")); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("expected ErrUnavailable, got %v", err)
	}
}

func TestPruneRemovesOnlyLapsedEntries(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	stores := map[string]interface {
		Store
		Pruner
	}{
		"memory": NewMemoryStore(time.Minute),
		"sqlite": newSQLiteStoreTest(t),
	}

	for name, store := range stores {
		ctx := context.Background()
		lapsed := NewEntry("lapsed", now.Add(-2*time.Hour), now.Add(-time.Hour))
		inGrace := NewEntry("in-grace", now.Add(-time.Hour), now.Add(-30*time.Second))
		live := NewEntry("live", now, now.Add(time.Hour))
		forever := NewEntry("forever", now.Add(-48*time.Hour), time.Time{})
		for _, e := range []Entry{lapsed, inGrace, live, forever} {
			if err := store.Revoke(ctx, e); err != nil {
				t.Fatalf("%s: revoke: %v", name, err)
			}
		}

		removed, err := store.Prune(ctx, now)
		if err != nil {
			t.Fatalf("%s: prune: %v", name, err)
		}
		if removed != 1 {
			t.Fatalf("%s: expected 1 pruned entry, got %d", name, removed)
		}
		for _, e := range []Entry{inGrace, live, forever} {
			if ok, _ := store.IsRevoked(ctx, e.TokenID); !ok {
				t.Fatalf("%s: entry %s pruned too early", name, e.TokenID)
			}
		}
	}
}

func TestJanitorSweep(t *testing.T) {
	store := NewMemoryStore(time.Second)
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)
	if err := store.Revoke(ctx, NewEntry("old", past, past)); err != nil {
		t.Fatalf("revoke: %v", err)
	}

	j := StartJanitor(store, JanitorConfig{Interval: time.Hour})
	defer j.Stop()

	if n := j.Sweep(); n != 1 {
		t.Fatalf("expected one entry swept, got %d", n)
	}
	if store.Len() != 0 {
		t.Fatalf("expected empty store, got %d", store.Len())
	}
	j.Stop()
	j.Stop()
}
