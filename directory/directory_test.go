package directory

import (
	"context"
	"errors"
	"testing"

	"github.com/MrEthical07/tokengate"
	"github.com/MrEthical07/tokengate/internal/sqlitedb"
	"golang.org/x/crypto/bcrypt"
)

type registry interface {
	tokengate.UserDirectory
	Create(ctx context.Context, u NewUser) (tokengate.UserRecord, error)
}

func newSQLiteDirectoryTest(t *testing.T) *SQLiteDirectory {
	t.Helper()
	db, err := sqlitedb.Open(sqlitedb.Memory)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	dir := NewSQLiteDirectory(db, bcrypt.MinCost)
	if err := dir.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return dir
}

func runDirectoryContract(t *testing.T, name string, dir registry) {
	ctx := context.Background()

	created, err := dir.Create(ctx, NewUser{Name: "Ada", Email: "ada@example.com", Password: "SecurePassword123!"})
	if err != nil {
		t.Fatalf("%s: create: %v", name, err)
	}
	if created.ID == 0 || created.PasswordHash == "SecurePassword123!" {
		t.Fatalf("%s: unexpected record %+v", name, created)
	}

	if _, err := dir.Create(ctx, NewUser{Name: "Ada 2", Email: "ada@example.com", Password: "x"}); !errors.Is(err, ErrAlreadyExists) {
		t.Fatalf("%s: expected ErrAlreadyExists, got %v", name, err)
	}
	if _, err := dir.Create(ctx, NewUser{Email: "b@example.com", Password: "x"}); !errors.Is(err, ErrInvalidUser) {
		t.Fatalf("%s: expected ErrInvalidUser, got %v", name, err)
	}

	found, err := dir.FindByEmail(ctx, "ada@example.com")
	if err != nil {
		t.Fatalf("%s: find: %v", name, err)
	}
	if found.ID != created.ID || found.Name != "Ada" || !found.CreatedAt.Equal(created.CreatedAt) {
		t.Fatalf("%s: found %+v, created %+v", name, found, created)
	}

	if _, err := dir.FindByEmail(ctx, "nobody@example.com"); !errors.Is(err, tokengate.ErrUserNotFound) {
		t.Fatalf("%s: expected ErrUserNotFound, got %v", name, err)
	}

	ok, err := dir.VerifyCredential(ctx, found, "SecurePassword123!")
	if err != nil || !ok {
		t.Fatalf("%s: expected password to verify, ok=%v err=%v", name, ok, err)
	}
	ok, err = dir.VerifyCredential(ctx, found, "wrong")
	if err != nil || ok {
		t.Fatalf("%s: expected mismatch without error, ok=%v err=%v", name, ok, err)
	}
}

func TestSQLiteDirectory(t *testing.T) {
	runDirectoryContract(t, "sqlite", newSQLiteDirectoryTest(t))
}

func TestMemoryDirectory(t *testing.T) {
	runDirectoryContract(t, "memory", NewMemoryDirectory(bcrypt.MinCost))
}

func TestVerifyCorruptHashIsError(t *testing.T) {
	dir := NewMemoryDirectory(bcrypt.MinCost)
	_, err := dir.VerifyCredential(context.Background(), tokengate.UserRecord{PasswordHash: "not-bcrypt"}, "pw")
	if err == nil {
		t.Fatal("expected corrupt hash to surface as an error")
	}
}
