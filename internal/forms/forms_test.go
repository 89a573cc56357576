package forms

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MrEthical07/tokengate"
	"github.com/MrEthical07/tokengate/internal/sqlitedb"
)

type steppingClock struct {
	now time.Time
}

func (c *steppingClock) Now() time.Time {
	c.now = c.now.Add(time.Second)
	return c.now
}

func newTestService(t *testing.T) *Service {
	t.Helper()
	db, err := sqlitedb.Open(sqlitedb.Memory)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	clock := &steppingClock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
	svc := NewService(db, clock.Now)
	if err := svc.Migrate(context.Background()); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return svc
}

func TestCreateRequiresTitle(t *testing.T) {
	svc := newTestService(t)
	_, err := svc.Create(context.Background(), &tokengate.Identity{SubjectID: 1}, CreateRequest{Title: "  "})
	if !errors.Is(err, ErrTitleRequired) {
		t.Fatalf("expected ErrTitleRequired, got %v", err)
	}
	if tokengate.CodeOf(err) != tokengate.CodeInvalidArgument {
		t.Fatalf("expected invalid argument, got %s", tokengate.CodeOf(err))
	}
}

func TestListIsOwnerScopedAndNewestFirst(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	alice := &tokengate.Identity{SubjectID: 1}
	bob := &tokengate.Identity{SubjectID: 2}

	for _, title := range []string{"first", "second", "third"} {
		if _, err := svc.Create(ctx, alice, CreateRequest{Title: title}); err != nil {
			t.Fatalf("create %s: %v", title, err)
		}
	}
	if _, err := svc.Create(ctx, bob, CreateRequest{Title: "bob's"}); err != nil {
		t.Fatalf("create bob: %v", err)
	}

	resp, err := svc.List(ctx, alice, ListRequest{Page: 1, Limit: 2})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if resp.Total != 3 || len(resp.Forms) != 2 {
		t.Fatalf("expected total 3 and 2 rows, got %d and %d", resp.Total, len(resp.Forms))
	}
	if resp.Forms[0].Title != "third" || resp.Forms[1].Title != "second" {
		t.Fatalf("unexpected order: %q, %q", resp.Forms[0].Title, resp.Forms[1].Title)
	}

	resp, err = svc.List(ctx, alice, ListRequest{Page: 2, Limit: 2})
	if err != nil {
		t.Fatalf("list page 2: %v", err)
	}
	if len(resp.Forms) != 1 || resp.Forms[0].Title != "first" {
		t.Fatalf("unexpected page 2: %+v", resp.Forms)
	}

	resp, err = svc.List(ctx, bob, ListRequest{})
	if err != nil {
		t.Fatalf("list bob: %v", err)
	}
	if resp.Total != 1 || resp.Forms[0].UserID != 2 {
		t.Fatalf("bob sees %+v", resp)
	}
}

func TestGetAndDeleteRespectOwner(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	alice := &tokengate.Identity{SubjectID: 1}
	bob := &tokengate.Identity{SubjectID: 2}

	created, err := svc.Create(ctx, alice, CreateRequest{Title: "mine", Description: "desc"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	formID := created.Form.ID

	got, err := svc.Get(ctx, alice, GetRequest{ID: formID})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Form.Description != "desc" || !got.Form.CreatedAt.Equal(created.Form.CreatedAt) {
		t.Fatalf("unexpected form %+v", got.Form)
	}

	if _, err := svc.Get(ctx, bob, GetRequest{ID: formID}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for other owner, got %v", err)
	}
	if _, err := svc.Get(ctx, alice, GetRequest{}); !errors.Is(err, ErrIDRequired) {
		t.Fatalf("expected ErrIDRequired, got %v", err)
	}
	if _, err := svc.Delete(ctx, bob, DeleteRequest{ID: formID}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound deleting other owner's form, got %v", err)
	}
	if _, err := svc.Delete(ctx, alice, DeleteRequest{ID: formID}); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, alice, GetRequest{ID: formID}); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got %v", err)
	}
}

func TestClosedDatabaseIsInternal(t *testing.T) {
	svc := newTestService(t)
	svc.db.Close()

	_, err := svc.List(context.Background(), &tokengate.Identity{SubjectID: 1}, ListRequest{})
	if tokengate.CodeOf(err) != tokengate.CodeInternal {
		t.Fatalf("expected internal, got %v", err)
	}
}
