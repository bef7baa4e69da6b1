package passkeys

import (
	"context"
	"testing"

	"github.com/uchkunrakhimow/auth-kit/internal/apperr"
	"github.com/uchkunrakhimow/auth-kit/internal/models"
	"github.com/uchkunrakhimow/auth-kit/internal/users"
)

func newTestService(t *testing.T) (*Service, *users.Service) {
	t.Helper()
	dir := users.NewService(users.NewMemoryRepository())
	return NewService(NewMemoryRepository(), dir), dir
}

func mustUser(t *testing.T, dir *users.Service, email string) *models.User {
	t.Helper()
	u, err := dir.Create(context.Background(), users.CreateParams{Email: email})
	if err != nil {
		t.Fatalf("create user: %v", err)
	}
	return u
}

func TestEnrollAndGlobalUniqueness(t *testing.T) {
	svc, dir := newTestService(t)
	ctx := context.Background()
	u1 := mustUser(t, dir, "u1@x.com")
	u2 := mustUser(t, dir, "u2@x.com")

	pk, err := svc.Enroll(ctx, EnrollParams{UserID: u1.ID, CredentialID: "cred-1", PublicKey: "pk1"})
	if err != nil {
		t.Fatalf("enroll failed: %v", err)
	}
	if pk.Counter != 0 {
		t.Fatalf("counter should start at 0, got %d", pk.Counter)
	}

	// same credential for a different user: global conflict
	_, err = svc.Enroll(ctx, EnrollParams{UserID: u2.ID, CredentialID: "cred-1", PublicKey: "pk2"})
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}

	// the original record survives untouched
	got, err := svc.FindByCredentialID(ctx, "cred-1")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if got == nil || got.UserID != u1.ID || got.PublicKey != "pk1" {
		t.Fatalf("surviving record corrupted: %+v", got)
	}
}

func TestFindByCredentialIDAttachesOwner(t *testing.T) {
	svc, dir := newTestService(t)
	ctx := context.Background()
	u := mustUser(t, dir, "owner@x.com")
	_, _ = svc.Enroll(ctx, EnrollParams{UserID: u.ID, CredentialID: "cred-2", PublicKey: "pk"})

	got, err := svc.FindByCredentialID(ctx, "cred-2")
	if err != nil {
		t.Fatalf("find failed: %v", err)
	}
	if got.User.Email != "owner@x.com" {
		t.Fatalf("owner projection missing: %+v", got.User)
	}

	absent, err := svc.FindByCredentialID(ctx, "nope")
	if err != nil || absent != nil {
		t.Fatalf("expected nil for unknown credential, got %v err %v", absent, err)
	}
}

func TestRecordUse(t *testing.T) {
	svc, dir := newTestService(t)
	ctx := context.Background()
	u := mustUser(t, dir, "use@x.com")
	_, _ = svc.Enroll(ctx, EnrollParams{UserID: u.ID, CredentialID: "cred-3", PublicKey: "pk"})

	updated, err := svc.RecordUse(ctx, "cred-3", 5)
	if err != nil {
		t.Fatalf("record use failed: %v", err)
	}
	if updated.Counter != 5 {
		t.Fatalf("counter not stored: %d", updated.Counter)
	}
	if updated.LastUsedAt == nil {
		t.Fatal("lastUsedAt should be set")
	}

	_, err = svc.RecordUse(ctx, "missing", 1)
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestRemoveOwnership(t *testing.T) {
	svc, dir := newTestService(t)
	ctx := context.Background()
	owner := mustUser(t, dir, "o@x.com")
	other := mustUser(t, dir, "p@x.com")
	pk, _ := svc.Enroll(ctx, EnrollParams{UserID: owner.ID, CredentialID: "cred-4", PublicKey: "pk"})

	// non-owner removal is forbidden and leaves the store unchanged
	err := svc.Remove(ctx, pk.ID, other.ID)
	if !apperr.IsKind(err, apperr.KindForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
	remaining, _ := svc.ListByUser(ctx, owner.ID)
	if len(remaining) != 1 {
		t.Fatalf("store changed on forbidden removal: %d records", len(remaining))
	}

	// missing credential
	err = svc.Remove(ctx, "missing", owner.ID)
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}

	// owner may remove by credential id too
	if err := svc.Remove(ctx, "cred-4", owner.ID); err != nil {
		t.Fatalf("owner removal failed: %v", err)
	}
	remaining, _ = svc.ListByUser(ctx, owner.ID)
	if len(remaining) != 0 {
		t.Fatal("credential should be gone")
	}
}
