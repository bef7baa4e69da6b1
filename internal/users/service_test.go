package users

import (
	"context"
	"testing"

	"github.com/uchkunrakhimow/auth-kit/internal/apperr"
	"github.com/uchkunrakhimow/auth-kit/internal/models"
)

func newTestService() *Service {
	return NewService(NewMemoryRepository())
}

func TestCreateAndDuplicateEmail(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	u, err := svc.Create(ctx, CreateParams{Email: "a@x.com", PasswordHash: "digest", Name: "Ann"})
	if err != nil {
		t.Fatalf("create failed: %v", err)
	}
	if u.ID == "" {
		t.Fatal("expected generated id")
	}
	if u.Role != models.RoleUser {
		t.Fatalf("expected default USER role, got %s", u.Role)
	}

	_, err = svc.Create(ctx, CreateParams{Email: "a@x.com", PasswordHash: "other"})
	if !apperr.IsKind(err, apperr.KindConflict) {
		t.Fatalf("expected conflict on duplicate email, got %v", err)
	}

	// exactly one surviving user
	all, err := svc.ListAll(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 user, got %d", len(all))
	}
}

func TestFindBranchesOnPresence(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	got, err := svc.FindByEmail(ctx, "ghost@x.com")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil for absent user")
	}

	created, _ := svc.Create(ctx, CreateParams{Email: "b@x.com"})
	got, err = svc.FindByID(ctx, created.ID)
	if err != nil || got == nil {
		t.Fatalf("expected user, got %v err %v", got, err)
	}
}

func TestUpdateProfilePartial(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	u, _ := svc.Create(ctx, CreateParams{Email: "c@x.com", Name: "Carol", AvatarURL: "http://a/1.png"})

	name := "Caroline"
	updated, err := svc.UpdateProfile(ctx, u.ID, ProfilePatch{Name: &name})
	if err != nil {
		t.Fatalf("update failed: %v", err)
	}
	if updated.Name != "Caroline" {
		t.Fatalf("name not updated: %s", updated.Name)
	}
	if updated.AvatarURL != "http://a/1.png" {
		t.Fatal("avatar should be untouched by a partial patch")
	}

	_, err = svc.UpdateProfile(ctx, "missing", ProfilePatch{Name: &name})
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestUpdateRole(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	u, _ := svc.Create(ctx, CreateParams{Email: "d@x.com"})

	updated, err := svc.UpdateRole(ctx, u.ID, models.RoleAdmin)
	if err != nil {
		t.Fatalf("update role failed: %v", err)
	}
	if updated.Role != models.RoleAdmin {
		t.Fatalf("expected ADMIN, got %s", updated.Role)
	}

	_, err = svc.UpdateRole(ctx, u.ID, models.Role("SUPERUSER"))
	if !apperr.IsKind(err, apperr.KindInvalidArgument) {
		t.Fatalf("expected invalid argument for unknown role, got %v", err)
	}

	_, err = svc.UpdateRole(ctx, "missing", models.RoleEditor)
	if !apperr.IsKind(err, apperr.KindNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestListAllOmitsDigest(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	_, _ = svc.Create(ctx, CreateParams{Email: "e@x.com", PasswordHash: "digest"})

	all, err := svc.ListAll(ctx)
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected 1 user, got %d", len(all))
	}
	// PublicUser has no digest field at all; assert the projection type
	// carries the rest.
	if all[0].Email != "e@x.com" {
		t.Fatalf("unexpected email: %s", all[0].Email)
	}
}

func TestReconcileCreatesThenLinks(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	// empty directory: create
	u, err := svc.Reconcile(ctx, ExternalClaim{ExternalID: "ext-1", Email: "a@x.com", Name: "Ann"})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if u.ExternalID != "ext-1" || u.Role != models.RoleUser {
		t.Fatalf("unexpected created user: %+v", u)
	}

	// second claim for the same identity refreshes the name only
	u2, err := svc.Reconcile(ctx, ExternalClaim{ExternalID: "ext-1", Email: "a@x.com", Name: "Annie"})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if u2.Name != "Annie" {
		t.Fatalf("name not refreshed: %s", u2.Name)
	}
	if u2.ExternalID != "ext-1" {
		t.Fatalf("externalId changed: %s", u2.ExternalID)
	}
	if u2.ID != u.ID {
		t.Fatal("reconcile must not create a second user for the same email")
	}
}

func TestReconcileLinksExistingPasswordUser(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	created, _ := svc.Create(ctx, CreateParams{Email: "f@x.com", PasswordHash: "digest", Name: "Fred"})

	u, err := svc.Reconcile(ctx, ExternalClaim{ExternalID: "ext-9", Email: "f@x.com", Name: "Freddy"})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if u.ID != created.ID {
		t.Fatal("should link, not create")
	}
	if u.ExternalID != "ext-9" {
		t.Fatalf("expected link, got externalId %q", u.ExternalID)
	}
	if u.PasswordHash == "" {
		t.Fatal("linking must not drop the password digest")
	}
}

func TestReconcileStickyExternalID(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()
	_, _ = svc.Reconcile(ctx, ExternalClaim{ExternalID: "first", Email: "g@x.com", Name: "G"})

	u, err := svc.Reconcile(ctx, ExternalClaim{ExternalID: "second", Email: "g@x.com", Name: "G2"})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	if u.ExternalID != "first" {
		t.Fatalf("first-linked identity must stick, got %q", u.ExternalID)
	}
	if u.Name != "G2" {
		t.Fatal("profile fields should still refresh")
	}
}

func TestReconcileRequiresEmail(t *testing.T) {
	svc := newTestService()
	_, err := svc.Reconcile(context.Background(), ExternalClaim{ExternalID: "ext-1"})
	if !apperr.IsKind(err, apperr.KindInvalidArgument) {
		t.Fatalf("expected invalid argument, got %v", err)
	}
}

func TestFindByExternalID(t *testing.T) {
	svc := newTestService()
	ctx := context.Background()

	got, err := svc.FindByExternalID(ctx, "ext-ghost")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil for unknown external identity")
	}

	created, err := svc.Reconcile(ctx, ExternalClaim{ExternalID: "ext-7", Email: "h@x.com", Name: "H"})
	if err != nil {
		t.Fatalf("reconcile failed: %v", err)
	}
	got, err = svc.FindByExternalID(ctx, "ext-7")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != created.ID {
		t.Fatalf("expected user %s, got %+v", created.ID, got)
	}
}

// racingRepo hides an existing row from the first GetByEmail, so the
// service's pre-check passes and Create runs into the unique index.
type racingRepo struct {
	Repository
	misses int
}

func (r *racingRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	if r.misses > 0 {
		r.misses--
		return nil, nil
	}
	return r.Repository.GetByEmail(ctx, email)
}

func TestReconcileLinksAfterLosingCreateRace(t *testing.T) {
	mem := NewMemoryRepository()
	ctx := context.Background()

	rival := &models.User{Email: "race@x.com", Name: "First", Role: models.RoleUser}
	if err := mem.Create(ctx, rival); err != nil {
		t.Fatalf("seed failed: %v", err)
	}

	svc := NewService(&racingRepo{Repository: mem, misses: 1})
	u, err := svc.Reconcile(ctx, ExternalClaim{ExternalID: "ext-race", Email: "race@x.com", Name: "Second"})
	if err != nil {
		t.Fatalf("losing the create race must not surface a conflict: %v", err)
	}
	if u.ID != rival.ID {
		t.Fatal("should link the surviving row, not create a second user")
	}
	if u.ExternalID != "ext-race" {
		t.Fatalf("expected link after retry, got externalId %q", u.ExternalID)
	}
}
