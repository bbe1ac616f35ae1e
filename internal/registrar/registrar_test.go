// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package registrar

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"

	"github.com/tomtom215/tideline/internal/authz"
	"github.com/tomtom215/tideline/internal/docstore"
	"github.com/tomtom215/tideline/internal/logging"
	"github.com/tomtom215/tideline/internal/models"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

// countingStore counts commits and fails any commit touching failCollection.
type countingStore struct {
	docstore.Store
	failCollection string

	mu      sync.Mutex
	commits int
}

func (s *countingStore) Batch() docstore.WriteBatch {
	return &countingBatch{inner: s.Store.Batch(), store: s}
}

func (s *countingStore) Commits() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.commits
}

type countingBatch struct {
	inner docstore.WriteBatch
	store *countingStore
	fail  bool
}

func (b *countingBatch) touch(collection string) {
	if b.store.failCollection != "" && collection == b.store.failCollection {
		b.fail = true
	}
}

func (b *countingBatch) Set(collection, id string, fields docstore.Fields) docstore.WriteBatch {
	b.touch(collection)
	b.inner = b.inner.Set(collection, id, fields)
	return b
}

func (b *countingBatch) Update(collection, id string, fields docstore.Fields) docstore.WriteBatch {
	b.touch(collection)
	b.inner = b.inner.Update(collection, id, fields)
	return b
}

func (b *countingBatch) Delete(collection, id string) docstore.WriteBatch {
	b.touch(collection)
	b.inner = b.inner.Delete(collection, id)
	return b
}

func (b *countingBatch) Commit(ctx context.Context) error {
	b.store.mu.Lock()
	b.store.commits++
	b.store.mu.Unlock()
	if b.fail {
		return errors.New("write rejected by backend")
	}
	return b.inner.Commit(ctx)
}

func newRegistrar(t *testing.T, failCollection string) (*Registrar, *countingStore) {
	t.Helper()
	enforcer, err := authz.NewEnforcer(nil)
	if err != nil {
		t.Fatalf("NewEnforcer: %v", err)
	}
	store := &countingStore{Store: docstore.NewMemoryStore(), failCollection: failCollection}
	return New(store, DefaultConfig(), enforcer), store
}

func strPtr(s string) *string { return &s }

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func TestCreateWritesBothMirrors(t *testing.T) {
	ctx := context.Background()
	r, store := newRegistrar(t, "")

	res, err := r.Create(ctx, CreateInput{Email: "Ops@Example.com", DisplayName: "Ops", Role: "Super Admin"})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if res.Outcome != OutcomeFullSuccess || res.Err() != nil {
		t.Fatalf("unexpected result %+v", res)
	}

	acct := res.Account
	if acct.Email != "ops@example.com" {
		t.Errorf("email not normalized: %s", acct.Email)
	}
	if acct.Role != models.RoleSuperAdmin || acct.Status != models.StatusActive {
		t.Errorf("role/status = %s/%s", acct.Role, acct.Status)
	}
	if !contains(acct.Permissions, "accounts:delete") {
		t.Errorf("permissions not derived from role: %v", acct.Permissions)
	}
	if acct.CreatedAt.IsZero() {
		t.Error("createdAt should carry the server timestamp")
	}

	general, err := store.Get(ctx, "users", acct.ID)
	if err != nil {
		t.Fatalf("general mirror missing: %v", err)
	}
	if general.Fields.String(models.FieldRole) != "super_admin" || general.Fields.Has(models.FieldPermissions) {
		t.Errorf("unexpected general mirror %v", general.Fields)
	}
}

func TestCreateRejectsDuplicateEmailWithoutWrites(t *testing.T) {
	ctx := context.Background()
	r, store := newRegistrar(t, "")
	if err := store.Store.Batch().Set("users", "existing", docstore.Fields{"email": "taken@example.com"}).Commit(ctx); err != nil {
		t.Fatal(err)
	}

	_, err := r.Create(ctx, CreateInput{Email: "TAKEN@example.com"})
	var verr *models.ValidationError
	if !errors.As(err, &verr) || verr.Field != "email" {
		t.Fatalf("expected email ValidationError, got %v", err)
	}
	if n := store.Commits(); n != 0 {
		t.Errorf("duplicate create issued %d writes", n)
	}
}

func TestEmailUniquenessIgnoresStoredCase(t *testing.T) {
	ctx := context.Background()
	r, store := newRegistrar(t, "")
	if err := store.Store.Batch().Set("users", "existing", docstore.Fields{"email": "Taken@Example.com"}).Commit(ctx); err != nil {
		t.Fatal(err)
	}

	_, err := r.Create(ctx, CreateInput{Email: "taken@example.com"})
	var verr *models.ValidationError
	if !errors.As(err, &verr) || verr.Field != "email" {
		t.Fatalf("expected email ValidationError, got %v", err)
	}
	if n := store.Commits(); n != 0 {
		t.Errorf("duplicate create issued %d writes", n)
	}
}

func TestCreateValidatesInput(t *testing.T) {
	r, store := newRegistrar(t, "")
	tests := []struct {
		name  string
		in    CreateInput
		field string
	}{
		{"missing email", CreateInput{}, "email"},
		{"malformed email", CreateInput{Email: "not-an-email"}, "email"},
		{"bad status", CreateInput{Email: "a@example.com", Status: "archived"}, "status"},
		{"bad phone", CreateInput{Email: "a@example.com", Phone: "12"}, "phone"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Create(context.Background(), tt.in)
			var verr *models.ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if verr.Field != tt.field {
				t.Errorf("field = %s, want %s", verr.Field, tt.field)
			}
		})
	}
	if store.Commits() != 0 {
		t.Error("invalid input must not write")
	}
}

func TestCreatePartialFailure(t *testing.T) {
	ctx := context.Background()
	r, store := newRegistrar(t, "users")

	res, err := r.Create(ctx, CreateInput{Email: "half@example.com"})
	if err != nil {
		t.Fatalf("partial failure must be reported in the result, got error %v", err)
	}
	if res.Outcome != OutcomePartialFailure || res.Partial == nil {
		t.Fatalf("expected partial failure, got %+v", res)
	}
	if res.Partial.SucceededMirror != models.MirrorPrivileged || res.Partial.FailedMirror != models.MirrorGeneral {
		t.Errorf("unexpected mirrors %+v", res.Partial)
	}
	var pmf *models.PartialMirrorFailure
	if !errors.As(res.Err(), &pmf) {
		t.Error("Err() should expose the partial failure")
	}

	// The privileged write is kept, not rolled back.
	if _, err := store.Get(ctx, "admins", res.Account.ID); err != nil {
		t.Errorf("privileged mirror should remain written: %v", err)
	}
	if _, err := store.Get(ctx, "users", res.Account.ID); !errors.Is(err, docstore.ErrNotFound) {
		t.Errorf("general mirror should be absent, got %v", err)
	}
}

func TestCreateFirstMirrorFailure(t *testing.T) {
	r, _ := newRegistrar(t, "admins")
	res, err := r.Create(context.Background(), CreateInput{Email: "none@example.com"})
	if err == nil {
		t.Fatalf("expected error, got %+v", res)
	}
	var pmf *models.PartialMirrorFailure
	if errors.As(err, &pmf) {
		t.Error("failure of the first mirror is not a partial failure")
	}
}

func TestUpdate(t *testing.T) {
	ctx := context.Background()
	r, store := newRegistrar(t, "")
	created, err := r.Create(ctx, CreateInput{Email: "a@example.com", DisplayName: "Before"})
	if err != nil {
		t.Fatal(err)
	}
	id := created.Account.ID

	res, err := r.Update(ctx, id, UpdateInput{DisplayName: strPtr("After"), Role: strPtr("root-admin")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if res.Account.DisplayName != "After" || res.Account.Role != models.RoleSuperAdmin {
		t.Errorf("unexpected account %+v", res.Account)
	}
	general, _ := store.Get(ctx, "users", id)
	if general.Fields.String(models.FieldDisplayName) != "After" || general.Fields.String(models.FieldRole) != "super_admin" {
		t.Errorf("general mirror not updated: %v", general.Fields)
	}

	if _, err := r.Update(ctx, id, UpdateInput{}); err == nil {
		t.Error("empty update should be rejected")
	}
	if _, err := r.Update(ctx, "ghost", UpdateInput{DisplayName: strPtr("x")}); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestUpdateEmailUniqueness(t *testing.T) {
	ctx := context.Background()
	r, _ := newRegistrar(t, "")
	a, _ := r.Create(ctx, CreateInput{Email: "a@example.com"})
	if _, err := r.Create(ctx, CreateInput{Email: "b@example.com"}); err != nil {
		t.Fatal(err)
	}

	_, err := r.Update(ctx, a.Account.ID, UpdateInput{Email: strPtr("B@example.com")})
	var verr *models.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, err := r.Update(ctx, a.Account.ID, UpdateInput{Email: strPtr("A@EXAMPLE.com")}); err != nil {
		t.Errorf("re-setting own email should pass: %v", err)
	}
}

func TestDelete(t *testing.T) {
	ctx := context.Background()
	r, store := newRegistrar(t, "")
	created, _ := r.Create(ctx, CreateInput{Email: "gone@example.com"})

	res, err := r.Delete(ctx, created.Account.ID)
	if err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if res.Account.Email != "gone@example.com" {
		t.Errorf("result should carry the prior state, got %+v", res.Account)
	}
	for _, c := range []string{"admins", "users"} {
		if _, err := store.Get(ctx, c, created.Account.ID); !errors.Is(err, docstore.ErrNotFound) {
			t.Errorf("%s still holds the account", c)
		}
	}
	if _, err := r.Delete(ctx, created.Account.ID); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("second delete: expected ErrNotFound, got %v", err)
	}
}

func TestPromote(t *testing.T) {
	ctx := context.Background()
	r, store := newRegistrar(t, "")
	err := store.Store.Batch().
		Set("users", "plain", docstore.Fields{"email": "plain@example.com", "role": "user", "status": "active"}).
		Set("users", "boss", docstore.Fields{"email": "boss@example.com", "role": "SuperAdmin", "status": "active"}).
		Commit(ctx)
	if err != nil {
		t.Fatal(err)
	}

	res, err := r.Promote(ctx, "plain")
	if err != nil {
		t.Fatalf("Promote: %v", err)
	}
	if res.Account.Role != models.RoleAdmin {
		t.Errorf("user should be promoted to admin, got %s", res.Account.Role)
	}
	general, _ := store.Get(ctx, "users", "plain")
	if general.Fields.String(models.FieldRole) != "admin" {
		t.Errorf("general role = %s", general.Fields.String(models.FieldRole))
	}

	res, err = r.Promote(ctx, "boss")
	if err != nil {
		t.Fatal(err)
	}
	if res.Account.Role != models.RoleSuperAdmin {
		t.Errorf("super admin must not be downgraded, got %s", res.Account.Role)
	}

	if _, err := r.Promote(ctx, "ghost"); !errors.Is(err, models.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestToggleStatus(t *testing.T) {
	ctx := context.Background()
	r, store := newRegistrar(t, "")
	created, _ := r.Create(ctx, CreateInput{Email: "t@example.com"})
	id := created.Account.ID

	res, err := r.ToggleStatus(ctx, id)
	if err != nil {
		t.Fatal(err)
	}
	if res.Account.Status != models.StatusInactive {
		t.Errorf("active should toggle to inactive, got %s", res.Account.Status)
	}
	general, _ := store.Get(ctx, "users", id)
	if general.Fields.String(models.FieldStatus) != "inactive" {
		t.Error("general mirror status not toggled")
	}

	res, _ = r.ToggleStatus(ctx, id)
	if res.Account.Status != models.StatusActive {
		t.Errorf("inactive should toggle to active, got %s", res.Account.Status)
	}
}

func TestToggleStatusPartialFailure(t *testing.T) {
	ctx := context.Background()
	r, store := newRegistrar(t, "")
	created, _ := r.Create(ctx, CreateInput{Email: "p@example.com"})

	store.failCollection = "users"
	res, err := r.ToggleStatus(ctx, created.Account.ID)
	if err != nil {
		t.Fatal(err)
	}
	if res.Outcome != OutcomePartialFailure || res.Partial.Operation != OpToggleStatus {
		t.Errorf("unexpected result %+v", res)
	}
}

func TestNormalizeRole(t *testing.T) {
	tests := []struct {
		in   string
		want models.Role
	}{
		{"admin", models.RoleAdmin},
		{"Admin", models.RoleAdmin},
		{"super_admin", models.RoleSuperAdmin},
		{"Super-Admin", models.RoleSuperAdmin},
		{" superadmin ", models.RoleSuperAdmin},
		{"user", models.RoleAdmin},
		{"owner", models.RoleAdmin},
		{"", models.RoleAdmin},
	}
	for _, tt := range tests {
		if got := NormalizeRole(tt.in); got != tt.want {
			t.Errorf("NormalizeRole(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
