// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package registrar

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/tomtom215/tideline/internal/docstore"
	"github.com/tomtom215/tideline/internal/logging"
	"github.com/tomtom215/tideline/internal/metrics"
	"github.com/tomtom215/tideline/internal/models"
	"github.com/tomtom215/tideline/internal/validation"
)

// Operation names used in results, logs and metrics.
const (
	OpCreate       = "create"
	OpUpdate       = "update"
	OpDelete       = "delete"
	OpPromote      = "promote"
	OpToggleStatus = "toggle_status"
)

// Outcome tags a Result.
type Outcome string

const (
	// OutcomeFullSuccess means both mirrors were written.
	OutcomeFullSuccess Outcome = "full_success"

	// OutcomePartialFailure means the privileged mirror was written and the
	// general mirror was not. Result.Partial carries the details.
	OutcomePartialFailure Outcome = "partial_failure"
)

// Result is the outcome of a dual-collection write.
type Result struct {
	Outcome Outcome                      `json:"outcome"`
	Account models.AdminAccount          `json:"account"`
	Partial *models.PartialMirrorFailure `json:"-"`
}

// Err returns the partial failure as an error, or nil on full success.
func (r Result) Err() error {
	if r.Partial == nil {
		return nil
	}
	return r.Partial
}

// PermissionSource derives the permission set of a role.
type PermissionSource interface {
	Permissions(role string) []string
}

// Config names the two mirrored collections.
type Config struct {
	// Admins is the privileged collection, written first.
	Admins string

	// Accounts is the general accounts collection, written second.
	Accounts string
}

// DefaultConfig returns the standard collection names.
func DefaultConfig() Config {
	return Config{Admins: "admins", Accounts: "users"}
}

// Registrar applies privileged account changes to both mirrors.
//
// Writes go to the privileged mirror and then to the general mirror as two
// separate commits. A failure of the first write is returned as an error and
// nothing was changed. A failure of the second is reported in the Result with
// OutcomePartialFailure and is never rolled back.
type Registrar struct {
	store docstore.Store
	cfg   Config
	perms PermissionSource
}

// New creates a registrar. perms may be nil, in which case accounts carry no
// permissions.
func New(store docstore.Store, cfg Config, perms PermissionSource) *Registrar {
	defaults := DefaultConfig()
	if cfg.Admins == "" {
		cfg.Admins = defaults.Admins
	}
	if cfg.Accounts == "" {
		cfg.Accounts = defaults.Accounts
	}
	return &Registrar{store: store, cfg: cfg, perms: perms}
}

// NormalizeRole canonicalizes a role label; see models.NormalizeRole.
func NormalizeRole(label string) models.Role {
	return models.NormalizeRole(label)
}

// Create registers a new privileged account in both mirrors. An email already
// present in the general collection is rejected with a ValidationError before
// any write.
func (r *Registrar) Create(ctx context.Context, in CreateInput) (Result, error) {
	if verr := validation.ValidateStruct(&in); verr != nil {
		return r.reject(OpCreate, verr.ToModelError())
	}

	email := models.NormalizeEmail(in.Email)
	if err := r.ensureEmailFree(ctx, email, ""); err != nil {
		return r.fail(OpCreate, err)
	}

	id := uuid.NewString()
	role := models.NormalizeRole(in.Role)
	status := in.Status
	if status == "" {
		status = models.StatusActive
	}

	general := docstore.Fields{
		models.FieldEmail:         email,
		models.FieldDisplayName:   in.DisplayName,
		models.FieldFirstName:     in.FirstName,
		models.FieldLastName:      in.LastName,
		models.FieldPhone:         in.Phone,
		models.FieldEmailVerified: in.EmailVerified,
		models.FieldRole:          string(role),
		models.FieldStatus:        string(status),
		models.FieldCreatedAt:     docstore.ServerTimestamp,
		models.FieldUpdatedAt:     docstore.ServerTimestamp,
	}
	privileged := general.Clone()
	privileged[models.FieldPermissions] = r.permissions(role)

	fallback := models.AdminAccount{
		ID:            id,
		Email:         email,
		DisplayName:   in.DisplayName,
		FirstName:     in.FirstName,
		LastName:      in.LastName,
		Phone:         in.Phone,
		EmailVerified: in.EmailVerified,
		Role:          role,
		Status:        status,
		Permissions:   r.permissions(role),
	}

	return r.mirror(ctx, OpCreate, id, fallback,
		func(b docstore.WriteBatch) docstore.WriteBatch { return b.Set(r.cfg.Admins, id, privileged) },
		func(b docstore.WriteBatch) docstore.WriteBatch { return b.Set(r.cfg.Accounts, id, general) },
	)
}

// Update applies changes to an existing privileged account in both mirrors.
func (r *Registrar) Update(ctx context.Context, id string, in UpdateInput) (Result, error) {
	if id == "" {
		return r.reject(OpUpdate, &models.ValidationError{Field: "id", Reason: "required"})
	}
	if in.IsEmpty() {
		return r.reject(OpUpdate, &models.ValidationError{Field: "changes", Reason: "no fields to update"})
	}
	if verr := validation.ValidateStruct(&in); verr != nil {
		return r.reject(OpUpdate, verr.ToModelError())
	}

	current, err := r.loadAdmin(ctx, id)
	if err != nil {
		return r.fail(OpUpdate, err)
	}

	changes := docstore.Fields{models.FieldUpdatedAt: docstore.ServerTimestamp}
	if in.Email != nil {
		email := models.NormalizeEmail(*in.Email)
		if email != current.Email {
			if err := r.ensureEmailFree(ctx, email, id); err != nil {
				return r.fail(OpUpdate, err)
			}
		}
		changes[models.FieldEmail] = email
	}
	setString(changes, models.FieldDisplayName, in.DisplayName)
	setString(changes, models.FieldFirstName, in.FirstName)
	setString(changes, models.FieldLastName, in.LastName)
	setString(changes, models.FieldPhone, in.Phone)
	if in.Status != nil {
		changes[models.FieldStatus] = string(*in.Status)
	}
	if in.EmailVerified != nil {
		changes[models.FieldEmailVerified] = *in.EmailVerified
	}

	privileged := changes.Clone()
	if in.Role != nil {
		role := models.NormalizeRole(*in.Role)
		changes[models.FieldRole] = string(role)
		privileged[models.FieldRole] = string(role)
		privileged[models.FieldPermissions] = r.permissions(role)
	}

	return r.mirror(ctx, OpUpdate, id, current,
		func(b docstore.WriteBatch) docstore.WriteBatch { return b.Update(r.cfg.Admins, id, privileged) },
		func(b docstore.WriteBatch) docstore.WriteBatch { return b.Update(r.cfg.Accounts, id, changes) },
	)
}

// Delete removes a privileged account from both mirrors. The returned account
// is the state before deletion.
func (r *Registrar) Delete(ctx context.Context, id string) (Result, error) {
	current, err := r.loadAdmin(ctx, id)
	if err != nil {
		return r.fail(OpDelete, err)
	}

	res, err := r.write(ctx, OpDelete, id,
		func(b docstore.WriteBatch) docstore.WriteBatch { return b.Delete(r.cfg.Admins, id) },
		func(b docstore.WriteBatch) docstore.WriteBatch { return b.Delete(r.cfg.Accounts, id) },
	)
	if err != nil {
		return Result{}, err
	}
	res.Account = current
	return res, nil
}

// Promote grants privileged status to an account of the general collection.
// A role that already normalizes to super_admin is kept; every other role
// becomes admin.
func (r *Registrar) Promote(ctx context.Context, id string) (Result, error) {
	doc, err := r.store.Get(ctx, r.cfg.Accounts, id)
	if err != nil {
		return r.fail(OpPromote, notFound(id, err))
	}
	profile := models.AccountFromDocument(doc)
	role := models.NormalizeRole(string(profile.Role))

	privileged := docstore.Fields{
		models.FieldEmail:         models.NormalizeEmail(profile.Email),
		models.FieldDisplayName:   profile.DisplayName,
		models.FieldFirstName:     profile.FirstName,
		models.FieldLastName:      profile.LastName,
		models.FieldPhone:         profile.Phone,
		models.FieldEmailVerified: profile.EmailVerified,
		models.FieldRole:          string(role),
		models.FieldStatus:        string(profile.Status),
		models.FieldPermissions:   r.permissions(role),
		models.FieldUpdatedAt:     docstore.ServerTimestamp,
	}
	if existing, err := r.store.Get(ctx, r.cfg.Admins, id); err == nil {
		privileged[models.FieldCreatedAt] = models.AdminFromDocument(existing).CreatedAt
	} else {
		privileged[models.FieldCreatedAt] = docstore.ServerTimestamp
	}

	fallback := models.AdminAccount{
		ID:            id,
		Email:         profile.Email,
		DisplayName:   profile.DisplayName,
		FirstName:     profile.FirstName,
		LastName:      profile.LastName,
		Phone:         profile.Phone,
		EmailVerified: profile.EmailVerified,
		Role:          role,
		Status:        profile.Status,
		Permissions:   r.permissions(role),
	}

	general := docstore.Fields{
		models.FieldRole:      string(role),
		models.FieldUpdatedAt: docstore.ServerTimestamp,
	}
	return r.mirror(ctx, OpPromote, id, fallback,
		func(b docstore.WriteBatch) docstore.WriteBatch { return b.Set(r.cfg.Admins, id, privileged) },
		func(b docstore.WriteBatch) docstore.WriteBatch { return b.Update(r.cfg.Accounts, id, general) },
	)
}

// ToggleStatus flips an active account to inactive and any other status to
// active, on both mirrors.
func (r *Registrar) ToggleStatus(ctx context.Context, id string) (Result, error) {
	current, err := r.loadAdmin(ctx, id)
	if err != nil {
		return r.fail(OpToggleStatus, err)
	}

	next := models.StatusActive
	if current.Status == models.StatusActive {
		next = models.StatusInactive
	}
	changes := docstore.Fields{
		models.FieldStatus:    string(next),
		models.FieldUpdatedAt: docstore.ServerTimestamp,
	}
	current.Status = next

	return r.mirror(ctx, OpToggleStatus, id, current,
		func(b docstore.WriteBatch) docstore.WriteBatch { return b.Update(r.cfg.Admins, id, changes) },
		func(b docstore.WriteBatch) docstore.WriteBatch { return b.Update(r.cfg.Accounts, id, changes) },
	)
}

// Get returns the privileged account id.
func (r *Registrar) Get(ctx context.Context, id string) (models.AdminAccount, error) {
	return r.loadAdmin(ctx, id)
}

// mirror performs both writes and reloads the privileged record for the
// result. If the reload fails, fallback is returned.
func (r *Registrar) mirror(ctx context.Context, op, id string, fallback models.AdminAccount, first, second func(docstore.WriteBatch) docstore.WriteBatch) (Result, error) {
	res, err := r.write(ctx, op, id, first, second)
	if err != nil {
		return Result{}, err
	}
	if doc, err := r.store.Get(ctx, r.cfg.Admins, id); err == nil {
		res.Account = models.AdminFromDocument(doc)
	} else {
		res.Account = fallback
	}
	return res, nil
}

func (r *Registrar) write(ctx context.Context, op, id string, first, second func(docstore.WriteBatch) docstore.WriteBatch) (Result, error) {
	ctx = logging.ContextWithAccountID(ctx, id)
	if err := first(r.store.Batch()).Commit(ctx); err != nil {
		metrics.RecordRegistrarOperation(op, "error")
		if errors.Is(err, docstore.ErrNotFound) {
			return Result{}, fmt.Errorf("%s %s: %w", op, id, models.ErrNotFound)
		}
		return Result{}, fmt.Errorf("%s %s: write %s mirror: %w", op, id, models.MirrorPrivileged, err)
	}

	if err := second(r.store.Batch()).Commit(ctx); err != nil {
		partial := &models.PartialMirrorFailure{
			Operation:       op,
			AccountID:       id,
			SucceededMirror: models.MirrorPrivileged,
			FailedMirror:    models.MirrorGeneral,
			Err:             err,
		}
		metrics.RecordRegistrarOperation(op, "partial")
		logging.Ctx(ctx).Error().
			Err(err).
			Str("component", "registrar").
			Str("operation", op).
			Str("succeeded_mirror", string(models.MirrorPrivileged)).
			Str("failed_mirror", string(models.MirrorGeneral)).
			Msg("Mirrors out of sync, manual reconciliation required")
		return Result{Outcome: OutcomePartialFailure, Partial: partial}, nil
	}

	metrics.RecordRegistrarOperation(op, "ok")
	logging.Ctx(ctx).Info().
		Str("component", "registrar").
		Str("operation", op).
		Msg("Account mirrors updated")
	return Result{Outcome: OutcomeFullSuccess}, nil
}

// ensureEmailFree fails when another general account holds email under any
// letter case. Stored values are not assumed to be normalized.
func (r *Registrar) ensureEmailFree(ctx context.Context, email, self string) error {
	docs, err := r.store.Query(ctx, r.cfg.Accounts, docstore.Query{}.
		Where(models.FieldEmail, docstore.OpEqualFold, models.NormalizeEmail(email)).
		Take(2))
	if err != nil {
		return fmt.Errorf("lookup email: %w", err)
	}
	for _, d := range docs {
		if d.ID != self {
			return &models.ValidationError{Field: "email", Reason: "already registered"}
		}
	}
	return nil
}

func (r *Registrar) loadAdmin(ctx context.Context, id string) (models.AdminAccount, error) {
	if id == "" {
		return models.AdminAccount{}, &models.ValidationError{Field: "id", Reason: "required"}
	}
	doc, err := r.store.Get(ctx, r.cfg.Admins, id)
	if err != nil {
		return models.AdminAccount{}, notFound(id, err)
	}
	return models.AdminFromDocument(doc), nil
}

func (r *Registrar) permissions(role models.Role) []string {
	if r.perms == nil {
		return []string{}
	}
	return r.perms.Permissions(string(role))
}

func (r *Registrar) reject(op string, verr *models.ValidationError) (Result, error) {
	metrics.RecordRegistrarOperation(op, "rejected")
	return Result{}, verr
}

func (r *Registrar) fail(op string, err error) (Result, error) {
	var verr *models.ValidationError
	if errors.As(err, &verr) {
		return r.reject(op, verr)
	}
	metrics.RecordRegistrarOperation(op, "error")
	return Result{}, err
}

func notFound(id string, err error) error {
	if errors.Is(err, docstore.ErrNotFound) {
		return fmt.Errorf("account %s: %w", id, models.ErrNotFound)
	}
	return fmt.Errorf("read account %s: %w", id, err)
}

func setString(f docstore.Fields, key string, v *string) {
	if v != nil {
		f[key] = *v
	}
}
