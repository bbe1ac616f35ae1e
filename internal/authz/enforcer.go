// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package authz

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/casbin/casbin/v2"
	"github.com/casbin/casbin/v2/model"
	fileadapter "github.com/casbin/casbin/v2/persist/file-adapter"

	"github.com/tomtom215/tideline/internal/cache"
)

//go:embed model.conf
var embeddedModel string

//go:embed policy.csv
var embeddedPolicy string

// Actions used in the policy.
const (
	ActionRead   = "read"
	ActionWrite  = "write"
	ActionDelete = "delete"
	ActionBulk   = "bulk"
)

// Objects used in the policy.
const (
	ObjectAccounts  = "accounts"
	ObjectAdmins    = "admins"
	ObjectLiveViews = "liveviews"
	ObjectPresence  = "presence"
	ObjectAlerts    = "alerts"
)

// EnforcerConfig selects the model and policy. Empty or missing paths fall
// back to the embedded files.
type EnforcerConfig struct {
	ModelPath  string
	PolicyPath string

	// CacheTTL bounds how long decisions and permission sets are reused.
	// Zero disables caching.
	CacheTTL time.Duration
}

// DefaultEnforcerConfig uses the embedded model and policy.
func DefaultEnforcerConfig() *EnforcerConfig {
	return &EnforcerConfig{CacheTTL: 5 * time.Minute}
}

// ErrNoAdapter is returned by LoadPolicy when the embedded policy is in use.
var ErrNoAdapter = errors.New("no policy adapter configured; using embedded policy")

// Enforcer answers which permissions an administrative role carries.
type Enforcer struct {
	policyPath string
	casbin     *casbin.SyncedEnforcer
	decisions  *cache.Cache // nil when caching is off
}

// NewEnforcer loads the model and policy. A nil config means
// DefaultEnforcerConfig.
func NewEnforcer(config *EnforcerConfig) (*Enforcer, error) {
	if config == nil {
		config = DefaultEnforcerConfig()
	}

	m, err := loadModel(config.ModelPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load casbin model: %w", err)
	}

	e := &Enforcer{}
	if exists(config.PolicyPath) {
		e.policyPath = config.PolicyPath
		e.casbin, err = casbin.NewSyncedEnforcer(m, fileadapter.NewAdapter(config.PolicyPath))
	} else {
		e.casbin, err = casbin.NewSyncedEnforcer(m)
		if err == nil {
			err = loadPolicyText(e.casbin, embeddedPolicy)
		}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create casbin enforcer: %w", err)
	}

	if config.CacheTTL > 0 {
		e.decisions = cache.New(config.CacheTTL)
	}
	return e, nil
}

func loadModel(path string) (model.Model, error) {
	if exists(path) {
		return model.NewModelFromFile(path)
	}
	return model.NewModelFromString(embeddedModel)
}

// loadPolicyText adds the "p" and "g" lines of a policy.csv body.
func loadPolicyText(e *casbin.SyncedEnforcer, text string) error {
	for n, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Split(line, ",")
		for i := range fields {
			fields[i] = strings.TrimSpace(fields[i])
		}

		var err error
		switch {
		case fields[0] == "p" && len(fields) >= 4:
			_, err = e.AddPolicy(fields[1], fields[2], fields[3])
		case fields[0] == "g" && len(fields) >= 3:
			_, err = e.AddGroupingPolicy(fields[1], fields[2])
		default:
			continue
		}
		if err != nil {
			return fmt.Errorf("policy line %d: %w", n+1, err)
		}
	}
	return nil
}

// Enforce reports whether role may perform action on object.
func (e *Enforcer) Enforce(role, object, action string) (bool, error) {
	key := "allow:" + role + ":" + object + ":" + action
	if v, ok := e.cached(key); ok {
		return v.(bool), nil
	}

	allowed, err := e.casbin.Enforce(role, object, action)
	if err != nil {
		return false, fmt.Errorf("enforcement failed: %w", err)
	}
	e.remember(key, allowed)
	return allowed, nil
}

// Permissions returns the sorted "object:action" strings role holds,
// inherited ones included. Unknown roles hold none. The registrar stores the
// result on every AdminAccount it writes.
func (e *Enforcer) Permissions(role string) []string {
	key := "perms:" + role
	if v, ok := e.cached(key); ok {
		return append([]string(nil), v.([]string)...)
	}

	rules, err := e.casbin.GetImplicitPermissionsForUser(role)
	if err != nil {
		return []string{}
	}
	set := make(map[string]struct{}, len(rules))
	for _, rule := range rules {
		if len(rule) >= 3 {
			set[rule[1]+":"+rule[2]] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for p := range set {
		out = append(out, p)
	}
	sort.Strings(out)

	e.remember(key, out)
	return append([]string(nil), out...)
}

// AddPolicy grants action on object to role.
func (e *Enforcer) AddPolicy(role, object, action string) (bool, error) {
	added, err := e.casbin.AddPolicy(role, object, action)
	if err != nil {
		return false, fmt.Errorf("failed to add policy: %w", err)
	}
	e.forget()
	return added, nil
}

// RemovePolicy revokes action on object from role.
func (e *Enforcer) RemovePolicy(role, object, action string) (bool, error) {
	removed, err := e.casbin.RemovePolicy(role, object, action)
	if err != nil {
		return false, fmt.Errorf("failed to remove policy: %w", err)
	}
	e.forget()
	return removed, nil
}

// LoadPolicy re-reads the policy file. It returns ErrNoAdapter when the
// embedded policy is in use.
func (e *Enforcer) LoadPolicy() error {
	if e.policyPath == "" {
		return ErrNoAdapter
	}
	if err := e.casbin.LoadPolicy(); err != nil {
		return err
	}
	e.forget()
	return nil
}

func (e *Enforcer) cached(key string) (interface{}, bool) {
	if e.decisions == nil {
		return nil, false
	}
	return e.decisions.Get(key)
}

func (e *Enforcer) remember(key string, v interface{}) {
	if e.decisions != nil {
		e.decisions.Set(key, v)
	}
}

func (e *Enforcer) forget() {
	if e.decisions != nil {
		e.decisions.Clear()
	}
}

func exists(path string) bool {
	if path == "" {
		return false
	}
	_, err := os.Stat(path)
	return err == nil
}
