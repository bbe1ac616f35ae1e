// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package api

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/tideline/internal/authz"
	"github.com/tomtom215/tideline/internal/docstore"
	"github.com/tomtom215/tideline/internal/engine"
	"github.com/tomtom215/tideline/internal/logging"
)

func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

type testEnv struct {
	store   *docstore.MemoryStore
	handler http.Handler
}

func newTestEnv(t *testing.T, opts ...HandlerOption) *testEnv {
	t.Helper()
	enforcer, err := authz.NewEnforcer(nil)
	if err != nil {
		t.Fatal(err)
	}
	store := docstore.NewMemoryStore()
	eng := engine.New(store, engine.DefaultConfig(), engine.WithPermissions(enforcer))

	cfg := DefaultChiMiddlewareConfig()
	cfg.CORSAllowedOrigins = []string{"https://dash.example.com"}
	h := NewHandler(eng, nil, cfg.CORSAllowedOrigins, opts...)
	return &testEnv{store: store, handler: NewRouter(h, cfg).SetupChi()}
}

func (e *testEnv) seed(t *testing.T, collection, id string, fields docstore.Fields) {
	t.Helper()
	if err := e.store.Batch().Set(collection, id, fields).Commit(context.Background()); err != nil {
		t.Fatal(err)
	}
}

// envelope decodes Data lazily so each test picks its own shape.
type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *APIError       `json:"error"`
	Meta    *APIMeta        `json:"meta"`
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)

	var env envelope
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
			t.Fatalf("%s %s: decode response: %v (%s)", method, path, err, rec.Body.String())
		}
	}
	return rec, env
}

func decodeData(t *testing.T, env envelope, dst interface{}) {
	t.Helper()
	if err := json.Unmarshal(env.Data, dst); err != nil {
		t.Fatalf("decode data: %v (%s)", err, env.Data)
	}
}

func TestHealthEndpoints(t *testing.T) {
	ready := false
	env := newTestEnv(t, WithReadiness(func() bool { return ready }))

	rec, body := env.do(t, http.MethodGet, "/api/v1/health/live", "")
	if rec.Code != http.StatusOK || !body.Success {
		t.Errorf("live: %d %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("security headers missing")
	}
	if rec.Header().Get("X-Request-ID") == "" || body.Meta == nil || body.Meta.RequestID == "" {
		t.Error("request ID not propagated")
	}

	rec, _ = env.do(t, http.MethodGet, "/api/v1/health/ready", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("ready before start = %d", rec.Code)
	}
	ready = true
	rec, _ = env.do(t, http.MethodGet, "/api/v1/health/ready", "")
	if rec.Code != http.StatusOK {
		t.Errorf("ready = %d", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.do(t, http.MethodGet, "/api/v1/presence/online", "")

	rec, _ := env.do(t, http.MethodGet, "/metrics", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "tideline_") {
		t.Error("expected tideline metrics in exposition")
	}
}

func TestLiveViewEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "users", "u1", docstore.Fields{"displayName": "Ada", "email": "ada@example.com"})

	rec, body := env.do(t, http.MethodGet, "/api/v1/liveviews/u1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
	}
	var view struct {
		ID          string `json:"id"`
		DisplayName string `json:"displayName"`
		ImageURL    string `json:"imageUrl"`
	}
	decodeData(t, body, &view)
	if view.ID != "u1" || view.DisplayName != "Ada" || view.ImageURL == "" {
		t.Errorf("view = %+v", view)
	}

	rec, body = env.do(t, http.MethodGet, "/api/v1/liveviews/missing", "")
	if rec.Code != http.StatusNotFound || body.Error == nil || body.Error.Code != ErrCodeNotFound {
		t.Errorf("missing: %d %s", rec.Code, rec.Body.String())
	}
}

func TestHeartbeatAndOnline(t *testing.T) {
	env := newTestEnv(t)

	rec, _ := env.do(t, http.MethodPost, "/api/v1/presence/heartbeat",
		`{"identityId":"admin-1","metadata":{"device":"laptop"}}`)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("heartbeat = %d: %s", rec.Code, rec.Body.String())
	}

	for _, path := range []string{
		"/api/v1/presence/online",
		"/api/v1/presence/online?within=recent",
		"/api/v1/presence/online?within=10m",
	} {
		rec, body := env.do(t, http.MethodGet, path, "")
		if rec.Code != http.StatusOK {
			t.Fatalf("%s = %d", path, rec.Code)
		}
		var records []struct {
			IdentityID string `json:"identityId"`
			Online     bool   `json:"online"`
			Metadata   struct {
				Device    string `json:"device"`
				IPAddress string `json:"ipAddress"`
			} `json:"metadata"`
		}
		decodeData(t, body, &records)
		if len(records) != 1 || records[0].IdentityID != "admin-1" || !records[0].Online {
			t.Fatalf("%s: records = %+v", path, records)
		}
		if records[0].Metadata.Device != "laptop" || records[0].Metadata.IPAddress == "" {
			t.Errorf("%s: metadata = %+v", path, records[0].Metadata)
		}
		if body.Meta == nil || body.Meta.Count == nil || *body.Meta.Count != 1 {
			t.Errorf("%s: meta count missing", path)
		}
	}
}

func TestHeartbeatRejectsBadInput(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"empty body", "", ErrCodeBadRequest},
		{"malformed", `{"identityId":`, ErrCodeBadRequest},
		{"unknown field", `{"identityId":"a","extra":1}`, ErrCodeBadRequest},
		{"missing identity", `{"metadata":{}}`, ErrCodeValidationFailed},
		{"identity with slash", `{"identityId":"users/u1"}`, ErrCodeValidationFailed},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := env.do(t, http.MethodPost, "/api/v1/presence/heartbeat", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d", rec.Code)
			}
			if body.Error == nil || body.Error.Code != tt.code {
				t.Errorf("error = %+v, want code %s", body.Error, tt.code)
			}
		})
	}
}

func TestOnlineRejectsBadWithin(t *testing.T) {
	env := newTestEnv(t)
	for _, within := range []string{"soon", "-5m", "0s"} {
		rec, _ := env.do(t, http.MethodGet, "/api/v1/presence/online?within="+within, "")
		if rec.Code != http.StatusBadRequest {
			t.Errorf("within=%s: status = %d", within, rec.Code)
		}
	}
}

type mutation struct {
	Outcome string `json:"outcome"`
	Account struct {
		ID          string   `json:"id"`
		Email       string   `json:"email"`
		DisplayName string   `json:"displayName"`
		Role        string   `json:"role"`
		Status      string   `json:"status"`
		Permissions []string `json:"permissions"`
	} `json:"account"`
}

func TestAdminLifecycle(t *testing.T) {
	env := newTestEnv(t)

	rec, body := env.do(t, http.MethodPost, "/api/v1/admins",
		`{"email":"Grace@Example.com","displayName":"Grace","role":"super-admin"}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("create = %d: %s", rec.Code, rec.Body.String())
	}
	var created mutation
	decodeData(t, body, &created)
	id := created.Account.ID
	if created.Outcome != "full_success" || id == "" {
		t.Fatalf("created = %+v", created)
	}
	if created.Account.Email != "grace@example.com" || created.Account.Role != "super_admin" {
		t.Errorf("account = %+v", created.Account)
	}
	if len(created.Account.Permissions) == 0 {
		t.Error("expected permissions for super_admin")
	}

	rec, body = env.do(t, http.MethodPatch, "/api/v1/admins/"+id, `{"displayName":"Grace H."}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("update = %d: %s", rec.Code, rec.Body.String())
	}
	var updated mutation
	decodeData(t, body, &updated)
	if updated.Account.DisplayName != "Grace H." {
		t.Errorf("displayName = %q", updated.Account.DisplayName)
	}

	rec, body = env.do(t, http.MethodPost, "/api/v1/admins/"+id+"/toggle-status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("toggle = %d: %s", rec.Code, rec.Body.String())
	}
	var toggled mutation
	decodeData(t, body, &toggled)
	if toggled.Account.Status != "inactive" {
		t.Errorf("status = %q", toggled.Account.Status)
	}

	rec, _ = env.do(t, http.MethodGet, "/api/v1/admins/"+id, "")
	if rec.Code != http.StatusOK {
		t.Errorf("get = %d", rec.Code)
	}

	rec, _ = env.do(t, http.MethodDelete, "/api/v1/admins/"+id, "")
	if rec.Code != http.StatusOK {
		t.Fatalf("delete = %d: %s", rec.Code, rec.Body.String())
	}
	rec, _ = env.do(t, http.MethodGet, "/api/v1/admins/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("get after delete = %d", rec.Code)
	}
	rec, _ = env.do(t, http.MethodGet, "/api/v1/liveviews/"+id, "")
	if rec.Code != http.StatusNotFound {
		t.Errorf("live view after delete = %d", rec.Code)
	}
}

func TestCreateAdminValidation(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "users", "u1", docstore.Fields{"email": "taken@example.com"})

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"invalid email", `{"email":"not-an-email"}`, "email"},
		{"duplicate email", `{"email":"Taken@example.com"}`, "email"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec, body := env.do(t, http.MethodPost, "/api/v1/admins", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d: %s", rec.Code, rec.Body.String())
			}
			if body.Error == nil || body.Error.Code != ErrCodeValidationFailed {
				t.Fatalf("error = %+v", body.Error)
			}
			details, _ := body.Error.Details.(map[string]interface{})
			if details["field"] != tt.field {
				t.Errorf("details = %v", body.Error.Details)
			}
		})
	}
}

func TestMutationsOnMissingAdmin(t *testing.T) {
	env := newTestEnv(t)
	for _, tc := range []struct{ method, path, body string }{
		{http.MethodPatch, "/api/v1/admins/ghost", `{"displayName":"x"}`},
		{http.MethodPost, "/api/v1/admins/ghost/toggle-status", ""},
		{http.MethodPost, "/api/v1/admins/ghost/promote", ""},
	} {
		rec, _ := env.do(t, tc.method, tc.path, tc.body)
		if rec.Code != http.StatusNotFound {
			t.Errorf("%s %s = %d", tc.method, tc.path, rec.Code)
		}
	}
}

func TestPromoteAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "users", "u7", docstore.Fields{"email": "lin@example.com", "role": "user", "status": "active"})

	rec, body := env.do(t, http.MethodPost, "/api/v1/admins/u7/promote", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("promote = %d: %s", rec.Code, rec.Body.String())
	}
	var promoted mutation
	decodeData(t, body, &promoted)
	if promoted.Account.ID != "u7" || promoted.Account.Role != "admin" {
		t.Errorf("account = %+v", promoted.Account)
	}

	rec, _ = env.do(t, http.MethodGet, "/api/v1/admins/u7", "")
	if rec.Code != http.StatusOK {
		t.Errorf("get promoted = %d", rec.Code)
	}
}

func TestBulkUpdate(t *testing.T) {
	env := newTestEnv(t)
	env.seed(t, "users", "u1", docstore.Fields{"status": "active"})
	env.seed(t, "users", "u2", docstore.Fields{"status": "active"})

	rec, body := env.do(t, http.MethodPost, "/api/v1/accounts/bulk",
		`{"ids":["u1","u2","missing"],"changes":{"status":"suspended"}}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("bulk = %d: %s", rec.Code, rec.Body.String())
	}
	var res struct {
		UpdatedCount int      `json:"updatedCount"`
		UpdatedIDs   []string `json:"updatedIds"`
		Errors       []struct {
			ID string `json:"id"`
		} `json:"errors"`
	}
	decodeData(t, body, &res)
	if res.UpdatedCount != 2 || len(res.Errors) != 1 || res.Errors[0].ID != "missing" {
		t.Errorf("result = %+v", res)
	}

	doc, err := env.store.Get(context.Background(), "users", "u2")
	if err != nil {
		t.Fatal(err)
	}
	if doc.Fields.String("status") != "suspended" {
		t.Errorf("status = %v", doc.Fields["status"])
	}

	rec, body = env.do(t, http.MethodPost, "/api/v1/accounts/bulk", `{"ids":["u1"],"changes":{}}`)
	if rec.Code != http.StatusBadRequest || body.Error == nil || body.Error.Code != ErrCodeValidationFailed {
		t.Errorf("empty changes: %d %s", rec.Code, rec.Body.String())
	}

	rec, body = env.do(t, http.MethodPost, "/api/v1/accounts/bulk", `{"ids":["u1"],"changes":{"role":"Super Admin"}}`)
	if rec.Code != http.StatusBadRequest || body.Error == nil || body.Error.Code != ErrCodeValidationFailed {
		t.Errorf("role change: %d %s", rec.Code, rec.Body.String())
	}
	doc, _ = env.store.Get(context.Background(), "users", "u1")
	if doc.Fields.String("role") != "" {
		t.Errorf("role written through bulk: %v", doc.Fields["role"])
	}
}

func TestWebSocketWithoutHub(t *testing.T) {
	env := newTestEnv(t)
	rec, _ := env.do(t, http.MethodGet, "/api/v1/ws", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/admins", nil)
	req.Header.Set("Origin", "https://dash.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://dash.example.com" {
		t.Errorf("Allow-Origin = %q", got)
	}

	req = httptest.NewRequest(http.MethodOptions, "/api/v1/admins", nil)
	req.Header.Set("Origin", "https://evil.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "" {
		t.Errorf("unexpected Allow-Origin %q", got)
	}
}

func TestRateLimit(t *testing.T) {
	store := docstore.NewMemoryStore()
	eng := engine.New(store, engine.DefaultConfig())
	cfg := DefaultChiMiddlewareConfig()
	cfg.RateLimitRequests = 2
	handler := NewRouter(NewHandler(eng, nil, nil), cfg).SetupChi()

	codes := make([]int, 0, 3)
	for i := 0; i < 3; i++ {
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/presence/online", nil))
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusOK || codes[2] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
}

func TestRateLimitDisabled(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{RateLimitRequests: 0})
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})
	for _, mw := range []func(http.Handler) http.Handler{
		m.RateLimit(ClassRead), m.RateLimit(ClassHealth), m.RateLimit(ClassWrite), m.RateLimit(ClassHeartbeat), m.RateLimit(ClassWebSocket),
	} {
		for i := 0; i < 200; i++ {
			rec := httptest.NewRecorder()
			mw(next).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
			if rec.Code != http.StatusOK {
				t.Fatalf("request %d limited with rate limiting disabled", i)
			}
		}
	}
}

func TestClassLimitOverride(t *testing.T) {
	m := NewChiMiddleware(&ChiMiddlewareConfig{
		RateLimitRequests: 100,
		RateLimitWindow:   time.Minute,
		ClassLimits:       map[RouteClass]RateLimitConfig{ClassWrite: {Requests: 1, Window: time.Minute}},
	})
	limited := m.RateLimit(ClassWrite)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		rec := httptest.NewRecorder()
		limited.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/admins", nil))
		codes = append(codes, rec.Code)
	}
	if codes[0] != http.StatusOK || codes[1] != http.StatusTooManyRequests {
		t.Errorf("codes = %v", codes)
	}
}
