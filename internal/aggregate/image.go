// Tideline - Live Aggregation and Presence Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/tideline

package aggregate

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	gobreaker "github.com/sony/gobreaker/v2"
	"github.com/tomtom215/tideline/internal/breaker"
	"github.com/tomtom215/tideline/internal/cache"
	"github.com/tomtom215/tideline/internal/logging"
	"github.com/tomtom215/tideline/internal/metrics"
	"github.com/tomtom215/tideline/internal/models"
)

// DefaultPlaceholderBaseURL renders initials avatars.
const DefaultPlaceholderBaseURL = "https://ui-avatars.com/api/"

// ImageResolver picks the display image URL of an account.
type ImageResolver interface {
	ResolveImage(ctx context.Context, account models.AccountProfile) string
}

// PlaceholderURL returns a deterministic avatar URL seeded by name, or by
// email when name is empty. The same (name, email) always yields the same URL.
func PlaceholderURL(baseURL, name, email string) string {
	if baseURL == "" {
		baseURL = DefaultPlaceholderBaseURL
	}
	seed := strings.TrimSpace(name)
	if seed == "" {
		seed = models.NormalizeEmail(email)
	}
	if seed == "" {
		seed = "?"
	}

	sum := sha256.Sum256([]byte(strings.ToLower(seed)))
	background := hex.EncodeToString(sum[:3])

	q := url.Values{}
	q.Set("name", seed)
	q.Set("background", background)
	q.Set("color", "fff")
	return baseURL + "?" + q.Encode()
}

// FallbackResolver applies the fallback chain without network access:
// profile image URL, then photo URL, then placeholder.
type FallbackResolver struct {
	PlaceholderBaseURL string
}

// ResolveImage implements ImageResolver.
func (r FallbackResolver) ResolveImage(_ context.Context, a models.AccountProfile) string {
	if u := strings.TrimSpace(a.ProfileImageURL); u != "" {
		return u
	}
	if u := strings.TrimSpace(a.PhotoURL); u != "" {
		return u
	}
	return PlaceholderURL(r.PlaceholderBaseURL, a.Name(), a.Email)
}

// ProbingResolver layers a network check on the fallback chain: each candidate
// URL must answer a HEAD request with 2xx before it is used. Results are cached
// per account, and probes run behind a circuit breaker. While the breaker is
// open the candidates are trusted unchecked, which is FallbackResolver's answer.
type ProbingResolver struct {
	fallback FallbackResolver
	client   *http.Client
	cache    cache.Cacher
	cb       *gobreaker.CircuitBreaker[interface{}]
}

// NewProbingResolver creates a probing resolver. cacher may be nil.
func NewProbingResolver(placeholderBaseURL string, timeout time.Duration, cacher cache.Cacher) *ProbingResolver {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	return &ProbingResolver{
		fallback: FallbackResolver{PlaceholderBaseURL: placeholderBaseURL},
		client:   &http.Client{Timeout: timeout},
		cache:    cacher,
		cb:       breaker.New(breaker.DefaultConfig("image-probe")),
	}
}

// ResolveImage implements ImageResolver.
func (r *ProbingResolver) ResolveImage(ctx context.Context, a models.AccountProfile) string {
	key := cache.ImageKey(a.ID)
	if r.cache != nil && a.ID != "" {
		if v, ok := r.cache.Get(key); ok {
			if s, ok := v.(string); ok {
				metrics.RecordCacheLookup("image", true)
				return s
			}
		}
		metrics.RecordCacheLookup("image", false)
	}

	resolved := PlaceholderURL(r.fallback.PlaceholderBaseURL, a.Name(), a.Email)
	for _, candidate := range []string{a.ProfileImageURL, a.PhotoURL} {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		ok, err := r.probe(ctx, candidate)
		if breaker.IsRejected(err) {
			// Cannot verify right now; do not cache the unverified answer.
			return r.fallback.ResolveImage(ctx, a)
		}
		if err != nil {
			metrics.RecordDegraded("image")
			logging.Debug().Err(err).Str("component", "aggregate").Str("account_id", a.ID).Msg("Image probe failed")
		}
		if ok {
			resolved = candidate
			break
		}
	}

	if r.cache != nil && a.ID != "" {
		r.cache.Set(key, resolved)
	}
	return resolved
}

func (r *ProbingResolver) probe(ctx context.Context, rawURL string) (bool, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false, nil
	}

	result, err := r.cb.Execute(func() (interface{}, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, rawURL, http.NoBody)
		if err != nil {
			return false, err
		}
		resp, err := r.client.Do(req)
		if err != nil {
			return false, err
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 500 {
			return false, fmt.Errorf("image host returned %d", resp.StatusCode)
		}
		return resp.StatusCode >= 200 && resp.StatusCode < 300, nil
	})
	if err != nil {
		return false, err
	}
	ok, _ := result.(bool)
	return ok, nil
}
