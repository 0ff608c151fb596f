// Package keypool manages a pool of provider credentials with round-robin
// selection and automatic failover on authentication or quota errors.
package keypool

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

// APIError carries an HTTP status from a provider call so the pool can decide
// whether rotating to another credential is worthwhile.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("provider returned status %d", e.Status)
	}
	return fmt.Sprintf("provider returned status %d: %s", e.Status, e.Message)
}

// ExhaustedError is raised when every credential in the pool has been tried
// without success. It wraps the last underlying provider error.
type ExhaustedError struct {
	Service string
	Last    error
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("all %s api keys failed: %v", e.Service, e.Last)
}

func (e *ExhaustedError) Unwrap() error { return e.Last }

// credential message fragments that indicate the key, not the request, is the
// problem. Matched case-insensitively against the full error text.
var credentialPatterns = []string{
	"unauthorized",
	"invalid api key",
	"authentication",
	"forbidden",
	"insufficient credits",
	"quota exceeded",
	"rate limit",
	"top up",
}

// Pool rotates across a fixed set of API keys for one provider.
type Pool struct {
	service string
	keys    []string
	logger  zerolog.Logger

	mu     sync.Mutex
	cursor int
	failed map[string]struct{}
}

// NewPool builds a pool from the given keys, dropping blanks. At least one
// usable key is required.
func NewPool(service string, keys []string, logger zerolog.Logger) (*Pool, error) {
	cleaned := make([]string, 0, len(keys))
	for _, key := range keys {
		if trimmed := strings.TrimSpace(key); trimmed != "" {
			cleaned = append(cleaned, trimmed)
		}
	}
	if len(cleaned) == 0 {
		return nil, fmt.Errorf("no valid %s api keys provided", service)
	}
	logger.Info().Str("service", service).Int("keys", len(cleaned)).Msg("keypool: initialized")
	return &Pool{
		service: service,
		keys:    cleaned,
		logger:  logger,
		failed:  make(map[string]struct{}),
	}, nil
}

// Size returns the number of keys in the pool.
func (p *Pool) Size() int { return len(p.keys) }

// next selects the next non-failed key, wrapping round-robin. When every key
// is marked failed the failed set is cleared: quota windows reset, so a full
// pool failure is treated as transient.
func (p *Pool) next() string {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.failed) == len(p.keys) {
		p.logger.Warn().Str("service", p.service).Msg("keypool: all keys failed, resetting")
		p.failed = make(map[string]struct{})
	}
	for range p.keys {
		key := p.keys[p.cursor]
		p.cursor = (p.cursor + 1) % len(p.keys)
		if _, bad := p.failed[key]; !bad {
			return key
		}
	}
	// Unreachable: the reset above guarantees at least one usable key.
	return p.keys[0]
}

func (p *Pool) markFailed(key string) {
	p.mu.Lock()
	p.failed[key] = struct{}{}
	p.mu.Unlock()
	p.logger.Warn().Str("service", p.service).Str("key", redact(key)).Msg("keypool: key marked failed")
}

func (p *Pool) markHealthy(key string) {
	p.mu.Lock()
	delete(p.failed, key)
	p.mu.Unlock()
}

// ExecuteWithFallback runs call with the next available key, rotating to the
// following key on credential-related errors for up to pool-size attempts.
// Non-credential errors propagate immediately without rotation. Success clears
// any prior failed-mark on the key used.
func (p *Pool) ExecuteWithFallback(ctx context.Context, call func(ctx context.Context, apiKey string) error) error {
	var lastErr error
	for attempt := 0; attempt < len(p.keys); attempt++ {
		key := p.next()
		err := call(ctx, key)
		if err == nil {
			p.markHealthy(key)
			return nil
		}
		if !IsCredentialError(err) {
			return err
		}
		lastErr = err
		p.markFailed(key)
		p.logger.Info().Str("service", p.service).Msg("keypool: rotating key after auth error")
	}
	return &ExhaustedError{Service: p.service, Last: lastErr}
}

// Status reports pool health for operational visibility.
func (p *Pool) Status() (total, failed, available int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.keys), len(p.failed), len(p.keys) - len(p.failed)
}

// IsCredentialError reports whether the error points at the credential rather
// than the request: HTTP 401/403/429 or a known auth/quota message fragment.
func IsCredentialError(err error) bool {
	if err == nil {
		return false
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.Status {
		case 401, 403, 429:
			return true
		}
	}
	msg := strings.ToLower(err.Error())
	for _, pattern := range credentialPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func redact(key string) string {
	if len(key) <= 8 {
		return "********"
	}
	return key[:8] + "..."
}
