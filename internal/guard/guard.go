// Package guard limits failed login attempts per (username, client IP) pair.
//
// Counters live in an expiring store. Each failure refreshes the TTL to the
// full lockout window, and a successful login deletes the counter. Store
// errors never block a login: reads fail open and writes are dropped.
package guard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/BradenHooton/loginguard/internal/models"
	"github.com/BradenHooton/loginguard/internal/pipeline"
	"github.com/BradenHooton/loginguard/internal/store"
	pkglogger "github.com/BradenHooton/loginguard/pkg/logger"
)

const (
	DefaultMaxAttempts   = 5
	DefaultLockoutWindow = 900 * time.Second
	DefaultStoreTimeout  = 250 * time.Millisecond

	// StageName is the name the guard registers its pipeline stages under
	StageName = "login-guard"
)

// Config holds the lockout tunables
type Config struct {
	MaxAttempts   int
	LockoutWindow time.Duration
	StoreTimeout  time.Duration // bound on every store call
}

// DefaultConfig returns the default lockout policy: 5 failures per 15 minutes
func DefaultConfig() Config {
	return Config{
		MaxAttempts:   DefaultMaxAttempts,
		LockoutWindow: DefaultLockoutWindow,
		StoreTimeout:  DefaultStoreTimeout,
	}
}

// Decision is the result of Authorize
type Decision struct {
	Allowed    bool
	RetryAfter time.Duration // remaining lockout, zero when allowed
}

// RetryAfterSeconds rounds the remaining lockout up to whole seconds
func (d Decision) RetryAfterSeconds() int {
	if d.Allowed {
		return 0
	}
	return max(1, int(math.Ceil(d.RetryAfter.Seconds())))
}

// RetryAfterMinutes rounds the remaining lockout up to whole minutes
func (d Decision) RetryAfterMinutes() int {
	if d.Allowed {
		return 0
	}
	return max(1, int(math.Ceil(d.RetryAfter.Minutes())))
}

// LockedOutError is returned by the pre-auth gate when an attempt is denied
type LockedOutError struct {
	Decision Decision
}

func (e *LockedOutError) Error() string {
	return fmt.Sprintf("%s: retry in %ds", models.ErrLockedOut, e.Decision.RetryAfterSeconds())
}

func (e *LockedOutError) Unwrap() error {
	return models.ErrLockedOut
}

// Message is the end-user text for the lockout
func (e *LockedOutError) Message() string {
	return fmt.Sprintf("Too many failed attempts. Try again in %d minutes.", e.Decision.RetryAfterMinutes())
}

// Guard tracks failed attempts. It holds no mutable state of its own.
type Guard struct {
	store  store.Store
	config Config
	logger *slog.Logger
}

// New creates a Guard over s. Zero config fields take their defaults.
func New(s store.Store, config Config, logger *slog.Logger) *Guard {
	defaults := DefaultConfig()
	if config.MaxAttempts <= 0 {
		config.MaxAttempts = defaults.MaxAttempts
	}
	if config.LockoutWindow <= 0 {
		config.LockoutWindow = defaults.LockoutWindow
	}
	if config.StoreTimeout <= 0 {
		config.StoreTimeout = defaults.StoreTimeout
	}

	return &Guard{
		store:  s,
		config: config,
		logger: logger,
	}
}

// Config returns the policy the guard was built with
func (g *Guard) Config() Config {
	return g.config
}

// Authorize reports whether an authentication attempt may proceed.
// Empty usernames are never tracked and always allowed.
func (g *Guard) Authorize(ctx context.Context, username, clientIP string) Decision {
	username = normalizeUsername(username)
	if username == "" {
		return Decision{Allowed: true}
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.StoreTimeout)
	defer cancel()

	entry, err := g.store.Get(ctx, Key(username, clientIP))
	if err != nil {
		if !errors.Is(err, models.ErrNotFound) {
			g.storeUnavailable(ctx, "authorize", err)
		}
		return Decision{Allowed: true}
	}

	if entry.Count < g.config.MaxAttempts {
		return Decision{Allowed: true}
	}

	return Decision{Allowed: false, RetryAfter: entry.TTL}
}

// RecordFailure counts one failed credential check and restarts the lockout window.
func (g *Guard) RecordFailure(ctx context.Context, username, clientIP string) {
	username = normalizeUsername(username)
	if username == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.StoreTimeout)
	defer cancel()

	key := Key(username, clientIP)

	var count int
	if inc, ok := g.store.(store.Incrementer); ok {
		n, err := inc.Incr(ctx, key, g.config.LockoutWindow)
		if err != nil {
			g.storeUnavailable(ctx, "record_failure", err)
			return
		}
		count = n
	} else {
		entry, err := g.store.Get(ctx, key)
		switch {
		case err == nil:
			count = entry.Count
		case errors.Is(err, models.ErrNotFound):
			count = 0
		default:
			// Writing 1 over an unreadable counter would shorten an active lockout
			g.storeUnavailable(ctx, "record_failure", err)
			return
		}

		count++
		if err := g.store.Set(ctx, key, count, g.config.LockoutWindow); err != nil {
			g.storeUnavailable(ctx, "record_failure", err)
			return
		}
	}

	if count == g.config.MaxAttempts {
		g.logger.WarnContext(ctx, "login lockout engaged",
			slog.String("username", pkglogger.MaskUsername(username)),
			slog.String("ip_address", clientIP),
			slog.Int("failed_attempts", count),
			slog.Duration("lockout_window", g.config.LockoutWindow))
	}
}

// Clear deletes the failure record after a successful authentication
func (g *Guard) Clear(ctx context.Context, username, clientIP string) {
	username = normalizeUsername(username)
	if username == "" {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, g.config.StoreTimeout)
	defer cancel()

	if err := g.store.Delete(ctx, Key(username, clientIP)); err != nil && !errors.Is(err, models.ErrNotFound) {
		g.storeUnavailable(ctx, "clear", err)
	}
}

// Attach registers the guard's gate and hooks on p
func (g *Guard) Attach(p *pipeline.Pipeline) {
	p.PreAuth(StageName, func(ctx context.Context, a pipeline.Attempt) error {
		decision := g.Authorize(ctx, a.Username, a.ClientIP)
		if !decision.Allowed {
			return &LockedOutError{Decision: decision}
		}
		return nil
	})
	p.OnFailure(StageName, func(ctx context.Context, a pipeline.Attempt) {
		g.RecordFailure(ctx, a.Username, a.ClientIP)
	})
	p.OnSuccess(StageName, func(ctx context.Context, a pipeline.Attempt) {
		g.Clear(ctx, a.Username, a.ClientIP)
	})
}

func (g *Guard) storeUnavailable(ctx context.Context, op string, err error) {
	g.logger.WarnContext(ctx, "login guard failing open",
		slog.String("op", op),
		slog.Any("error", fmt.Errorf("%w: %v", models.ErrStoreUnavailable, err)))
}
