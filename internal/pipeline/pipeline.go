// Package pipeline composes an authentication attempt from named stages.
//
// A Pipeline runs its pre-auth gates in registration order, then the
// credential verifier, then either the on-failure or the on-success hooks.
// A gate that rejects the attempt short-circuits everything after it,
// including the on-failure hooks.
package pipeline

import (
	"context"
	"log/slog"
)

// Stage identifies a point in the authentication flow
type Stage string

const (
	StagePreAuth   Stage = "pre-auth"
	StageOnFailure Stage = "on-failure"
	StageOnSuccess Stage = "on-success"
)

// Attempt describes a single authentication attempt
type Attempt struct {
	Username string
	ClientIP string
}

// Gate may reject an attempt before credentials are checked
type Gate func(ctx context.Context, attempt Attempt) error

// Hook observes the outcome of credential verification
type Hook func(ctx context.Context, attempt Attempt)

type namedGate struct {
	name string
	fn   Gate
}

type namedHook struct {
	name string
	fn   Hook
}

// Pipeline holds the registered stages. Register stages before serving
// traffic; Run is safe for concurrent use once registration is done.
type Pipeline struct {
	preAuth   []namedGate
	onFailure []namedHook
	onSuccess []namedHook
	isFailure func(error) bool
	logger    *slog.Logger
}

// Option configures a Pipeline
type Option func(*Pipeline)

// WithFailureClassifier limits on-failure hooks to verifier errors for which fn returns true.
// By default every verifier error counts as a failed attempt.
func WithFailureClassifier(fn func(error) bool) Option {
	return func(p *Pipeline) {
		p.isFailure = fn
	}
}

// New creates an empty Pipeline
func New(logger *slog.Logger, opts ...Option) *Pipeline {
	p := &Pipeline{
		isFailure: func(error) bool { return true },
		logger:    logger,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// PreAuth registers a gate under name
func (p *Pipeline) PreAuth(name string, gate Gate) *Pipeline {
	p.preAuth = append(p.preAuth, namedGate{name: name, fn: gate})
	return p
}

// OnFailure registers a hook run after a failed verification
func (p *Pipeline) OnFailure(name string, hook Hook) *Pipeline {
	p.onFailure = append(p.onFailure, namedHook{name: name, fn: hook})
	return p
}

// OnSuccess registers a hook run after a successful verification
func (p *Pipeline) OnSuccess(name string, hook Hook) *Pipeline {
	p.onSuccess = append(p.onSuccess, namedHook{name: name, fn: hook})
	return p
}

// Stages lists the registered stage names in execution order, for diagnostics
func (p *Pipeline) Stages() map[Stage][]string {
	stages := map[Stage][]string{}
	for _, g := range p.preAuth {
		stages[StagePreAuth] = append(stages[StagePreAuth], g.name)
	}
	for _, h := range p.onFailure {
		stages[StageOnFailure] = append(stages[StageOnFailure], h.name)
	}
	for _, h := range p.onSuccess {
		stages[StageOnSuccess] = append(stages[StageOnSuccess], h.name)
	}
	return stages
}

// Run executes the attempt through p, calling verify only if every gate passes.
func Run[T any](ctx context.Context, p *Pipeline, attempt Attempt, verify func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	for _, g := range p.preAuth {
		if err := g.fn(ctx, attempt); err != nil {
			p.logger.DebugContext(ctx, "attempt rejected before verification",
				slog.String("stage", string(StagePreAuth)),
				slog.String("gate", g.name),
				slog.Any("error", err))
			return zero, err
		}
	}

	result, err := verify(ctx)
	if err != nil {
		if p.isFailure(err) {
			p.runHooks(ctx, StageOnFailure, p.onFailure, attempt)
		}
		return zero, err
	}

	p.runHooks(ctx, StageOnSuccess, p.onSuccess, attempt)
	return result, nil
}

func (p *Pipeline) runHooks(ctx context.Context, stage Stage, hooks []namedHook, attempt Attempt) {
	for _, h := range hooks {
		h.fn(ctx, attempt)
		p.logger.DebugContext(ctx, "pipeline hook ran",
			slog.String("stage", string(stage)),
			slog.String("hook", h.name))
	}
}
