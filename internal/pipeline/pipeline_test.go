package pipeline_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/BradenHooton/loginguard/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	errBadPassword = errors.New("bad password")
	errBlocked     = errors.New("blocked")
	errDatabase    = errors.New("database down")
)

func newTestPipeline(opts ...pipeline.Option) (*pipeline.Pipeline, *[]string) {
	calls := &[]string{}
	p := pipeline.New(slog.New(slog.NewTextHandler(io.Discard, nil)), opts...)
	p.PreAuth("first", func(ctx context.Context, a pipeline.Attempt) error {
		*calls = append(*calls, "pre:first")
		return nil
	})
	p.OnFailure("recorder", func(ctx context.Context, a pipeline.Attempt) {
		*calls = append(*calls, "failure:"+a.Username)
	})
	p.OnSuccess("recorder", func(ctx context.Context, a pipeline.Attempt) {
		*calls = append(*calls, "success:"+a.Username)
	})
	return p, calls
}

func TestRun_SuccessRunsSuccessHooks(t *testing.T) {
	p, calls := newTestPipeline()

	result, err := pipeline.Run(context.Background(), p, pipeline.Attempt{Username: "alice"}, func(ctx context.Context) (string, error) {
		*calls = append(*calls, "verify")
		return "token", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "token", result)
	assert.Equal(t, []string{"pre:first", "verify", "success:alice"}, *calls)
}

func TestRun_FailureRunsFailureHooks(t *testing.T) {
	p, calls := newTestPipeline()

	result, err := pipeline.Run(context.Background(), p, pipeline.Attempt{Username: "alice"}, func(ctx context.Context) (string, error) {
		*calls = append(*calls, "verify")
		return "ignored", errBadPassword
	})

	assert.ErrorIs(t, err, errBadPassword)
	assert.Empty(t, result, "zero value returned on failure")
	assert.Equal(t, []string{"pre:first", "verify", "failure:alice"}, *calls)
}

func TestRun_GateRejectionSkipsVerifyAndHooks(t *testing.T) {
	p, calls := newTestPipeline()
	p.PreAuth("blocker", func(ctx context.Context, a pipeline.Attempt) error {
		*calls = append(*calls, "pre:blocker")
		return errBlocked
	})
	p.PreAuth("never", func(ctx context.Context, a pipeline.Attempt) error {
		*calls = append(*calls, "pre:never")
		return nil
	})

	_, err := pipeline.Run(context.Background(), p, pipeline.Attempt{Username: "alice"}, func(ctx context.Context) (int, error) {
		*calls = append(*calls, "verify")
		return 1, nil
	})

	assert.ErrorIs(t, err, errBlocked)
	assert.Equal(t, []string{"pre:first", "pre:blocker"}, *calls)
}

func TestRun_FailureClassifier(t *testing.T) {
	p, calls := newTestPipeline(pipeline.WithFailureClassifier(func(err error) bool {
		return errors.Is(err, errBadPassword)
	}))

	_, err := pipeline.Run(context.Background(), p, pipeline.Attempt{Username: "bob"}, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, errDatabase
	})
	assert.ErrorIs(t, err, errDatabase)
	assert.Equal(t, []string{"pre:first"}, *calls, "infrastructure errors are not counted as failed attempts")

	_, err = pipeline.Run(context.Background(), p, pipeline.Attempt{Username: "bob"}, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, errBadPassword
	})
	assert.ErrorIs(t, err, errBadPassword)
	assert.Equal(t, []string{"pre:first", "pre:first", "failure:bob"}, *calls)
}

func TestStages_ReportsRegistrationOrder(t *testing.T) {
	p, _ := newTestPipeline()
	p.PreAuth("second", func(ctx context.Context, a pipeline.Attempt) error { return nil })

	stages := p.Stages()
	assert.Equal(t, []string{"first", "second"}, stages[pipeline.StagePreAuth])
	assert.Equal(t, []string{"recorder"}, stages[pipeline.StageOnFailure])
	assert.Equal(t, []string{"recorder"}, stages[pipeline.StageOnSuccess])
}
