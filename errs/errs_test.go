package errs_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/no-ai-labs/spice-sub002/errs"
)

func TestError_WrapUnwrap(t *testing.T) {
	cause := errors.New("boom")
	err := errs.Wrap(errs.KindExecution, "node failed", cause)

	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), "boom")
	assert.Contains(t, err.Error(), "node failed")
}

func TestError_WithNodeAndGraph(t *testing.T) {
	base := errs.New(errs.KindValidation, "invalid graph")
	annotated := base.WithGraph("g1").WithNode("n1")

	assert.Empty(t, base.NodeID, "WithNode must not mutate the receiver")
	assert.Equal(t, "n1", annotated.NodeID)
	assert.Equal(t, "g1", annotated.GraphID)
	assert.Contains(t, annotated.Error(), "n1")
}

func TestIsKind(t *testing.T) {
	err := errs.New(errs.KindTimeout, "checkpoint expired")
	assert.True(t, errs.IsKind(err, errs.KindTimeout))
	assert.False(t, errs.IsKind(err, errs.KindValidation))
	assert.False(t, errs.IsKind(errors.New("plain"), errs.KindTimeout))
}

func TestFromError(t *testing.T) {
	plain := errors.New("plain failure")
	wrapped := errs.FromError(errs.KindExecution, plain)
	require.NotNil(t, wrapped)
	assert.Equal(t, errs.KindExecution, wrapped.Kind)

	structured := errs.New(errs.KindBus, "bus failure")
	assert.Same(t, structured, errs.FromError(errs.KindExecution, structured))
}

func TestErrorsIs_MatchesByKind(t *testing.T) {
	a := errs.New(errs.KindCheckpoint, "missing")
	b := errs.New(errs.KindCheckpoint, "different message, same kind")
	c := errs.New(errs.KindNotFound, "different kind")

	assert.True(t, errors.Is(a, b))
	assert.False(t, errors.Is(a, c))
}
