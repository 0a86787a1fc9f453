package faults

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	require.Equal(t, KindNotFound, KindOf(NotFound("missing")))
	require.Equal(t, KindLimitExceeded, KindOf(LimitExceeded("over")))
	require.Equal(t, Kind(""), KindOf(errors.New("plain")))
	require.Equal(t, Kind(""), KindOf(nil))
}

func TestKindOf_Wrapped(t *testing.T) {
	err := fmt.Errorf("handler: %w", InvalidStateTransition("bad move"))
	require.Equal(t, KindInvalidStateTransition, KindOf(err))
}

func TestIs_MatchesByKind(t *testing.T) {
	err := NotFound("Subscription not found: sub-1")
	require.ErrorIs(t, err, NotFound(""))
	require.NotErrorIs(t, err, AlreadyInState(""))
}

func TestUnwrap_ExposesCause(t *testing.T) {
	cause := errors.New("connection reset")
	err := PersistenceFailure(cause, "save failed")
	require.ErrorIs(t, err, cause)
	require.Contains(t, err.Error(), "persistence_failure")
	require.Contains(t, err.Error(), "connection reset")
}

func TestIsBusiness(t *testing.T) {
	tests := []struct {
		err      error
		business bool
	}{
		{NotFound("x"), true},
		{InvalidStateTransition("x"), true},
		{AlreadyInState("x"), true},
		{LimitExceeded("x"), true},
		{ValidationFailure("x"), true},
		{PersistenceFailure(errors.New("db"), "x"), false},
		{EventPublishFailure(errors.New("kafka"), "x"), false},
		{DependencyUnavailable(errors.New("open"), "x"), false},
		{errors.New("plain"), false},
	}
	for _, tt := range tests {
		require.Equal(t, tt.business, IsBusiness(tt.err), "err=%v", tt.err)
	}
}
