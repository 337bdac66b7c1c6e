package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequest(t *testing.T) *JoinRequest {
	t.Helper()
	req, err := NewJoinRequest("ride-1", "passenger-1", 2, "hi")
	require.NoError(t, err)
	req.SetID("req-1")
	return req
}

func TestNewJoinRequest_Validation(t *testing.T) {
	_, err := NewJoinRequest("", "p", 1, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewJoinRequest("r", "", 1, "")
	assert.ErrorIs(t, err, ErrValidation)

	_, err = NewJoinRequest("r", "p", 0, "")
	assert.ErrorIs(t, err, ErrValidation)

	req, err := NewJoinRequest("r", "p", 1, "msg")
	require.NoError(t, err)
	assert.Equal(t, RequestPending, req.Status())
	assert.True(t, req.IsActive())
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to RequestStatus
		ok       bool
	}{
		{RequestPending, RequestAccepted, true},
		{RequestPending, RequestRejected, true},
		{RequestPending, RequestCancelled, true},
		{RequestAccepted, RequestCancelled, true},
		{RequestAccepted, RequestRejected, false},
		{RequestAccepted, RequestPending, false},
		{RequestRejected, RequestAccepted, false},
		{RequestRejected, RequestCancelled, false},
		{RequestCancelled, RequestAccepted, false},
		{RequestCancelled, RequestPending, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.from)+"_to_"+string(tt.to), func(t *testing.T) {
			assert.Equal(t, tt.ok, CanTransition(tt.from, tt.to))
		})
	}
}

func TestJoinRequest_Accept(t *testing.T) {
	req := newTestRequest(t)

	require.NoError(t, req.Accept("welcome aboard"))
	assert.Equal(t, RequestAccepted, req.Status())
	assert.Equal(t, "welcome aboard", req.ResponseNote())
	assert.NotNil(t, req.RespondedAt())
	assert.True(t, req.IsActive())
}

func TestJoinRequest_RejectThenAcceptFails(t *testing.T) {
	req := newTestRequest(t)

	require.NoError(t, req.Reject("full car"))
	assert.Equal(t, RequestRejected, req.Status())
	assert.False(t, req.IsActive())

	err := req.Accept("")
	assert.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, RequestRejected, req.Status())
}

func TestJoinRequest_CancelFromAccepted(t *testing.T) {
	req := newTestRequest(t)
	require.NoError(t, req.Accept(""))

	require.NoError(t, req.Cancel())
	assert.Equal(t, RequestCancelled, req.Status())
	assert.False(t, req.IsActive())
}

func TestJoinRequest_Revert(t *testing.T) {
	req := newTestRequest(t)
	require.NoError(t, req.Accept("note"))

	req.Revert()
	assert.Equal(t, RequestPending, req.Status())
	assert.Empty(t, req.ResponseNote())
	assert.Nil(t, req.RespondedAt())

	// A reverted request can be accepted again.
	require.NoError(t, req.Accept("second try"))
	assert.Equal(t, RequestAccepted, req.Status())
}

func TestRequestStatus_IsTerminal(t *testing.T) {
	assert.False(t, RequestPending.IsTerminal())
	assert.False(t, RequestAccepted.IsTerminal(), "accepted can still be cancelled")
	assert.True(t, RequestRejected.IsTerminal())
	assert.True(t, RequestCancelled.IsTerminal())
}
