package placement

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"pet-rehoming/internal/platform/apperr"
	"pet-rehoming/internal/ports/auth"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestTransitions(t *testing.T) {
	tests := []struct {
		from    RequestStatus
		action  RequestAction
		want    RequestStatus
		allowed bool
	}{
		{RequestOpen, RequestAcceptResponse, RequestPendingReview, true},
		{RequestOpen, RequestFulfill, RequestFulfilled, true},
		{RequestOpen, RequestExpire, RequestExpired, true},
		{RequestOpen, RequestCancel, RequestCancelled, true},
		{RequestOpen, RequestReopen, "", false},
		{RequestPendingReview, RequestFulfill, RequestFulfilled, true},
		{RequestPendingReview, RequestReopen, RequestOpen, true},
		{RequestPendingReview, RequestCancel, RequestCancelled, true},
		{RequestPendingReview, RequestExpire, "", false},
		{RequestFulfilled, RequestCancel, "", false},
		{RequestExpired, RequestExpire, "", false},
		{RequestCancelled, RequestReopen, "", false},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.from, tt.action), func(t *testing.T) {
			got, err := nextRequest(tt.from, tt.action)
			if !tt.allowed {
				require.Error(t, err)
				assert.ErrorIs(t, translate(err), apperr.ErrConflict)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestResponseTransitions(t *testing.T) {
	got, err := nextResponse(ResponsePending, ResponseAccept)
	require.NoError(t, err)
	assert.Equal(t, ResponseAccepted, got)

	got, err = nextResponse(ResponseAccepted, ResponseRelease)
	require.NoError(t, err)
	assert.Equal(t, ResponseCancelled, got)

	for _, from := range []ResponseStatus{ResponseAccepted, ResponseRejected, ResponseCancelled} {
		_, err := nextResponse(from, ResponseCancel)
		assert.Error(t, err, from)
	}
}

func TestTerminalStatesHaveNoActions(t *testing.T) {
	assert.Empty(t, transferTransitions.actions(TransferConfirmed, transferActionOrder))
	assert.Empty(t, assignmentTransitions.actions(AssignmentCompleted, assignmentActionOrder))
	assert.Empty(t, handoverTransitions.actions(HandoverDisputed, handoverActionOrder))
	assert.Empty(t, handoverTransitions.actions(HandoverCompleted, handoverActionOrder))
	assert.Equal(t, []HandoverAction{HandoverComplete}, handoverTransitions.actions(HandoverConfirmed, handoverActionOrder))
}

func TestHandover_CompleteAllowedFromPending(t *testing.T) {
	got, err := nextHandover(HandoverPending, HandoverComplete)
	require.NoError(t, err)
	assert.Equal(t, HandoverCompleted, got)
}

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(conflictf("x")), apperr.ErrConflict)
	assert.ErrorIs(t, translate(ErrRowNotFound), apperr.ErrNotFound)
	assert.ErrorIs(t, translate(fmt.Errorf("update: %w", ErrStaleWrite)), apperr.ErrConflict)
	assert.ErrorIs(t, translate(ErrUniqueViolation), apperr.ErrConflict)

	forbidden := apperr.Forbidden("nope")
	assert.Same(t, forbidden, translate(forbidden))

	boom := errors.New("db down")
	got := translate(boom)
	assert.Equal(t, apperr.KindInternal, apperr.KindOf(got))
	assert.ErrorIs(t, got, boom)

	e, ok := apperr.As(notFound(ErrRowNotFound, "pet"))
	require.True(t, ok)
	assert.Equal(t, "pet not found", e.Reason)
}

func TestAvailableActions(t *testing.T) {
	ownerA := Actor{UserID: "owner"}
	helperA := Actor{UserID: "h1"}
	adminA := Actor{UserID: "root", Role: auth.RoleAdmin}
	exp := time.Now()

	req := PlacementRequest{OwnerUserID: "owner", Status: RequestOpen, ExpiresAt: &exp}
	assert.Equal(t, []RequestAction{RequestCancel}, RequestActions(ownerA, req))
	assert.Equal(t, []RequestAction{RequestExpire}, RequestActions(adminA, req))
	assert.Empty(t, RequestActions(helperA, req))

	req.Status = RequestFulfilled
	resp := PlacementResponse{HelperUserID: "h1", Status: ResponsePending}
	assert.Equal(t, []ResponseAction{ResponseReject}, ResponseActions(ownerA, req, resp), "no accept on a closed request")
	assert.Equal(t, []ResponseAction{ResponseCancel}, ResponseActions(helperA, req, resp))

	tr := TransferRequest{FromUserID: "owner", ToUserID: "h1", Status: TransferPending}
	assert.Equal(t, []TransferAction{TransferConfirm, TransferReject, TransferCancel}, TransferActions(helperA, tr))
	assert.Equal(t, []TransferAction{TransferCancel}, TransferActions(ownerA, tr))
	assert.Empty(t, TransferActions(adminA, tr))

	fa := FosterAssignment{OwnerUserID: "owner", FosterUserID: "h1", Status: AssignmentActive}
	assert.Empty(t, AssignmentActions(helperA, fa))
	assert.Equal(t, []AssignmentAction{AssignmentComplete}, AssignmentActions(adminA, fa))

	h := FosterReturnHandover{OwnerUserID: "owner", FosterUserID: "h1", Status: HandoverPending}
	assert.Equal(t, []HandoverAction{HandoverConfirm, HandoverDispute, HandoverComplete}, HandoverActions(ownerA, h))
	assert.Equal(t, []HandoverAction{HandoverComplete}, HandoverActions(helperA, h))
}
