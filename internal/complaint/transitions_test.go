package complaint_test

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vasiliy-maslov/marketplace-settlement/internal/apperr"
	"github.com/vasiliy-maslov/marketplace-settlement/internal/complaint"
)

func TestComplaint_TransitionTo(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name         string
		from         complaint.Status
		to           complaint.Status
		wantErr      error
		wantResolved bool
	}{
		{name: "seller_rejects", from: complaint.StatusPending, to: complaint.StatusNegotiating},
		{name: "seller_requests_return", from: complaint.StatusPending, to: complaint.StatusWaitingReturn},
		{name: "seller_accepts", from: complaint.StatusPending, to: complaint.StatusResolvedRefund, wantResolved: true},
		{name: "buyer_ships", from: complaint.StatusWaitingReturn, to: complaint.StatusReturning},
		{name: "seller_confirms_return", from: complaint.StatusReturning, to: complaint.StatusResolvedRefund, wantResolved: true},
		{name: "escalate", from: complaint.StatusNegotiating, to: complaint.StatusAdminReview},
		{name: "admin_rejects", from: complaint.StatusAdminReview, to: complaint.StatusResolvedReject, wantResolved: true},
		{name: "buyer_cancels", from: complaint.StatusWaitingReturn, to: complaint.StatusCancelled, wantResolved: true},
		{name: "escalate_from_pending", from: complaint.StatusPending, to: complaint.StatusAdminReview, wantErr: apperr.ErrInvalidTransition},
		{name: "skip_return", from: complaint.StatusWaitingReturn, to: complaint.StatusResolvedRefund, wantErr: apperr.ErrInvalidTransition},
		{name: "reopen", from: complaint.StatusResolvedReject, to: complaint.StatusAdminReview, wantErr: apperr.ErrInvalidTransition},
		{name: "repeat", from: complaint.StatusResolvedRefund, to: complaint.StatusResolvedRefund, wantErr: apperr.ErrAlreadyProcessed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &complaint.Complaint{Status: tt.from}
			err := c.TransitionTo(tt.to, now)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				assert.Equal(t, tt.from, c.Status)
				assert.Nil(t, c.ResolvedAt)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.to, c.Status)
			if tt.wantResolved {
				require.NotNil(t, c.ResolvedAt)
				assert.True(t, now.Equal(*c.ResolvedAt))
			} else {
				assert.Nil(t, c.ResolvedAt)
			}
		})
	}
}

func TestActiveStatuses(t *testing.T) {
	want := []complaint.Status{
		complaint.StatusPending,
		complaint.StatusNegotiating,
		complaint.StatusWaitingReturn,
		complaint.StatusReturning,
		complaint.StatusAdminReview,
	}
	if diff := cmp.Diff(want, complaint.ActiveStatuses()); diff != "" {
		t.Errorf("ActiveStatuses() mismatch (-want +got):\n%s", diff)
	}

	for _, s := range want {
		assert.True(t, s.IsActive(), s)
	}
	assert.False(t, complaint.StatusCancelled.IsActive())
	assert.False(t, complaint.StatusResolvedReject.IsActive())
}
