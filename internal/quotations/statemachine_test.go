package quotations

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quotedesk/quotedesk/internal/shared"
)

func TestParseTrigger(t *testing.T) {
	for raw, want := range map[string]Trigger{
		"approve":      TriggerApprove,
		"approved":     TriggerApprove,
		" Reject ":     TriggerReject,
		"effective":    TriggerEffective,
		"force_reject": TriggerForceReject,
	} {
		got, err := ParseTrigger(raw)
		require.NoError(t, err, raw)
		assert.Equal(t, want, got)
	}

	_, err := ParseTrigger("archive")
	require.ErrorIs(t, err, shared.ErrValidation)
}

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from    State
		trigger Trigger
		to      State
		changed bool
	}{
		{StatePendingApproval, TriggerApprove, StatePending, true},
		{StatePendingApproval, TriggerReject, StateRejected, true},
		{StatePending, TriggerReject, StateRejected, true},
		{StatePending, TriggerEffective, StateEffective, true},
		{StateEffective, TriggerForceReject, StateRejected, true},
		{StatePending, TriggerForceReject, StateRejected, true},
		{StatePending, TriggerApprove, StatePending, false},
		{StatePendingApproval, TriggerEffective, StatePendingApproval, false},
		{StateEffective, TriggerReject, StateEffective, false},
		{StateRejected, TriggerApprove, StateRejected, false},
		{StateRejected, TriggerForceReject, StateRejected, false},
	}
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for _, tc := range cases {
		t.Run(string(tc.from)+"/"+string(tc.trigger), func(t *testing.T) {
			q := Quotation{ID: 1, State: tc.from, Total: dec("100")}
			next, changed := Transition(q, tc.trigger, supervisor, nil, now)
			assert.Equal(t, tc.changed, changed)
			assert.Equal(t, tc.to, next.State)
		})
	}
}

func TestTransitionRecordsAuditFields(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	q := Quotation{ID: 1, State: StatePendingApproval}

	approved, changed := Transition(q, TriggerApprove, supervisor, nil, now)
	require.True(t, changed)
	require.NotNil(t, approved.ApprovedBy)
	assert.Equal(t, supervisor.ID, *approved.ApprovedBy)
	assert.Equal(t, supervisor.Name, *approved.ApprovedByName)
	assert.Equal(t, now, *approved.ApprovedAt)
	assert.Nil(t, approved.RejectedBy)

	reason := "price too low"
	rejected, changed := Transition(approved, TriggerReject, admin, &reason, now.Add(time.Hour))
	require.True(t, changed)
	assert.Equal(t, admin.ID, *rejected.RejectedBy)
	assert.Equal(t, reason, *rejected.Comment)
	assert.Nil(t, rejected.ApprovedBy)
	assert.Nil(t, rejected.ApprovedAt)
}

func TestTransitionNoOpLeavesQuotationUntouched(t *testing.T) {
	approvedBy := int64(9)
	q := Quotation{ID: 1, State: StateEffective, Total: dec("900"), ApprovedBy: &approvedBy}

	next, changed := Transition(q, TriggerApprove, admin, nil, time.Now())
	assert.False(t, changed)
	assert.Equal(t, q, next)
}

func TestAuthorizeTransition(t *testing.T) {
	own := &Quotation{SalespersonID: salesperson.ID}

	require.NoError(t, AuthorizeTransition(own, TriggerApprove, supervisor))
	require.NoError(t, AuthorizeTransition(own, TriggerForceReject, admin))
	require.NoError(t, AuthorizeTransition(own, TriggerEffective, salesperson))
	require.ErrorIs(t, AuthorizeTransition(own, TriggerApprove, salesperson), shared.ErrAuthorization)
	require.ErrorIs(t, AuthorizeTransition(own, TriggerReject, salesperson), shared.ErrAuthorization)
	require.ErrorIs(t, AuthorizeTransition(own, TriggerEffective, otherSeller), shared.ErrAuthorization)
}
