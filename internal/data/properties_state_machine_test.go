package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_PropertyStatus_TransitionTo(t *testing.T) {
	tests := []struct {
		name   string
		from   PropertyStatus
		to     PropertyStatus
		wantOK bool
	}{
		{name: "draft to awaiting_agent", from: DraftPropertyStatus, to: AwaitingAgentPropertyStatus, wantOK: true},
		{name: "agent approves", from: AwaitingAgentPropertyStatus, to: AgentVerifiedPropertyStatus, wantOK: true},
		{name: "agent rejects", from: AwaitingAgentPropertyStatus, to: RejectedPropertyStatus, wantOK: true},
		{name: "agent_verified to awaiting_lawyer", from: AgentVerifiedPropertyStatus, to: AwaitingLawyerPropertyStatus, wantOK: true},
		{name: "lawyer approves", from: AwaitingLawyerPropertyStatus, to: LawyerVerifiedPropertyStatus, wantOK: true},
		{name: "lawyer rejects", from: AwaitingLawyerPropertyStatus, to: RejectedPropertyStatus, wantOK: true},
		{name: "lawyer_verified to active", from: LawyerVerifiedPropertyStatus, to: ActivePropertyStatus, wantOK: true},
		{name: "active to suspended", from: ActivePropertyStatus, to: SuspendedPropertyStatus, wantOK: true},
		{name: "suspended back to active", from: SuspendedPropertyStatus, to: ActivePropertyStatus, wantOK: true},
		{name: "active to sold", from: ActivePropertyStatus, to: SoldPropertyStatus, wantOK: true},
		{name: "active to rented", from: ActivePropertyStatus, to: RentedPropertyStatus, wantOK: true},
		{name: "lawyer cannot be skipped", from: AgentVerifiedPropertyStatus, to: ActivePropertyStatus, wantOK: false},
		{name: "agent cannot be skipped", from: DraftPropertyStatus, to: AgentVerifiedPropertyStatus, wantOK: false},
		{name: "draft cannot go active", from: DraftPropertyStatus, to: ActivePropertyStatus, wantOK: false},
		{name: "rejected is terminal", from: RejectedPropertyStatus, to: AwaitingAgentPropertyStatus, wantOK: false},
		{name: "sold is terminal", from: SoldPropertyStatus, to: ActivePropertyStatus, wantOK: false},
		{name: "rented is terminal", from: RentedPropertyStatus, to: ActivePropertyStatus, wantOK: false},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.from.TransitionTo(tc.to)
			if tc.wantOK {
				require.NoError(t, err)
			} else {
				require.Error(t, err)
			}
		})
	}
}

func Test_PropertyStatus_SourceStatuses(t *testing.T) {
	assert.ElementsMatch(t, []PropertyStatus{}, DraftPropertyStatus.SourceStatuses())
	assert.ElementsMatch(t, []PropertyStatus{DraftPropertyStatus}, AwaitingAgentPropertyStatus.SourceStatuses())
	assert.ElementsMatch(t,
		[]PropertyStatus{AwaitingAgentPropertyStatus, AwaitingLawyerPropertyStatus},
		RejectedPropertyStatus.SourceStatuses())
	assert.ElementsMatch(t,
		[]PropertyStatus{LawyerVerifiedPropertyStatus, SuspendedPropertyStatus},
		ActivePropertyStatus.SourceStatuses())
}
