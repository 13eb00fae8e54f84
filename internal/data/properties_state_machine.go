package data

import (
	"fmt"
	"strings"
)

type PropertyStatus string

const (
	DraftPropertyStatus          PropertyStatus = "draft"
	AwaitingAgentPropertyStatus  PropertyStatus = "awaiting_agent"
	AgentVerifiedPropertyStatus  PropertyStatus = "agent_verified"
	AwaitingLawyerPropertyStatus PropertyStatus = "awaiting_lawyer"
	LawyerVerifiedPropertyStatus PropertyStatus = "lawyer_verified"
	ActivePropertyStatus         PropertyStatus = "active"
	SuspendedPropertyStatus      PropertyStatus = "suspended"
	RejectedPropertyStatus       PropertyStatus = "rejected"
	SoldPropertyStatus           PropertyStatus = "sold"
	RentedPropertyStatus         PropertyStatus = "rented"
)

// Validate validates the property status.
func (status PropertyStatus) Validate() error {
	switch PropertyStatus(strings.ToLower(string(status))) {
	case DraftPropertyStatus, AwaitingAgentPropertyStatus, AgentVerifiedPropertyStatus,
		AwaitingLawyerPropertyStatus, LawyerVerifiedPropertyStatus, ActivePropertyStatus,
		SuspendedPropertyStatus, RejectedPropertyStatus, SoldPropertyStatus, RentedPropertyStatus:
		return nil
	default:
		return fmt.Errorf("invalid property status: %s", status)
	}
}

// TransitionTo transitions the property status to the target state.
func (status PropertyStatus) TransitionTo(targetState PropertyStatus) error {
	return PropertyStateMachineWithInitialState(status).TransitionTo(targetState.State())
}

// PropertyStateMachineWithInitialState returns a state machine for the
// verification pipeline initialized with the given state. The pipeline is
// one-directional: draft through agent and lawyer to active, or terminally
// rejected at either verification stage.
func PropertyStateMachineWithInitialState(initialState PropertyStatus) *StateMachine {
	transitions := []StateTransition{
		{From: DraftPropertyStatus.State(), To: AwaitingAgentPropertyStatus.State()},           // submitted
		{From: AwaitingAgentPropertyStatus.State(), To: AgentVerifiedPropertyStatus.State()},   // agent approves
		{From: AwaitingAgentPropertyStatus.State(), To: RejectedPropertyStatus.State()},        // agent rejects
		{From: AgentVerifiedPropertyStatus.State(), To: AwaitingLawyerPropertyStatus.State()},  // handed to legal review
		{From: AwaitingLawyerPropertyStatus.State(), To: LawyerVerifiedPropertyStatus.State()}, // lawyer approves
		{From: AwaitingLawyerPropertyStatus.State(), To: RejectedPropertyStatus.State()},       // lawyer rejects
		{From: LawyerVerifiedPropertyStatus.State(), To: ActivePropertyStatus.State()},         // listing goes live
		{From: ActivePropertyStatus.State(), To: SuspendedPropertyStatus.State()},
		{From: SuspendedPropertyStatus.State(), To: ActivePropertyStatus.State()},
		{From: ActivePropertyStatus.State(), To: SoldPropertyStatus.State()},
		{From: ActivePropertyStatus.State(), To: RentedPropertyStatus.State()},
	}

	return NewStateMachine(initialState.State(), transitions)
}

// PropertyStatuses returns a list of all possible property statuses.
func PropertyStatuses() []PropertyStatus {
	return []PropertyStatus{
		DraftPropertyStatus, AwaitingAgentPropertyStatus, AgentVerifiedPropertyStatus,
		AwaitingLawyerPropertyStatus, LawyerVerifiedPropertyStatus, ActivePropertyStatus,
		SuspendedPropertyStatus, RejectedPropertyStatus, SoldPropertyStatus, RentedPropertyStatus,
	}
}

// SourceStatuses returns the states a property can transition from, given the target state.
func (status PropertyStatus) SourceStatuses() []PropertyStatus {
	stateMachine := PropertyStateMachineWithInitialState(DraftPropertyStatus)
	fromStates := []PropertyStatus{}
	for _, fromState := range PropertyStatuses() {
		if stateMachine.Transitions[fromState.State()][status.State()] {
			fromStates = append(fromStates, fromState)
		}
	}
	return fromStates
}

func (status PropertyStatus) State() State {
	return State(status)
}
