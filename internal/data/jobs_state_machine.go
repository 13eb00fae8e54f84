package data

import (
	"fmt"
	"strings"
)

type JobStatus string

const (
	OpenJobStatus        JobStatus = "open"
	InProgressJobStatus  JobStatus = "in_progress"
	UnderReviewJobStatus JobStatus = "under_review"
	CompletedJobStatus   JobStatus = "completed"
	DisputedJobStatus    JobStatus = "disputed"
	CancelledJobStatus   JobStatus = "cancelled"
)

type JobPaymentStatus string

const (
	PendingJobPaymentStatus       JobPaymentStatus = "pending"
	EscrowedJobPaymentStatus      JobPaymentStatus = "escrowed"
	PartiallyPaidJobPaymentStatus JobPaymentStatus = "partially_paid"
	CompletedJobPaymentStatus     JobPaymentStatus = "completed"
	RefundedJobPaymentStatus      JobPaymentStatus = "refunded"
)

// Validate validates the job status.
func (status JobStatus) Validate() error {
	switch JobStatus(strings.ToLower(string(status))) {
	case OpenJobStatus, InProgressJobStatus, UnderReviewJobStatus,
		CompletedJobStatus, DisputedJobStatus, CancelledJobStatus:
		return nil
	default:
		return fmt.Errorf("invalid job status: %s", status)
	}
}

// TransitionTo transitions the job status to the target state.
func (status JobStatus) TransitionTo(targetState JobStatus) error {
	return JobStateMachineWithInitialState(status).TransitionTo(targetState.State())
}

// JobStateMachineWithInitialState returns a state machine for jobs initialized with the given state.
func JobStateMachineWithInitialState(initialState JobStatus) *StateMachine {
	transitions := []StateTransition{
		{From: OpenJobStatus.State(), To: InProgressJobStatus.State()},        // worker assigned, funds escrowed
		{From: OpenJobStatus.State(), To: CancelledJobStatus.State()},         // cancelled before assignment
		{From: InProgressJobStatus.State(), To: UnderReviewJobStatus.State()}, // 100% progress submitted
		{From: InProgressJobStatus.State(), To: DisputedJobStatus.State()},    // dispute opened mid-work
		{From: UnderReviewJobStatus.State(), To: CompletedJobStatus.State()},  // employer accepts
		{From: UnderReviewJobStatus.State(), To: DisputedJobStatus.State()},   // dispute opened at review
		{From: DisputedJobStatus.State(), To: CancelledJobStatus.State()},     // resolved in favor of employer
		{From: DisputedJobStatus.State(), To: CompletedJobStatus.State()},     // resolved in favor of worker or split
	}

	return NewStateMachine(initialState.State(), transitions)
}

// JobStatuses returns a list of all possible job statuses.
func JobStatuses() []JobStatus {
	return []JobStatus{OpenJobStatus, InProgressJobStatus, UnderReviewJobStatus, CompletedJobStatus, DisputedJobStatus, CancelledJobStatus}
}

// SourceStatuses returns the states a job can transition from, given the target state.
func (status JobStatus) SourceStatuses() []JobStatus {
	stateMachine := JobStateMachineWithInitialState(OpenJobStatus)
	fromStates := []JobStatus{}
	for _, fromState := range JobStatuses() {
		if stateMachine.Transitions[fromState.State()][status.State()] {
			fromStates = append(fromStates, fromState)
		}
	}
	return fromStates
}

func (status JobStatus) State() State {
	return State(status)
}

// IsTerminal reports whether no further transitions are possible.
func (status JobStatus) IsTerminal() bool {
	return status == CompletedJobStatus || status == CancelledJobStatus
}
