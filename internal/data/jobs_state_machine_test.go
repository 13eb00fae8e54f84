package data

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_JobStatus_Validate(t *testing.T) {
	tests := []struct {
		name   string
		status JobStatus
		err    string
	}{
		{name: "validate Open", status: OpenJobStatus},
		{name: "validate InProgress", status: InProgressJobStatus},
		{name: "validate UnderReview", status: UnderReviewJobStatus},
		{name: "validate Completed", status: CompletedJobStatus},
		{name: "validate Disputed", status: DisputedJobStatus},
		{name: "validate Cancelled", status: CancelledJobStatus},
		{name: "validate uppercase", status: JobStatus("OPEN")},
		{name: "invalid status", status: JobStatus("unknown"), err: "invalid job status: unknown"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.status.Validate()
			if tc.err == "" {
				require.NoError(t, err)
			} else {
				require.EqualError(t, err, tc.err)
			}
		})
	}
}

func Test_JobStatus_TransitionTo(t *testing.T) {
	tests := []struct {
		name   string
		from   JobStatus
		to     JobStatus
		wantOK bool
	}{
		{name: "open to in_progress", from: OpenJobStatus, to: InProgressJobStatus, wantOK: true},
		{name: "open to cancelled", from: OpenJobStatus, to: CancelledJobStatus, wantOK: true},
		{name: "in_progress to under_review", from: InProgressJobStatus, to: UnderReviewJobStatus, wantOK: true},
		{name: "in_progress to disputed", from: InProgressJobStatus, to: DisputedJobStatus, wantOK: true},
		{name: "under_review to completed", from: UnderReviewJobStatus, to: CompletedJobStatus, wantOK: true},
		{name: "under_review to disputed", from: UnderReviewJobStatus, to: DisputedJobStatus, wantOK: true},
		{name: "disputed to cancelled", from: DisputedJobStatus, to: CancelledJobStatus, wantOK: true},
		{name: "disputed to completed", from: DisputedJobStatus, to: CompletedJobStatus, wantOK: true},
		{name: "open to completed is blocked", from: OpenJobStatus, to: CompletedJobStatus, wantOK: false},
		{name: "open to under_review is blocked", from: OpenJobStatus, to: UnderReviewJobStatus, wantOK: false},
		{name: "in_progress to cancelled is blocked", from: InProgressJobStatus, to: CancelledJobStatus, wantOK: false},
		{name: "completed is terminal", from: CompletedJobStatus, to: DisputedJobStatus, wantOK: false},
		{name: "cancelled is terminal", from: CancelledJobStatus, to: OpenJobStatus, wantOK: false},
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

func Test_JobStatus_SourceStatuses(t *testing.T) {
	tests := []struct {
		target          JobStatus
		expectedSources []JobStatus
	}{
		{target: OpenJobStatus, expectedSources: []JobStatus{}},
		{target: InProgressJobStatus, expectedSources: []JobStatus{OpenJobStatus}},
		{target: UnderReviewJobStatus, expectedSources: []JobStatus{InProgressJobStatus}},
		{target: CompletedJobStatus, expectedSources: []JobStatus{UnderReviewJobStatus, DisputedJobStatus}},
		{target: DisputedJobStatus, expectedSources: []JobStatus{InProgressJobStatus, UnderReviewJobStatus}},
		{target: CancelledJobStatus, expectedSources: []JobStatus{OpenJobStatus, DisputedJobStatus}},
	}

	for _, tc := range tests {
		t.Run(string(tc.target), func(t *testing.T) {
			assert.ElementsMatch(t, tc.expectedSources, tc.target.SourceStatuses())
		})
	}
}

func Test_JobStatus_IsTerminal(t *testing.T) {
	assert.True(t, CompletedJobStatus.IsTerminal())
	assert.True(t, CancelledJobStatus.IsTerminal())
	assert.False(t, OpenJobStatus.IsTerminal())
	assert.False(t, InProgressJobStatus.IsTerminal())
	assert.False(t, UnderReviewJobStatus.IsTerminal())
	assert.False(t, DisputedJobStatus.IsTerminal())
}
