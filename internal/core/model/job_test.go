package model

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestJobRun_Transition(t *testing.T) {
	tests := []struct {
		name    string
		from    JobStatus
		to      JobStatus
		wantErr bool
	}{
		{"pending to running", JobPending, JobRunning, false},
		{"running to success", JobRunning, JobSuccess, false},
		{"running to failed", JobRunning, JobFailed, false},
		{"failed to retrying", JobFailed, JobRetrying, false},
		{"retrying to running", JobRetrying, JobRunning, false},
		{"pending to success", JobPending, JobSuccess, true},
		{"success to running", JobSuccess, JobRunning, true},
		{"success to retrying", JobSuccess, JobRetrying, true},
		{"failed to running", JobFailed, JobRunning, true},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			run := &JobRun{Status: tc.from}
			err := run.Transition(tc.to)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidTransition)
				require.Equal(t, tc.from, run.Status)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.to, run.Status)
		})
	}
}

func TestParseJobStatus(t *testing.T) {
	status, err := ParseJobStatus("RETRYING")
	require.NoError(t, err)
	require.Equal(t, JobRetrying, status)

	_, err = ParseJobStatus("DONE")
	require.Error(t, err)
}
