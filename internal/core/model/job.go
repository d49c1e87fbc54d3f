package model

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidTransition is returned when a job run is moved to a status that
// is not reachable from its current one.
var ErrInvalidTransition = errors.New("invalid job status transition")

// JobStatus is the lifecycle state of one pipeline run.
type JobStatus string

const (
	JobPending  JobStatus = "PENDING"
	JobRunning  JobStatus = "RUNNING"
	JobSuccess  JobStatus = "SUCCESS"
	JobFailed   JobStatus = "FAILED"
	JobRetrying JobStatus = "RETRYING"
)

var jobTransitions = map[JobStatus][]JobStatus{
	JobPending:  {JobRunning, JobFailed},
	JobRunning:  {JobSuccess, JobFailed},
	JobFailed:   {JobRetrying},
	JobRetrying: {JobRunning, JobFailed},
}

// Valid reports whether s is one of the known statuses.
func (s JobStatus) Valid() bool {
	switch s {
	case JobPending, JobRunning, JobSuccess, JobFailed, JobRetrying:
		return true
	}
	return false
}

// Terminal reports whether no further transition is expected without an
// explicit retry.
func (s JobStatus) Terminal() bool {
	return s == JobSuccess || s == JobFailed
}

// CanTransition reports whether s may move to next.
func (s JobStatus) CanTransition(next JobStatus) bool {
	for _, allowed := range jobTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseJobStatus validates a stored status string.
func ParseJobStatus(s string) (JobStatus, error) {
	status := JobStatus(s)
	if !status.Valid() {
		return "", fmt.Errorf("unknown job status %q", s)
	}
	return status, nil
}

// CheckResult is the outcome of one validator check.
type CheckResult struct {
	Check   string `json:"check"`
	Passed  bool   `json:"passed"`
	Message string `json:"message"`
}

// JobRun is the externally visible record of one pipeline invocation.
type JobRun struct {
	ID           string        `json:"id"`
	JobName      string        `json:"job_name"`
	Status       JobStatus     `json:"status"`
	StartedAt    time.Time     `json:"started_at"`
	FinishedAt   *time.Time    `json:"finished_at,omitempty"`
	RowsLoaded   int64         `json:"rows_loaded"`
	DurationMs   int64         `json:"duration_ms"`
	ErrorDetail  string        `json:"error_detail,omitempty"`
	FailedChecks []CheckResult `json:"failed_checks,omitempty"`
}

// Transition moves the run to next, enforcing the status graph.
func (r *JobRun) Transition(next JobStatus) error {
	if !r.Status.CanTransition(next) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, r.Status, next)
	}
	r.Status = next
	return nil
}
