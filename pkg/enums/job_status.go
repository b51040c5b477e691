package enums

import "fmt"

// JobStatus is the print queue lifecycle state.
//
// pending -> {printing, cancelled} -> {completed, failed}; pending -> failed is
// reachable directly via admin override. Terminal states are never left except
// through the bulk requeue operation.
type JobStatus string

const (
	JobStatusPending   JobStatus = "pending"
	JobStatusPrinting  JobStatus = "printing"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
	JobStatusCancelled JobStatus = "cancelled"
)

var validJobStatuses = []JobStatus{
	JobStatusPending,
	JobStatusPrinting,
	JobStatusCompleted,
	JobStatusFailed,
	JobStatusCancelled,
}

// String returns the literal string for the status.
func (j JobStatus) String() string {
	return string(j)
}

// IsValid reports whether the status is known.
func (j JobStatus) IsValid() bool {
	for _, candidate := range validJobStatuses {
		if candidate == j {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no further transition is allowed from the status.
func (j JobStatus) IsTerminal() bool {
	switch j {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

// ParseJobStatus converts raw input into a JobStatus.
func ParseJobStatus(value string) (JobStatus, error) {
	for _, candidate := range validJobStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid job status %q", value)
}
