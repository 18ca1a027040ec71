package constants

// JobStatus is the canonical lifecycle state for a pipeline job.
type JobStatus string

// Stable values (these exact strings appear in logs and exported results).
const (
	JobStatusQueued    JobStatus = "QUEUED"    // accepted, waiting for a worker
	JobStatusRunning   JobStatus = "RUNNING"   // picked up by exactly one worker
	JobStatusSucceeded JobStatus = "SUCCEEDED" // terminal: result available
	JobStatusFailed    JobStatus = "FAILED"    // terminal: structured error available
	JobStatusCancelled JobStatus = "CANCELLED" // terminal: cancelled by caller
)

// IsTerminal reports whether a job in this status will never change again.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusSucceeded, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}
