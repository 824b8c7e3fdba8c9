package domain

import "time"

// JobStatus is the lifecycle state of a comparison job.
type JobStatus string

// Job statuses.
const (
	JobQueued     JobStatus = "queued"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether no further updates are expected.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// Job is a background comparison tracked by id.
type Job struct {
	ID        string           `json:"id"`
	Status    JobStatus        `json:"status"`
	Progress  int              `json:"progress"` // 0-100
	Message   string           `json:"message"`
	Result    *CompareResponse `json:"result"`
	Error     string           `json:"error,omitempty"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
}

// JobUpdate carries a progress report. Zero Status, nil Result and empty
// Error leave the stored values unchanged.
type JobUpdate struct {
	Progress int
	Message  string
	Status   JobStatus
	Result   *CompareResponse
	Error    string
}

// Apply mutates j with the update.
func (u JobUpdate) Apply(j *Job, now time.Time) {
	j.Progress = u.Progress
	j.Message = u.Message
	if u.Status != "" {
		j.Status = u.Status
	}
	if u.Result != nil {
		j.Result = u.Result
	}
	if u.Error != "" {
		j.Error = u.Error
	}
	j.UpdatedAt = now
}
