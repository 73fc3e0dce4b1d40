package domain

import "time"

// JobState is the progress of a job through the pipeline.
type JobState string

// Job states. A job advances pending -> synced -> extracted -> converted
// [-> verified] -> done, or moves to failed from any state. Jobs never
// started because the run stopped early are skipped.
const (
	JobPending   JobState = "pending"
	JobSynced    JobState = "synced"
	JobExtracted JobState = "extracted"
	JobConverted JobState = "converted"
	JobVerified  JobState = "verified"
	JobDone      JobState = "done"
	JobFailed    JobState = "failed"
	JobSkipped   JobState = "skipped"
)

// JobOutcome is the result of one job within a run.
type JobOutcome struct {
	Job      Job           `json:"job"`
	State    JobState      `json:"state"`
	Sync     SyncResult    `json:"sync,omitempty"`
	Source   string        `json:"source,omitempty"`   // table file chosen from the archive
	Artifact string        `json:"artifact,omitempty"` // set once converted
	Rows     int64         `json:"rows"`
	Err      error         `json:"-"`
	Duration time.Duration `json:"duration"`
}

// Succeeded reports whether the job reached done.
func (o JobOutcome) Succeeded() bool { return o.State == JobDone }

// ErrorMessage returns the failure message, or "" for non-failed jobs.
func (o JobOutcome) ErrorMessage() string {
	if o.Err == nil {
		return ""
	}
	return o.Err.Error()
}

// RunReport collects every job outcome of one pipeline run, in job-list order.
type RunReport struct {
	RunID      string       `json:"run_id"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Outcomes   []JobOutcome `json:"outcomes"`
}

// Count returns the number of outcomes in the given state.
func (r *RunReport) Count(state JobState) int {
	n := 0
	for _, o := range r.Outcomes {
		if o.State == state {
			n++
		}
	}
	return n
}

// Err returns a *RunError when any job failed, nil otherwise.
func (r *RunReport) Err() error {
	failed := r.Count(JobFailed)
	if failed == 0 {
		return nil
	}
	return &RunError{
		RunID:  r.RunID,
		Failed: failed,
		Total:  len(r.Outcomes),
		Took:   r.FinishedAt.Sub(r.StartedAt),
	}
}
