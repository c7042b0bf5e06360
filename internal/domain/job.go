package domain

import "time"

// JobStatus is the job state machine: pending -> processing -> completed|failed.
// Terminal states never transition again; only deletion removes them.
type JobStatus string

const (
	JobPending    JobStatus = "pending"
	JobProcessing JobStatus = "processing"
	JobCompleted  JobStatus = "completed"
	JobFailed     JobStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s JobStatus) Terminal() bool {
	return s == JobCompleted || s == JobFailed
}

// JobRequest is the serializable submission payload carried on the job queue.
// File fields are names relative to the configured input directory.
type JobRequest struct {
	JobID        string    `json:"job_id"`
	WeekNum      int       `json:"week_num"`
	PreviousFile string    `json:"previous_file"`
	CurrentFile  string    `json:"current_file"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

// ArtifactSet holds opaque references to the files generated for one job.
// The core stores and serves them; it never interprets their contents.
type ArtifactSet struct {
	Report    string `json:"report,omitempty"`
	Alerts    string `json:"alerts,omitempty"`
	Increases string `json:"increases,omitempty"`
	Decreases string `json:"decreases,omitempty"`
}

// ArtifactKinds lists the download kinds an ArtifactSet can carry.
var ArtifactKinds = []string{"report", "alerts", "increases", "decreases"}

// ByKind returns the reference stored under a download kind.
func (a ArtifactSet) ByKind(kind string) (string, bool) {
	switch kind {
	case "report":
		return a.Report, a.Report != ""
	case "alerts":
		return a.Alerts, a.Alerts != ""
	case "increases":
		return a.Increases, a.Increases != ""
	case "decreases":
		return a.Decreases, a.Decreases != ""
	default:
		return "", false
	}
}

// JobResult is produced exactly once, when a job completes. Record slices
// are owned by the job and must not be mutated by readers.
type JobResult struct {
	AllRecords      []ChangeRecord `json:"all_records"`
	FilteredRecords []ChangeRecord `json:"filtered_records"`
	Summary         Summary        `json:"summary"`
	FilteredSummary Summary        `json:"filtered_summary"`
	Artifacts       ArtifactSet    `json:"artifacts"`
}

// Job is one asynchronous pipeline execution. The owning worker is the sole
// writer; every published copy is immutable and replaced wholesale, so
// readers always see a consistent snapshot. Result is excluded from the
// status wire format and fetched through the result endpoint instead.
type Job struct {
	ID          string     `json:"job_id"`
	WeekNum     int        `json:"week_num"`
	Status      JobStatus  `json:"status"`
	Progress    int        `json:"progress"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	Error       string     `json:"error,omitempty"`
	Result      *JobResult `json:"-"`
}

// Record converts the job into its persisted history row.
func (j *Job) Record() JobRecord {
	rec := JobRecord{
		JobID:       j.ID,
		WeekNum:     j.WeekNum,
		Status:      j.Status,
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
		Error:       j.Error,
	}
	if j.Result != nil {
		rec.Summary = j.Result.Summary
		rec.FilteredSummary = j.Result.FilteredSummary
		rec.FilteredRecordCount = len(j.Result.FilteredRecords)
		rec.Artifacts = j.Result.Artifacts
	}
	return rec
}

// JobRecord is the durable history row: enough to render listings and drive
// resends without loading the full change lists, which are stored separately
// and fetched lazily by job id.
type JobRecord struct {
	JobID               string      `json:"job_id"`
	WeekNum             int         `json:"week_num"`
	Status              JobStatus   `json:"status"`
	CreatedAt           time.Time   `json:"created_at"`
	CompletedAt         *time.Time  `json:"completed_at,omitempty"`
	Summary             Summary     `json:"summary"`
	FilteredSummary     Summary     `json:"filtered_summary"`
	FilteredRecordCount int         `json:"filtered_record_count"`
	Artifacts           ArtifactSet `json:"artifacts"`
	Error               string      `json:"error,omitempty"`
}

// HistoryStats summarizes the whole job history.
type HistoryStats struct {
	Total         int `json:"total"`
	Successful    int `json:"successful"`
	Failed        int `json:"failed"`
	DistinctWeeks int `json:"distinct_weeks"`
}
