package constants

// JobStatus is the canonical status for rows in lab_reports.
type JobStatus string

// Stable values (store these exact strings in DB).
const (
	JobStatusRunning JobStatus = "RUNNING" // in progress
	JobStatusOCROK   JobStatus = "OCR_OK"  // stage 1 completed (text extracted)
	JobStatusParsed  JobStatus = "PARSED"  // stage 2 completed (records extracted)
	JobStatusFailed  JobStatus = "FAILED"  // terminal failure
)

// IsTerminal reports whether no further stage will run for the status.
func (s JobStatus) IsTerminal() bool {
	return s == JobStatusParsed || s == JobStatusFailed
}
