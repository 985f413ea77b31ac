package queue

// InspectionJob is one conversation queued for batch quality inspection.
type InspectionJob struct {
	JobID     string
	Content   string
	SessionID string // Optional: overrides the session id derived from Content
	Source    string // Optional: file name or upstream reference, for logs and the DLQ
	TraceID   *string
	Attempt   int
}
