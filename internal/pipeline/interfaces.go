package pipeline

import "context"

// ObjectStore abstracts the bucket operations the pipeline needs. The
// production implementation talks to S3; tests swap in an in-memory store.
type ObjectStore interface {
	List(ctx context.Context, bucket, prefix string) ([]string, error)
	Exists(ctx context.Context, bucket, key string) (bool, error)
	Get(ctx context.Context, bucket, key string) ([]byte, error)
	Put(ctx context.Context, bucket, key string, body []byte) error
}

// JobState is the coarse status of a remote transcription job.
type JobState string

const (
	JobStateRunning   JobState = "running"
	JobStateCompleted JobState = "completed"
	JobStateFailed    JobState = "failed"
)

// JobStatus is one poll observation of a remote job.
type JobStatus struct {
	State         JobState
	FailureReason string
}

// SubmitRequest asks the transcription provider to start one job.
type SubmitRequest struct {
	Bucket       string
	Key          string
	LanguageHint string
}

// SubmitResult identifies a started job and where its transcript will land.
type SubmitResult struct {
	JobName       string
	TranscriptKey string
}

// Transcriber starts and observes asynchronous transcription jobs.
type Transcriber interface {
	Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error)
	Poll(ctx context.Context, jobName string) (JobStatus, error)
}

// Redactor replaces PII spans in text with redaction markers.
type Redactor interface {
	Redact(ctx context.Context, text, languageCode string) (string, error)
}
