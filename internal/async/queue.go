package async

import (
	"context"
	"time"
)

// Job is one file handed to the batch workers.
type Job struct {
	Path        string
	SubmittedAt time.Time
	TraceID     string
}

type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Shutdown(ctx context.Context)
}

// FileProcessor handles a single queued file.
type FileProcessor interface {
	ProcessFile(ctx context.Context, path string) error
}
