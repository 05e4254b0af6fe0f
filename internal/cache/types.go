package cache

import "time"

type FileStatus string

const (
	StatusPending   FileStatus = "pending"
	StatusExtracted FileStatus = "extracted"
	StatusFailed    FileStatus = "failed"
	StatusSkipped   FileStatus = "skipped"
)

// CachedFile is one row in the files table.
type CachedFile struct {
	ID           int64
	Path         string
	ContentHash  string
	Encoding     string
	Status       FileStatus
	ErrorMessage string
	ExtractedAt  time.Time
	UpdatedAt    time.Time
}

// CachedObject is one extracted API object, flattened for storage and
// full-text search.
type CachedObject struct {
	ID        int64
	FileID    int64
	Path      string
	Name      string
	Kind      string
	Signature string
	Docstring string
	LineStart int
	LineEnd   int
}

type Stats struct {
	TotalFiles     int64
	ExtractedFiles int64
	FailedFiles    int64
	SkippedFiles   int64
	TotalObjects   int64
	LastExtracted  *time.Time
}

type JobPriority int

const (
	PriorityLow JobPriority = iota
	PriorityNormal
	PriorityHigh
)

func (p JobPriority) String() string {
	switch p {
	case PriorityLow:
		return "low"
	case PriorityNormal:
		return "normal"
	case PriorityHigh:
		return "high"
	default:
		return "unknown"
	}
}

// Job asks the worker to (re)extract one source file.
type Job struct {
	Path     string
	Priority JobPriority
}
