package watcher

import (
	"time"

	"github.com/adelyne/pydex/internal/cache"
)

type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
	EventRename
)

func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

type FileEvent struct {
	Path      string
	Type      EventType
	Timestamp time.Time
}

// EventClassifier picks a job priority for a flushed batch: a handful of
// edits means the user is working on those files right now, a flood means a
// branch switch or generated tree that can drain at low priority.
type EventClassifier struct{}

func NewEventClassifier() *EventClassifier {
	return &EventClassifier{}
}

func (c *EventClassifier) ClassifyBatch(events []FileEvent) cache.JobPriority {
	count := len(events)

	if count > 10 {
		return cache.PriorityLow
	}

	if count >= 3 {
		return cache.PriorityNormal
	}

	return cache.PriorityHigh
}
