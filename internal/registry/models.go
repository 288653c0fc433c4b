package registry

import "time"

// Status represents the lifecycle of a registry item.
type Status string

const (
	StatusPending     Status = "pending"
	StatusSubmitted   Status = "submitted"
	StatusTranscribed Status = "transcribed"
	StatusRedacting   Status = "redacting"
	StatusCompleted   Status = "completed"
	StatusFailed      Status = "failed"
)

// StopReason is the error message set when items are failed due to run cancellation.
const StopReason = "Run stopped"

var allStatuses = []Status{
	StatusPending,
	StatusSubmitted,
	StatusTranscribed,
	StatusRedacting,
	StatusCompleted,
	StatusFailed,
}

// terminalStatuses never transition again.
var terminalStatuses = map[Status]struct{}{
	StatusCompleted: {},
	StatusFailed:    {},
}

// inFlightStatuses hold a transcription slot or a redaction worker.
var inFlightStatuses = map[Status]struct{}{
	StatusSubmitted: {},
	StatusRedacting: {},
}

var validTransitions = map[Status][]Status{
	StatusPending:     {StatusSubmitted, StatusFailed},
	StatusSubmitted:   {StatusTranscribed, StatusPending, StatusFailed},
	StatusTranscribed: {StatusRedacting, StatusFailed},
	StatusRedacting:   {StatusCompleted, StatusTranscribed, StatusFailed},
}

// ValidTransition reports whether an item may move from one status to another.
// Same-status updates are always allowed so fields can change without a
// lifecycle step.
func ValidTransition(from, to Status) bool {
	if from == to {
		return true
	}
	for _, candidate := range validTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}

// Terminal reports whether the status is a final state.
func (s Status) Terminal() bool {
	_, ok := terminalStatuses[s]
	return ok
}

// InFlight reports whether the status occupies a slot or worker.
func (s Status) InFlight() bool {
	_, ok := inFlightStatuses[s]
	return ok
}

// Item is one audio object moving through the pipeline.
type Item struct {
	ID            int64
	SourceKey     string
	LanguageHint  string
	JobName       string
	TranscriptKey string
	OutputKey     string
	Status        Status
	ErrorMessage  string
	Attempts      int
	CreatedAt     time.Time
	UpdatedAt     time.Time
	SubmittedAt   time.Time
}

// SetFailed marks the item failed with the given reason.
func (i *Item) SetFailed(reason string) {
	i.Status = StatusFailed
	i.ErrorMessage = reason
}

// Clone returns a copy the caller may mutate freely.
func (i *Item) Clone() *Item {
	if i == nil {
		return nil
	}
	copied := *i
	return &copied
}

// Stats aggregates item counts per lifecycle state.
type Stats struct {
	Total     int
	ByStatus  map[Status]int
	Terminal  int
	InFlight  int
	Completed int
	Failed    int
}
