// Package meeting holds the meeting lifecycle: the status enum, the
// permission set derived from it, and the legal status transitions.
package meeting

// Status is a meeting's lifecycle state. Every permission and workflow
// decision derives from it.
type Status string

const (
	StatusNotScheduled Status = "not_scheduled"
	StatusScheduled    Status = "scheduled"
	StatusInProgress   Status = "in_progress"
	StatusCompleted    Status = "completed"
	StatusCancelled    Status = "cancelled"

	// StatusUnknown is produced only by NormalizeStatus for values that do
	// not match the closed set. It never originates inside this package.
	StatusUnknown Status = "unknown"
)

// NormalizeStatus folds a raw string from storage or a request into the
// closed status set. Unrecognized values become StatusUnknown rather than
// passing through, so downstream code matches exhaustively.
func NormalizeStatus(raw string) Status {
	switch Status(raw) {
	case StatusNotScheduled, StatusScheduled, StatusInProgress, StatusCompleted, StatusCancelled:
		return Status(raw)
	default:
		return StatusUnknown
	}
}

// Known reports whether s is one of the five lifecycle states.
func Known(s Status) bool {
	return s != StatusUnknown && NormalizeStatus(string(s)) == s
}
