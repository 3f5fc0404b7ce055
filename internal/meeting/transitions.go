package meeting

import "fmt"

// TransitionKind selects confirmation copy and styling for a status change.
type TransitionKind string

const (
	TransitionSchedule   TransitionKind = "schedule"
	TransitionStart      TransitionKind = "start"
	TransitionComplete   TransitionKind = "complete"
	TransitionCancel     TransitionKind = "cancel"
	TransitionReschedule TransitionKind = "reschedule"
	TransitionPause      TransitionKind = "pause"
	TransitionGeneric    TransitionKind = "generic"
)

// Prompt is what a confirmation dialog renders before a transition commits.
type Prompt struct {
	Title        string         `json:"title"`
	Message      string         `json:"message"`
	Consequences []string       `json:"consequences"`
	Kind         TransitionKind `json:"transitionKind"`
}

// IllegalTransitionError reports a requested transition that is not in the
// table. It is a validation failure, rejected before any confirmation UI or
// write.
type IllegalTransitionError struct {
	From Status
	To   Status
}

func (e *IllegalTransitionError) Error() string {
	return fmt.Sprintf("illegal status transition %s -> %s", e.From, e.To)
}

type edge struct {
	from, to Status
}

// legalEdges is the full transition table. Legality is decided here;
// transitionPrompts only supplies the confirmation copy.
var legalEdges = map[edge]struct{}{
	{StatusNotScheduled, StatusScheduled}: {},
	{StatusScheduled, StatusInProgress}:   {},
	{StatusInProgress, StatusCompleted}:   {},
	{StatusScheduled, StatusCancelled}:    {},
	{StatusCancelled, StatusScheduled}:    {},
	{StatusInProgress, StatusScheduled}:   {},
}

var transitionPrompts = map[edge]Prompt{
	{StatusNotScheduled, StatusScheduled}: {
		Title:   "Schedule meeting",
		Message: "The meeting will be placed on the calendar and attendees will see it.",
		Consequences: []string{
			"Attendees will be notified.",
			"The agenda structure becomes locked.",
			"The meeting can no longer be deleted.",
		},
		Kind: TransitionSchedule,
	},
	{StatusScheduled, StatusInProgress}: {
		Title:   "Start meeting",
		Message: "Live note taking opens for all agenda sections.",
		Consequences: []string{
			"Agenda content becomes read-only.",
			"Roster membership is frozen; attendance tracking opens.",
			"Live notes become available.",
		},
		Kind: TransitionStart,
	},
	{StatusInProgress, StatusCompleted}: {
		Title:   "Complete meeting",
		Message: "The meeting wraps up and its record becomes final.",
		Consequences: []string{
			"Live note taking closes.",
			"Notes remain editable retrospectively.",
			"No further status changes are possible.",
		},
		Kind: TransitionComplete,
	},
	{StatusScheduled, StatusCancelled}: {
		Title:   "Cancel meeting",
		Message: "The meeting is taken off the calendar.",
		Consequences: []string{
			"Attendees will be notified of the cancellation.",
			"All editing is disabled until the meeting is rescheduled.",
		},
		Kind: TransitionCancel,
	},
	{StatusCancelled, StatusScheduled}: {
		Title:   "Reschedule meeting",
		Message: "The meeting returns to the calendar with its agenda and roster intact.",
		Consequences: []string{
			"Attendees will be notified of the new schedule.",
			"Agenda content and roster editing reopen.",
		},
		Kind: TransitionReschedule,
	},
	{StatusInProgress, StatusScheduled}: {
		Title:   "Pause meeting",
		Message: "The meeting returns to the scheduled state; notes taken so far are kept.",
		Consequences: []string{
			"Live note taking closes.",
			"Agenda content and roster editing reopen.",
		},
		Kind: TransitionPause,
	},
}

// RequestTransition validates (current, target) against the transition table
// and returns the confirmation prompt for the pair. It does not mutate
// anything; an edge missing from the table is rejected here, before any
// confirmation or commit. A legal edge without tailored copy gets a generic
// prompt rather than a failure.
func RequestTransition(current, target Status) (Prompt, error) {
	if _, ok := legalEdges[edge{current, target}]; !ok {
		return Prompt{}, &IllegalTransitionError{From: current, To: target}
	}
	if prompt, ok := transitionPrompts[edge{current, target}]; ok {
		return prompt, nil
	}
	return genericPrompt(current, target), nil
}

func genericPrompt(current, target Status) Prompt {
	return Prompt{
		Title:   "Change meeting status",
		Message: fmt.Sprintf("The meeting will move from %s to %s.", current, target),
		Consequences: []string{
			"Editing capabilities will change with the new status.",
		},
		Kind: TransitionGeneric,
	}
}

// CanTransition reports whether (current, target) is a legal edge.
func CanTransition(current, target Status) bool {
	_, ok := legalEdges[edge{current, target}]
	return ok
}

// LegalTargets lists the statuses reachable from current, in no particular
// order.
func LegalTargets(current Status) []Status {
	var targets []Status
	for e := range legalEdges {
		if e.from == current {
			targets = append(targets, e.to)
		}
	}
	return targets
}
