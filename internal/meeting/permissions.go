package meeting

// PermissionSet is derived from a meeting's status and never persisted.
// Callers recompute it on every status read; for equal input the result is
// always equal, so memoizing is safe.
type PermissionSet struct {
	CanEditAgendaStructure bool   `json:"canEditAgendaStructure"`
	CanEditAgendaContent   bool   `json:"canEditAgendaContent"`
	CanEditAttendees       bool   `json:"canEditAttendees"`
	CanTakeNotes           bool   `json:"canTakeNotes"`
	CanEditNotes           bool   `json:"canEditNotes"`
	CanChangeStatus        bool   `json:"canChangeStatus"`
	CanDelete              bool   `json:"canDelete"`
	RestrictionReason      string `json:"restrictionReason,omitempty"`
}

// Permissions maps a status to its fixed capability set. The mapping is
// total: an unknown status disables everything with an explicit reason so
// the caller can always render something.
func Permissions(status Status) PermissionSet {
	switch status {
	case StatusNotScheduled:
		return PermissionSet{
			CanEditAgendaStructure: true,
			CanEditAgendaContent:   true,
			CanEditAttendees:       true,
			CanChangeStatus:        true,
			CanDelete:              true,
		}
	case StatusScheduled:
		return PermissionSet{
			CanEditAgendaContent: true,
			CanEditAttendees:     true,
			CanChangeStatus:      true,
			RestrictionReason:    "Meeting is scheduled: agenda structure is locked and the meeting can no longer be deleted.",
		}
	case StatusInProgress:
		return PermissionSet{
			CanTakeNotes:      true,
			CanEditNotes:      true,
			CanChangeStatus:   true,
			RestrictionReason: "Meeting is in progress: agenda and roster are frozen, attendance tracking stays open.",
		}
	case StatusCompleted:
		return PermissionSet{
			CanEditNotes:      true,
			RestrictionReason: "Meeting is completed: only retrospective note edits are allowed.",
		}
	case StatusCancelled:
		return PermissionSet{
			CanChangeStatus:   true,
			RestrictionReason: "Meeting is cancelled: reschedule it to make further changes.",
		}
	default:
		return PermissionSet{
			RestrictionReason: "Meeting status is unrecognized: all editing is disabled.",
		}
	}
}
