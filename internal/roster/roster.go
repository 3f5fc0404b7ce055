// Package roster manages a meeting's attendee list. Every mutation follows
// one protocol: snapshot, apply locally, write remotely, roll back to the
// snapshot if the write fails. The UI therefore sees changes with zero
// latency and never sees a half-applied roster after an error.
package roster

import (
	"context"
	"fmt"
	"sync"

	"teamops/api/internal/meeting"
)

type Role string

const (
	RoleOrganizer Role = "organizer"
	RoleRequired  Role = "required"
	RoleOptional  Role = "optional"
)

type Attendance string

const (
	AttendanceInvited  Attendance = "invited"
	AttendanceAccepted Attendance = "accepted"
	AttendanceDeclined Attendance = "declined"
	AttendancePresent  Attendance = "present"
	AttendanceAbsent   Attendance = "absent"
)

// Attendee is one (meeting, person) pair. PersonID is immutable.
type Attendee struct {
	PersonID   int64      `json:"person_id"`
	Role       Role       `json:"role_in_meeting"`
	Attendance Attendance `json:"attendance_status"`
}

// ValidRole reports whether r is a known meeting role.
func ValidRole(r Role) bool {
	return r == RoleOrganizer || r == RoleRequired || r == RoleOptional
}

// ValidAttendance reports whether a is a known attendance state.
func ValidAttendance(a Attendance) bool {
	switch a {
	case AttendanceInvited, AttendanceAccepted, AttendanceDeclined, AttendancePresent, AttendanceAbsent:
		return true
	}
	return false
}

// DefaultAttendance is the attendance a newly added attendee starts with:
// present when the meeting is already running, invited otherwise.
func DefaultAttendance(status meeting.Status) Attendance {
	if status == meeting.StatusInProgress {
		return AttendancePresent
	}
	return AttendanceInvited
}

// Writer is the remote side of a roster mutation.
type Writer interface {
	InsertAttendee(ctx context.Context, meetingID string, attendee Attendee) error
	DeleteAttendee(ctx context.Context, meetingID string, personID int64) error
	UpdateAttendeeRole(ctx context.Context, meetingID string, personID int64, role Role) error
	UpdateAttendeeAttendance(ctx context.Context, meetingID string, personID int64, attendance Attendance) error
}

// Manager holds the in-memory roster for one meeting.
type Manager struct {
	meetingID string
	writer    Writer

	mu        sync.Mutex
	attendees []Attendee
}

func NewManager(meetingID string, current []Attendee, writer Writer) *Manager {
	return &Manager{
		meetingID: meetingID,
		writer:    writer,
		attendees: append([]Attendee(nil), current...),
	}
}

// Attendees returns a copy of the current roster.
func (m *Manager) Attendees() []Attendee {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Attendee(nil), m.attendees...)
}

// Add inserts a new attendee. Adding a person already on the roster is a
// silent no-op (changed=false, no write). Denied roster permission is also
// a no-op.
func (m *Manager) Add(ctx context.Context, status meeting.Status, personID int64, role Role) (bool, error) {
	if !meeting.Permissions(status).CanEditAttendees {
		return false, nil
	}
	if !ValidRole(role) {
		return false, fmt.Errorf("unknown meeting role %q", role)
	}

	attendee := Attendee{PersonID: personID, Role: role, Attendance: DefaultAttendance(status)}
	return m.mutate(ctx,
		func(current []Attendee) ([]Attendee, bool) {
			for _, a := range current {
				if a.PersonID == personID {
					return current, false
				}
			}
			return append(current, attendee), true
		},
		func(ctx context.Context) error {
			return m.writer.InsertAttendee(ctx, m.meetingID, attendee)
		},
	)
}

// Remove drops an attendee. Removing someone not on the roster is a no-op.
func (m *Manager) Remove(ctx context.Context, status meeting.Status, personID int64) (bool, error) {
	if !meeting.Permissions(status).CanEditAttendees {
		return false, nil
	}
	return m.mutate(ctx,
		func(current []Attendee) ([]Attendee, bool) {
			kept := make([]Attendee, 0, len(current))
			for _, a := range current {
				if a.PersonID != personID {
					kept = append(kept, a)
				}
			}
			return kept, len(kept) != len(current)
		},
		func(ctx context.Context) error {
			return m.writer.DeleteAttendee(ctx, m.meetingID, personID)
		},
	)
}

// UpdateRole changes an attendee's role in the meeting.
func (m *Manager) UpdateRole(ctx context.Context, status meeting.Status, personID int64, role Role) (bool, error) {
	if !meeting.Permissions(status).CanEditAttendees {
		return false, nil
	}
	if !ValidRole(role) {
		return false, fmt.Errorf("unknown meeting role %q", role)
	}
	return m.mutate(ctx,
		func(current []Attendee) ([]Attendee, bool) {
			for i := range current {
				if current[i].PersonID == personID {
					if current[i].Role == role {
						return current, false
					}
					current[i].Role = role
					return current, true
				}
			}
			return current, false
		},
		func(ctx context.Context) error {
			return m.writer.UpdateAttendeeRole(ctx, m.meetingID, personID, role)
		},
	)
}

// UpdateAttendanceStatus changes presence tracking. Unlike the other
// operations it stays available while the meeting is in progress: the
// roster membership freezes, presence tracking does not. Present/absent are
// only legal during the meeting, invited/accepted/declined only before it.
func (m *Manager) UpdateAttendanceStatus(ctx context.Context, status meeting.Status, personID int64, attendance Attendance) (bool, error) {
	inProgress := status == meeting.StatusInProgress
	if !meeting.Permissions(status).CanEditAttendees && !inProgress {
		return false, nil
	}
	if !ValidAttendance(attendance) {
		return false, fmt.Errorf("unknown attendance status %q", attendance)
	}
	live := attendance == AttendancePresent || attendance == AttendanceAbsent
	if live != inProgress {
		return false, fmt.Errorf("attendance %q is not valid while the meeting is %s", attendance, status)
	}
	return m.mutate(ctx,
		func(current []Attendee) ([]Attendee, bool) {
			for i := range current {
				if current[i].PersonID == personID {
					if current[i].Attendance == attendance {
						return current, false
					}
					current[i].Attendance = attendance
					return current, true
				}
			}
			return current, false
		},
		func(ctx context.Context) error {
			return m.writer.UpdateAttendeeAttendance(ctx, m.meetingID, personID, attendance)
		},
	)
}

// mutate is the shared command helper: clone, apply, write, and restore the
// pre-mutation snapshot when the remote write fails.
func (m *Manager) mutate(ctx context.Context, apply func([]Attendee) ([]Attendee, bool), write func(context.Context) error) (bool, error) {
	m.mu.Lock()
	snapshot := append([]Attendee(nil), m.attendees...)
	next, changed := apply(append([]Attendee(nil), m.attendees...))
	if !changed {
		m.mu.Unlock()
		return false, nil
	}
	m.attendees = next
	m.mu.Unlock()

	if err := write(ctx); err != nil {
		m.mu.Lock()
		m.attendees = snapshot
		m.mu.Unlock()
		return false, err
	}
	return true, nil
}
