package roster

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"teamops/api/internal/meeting"
)

type fakeWriter struct {
	insertFn     func(context.Context, string, Attendee) error
	deleteFn     func(context.Context, string, int64) error
	roleFn       func(context.Context, string, int64, Role) error
	attendanceFn func(context.Context, string, int64, Attendance) error
	calls        int
}

func (f *fakeWriter) InsertAttendee(ctx context.Context, meetingID string, a Attendee) error {
	f.calls++
	if f.insertFn != nil {
		return f.insertFn(ctx, meetingID, a)
	}
	return nil
}
func (f *fakeWriter) DeleteAttendee(ctx context.Context, meetingID string, personID int64) error {
	f.calls++
	if f.deleteFn != nil {
		return f.deleteFn(ctx, meetingID, personID)
	}
	return nil
}
func (f *fakeWriter) UpdateAttendeeRole(ctx context.Context, meetingID string, personID int64, role Role) error {
	f.calls++
	if f.roleFn != nil {
		return f.roleFn(ctx, meetingID, personID, role)
	}
	return nil
}
func (f *fakeWriter) UpdateAttendeeAttendance(ctx context.Context, meetingID string, personID int64, a Attendance) error {
	f.calls++
	if f.attendanceFn != nil {
		return f.attendanceFn(ctx, meetingID, personID, a)
	}
	return nil
}

func TestAddToEmptyRoster(t *testing.T) {
	w := &fakeWriter{}
	m := NewManager("mtg_1", nil, w)

	changed, err := m.Add(context.Background(), meeting.StatusScheduled, 7, RoleRequired)
	if err != nil || !changed {
		t.Fatalf("Add = (%v, %v)", changed, err)
	}
	want := []Attendee{{PersonID: 7, Role: RoleRequired, Attendance: AttendanceInvited}}
	if got := m.Attendees(); !reflect.DeepEqual(got, want) {
		t.Fatalf("roster = %+v, want %+v", got, want)
	}
}

func TestDefaultAttendanceByStatus(t *testing.T) {
	if got := DefaultAttendance(meeting.StatusScheduled); got != AttendanceInvited {
		t.Fatalf("scheduled default = %s", got)
	}
	if got := DefaultAttendance(meeting.StatusInProgress); got != AttendancePresent {
		t.Fatalf("in-progress default = %s", got)
	}
}

func TestAddDuplicateIsNoop(t *testing.T) {
	w := &fakeWriter{}
	m := NewManager("mtg_1", []Attendee{{PersonID: 7, Role: RoleRequired, Attendance: AttendanceInvited}}, w)

	changed, err := m.Add(context.Background(), meeting.StatusScheduled, 7, RoleOptional)
	if err != nil {
		t.Fatalf("Add failed: %v", err)
	}
	if changed {
		t.Fatal("duplicate add must report no change")
	}
	if w.calls != 0 {
		t.Fatal("duplicate add must not hit the remote store")
	}
	if got := m.Attendees(); len(got) != 1 || got[0].Role != RoleRequired {
		t.Fatalf("roster mutated by duplicate add: %+v", got)
	}
}

func TestAddDeniedByPermissionIsNoop(t *testing.T) {
	w := &fakeWriter{}
	m := NewManager("mtg_1", nil, w)

	for _, status := range []meeting.Status{meeting.StatusInProgress, meeting.StatusCompleted, meeting.StatusCancelled} {
		changed, err := m.Add(context.Background(), status, 7, RoleRequired)
		if err != nil || changed {
			t.Fatalf("Add during %s = (%v, %v), want noop", status, changed, err)
		}
	}
	if w.calls != 0 {
		t.Fatal("denied adds must not write")
	}
}

func TestFailedWriteRestoresSnapshot(t *testing.T) {
	boom := errors.New("store rejected the write")
	w := &fakeWriter{insertFn: func(context.Context, string, Attendee) error { return boom }}
	before := []Attendee{{PersonID: 1, Role: RoleOrganizer, Attendance: AttendanceAccepted}}
	m := NewManager("mtg_1", before, w)

	_, err := m.Add(context.Background(), meeting.StatusScheduled, 7, RoleRequired)
	if !errors.Is(err, boom) {
		t.Fatalf("expected write error, got %v", err)
	}
	if got := m.Attendees(); !reflect.DeepEqual(got, before) {
		t.Fatalf("roster not restored: %+v", got)
	}
}

func TestFailedRoleUpdateRestoresSnapshot(t *testing.T) {
	boom := errors.New("network down")
	w := &fakeWriter{roleFn: func(context.Context, string, int64, Role) error { return boom }}
	before := []Attendee{{PersonID: 1, Role: RoleOptional, Attendance: AttendanceInvited}}
	m := NewManager("mtg_1", before, w)

	_, err := m.UpdateRole(context.Background(), meeting.StatusScheduled, 1, RoleRequired)
	if !errors.Is(err, boom) {
		t.Fatalf("expected write error, got %v", err)
	}
	if got := m.Attendees(); !reflect.DeepEqual(got, before) {
		t.Fatalf("roster not restored: %+v", got)
	}
}

func TestRemove(t *testing.T) {
	w := &fakeWriter{}
	m := NewManager("mtg_1", []Attendee{
		{PersonID: 1, Role: RoleOrganizer, Attendance: AttendanceAccepted},
		{PersonID: 2, Role: RoleOptional, Attendance: AttendanceInvited},
	}, w)

	changed, err := m.Remove(context.Background(), meeting.StatusNotScheduled, 2)
	if err != nil || !changed {
		t.Fatalf("Remove = (%v, %v)", changed, err)
	}
	if got := m.Attendees(); len(got) != 1 || got[0].PersonID != 1 {
		t.Fatalf("roster = %+v", got)
	}

	changed, err = m.Remove(context.Background(), meeting.StatusNotScheduled, 99)
	if err != nil || changed {
		t.Fatalf("removing absent person = (%v, %v), want noop", changed, err)
	}
}

func TestAttendanceTrackingDuringMeeting(t *testing.T) {
	w := &fakeWriter{}
	m := NewManager("mtg_1", []Attendee{{PersonID: 5, Role: RoleRequired, Attendance: AttendanceAccepted}}, w)

	// Roster membership is frozen in-progress, presence tracking is not.
	changed, err := m.UpdateAttendanceStatus(context.Background(), meeting.StatusInProgress, 5, AttendancePresent)
	if err != nil || !changed {
		t.Fatalf("UpdateAttendanceStatus = (%v, %v)", changed, err)
	}
	if got := m.Attendees()[0].Attendance; got != AttendancePresent {
		t.Fatalf("attendance = %s", got)
	}

	// Present/absent are only legal while the meeting runs.
	if _, err := m.UpdateAttendanceStatus(context.Background(), meeting.StatusScheduled, 5, AttendancePresent); err == nil {
		t.Fatal("present before the meeting must be rejected")
	}
	// Pre-meeting states are not legal during the meeting.
	if _, err := m.UpdateAttendanceStatus(context.Background(), meeting.StatusInProgress, 5, AttendanceDeclined); err == nil {
		t.Fatal("declined during the meeting must be rejected")
	}
}

func TestAttendanceDeniedAfterCompletion(t *testing.T) {
	w := &fakeWriter{}
	m := NewManager("mtg_1", []Attendee{{PersonID: 5, Role: RoleRequired, Attendance: AttendancePresent}}, w)

	changed, err := m.UpdateAttendanceStatus(context.Background(), meeting.StatusCompleted, 5, AttendanceAbsent)
	if err != nil || changed {
		t.Fatalf("completed meeting attendance edit = (%v, %v), want noop", changed, err)
	}
	if w.calls != 0 {
		t.Fatal("denied update must not write")
	}
}
