package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
)

type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

const meetingColumns = `
	id, name, type_id, phase_id, initiative_id, scheduled_at,
	duration_minutes, location, status, objectives, key_messages,
	template, structured_notes, unstructured_notes, free_form_insights,
	meeting_summary, overall_assessment, updated_by_name, created_at, updated_at
`

func scanMeeting(row interface{ Scan(...any) error }) (Meeting, error) {
	var m Meeting
	var template, structured []byte
	err := row.Scan(
		&m.ID, &m.Name, &m.TypeID, &m.PhaseID, &m.InitiativeID, &m.ScheduledAt,
		&m.DurationMinutes, &m.Location, &m.Status, &m.Objectives, &m.KeyMessages,
		&template, &structured, &m.UnstructuredNotes, &m.FreeFormInsights,
		&m.MeetingSummary, &m.OverallAssessment, &m.UpdatedBy, &m.CreatedAt, &m.UpdatedAt,
	)
	if err != nil {
		return Meeting{}, err
	}
	m.Template = json.RawMessage(template)
	m.StructuredNotes = json.RawMessage(structured)
	return m, nil
}

func (s *PostgresStore) InsertMeeting(ctx context.Context, m Meeting) error {
	template := m.Template
	if len(template) == 0 {
		template = json.RawMessage(`{"sections":[]}`)
	}
	structured := m.StructuredNotes
	if len(structured) == 0 {
		structured = json.RawMessage(`{"sections":[]}`)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meetings (
			id, name, type_id, phase_id, initiative_id, scheduled_at,
			duration_minutes, location, status, objectives, key_messages,
			template, structured_notes, updated_by_name
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO NOTHING
	`, m.ID, m.Name, m.TypeID, m.PhaseID, m.InitiativeID, m.ScheduledAt,
		m.DurationMinutes, m.Location, m.Status, m.Objectives, m.KeyMessages,
		[]byte(template), []byte(structured), m.UpdatedBy)
	if err != nil {
		return fmt.Errorf("insert meeting: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMeeting(ctx context.Context, meetingID string) (Meeting, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+meetingColumns+` FROM meetings WHERE id=$1`, meetingID)
	return scanMeeting(row)
}

func (s *PostgresStore) ListMeetings(ctx context.Context) ([]Meeting, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+meetingColumns+`
		FROM meetings
		ORDER BY scheduled_at DESC NULLS LAST, created_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("list meetings: %w", err)
	}
	defer rows.Close()

	items := make([]Meeting, 0)
	for rows.Next() {
		m, err := scanMeeting(rows)
		if err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		items = append(items, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meetings: %w", err)
	}
	return items, nil
}

// DeleteMeeting removes the meeting row; attendees go with it via the FK
// cascade. The not_scheduled-only rule is enforced by the service before
// this is called.
func (s *PostgresStore) DeleteMeeting(ctx context.Context, meetingID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM meetings WHERE id=$1`, meetingID)
	if err != nil {
		return fmt.Errorf("delete meeting: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpdateMeetingStatus(ctx context.Context, meetingID, status, updatedBy string) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE meetings
		SET status=$2, updated_by_name=$3, updated_at=NOW()
		WHERE id=$1
	`, meetingID, status, updatedBy)
	if err != nil {
		return fmt.Errorf("update meeting status: %w", err)
	}
	if affected, err := result.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func (s *PostgresStore) UpdateMeetingNotes(ctx context.Context, meetingID string, update NotesUpdate) error {
	structured := update.StructuredNotes
	if len(structured) == 0 {
		structured = json.RawMessage(`{"sections":[]}`)
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE meetings
		SET structured_notes=$2, unstructured_notes=$3, free_form_insights=$4,
			meeting_summary=$5, overall_assessment=$6, updated_by_name=$7, updated_at=NOW()
		WHERE id=$1
	`, meetingID, []byte(structured), update.UnstructuredNotes, update.FreeFormInsights,
		update.MeetingSummary, update.OverallAssessment, update.UpdatedBy)
	if err != nil {
		return fmt.Errorf("update meeting notes: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateMeetingTemplate(ctx context.Context, meetingID string, template json.RawMessage, updatedBy string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE meetings
		SET template=$2, updated_by_name=$3, updated_at=NOW()
		WHERE id=$1
	`, meetingID, []byte(template), updatedBy)
	if err != nil {
		return fmt.Errorf("update meeting template: %w", err)
	}
	return nil
}

// UpdateMeetingFields applies a partial-field edit; only non-nil fields
// touch their columns.
func (s *PostgresStore) UpdateMeetingFields(ctx context.Context, meetingID string, update MeetingFieldUpdate) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE meetings
		SET name=COALESCE($2, name),
			scheduled_at=COALESCE($3, scheduled_at),
			duration_minutes=COALESCE($4, duration_minutes),
			location=COALESCE($5, location),
			objectives=COALESCE($6, objectives),
			key_messages=COALESCE($7, key_messages),
			updated_by_name=$8,
			updated_at=NOW()
		WHERE id=$1
	`, meetingID, update.Name, update.ScheduledAt, update.Duration,
		update.Location, update.Objectives, update.KeyMessages, update.UpdatedBy)
	if err != nil {
		return fmt.Errorf("update meeting fields: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListAttendees(ctx context.Context, meetingID string) ([]Attendee, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT ma.meeting_id, ma.person_id, ma.role_in_meeting, ma.attendance_status,
			p.name, p.email
		FROM meeting_attendees ma
		JOIN people p ON p.id = ma.person_id
		WHERE ma.meeting_id=$1
		ORDER BY ma.person_id
	`, meetingID)
	if err != nil {
		return nil, fmt.Errorf("list attendees: %w", err)
	}
	defer rows.Close()

	items := make([]Attendee, 0)
	for rows.Next() {
		var a Attendee
		if err := rows.Scan(&a.MeetingID, &a.PersonID, &a.RoleInMeeting, &a.AttendanceStatus, &a.PersonName, &a.PersonEmail); err != nil {
			return nil, fmt.Errorf("scan attendee: %w", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate attendees: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) InsertAttendee(ctx context.Context, a Attendee) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO meeting_attendees (meeting_id, person_id, role_in_meeting, attendance_status)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (meeting_id, person_id) DO NOTHING
	`, a.MeetingID, a.PersonID, a.RoleInMeeting, a.AttendanceStatus)
	if err != nil {
		return fmt.Errorf("insert attendee: %w", err)
	}
	return nil
}

func (s *PostgresStore) DeleteAttendee(ctx context.Context, meetingID string, personID int64) error {
	_, err := s.db.ExecContext(ctx, `
		DELETE FROM meeting_attendees WHERE meeting_id=$1 AND person_id=$2
	`, meetingID, personID)
	if err != nil {
		return fmt.Errorf("delete attendee: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateAttendeeRole(ctx context.Context, meetingID string, personID int64, role string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE meeting_attendees SET role_in_meeting=$3 WHERE meeting_id=$1 AND person_id=$2
	`, meetingID, personID, role)
	if err != nil {
		return fmt.Errorf("update attendee role: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateAttendeeAttendance(ctx context.Context, meetingID string, personID int64, attendance string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE meeting_attendees SET attendance_status=$3 WHERE meeting_id=$1 AND person_id=$2
	`, meetingID, personID, attendance)
	if err != nil {
		return fmt.Errorf("update attendee attendance: %w", err)
	}
	return nil
}

func (s *PostgresStore) GetMeetingType(ctx context.Context, typeID string) (MeetingType, error) {
	var t MeetingType
	var template []byte
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, default_template FROM meeting_types WHERE id=$1
	`, typeID).Scan(&t.ID, &t.Name, &template)
	if err != nil {
		return MeetingType{}, err
	}
	t.DefaultTemplate = json.RawMessage(template)
	return t, nil
}

func (s *PostgresStore) ListMeetingTypes(ctx context.Context) ([]MeetingType, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, name, default_template FROM meeting_types ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list meeting types: %w", err)
	}
	defer rows.Close()

	items := make([]MeetingType, 0)
	for rows.Next() {
		var t MeetingType
		var template []byte
		if err := rows.Scan(&t.ID, &t.Name, &template); err != nil {
			return nil, fmt.Errorf("scan meeting type: %w", err)
		}
		t.DefaultTemplate = json.RawMessage(template)
		items = append(items, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meeting types: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetPhase(ctx context.Context, phaseID string) (Phase, error) {
	var p Phase
	err := s.db.QueryRowContext(ctx, `SELECT id, name, sort_order FROM phases WHERE id=$1`, phaseID).Scan(&p.ID, &p.Name, &p.SortOrder)
	if err != nil {
		return Phase{}, err
	}
	return p, nil
}

func (s *PostgresStore) GetInitiative(ctx context.Context, initiativeID string) (Initiative, error) {
	var item Initiative
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, description FROM initiatives WHERE id=$1
	`, initiativeID).Scan(&item.ID, &item.Name, &item.Description)
	if err != nil {
		return Initiative{}, err
	}
	return item, nil
}

func (s *PostgresStore) GetPerson(ctx context.Context, personID int64) (Person, error) {
	var p Person
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email FROM people WHERE id=$1`, personID).Scan(&p.ID, &p.Name, &p.Email)
	if err != nil {
		return Person{}, err
	}
	return p, nil
}

// EnsurePersonByName looks a person up by display name, creating them with
// a derived local email when absent.
func (s *PostgresStore) EnsurePersonByName(ctx context.Context, name string) (Person, error) {
	var p Person
	err := s.db.QueryRowContext(ctx, `SELECT id, name, email FROM people WHERE name=$1`, name).Scan(&p.ID, &p.Name, &p.Email)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Person{}, fmt.Errorf("lookup person: %w", err)
	}

	insert := `
		INSERT INTO people (name, email)
		VALUES ($1, CONCAT(LOWER(REPLACE($1, ' ', '.')), '@local.teamops.dev'))
		RETURNING id, name, email
	`
	if err := s.db.QueryRowContext(ctx, insert, name).Scan(&p.ID, &p.Name, &p.Email); err != nil {
		return Person{}, fmt.Errorf("insert person: %w", err)
	}
	return p, nil
}
