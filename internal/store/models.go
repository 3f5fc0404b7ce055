package store

import (
	"encoding/json"
	"time"
)

type Meeting struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	TypeID          *string    `json:"typeId,omitempty"`
	PhaseID         *string    `json:"phaseId,omitempty"`
	InitiativeID    *string    `json:"initiativeId,omitempty"`
	ScheduledAt     *time.Time `json:"scheduledAt,omitempty"`
	DurationMinutes int        `json:"durationMinutes"`
	Location        string     `json:"location"`
	Status          string     `json:"status"`
	Objectives      string     `json:"objectives"`
	KeyMessages     string     `json:"keyMessages"`
	// Template is the agenda structure document; StructuredNotes the
	// per-section capture document. Both stored as JSONB.
	Template        json.RawMessage `json:"template,omitempty"`
	StructuredNotes json.RawMessage `json:"structuredNotes,omitempty"`
	// Freeform note fields, flushed together with the structured document.
	UnstructuredNotes string    `json:"unstructuredNotes"`
	FreeFormInsights  string    `json:"freeFormInsights"`
	MeetingSummary    string    `json:"meetingSummary"`
	OverallAssessment string    `json:"overallAssessment"`
	UpdatedBy         string    `json:"updatedBy"`
	CreatedAt         time.Time `json:"createdAt"`
	UpdatedAt         time.Time `json:"updatedAt"`
}

type Attendee struct {
	MeetingID        string `json:"meetingId"`
	PersonID         int64  `json:"personId"`
	RoleInMeeting    string `json:"roleInMeeting"`
	AttendanceStatus string `json:"attendanceStatus"`
	// Joined fields for API responses
	PersonName  string `json:"personName,omitempty"`
	PersonEmail string `json:"personEmail,omitempty"`
}

type MeetingType struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	// DefaultTemplate seeds a new meeting's agenda structure.
	DefaultTemplate json.RawMessage `json:"defaultTemplate,omitempty"`
}

type Phase struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	SortOrder int    `json:"sortOrder"`
}

type Initiative struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type Person struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// NotesUpdate is the full document state written by a flush: the structured
// notes plus the freeform fields that autosave with it.
type NotesUpdate struct {
	StructuredNotes   json.RawMessage
	UnstructuredNotes string
	FreeFormInsights  string
	MeetingSummary    string
	OverallAssessment string
	UpdatedBy         string
}

// MeetingFieldUpdate is a partial-field edit; nil pointers leave the column
// untouched.
type MeetingFieldUpdate struct {
	Name        *string
	ScheduledAt *time.Time
	Duration    *int
	Location    *string
	Objectives  *string
	KeyMessages *string
	UpdatedBy   string
}
