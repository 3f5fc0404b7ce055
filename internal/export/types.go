// Package export renders point-in-time meeting snapshots as JSON, plain
// text, or PDF downloads.
package export

import (
	"encoding/json"
	"errors"
	"time"
)

// Format represents the export output format
type Format string

const (
	FormatJSON Format = "json"
	FormatText Format = "text"
	FormatPDF  Format = "pdf"
)

// Request contains parameters for an export operation
type Request struct {
	MeetingID string
	Format    Format
}

// Snapshot is the exported payload. Field order matches the JSON document a
// client downloads.
type Snapshot struct {
	MeetingName       string          `json:"meeting_name"`
	MeetingID         string          `json:"meeting_id"`
	ExportTimestamp   time.Time       `json:"export_timestamp"`
	StructuredNotes   json.RawMessage `json:"structured_notes"`
	UnstructuredNotes string          `json:"unstructured_notes"`
	FreeFormInsights  string          `json:"free_form_insights"`
	MeetingSummary    string          `json:"meeting_summary"`
	OverallAssessment string          `json:"overall_assessment"`
}

// Result contains the export output
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

var (
	// ErrUnsupportedFormat indicates an unknown export format was requested.
	ErrUnsupportedFormat = errors.New("export format unsupported")
	// ErrPDFDependencyMissing indicates PDF export runtime dependencies are unavailable.
	ErrPDFDependencyMissing = errors.New("export pdf dependency missing")
)
