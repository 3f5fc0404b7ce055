package export

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"teamops/api/internal/agenda"
	"teamops/api/internal/notes"
)

// DataStore defines the interface for data access
type DataStore interface {
	GetMeeting(ctx context.Context, id string) (MeetingInfo, error)
}

// MeetingInfo holds the meeting fields an export needs
type MeetingInfo struct {
	ID                string
	Name              string
	Status            string
	Template          json.RawMessage
	StructuredNotes   json.RawMessage
	UnstructuredNotes string
	FreeFormInsights  string
	MeetingSummary    string
	OverallAssessment string
}

// Service provides meeting export functionality
type Service struct {
	store DataStore
	now   func() time.Time
}

// NewService creates a new export service
func NewService(store DataStore) *Service {
	return &Service{store: store, now: time.Now}
}

// Export generates a download in the requested format. Exporting reads the
// meeting as currently persisted and never writes anything back.
func (s *Service) Export(ctx context.Context, req Request) (*Result, error) {
	info, err := s.store.GetMeeting(ctx, req.MeetingID)
	if err != nil {
		return nil, fmt.Errorf("get meeting: %w", err)
	}

	snapshot := Snapshot{
		MeetingName:       info.Name,
		MeetingID:         info.ID,
		ExportTimestamp:   s.now().UTC(),
		StructuredNotes:   info.StructuredNotes,
		UnstructuredNotes: info.UnstructuredNotes,
		FreeFormInsights:  info.FreeFormInsights,
		MeetingSummary:    info.MeetingSummary,
		OverallAssessment: info.OverallAssessment,
	}

	switch req.Format {
	case FormatJSON, "":
		return exportJSON(snapshot)
	case FormatText:
		data, err := buildTemplateData(info, snapshot.ExportTimestamp)
		if err != nil {
			return nil, err
		}
		text, err := RenderMeetingText(data)
		if err != nil {
			return nil, fmt.Errorf("render text: %w", err)
		}
		return &Result{
			Data:     []byte(text),
			Filename: sanitizeFilename(info.Name) + ".txt",
			MimeType: "text/plain; charset=utf-8",
		}, nil
	case FormatPDF:
		data, err := buildTemplateData(info, snapshot.ExportTimestamp)
		if err != nil {
			return nil, err
		}
		html, err := RenderMeetingHTML(data)
		if err != nil {
			return nil, fmt.Errorf("render template: %w", err)
		}
		return exportPDF(html, info.Name)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, req.Format)
	}
}

func exportJSON(snapshot Snapshot) (*Result, error) {
	payload, err := json.MarshalIndent(snapshot, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal snapshot: %w", err)
	}
	return &Result{
		Data:     payload,
		Filename: sanitizeFilename(snapshot.MeetingName) + ".json",
		MimeType: "application/json",
	}, nil
}

// buildTemplateData joins the agenda structure with the notes captured
// against it, so questions render next to their responses.
func buildTemplateData(info MeetingInfo, exportedAt time.Time) (TemplateData, error) {
	data := TemplateData{
		Name:              info.Name,
		MeetingID:         info.ID,
		ExportedAt:        exportedAt,
		Status:            info.Status,
		UnstructuredNotes: info.UnstructuredNotes,
		FreeFormInsights:  info.FreeFormInsights,
		MeetingSummary:    info.MeetingSummary,
		OverallAssessment: info.OverallAssessment,
	}

	tmpl, err := agenda.Parse(info.Template)
	if err != nil {
		return TemplateData{}, fmt.Errorf("parse agenda: %w", err)
	}
	doc, err := notes.Parse(info.StructuredNotes)
	if err != nil {
		return TemplateData{}, fmt.Errorf("parse notes: %w", err)
	}

	for i, section := range tmpl.Sections {
		ts := TemplateSection{Name: section.Name}
		for _, question := range section.Questions {
			ts.Questions = append(ts.Questions, TemplateQuestion{
				Question: question,
				Response: doc.QuestionResponse(i, question),
			})
		}
		for _, point := range section.TalkingPoints {
			ts.Points = append(ts.Points, TemplatePoint{
				Point: point,
				Notes: doc.TalkingPointNotes(i, point),
			})
		}
		for _, note := range doc.GeneralNotes(i) {
			ts.Notes = append(ts.Notes, note.Content)
		}
		data.Sections = append(data.Sections, ts)
	}
	return data, nil
}
