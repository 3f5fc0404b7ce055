package export

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
)

type fakeStore struct {
	meeting MeetingInfo
	err     error
}

func (f *fakeStore) GetMeeting(ctx context.Context, id string) (MeetingInfo, error) {
	if f.err != nil {
		return MeetingInfo{}, f.err
	}
	return f.meeting, nil
}

func sampleMeeting() MeetingInfo {
	return MeetingInfo{
		ID:     "mtg_abc123",
		Name:   "Q3 Planning Sync",
		Status: "completed",
		Template: json.RawMessage(`{"sections":[
			{"name":"Check-in","minutes":10,"questions":["What changed since last week?"]},
			{"name":"Roadmap","minutes":30,"talkingPoints":["Hiring plan"]}
		]}`),
		StructuredNotes: json.RawMessage(`{"sections":[
			{"questions":[{"question_text":"What changed since last week?","question_hash":"q0_1","response":"Shipped the importer","response_timestamp":"2026-08-01T10:00:00Z"}]},
			{"talking_points":[{"point_text":"Hiring plan","point_hash":"tp1_1","notes":"Two backend openings","notes_timestamp":"2026-08-01T10:05:00Z"}],
			 "notes":[{"id":"note_1","timestamp":"2026-08-01T10:06:00Z","content":"Revisit budget in October","type":"general_note"}]}
		]}`),
		UnstructuredNotes: "parking lot: renew domain",
		MeetingSummary:    "Roadmap agreed.",
		OverallAssessment: "productive",
	}
}

func newTestService(info MeetingInfo) *Service {
	svc := NewService(&fakeStore{meeting: info})
	svc.now = func() time.Time { return time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC) }
	return svc
}

func TestExportJSON(t *testing.T) {
	svc := newTestService(sampleMeeting())

	result, err := svc.Export(context.Background(), Request{MeetingID: "mtg_abc123", Format: FormatJSON})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if result.MimeType != "application/json" {
		t.Errorf("mime type = %q", result.MimeType)
	}
	if result.Filename != "Q3-Planning-Sync.json" {
		t.Errorf("filename = %q", result.Filename)
	}

	var snapshot map[string]any
	if err := json.Unmarshal(result.Data, &snapshot); err != nil {
		t.Fatalf("decode export: %v", err)
	}
	for _, key := range []string{
		"meeting_name", "meeting_id", "export_timestamp", "structured_notes",
		"unstructured_notes", "free_form_insights", "meeting_summary", "overall_assessment",
	} {
		if _, ok := snapshot[key]; !ok {
			t.Errorf("snapshot missing key %q", key)
		}
	}
	if snapshot["meeting_name"] != "Q3 Planning Sync" {
		t.Errorf("meeting_name = %v", snapshot["meeting_name"])
	}
	if snapshot["export_timestamp"] != "2026-08-15T12:00:00Z" {
		t.Errorf("export_timestamp = %v", snapshot["export_timestamp"])
	}
}

func TestExportDefaultsToJSON(t *testing.T) {
	svc := newTestService(sampleMeeting())

	result, err := svc.Export(context.Background(), Request{MeetingID: "mtg_abc123"})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if result.MimeType != "application/json" {
		t.Errorf("mime type = %q", result.MimeType)
	}
}

func TestExportText(t *testing.T) {
	svc := newTestService(sampleMeeting())

	result, err := svc.Export(context.Background(), Request{MeetingID: "mtg_abc123", Format: FormatText})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	text := string(result.Data)

	for _, want := range []string{
		"Q3 Planning Sync",
		"== Check-in ==",
		"Q: What changed since last week?",
		"A: Shipped the importer",
		"- Hiring plan",
		"Two backend openings",
		"* Revisit budget in October",
		"parking lot: renew domain",
		"Roadmap agreed.",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("text export missing %q\n---\n%s", want, text)
		}
	}
	if result.MimeType != "text/plain; charset=utf-8" {
		t.Errorf("mime type = %q", result.MimeType)
	}
}

func TestExportUnansweredPromptsRenderBlank(t *testing.T) {
	info := sampleMeeting()
	info.StructuredNotes = json.RawMessage(`{"sections":[]}`)
	svc := newTestService(info)

	result, err := svc.Export(context.Background(), Request{MeetingID: "mtg_abc123", Format: FormatText})
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if !strings.Contains(string(result.Data), "Q: What changed since last week?") {
		t.Error("planned question should still appear without a response")
	}
}

func TestExportUnsupportedFormat(t *testing.T) {
	svc := newTestService(sampleMeeting())

	_, err := svc.Export(context.Background(), Request{MeetingID: "mtg_abc123", Format: "docx"})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestExportStoreError(t *testing.T) {
	svc := NewService(&fakeStore{err: errors.New("boom")})

	_, err := svc.Export(context.Background(), Request{MeetingID: "mtg_missing", Format: FormatJSON})
	if err == nil {
		t.Fatal("expected error")
	}
}

func TestRenderMeetingHTML(t *testing.T) {
	data, err := buildTemplateData(sampleMeeting(), time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC))
	if err != nil {
		t.Fatalf("build template data: %v", err)
	}
	html, err := RenderMeetingHTML(data)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	for _, want := range []string{"Q3 Planning Sync", "Check-in", "Shipped the importer", "Overall Assessment"} {
		if !strings.Contains(html, want) {
			t.Errorf("html missing %q", want)
		}
	}
}

func TestSanitizeFilename(t *testing.T) {
	cases := map[string]string{
		"Q3 Planning Sync":    "Q3-Planning-Sync",
		"weird/..\\name!":     "weirdname",
		"":                    "meeting",
		strings.Repeat("a", 60): strings.Repeat("a", 50),
	}
	for input, want := range cases {
		if got := sanitizeFilename(input); got != want {
			t.Errorf("sanitizeFilename(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestPercentEncodeForDataURL(t *testing.T) {
	if got := percentEncodeForDataURL("a b"); got != "a%20b" {
		t.Errorf("space encoding: got %q", got)
	}
	if got := percentEncodeForDataURL("<p>"); got != "%3Cp%3E" {
		t.Errorf("angle brackets: got %q", got)
	}
	if got := percentEncodeForDataURL("abc-_.~"); got != "abc-_.~" {
		t.Errorf("unreserved chars should pass through: got %q", got)
	}
	// Multi-byte runes must encode their UTF-8 bytes, one escape per byte.
	if got := percentEncodeForDataURL("é"); got != "%C3%A9" {
		t.Errorf("two-byte rune: got %q, want %%C3%%A9", got)
	}
	if got := percentEncodeForDataURL("名"); got != "%E5%90%8D" {
		t.Errorf("three-byte rune: got %q, want %%E5%%90%%8D", got)
	}
	if got := percentEncodeForDataURL("Café sync"); got != "Caf%C3%A9%20sync" {
		t.Errorf("mixed ascii and accents: got %q", got)
	}
}
