// Package notes holds the in-memory authoritative copy of a meeting's
// structured notes. Every mutation is an idempotent upsert keyed by prompt
// text, so repeated edits to the same question never produce duplicates.
package notes

import (
	"encoding/json"
	"fmt"
	"time"

	"teamops/api/internal/util"
)

// QuestionResponse is one answered question prompt inside a section.
type QuestionResponse struct {
	QuestionText string    `json:"question_text"`
	QuestionHash string    `json:"question_hash"`
	Response     string    `json:"response"`
	Timestamp    time.Time `json:"response_timestamp"`
}

// TalkingPointNote is the notes captured against one talking-point prompt.
type TalkingPointNote struct {
	PointText string    `json:"point_text"`
	PointHash string    `json:"point_hash"`
	Notes     string    `json:"notes"`
	Timestamp time.Time `json:"notes_timestamp"`
}

// GeneralNote is a freeform annotation, individually removable by ID.
type GeneralNote struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Content   string    `json:"content"`
	Type      string    `json:"type"`
}

// SectionNotes holds everything captured for one agenda section.
type SectionNotes struct {
	Questions     []QuestionResponse `json:"questions,omitempty"`
	TalkingPoints []TalkingPointNote `json:"talking_points,omitempty"`
	Notes         []GeneralNote      `json:"notes,omitempty"`
}

// Document is a sparse list of section notes, index-aligned with the agenda
// template's sections. A nil entry means nothing was captured for that
// section yet; substructures materialize lazily on first write.
type Document struct {
	Sections []*SectionNotes `json:"sections"`

	now func() time.Time
}

// NewDocument returns an empty notes document.
func NewDocument() *Document {
	return &Document{now: time.Now}
}

// Parse reconstructs a document from its serialized form.
func Parse(raw json.RawMessage) (*Document, error) {
	doc := NewDocument()
	if len(raw) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("decode structured notes: %w", err)
	}
	return doc, nil
}

// JSON serializes the document. The output parses back into a value-equal
// document.
func (d *Document) JSON() (json.RawMessage, error) {
	payload, err := json.Marshal(d)
	if err != nil {
		return nil, fmt.Errorf("encode structured notes: %w", err)
	}
	return payload, nil
}

// UpsertQuestionResponse records a response for the question identified by
// exact prompt text within the given section. An existing entry is updated
// in place; a new entry gets a freshly generated hash.
func (d *Document) UpsertQuestionResponse(sectionIndex int, questionText, response string) {
	section := d.section(sectionIndex)
	ts := d.clock()
	for i := range section.Questions {
		if section.Questions[i].QuestionText == questionText {
			section.Questions[i].Response = response
			section.Questions[i].Timestamp = ts
			return
		}
	}
	section.Questions = append(section.Questions, QuestionResponse{
		QuestionText: questionText,
		QuestionHash: fmt.Sprintf("q%d_%d", sectionIndex, ts.UnixMilli()),
		Response:     response,
		Timestamp:    ts,
	})
}

// UpsertTalkingPointNotes records notes for the talking point identified by
// exact prompt text within the given section.
func (d *Document) UpsertTalkingPointNotes(sectionIndex int, pointText, text string) {
	section := d.section(sectionIndex)
	ts := d.clock()
	for i := range section.TalkingPoints {
		if section.TalkingPoints[i].PointText == pointText {
			section.TalkingPoints[i].Notes = text
			section.TalkingPoints[i].Timestamp = ts
			return
		}
	}
	section.TalkingPoints = append(section.TalkingPoints, TalkingPointNote{
		PointText: pointText,
		PointHash: fmt.Sprintf("tp%d_%d", sectionIndex, ts.UnixMilli()),
		Notes:     text,
		Timestamp: ts,
	})
}

// AddGeneralNote appends a freeform note to the section and returns its ID.
// General notes are never deduplicated.
func (d *Document) AddGeneralNote(sectionIndex int, content string) GeneralNote {
	section := d.section(sectionIndex)
	note := GeneralNote{
		ID:        util.NewID("note"),
		Timestamp: d.clock(),
		Content:   content,
		Type:      "general_note",
	}
	section.Notes = append(section.Notes, note)
	return note
}

// RemoveGeneralNote drops the note with the given ID from the section.
// Removing an absent note is a no-op.
func (d *Document) RemoveGeneralNote(sectionIndex int, noteID string) {
	if sectionIndex < 0 || sectionIndex >= len(d.Sections) || d.Sections[sectionIndex] == nil {
		return
	}
	section := d.Sections[sectionIndex]
	kept := section.Notes[:0]
	for _, note := range section.Notes {
		if note.ID != noteID {
			kept = append(kept, note)
		}
	}
	section.Notes = kept
}

// QuestionResponse returns the recorded response for the prompt, or ""
// when nothing was captured. Callers must not distinguish missing from
// empty.
func (d *Document) QuestionResponse(sectionIndex int, questionText string) string {
	if sectionIndex < 0 || sectionIndex >= len(d.Sections) || d.Sections[sectionIndex] == nil {
		return ""
	}
	for _, q := range d.Sections[sectionIndex].Questions {
		if q.QuestionText == questionText {
			return q.Response
		}
	}
	return ""
}

// TalkingPointNotes returns the recorded notes for the prompt, or "".
func (d *Document) TalkingPointNotes(sectionIndex int, pointText string) string {
	if sectionIndex < 0 || sectionIndex >= len(d.Sections) || d.Sections[sectionIndex] == nil {
		return ""
	}
	for _, tp := range d.Sections[sectionIndex].TalkingPoints {
		if tp.PointText == pointText {
			return tp.Notes
		}
	}
	return ""
}

// GeneralNotes returns the freeform notes captured for a section, oldest
// first. The returned slice is shared with the document; callers must not
// mutate it.
func (d *Document) GeneralNotes(sectionIndex int) []GeneralNote {
	if sectionIndex < 0 || sectionIndex >= len(d.Sections) || d.Sections[sectionIndex] == nil {
		return nil
	}
	return d.Sections[sectionIndex].Notes
}

// Empty reports whether nothing has been captured yet.
func (d *Document) Empty() bool {
	for _, section := range d.Sections {
		if section == nil {
			continue
		}
		if len(section.Questions) > 0 || len(section.TalkingPoints) > 0 || len(section.Notes) > 0 {
			return false
		}
	}
	return true
}

// section lazily materializes the slot for sectionIndex so absence reads as
// "no response yet" rather than an error.
func (d *Document) section(sectionIndex int) *SectionNotes {
	if sectionIndex < 0 {
		sectionIndex = 0
	}
	for len(d.Sections) <= sectionIndex {
		d.Sections = append(d.Sections, nil)
	}
	if d.Sections[sectionIndex] == nil {
		d.Sections[sectionIndex] = &SectionNotes{}
	}
	return d.Sections[sectionIndex]
}

func (d *Document) clock() time.Time {
	if d.now != nil {
		return d.now()
	}
	return time.Now()
}
