package agenda

import (
	"encoding/json"
	"testing"
)

func TestParseComputesSectionKinds(t *testing.T) {
	raw := json.RawMessage(`{
		"sections": [
			{"name": "Check-in", "minutes": 5},
			{"name": "Status", "minutes": 15, "questions": ["What shipped this week?"]},
			{"name": "Team health", "minutes": 10, "talkingPoints": ["Team morale is high"]},
			{"name": "Review", "minutes": 20,
				"questions": ["Any blockers?"],
				"talkingPoints": ["Deadline risk"]}
		]
	}`)

	tpl, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	want := []SectionKind{KindPlain, KindQuestions, KindTalkingPoints, KindBoth}
	if len(tpl.Sections) != len(want) {
		t.Fatalf("expected %d sections, got %d", len(want), len(tpl.Sections))
	}
	for i, kind := range want {
		if tpl.Sections[i].Kind != kind {
			t.Errorf("section %d kind = %s, want %s", i, tpl.Sections[i].Kind, kind)
		}
	}
}

func TestParseEmptyDocument(t *testing.T) {
	tpl, err := Parse(nil)
	if err != nil {
		t.Fatalf("Parse(nil) failed: %v", err)
	}
	if len(tpl.Sections) != 0 {
		t.Fatalf("expected empty template, got %d sections", len(tpl.Sections))
	}
}

func TestParseRejectsMalformedDocuments(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `{sections:`},
		{"sections not array", `{"sections": "none"}`},
		{"section without name", `{"sections": [{"minutes": 5}]}`},
		{"empty section name", `{"sections": [{"name": ""}]}`},
		{"negative minutes", `{"sections": [{"name": "a", "minutes": -1}]}`},
		{"empty question prompt", `{"sections": [{"name": "a", "questions": [""]}]}`},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := Parse(json.RawMessage(tc.raw)); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestParseRejectsDuplicatePrompts(t *testing.T) {
	raw := json.RawMessage(`{"sections": [
		{"name": "Status", "questions": ["Any blockers?", "Any blockers?"]}
	]}`)
	_, err := Parse(raw)
	if err == nil {
		t.Fatal("duplicate prompts must be rejected")
	}
	ve, ok := err.(*ValidationError)
	if !ok {
		t.Fatalf("error type %T", err)
	}
	if ve.Path != "sections[0].questions" {
		t.Errorf("path = %q", ve.Path)
	}
}

func TestTemplateRoundTrip(t *testing.T) {
	raw := json.RawMessage(`{"sections": [{"name": "Status", "minutes": 15, "questions": ["Any blockers?"]}]}`)
	tpl, err := Parse(raw)
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	again, err := Parse(tpl.MustJSON())
	if err != nil {
		t.Fatalf("reparse failed: %v", err)
	}
	if len(again.Sections) != 1 || again.Sections[0].Name != "Status" ||
		again.Sections[0].Questions[0] != "Any blockers?" {
		t.Fatalf("round trip lost data: %+v", again)
	}
}
