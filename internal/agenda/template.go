// Package agenda models the agenda template document a meeting is built
// from. Templates arrive as JSON and are validated once at load time; after
// that every section carries a definite Kind and no reader needs to
// shape-check again.
package agenda

import (
	"encoding/json"
	"fmt"
	"strings"

	jsonschema "github.com/santhosh-tekuri/jsonschema/v5"
)

// SectionKind tags what kind of prompts a section carries.
type SectionKind string

const (
	KindQuestions     SectionKind = "questions"
	KindTalkingPoints SectionKind = "talking_points"
	KindBoth          SectionKind = "both"
	KindPlain         SectionKind = "plain"
)

// Section is one unit of a meeting's agenda: a purpose, a time allotment,
// and optional question / talking-point prompts. Prompts are plain text and
// identify notes by exact string match.
type Section struct {
	Name          string      `json:"name"`
	Minutes       int         `json:"minutes"`
	Purpose       string      `json:"purpose,omitempty"`
	Questions     []string    `json:"questions,omitempty"`
	TalkingPoints []string    `json:"talkingPoints,omitempty"`
	Kind          SectionKind `json:"kind,omitempty"`
}

// Template is the ordered agenda structure for a meeting.
type Template struct {
	Sections []Section `json:"sections"`
}

const templateSchema = `{
	"$schema": "https://json-schema.org/draft/2020-12/schema",
	"type": "object",
	"required": ["sections"],
	"properties": {
		"sections": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["name"],
				"properties": {
					"name": {"type": "string", "minLength": 1},
					"minutes": {"type": "integer", "minimum": 0},
					"purpose": {"type": "string"},
					"questions": {"type": "array", "items": {"type": "string", "minLength": 1}},
					"talkingPoints": {"type": "array", "items": {"type": "string", "minLength": 1}},
					"kind": {"type": "string"}
				}
			}
		}
	}
}`

var compiledSchema = mustCompileSchema()

func mustCompileSchema() *jsonschema.Schema {
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("agenda-template.json", strings.NewReader(templateSchema)); err != nil {
		panic(fmt.Sprintf("agenda: add schema resource: %v", err))
	}
	schema, err := compiler.Compile("agenda-template.json")
	if err != nil {
		panic(fmt.Sprintf("agenda: compile schema: %v", err))
	}
	return schema
}

// ValidationError reports why a template document was rejected at load.
type ValidationError struct {
	Path    string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Path == "" {
		return "invalid agenda template: " + e.Message
	}
	return fmt.Sprintf("invalid agenda template at %s: %s", e.Path, e.Message)
}

// Parse decodes and validates a template document in one pass. Sections come
// back with their Kind computed; duplicate prompts within a section are
// rejected because notes address prompts by exact text.
func Parse(raw json.RawMessage) (Template, error) {
	if len(raw) == 0 {
		return Template{}, nil
	}

	var doc any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return Template{}, &ValidationError{Message: err.Error()}
	}
	if err := compiledSchema.Validate(doc); err != nil {
		return Template{}, firstSchemaError(err)
	}

	var tpl Template
	if err := json.Unmarshal(raw, &tpl); err != nil {
		return Template{}, &ValidationError{Message: err.Error()}
	}

	for i := range tpl.Sections {
		section := &tpl.Sections[i]
		if text, dup := firstDuplicate(section.Questions); dup {
			return Template{}, &ValidationError{
				Path:    fmt.Sprintf("sections[%d].questions", i),
				Message: fmt.Sprintf("duplicate prompt %q", text),
			}
		}
		if text, dup := firstDuplicate(section.TalkingPoints); dup {
			return Template{}, &ValidationError{
				Path:    fmt.Sprintf("sections[%d].talkingPoints", i),
				Message: fmt.Sprintf("duplicate prompt %q", text),
			}
		}
		section.Kind = kindOf(*section)
	}
	return tpl, nil
}

// MustJSON serializes the template back to its storage form.
func (t Template) MustJSON() json.RawMessage {
	payload, err := json.Marshal(t)
	if err != nil {
		panic(fmt.Sprintf("agenda: marshal template: %v", err))
	}
	return payload
}

func kindOf(s Section) SectionKind {
	switch {
	case len(s.Questions) > 0 && len(s.TalkingPoints) > 0:
		return KindBoth
	case len(s.Questions) > 0:
		return KindQuestions
	case len(s.TalkingPoints) > 0:
		return KindTalkingPoints
	default:
		return KindPlain
	}
}

func firstDuplicate(prompts []string) (string, bool) {
	seen := make(map[string]struct{}, len(prompts))
	for _, text := range prompts {
		if _, ok := seen[text]; ok {
			return text, true
		}
		seen[text] = struct{}{}
	}
	return "", false
}

func firstSchemaError(err error) error {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return &ValidationError{Message: err.Error()}
	}
	leaf := ve
	for len(leaf.Causes) > 0 {
		leaf = leaf.Causes[0]
	}
	return &ValidationError{
		Path:    strings.TrimPrefix(leaf.InstanceLocation, "/"),
		Message: leaf.Message,
	}
}
