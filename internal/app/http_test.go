package app

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"teamops/api/internal/config"
	"teamops/api/internal/loader"
	"teamops/api/internal/store"
)

func newTestServer(t *testing.T, fake *fakeStore) *httptest.Server {
	t.Helper()
	cfg := config.Config{
		FieldFlushDelay:    100 * time.Millisecond,
		DocumentFlushDelay: 5 * time.Second,
	}
	svc := New(cfg, fake, loader.New(fake, loader.NewMemoryCache(), 0), nil, nil, nil)
	server := httptest.NewServer(NewHTTPServer(svc, "*").Handler())
	t.Cleanup(server.Close)
	return server
}

func doJSON(t *testing.T, method, url, body string) (*http.Response, map[string]any) {
	t.Helper()
	var reader *strings.Reader
	if body == "" {
		reader = strings.NewReader("")
	} else {
		reader = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("X-Actor", "dana")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	var payload map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return resp, payload
}

func TestHealthEndpoint(t *testing.T) {
	server := newTestServer(t, &fakeStore{})

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/health", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if payload["ok"] != true {
		t.Fatalf("payload = %v", payload)
	}
	if got := resp.Header.Get("X-Request-ID"); got == "" {
		t.Fatal("missing X-Request-ID header")
	}
}

func TestPreflightHasNoBody(t *testing.T) {
	server := newTestServer(t, &fakeStore{})

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/api/meetings", nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("preflight: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(body) != 0 {
		t.Fatalf("204 response carried a body: %q", body)
	}
	if resp.Header.Get("Access-Control-Allow-Methods") == "" {
		t.Fatal("missing CORS headers on preflight")
	}
}

func TestUnknownRouteReturns404(t *testing.T) {
	server := newTestServer(t, &fakeStore{})

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/nonsense", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if payload["code"] != "NOT_FOUND" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestCreateMeetingEndpoint(t *testing.T) {
	var inserted store.Meeting
	fake := &fakeStore{
		insertMeetingFn: func(_ context.Context, m store.Meeting) error {
			inserted = m
			return nil
		},
	}
	fake.getMeetingFn = func(_ context.Context, id string) (store.Meeting, error) {
		return inserted, nil
	}
	server := newTestServer(t, fake)

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/meetings", `{"name":"Design sync"}`)
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("status = %d, payload = %v", resp.StatusCode, payload)
	}
	if inserted.UpdatedBy != "dana" {
		t.Fatalf("actor = %q, want dana from X-Actor", inserted.UpdatedBy)
	}
	if _, ok := payload["warning"]; ok {
		t.Fatalf("unexpected warning in %v", payload)
	}
}

func TestCreateMeetingValidationStatus(t *testing.T) {
	server := newTestServer(t, &fakeStore{})

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/meetings", `{}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestTransitionPreviewEndpoint(t *testing.T) {
	fake := &fakeStore{
		getMeetingFn: func(_ context.Context, id string) (store.Meeting, error) {
			return sampleStoredMeeting("scheduled"), nil
		},
	}
	server := newTestServer(t, fake)

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/meetings/mtg_1/transition/preview", `{"target":"cancelled"}`)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, payload = %v", resp.StatusCode, payload)
	}
	prompt, ok := payload["prompt"].(map[string]any)
	if !ok {
		t.Fatalf("payload = %v", payload)
	}
	if prompt["transitionKind"] != "cancel" {
		t.Fatalf("prompt = %v", prompt)
	}
}

func TestTransitionRejectsIllegalTarget(t *testing.T) {
	fake := &fakeStore{
		getMeetingFn: func(_ context.Context, id string) (store.Meeting, error) {
			return sampleStoredMeeting("completed"), nil
		},
	}
	server := newTestServer(t, fake)

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/meetings/mtg_1/transition", `{"target":"in_progress"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if payload["code"] != "ILLEGAL_TRANSITION" {
		t.Fatalf("payload = %v", payload)
	}
	details, ok := payload["details"].(map[string]any)
	if !ok {
		t.Fatalf("expected legalTargets detail, got %v", payload)
	}
	if _, ok := details["legalTargets"]; !ok {
		t.Fatalf("details = %v", details)
	}
}

func TestTransitionRejectsUnknownStatus(t *testing.T) {
	server := newTestServer(t, &fakeStore{})

	resp, payload := doJSON(t, http.MethodPost, server.URL+"/api/meetings/mtg_1/transition", `{"target":"postponed"}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestAggregateWireFormatIsCamelCase(t *testing.T) {
	fake := &fakeStore{
		getMeetingFn: func(_ context.Context, id string) (store.Meeting, error) {
			return sampleStoredMeeting("scheduled"), nil
		},
		listAttendeesFn: func(_ context.Context, id string) ([]store.Attendee, error) {
			return []store.Attendee{{MeetingID: id, PersonID: 7, RoleInMeeting: "required", AttendanceStatus: "invited", PersonName: "Ana"}}, nil
		},
	}
	server := newTestServer(t, fake)

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/meetings/mtg_1", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	m, ok := payload["meeting"].(map[string]any)
	if !ok {
		t.Fatalf("payload = %v", payload)
	}
	for _, key := range []string{"id", "name", "status", "durationMinutes", "keyMessages"} {
		if _, ok := m[key]; !ok {
			t.Errorf("meeting missing %q key: %v", key, m)
		}
	}
	for _, key := range []string{"ID", "KeyMessages", "StructuredNotes"} {
		if _, ok := m[key]; ok {
			t.Errorf("meeting leaked Go-cased key %q", key)
		}
	}
	attendees, ok := payload["attendees"].([]any)
	if !ok || len(attendees) != 1 {
		t.Fatalf("attendees = %v", payload["attendees"])
	}
	a := attendees[0].(map[string]any)
	for _, key := range []string{"personId", "roleInMeeting", "attendanceStatus", "personName"} {
		if _, ok := a[key]; !ok {
			t.Errorf("attendee missing %q key: %v", key, a)
		}
	}
	if _, ok := a["PersonID"]; ok {
		t.Error("attendee leaked Go-cased PersonID key")
	}
}

func TestMeetingNotFoundMapsTo404(t *testing.T) {
	server := newTestServer(t, &fakeStore{})

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/meetings/mtg_missing", "")
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if payload["code"] != "NOT_FOUND" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestAttendeePatchRequiresRoleOrAttendance(t *testing.T) {
	fake := &fakeStore{
		getMeetingFn: func(_ context.Context, id string) (store.Meeting, error) {
			return sampleStoredMeeting("scheduled"), nil
		},
	}
	server := newTestServer(t, fake)

	resp, payload := doJSON(t, http.MethodPatch, server.URL+"/api/meetings/mtg_1/attendees/7", `{}`)
	if resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if payload["code"] != "VALIDATION_ERROR" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestAttendeeIDMustBeNumeric(t *testing.T) {
	server := newTestServer(t, &fakeStore{})

	resp, payload := doJSON(t, http.MethodDelete, server.URL+"/api/meetings/mtg_1/attendees/bob", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if payload["code"] != "INVALID_BODY" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestExportEndpointSetsDownloadHeaders(t *testing.T) {
	fake := &fakeStore{
		getMeetingFn: func(_ context.Context, id string) (store.Meeting, error) {
			return sampleStoredMeeting("completed"), nil
		},
	}
	server := newTestServer(t, fake)

	resp, err := http.Get(server.URL + "/api/meetings/mtg_1/export?format=json")
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if got := resp.Header.Get("Content-Type"); got != "application/json" {
		t.Fatalf("content type = %q", got)
	}
	if got := resp.Header.Get("Content-Disposition"); !strings.Contains(got, "attachment") {
		t.Fatalf("content disposition = %q", got)
	}
}

func TestExportUnsupportedFormatEndpoint(t *testing.T) {
	fake := &fakeStore{
		getMeetingFn: func(_ context.Context, id string) (store.Meeting, error) {
			return sampleStoredMeeting("completed"), nil
		},
	}
	server := newTestServer(t, fake)

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/meetings/mtg_1/export?format=docx", "")
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	if payload["code"] != "UNSUPPORTED_FORMAT" {
		t.Fatalf("payload = %v", payload)
	}
}

func TestSearchEndpointWithoutBackendReturnsEmpty(t *testing.T) {
	server := newTestServer(t, &fakeStore{})

	resp, payload := doJSON(t, http.MethodGet, server.URL+"/api/search?q=roadmap", "")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	results, ok := payload["results"].([]any)
	if !ok {
		t.Fatalf("payload = %v", payload)
	}
	if len(results) != 0 {
		t.Fatalf("results = %v", results)
	}
}
