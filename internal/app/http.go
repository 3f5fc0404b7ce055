package app

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"teamops/api/internal/agenda"
	"teamops/api/internal/export"
	"teamops/api/internal/meeting"
	"teamops/api/internal/search"
	"teamops/api/internal/store"
)

type HTTPServer struct {
	service    *Service
	corsOrigin string
}

func NewHTTPServer(service *Service, corsOrigin string) *HTTPServer {
	return &HTTPServer{service: service, corsOrigin: corsOrigin}
}

func (s *HTTPServer) Handler() http.Handler {
	return s.withMiddleware(http.HandlerFunc(s.handle))
}

func (s *HTTPServer) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		// 204 must not carry a body.
		w.WriteHeader(http.StatusNoContent)
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/health" {
		writeJSON(w, http.StatusOK, map[string]any{"ok": true})
		return
	}

	if (r.Method == http.MethodGet || r.Method == http.MethodHead) && r.URL.Path == "/api/ready" {
		ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
		defer cancel()

		status := "ready"
		statusCode := http.StatusOK
		checks := map[string]any{
			"database": map[string]any{"status": "ok"},
		}

		if err := s.service.Ping(ctx); err != nil {
			status = "not_ready"
			statusCode = http.StatusServiceUnavailable
			checks["database"] = map[string]any{
				"status": "error",
				"error":  err.Error(),
			}
		}

		writeJSON(w, statusCode, map[string]any{
			"ok":     status == "ready",
			"status": status,
			"checks": checks,
		})
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/search" {
		q := search.Query{
			Text:         r.URL.Query().Get("q"),
			FilterStatus: r.URL.Query().Get("status"),
			Limit:        queryInt(r, "limit", 20),
			Offset:       queryInt(r, "offset", 0),
		}
		writeJSON(w, http.StatusOK, s.service.Search(q))
		return
	}

	if r.Method == http.MethodGet && r.URL.Path == "/api/meeting-types" {
		types, err := s.service.ListMeetingTypes(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not load meeting types", nil)
			return
		}
		if types == nil {
			types = []store.MeetingType{}
		}
		writeJSON(w, http.StatusOK, map[string]any{"types": types})
		return
	}

	if r.URL.Path == "/api/meetings" {
		switch r.Method {
		case http.MethodPost:
			s.handleCreateMeeting(w, r)
		case http.MethodGet:
			items, err := s.service.ListMeetings(r.Context())
			if err != nil {
				writeError(w, http.StatusInternalServerError, "SERVER_ERROR", "Could not list meetings", nil)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"meetings": items})
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	parts := splitPath(r.URL.Path)

	if len(parts) >= 3 && parts[0] == "api" && parts[1] == "meetings" {
		meetingID := parts[2]
		rest := parts[3:]
		s.handleMeeting(w, r, meetingID, rest)
		return
	}

	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) handleCreateMeeting(w http.ResponseWriter, r *http.Request) {
	var body CreateMeetingInput
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	agg, warning, err := s.service.CreateMeeting(r.Context(), body, actorFrom(r))
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	payload := map[string]any{"meeting": agg}
	if warning != nil {
		payload["warning"] = warning
	}
	writeJSON(w, http.StatusCreated, payload)
}

func (s *HTTPServer) handleMeeting(w http.ResponseWriter, r *http.Request, meetingID string, rest []string) {
	if len(rest) == 0 {
		switch r.Method {
		case http.MethodGet:
			agg, err := s.service.GetMeeting(r.Context(), meetingID)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, agg)
		case http.MethodDelete:
			if err := s.service.DeleteMeeting(r.Context(), meetingID); err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"deleted": true})
		case http.MethodPatch:
			var body UpdateFieldsInput
			if err := decodeBody(r, &body); err != nil {
				writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
				return
			}
			agg, err := s.service.UpdateFields(r.Context(), meetingID, body, actorFrom(r))
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, agg)
		default:
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		}
		return
	}

	switch rest[0] {
	case "transition":
		s.handleTransition(w, r, meetingID, rest[1:])
	case "template":
		s.handleTemplate(w, r, meetingID)
	case "notes":
		s.handleNotes(w, r, meetingID, rest[1:])
	case "attendees":
		s.handleAttendees(w, r, meetingID, rest[1:])
	case "export":
		s.handleExport(w, r, meetingID)
	case "history":
		s.handleHistory(w, r, meetingID, rest[1:])
	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleTransition(w http.ResponseWriter, r *http.Request, meetingID string, rest []string) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}
	var body struct {
		Target string `json:"target"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	target := meeting.NormalizeStatus(body.Target)
	if !meeting.Known(target) {
		writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR",
			fmt.Sprintf("unknown status %q", body.Target), nil)
		return
	}

	// Preview returns the confirmation prompt; commit performs the change.
	if len(rest) == 1 && rest[0] == "preview" {
		prompt, err := s.service.PreviewTransition(r.Context(), meetingID, target)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"prompt": prompt})
		return
	}
	if len(rest) != 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}

	agg, err := s.service.CommitTransition(r.Context(), meetingID, target, actorFrom(r))
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func (s *HTTPServer) handleTemplate(w http.ResponseWriter, r *http.Request, meetingID string) {
	if r.Method != http.MethodPut {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}
	var body struct {
		Template json.RawMessage `json:"template"`
	}
	if err := decodeBody(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
		return
	}
	agg, err := s.service.UpdateTemplate(r.Context(), meetingID, body.Template, actorFrom(r))
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	writeJSON(w, http.StatusOK, agg)
}

func (s *HTTPServer) handleNotes(w http.ResponseWriter, r *http.Request, meetingID string, rest []string) {
	if len(rest) == 0 {
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
		return
	}
	actor := actorFrom(r)

	switch {
	case rest[0] == "questions" && len(rest) == 1 && r.Method == http.MethodPost:
		var body struct {
			SectionIndex int    `json:"sectionIndex"`
			Question     string `json:"question"`
			Response     string `json:"response"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.UpsertQuestionResponse(r.Context(), meetingID, body.SectionIndex, body.Question, body.Response, actor); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"saved": "pending"})

	case rest[0] == "talking-points" && len(rest) == 1 && r.Method == http.MethodPost:
		var body struct {
			SectionIndex int    `json:"sectionIndex"`
			Point        string `json:"point"`
			Notes        string `json:"notes"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.UpsertTalkingPointNotes(r.Context(), meetingID, body.SectionIndex, body.Point, body.Notes, actor); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"saved": "pending"})

	case rest[0] == "general" && len(rest) == 1 && r.Method == http.MethodPost:
		var body struct {
			SectionIndex int    `json:"sectionIndex"`
			Content      string `json:"content"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		note, err := s.service.AddGeneralNote(r.Context(), meetingID, body.SectionIndex, body.Content, actor)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"note": note})

	case rest[0] == "general" && len(rest) == 2 && r.Method == http.MethodDelete:
		sectionIndex := queryInt(r, "section", 0)
		if err := s.service.RemoveGeneralNote(r.Context(), meetingID, sectionIndex, rest[1], actor); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"deleted": true})

	case rest[0] == "freeform" && len(rest) == 1 && r.Method == http.MethodPost:
		var body struct {
			Field string `json:"field"`
			Value string `json:"value"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		if err := s.service.UpdateFreeformField(r.Context(), meetingID, body.Field, body.Value, actor); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"saved": "pending"})

	case rest[0] == "save" && len(rest) == 1 && r.Method == http.MethodPost:
		if err := s.service.SaveNotes(r.Context(), meetingID); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"saved": true})

	case rest[0] == "close" && len(rest) == 1 && r.Method == http.MethodPost:
		if err := s.service.CloseNotes(r.Context(), meetingID); err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"closed": true})

	case rest[0] == "status" && len(rest) == 1 && r.Method == http.MethodGet:
		dirty, lastErr := s.service.NotesDirty(meetingID)
		payload := map[string]any{"dirty": dirty}
		if lastErr != nil {
			payload["lastError"] = lastErr.Error()
		}
		writeJSON(w, http.StatusOK, payload)

	default:
		writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	}
}

func (s *HTTPServer) handleAttendees(w http.ResponseWriter, r *http.Request, meetingID string, rest []string) {
	actor := actorFrom(r)

	if len(rest) == 0 {
		if r.Method != http.MethodPost {
			writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
			return
		}
		var body struct {
			PersonID int64  `json:"personId"`
			Role     string `json:"role"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		changed, attendees, err := s.service.AddAttendee(r.Context(), meetingID, body.PersonID, body.Role, actor)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"changed": changed, "attendees": attendees})
		return
	}

	personID, err := strconv.ParseInt(rest[0], 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_BODY", "attendee id must be numeric", nil)
		return
	}

	switch r.Method {
	case http.MethodDelete:
		changed, attendees, err := s.service.RemoveAttendee(r.Context(), meetingID, personID, actor)
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"changed": changed, "attendees": attendees})
	case http.MethodPatch:
		var body struct {
			Role       *string `json:"role"`
			Attendance *string `json:"attendance"`
		}
		if err := decodeBody(r, &body); err != nil {
			writeError(w, http.StatusBadRequest, "INVALID_BODY", err.Error(), nil)
			return
		}
		switch {
		case body.Role != nil:
			changed, list, err := s.service.UpdateAttendeeRole(r.Context(), meetingID, personID, *body.Role, actor)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"changed": changed, "attendees": list})
		case body.Attendance != nil:
			changed, list, err := s.service.UpdateAttendeeAttendance(r.Context(), meetingID, personID, *body.Attendance, actor)
			if err != nil {
				status, code, message, details := mapError(err)
				writeError(w, status, code, message, details)
				return
			}
			writeJSON(w, http.StatusOK, map[string]any{"changed": changed, "attendees": list})
		default:
			writeError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "role or attendance required", nil)
		}
	default:
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	}
}

func (s *HTTPServer) handleExport(w http.ResponseWriter, r *http.Request, meetingID string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}
	format := export.Format(r.URL.Query().Get("format"))
	result, err := s.service.Export(r.Context(), meetingID, format)
	if err != nil {
		status, code, message, details := mapError(err)
		writeError(w, status, code, message, details)
		return
	}
	w.Header().Set("Content-Type", result.MimeType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", result.Filename))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(result.Data)
}

func (s *HTTPServer) handleHistory(w http.ResponseWriter, r *http.Request, meetingID string, rest []string) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
		return
	}
	if len(rest) == 0 {
		entries, err := s.service.History(r.Context(), meetingID, queryInt(r, "limit", 50))
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
		return
	}
	if len(rest) == 1 {
		snapshot, err := s.service.HistorySnapshot(r.Context(), meetingID, rest[0])
		if err != nil {
			status, code, message, details := mapError(err)
			writeError(w, status, code, message, details)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"snapshot": snapshot})
		return
	}
	writeError(w, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
}

func (s *HTTPServer) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get("X-Request-ID")
		if requestID == "" {
			requestID = randomRequestID()
		}
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		r = r.WithContext(ctx)

		started := time.Now()
		writer := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		setCORSHeaders(writer.Header(), s.corsOrigin)
		writer.Header().Set("X-Request-ID", requestID)

		next.ServeHTTP(writer, r)

		log.Printf(`{"request_id":"%s","method":"%s","path":"%s","status":%d,"duration_ms":%d}`,
			requestID,
			r.Method,
			r.URL.Path,
			writer.status,
			time.Since(started).Milliseconds(),
		)
	})
}

type requestIDKey struct{}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func randomRequestID() string {
	buf := make([]byte, 8)
	_, _ = rand.Read(buf)
	return hex.EncodeToString(buf)
}

func setCORSHeaders(header http.Header, corsOrigin string) {
	header.Set("Access-Control-Allow-Origin", corsOrigin)
	header.Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Actor, X-Request-ID")
	header.Set("Access-Control-Allow-Methods", "GET,POST,PUT,PATCH,DELETE,OPTIONS")
	header.Set("Cache-Control", "no-store")
	header.Set("Content-Type", "application/json")
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, code, message string, details any) {
	response := map[string]any{
		"code":  code,
		"error": message,
	}
	if details != nil {
		response["details"] = details
	}
	writeJSON(w, status, response)
}

func decodeBody(r *http.Request, target any) error {
	if r.Body == nil {
		return nil
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	if err := decoder.Decode(target); err != nil {
		if errors.Is(err, http.ErrBodyReadAfterClose) {
			return nil
		}
		return fmt.Errorf("invalid JSON body")
	}
	return nil
}

func actorFrom(r *http.Request) string {
	actor := strings.TrimSpace(r.Header.Get("X-Actor"))
	if actor == "" {
		return "anonymous"
	}
	return actor
}

func queryInt(r *http.Request, key string, fallback int) int {
	raw := r.URL.Query().Get(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}

func splitPath(path string) []string {
	trimmed := strings.Trim(path, "/")
	if trimmed == "" {
		return nil
	}
	return strings.Split(trimmed, "/")
}

func mapError(err error) (status int, code, message string, details any) {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Status, domainErr.Code, domainErr.Message, domainErr.Details
	}
	var transitionErr *meeting.IllegalTransitionError
	if errors.As(err, &transitionErr) {
		return http.StatusUnprocessableEntity, "ILLEGAL_TRANSITION", transitionErr.Error(), nil
	}
	var templateErr *agenda.ValidationError
	if errors.As(err, &templateErr) {
		return http.StatusUnprocessableEntity, "VALIDATION_ERROR", templateErr.Error(), nil
	}
	if errors.Is(err, export.ErrUnsupportedFormat) {
		return http.StatusBadRequest, "UNSUPPORTED_FORMAT", err.Error(), nil
	}
	if errors.Is(err, export.ErrPDFDependencyMissing) {
		return http.StatusServiceUnavailable, "PDF_UNAVAILABLE", "PDF rendering is not available on this host", nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return http.StatusNotFound, "NOT_FOUND", "Not found", nil
	}
	return http.StatusInternalServerError, "SERVER_ERROR", "Server error", nil
}
