package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"teamops/api/internal/agenda"
	"teamops/api/internal/autosave"
	"teamops/api/internal/config"
	"teamops/api/internal/export"
	"teamops/api/internal/history"
	"teamops/api/internal/loader"
	"teamops/api/internal/meeting"
	"teamops/api/internal/notes"
	"teamops/api/internal/roster"
	"teamops/api/internal/search"
	"teamops/api/internal/store"
	"teamops/api/internal/util"
)

type CreateAttendeeInput struct {
	PersonID int64  `json:"personId"`
	Role     string `json:"role"`
}

type CreateMeetingInput struct {
	Name            string                `json:"name"`
	TypeID          *string               `json:"typeId"`
	PhaseID         *string               `json:"phaseId"`
	InitiativeID    *string               `json:"initiativeId"`
	ScheduledAt     *time.Time            `json:"scheduledAt"`
	DurationMinutes int                   `json:"durationMinutes"`
	Location        string                `json:"location"`
	Objectives      string                `json:"objectives"`
	KeyMessages     string                `json:"keyMessages"`
	Attendees       []CreateAttendeeInput `json:"attendees"`
}

// AttendeeWarning reports attendee rows that failed to save during meeting
// creation. The meeting itself is kept.
type AttendeeWarning struct {
	Code            string  `json:"code"`
	FailedPersonIDs []int64 `json:"failedPersonIds"`
}

type UpdateFieldsInput struct {
	Name        *string    `json:"name"`
	ScheduledAt *time.Time `json:"scheduledAt"`
	Duration    *int       `json:"durationMinutes"`
	Location    *string    `json:"location"`
	Objectives  *string    `json:"objectives"`
	KeyMessages *string    `json:"keyMessages"`
}

type dataStore interface {
	InsertMeeting(ctx context.Context, m store.Meeting) error
	GetMeeting(ctx context.Context, meetingID string) (store.Meeting, error)
	ListMeetings(ctx context.Context) ([]store.Meeting, error)
	DeleteMeeting(ctx context.Context, meetingID string) error
	UpdateMeetingStatus(ctx context.Context, meetingID, status, updatedBy string) error
	UpdateMeetingNotes(ctx context.Context, meetingID string, update store.NotesUpdate) error
	UpdateMeetingTemplate(ctx context.Context, meetingID string, template json.RawMessage, updatedBy string) error
	UpdateMeetingFields(ctx context.Context, meetingID string, update store.MeetingFieldUpdate) error
	ListAttendees(ctx context.Context, meetingID string) ([]store.Attendee, error)
	InsertAttendee(ctx context.Context, a store.Attendee) error
	DeleteAttendee(ctx context.Context, meetingID string, personID int64) error
	UpdateAttendeeRole(ctx context.Context, meetingID string, personID int64, role string) error
	UpdateAttendeeAttendance(ctx context.Context, meetingID string, personID int64, attendance string) error
	GetMeetingType(ctx context.Context, typeID string) (store.MeetingType, error)
	ListMeetingTypes(ctx context.Context) ([]store.MeetingType, error)
	GetPerson(ctx context.Context, personID int64) (store.Person, error)
	EnsurePersonByName(ctx context.Context, name string) (store.Person, error)
	Ping(ctx context.Context) error
}

type historyService interface {
	Record(meetingID string, snapshot history.Snapshot, actor, message string) (history.Entry, error)
	History(meetingID string, limit int) ([]history.Entry, error)
	SnapshotByHash(meetingID, hash string) (history.Snapshot, error)
}

type searchService interface {
	Search(q search.Query) search.Response
	IndexMeeting(rec search.MeetingRecord)
	DeleteMeeting(id string)
}

type notifier interface {
	IsConfigured() bool
	SendScheduleNotice(to []string, meetingName string, scheduledAt *time.Time, location string) error
	SendCancellationNotice(to []string, meetingName string) error
	SendCompletionNotice(to []string, meetingName string) error
}

// editSession is the live editing state for one meeting: the authoritative
// notes document, the roster manager, and the autosave coordinator gluing
// them to the store. One session per meeting, evicted after idle TTL.
type editSession struct {
	meetingID string

	mu          sync.Mutex
	doc         *notes.Document
	freeform    store.NotesUpdate
	actor       string
	roster      *roster.Manager
	saver       *autosave.Coordinator
	lastTouched time.Time
}

type Service struct {
	cfg      config.Config
	store    dataStore
	loader   *loader.Loader
	history  historyService
	search   searchService
	notify   notifier
	exporter *export.Service

	sessionTTL time.Duration
	sessMu     sync.Mutex
	sessions   map[string]*editSession
}

func New(cfg config.Config, dataStore dataStore, agg *loader.Loader, hist historyService, searcher searchService, mailer notifier) *Service {
	s := &Service{
		cfg:        cfg,
		store:      dataStore,
		loader:     agg,
		history:    hist,
		search:     searcher,
		notify:     mailer,
		sessionTTL: 15 * time.Minute,
		sessions:   make(map[string]*editSession),
	}
	s.exporter = export.NewService(&exportStore{store: dataStore})
	return s
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// CreateMeeting inserts a meeting in not_scheduled with its template seeded
// from the meeting type. Attendee rows that fail to save do not fail the
// create; they come back in the warning so the caller can retry them.
func (s *Service) CreateMeeting(ctx context.Context, input CreateMeetingInput, actor string) (loader.Aggregate, *AttendeeWarning, error) {
	if input.Name == "" {
		return loader.Aggregate{}, nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "name is required", nil)
	}

	var template json.RawMessage
	if input.TypeID != nil {
		meetingType, err := s.store.GetMeetingType(ctx, *input.TypeID)
		if err != nil {
			return loader.Aggregate{}, nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "unknown meeting type", nil)
		}
		template = meetingType.DefaultTemplate
	}
	if len(template) > 0 {
		if _, err := agenda.Parse(template); err != nil {
			return loader.Aggregate{}, nil, fmt.Errorf("default template for type: %w", err)
		}
	}

	m := store.Meeting{
		ID:              util.NewID("mtg"),
		Name:            input.Name,
		TypeID:          input.TypeID,
		PhaseID:         input.PhaseID,
		InitiativeID:    input.InitiativeID,
		ScheduledAt:     input.ScheduledAt,
		DurationMinutes: input.DurationMinutes,
		Location:        input.Location,
		Status:          string(meeting.StatusNotScheduled),
		Objectives:      input.Objectives,
		KeyMessages:     input.KeyMessages,
		Template:        template,
		UpdatedBy:       actor,
	}
	if err := s.store.InsertMeeting(ctx, m); err != nil {
		return loader.Aggregate{}, nil, err
	}

	// The acting operator gets a people row so they can join rosters and
	// receive notices later. Failure here never fails the create.
	if _, err := s.store.EnsurePersonByName(ctx, actor); err != nil {
		log.Printf("app: ensure person for actor %q: %v", actor, err)
	}

	var failed []int64
	for _, a := range input.Attendees {
		role := a.Role
		if role == "" {
			role = string(roster.RoleRequired)
		}
		if !roster.ValidRole(roster.Role(role)) {
			failed = append(failed, a.PersonID)
			continue
		}
		err := s.store.InsertAttendee(ctx, store.Attendee{
			MeetingID:        m.ID,
			PersonID:         a.PersonID,
			RoleInMeeting:    role,
			AttendanceStatus: string(roster.AttendanceInvited),
		})
		if err != nil {
			log.Printf("app: attendee %d for new meeting %s: %v", a.PersonID, m.ID, err)
			failed = append(failed, a.PersonID)
		}
	}

	var warning *AttendeeWarning
	if len(failed) > 0 {
		warning = &AttendeeWarning{Code: "ATTENDEES_NOT_SAVED", FailedPersonIDs: failed}
	}

	s.indexMeeting(ctx, m.ID)

	agg, err := s.loader.Get(ctx, m.ID)
	if err != nil {
		return loader.Aggregate{}, warning, err
	}
	return agg, warning, nil
}

func (s *Service) GetMeeting(ctx context.Context, meetingID string) (loader.Aggregate, error) {
	return s.loader.Get(ctx, meetingID)
}

func (s *Service) ListMeetings(ctx context.Context) ([]map[string]any, error) {
	meetings, err := s.store.ListMeetings(ctx)
	if err != nil {
		return nil, err
	}
	items := make([]map[string]any, 0, len(meetings))
	for _, m := range meetings {
		status := meeting.NormalizeStatus(m.Status)
		items = append(items, map[string]any{
			"id":              m.ID,
			"name":            m.Name,
			"status":          status,
			"scheduledAt":     m.ScheduledAt,
			"durationMinutes": m.DurationMinutes,
			"location":        m.Location,
			"updatedAt":       m.UpdatedAt,
		})
	}
	return items, nil
}

// DeleteMeeting removes a meeting. Only a not_scheduled meeting may be
// deleted; everything later in the lifecycle is a permanent record.
func (s *Service) DeleteMeeting(ctx context.Context, meetingID string) error {
	m, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return err
	}
	status := meeting.NormalizeStatus(m.Status)
	if !meeting.Permissions(status).CanDelete {
		return domainError(http.StatusForbidden, "DELETE_NOT_ALLOWED",
			fmt.Sprintf("a %s meeting cannot be deleted", status), nil)
	}

	if err := s.store.DeleteMeeting(ctx, meetingID); err != nil {
		return err
	}
	s.dropSession(meetingID)
	s.loader.Invalidate(ctx, meetingID)
	if s.search != nil {
		s.search.DeleteMeeting(meetingID)
	}
	return nil
}

// PreviewTransition returns the confirmation prompt for (current, target)
// without mutating anything. Illegal pairs are rejected here, before any
// confirmation UI.
func (s *Service) PreviewTransition(ctx context.Context, meetingID string, target meeting.Status) (meeting.Prompt, error) {
	m, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return meeting.Prompt{}, err
	}
	current := meeting.NormalizeStatus(m.Status)
	prompt, err := meeting.RequestTransition(current, target)
	if err != nil {
		return meeting.Prompt{}, domainError(http.StatusUnprocessableEntity, "ILLEGAL_TRANSITION", err.Error(),
			map[string]any{"from": current, "to": target, "legalTargets": meeting.LegalTargets(current)})
	}
	return prompt, nil
}

// CommitTransition performs a status change as a synchronous write-through:
// nothing local or cached updates until the store acknowledges. On failure
// the pre-transition status stays authoritative.
func (s *Service) CommitTransition(ctx context.Context, meetingID string, target meeting.Status, actor string) (loader.Aggregate, error) {
	m, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return loader.Aggregate{}, err
	}
	current := meeting.NormalizeStatus(m.Status)
	prompt, err := meeting.RequestTransition(current, target)
	if err != nil {
		return loader.Aggregate{}, domainError(http.StatusUnprocessableEntity, "ILLEGAL_TRANSITION", err.Error(),
			map[string]any{"from": current, "to": target, "legalTargets": meeting.LegalTargets(current)})
	}

	// Flush any pending note edits under the old status before it changes.
	if session := s.peekSession(meetingID); session != nil {
		if err := session.saver.SaveNow(ctx); err != nil {
			log.Printf("app: pre-transition flush for %s: %v", meetingID, err)
		}
	}

	if err := s.store.UpdateMeetingStatus(ctx, meetingID, string(target), actor); err != nil {
		return loader.Aggregate{}, err
	}
	s.loader.Invalidate(ctx, meetingID)
	s.indexMeeting(ctx, meetingID)
	s.notifyTransition(ctx, m, prompt.Kind)

	return s.loader.Get(ctx, meetingID)
}

// UpdateFields applies a partial edit to the meeting's detail fields,
// permission gated on agenda content editing.
func (s *Service) UpdateFields(ctx context.Context, meetingID string, input UpdateFieldsInput, actor string) (loader.Aggregate, error) {
	m, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return loader.Aggregate{}, err
	}
	perms := meeting.Permissions(meeting.NormalizeStatus(m.Status))
	if !perms.CanEditAgendaContent {
		return loader.Aggregate{}, domainError(http.StatusForbidden, "FORBIDDEN", perms.RestrictionReason, nil)
	}

	err = s.store.UpdateMeetingFields(ctx, meetingID, store.MeetingFieldUpdate{
		Name:        input.Name,
		ScheduledAt: input.ScheduledAt,
		Duration:    input.Duration,
		Location:    input.Location,
		Objectives:  input.Objectives,
		KeyMessages: input.KeyMessages,
		UpdatedBy:   actor,
	})
	if err != nil {
		return loader.Aggregate{}, err
	}
	s.loader.Invalidate(ctx, meetingID)
	s.indexMeeting(ctx, meetingID)
	return s.loader.Get(ctx, meetingID)
}

// UpdateTemplate replaces the agenda template. Structural changes (sections
// added, removed, renamed or reordered) need structure permission; content
// edits within the existing sections pass on content permission alone.
func (s *Service) UpdateTemplate(ctx context.Context, meetingID string, raw json.RawMessage, actor string) (loader.Aggregate, error) {
	m, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return loader.Aggregate{}, err
	}
	perms := meeting.Permissions(meeting.NormalizeStatus(m.Status))

	next, err := agenda.Parse(raw)
	if err != nil {
		return loader.Aggregate{}, err
	}

	if !perms.CanEditAgendaStructure {
		if !perms.CanEditAgendaContent {
			return loader.Aggregate{}, domainError(http.StatusForbidden, "FORBIDDEN", perms.RestrictionReason, nil)
		}
		current, err := agenda.Parse(m.Template)
		if err != nil {
			return loader.Aggregate{}, fmt.Errorf("stored template for %s: %w", meetingID, err)
		}
		if structureChanged(current, next) {
			return loader.Aggregate{}, domainError(http.StatusForbidden, "STRUCTURE_LOCKED",
				"agenda structure is locked for the current status; only section content may change", nil)
		}
	}

	if err := s.store.UpdateMeetingTemplate(ctx, meetingID, next.MustJSON(), actor); err != nil {
		return loader.Aggregate{}, err
	}
	s.loader.Invalidate(ctx, meetingID)
	return s.loader.Get(ctx, meetingID)
}

func structureChanged(current, next agenda.Template) bool {
	if len(current.Sections) != len(next.Sections) {
		return true
	}
	for i := range current.Sections {
		if current.Sections[i].Name != next.Sections[i].Name {
			return true
		}
	}
	return false
}

// --- Notes session operations ---

func (s *Service) UpsertQuestionResponse(ctx context.Context, meetingID string, sectionIndex int, questionText, response, actor string) error {
	session, err := s.notesSession(ctx, meetingID, actor)
	if err != nil {
		return err
	}
	session.mu.Lock()
	session.doc.UpsertQuestionResponse(sectionIndex, questionText, response)
	session.actor = actor
	session.mu.Unlock()
	session.saver.MarkDirty()
	return nil
}

func (s *Service) UpsertTalkingPointNotes(ctx context.Context, meetingID string, sectionIndex int, pointText, text, actor string) error {
	session, err := s.notesSession(ctx, meetingID, actor)
	if err != nil {
		return err
	}
	session.mu.Lock()
	session.doc.UpsertTalkingPointNotes(sectionIndex, pointText, text)
	session.actor = actor
	session.mu.Unlock()
	session.saver.MarkDirty()
	return nil
}

func (s *Service) AddGeneralNote(ctx context.Context, meetingID string, sectionIndex int, content, actor string) (notes.GeneralNote, error) {
	session, err := s.notesSession(ctx, meetingID, actor)
	if err != nil {
		return notes.GeneralNote{}, err
	}
	session.mu.Lock()
	note := session.doc.AddGeneralNote(sectionIndex, content)
	session.actor = actor
	session.mu.Unlock()
	session.saver.MarkDirty()
	return note, nil
}

func (s *Service) RemoveGeneralNote(ctx context.Context, meetingID string, sectionIndex int, noteID, actor string) error {
	session, err := s.notesSession(ctx, meetingID, actor)
	if err != nil {
		return err
	}
	session.mu.Lock()
	session.doc.RemoveGeneralNote(sectionIndex, noteID)
	session.actor = actor
	session.mu.Unlock()
	session.saver.MarkDirty()
	return nil
}

// UpdateFreeformField edits one of the freeform note fields that autosave
// with the structured document.
func (s *Service) UpdateFreeformField(ctx context.Context, meetingID, field, value, actor string) error {
	session, err := s.notesSession(ctx, meetingID, actor)
	if err != nil {
		return err
	}
	session.mu.Lock()
	switch field {
	case "unstructured_notes":
		session.freeform.UnstructuredNotes = value
	case "free_form_insights":
		session.freeform.FreeFormInsights = value
	case "meeting_summary":
		session.freeform.MeetingSummary = value
	case "overall_assessment":
		session.freeform.OverallAssessment = value
	default:
		session.mu.Unlock()
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR",
			fmt.Sprintf("unknown freeform field %q", field), nil)
	}
	session.actor = actor
	session.mu.Unlock()
	session.saver.MarkDirty()
	return nil
}

// SaveNotes is the manual save-now path: cancels pending debounce timers and
// flushes immediately.
func (s *Service) SaveNotes(ctx context.Context, meetingID string) error {
	session := s.peekSession(meetingID)
	if session == nil {
		return nil
	}
	return session.saver.SaveNow(ctx)
}

// CloseNotes tears the editing session down with one final flush when dirty.
func (s *Service) CloseNotes(ctx context.Context, meetingID string) error {
	s.sessMu.Lock()
	session := s.sessions[meetingID]
	delete(s.sessions, meetingID)
	s.sessMu.Unlock()
	if session == nil {
		return nil
	}
	return session.saver.Close(ctx)
}

// NotesDirty reports whether the meeting has unflushed note edits, plus the
// last flush error for the caller's non-blocking indicator.
func (s *Service) NotesDirty(meetingID string) (bool, error) {
	session := s.peekSession(meetingID)
	if session == nil {
		return false, nil
	}
	return session.saver.Dirty(), session.saver.LastError()
}

// --- Roster operations ---

func (s *Service) AddAttendee(ctx context.Context, meetingID string, personID int64, role string, actor string) (bool, []store.Attendee, error) {
	session, status, err := s.rosterSession(ctx, meetingID, actor)
	if err != nil {
		return false, nil, err
	}
	if _, err := s.store.GetPerson(ctx, personID); err != nil {
		return false, nil, err
	}
	changed, err := session.roster.Add(ctx, status, personID, roster.Role(role))
	return s.finishRoster(ctx, meetingID, changed, err)
}

func (s *Service) RemoveAttendee(ctx context.Context, meetingID string, personID int64, actor string) (bool, []store.Attendee, error) {
	session, status, err := s.rosterSession(ctx, meetingID, actor)
	if err != nil {
		return false, nil, err
	}
	changed, err := session.roster.Remove(ctx, status, personID)
	return s.finishRoster(ctx, meetingID, changed, err)
}

func (s *Service) UpdateAttendeeRole(ctx context.Context, meetingID string, personID int64, role string, actor string) (bool, []store.Attendee, error) {
	session, status, err := s.rosterSession(ctx, meetingID, actor)
	if err != nil {
		return false, nil, err
	}
	changed, err := session.roster.UpdateRole(ctx, status, personID, roster.Role(role))
	return s.finishRoster(ctx, meetingID, changed, err)
}

func (s *Service) UpdateAttendeeAttendance(ctx context.Context, meetingID string, personID int64, attendance string, actor string) (bool, []store.Attendee, error) {
	session, status, err := s.rosterSession(ctx, meetingID, actor)
	if err != nil {
		return false, nil, err
	}
	changed, err := session.roster.UpdateAttendanceStatus(ctx, status, personID, roster.Attendance(attendance))
	return s.finishRoster(ctx, meetingID, changed, err)
}

func (s *Service) finishRoster(ctx context.Context, meetingID string, changed bool, err error) (bool, []store.Attendee, error) {
	if err != nil {
		return false, nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", err.Error(), nil)
	}
	if changed {
		s.loader.Invalidate(ctx, meetingID)
	}
	attendees, listErr := s.store.ListAttendees(ctx, meetingID)
	if listErr != nil {
		return changed, nil, listErr
	}
	return changed, attendees, nil
}

// --- Export / history / search passthroughs ---

func (s *Service) Export(ctx context.Context, meetingID string, format export.Format) (*export.Result, error) {
	return s.exporter.Export(ctx, export.Request{MeetingID: meetingID, Format: format})
}

func (s *Service) History(ctx context.Context, meetingID string, limit int) ([]history.Entry, error) {
	if s.history == nil {
		return []history.Entry{}, nil
	}
	if _, err := s.store.GetMeeting(ctx, meetingID); err != nil {
		return nil, err
	}
	return s.history.History(meetingID, limit)
}

func (s *Service) HistorySnapshot(ctx context.Context, meetingID, hash string) (history.Snapshot, error) {
	if s.history == nil {
		return history.Snapshot{}, domainError(http.StatusNotFound, "NOT_FOUND", "history is not enabled", nil)
	}
	if _, err := s.store.GetMeeting(ctx, meetingID); err != nil {
		return history.Snapshot{}, err
	}
	return s.history.SnapshotByHash(meetingID, hash)
}

func (s *Service) Search(q search.Query) search.Response {
	if s.search == nil {
		return search.Response{Results: []search.Result{}, Query: q.Text}
	}
	return s.search.Search(q)
}

func (s *Service) ListMeetingTypes(ctx context.Context) ([]store.MeetingType, error) {
	return s.store.ListMeetingTypes(ctx)
}

// --- Session plumbing ---

// notesSession returns the edit session for a meeting, creating it when the
// current status permits note taking or retrospective editing.
func (s *Service) notesSession(ctx context.Context, meetingID, actor string) (*editSession, error) {
	agg, err := s.loader.Get(ctx, meetingID)
	if err != nil {
		return nil, err
	}
	if !agg.Permissions.CanTakeNotes && !agg.Permissions.CanEditNotes {
		return nil, domainError(http.StatusForbidden, "FORBIDDEN", agg.Permissions.RestrictionReason, nil)
	}
	return s.session(ctx, agg, actor)
}

// rosterSession returns the session plus the meeting's current status; the
// roster manager does its own permission gating from that status.
func (s *Service) rosterSession(ctx context.Context, meetingID, actor string) (*editSession, meeting.Status, error) {
	agg, err := s.loader.Get(ctx, meetingID)
	if err != nil {
		return nil, meeting.StatusUnknown, err
	}
	session, err := s.session(ctx, agg, actor)
	if err != nil {
		return nil, meeting.StatusUnknown, err
	}
	return session, agg.Status, nil
}

func (s *Service) session(ctx context.Context, agg loader.Aggregate, actor string) (*editSession, error) {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	s.evictIdleLocked(ctx)

	if session, ok := s.sessions[agg.Meeting.ID]; ok {
		session.mu.Lock()
		session.lastTouched = time.Now()
		session.mu.Unlock()
		return session, nil
	}

	doc, err := notes.Parse(agg.Meeting.StructuredNotes)
	if err != nil {
		return nil, fmt.Errorf("meeting %s notes: %w", agg.Meeting.ID, err)
	}

	rosterAttendees := make([]roster.Attendee, 0, len(agg.Attendees))
	for _, a := range agg.Attendees {
		rosterAttendees = append(rosterAttendees, roster.Attendee{
			PersonID:   a.PersonID,
			Role:       roster.Role(a.RoleInMeeting),
			Attendance: roster.Attendance(a.AttendanceStatus),
		})
	}

	session := &editSession{
		meetingID: agg.Meeting.ID,
		doc:       doc,
		actor:     actor,
		freeform: store.NotesUpdate{
			UnstructuredNotes: agg.Meeting.UnstructuredNotes,
			FreeFormInsights:  agg.Meeting.FreeFormInsights,
			MeetingSummary:    agg.Meeting.MeetingSummary,
			OverallAssessment: agg.Meeting.OverallAssessment,
		},
		roster:      roster.NewManager(agg.Meeting.ID, rosterAttendees, &rosterWriter{store: s.store}),
		lastTouched: time.Now(),
	}
	session.saver = autosave.New(func(ctx context.Context) error {
		return s.flushSession(ctx, session)
	}, s.cfg.FieldFlushDelay, s.cfg.DocumentFlushDelay)

	s.sessions[agg.Meeting.ID] = session
	return session, nil
}

func (s *Service) peekSession(meetingID string) *editSession {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	return s.sessions[meetingID]
}

func (s *Service) dropSession(meetingID string) {
	s.sessMu.Lock()
	defer s.sessMu.Unlock()
	delete(s.sessions, meetingID)
}

// evictIdleLocked closes sessions idle past the TTL. Close flushes pending
// edits, so eviction never loses notes.
func (s *Service) evictIdleLocked(ctx context.Context) {
	cutoff := time.Now().Add(-s.sessionTTL)
	for id, session := range s.sessions {
		session.mu.Lock()
		idle := session.lastTouched.Before(cutoff)
		session.mu.Unlock()
		if !idle {
			continue
		}
		delete(s.sessions, id)
		if err := session.saver.Close(ctx); err != nil {
			log.Printf("app: final flush for idle session %s: %v", id, err)
		}
	}
}

// flushSession writes the full current document state, records a history
// snapshot, and refreshes caches and the search index. Reads the session
// state at dispatch time per the autosave contract.
func (s *Service) flushSession(ctx context.Context, session *editSession) error {
	session.mu.Lock()
	payload, err := session.doc.JSON()
	update := session.freeform
	actor := session.actor
	session.mu.Unlock()
	if err != nil {
		return err
	}
	update.StructuredNotes = payload
	update.UpdatedBy = actor

	if err := s.store.UpdateMeetingNotes(ctx, session.meetingID, update); err != nil {
		return err
	}

	if s.history != nil {
		_, err := s.history.Record(session.meetingID, history.Snapshot{
			StructuredNotes:   payload,
			UnstructuredNotes: update.UnstructuredNotes,
			FreeFormInsights:  update.FreeFormInsights,
			MeetingSummary:    update.MeetingSummary,
			OverallAssessment: update.OverallAssessment,
		}, actor, "Update meeting notes")
		if err != nil {
			log.Printf("app: history snapshot for %s: %v", session.meetingID, err)
		}
	}

	s.loader.Invalidate(ctx, session.meetingID)
	s.indexMeeting(ctx, session.meetingID)
	return nil
}

func (s *Service) indexMeeting(ctx context.Context, meetingID string) {
	if s.search == nil {
		return
	}
	m, err := s.store.GetMeeting(ctx, meetingID)
	if err != nil {
		log.Printf("app: load meeting %s for indexing: %v", meetingID, err)
		return
	}
	s.search.IndexMeeting(search.MeetingRecord{
		ID:                m.ID,
		Name:              m.Name,
		Status:            m.Status,
		Location:          m.Location,
		Objectives:        m.Objectives,
		KeyMessages:       m.KeyMessages,
		UnstructuredNotes: m.UnstructuredNotes,
		MeetingSummary:    m.MeetingSummary,
	})
}

// notifyTransition emails attendees about schedule, cancel and complete
// transitions. Failures are logged and never block the commit.
func (s *Service) notifyTransition(ctx context.Context, m store.Meeting, kind meeting.TransitionKind) {
	if s.notify == nil || !s.notify.IsConfigured() {
		return
	}
	attendees, err := s.store.ListAttendees(ctx, m.ID)
	if err != nil {
		log.Printf("app: list attendees for notification on %s: %v", m.ID, err)
		return
	}
	var to []string
	for _, a := range attendees {
		if a.PersonEmail != "" {
			to = append(to, a.PersonEmail)
		}
	}
	if len(to) == 0 {
		return
	}

	go func() {
		var err error
		switch kind {
		case meeting.TransitionSchedule, meeting.TransitionReschedule:
			err = s.notify.SendScheduleNotice(to, m.Name, m.ScheduledAt, m.Location)
		case meeting.TransitionCancel:
			err = s.notify.SendCancellationNotice(to, m.Name)
		case meeting.TransitionComplete:
			err = s.notify.SendCompletionNotice(to, m.Name)
		default:
			return
		}
		if err != nil {
			log.Printf("app: transition notification for %s: %v", m.ID, err)
		}
	}()
}

// rosterWriter adapts the data store to the roster manager's write side.
type rosterWriter struct {
	store dataStore
}

func (w *rosterWriter) InsertAttendee(ctx context.Context, meetingID string, attendee roster.Attendee) error {
	return w.store.InsertAttendee(ctx, store.Attendee{
		MeetingID:        meetingID,
		PersonID:         attendee.PersonID,
		RoleInMeeting:    string(attendee.Role),
		AttendanceStatus: string(attendee.Attendance),
	})
}

func (w *rosterWriter) DeleteAttendee(ctx context.Context, meetingID string, personID int64) error {
	return w.store.DeleteAttendee(ctx, meetingID, personID)
}

func (w *rosterWriter) UpdateAttendeeRole(ctx context.Context, meetingID string, personID int64, role roster.Role) error {
	return w.store.UpdateAttendeeRole(ctx, meetingID, personID, string(role))
}

func (w *rosterWriter) UpdateAttendeeAttendance(ctx context.Context, meetingID string, personID int64, attendance roster.Attendance) error {
	return w.store.UpdateAttendeeAttendance(ctx, meetingID, personID, string(attendance))
}

// exportStore adapts the data store to the export service's read side.
type exportStore struct {
	store dataStore
}

func (e *exportStore) GetMeeting(ctx context.Context, id string) (export.MeetingInfo, error) {
	m, err := e.store.GetMeeting(ctx, id)
	if err != nil {
		return export.MeetingInfo{}, err
	}
	return export.MeetingInfo{
		ID:                m.ID,
		Name:              m.Name,
		Status:            m.Status,
		Template:          m.Template,
		StructuredNotes:   m.StructuredNotes,
		UnstructuredNotes: m.UnstructuredNotes,
		FreeFormInsights:  m.FreeFormInsights,
		MeetingSummary:    m.MeetingSummary,
		OverallAssessment: m.OverallAssessment,
	}, nil
}
