// Package loader assembles a meeting with its type, phase, initiative,
// template and attendees into one view model, cached by meeting ID with a
// short staleness window. Every mutating component invalidates the cache
// after a confirmed write so permission-dependent UI never renders against
// a stale status.
package loader

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"teamops/api/internal/agenda"
	"teamops/api/internal/meeting"
	"teamops/api/internal/store"
)

// Aggregate is the composed meeting view model.
type Aggregate struct {
	Meeting    store.Meeting      `json:"meeting"`
	Template   agenda.Template    `json:"template"`
	Type       *store.MeetingType `json:"type,omitempty"`
	Phase      *store.Phase       `json:"phase,omitempty"`
	Initiative *store.Initiative  `json:"initiative,omitempty"`
	Attendees  []store.Attendee   `json:"attendees"`

	// Derived on every read, never cached as authority: recomputed from
	// Meeting.Status after a cache hit as well.
	Status      meeting.Status        `json:"status"`
	Permissions meeting.PermissionSet `json:"permissions"`
}

// Cache is the storage behind the loader. Get returns (nil, nil) on a miss;
// backends map their own not-found sentinel to that.
type Cache interface {
	Get(ctx context.Context, meetingID string) ([]byte, error)
	Set(ctx context.Context, meetingID string, payload []byte, ttl time.Duration) error
	Delete(ctx context.Context, meetingID string) error
}

type reader interface {
	GetMeeting(ctx context.Context, meetingID string) (store.Meeting, error)
	ListAttendees(ctx context.Context, meetingID string) ([]store.Attendee, error)
	GetMeetingType(ctx context.Context, typeID string) (store.MeetingType, error)
	GetPhase(ctx context.Context, phaseID string) (store.Phase, error)
	GetInitiative(ctx context.Context, initiativeID string) (store.Initiative, error)
}

type Loader struct {
	store reader
	cache Cache
	ttl   time.Duration
}

func New(store reader, cache Cache, ttl time.Duration) *Loader {
	if ttl <= 0 {
		ttl = 15 * time.Second
	}
	return &Loader{store: store, cache: cache, ttl: ttl}
}

// Get returns the aggregate for meetingID, from cache when fresh. Cache
// failures degrade to a direct load; they never fail the request.
func (l *Loader) Get(ctx context.Context, meetingID string) (Aggregate, error) {
	if payload, err := l.cache.Get(ctx, meetingID); err != nil {
		log.Printf("loader: cache read for %s: %v", meetingID, err)
	} else if payload != nil {
		var agg Aggregate
		if err := json.Unmarshal(payload, &agg); err == nil {
			return derive(agg), nil
		}
		log.Printf("loader: discarding undecodable cache entry for %s", meetingID)
	}

	agg, err := l.load(ctx, meetingID)
	if err != nil {
		return Aggregate{}, err
	}

	if payload, err := json.Marshal(agg); err == nil {
		if err := l.cache.Set(ctx, meetingID, payload, l.ttl); err != nil {
			log.Printf("loader: cache write for %s: %v", meetingID, err)
		}
	}
	return agg, nil
}

// Invalidate drops the cached aggregate. Called after every confirmed
// remote write.
func (l *Loader) Invalidate(ctx context.Context, meetingID string) {
	if err := l.cache.Delete(ctx, meetingID); err != nil {
		log.Printf("loader: cache invalidate for %s: %v", meetingID, err)
	}
}

func (l *Loader) load(ctx context.Context, meetingID string) (Aggregate, error) {
	m, err := l.store.GetMeeting(ctx, meetingID)
	if err != nil {
		return Aggregate{}, err
	}

	template, err := agenda.Parse(m.Template)
	if err != nil {
		return Aggregate{}, fmt.Errorf("meeting %s template: %w", meetingID, err)
	}

	attendees, err := l.store.ListAttendees(ctx, meetingID)
	if err != nil {
		return Aggregate{}, err
	}

	agg := Aggregate{Meeting: m, Template: template, Attendees: attendees}

	if m.TypeID != nil {
		if t, err := l.store.GetMeetingType(ctx, *m.TypeID); err == nil {
			agg.Type = &t
		} else {
			log.Printf("loader: meeting type %s for %s: %v", *m.TypeID, meetingID, err)
		}
	}
	if m.PhaseID != nil {
		if p, err := l.store.GetPhase(ctx, *m.PhaseID); err == nil {
			agg.Phase = &p
		} else {
			log.Printf("loader: phase %s for %s: %v", *m.PhaseID, meetingID, err)
		}
	}
	if m.InitiativeID != nil {
		if item, err := l.store.GetInitiative(ctx, *m.InitiativeID); err == nil {
			agg.Initiative = &item
		} else {
			log.Printf("loader: initiative %s for %s: %v", *m.InitiativeID, meetingID, err)
		}
	}

	return derive(agg), nil
}

func derive(agg Aggregate) Aggregate {
	agg.Status = meeting.NormalizeStatus(agg.Meeting.Status)
	agg.Permissions = meeting.Permissions(agg.Status)
	if agg.Attendees == nil {
		agg.Attendees = []store.Attendee{}
	}
	return agg
}
