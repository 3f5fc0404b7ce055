package search

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// PgFTS implements Searcher using PostgreSQL full-text search as a fallback.
type PgFTS struct {
	db *sql.DB
}

// NewPgFTS creates a PostgreSQL FTS searcher.
func NewPgFTS(db *sql.DB) *PgFTS {
	return &PgFTS{db: db}
}

// Healthy always returns true — if Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search queries meetings.fts with plainto_tsquery, ranked by ts_rank and
// snippeted with ts_headline.
func (p *PgFTS) Search(q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}

	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	tsQuery := "plainto_tsquery('english', $1)"
	args := []any{q.Text}

	where := "m.fts @@ " + tsQuery
	if q.FilterStatus != "" {
		where += " AND m.status = $2"
		args = append(args, q.FilterStatus)
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM meetings m WHERE %s", where)
	dataSQL := fmt.Sprintf(`
		SELECT m.id, m.name,
			ts_headline('english',
				coalesce(m.unstructured_notes, '') || ' ' || coalesce(m.objectives, ''),
				%s, 'MaxFragments=1,MaxWords=30') AS snippet,
			m.status, coalesce(m.location, '')
		FROM meetings m
		WHERE %s
		ORDER BY ts_rank(m.fts, %s) DESC
		LIMIT %d OFFSET %d`, tsQuery, where, tsQuery, limit, offset)

	ctx := context.Background()

	var total int
	if err := p.db.QueryRowContext(ctx, countSQL, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("pgfts count: %w", err)
	}

	rows, err := p.db.QueryContext(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts query: %w", err)
	}
	defer rows.Close()

	var results []Result
	for rows.Next() {
		var r Result
		if err := rows.Scan(&r.MeetingID, &r.Name, &r.Snippet, &r.Status, &r.Location); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all indexable meetings for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]MeetingRecord, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT id, name, status,
			coalesce(location, ''), coalesce(objectives, ''), coalesce(key_messages, ''),
			coalesce(unstructured_notes, ''), coalesce(meeting_summary, '')
		FROM meetings
	`)
	if err != nil {
		return nil, fmt.Errorf("load meetings: %w", err)
	}
	defer rows.Close()

	records := make([]MeetingRecord, 0)
	for rows.Next() {
		var rec MeetingRecord
		if err := rows.Scan(&rec.ID, &rec.Name, &rec.Status, &rec.Location,
			&rec.Objectives, &rec.KeyMessages, &rec.UnstructuredNotes, &rec.MeetingSummary); err != nil {
			return nil, fmt.Errorf("scan meeting: %w", err)
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate meetings: %w", err)
	}
	return records, nil
}
