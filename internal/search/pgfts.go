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

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

// Search executes a UNION ALL query across leads and requirements using
// plainto_tsquery and ts_rank, with ts_headline for snippets.
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

	var subQueries []string

	if q.FilterType == "" || q.FilterType == ResultLead {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'lead'::text AS type, l.id, l.customer_name AS title,
				ts_headline('english', concat_ws(' ', l.city, l.source), %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				l.id AS lead_id, l.status,
				ts_rank(to_tsvector('english', concat_ws(' ', l.customer_name, l.city, l.source)), %s) AS rank
			FROM leads l
			WHERE to_tsvector('english', concat_ws(' ', l.customer_name, l.city, l.source)) @@ %s`,
			tsQuery, tsQuery, tsQuery))
	}

	if q.FilterType == "" || q.FilterType == ResultRequirement {
		subQueries = append(subQueries, fmt.Sprintf(`
			SELECT 'requirement'::text AS type, r.id, r.title,
				ts_headline('english', r.title, %s, 'MaxFragments=1,MaxWords=30') AS snippet,
				r.lead_id, r.status,
				ts_rank(to_tsvector('english', r.title), %s) AS rank
			FROM requirements r
			WHERE to_tsvector('english', r.title) @@ %s`,
			tsQuery, tsQuery, tsQuery))
	}

	if len(subQueries) == 0 {
		return nil, 0, nil
	}

	countSQL := fmt.Sprintf("SELECT count(*) FROM (%s) sub",
		strings.Join(subQueries, " UNION ALL "))

	dataSQL := fmt.Sprintf(`SELECT type, id, title, snippet, lead_id, status
		FROM (%s) sub
		ORDER BY rank DESC
		LIMIT %d OFFSET %d`,
		strings.Join(subQueries, " UNION ALL "),
		limit, offset)

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
		var typ string
		if err := rows.Scan(&typ, &r.ID, &r.Title, &r.Snippet, &r.LeadID, &r.Status); err != nil {
			return nil, 0, fmt.Errorf("pgfts scan: %w", err)
		}
		r.Type = ResultType(typ)
		results = append(results, r)
	}

	return results, total, rows.Err()
}

// LoadAllRecords returns all searchable records for full reindexing.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]LeadRecord, []RequirementRecord, error) {
	leadRows, err := p.db.QueryContext(ctx, `
		SELECT id, customer_name, city, source, status
		FROM leads
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load leads: %w", err)
	}
	defer leadRows.Close()

	leads := make([]LeadRecord, 0)
	for leadRows.Next() {
		var l LeadRecord
		if err := leadRows.Scan(&l.ID, &l.CustomerName, &l.City, &l.Source, &l.Status); err != nil {
			return nil, nil, fmt.Errorf("scan lead: %w", err)
		}
		leads = append(leads, l)
	}
	if err := leadRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate leads: %w", err)
	}

	reqRows, err := p.db.QueryContext(ctx, `
		SELECT id, title, lead_id, status
		FROM requirements
	`)
	if err != nil {
		return nil, nil, fmt.Errorf("load requirements: %w", err)
	}
	defer reqRows.Close()

	requirements := make([]RequirementRecord, 0)
	for reqRows.Next() {
		var r RequirementRecord
		if err := reqRows.Scan(&r.ID, &r.Title, &r.LeadID, &r.Status); err != nil {
			return nil, nil, fmt.Errorf("scan requirement: %w", err)
		}
		requirements = append(requirements, r)
	}
	if err := reqRows.Err(); err != nil {
		return nil, nil, fmt.Errorf("iterate requirements: %w", err)
	}

	return leads, requirements, nil
}
