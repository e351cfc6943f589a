package search

import (
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"
)

const (
	idxLeads        = "orbit_leads"
	idxRequirements = "orbit_requirements"

	healthInterval = 10 * time.Second
	defaultLimit   = 20
)

type indexSpec struct {
	uid        string
	resultType ResultType
	filterable []string
	searchable []string
}

var indexSpecs = []indexSpec{
	{
		uid:        idxLeads,
		resultType: ResultLead,
		filterable: []string{"status", "city", "source"},
		searchable: []string{"customerName", "city", "source"},
	},
	{
		uid:        idxRequirements,
		resultType: ResultRequirement,
		filterable: []string{"status", "leadId"},
		searchable: []string{"title"},
	},
}

// Meili implements Searcher and Indexer on Meilisearch. It tolerates the
// engine being down: ranked search degrades to Postgres full-text in the
// service layer, and a background probe reconfigures indexes on recovery.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

func NewMeili(url, apiKey string) *Meili {
	m := &Meili{
		client: meili.New(url, meili.WithAPIKey(apiKey)),
		done:   make(chan struct{}),
	}

	if _, err := m.client.Health(); err != nil {
		log.Printf("search: meilisearch not reachable at %s, continuing degraded: %v", url, err)
	} else {
		m.healthy.Store(true)
		m.ensureIndexes()
	}

	go m.probeLoop()
	return m
}

func (m *Meili) ensureIndexes() {
	for _, spec := range indexSpecs {
		if _, err := m.client.CreateIndex(&meili.IndexConfig{Uid: spec.uid, PrimaryKey: "id"}); err != nil {
			log.Printf("search: create index %s: %v", spec.uid, err)
		}

		index := m.client.Index(spec.uid)
		filterable := make([]interface{}, len(spec.filterable))
		for i, attr := range spec.filterable {
			filterable[i] = attr
		}
		if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
			log.Printf("search: filterable attrs %s: %v", spec.uid, err)
		}
		searchable := spec.searchable
		if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
			log.Printf("search: searchable attrs %s: %v", spec.uid, err)
		}
	}
}

func (m *Meili) probeLoop() {
	ticker := time.NewTicker(healthInterval)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			recovered := err == nil && !m.healthy.Load()
			m.healthy.Store(err == nil)
			if recovered {
				log.Println("search: meilisearch back up, ensuring indexes")
				m.ensureIndexes()
			}
		}
	}
}

// Close stops the background probe.
func (m *Meili) Close() {
	close(m.done)
}

func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// Search fans a query out across the configured indexes (or the one the
// query filters to) and merges the hits.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = defaultLimit
	}

	var queries []*meili.SearchRequest
	for _, spec := range indexSpecs {
		if q.FilterType != "" && q.FilterType != spec.resultType {
			continue
		}
		queries = append(queries, &meili.SearchRequest{
			IndexUID:              spec.uid,
			Query:                 q.Text,
			Limit:                 limit,
			Offset:                int64(q.Offset),
			AttributesToHighlight: []string{"*"},
			HighlightPreTag:       "<mark>",
			HighlightPostTag:      "</mark>",
			ShowRankingScore:      true,
		})
	}
	if len(queries) == 0 {
		return nil, 0, nil
	}

	resp, err := m.client.MultiSearch(&meili.MultiSearchRequest{Queries: queries})
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch multi-search: %w", err)
	}

	var results []Result
	total := 0
	for _, sr := range resp.Results {
		total += int(sr.EstimatedTotalHits)
		resultType := typeForIndex(sr.IndexUID)
		for _, hit := range sr.Hits {
			results = append(results, resultFromHit(hit, resultType))
		}
	}
	return results, total, nil
}

func typeForIndex(uid string) ResultType {
	for _, spec := range indexSpecs {
		if spec.uid == uid {
			return spec.resultType
		}
	}
	return ""
}

func resultFromHit(hit meili.Hit, resultType ResultType) Result {
	r := Result{
		Type:   resultType,
		ID:     hitField(hit, "id"),
		Status: hitField(hit, "status"),
	}
	switch resultType {
	case ResultLead:
		r.Title = pickHighlighted(hit, "customerName")
		r.Snippet = pickHighlighted(hit, "city")
		r.LeadID = r.ID
	case ResultRequirement:
		r.Title = pickHighlighted(hit, "title")
		r.LeadID = hitField(hit, "leadId")
	}
	return r
}

// pickHighlighted prefers the <mark>-annotated form Meilisearch puts under
// _formatted, falling back to the raw field.
func pickHighlighted(hit meili.Hit, key string) string {
	if raw, ok := hit["_formatted"]; ok {
		var formatted map[string]string
		if err := json.Unmarshal(raw, &formatted); err == nil {
			if v := strings.TrimSpace(formatted[key]); v != "" {
				return v
			}
		}
	}
	return hitField(hit, key)
}

func hitField(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return ""
	}
	return s
}

func (m *Meili) IndexLead(l LeadRecord) error {
	_, err := m.client.Index(idxLeads).AddDocuments([]LeadRecord{l}, nil)
	return err
}

func (m *Meili) IndexRequirement(r RequirementRecord) error {
	_, err := m.client.Index(idxRequirements).AddDocuments([]RequirementRecord{r}, nil)
	return err
}

func (m *Meili) DeleteLead(id string) error {
	_, err := m.client.Index(idxLeads).DeleteDocument(id, nil)
	return err
}

func (m *Meili) IndexLeads(leads []LeadRecord) error {
	if len(leads) == 0 {
		return nil
	}
	_, err := m.client.Index(idxLeads).AddDocuments(leads, nil)
	return err
}

func (m *Meili) IndexRequirements(requirements []RequirementRecord) error {
	if len(requirements) == 0 {
		return nil
	}
	_, err := m.client.Index(idxRequirements).AddDocuments(requirements, nil)
	return err
}
