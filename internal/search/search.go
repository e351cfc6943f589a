package search

// ResultType identifies the kind of entity in a search result.
type ResultType string

const (
	ResultLead        ResultType = "lead"
	ResultRequirement ResultType = "requirement"
)

// Result is a single search hit returned to the caller.
type Result struct {
	Type    ResultType `json:"type"`
	ID      string     `json:"id"`
	Title   string     `json:"title"`
	Snippet string     `json:"snippet"`
	LeadID  string     `json:"leadId"`
	Status  string     `json:"status,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text       string
	FilterType ResultType // empty = all types
	Limit      int
	Offset     int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// Indexer can push entities into a search index.
type Indexer interface {
	IndexLead(l LeadRecord) error
	IndexRequirement(r RequirementRecord) error
	DeleteLead(id string) error
}

// LeadRecord is the data we index for a lead.
type LeadRecord struct {
	ID           string `json:"id"`
	CustomerName string `json:"customerName"`
	City         string `json:"city"`
	Source       string `json:"source"`
	Status       string `json:"status"`
}

// RequirementRecord is the data we index for a requirement.
type RequirementRecord struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	LeadID string `json:"leadId"`
	Status string `json:"status"`
}
