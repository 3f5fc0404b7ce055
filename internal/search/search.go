package search

// Result is a single search hit returned to the caller.
type Result struct {
	MeetingID string `json:"meetingId"`
	Name      string `json:"name"`
	Snippet   string `json:"snippet"`
	Status    string `json:"status"`
	Location  string `json:"location,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text         string
	FilterStatus string // empty = all statuses
	Limit        int
	Offset       int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
}

// Searcher can execute a full-text search over meetings.
type Searcher interface {
	Search(q Query) ([]Result, int, error)
	Healthy() bool
}

// MeetingRecord is the data we index for a meeting.
type MeetingRecord struct {
	ID                string `json:"id"`
	Name              string `json:"name"`
	Status            string `json:"status"`
	Location          string `json:"location"`
	Objectives        string `json:"objectives"`
	KeyMessages       string `json:"keyMessages"`
	UnstructuredNotes string `json:"unstructuredNotes"`
	MeetingSummary    string `json:"meetingSummary"`
}
