package domain

// SegmentMatch is one vector index hit.
type SegmentMatch struct {
	Segment Segment
	Score   float64
}

// CombinedSearchResult is a vector match joined with its document's title.
type CombinedSearchResult struct {
	Score        float64 `json:"score"`
	Text         string  `json:"text"`
	DocumentID   string  `json:"documentId"`
	Title        string  `json:"title"`
	SegmentIndex int     `json:"segmentIndex"`
}
