package domain

import "time"

// UnknownTitle is attached to search results whose owning document has no registry entry.
const UnknownTitle = "Unknown Title"

// RegistryEntry is the stored metadata of one ingested document.
type RegistryEntry struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// Segment is a contiguous slice of a document's text plus its embedding.
type Segment struct {
	DocumentID    string    `json:"documentId"`
	Text          string    `json:"text"`
	Vector        []float32 `json:"vector,omitempty"`
	SequenceIndex int       `json:"sequenceIndex"`
}

type IngestResult struct {
	DocumentID string `json:"documentId"`
	Title      string `json:"title"`
	Segments   int    `json:"segments"`
}

// IngestRequest is the queued form of an ingestion call.
type IngestRequest struct {
	Title      string    `json:"title"`
	Text       string    `json:"text"`
	EnqueuedAt time.Time `json:"enqueuedAt"`
}

// LoadedFile is the outcome of ingesting one file from a source directory.
type LoadedFile struct {
	Path       string `json:"path"`
	Title      string `json:"title"`
	DocumentID string `json:"documentId,omitempty"`
	Segments   int    `json:"segments"`
	Skipped    bool   `json:"skipped,omitempty"`
	Error      string `json:"error,omitempty"`
}
