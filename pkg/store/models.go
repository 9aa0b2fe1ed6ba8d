package store

import (
	"time"

	"github.com/google/uuid"
)

// CacheEntry is one persisted dictionary lookup. Record holds the JSON
// encoding of the enrichment record.
type CacheEntry struct {
	Lemma     string
	Category  string
	Record    []byte
	FetchedAt time.Time
}

// Source is a provenance record for an input document.
type Source struct {
	ID         int64
	SourceType string
	Title      string
	Path       string
	Checksum   string
	AddedAt    time.Time
}

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunSucceeded RunStatus = "succeeded"
	RunFailed    RunStatus = "failed"
)

// Run records one invocation of the pipeline over a source.
type Run struct {
	ID         uuid.UUID
	SourceID   int64
	Status     RunStatus
	StartedAt  time.Time
	FinishedAt time.Time

	Tokens     int
	Candidates int
	Kept       int
	Enriched   int
	CacheHits  int
	Fetched    int
	Failed     int
	OutputPath string
	Error      string
}
