package seo

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned by stores when a scan or page does not exist.
var ErrNotFound = errors.New("not found")

// ScanStore persists scan and page metadata.
type ScanStore interface {
	CreateScan(ctx context.Context, scan Scan) error
	UpdateScanStatus(ctx context.Context, scanID string, status ScanStatus, errText string, counters ScanCounters) error
	RecordPage(ctx context.Context, page PageRecord) error
	GetScan(ctx context.Context, scanID string) (Scan, error)
	ListScans(ctx context.Context, limit, offset int) ([]Scan, error)
	ListPages(ctx context.Context, scanID string) ([]PageRecord, error)
}

// SnapshotStore writes raw artifacts (page HTML, drafts) and returns a URI.
type SnapshotStore interface {
	PutObject(ctx context.Context, path string, contentType string, data []byte) (string, error)
}

// Notifier pushes publish/completion events to Pub/Sub (or similar).
type Notifier interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Fetcher fetches a page and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// RenderDetector decides whether a headless render is warranted.
type RenderDetector interface {
	ShouldPromote(probe FetchResponse) bool
}

// Generator is the external AI collaborator that writes drafts.
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (Draft, error)
}

// PostPublisher pushes a finished draft to the CMS.
type PostPublisher interface {
	CreatePost(ctx context.Context, req PublishRequest) (PublishResult, error)
}

// Hasher computes digests for deduplication/integrity.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces scan IDs.
type IDGenerator interface {
	NewID() (string, error)
}
