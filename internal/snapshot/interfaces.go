package snapshot

import (
	"context"
	"io"
	"iter"
	"time"
)

// FetchOptions bounds a single fetch attempt.
type FetchOptions struct {
	// PageLoadTimeout caps navigation and download time. Exceeding it is a
	// fetch fault.
	PageLoadTimeout time.Duration
	// TableWait caps how long to wait for TableSelector once the page loaded.
	// Exceeding it yields ErrNoTable.
	TableWait     time.Duration
	TableSelector string
}

// PageFetcher acquires a page for a snapshot URL.
type PageFetcher interface {
	Fetch(ctx context.Context, url string, opts FetchOptions) (PageHandle, error)
}

// PageHandle exposes the rows of the page's data table.
type PageHandle interface {
	FindTableRows() iter.Seq[RowHandle]
}

// RowHandle exposes the data cells of one table row.
type RowHandle interface {
	Cells() []string
}

// SourceHTML is implemented by page handles that retain the raw document.
type SourceHTML interface {
	HTML() []byte
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes run notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// RecordStore persists harvested records.
type RecordStore interface {
	StoreRecords(ctx context.Context, runID string, records []Record) error
}

// Hasher computes content digests.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time and sleeps (useful for testing).
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration) error
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
