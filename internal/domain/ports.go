package domain

import "context"

// Fields carries raw scraped values keyed by serialized field name.
// Scalars arrive as strings (or pre-typed values) and category as
// []string; the detail fetcher converts and applies them via SetField.
type Fields map[string]any

// PageReader is the exclusive browser session the walkers drive. Only
// one call is ever in flight; all waiting happens inside the reader.
type PageReader interface {
	// ReportedSoldTotal returns the server-reported number of sold
	// records, read from the first listing page.
	ReportedSoldTotal(ctx context.Context) (int, error)

	// ListSoldPage returns the candidate records on one offset-paged
	// sold-history page (pages start at 1). Candidates carry listing
	// fields only; identity is assigned by the walker.
	ListSoldPage(ctx context.Context, page int) ([]*SoldRecord, error)

	// ListBoughtPage returns the candidates visible beyond offset in the
	// cumulative purchase history, and whether a further "load more"
	// step is available.
	ListBoughtPage(ctx context.Context, offset int) ([]*BoughtRecord, bool, error)

	// FetchDescription reads the item description page. Returns
	// ErrListingGone when the page reports the listing as missing or
	// deleted.
	FetchDescription(ctx context.Context, rec *Record) (Fields, error)

	// FetchTransaction reads the transaction page; the fields returned
	// differ by record source.
	FetchTransaction(ctx context.Context, rec *Record) (Fields, error)
}

// Metadata keys persisted alongside records.
const (
	MetaSoldTotal    = "sold_total_count"
	MetaBoughtTotal  = "bought_total_count"
	MetaLastModified = "last_modified"
)

// Cache is the durable record store consumed by the walkers.
type Cache interface {
	UpsertSold(rec *SoldRecord) error
	UpsertBought(rec *BoughtRecord) error
	Exists(kind Kind, id string) (bool, error)
	Count(kind Kind) (int, error)
	Metadata(key, def string) (string, error)
	MetadataInt(key string, def int) (int, error)
	SetMetadata(key, value string) error
	SetMetadataInt(key string, value int) error
}

// Dumper captures a diagnostic snapshot of the reader session. Best
// effort; failures are ignored by callers.
type Dumper interface {
	Dump(tag string)
}

// ProgressSink receives crawl progress. Implementations must tolerate
// Advance for labels never started. NopSink is a legal substitute.
type ProgressSink interface {
	StartCounter(label string, total int)
	Advance(label string, delta int)
	SetStatus(text string, isError bool)
}

// NopSink discards all progress updates.
type NopSink struct{}

func (NopSink) StartCounter(string, int) {}
func (NopSink) Advance(string, int)      {}
func (NopSink) SetStatus(string, bool)   {}
