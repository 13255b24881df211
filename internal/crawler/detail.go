package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fleahist/internal/domain"
	"fleahist/internal/parse"
)

// fetchAttempts bounds both detail fetches and bought listing steps.
const fetchAttempts = 3

// DefaultBackoff is the base retry delay; attempt n waits n times this.
const DefaultBackoff = 5 * time.Second

// Fetcher populates a listing-page record with its detail fields,
// retrying transient page failures up to the attempt bound.
type Fetcher struct {
	reader  domain.PageReader
	dumper  domain.Dumper
	logger  *slog.Logger
	backoff time.Duration
}

// NewFetcher creates a detail fetcher. dumper may be nil.
func NewFetcher(reader domain.PageReader, dumper domain.Dumper, logger *slog.Logger, backoff time.Duration) *Fetcher {
	if backoff <= 0 {
		backoff = DefaultBackoff
	}
	return &Fetcher{
		reader:  reader,
		dumper:  dumper,
		logger:  logger,
		backoff: backoff,
	}
}

// FetchDetail fills in the record behind it. It returns an error only
// for run-fatal conditions (lost login, cancellation); every other
// failure ends up in the record's Error field after the attempt bound,
// so callers inspect Error rather than the return value.
func (f *Fetcher) FetchDetail(ctx context.Context, it domain.Item) error {
	base := it.Base()
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, f.backoff*time.Duration(attempt-1)); err != nil {
				return err
			}
		}

		err := f.attempt(ctx, it)
		if err == nil {
			base.Error = ""
			return nil
		}
		if errors.Is(err, domain.ErrListingGone) {
			// The absence is durably known; do not retry.
			f.logger.Info("listing gone", "id", base.ID, "url", base.DetailURL)
			base.Error = err.Error()
			return nil
		}
		if errors.Is(err, domain.ErrLogin) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		lastErr = err
		f.logger.Warn("detail fetch failed",
			"id", base.ID,
			"attempt", attempt,
			"error", err)
		if f.dumper != nil {
			f.dumper.Dump(fmt.Sprintf("detail-%s-attempt%d", base.ID, attempt))
		}
	}

	base.Error = lastErr.Error()
	return nil
}

// attempt runs both detail sub-steps once. Success requires both.
func (f *Fetcher) attempt(ctx context.Context, it domain.Item) error {
	base := it.Base()
	base.ItemCount = 1
	base.DetailURL = base.DescriptionURL()

	fields, err := f.reader.FetchDescription(ctx, base)
	if err != nil {
		return err
	}
	if err := ApplyFields(it, fields); err != nil {
		return err
	}

	fields, err = f.reader.FetchTransaction(ctx, base)
	if err != nil {
		return err
	}
	return ApplyFields(it, fields)
}

// ApplyFields converts raw scraped values and writes them onto the
// record. A value that fails conversion or names an unknown field is a
// retryable page-format error. Source drivers use it to build listing
// candidates the same way the detail fetcher populates records.
func ApplyFields(it domain.Item, fields domain.Fields) error {
	for name, raw := range fields {
		v, err := convertField(name, raw)
		if err != nil {
			return fmt.Errorf("%w: field %q: %v", domain.ErrPageFormat, name, err)
		}
		if err := it.SetField(name, v); err != nil {
			return fmt.Errorf("%w: %v", domain.ErrPageFormat, err)
		}
	}
	return nil
}

func convertField(name string, raw any) (any, error) {
	s, isString := raw.(string)
	if !isString {
		return raw, nil
	}
	switch name {
	case "price", "postage", "commission", "profit":
		return parse.Price(s)
	case "commission_rate":
		return parse.Rate(s)
	case "occurred_at", "completed_at":
		return parse.DateTime(s)
	case "item_count":
		return parse.Price(s)
	}
	return s, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
