// Package crawler walks the two transaction histories, classifies
// candidates against the cache and fetches details for whatever is new.
package crawler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"fleahist/internal/domain"
)

// pageSize is the fixed number of records per sold-history page.
const pageSize = 20

// Counter labels reported to the progress sink.
const (
	soldPagesLabel   = "[collect] Sold pages"
	soldItemsLabel   = "[collect] Sold items"
	boughtItemsLabel = "[collect] Bought items"
)

// Options selects which walks a run performs.
type Options struct {
	Sold   bool
	Bought bool
	// Full revisits every page and re-verifies cached bought records
	// instead of stopping at the first all-cached step.
	Full bool
}

// Crawler drives both walks against a single page reader session.
type Crawler struct {
	reader  domain.PageReader
	cache   domain.Cache
	sink    domain.ProgressSink
	fetcher *Fetcher
	logger  *slog.Logger
}

// New creates a crawler. sink may be domain.NopSink; dumper may be nil.
func New(reader domain.PageReader, cache domain.Cache, sink domain.ProgressSink, dumper domain.Dumper, logger *slog.Logger, backoff time.Duration) *Crawler {
	if sink == nil {
		sink = domain.NopSink{}
	}
	return &Crawler{
		reader:  reader,
		cache:   cache,
		sink:    sink,
		fetcher: NewFetcher(reader, dumper, logger, backoff),
		logger:  logger,
	}
}

// Run performs the selected walks in order, sold first. Cancellation
// observed during the sold walk skips the bought walk entirely.
func (c *Crawler) Run(ctx context.Context, opts Options) error {
	if opts.Sold {
		if err := c.walkSold(ctx, opts.Full); err != nil {
			return fmt.Errorf("sold walk: %w", err)
		}
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if opts.Bought {
		if err := c.walkBought(ctx, opts.Full); err != nil {
			return fmt.Errorf("bought walk: %w", err)
		}
	}
	c.sink.SetStatus("collection complete", false)
	return nil
}

// walkSold pages through the sold history. Incremental mode stops at
// the first page yielding zero new records; full mode visits every
// computed page.
func (c *Crawler) walkSold(ctx context.Context, full bool) error {
	total, err := c.reader.ReportedSoldTotal(ctx)
	if err != nil {
		return err
	}
	if err := c.cache.SetMetadataInt(domain.MetaSoldTotal, total); err != nil {
		return err
	}
	c.logger.Info("sold walk started", "reported_total", total, "full", full)

	pages := (total + pageSize - 1) / pageSize
	c.sink.StartCounter(soldPagesLabel, pages)
	c.sink.StartCounter(soldItemsLabel, total)
	c.sink.SetStatus("collecting sold records", false)

	checked := 0
	visited := 0
	firstFetch := true
	for page := 1; page <= pages; page++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		candidates, err := c.reader.ListSoldPage(ctx, page)
		if err != nil {
			return err
		}

		newOnPage := 0
		for _, rec := range candidates {
			if err := ctx.Err(); err != nil {
				return err
			}
			if err := domain.AssignID(rec); err != nil {
				return err
			}
			cached, err := c.cache.Exists(domain.KindSold, rec.ID)
			if err != nil {
				return err
			}
			if cached {
				c.logger.Debug("record already cached", "kind", domain.KindSold, "id", rec.ID)
				checked++
				c.sink.Advance(soldItemsLabel, 1)
				continue
			}

			if err := c.fetcher.FetchDetail(ctx, rec); err != nil {
				return err
			}
			if firstFetch && rec.Error != "" {
				return &domain.BatchError{Kind: domain.KindSold, ID: rec.ID, Msg: rec.Error}
			}
			firstFetch = false

			if err := c.cache.UpsertSold(rec); err != nil {
				return err
			}
			if err := c.touch(); err != nil {
				return err
			}
			newOnPage++
			checked++
			c.sink.Advance(soldItemsLabel, 1)
		}

		visited++
		c.sink.Advance(soldPagesLabel, 1)
		if !full && newOnPage == 0 {
			c.logger.Info("sold walk stopped early", "page", page, "checked", checked)
			break
		}
	}

	// Counters cover records on pages the stopping rule never visited.
	c.sink.Advance(soldPagesLabel, pages-visited)
	c.sink.Advance(soldItemsLabel, total-checked)
	return nil
}

// walkBought accumulates a working batch through the cumulative cursor,
// then processes it record by record like the sold walk.
func (c *Crawler) walkBought(ctx context.Context, full bool) error {
	c.logger.Info("bought walk started", "full", full)
	c.sink.SetStatus("scanning purchase history", false)

	var batch []*domain.BoughtRecord
	offset := 0
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		candidates, hasMore, err := c.listBoughtStep(ctx, offset)
		if err != nil {
			if errors.Is(err, domain.ErrLogin) || ctx.Err() != nil {
				return err
			}
			// Retries exhausted; process whatever accumulated so far.
			c.logger.Warn("purchase history step failed, stopping accumulation",
				"offset", offset, "error", err)
			break
		}

		unseen := 0
		for _, rec := range candidates {
			if err := domain.AssignID(rec); err != nil {
				return err
			}
			cached, err := c.cache.Exists(domain.KindBought, rec.ID)
			if err != nil {
				return err
			}
			if cached {
				c.logger.Debug("record already cached", "kind", domain.KindBought, "id", rec.ID)
				if full {
					batch = append(batch, rec)
				}
				continue
			}
			batch = append(batch, rec)
			unseen++
		}
		offset += len(candidates)
		c.sink.SetStatus(fmt.Sprintf("scanning purchase history (%d seen)", offset), false)

		if !full && unseen == 0 {
			break
		}
		if !hasMore {
			break
		}
	}

	c.sink.StartCounter(boughtItemsLabel, len(batch))
	firstFetch := true
	for _, rec := range batch {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := c.fetcher.FetchDetail(ctx, rec); err != nil {
			return err
		}
		if firstFetch && rec.Error != "" {
			return &domain.BatchError{Kind: domain.KindBought, ID: rec.ID, Msg: rec.Error}
		}
		firstFetch = false

		if err := c.cache.UpsertBought(rec); err != nil {
			return err
		}
		if err := c.touch(); err != nil {
			return err
		}
		c.sink.Advance(boughtItemsLabel, 1)
	}

	count, err := c.cache.Count(domain.KindBought)
	if err != nil {
		return err
	}
	if err := c.cache.SetMetadataInt(domain.MetaBoughtTotal, count); err != nil {
		return err
	}
	c.logger.Info("bought walk finished", "fetched", len(batch), "total", count)
	return nil
}

// listBoughtStep reads one cursor step, retrying transient failures up
// to the attempt bound with a diagnostic dump per failure.
func (c *Crawler) listBoughtStep(ctx context.Context, offset int) ([]*domain.BoughtRecord, bool, error) {
	var lastErr error
	for attempt := 1; attempt <= fetchAttempts; attempt++ {
		if attempt > 1 {
			if err := sleepCtx(ctx, c.fetcher.backoff*time.Duration(attempt-1)); err != nil {
				return nil, false, err
			}
		}
		candidates, hasMore, err := c.reader.ListBoughtPage(ctx, offset)
		if err == nil {
			return candidates, hasMore, nil
		}
		if errors.Is(err, domain.ErrLogin) {
			return nil, false, err
		}
		if ctx.Err() != nil {
			return nil, false, ctx.Err()
		}
		lastErr = err
		c.logger.Warn("purchase history page failed",
			"offset", offset,
			"attempt", attempt,
			"error", err)
		if c.fetcher.dumper != nil {
			c.fetcher.dumper.Dump(fmt.Sprintf("bought-offset%d-attempt%d", offset, attempt))
		}
	}
	return nil, false, lastErr
}

func (c *Crawler) touch() error {
	return c.cache.SetMetadata(domain.MetaLastModified, time.Now().Format(time.RFC3339))
}
