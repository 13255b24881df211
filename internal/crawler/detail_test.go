package crawler_test

import (
	"context"
	"testing"
	"time"

	"fleahist/internal/crawler"
	"fleahist/internal/domain"
	"fleahist/internal/log"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fetchReader serves detail fetches only; listing methods are unused by
// the fetcher.
type fetchReader struct {
	descErr   error
	descCalls int
	txCalls   int
	fields    domain.Fields
}

func (r *fetchReader) ReportedSoldTotal(context.Context) (int, error) { return 0, nil }
func (r *fetchReader) ListSoldPage(context.Context, int) ([]*domain.SoldRecord, error) {
	return nil, nil
}
func (r *fetchReader) ListBoughtPage(context.Context, int) ([]*domain.BoughtRecord, bool, error) {
	return nil, false, nil
}

func (r *fetchReader) FetchDescription(_ context.Context, rec *domain.Record) (domain.Fields, error) {
	r.descCalls++
	if r.descErr != nil {
		return nil, r.descErr
	}
	return r.fields, nil
}

func (r *fetchReader) FetchTransaction(_ context.Context, rec *domain.Record) (domain.Fields, error) {
	r.txCalls++
	return nil, nil
}

func newRecord(id string) *domain.SoldRecord {
	rec := &domain.SoldRecord{}
	rec.ID = id
	rec.Source = domain.SourceMarket
	return rec
}

func TestFetchDetail_Success(t *testing.T) {
	reader := &fetchReader{fields: domain.Fields{"name": "camera", "price": "¥1,500"}}
	f := crawler.NewFetcher(reader, nil, log.Null(), time.Millisecond)
	rec := newRecord("m1")

	require.NoError(t, f.FetchDetail(context.Background(), rec))
	assert.Empty(t, rec.Error)
	assert.Equal(t, "camera", rec.Name)
	assert.Equal(t, 1500, rec.Price)
	assert.Equal(t, 1, rec.ItemCount)
	assert.Equal(t, rec.DescriptionURL(), rec.DetailURL)
	assert.Equal(t, 1, reader.descCalls)
	assert.Equal(t, 1, reader.txCalls)
}

func TestFetchDetail_RetryBound(t *testing.T) {
	reader := &fetchReader{descErr: domain.ErrPageLoad}
	f := crawler.NewFetcher(reader, nil, log.Null(), time.Millisecond)
	rec := newRecord("m1")

	require.NoError(t, f.FetchDetail(context.Background(), rec))
	assert.Equal(t, 3, reader.descCalls)
	assert.NotEmpty(t, rec.Error)
}

func TestFetchDetail_ListingGoneShortCircuits(t *testing.T) {
	reader := &fetchReader{descErr: domain.ErrListingGone}
	f := crawler.NewFetcher(reader, nil, log.Null(), time.Millisecond)
	rec := newRecord("m1")

	require.NoError(t, f.FetchDetail(context.Background(), rec))
	assert.Equal(t, 1, reader.descCalls)
	assert.NotEmpty(t, rec.Error)
}

func TestFetchDetail_LoginErrorPropagates(t *testing.T) {
	reader := &fetchReader{descErr: domain.ErrLogin}
	f := crawler.NewFetcher(reader, nil, log.Null(), time.Millisecond)
	rec := newRecord("m1")

	err := f.FetchDetail(context.Background(), rec)
	assert.ErrorIs(t, err, domain.ErrLogin)
	assert.Equal(t, 1, reader.descCalls)
}

func TestFetchDetail_CancelledContextPropagates(t *testing.T) {
	reader := &fetchReader{descErr: domain.ErrPageLoad}
	f := crawler.NewFetcher(reader, nil, log.Null(), time.Minute)
	rec := newRecord("m1")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := f.FetchDetail(ctx, rec)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchDetail_BadFieldRecordedAfterRetries(t *testing.T) {
	reader := &fetchReader{fields: domain.Fields{"price": "free"}}
	f := crawler.NewFetcher(reader, nil, log.Null(), time.Millisecond)
	rec := newRecord("m1")

	require.NoError(t, f.FetchDetail(context.Background(), rec))
	assert.Equal(t, 3, reader.descCalls)
	assert.NotEmpty(t, rec.Error)
}
