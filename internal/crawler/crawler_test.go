package crawler_test

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"fleahist/internal/crawler"
	"fleahist/internal/domain"
	"fleahist/internal/log"
	"fleahist/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type boughtStep struct {
	ids     []string
	hasMore bool
}

// walkReader serves listing pages from in-memory fixtures and builds
// fresh candidates per call, like a live page read would.
type walkReader struct {
	total       int
	pages       map[int][]string
	visited     []int
	boughtSteps []boughtStep
	boughtCalls int
	failIDs     map[string]error
	fetched     []string
	onListSold  func(page int)
}

func (r *walkReader) ReportedSoldTotal(context.Context) (int, error) { return r.total, nil }

func (r *walkReader) ListSoldPage(_ context.Context, page int) ([]*domain.SoldRecord, error) {
	r.visited = append(r.visited, page)
	if r.onListSold != nil {
		r.onListSold(page)
	}
	var recs []*domain.SoldRecord
	for _, id := range r.pages[page] {
		rec := &domain.SoldRecord{}
		rec.Name = "item " + id
		rec.OrderURL = fmt.Sprintf("https://jp.mercari.com/transaction/%s/", id)
		recs = append(recs, rec)
	}
	return recs, nil
}

func (r *walkReader) ListBoughtPage(_ context.Context, offset int) ([]*domain.BoughtRecord, bool, error) {
	if r.boughtCalls >= len(r.boughtSteps) {
		return nil, false, domain.ErrPageLoad
	}
	step := r.boughtSteps[r.boughtCalls]
	r.boughtCalls++
	var recs []*domain.BoughtRecord
	for _, id := range step.ids {
		rec := &domain.BoughtRecord{}
		rec.Name = "item " + id
		rec.OrderURL = fmt.Sprintf("https://jp.mercari.com/transaction/%s/", id)
		recs = append(recs, rec)
	}
	return recs, step.hasMore, nil
}

func (r *walkReader) FetchDescription(_ context.Context, rec *domain.Record) (domain.Fields, error) {
	if err := r.failIDs[rec.ID]; err != nil {
		return nil, err
	}
	r.fetched = append(r.fetched, rec.ID)
	return domain.Fields{"condition": "good"}, nil
}

func (r *walkReader) FetchTransaction(context.Context, *domain.Record) (domain.Fields, error) {
	return nil, nil
}

// recordingSink tallies counter positions for assertions.
type recordingSink struct {
	totals  map[string]int
	current map[string]int
}

func newRecordingSink() *recordingSink {
	return &recordingSink{totals: map[string]int{}, current: map[string]int{}}
}

func (s *recordingSink) StartCounter(label string, total int) { s.totals[label] = total }
func (s *recordingSink) Advance(label string, delta int)      { s.current[label] += delta }
func (s *recordingSink) SetStatus(string, bool)               {}

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "records.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func seedSold(t *testing.T, s *store.Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		rec := &domain.SoldRecord{}
		rec.ID = id
		require.NoError(t, s.UpsertSold(rec))
	}
}

func seedBought(t *testing.T, s *store.Store, ids ...string) {
	t.Helper()
	for _, id := range ids {
		rec := &domain.BoughtRecord{}
		rec.ID = id
		require.NoError(t, s.UpsertBought(rec))
	}
}

// Sold fixture: four pages, the third entirely cached already.
func soldFixture() *walkReader {
	return &walkReader{
		total: 80,
		pages: map[int][]string{
			1: {"m11", "m12"},
			2: {"m21"},
			3: {"m31", "m32"},
			4: {"m41"},
		},
	}
}

func TestSoldWalk_IncrementalStopsAtStalePage(t *testing.T) {
	reader := soldFixture()
	st := newTestStore(t)
	seedSold(t, st, "m31", "m32")
	sink := newRecordingSink()

	c := crawler.New(reader, st, sink, nil, log.Null(), time.Millisecond)
	err := c.Run(context.Background(), crawler.Options{Sold: true})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3}, reader.visited)

	found, err := st.Exists(domain.KindSold, "m21")
	require.NoError(t, err)
	assert.True(t, found)
	found, err = st.Exists(domain.KindSold, "m41")
	require.NoError(t, err)
	assert.False(t, found)

	// Counters end at their totals even though page 4 was skipped.
	assert.Equal(t, 80, sink.current["[collect] Sold items"])
	assert.Equal(t, 4, sink.current["[collect] Sold pages"])
}

func TestSoldWalk_FullResyncVisitsAllPages(t *testing.T) {
	reader := soldFixture()
	st := newTestStore(t)
	seedSold(t, st, "m31", "m32")

	c := crawler.New(reader, st, domain.NopSink{}, nil, log.Null(), time.Millisecond)
	err := c.Run(context.Background(), crawler.Options{Sold: true, Full: true})
	require.NoError(t, err)

	assert.Equal(t, []int{1, 2, 3, 4}, reader.visited)
	found, err := st.Exists(domain.KindSold, "m41")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestSoldWalk_StoresReportedTotal(t *testing.T) {
	reader := soldFixture()
	st := newTestStore(t)
	seedSold(t, st, "m31", "m32")

	c := crawler.New(reader, st, domain.NopSink{}, nil, log.Null(), time.Millisecond)
	require.NoError(t, c.Run(context.Background(), crawler.Options{Sold: true}))

	n, err := st.MetadataInt(domain.MetaSoldTotal, 0)
	require.NoError(t, err)
	assert.Equal(t, 80, n)
}

func TestSoldWalk_FirstRecordErrorAborts(t *testing.T) {
	reader := soldFixture()
	reader.failIDs = map[string]error{"m11": domain.ErrPageLoad}
	st := newTestStore(t)

	c := crawler.New(reader, st, domain.NopSink{}, nil, log.Null(), time.Millisecond)
	err := c.Run(context.Background(), crawler.Options{Sold: true})

	var batchErr *domain.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, domain.KindSold, batchErr.Kind)
	assert.Equal(t, "m11", batchErr.ID)

	count, err := st.Count(domain.KindSold)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestSoldWalk_LaterRecordErrorContinues(t *testing.T) {
	reader := soldFixture()
	reader.failIDs = map[string]error{"m12": domain.ErrPageLoad}
	st := newTestStore(t)
	seedSold(t, st, "m31", "m32")

	c := crawler.New(reader, st, domain.NopSink{}, nil, log.Null(), time.Millisecond)
	require.NoError(t, c.Run(context.Background(), crawler.Options{Sold: true}))

	recs, err := st.ListSold()
	require.NoError(t, err)

	byID := map[string]*domain.SoldRecord{}
	for _, rec := range recs {
		byID[rec.ID] = rec
	}
	require.Contains(t, byID, "m12")
	assert.NotEmpty(t, byID["m12"].Error)
	require.Contains(t, byID, "m21")
	assert.Empty(t, byID["m21"].Error)
}

func TestRun_CancellationSkipsBoughtWalk(t *testing.T) {
	reader := soldFixture()
	ctx, cancel := context.WithCancel(context.Background())
	reader.onListSold = func(int) { cancel() }
	st := newTestStore(t)

	c := crawler.New(reader, st, domain.NopSink{}, nil, log.Null(), time.Millisecond)
	err := c.Run(ctx, crawler.Options{Sold: true, Bought: true})
	assert.ErrorIs(t, err, context.Canceled)

	assert.Equal(t, 0, reader.boughtCalls)
	count, err := st.Count(domain.KindSold)
	require.NoError(t, err)
	assert.Equal(t, 0, count)
}

func TestBoughtWalk_IncrementalFetchesUnseenOnly(t *testing.T) {
	reader := &walkReader{
		boughtSteps: []boughtStep{
			{ids: []string{"o1", "o2"}, hasMore: true},
			{ids: []string{"o3"}, hasMore: true},
			{ids: []string{"o4"}, hasMore: false},
		},
	}
	st := newTestStore(t)
	seedBought(t, st, "o1", "o4")

	c := crawler.New(reader, st, domain.NopSink{}, nil, log.Null(), time.Millisecond)
	require.NoError(t, c.Run(context.Background(), crawler.Options{Bought: true}))

	assert.ElementsMatch(t, []string{"o2", "o3"}, reader.fetched)

	count, err := st.Count(domain.KindBought)
	require.NoError(t, err)
	assert.Equal(t, 4, count)

	n, err := st.MetadataInt(domain.MetaBoughtTotal, 0)
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestBoughtWalk_IncrementalStopsAtAllCachedStep(t *testing.T) {
	reader := &walkReader{
		boughtSteps: []boughtStep{
			{ids: []string{"o1"}, hasMore: true},
			{ids: []string{"o2"}, hasMore: true},
		},
	}
	st := newTestStore(t)
	seedBought(t, st, "o1")

	c := crawler.New(reader, st, domain.NopSink{}, nil, log.Null(), time.Millisecond)
	require.NoError(t, c.Run(context.Background(), crawler.Options{Bought: true}))

	assert.Equal(t, 1, reader.boughtCalls)
	assert.Empty(t, reader.fetched)
}

func TestBoughtWalk_FullReverifiesCachedRecords(t *testing.T) {
	reader := &walkReader{
		boughtSteps: []boughtStep{
			{ids: []string{"o1", "o2"}, hasMore: true},
			{ids: []string{"o3"}, hasMore: false},
		},
	}
	st := newTestStore(t)
	seedBought(t, st, "o1")

	c := crawler.New(reader, st, domain.NopSink{}, nil, log.Null(), time.Millisecond)
	require.NoError(t, c.Run(context.Background(), crawler.Options{Bought: true, Full: true}))

	assert.ElementsMatch(t, []string{"o1", "o2", "o3"}, reader.fetched)
}

func TestBoughtWalk_StepFailureProcessesAccumulated(t *testing.T) {
	reader := &walkReader{
		boughtSteps: []boughtStep{
			{ids: []string{"o1"}, hasMore: true},
			// No further recorded steps: the next read keeps failing.
		},
	}
	st := newTestStore(t)

	c := crawler.New(reader, st, domain.NopSink{}, nil, log.Null(), time.Millisecond)
	require.NoError(t, c.Run(context.Background(), crawler.Options{Bought: true}))

	found, err := st.Exists(domain.KindBought, "o1")
	require.NoError(t, err)
	assert.True(t, found)
}

func TestBoughtWalk_FirstRecordErrorAborts(t *testing.T) {
	reader := &walkReader{
		boughtSteps: []boughtStep{
			{ids: []string{"o1", "o2"}, hasMore: false},
		},
		failIDs: map[string]error{"o1": domain.ErrPageFormat},
	}
	st := newTestStore(t)

	c := crawler.New(reader, st, domain.NopSink{}, nil, log.Null(), time.Millisecond)
	err := c.Run(context.Background(), crawler.Options{Bought: true})

	var batchErr *domain.BatchError
	require.ErrorAs(t, err, &batchErr)
	assert.Equal(t, domain.KindBought, batchErr.Kind)
	assert.Equal(t, "o1", batchErr.ID)
}
