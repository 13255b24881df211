// Package replay serves recorded crawl sessions from a JSON fixture
// file. It stands in for the live browser session during development
// and in tests, and is the reference implementation of the page-reader
// port.
package replay

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"fleahist/internal/crawler"
	"fleahist/internal/domain"
)

type rawFields map[string]any

type boughtStep struct {
	Candidates []rawFields `json:"candidates"`
	HasMore    bool        `json:"has_more"`
}

type detail struct {
	Gone        bool      `json:"gone,omitempty"`
	Description rawFields `json:"description"`
	Transaction rawFields `json:"transaction"`
}

type fixture struct {
	SoldTotal   int               `json:"sold_total"`
	SoldPages   [][]rawFields     `json:"sold_pages"`
	BoughtSteps []boughtStep      `json:"bought_steps"`
	Details     map[string]detail `json:"details"`
}

// Reader replays a recorded session. It also acts as the diagnostic
// dumper, writing tag files into the debug directory.
type Reader struct {
	fx       fixture
	debugDir string
	step     int
}

// Open loads a fixture file. debugDir may be empty to disable dumps.
func Open(path, debugDir string) (*Reader, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("open replay fixture: %w", err)
	}
	var fx fixture
	if err := json.Unmarshal(data, &fx); err != nil {
		return nil, fmt.Errorf("decode replay fixture: %w", err)
	}
	return &Reader{fx: fx, debugDir: debugDir}, nil
}

func (r *Reader) ReportedSoldTotal(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return r.fx.SoldTotal, nil
}

func (r *Reader) ListSoldPage(ctx context.Context, page int) ([]*domain.SoldRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if page < 1 || page > len(r.fx.SoldPages) {
		return nil, nil
	}
	var recs []*domain.SoldRecord
	for _, raw := range r.fx.SoldPages[page-1] {
		rec := &domain.SoldRecord{}
		if err := crawler.ApplyFields(rec, normalize(raw)); err != nil {
			return nil, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// ListBoughtPage replays the recorded cursor steps in order; the offset
// only confirms how far the caller believes it has read.
func (r *Reader) ListBoughtPage(ctx context.Context, offset int) ([]*domain.BoughtRecord, bool, error) {
	if err := ctx.Err(); err != nil {
		return nil, false, err
	}
	if r.step >= len(r.fx.BoughtSteps) {
		return nil, false, nil
	}
	step := r.fx.BoughtSteps[r.step]
	r.step++

	var recs []*domain.BoughtRecord
	for _, raw := range step.Candidates {
		rec := &domain.BoughtRecord{}
		if err := crawler.ApplyFields(rec, normalize(raw)); err != nil {
			return nil, false, err
		}
		recs = append(recs, rec)
	}
	return recs, step.HasMore, nil
}

func (r *Reader) FetchDescription(ctx context.Context, rec *domain.Record) (domain.Fields, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, ok := r.fx.Details[rec.ID]
	if !ok {
		return nil, fmt.Errorf("%w: no recorded detail for %s", domain.ErrPageLoad, rec.ID)
	}
	if d.Gone {
		return nil, domain.ErrListingGone
	}
	return normalize(d.Description), nil
}

func (r *Reader) FetchTransaction(ctx context.Context, rec *domain.Record) (domain.Fields, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	d, ok := r.fx.Details[rec.ID]
	if !ok {
		return nil, fmt.Errorf("%w: no recorded detail for %s", domain.ErrPageLoad, rec.ID)
	}
	return normalize(d.Transaction), nil
}

// Dump records the tag into the debug directory. Best effort.
func (r *Reader) Dump(tag string) {
	if r.debugDir == "" {
		return
	}
	name := fmt.Sprintf("%s-%d.txt", tag, time.Now().UnixNano())
	_ = os.WriteFile(filepath.Join(r.debugDir, name), []byte(tag+"\n"), 0644)
}

// normalize converts decoded JSON values into the shapes SetField
// expects: float64 to int, []any of strings to []string.
func normalize(raw rawFields) domain.Fields {
	out := make(domain.Fields, len(raw))
	for k, v := range raw {
		switch t := v.(type) {
		case float64:
			out[k] = int(t)
		case []any:
			ss := make([]string, 0, len(t))
			for _, e := range t {
				if s, ok := e.(string); ok {
					ss = append(ss, s)
				}
			}
			out[k] = ss
		default:
			out[k] = v
		}
	}
	return out
}
