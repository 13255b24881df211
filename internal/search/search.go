// Package search provides fuzzy matching over cached record names.
package search

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	sahilm "github.com/sahilm/fuzzy"

	"fleahist/internal/domain"
)

// Lister is the read side of the cache the service searches over.
type Lister interface {
	ListSold() ([]*domain.SoldRecord, error)
	ListBought() ([]*domain.BoughtRecord, error)
}

// Hit is one matching record.
type Hit struct {
	Kind           domain.Kind
	ID             string
	Name           string
	Score          int   // lower is better
	MatchedIndexes []int // rune positions for highlighting
}

type indexed struct {
	kind domain.Kind
	id   string
	name string
}

// Service searches record names across both kinds.
type Service struct {
	lister Lister
	logger *slog.Logger
}

func NewService(lister Lister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{lister: lister, logger: logger}
}

// Find returns records whose name fuzzy-matches query, best first.
func (s *Service) Find(query string) ([]Hit, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, nil
	}

	entries, err := s.index()
	if err != nil {
		return nil, err
	}

	names := make([]string, len(entries))
	byName := make(map[string][]int, len(entries))
	for i, e := range entries {
		names[i] = e.name
		byName[e.name] = append(byName[e.name], i)
	}

	ranks := fuzzy.RankFindFold(query, names)
	sort.Slice(ranks, func(i, j int) bool {
		return ranks[i].Distance < ranks[j].Distance
	})

	var hits []Hit
	seen := make(map[int]bool)
	for _, rank := range ranks {
		for _, idx := range byName[rank.Target] {
			if seen[idx] {
				continue
			}
			seen[idx] = true
			e := entries[idx]
			hits = append(hits, Hit{
				Kind:           e.kind,
				ID:             e.id,
				Name:           e.name,
				Score:          rank.Distance,
				MatchedIndexes: matchedIndexes(query, e.name),
			})
		}
	}

	s.logger.Debug("search complete", "query", query, "hits", len(hits))
	return hits, nil
}

// matchedIndexes computes character positions for highlighting.
func matchedIndexes(query, name string) []int {
	matches := sahilm.Find(strings.ToLower(query), []string{strings.ToLower(name)})
	if len(matches) == 0 {
		return nil
	}
	return matches[0].MatchedIndexes
}

func (s *Service) index() ([]indexed, error) {
	sold, err := s.lister.ListSold()
	if err != nil {
		return nil, err
	}
	bought, err := s.lister.ListBought()
	if err != nil {
		return nil, err
	}

	entries := make([]indexed, 0, len(sold)+len(bought))
	for _, r := range sold {
		entries = append(entries, indexed{kind: domain.KindSold, id: r.ID, name: r.Name})
	}
	for _, r := range bought {
		entries = append(entries, indexed{kind: domain.KindBought, id: r.ID, name: r.Name})
	}
	return entries, nil
}
