package kb

import (
	"context"
	"sort"
	"strings"
	"time"

	kberrors "github.com/locchh/dkb/internal/errors"
	"github.com/locchh/dkb/internal/index"
	"github.com/locchh/dkb/internal/store"
)

// OrderBy selects the result ordering.
type OrderBy string

const (
	OrderRelevance OrderBy = "relevance"
	OrderDate      OrderBy = "date"
	OrderPath      OrderBy = "path"
)

// Query is a structured search request. Every filter that is left at its
// zero value contributes no restriction; filters that are set intersect.
type Query struct {
	// Text is the keyword query. Empty means filter-only search.
	Text string

	Tags    []string
	TagMode index.MatchMode

	// ExcludeTags drops any document carrying one of these tags, applied
	// after the include filters.
	ExcludeTags []string

	// PathGlob matches document paths; * crosses path separators.
	PathGlob string

	// After and Before bound the modified timestamp, inclusive. Zero
	// values are unset.
	After  time.Time
	Before time.Time

	// Limit truncates the ranked result list. Zero or negative means
	// unlimited.
	Limit int

	OrderBy OrderBy

	// MaxTokens caps the summed token count of returned documents. Results
	// are taken greedily in rank order; a result that would overflow the
	// budget is skipped along with everything after it. Zero means no cap.
	MaxTokens int
}

// Result is one ranked search hit with the full document materialized.
type Result struct {
	Document *store.Document
	Score    float64
}

// Search runs the query pipeline: candidate selection from the index
// filters, keyword scoring, ordering, limit, and token budgeting. The final
// result set is materialized from the record store.
func (e *Engine) Search(ctx context.Context, q Query) ([]Result, error) {
	order := q.OrderBy
	if order == "" {
		order = OrderRelevance
	}
	switch order {
	case OrderRelevance, OrderDate, OrderPath:
	default:
		return nil, kberrors.New(kberrors.ErrCodeInvalidQuery,
			"unknown order "+string(order), nil)
	}

	e.mu.RLock()

	candidates, err := e.candidates(q)
	if err != nil {
		e.mu.RUnlock()
		return nil, err
	}

	// Scoring: with query text, only positive-score candidates survive.
	// Filter-only searches keep every candidate at score zero.
	scores := make(map[store.DocumentID]float64, len(candidates))
	if strings.TrimSpace(q.Text) != "" {
		byID := e.keyword.ScoreQuery(q.Text)
		for id := range candidates {
			if s, ok := byID[id]; ok && s > 0 {
				scores[id] = s
			}
		}
	} else {
		for id := range candidates {
			scores[id] = 0
		}
	}

	ranked := make([]store.Summary, 0, len(scores))
	for id := range scores {
		ranked = append(ranked, e.summaries[id])
	}
	e.mu.RUnlock()

	sortResults(ranked, scores, order)

	if q.Limit > 0 && len(ranked) > q.Limit {
		ranked = ranked[:q.Limit]
	}
	if q.MaxTokens > 0 {
		ranked = applyTokenBudget(ranked, q.MaxTokens)
	}

	results := make([]Result, 0, len(ranked))
	for _, sum := range ranked {
		doc, err := e.Get(ctx, sum.Path)
		if err != nil {
			return nil, err
		}
		results = append(results, Result{Document: doc, Score: scores[doc.ID]})
	}
	return results, nil
}

// candidates intersects the set filters. Callers hold at least the read
// lock. A nil restriction never appears: with no filters set the full
// summary map is the candidate set.
func (e *Engine) candidates(q Query) (map[store.DocumentID]struct{}, error) {
	var sets []map[store.DocumentID]struct{}

	if len(q.Tags) > 0 {
		sets = append(sets, e.tags.Find(q.Tags, q.TagMode))
	}
	if q.PathGlob != "" {
		set, err := e.paths.Find(q.PathGlob)
		if err != nil {
			return nil, err
		}
		sets = append(sets, set)
	}
	if !q.After.IsZero() || !q.Before.IsZero() {
		set := make(map[store.DocumentID]struct{})
		for id, sum := range e.summaries {
			if !q.After.IsZero() && sum.ModifiedAt.Before(q.After) {
				continue
			}
			if !q.Before.IsZero() && sum.ModifiedAt.After(q.Before) {
				continue
			}
			set[id] = struct{}{}
		}
		sets = append(sets, set)
	}

	var out map[store.DocumentID]struct{}
	if len(sets) == 0 {
		out = make(map[store.DocumentID]struct{}, len(e.summaries))
		for id := range e.summaries {
			out[id] = struct{}{}
		}
	} else {
		out = intersect(sets)
	}

	for _, tag := range q.ExcludeTags {
		for id := range e.tags.Find([]string{tag}, index.MatchAny) {
			delete(out, id)
		}
	}
	return out, nil
}

func intersect(sets []map[store.DocumentID]struct{}) map[store.DocumentID]struct{} {
	smallest := sets[0]
	for _, s := range sets[1:] {
		if len(s) < len(smallest) {
			smallest = s
		}
	}

	out := make(map[store.DocumentID]struct{}, len(smallest))
outer:
	for id := range smallest {
		for _, s := range sets {
			if _, ok := s[id]; !ok {
				continue outer
			}
		}
		out[id] = struct{}{}
	}
	return out
}

// sortResults orders summaries in place. Ties break toward path ascending,
// then most recently modified, keeping every ordering deterministic.
func sortResults(sums []store.Summary, scores map[store.DocumentID]float64, order OrderBy) {
	sort.SliceStable(sums, func(i, j int) bool {
		a, b := sums[i], sums[j]
		switch order {
		case OrderDate:
			if !a.ModifiedAt.Equal(b.ModifiedAt) {
				return a.ModifiedAt.After(b.ModifiedAt)
			}
			return a.Path < b.Path
		case OrderPath:
			return a.Path < b.Path
		default:
			sa, sb := scores[a.ID], scores[b.ID]
			if sa != sb {
				return sa > sb
			}
			if a.Path != b.Path {
				return a.Path < b.Path
			}
			return a.ModifiedAt.After(b.ModifiedAt)
		}
	})
}

// applyTokenBudget keeps a rank-order prefix whose token counts sum to at
// most budget. The first overflowing result ends the scan; nothing after it
// is considered, so the returned set is always a prefix of the ranking.
func applyTokenBudget(sums []store.Summary, budget int) []store.Summary {
	out := sums[:0:0]
	used := 0
	for _, sum := range sums {
		if used+sum.TokenCount > budget {
			break
		}
		used += sum.TokenCount
		out = append(out, sum)
	}
	return out
}
