package searchindex

import (
	"sort"
	"strings"
	"sync"

	"github.com/toolmesh/gateway/internal/registry"
)

// fuzzyThreshold is the minimum fuzzy score a candidate must clear to be
// considered a text match at all.
const fuzzyThreshold = 60.0

// candidateFanout caps the sorted candidate list at this multiple of the
// query limit before the final limit is applied. Every entry that passes
// the filters is still fuzzy-scored.
const candidateFanout = 3

// Index holds a denormalized, search-friendly view of every entry in the
// registry. It is rebuilt wholesale whenever the registry store's entry
// set changes; entries do not need incremental updates since a full
// rebuild over a catalog of this size is cheap.
type Index struct {
	mu      sync.RWMutex
	entries []registry.Entry
	// searchText is the concatenation of name, description, categories,
	// and tags for each entry, aligned by index with entries.
	searchText []string
}

// NewIndex returns an empty index.
func NewIndex() *Index {
	return &Index{}
}

// Rebuild replaces the index's contents. It implements registry.Indexer.
func (idx *Index) Rebuild(entries []registry.Entry) {
	idx.mu.Lock()
	defer idx.mu.Unlock()

	idx.entries = make([]registry.Entry, len(entries))
	copy(idx.entries, entries)

	idx.searchText = make([]string, len(entries))
	for i, e := range entries {
		var b strings.Builder
		b.WriteString(e.Name)
		b.WriteByte(' ')
		b.WriteString(e.Description)
		for _, c := range e.Categories {
			b.WriteByte(' ')
			b.WriteString(c)
		}
		for _, t := range e.Tags {
			b.WriteByte(' ')
			b.WriteString(t)
		}
		idx.searchText[i] = b.String()
	}
}

type scored struct {
	entry registry.Entry
	score float64
}

// Search applies q's filters and ranks the remaining entries, combining
// fuzzy text relevance (weight 0.6) with the popularity score (weight
// 0.4) when q.Query is non-empty, or popularity alone otherwise.
func (idx *Index) Search(q registry.SearchQuery) []registry.Entry {
	q.Normalize()

	idx.mu.RLock()
	entries := idx.entries
	idx.mu.RUnlock()

	var filtered []scored
	for _, e := range entries {
		if !matchesFilters(e, q) {
			continue
		}
		filtered = append(filtered, scored{entry: e, score: popularityScore(e)})
	}

	if strings.TrimSpace(q.Query) == "" {
		sort.SliceStable(filtered, func(i, j int) bool {
			return filtered[i].score > filtered[j].score
		})
		return takeEntries(filtered, q.Limit)
	}

	type candidate struct {
		scored
		fuzzy float64
	}
	candidates := make([]candidate, 0, len(filtered))
	for _, f := range filtered {
		// Name, description, each category and each tag are scored on
		// their own; the entry keeps its best field score.
		fields := append([]string{f.entry.Name, f.entry.Description}, f.entry.Categories...)
		fields = append(fields, f.entry.Tags...)
		fz := 0.0
		for _, text := range fields {
			if s := fuzzyScore(q.Query, text); s > fz {
				fz = s
			}
		}
		if fz < fuzzyThreshold {
			continue
		}
		candidates = append(candidates, candidate{scored: f, fuzzy: fz})
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		ci := candidates[i].fuzzy*0.6 + candidates[i].score*0.4
		cj := candidates[j].fuzzy*0.6 + candidates[j].score*0.4
		return ci > cj
	})

	fanout := q.Limit * candidateFanout
	if fanout < len(candidates) {
		candidates = candidates[:fanout]
	}

	result := make([]registry.Entry, 0, q.Limit)
	for _, c := range candidates {
		if len(result) >= q.Limit {
			break
		}
		result = append(result, c.entry)
	}
	return result
}

func takeEntries(s []scored, limit int) []registry.Entry {
	if limit < len(s) {
		s = s[:limit]
	}
	out := make([]registry.Entry, len(s))
	for i, v := range s {
		out[i] = v.entry
	}
	return out
}

func matchesFilters(e registry.Entry, q registry.SearchQuery) bool {
	if q.OfficialOnly && !e.Official {
		return false
	}
	if q.FeaturedOnly && !e.Featured {
		return false
	}
	if q.RequiresAPIKey != nil && e.RequiresAPIKey != *q.RequiresAPIKey {
		return false
	}
	if len(q.Sources) > 0 && !containsSource(q.Sources, e.Source) {
		return false
	}
	if len(q.Categories) > 0 && !anyStringMatch(q.Categories, e.Categories) {
		return false
	}
	if len(q.Tags) > 0 && !anyStringMatch(q.Tags, e.Tags) {
		return false
	}
	return true
}

func containsSource(list []registry.SourceType, s registry.SourceType) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func anyStringMatch(want, have []string) bool {
	haveSet := make(map[string]bool, len(have))
	for _, h := range have {
		haveSet[strings.ToLower(h)] = true
	}
	for _, w := range want {
		if haveSet[strings.ToLower(w)] {
			return true
		}
	}
	return false
}
