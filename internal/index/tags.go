package index

import (
	"sync"
)

// MatchMode selects AND or OR semantics for tag lookups.
type MatchMode int

const (
	// MatchAll requires every tag to be present (AND).
	MatchAll MatchMode = iota
	// MatchAny requires at least one tag to be present (OR).
	MatchAny
)

// Tags maintains the many-to-many relation between tag names and document
// ids. A tag with no remaining documents is dropped.
type Tags struct {
	mu    sync.RWMutex
	byTag map[string]map[string]struct{} // tag -> set of ids
	byDoc map[string]map[string]struct{} // id -> set of tags
}

// NewTags creates an empty tag index.
func NewTags() *Tags {
	return &Tags{
		byTag: make(map[string]map[string]struct{}),
		byDoc: make(map[string]map[string]struct{}),
	}
}

// Add associates a tag with a document id.
func (t *Tags) Add(id, tag string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ids, ok := t.byTag[tag]
	if !ok {
		ids = make(map[string]struct{})
		t.byTag[tag] = ids
	}
	ids[id] = struct{}{}

	tags, ok := t.byDoc[id]
	if !ok {
		tags = make(map[string]struct{})
		t.byDoc[id] = tags
	}
	tags[tag] = struct{}{}
}

// Remove drops one tag association.
func (t *Tags) Remove(id, tag string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.removeLocked(id, tag)
}

// RemoveAll drops every tag association for a document id.
func (t *Tags) RemoveAll(id string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	for tag := range t.byDoc[id] {
		t.removeLocked(id, tag)
	}
}

func (t *Tags) removeLocked(id, tag string) {
	if ids, ok := t.byTag[tag]; ok {
		delete(ids, id)
		if len(ids) == 0 {
			delete(t.byTag, tag)
		}
	}
	if tags, ok := t.byDoc[id]; ok {
		delete(tags, tag)
		if len(tags) == 0 {
			delete(t.byDoc, id)
		}
	}
}

// Clear drops all associations.
func (t *Tags) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byTag = make(map[string]map[string]struct{})
	t.byDoc = make(map[string]map[string]struct{})
}

// Find returns the ids matching the tag set under the given mode.
// An empty tag set returns the empty set for both modes: a vacuous AND is
// deliberately "nothing", not "everything".
func (t *Tags) Find(tags []string, mode MatchMode) map[string]struct{} {
	result := make(map[string]struct{})
	if len(tags) == 0 {
		return result
	}

	t.mu.RLock()
	defer t.mu.RUnlock()

	switch mode {
	case MatchAny:
		for _, tag := range tags {
			for id := range t.byTag[tag] {
				result[id] = struct{}{}
			}
		}
	case MatchAll:
		first, ok := t.byTag[tags[0]]
		if !ok {
			return result
		}
		for id := range first {
			result[id] = struct{}{}
		}
		for _, tag := range tags[1:] {
			ids, ok := t.byTag[tag]
			if !ok {
				return make(map[string]struct{})
			}
			for id := range result {
				if _, in := ids[id]; !in {
					delete(result, id)
				}
			}
		}
	}
	return result
}

// TagsOf returns the tags of a document id.
func (t *Tags) TagsOf(id string) map[string]struct{} {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make(map[string]struct{}, len(t.byDoc[id]))
	for tag := range t.byDoc[id] {
		out[tag] = struct{}{}
	}
	return out
}

// Distinct returns the number of distinct tags with at least one document.
func (t *Tags) Distinct() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.byTag)
}
