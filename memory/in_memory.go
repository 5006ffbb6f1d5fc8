package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"unicode"
)

// Passage is a stored chunk of reference text.
type Passage struct {
	ID       string
	Content  string
	Metadata map[string]any
}

// SearchResult is a ranked passage.
type SearchResult struct {
	Passage
	Score float64
}

// Options configures an InMemoryStore.
type Options struct {
	// TopK is the number of passages Retrieve returns.
	TopK int
}

// InMemoryStore is a process-local passage store.
//
// Concurrency: protected by RWMutex.
// Search: linear scan scoring each passage by the share of distinct query
// keywords it contains (case-insensitive substring match, so inflected
// words still hit). Passages without any hit are dropped; ties keep insertion
// order.
type InMemoryStore struct {
	mu       sync.RWMutex
	passages []Passage
	nextID   int
	topK     int
}

// NewInMemoryStore creates an empty store.
func NewInMemoryStore(optFns ...func(o *Options)) *InMemoryStore {
	opts := Options{TopK: 5}
	for _, fn := range optFns {
		fn(&opts)
	}

	return &InMemoryStore{topK: opts.TopK}
}

// Store appends a passage and returns its id.
func (m *InMemoryStore) Store(content string, metadata map[string]any) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := fmt.Sprintf("psg_%d", m.nextID)
	m.nextID++

	md := make(map[string]any, len(metadata))
	for k, v := range metadata {
		md[k] = v
	}

	m.passages = append(m.passages, Passage{ID: id, Content: content, Metadata: md})

	return id
}

// Delete removes a passage by id.
func (m *InMemoryStore) Delete(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, p := range m.passages {
		if p.ID == id {
			m.passages = append(m.passages[:i], m.passages[i+1:]...)
			return nil
		}
	}

	return fmt.Errorf("passage %s not found", id)
}

// Len returns the number of stored passages.
func (m *InMemoryStore) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return len(m.passages)
}

// Search ranks passages against query and returns at most limit results.
// An empty query matches nothing.
func (m *InMemoryStore) Search(query string, limit int) []SearchResult {
	keywords := Keywords(query)
	if len(keywords) == 0 || limit <= 0 {
		return []SearchResult{}
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]SearchResult, 0, limit)

	for _, p := range m.passages {
		text := strings.ToLower(p.Content)

		hits := 0
		for _, k := range keywords {
			if strings.Contains(text, k) {
				hits++
			}
		}

		if hits == 0 {
			continue
		}

		results = append(results, SearchResult{Passage: p, Score: float64(hits) / float64(len(keywords))})
	}

	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if len(results) > limit {
		results = results[:limit]
	}

	return results
}

// Retrieve implements core.Retriever returning the content of the TopK best passages.
func (m *InMemoryStore) Retrieve(ctx context.Context, query string) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	results := m.Search(query, m.topK)

	out := make([]string, 0, len(results))
	for _, r := range results {
		out = append(out, r.Content)
	}

	return out, nil
}

// Keywords lowercases text and returns its distinct words of at least two
// characters, in first-seen order.
func Keywords(text string) []string {
	fields := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	})

	seen := make(map[string]bool, len(fields))
	out := make([]string, 0, len(fields))

	for _, f := range fields {
		if len([]rune(f)) < 2 || seen[f] {
			continue
		}
		seen[f] = true
		out = append(out, f)
	}

	return out
}
