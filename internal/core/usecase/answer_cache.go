package usecase

import (
	"slices"
	"sync"

	"github.com/kirillkom/permit-query-assistant/internal/core/domain"
	"github.com/kirillkom/permit-query-assistant/internal/core/ports"
)

type answerCacheKey struct {
	query string
	k     int
}

// answerCache is flushed whenever the store version moves.
type answerCache struct {
	store      ports.VersionedStore
	maxEntries int

	mu      sync.Mutex
	version uint64
	entries map[answerCacheKey]*domain.AnswerResult
	order   []answerCacheKey
}

func newAnswerCache(store ports.VersionedStore, maxEntries int) *answerCache {
	return &answerCache{
		store:      store,
		maxEntries: maxEntries,
		version:    store.Version(),
		entries:    make(map[answerCacheKey]*domain.AnswerResult),
	}
}

// get returns the cached answer, if any, and the store version observed.
func (c *answerCache) get(query string, k int) (*domain.AnswerResult, uint64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.syncVersionLocked()
	cached, ok := c.entries[answerCacheKey{query: query, k: k}]
	if !ok {
		return nil, c.version, false
	}
	return cloneAnswer(cached), c.version, true
}

// put stores an answer computed against version; answers computed before an
// upsert landed are discarded.
func (c *answerCache) put(query string, k int, version uint64, answer *domain.AnswerResult) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.syncVersionLocked()
	if version != c.version {
		return
	}
	key := answerCacheKey{query: query, k: k}
	if _, exists := c.entries[key]; !exists {
		if len(c.order) >= c.maxEntries {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
		c.order = append(c.order, key)
	}
	c.entries[key] = cloneAnswer(answer)
}

func (c *answerCache) syncVersionLocked() {
	current := c.store.Version()
	if current == c.version {
		return
	}
	c.version = current
	c.entries = make(map[answerCacheKey]*domain.AnswerResult)
	c.order = nil
}

func cloneAnswer(in *domain.AnswerResult) *domain.AnswerResult {
	out := *in
	out.Sources = slices.Clone(in.Sources)
	for i := range out.Sources {
		out.Sources[i] = out.Sources[i].Clone()
	}
	return &out
}
