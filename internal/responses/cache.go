package responses

import (
	"context"
	"sync"
	"time"
)

// CachedRepo decorates a Repo with a TTL cache keyed by questionnaire id.
// One job's sequential analysis steps then hit the backing store once.
// Entries expire purely by TTL; there is no write-invalidation path, so a
// response edited mid-run may be served stale for at most one TTL.
type CachedRepo struct {
	inner Repo
	ttl   time.Duration
	now   func() time.Time

	mu             sync.Mutex
	questionnaires map[string]cachedQuestionnaire
	responseSets   map[string]cachedResponses
}

type cachedQuestionnaire struct {
	value     Questionnaire
	expiresAt time.Time
}

type cachedResponses struct {
	value     []Response
	expiresAt time.Time
}

var _ Repo = (*CachedRepo)(nil)

// NewCachedRepo wraps inner with a TTL cache (ttl <= 0 disables caching).
func NewCachedRepo(inner Repo, ttl time.Duration) *CachedRepo {
	return &CachedRepo{
		inner:          inner,
		ttl:            ttl,
		now:            time.Now,
		questionnaires: make(map[string]cachedQuestionnaire),
		responseSets:   make(map[string]cachedResponses),
	}
}

// GetQuestionnaire serves from cache until the entry expires.
func (c *CachedRepo) GetQuestionnaire(ctx context.Context, questionnaireID string) (Questionnaire, error) {
	if c.ttl <= 0 {
		return c.inner.GetQuestionnaire(ctx, questionnaireID)
	}

	c.mu.Lock()
	entry, ok := c.questionnaires[questionnaireID]
	c.mu.Unlock()
	if ok && c.now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	q, err := c.inner.GetQuestionnaire(ctx, questionnaireID)
	if err != nil {
		return Questionnaire{}, err
	}
	c.mu.Lock()
	c.questionnaires[questionnaireID] = cachedQuestionnaire{value: q, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return q, nil
}

// ListResponses serves from cache until the entry expires.
func (c *CachedRepo) ListResponses(ctx context.Context, questionnaireID string) ([]Response, error) {
	if c.ttl <= 0 {
		return c.inner.ListResponses(ctx, questionnaireID)
	}

	c.mu.Lock()
	entry, ok := c.responseSets[questionnaireID]
	c.mu.Unlock()
	if ok && c.now().Before(entry.expiresAt) {
		return entry.value, nil
	}

	resps, err := c.inner.ListResponses(ctx, questionnaireID)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.responseSets[questionnaireID] = cachedResponses{value: resps, expiresAt: c.now().Add(c.ttl)}
	c.mu.Unlock()
	return resps, nil
}

// Sweep drops expired entries and reports how many were removed. The janitor
// calls this periodically so idle questionnaires do not pin memory.
func (c *CachedRepo) Sweep() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := c.now()
	removed := 0
	for id, entry := range c.questionnaires {
		if !now.Before(entry.expiresAt) {
			delete(c.questionnaires, id)
			removed++
		}
	}
	for id, entry := range c.responseSets {
		if !now.Before(entry.expiresAt) {
			delete(c.responseSets, id)
			removed++
		}
	}
	return removed
}
