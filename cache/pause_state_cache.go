package cache

import (
	"time"

	c "github.com/patrickmn/go-cache"
)

// PauseStateCache remembers whether the engine reported a pipeline as
// paused. Entries expire after the configured ttl; a ttl of zero disables
// caching.
type PauseStateCache struct {
	cache *c.Cache
	ttl   time.Duration
}

func NewPauseStateCache(ttl time.Duration) *PauseStateCache {
	return &PauseStateCache{
		cache: c.New(ttl, 10*time.Minute),
		ttl:   ttl,
	}
}

func (ch *PauseStateCache) SavePaused(pipelineId string, paused bool) {
	if ch.ttl <= 0 {
		return
	}
	ch.cache.Set(pipelineId, paused, ch.ttl)
}

func (ch *PauseStateCache) GetPaused(pipelineId string) (bool, bool) {
	val, found := ch.cache.Get(pipelineId)
	if !found {
		return false, false
	}
	paused, ok := val.(bool)
	return paused, ok
}

func (ch *PauseStateCache) Invalidate(pipelineId string) {
	ch.cache.Delete(pipelineId)
}
