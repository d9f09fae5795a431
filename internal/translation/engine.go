package translation

import (
	"context"

	"golang.org/x/sync/singleflight"

	"github.com/notihub/notihub/internal/apperrors"
)

// DistributedCache is the cluster-wide translation cache tier, backed by
// Redis, consulted after the in-process LRU misses and before any provider
// is called.
type DistributedCache interface {
	GetTranslationCache(cacheKey string) (string, error)
	SetTranslationCache(cacheKey string, translated string) error
}

// UsageRecorder persists which provider served a translation and its
// quality score, for cost accounting and quality monitoring.
type UsageRecorder interface {
	RecordTranslationUsage(ctx context.Context, provider string, qualityScore float64) error
}

// QualityThreshold is the minimum acceptable score; a tier's result below
// this is treated as a failure and the engine falls through to the next
// tier rather than returning a low-quality translation.
const QualityThreshold = 0.6

// Engine runs the five-tier fallback chain (self-hosted, DeepL, Google,
// Microsoft, Amazon), backed by an in-process LRU+TTL cache, a distributed
// Redis cache tier, and request coalescing so a burst of identical
// concurrent requests shares one upstream call.
type Engine struct {
	tiers       []Tier
	localCache  *Cache
	distributed DistributedCache
	recorder    UsageRecorder
	group       singleflight.Group
}

func NewEngine(tiers []Tier, localCache *Cache, distributed DistributedCache, recorder UsageRecorder) *Engine {
	return &Engine{tiers: tiers, localCache: localCache, distributed: distributed, recorder: recorder}
}

// Result is what Translate returns: the text, which tier produced it, and
// its quality score.
type Result struct {
	Text     string
	Provider string
	Score    float64
	Cached   bool
}

// Translate runs the cache lookups and fallback chain for one (text,
// source, target) triple. Concurrent identical requests are coalesced: only
// one of them actually walks the provider chain.
func (e *Engine) Translate(ctx context.Context, text, sourceLang, targetLang string) (Result, error) {
	key := Key(sourceLang, targetLang, text)

	if cached, ok := e.localCache.Get(key); ok {
		return Result{Text: cached, Provider: "cache", Score: 1, Cached: true}, nil
	}
	if e.distributed != nil {
		if cached, err := e.distributed.GetTranslationCache(key); err == nil && cached != "" {
			e.localCache.Set(key, cached)
			return Result{Text: cached, Provider: "cache", Score: 1, Cached: true}, nil
		}
	}

	v, err, _ := e.group.Do(key, func() (interface{}, error) {
		return e.translateThroughChain(ctx, text, sourceLang, targetLang)
	})
	if err != nil {
		return Result{}, err
	}
	result := v.(Result)

	e.localCache.Set(key, result.Text)
	if e.distributed != nil {
		_ = e.distributed.SetTranslationCache(key, result.Text)
	}
	if e.recorder != nil {
		_ = e.recorder.RecordTranslationUsage(ctx, result.Provider, result.Score)
	}
	return result, nil
}

// TierHealth is one fallback tier's reported status.
type TierHealth struct {
	Name string `json:"name"`
}

// Health is the translation engine's own health surface, distinct from the
// notification platform's general /health, which has no visibility into
// per-tier fallback order or cache state.
type Health struct {
	Tiers         []TierHealth `json:"tiers"`
	LocalCacheLen int          `json:"localCacheLen"`
	Distributed   bool         `json:"distributedCacheEnabled"`
}

// Health reports the chain's configured tiers, in fallback order, and the
// local cache's current occupancy.
func (e *Engine) Health(ctx context.Context) Health {
	tiers := make([]TierHealth, len(e.tiers))
	for i, tier := range e.tiers {
		tiers[i] = TierHealth{Name: tier.Name()}
	}
	return Health{
		Tiers:         tiers,
		LocalCacheLen: e.localCache.Len(),
		Distributed:   e.distributed != nil,
	}
}

func (e *Engine) translateThroughChain(ctx context.Context, text, sourceLang, targetLang string) (Result, error) {
	var lastErr error
	for _, tier := range e.tiers {
		translated, err := tier.Translate(ctx, text, sourceLang, targetLang)
		if err != nil {
			lastErr = err
			continue
		}

		score := Score(text, translated)
		if score < QualityThreshold {
			lastErr = apperrors.NewLowQualityError(tier.Name(), score)
			continue
		}

		return Result{Text: translated, Provider: tier.Name(), Score: score}, nil
	}

	if lastErr != nil {
		return Result{}, lastErr
	}
	return Result{}, apperrors.NewAllServicesFailedError("translation")
}
