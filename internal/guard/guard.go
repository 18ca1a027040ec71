package guard

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/cache"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

const (
	RecommendationAccept = "accept"
	RecommendationReview = "review"
	RecommendationReject = "reject"
)

// variant is one caller kind's validator: its own pattern table, its own
// threshold pair, and how long a verdict for identical input stays fresh.
// ConfidenceThreshold is the context-overlap anchor; responses anchored at or
// above it pay no overlap penalty. RejectThreshold is the score at which the
// verdict recommends rejection.
type variant struct {
	Detectors           []detector
	ConfidenceThreshold float64
	RejectThreshold     float64
	TTL                 time.Duration
}

// The caller set is closed; unknown callers are parsed to CallerDefault
// before they reach the guard. Receipt-domain callers carry the stricter
// price/date pattern table.
var variants = map[constants.CallerType]variant{
	constants.CallerChef:            {receiptDetectors, 0.90, 0.40, 30 * time.Minute},
	constants.CallerReceiptAnalysis: {receiptDetectors, 0.90, 0.50, time.Hour},
	constants.CallerWeather:         {conversationalDetectors, 0.60, 0.75, 10 * time.Minute},
	constants.CallerSearch:          {conversationalDetectors, 0.70, 0.60, 30 * time.Minute},
	constants.CallerDefault:         {conversationalDetectors, 0.70, 0.60, 30 * time.Minute},
}

// overlapWeight is how much a response unanchored in its context contributes
// on top of the category scores.
const overlapWeight = 0.25

// categoryDetectedAt is the per-category score above which the category is
// listed in the verdict.
const categoryDetectedAt = 0.5

// Guard scores model output for fabricated content before it is accepted.
// Verdicts for identical (response, context, caller, level) tuples are cached
// with the caller's TTL.
type Guard struct {
	cache  *cache.Service
	logger *slog.Logger
}

type cachedVerdict struct {
	verdict  entity.HallucinationVerdict
	storedAt time.Time
}

func NewGuard(cacheSvc *cache.Service, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{cache: cacheSvc, logger: logger}
}

// Evaluate scores response against context with the caller's validator
// variant. The category detectors run concurrently; their weighted scores
// plus the context-overlap penalty sum to the verdict score, so the result
// does not depend on completion order. The level never moves the score, only
// the recommendation: strict jobs lose the review band.
func (g *Guard) Evaluate(response, context string, caller constants.CallerType, level constants.ValidationLevel) entity.HallucinationVerdict {
	v, ok := variants[caller]
	if !ok {
		v = variants[constants.CallerDefault]
	}

	key := cache.Key(cache.KindVerdict, response, context, string(caller), string(level))
	if g.cache != nil {
		if cached, hit := g.cache.Get(key); hit {
			if cv, ok := cached.(cachedVerdict); ok && time.Since(cv.storedAt) < v.TTL {
				g.logger.Debug("guard.verdict.cache_hit", "caller", caller)
				return cv.verdict
			}
		}
	}

	scores := make([]float64, len(v.Detectors))
	var wg sync.WaitGroup
	for i, d := range v.Detectors {
		wg.Add(1)
		go func(i int, d detector) {
			defer wg.Done()
			scores[i] = d.score(response, context)
		}(i, d)
	}
	wg.Wait()

	var total float64
	seen := map[entity.HallucinationType]bool{}
	var detected []entity.HallucinationType
	for i, d := range v.Detectors {
		total += d.weight * scores[i]
		if scores[i] >= categoryDetectedAt && !seen[d.category] {
			seen[d.category] = true
			detected = append(detected, d.category)
		}
	}
	if overlap := contextOverlap(response, context); overlap < v.ConfidenceThreshold {
		total += overlapWeight * (1.0 - overlap)
	}
	if total > 1.0 {
		total = 1.0
	}
	sort.Slice(detected, func(i, j int) bool { return detected[i] < detected[j] })

	verdict := entity.HallucinationVerdict{
		Score:          total,
		DetectedTypes:  detected,
		Recommendation: recommend(total, v, level),
	}

	if g.cache != nil {
		g.cache.Put(cache.KindVerdict, key, cachedVerdict{verdict: verdict, storedAt: time.Now()})
	}
	g.logger.Debug("guard.verdict",
		"caller", caller,
		"level", level,
		"score", verdict.Score,
		"types", len(verdict.DetectedTypes),
		"recommendation", verdict.Recommendation,
	)
	return verdict
}

// recommend maps a score onto the action for this variant. The review band
// sits just under the rejection threshold; strict jobs do not get one.
func recommend(score float64, v variant, level constants.ValidationLevel) string {
	switch {
	case score >= v.RejectThreshold:
		return RecommendationReject
	case score >= v.RejectThreshold-0.15:
		if level == constants.LevelStrict {
			return RecommendationReject
		}
		return RecommendationReview
	default:
		return RecommendationAccept
	}
}
