package guard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/cache"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

const receiptContext = "LIDL\nCHLEB ZYTNI 2,99\nMASLO EXTRA 4,50\nSUMA 7,49"

func TestEvaluate_GroundedResponseAccepted(t *testing.T) {
	g := NewGuard(nil, nil)
	response := "Chleb zytni 2,99 oraz maslo extra 4,50, suma 7,49."

	v := g.Evaluate(response, receiptContext, constants.CallerReceiptAnalysis, constants.LevelModerate)

	assert.Less(t, v.Score, 0.25)
	assert.Empty(t, v.DetectedTypes)
	assert.Equal(t, RecommendationAccept, v.Recommendation)
}

func TestEvaluate_FabricatedContentRejected(t *testing.T) {
	g := NewGuard(nil, nil)
	response := "Definitely the total was 99,99 zł. It is well known that studies show bread always costs 3,00."

	v := g.Evaluate(response, receiptContext, constants.CallerWeather, constants.LevelLenient)

	assert.Greater(t, v.Score, 0.75)
	assert.Equal(t, RecommendationReject, v.Recommendation)
	assert.Contains(t, v.DetectedTypes, entity.HallucinationFabricatedPrice)
	assert.Contains(t, v.DetectedTypes, entity.HallucinationUnverifiedClaim)
	assert.Contains(t, v.DetectedTypes, entity.HallucinationFactualError)
}

func TestEvaluate_PriceComparisonIgnoresDecimalSeparator(t *testing.T) {
	g := NewGuard(nil, nil)
	v := g.Evaluate("suma 7.49", "SUMA 7,49", constants.CallerDefault, constants.LevelModerate)
	assert.NotContains(t, v.DetectedTypes, entity.HallucinationFabricatedPrice)
}

func TestEvaluate_StrictCallerRejectsWhereLenientAccepts(t *testing.T) {
	g := NewGuard(nil, nil)
	// One unsupported price, fully anchored wording: category score 0.3, no
	// overlap penalty.
	context := "cena wynosi 2,99"
	response := "cena wynosi 9,99"

	chef := g.Evaluate(response, context, constants.CallerChef, constants.LevelStrict)
	weather := g.Evaluate(response, context, constants.CallerWeather, constants.LevelLenient)
	search := g.Evaluate(response, context, constants.CallerSearch, constants.LevelModerate)

	assert.InDelta(t, 0.30, chef.Score, 0.05)
	assert.Equal(t, chef.Score, weather.Score)
	assert.Equal(t, RecommendationReject, chef.Recommendation)
	assert.Equal(t, RecommendationAccept, weather.Recommendation)
	assert.Equal(t, RecommendationAccept, search.Recommendation)
}

func TestEvaluate_LevelMovesRecommendationNotScore(t *testing.T) {
	g := NewGuard(nil, nil)
	context := "cena wynosi 2,99"
	response := "cena wynosi 9,99"

	strict := g.Evaluate(response, context, constants.CallerChef, constants.LevelStrict)
	moderate := g.Evaluate(response, context, constants.CallerChef, constants.LevelModerate)
	lenient := g.Evaluate(response, context, constants.CallerChef, constants.LevelLenient)

	assert.Equal(t, strict.Score, moderate.Score)
	assert.Equal(t, strict.Score, lenient.Score)
	assert.Equal(t, RecommendationReject, strict.Recommendation)
	assert.Equal(t, RecommendationReview, moderate.Recommendation)
	assert.Equal(t, RecommendationReview, lenient.Recommendation)
}

func TestEvaluate_ReceiptVariantCatchesCurrencySuffixPrices(t *testing.T) {
	g := NewGuard(nil, nil)
	context := "produkt kosztuje niewiele"
	response := "kosztuje 99 zł"

	receipt := g.Evaluate(response, context, constants.CallerReceiptAnalysis, constants.LevelModerate)
	chat := g.Evaluate(response, context, constants.CallerWeather, constants.LevelModerate)

	assert.Contains(t, receipt.DetectedTypes, entity.HallucinationFabricatedPrice)
	assert.NotContains(t, chat.DetectedTypes, entity.HallucinationFabricatedPrice)
	assert.Greater(t, receipt.Score, chat.Score)
}

func TestEvaluate_ReceiptVariantFlagsUnsupportedDates(t *testing.T) {
	g := NewGuard(nil, nil)
	context := "zakup chleba"
	response := "zakup 2024-03-15"

	receipt := g.Evaluate(response, context, constants.CallerReceiptAnalysis, constants.LevelModerate)
	chat := g.Evaluate(response, context, constants.CallerWeather, constants.LevelModerate)

	assert.Contains(t, receipt.DetectedTypes, entity.HallucinationFactualError)
	assert.NotContains(t, chat.DetectedTypes, entity.HallucinationFactualError)
}

func TestRecommend_Bands(t *testing.T) {
	chef := variants[constants.CallerChef]
	search := variants[constants.CallerSearch]
	weather := variants[constants.CallerWeather]

	assert.Equal(t, RecommendationAccept, recommend(0.10, chef, constants.LevelStrict))
	// Strict jobs have no review band.
	assert.Equal(t, RecommendationReject, recommend(0.30, chef, constants.LevelStrict))
	assert.Equal(t, RecommendationReject, recommend(0.45, chef, constants.LevelStrict))
	assert.Equal(t, RecommendationReview, recommend(0.30, chef, constants.LevelModerate))

	assert.Equal(t, RecommendationAccept, recommend(0.40, search, constants.LevelModerate))
	assert.Equal(t, RecommendationReview, recommend(0.50, search, constants.LevelModerate))
	assert.Equal(t, RecommendationReject, recommend(0.60, search, constants.LevelModerate))

	assert.Equal(t, RecommendationReview, recommend(0.65, weather, constants.LevelLenient))
	assert.Equal(t, RecommendationReject, recommend(0.80, weather, constants.LevelLenient))
}

func TestEvaluate_UnknownCallerUsesDefaultVariant(t *testing.T) {
	g := NewGuard(nil, nil)
	v := g.Evaluate("suma 7,49", receiptContext, constants.CallerType("bogus"), constants.LevelModerate)
	assert.Equal(t, RecommendationAccept, v.Recommendation)
}

func TestEvaluate_VerdictCached(t *testing.T) {
	svc := cache.NewService(cache.Config{}, nil)
	g := NewGuard(svc, nil)

	first := g.Evaluate("suma 7,49", receiptContext, constants.CallerReceiptAnalysis, constants.LevelModerate)
	second := g.Evaluate("suma 7,49", receiptContext, constants.CallerReceiptAnalysis, constants.LevelModerate)

	require.Equal(t, first, second)
	assert.Equal(t, 1, svc.Len())
}

func TestEvaluate_CacheKeyIncludesCaller(t *testing.T) {
	svc := cache.NewService(cache.Config{}, nil)
	g := NewGuard(svc, nil)

	g.Evaluate("suma 7,49", receiptContext, constants.CallerChef, constants.LevelModerate)
	g.Evaluate("suma 7,49", receiptContext, constants.CallerWeather, constants.LevelModerate)

	assert.Equal(t, 2, svc.Len())
}

func TestEvaluate_CacheKeyIncludesLevel(t *testing.T) {
	svc := cache.NewService(cache.Config{}, nil)
	g := NewGuard(svc, nil)

	g.Evaluate("suma 7,49", receiptContext, constants.CallerChef, constants.LevelStrict)
	g.Evaluate("suma 7,49", receiptContext, constants.CallerChef, constants.LevelLenient)

	assert.Equal(t, 2, svc.Len())
}
