package guard

import (
	"regexp"
	"strings"

	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

// detector scores one hallucination category in isolation. Scores are in
// [0,1] and depend only on the response and context strings, so category runs
// can be fanned out and aggregated in any order.
type detector struct {
	category entity.HallucinationType
	weight   float64
	score    func(response, context string) float64
}

var (
	reCertainty = regexp.MustCompile(`(?i)\b(always|never|guaranteed|100%\s+certain|definitely|impossible|undoubtedly)\b`)
	reCitation  = regexp.MustCompile(`(?i)studies\s+show|according\s+to\s+(?:research|experts|sources)|experts\s+(?:say|agree)|it\s+is\s+(?:well\s+)?known|research(?:ers)?\s+(?:show|found|prove)`)

	rePrice       = regexp.MustCompile(`(?i)\d+[.,]\d{2}(?:\s*(?:z[łl]|pln|eur|usd|\$|€))?`)
	reMeasurement = regexp.MustCompile(`(?i)\d+(?:[.,]\d+)?\s*(?:kg|mg|g|ml|cl|l|km|cm|mm|m|szt)\b`)

	// Receipt-domain callers get a wider price net (integer amounts with a
	// currency suffix count too) and a date pattern on top of the shared set.
	rePriceStrict = regexp.MustCompile(`(?i)\d+[.,]\d{2}(?:\s*(?:z[łl]|pln|eur|usd|\$|€))?|\d+\s*(?:z[łl]|pln)\b`)
	reDateToken   = regexp.MustCompile(`\b\d{4}-\d{2}-\d{2}\b|\b\d{2}[./]\d{2}[./]\d{4}\b`)
)

// conversationalDetectors is the pattern table for chat-shaped callers.
var conversationalDetectors = []detector{
	{
		category: entity.HallucinationFactualError,
		weight:   0.30,
		score: func(response, _ string) float64 {
			return capHits(len(reCertainty.FindAllString(response, -1)), 3)
		},
	},
	{
		category: entity.HallucinationFabricatedPrice,
		weight:   0.30,
		score: func(response, context string) float64 {
			return unsupportedFraction(rePrice.FindAllString(response, -1), context)
		},
	},
	{
		category: entity.HallucinationFabricatedMeasurement,
		weight:   0.20,
		score: func(response, context string) float64 {
			return unsupportedFraction(reMeasurement.FindAllString(response, -1), context)
		},
	},
	{
		category: entity.HallucinationUnverifiedClaim,
		weight:   0.20,
		score: func(response, _ string) float64 {
			return capHits(len(reCitation.FindAllString(response, -1)), 2)
		},
	},
}

// receiptDetectors is the pattern table for receipt-domain callers: the price
// category uses the strict pattern and fabricated dates count as factual
// errors.
var receiptDetectors = []detector{
	{
		category: entity.HallucinationFactualError,
		weight:   0.30,
		score: func(response, _ string) float64 {
			return capHits(len(reCertainty.FindAllString(response, -1)), 3)
		},
	},
	{
		category: entity.HallucinationFabricatedPrice,
		weight:   0.30,
		score: func(response, context string) float64 {
			return unsupportedFraction(rePriceStrict.FindAllString(response, -1), context)
		},
	},
	{
		category: entity.HallucinationFabricatedMeasurement,
		weight:   0.20,
		score: func(response, context string) float64 {
			return unsupportedFraction(reMeasurement.FindAllString(response, -1), context)
		},
	},
	{
		category: entity.HallucinationUnverifiedClaim,
		weight:   0.10,
		score: func(response, _ string) float64 {
			return capHits(len(reCitation.FindAllString(response, -1)), 2)
		},
	},
	{
		category: entity.HallucinationFactualError,
		weight:   0.10,
		score: func(response, context string) float64 {
			return unsupportedFraction(reDateToken.FindAllString(response, -1), context)
		},
	},
}

func capHits(hits, saturation int) float64 {
	if hits >= saturation {
		return 1.0
	}
	return float64(hits) / float64(saturation)
}

// unsupportedFraction reports what share of the extracted tokens do not
// appear in the context. Tokens are compared numerically, ignoring the comma
// versus dot decimal separator.
func unsupportedFraction(tokens []string, context string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	ctx := canonicalizeNumbers(context)
	missing := 0
	for _, tok := range tokens {
		if !strings.Contains(ctx, canonicalizeNumbers(tok)) {
			missing++
		}
	}
	return float64(missing) / float64(len(tokens))
}

func canonicalizeNumbers(s string) string {
	return strings.ToLower(strings.ReplaceAll(s, ",", "."))
}

var reWord = regexp.MustCompile(`[\p{L}\d]{3,}`)

// contextOverlap measures how much of the response is anchored in the
// context: the fraction of response words of three or more characters that
// also occur there. Responses that share almost nothing with their source
// material are suspicious regardless of category hits.
func contextOverlap(response, context string) float64 {
	words := reWord.FindAllString(strings.ToLower(response), -1)
	if len(words) == 0 {
		return 1.0
	}
	ctx := strings.ToLower(context)
	hits := 0
	for _, w := range words {
		if strings.Contains(ctx, w) {
			hits++
		}
	}
	return float64(hits) / float64(len(words))
}
