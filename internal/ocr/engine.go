package ocr

import (
	"context"

	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

// TokenConfidence is one recognized token with the engine's own confidence
// for it, 0..1.
type TokenConfidence struct {
	Token      string
	Confidence float32
}

// EngineResult is the raw output of a single recognition call.
type EngineResult struct {
	Text   string
	Tokens []TokenConfidence
}

// Engine is the replaceable OCR boundary: any engine producing text plus
// per-token confidences satisfies it. Implementations must honor ctx
// cancellation and deadlines.
type Engine interface {
	Recognize(ctx context.Context, image []byte, languageHint string, strategy entity.OCRStrategy) (EngineResult, error)
}

// MeanConfidence averages the per-token confidence distribution. Returns 0
// when the engine reported no tokens.
func MeanConfidence(tokens []TokenConfidence) float32 {
	if len(tokens) == 0 {
		return 0
	}
	var sum float64
	for _, t := range tokens {
		sum += float64(t.Confidence)
	}
	return float32(sum / float64(len(tokens)))
}
