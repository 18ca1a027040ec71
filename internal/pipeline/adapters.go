package pipeline

import (
	"context"

	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
	"github.com/joseph-ayodele/receipt-pipeline/internal/imageproc"
	"github.com/joseph-ayodele/receipt-pipeline/internal/ocr"
)

// ImageNormalizer adapts imageproc.Normalizer to the stage interface.
type ImageNormalizer struct {
	N *imageproc.Normalizer
}

func (a ImageNormalizer) Normalize(data []byte) (NormalizedImage, error) {
	res, err := a.N.Normalize(data)
	if err != nil {
		return NormalizedImage{}, err
	}
	return NormalizedImage{Data: res.Data, QualityScore: res.QualityScore}, nil
}

// OCRRecognizer adapts ocr.Adapter to the stage interface.
type OCRRecognizer struct {
	A *ocr.Adapter
}

func (a OCRRecognizer) Recognize(ctx context.Context, image []byte) (entity.OCRResult, error) {
	return a.A.Recognize(ctx, image)
}
