package imageproc

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"math"
	"testing"

	"github.com/disintegration/imaging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func uniformImage(w, h int, v uint8) *image.NRGBA {
	return imaging.New(w, h, color.NRGBA{R: v, G: v, B: v, A: 255})
}

func checkerboard(w, h, block int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := uint8(0)
			if (x/block+y/block)%2 == 0 {
				v = 255
			}
			i := img.PixOffset(x, y)
			img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = v, v, v, 255
		}
	}
	return img
}

func pngBytes(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestQualityScoreOrdering(t *testing.T) {
	flat := imaging.Grayscale(uniformImage(120, 120, 128))
	crisp := imaging.Grayscale(checkerboard(120, 120, 2))

	qFlat := qualityScore(flat)
	qCrisp := qualityScore(crisp)

	assert.Less(t, qFlat, 0.1, "featureless image must score near zero")
	assert.Greater(t, qCrisp, qFlat)
	assert.Greater(t, qCrisp, 0.8, "high-frequency high-contrast image must score high")
}

func TestPickStrategyBands(t *testing.T) {
	n := NewNormalizer(Config{}, nil)

	assert.Equal(t, StrategyLight, n.pickStrategy(0.92))
	assert.Equal(t, StrategyStandard, n.pickStrategy(0.8)) // boundary: light requires > 0.8
	assert.Equal(t, StrategyStandard, n.pickStrategy(0.65))
	assert.Equal(t, StrategyStandard, n.pickStrategy(0.5)) // boundary: aggressive requires < 0.5
	assert.Equal(t, StrategyAggressive, n.pickStrategy(0.31))
}

func TestNormalizeProducesDecodablePNG(t *testing.T) {
	n := NewNormalizer(Config{TargetLongEdge: 300}, nil)

	res, err := n.Normalize(pngBytes(t, checkerboard(160, 120, 4)))
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(res.Data))
	require.NoError(t, err)
	assert.Equal(t, "png", format)
	assert.Equal(t, 300, img.Bounds().Dx(), "long edge rescaled to target")
	assert.Equal(t, n.pickStrategy(res.QualityScore), res.Strategy)
}

func TestNormalizeRejectsGarbage(t *testing.T) {
	n := NewNormalizer(Config{}, nil)

	_, err := n.Normalize([]byte("definitely not an image"))
	assert.Error(t, err)
}

func TestAggressiveFallsBackWithoutContour(t *testing.T) {
	n := NewNormalizer(Config{TargetLongEdge: 200}, nil)

	// Uniform mid-gray scores below the aggressive threshold but exposes no
	// page contour, so normalization must still succeed via the standard path.
	res, err := n.Normalize(pngBytes(t, uniformImage(200, 200, 110)))
	require.NoError(t, err)
	assert.Equal(t, StrategyAggressive, res.Strategy)
	assert.NotEmpty(t, res.Data)
}

func TestDetectPageContour(t *testing.T) {
	img := uniformImage(200, 200, 20)
	for y := 40; y <= 160; y++ {
		for x := 50; x <= 150; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i], img.Pix[i+1], img.Pix[i+2] = 240, 240, 240
		}
	}

	rect, ok := detectPageContour(imaging.Grayscale(img))
	require.True(t, ok)
	assert.Equal(t, 50, rect.Min.X)
	assert.Equal(t, 40, rect.Min.Y)
	assert.Equal(t, 151, rect.Max.X)
	assert.Equal(t, 161, rect.Max.Y)

	_, ok = detectPageContour(imaging.Grayscale(uniformImage(200, 200, 200)))
	assert.False(t, ok, "flat image exposes no contour")
}

func TestEstimateSkewHorizontalLines(t *testing.T) {
	img := uniformImage(240, 240, 250)
	for y := 20; y < 240; y += 12 {
		for x := 10; x < 230; x++ {
			i := img.PixOffset(x, y)
			img.Pix[i], img.Pix[i+1], img.Pix[i+2] = 10, 10, 10
		}
	}

	angle := estimateSkew(imaging.Grayscale(img))
	assert.InDelta(t, 0, math.Abs(angle), 0.3, "horizontal text lines need no rotation")
}

func TestAdaptiveThresholdKeepsInkDark(t *testing.T) {
	img := uniformImage(60, 60, 230)
	for x := 10; x < 50; x++ {
		i := img.PixOffset(x, 30)
		img.Pix[i], img.Pix[i+1], img.Pix[i+2] = 15, 15, 15
	}

	bin := adaptiveThreshold(imaging.Grayscale(img), 25, 8)
	assert.EqualValues(t, 0, bin.Pix[bin.PixOffset(30, 30)], "ink stays black")
	assert.EqualValues(t, 255, bin.Pix[bin.PixOffset(30, 5)], "paper stays white")
}
