package imageproc

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"log/slog"

	"github.com/disintegration/imaging"

	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
)

// Strategy names the normalization intensity picked from the quality score.
type Strategy string

const (
	StrategyLight      Strategy = "light"
	StrategyStandard   Strategy = "standard"
	StrategyAggressive Strategy = "aggressive"
)

type Config struct {
	// TargetLongEdge is the pixel length of the long edge after rescaling,
	// approximating a 300 DPI receipt scan. Default 2400.
	TargetLongEdge int

	// LightThreshold and AggressiveThreshold bound the standard band.
	// Defaults 0.8 and 0.5.
	LightThreshold      float64
	AggressiveThreshold float64
}

// Result carries the normalized image and the assessment that chose the
// strategy. Data is always PNG-encoded.
type Result struct {
	Data         []byte
	QualityScore float64
	Strategy     Strategy
	Width        int
	Height       int
}

type Normalizer struct {
	cfg    Config
	logger *slog.Logger
}

func NewNormalizer(cfg Config, logger *slog.Logger) *Normalizer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.TargetLongEdge <= 0 {
		cfg.TargetLongEdge = 2400
	}
	if cfg.LightThreshold <= 0 {
		cfg.LightThreshold = 0.8
	}
	if cfg.AggressiveThreshold <= 0 {
		cfg.AggressiveThreshold = 0.5
	}
	return &Normalizer{cfg: cfg, logger: logger}
}

// Normalize decodes raw image bytes, scores their quality, and applies the
// matching normalization strategy. The caller owns releasing the input
// buffer once the result is produced.
func (n *Normalizer) Normalize(data []byte) (Result, error) {
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return Result{}, common.NewAppError("IMAGE_DECODE", fmt.Sprintf("decode image: %v", err), common.ErrInvalidInput)
	}

	gray := imaging.Grayscale(img)
	score := qualityScore(gray)
	strategy := n.pickStrategy(score)

	var out *image.NRGBA
	switch strategy {
	case StrategyLight:
		out = imaging.AdjustContrast(img, 15)
	case StrategyAggressive:
		out = n.aggressive(img, gray)
	default:
		out = n.standard(img, gray)
	}
	out = n.rescale(out)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, out, imaging.PNG); err != nil {
		return Result{}, fmt.Errorf("encode normalized image: %w", err)
	}

	res := Result{
		Data:         buf.Bytes(),
		QualityScore: score,
		Strategy:     strategy,
		Width:        out.Rect.Dx(),
		Height:       out.Rect.Dy(),
	}
	n.logger.Debug("imageproc.normalize.ok",
		"strategy", string(strategy),
		"quality", score,
		"in_bytes", len(data),
		"out_bytes", len(res.Data),
		"width", res.Width,
		"height", res.Height,
	)
	return res, nil
}

// AssessQuality exposes the strategy-selection score for already decoded
// images.
func (n *Normalizer) AssessQuality(img image.Image) float64 {
	return qualityScore(imaging.Grayscale(img))
}

func (n *Normalizer) pickStrategy(score float64) Strategy {
	switch {
	case score > n.cfg.LightThreshold:
		return StrategyLight
	case score < n.cfg.AggressiveThreshold:
		return StrategyAggressive
	default:
		return StrategyStandard
	}
}

// standard deskews, denoises, and stretches contrast.
func (n *Normalizer) standard(img image.Image, gray *image.NRGBA) *image.NRGBA {
	out := imaging.Clone(img)
	if angle := estimateSkew(gray); angle != 0 {
		out = imaging.Rotate(out, -angle, color.White)
	}
	out = imaging.Blur(out, 0.6)
	return imaging.AdjustContrast(out, 10)
}

// aggressive crops to the detected page contour and binarizes with an
// adaptive threshold. A missing contour falls back to the standard path.
func (n *Normalizer) aggressive(img image.Image, gray *image.NRGBA) *image.NRGBA {
	rect, ok := detectPageContour(gray)
	if !ok {
		n.logger.Debug("imageproc.contour.not_found")
		return n.standard(img, gray)
	}
	cropped := imaging.Crop(img, rect)
	croppedGray := imaging.Grayscale(cropped)
	if angle := estimateSkew(croppedGray); angle != 0 {
		croppedGray = imaging.Rotate(croppedGray, -angle, color.White)
	}
	return adaptiveThreshold(croppedGray, 25, 8)
}

func (n *Normalizer) rescale(img *image.NRGBA) *image.NRGBA {
	w, h := img.Rect.Dx(), img.Rect.Dy()
	long := w
	if h > long {
		long = h
	}
	if long == n.cfg.TargetLongEdge || long == 0 {
		return img
	}
	if w >= h {
		return imaging.Resize(img, n.cfg.TargetLongEdge, 0, imaging.Lanczos)
	}
	return imaging.Resize(img, 0, n.cfg.TargetLongEdge, imaging.Lanczos)
}

// adaptiveThreshold binarizes using a local mean over a square window minus a
// small bias, computed with an integral image.
func adaptiveThreshold(gray *image.NRGBA, window, bias int) *image.NRGBA {
	b := gray.Rect
	w, h := b.Dx(), b.Dy()
	out := image.NewNRGBA(image.Rect(0, 0, w, h))
	if w == 0 || h == 0 {
		return out
	}

	integral := make([]uint64, (w+1)*(h+1))
	for y := 0; y < h; y++ {
		row := gray.Pix[y*gray.Stride:]
		var rowSum uint64
		for x := 0; x < w; x++ {
			rowSum += uint64(row[x*4])
			integral[(y+1)*(w+1)+x+1] = integral[y*(w+1)+x+1] + rowSum
		}
	}

	half := window / 2
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			x0, y0 := x-half, y-half
			x1, y1 := x+half+1, y+half+1
			if x0 < 0 {
				x0 = 0
			}
			if y0 < 0 {
				y0 = 0
			}
			if x1 > w {
				x1 = w
			}
			if y1 > h {
				y1 = h
			}
			area := uint64((x1 - x0) * (y1 - y0))
			sum := integral[y1*(w+1)+x1] - integral[y0*(w+1)+x1] -
				integral[y1*(w+1)+x0] + integral[y0*(w+1)+x0]
			mean := sum / area

			v := uint8(255)
			if uint64(gray.Pix[y*gray.Stride+x*4])+uint64(bias) < mean {
				v = 0
			}
			i := out.PixOffset(x, y)
			out.Pix[i], out.Pix[i+1], out.Pix[i+2], out.Pix[i+3] = v, v, v, 255
		}
	}
	return out
}
