package ocr

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

// TesseractConfig configures the exec-based tesseract engine.
type TesseractConfig struct {
	Binary      string // binary name or absolute path; if empty -> "tesseract"
	TessdataDir string
}

// TesseractEngine implements Engine by shelling out to tesseract in TSV mode,
// which yields both the recognized words and their per-word confidences in a
// single pass. The quick strategy runs the legacy fast path; standard runs
// the LSTM engine with page segmentation tuned for receipt columns.
type TesseractEngine struct {
	cfg    TesseractConfig
	runner Runner
}

func NewTesseractEngine(cfg TesseractConfig, logger *slog.Logger) *TesseractEngine {
	if cfg.Binary == "" {
		cfg.Binary = "tesseract"
	}
	return &TesseractEngine{cfg: cfg, runner: newExecRunner(logger)}
}

func (e *TesseractEngine) Recognize(ctx context.Context, image []byte, languageHint string, strategy entity.OCRStrategy) (EngineResult, error) {
	if languageHint == "" {
		languageHint = "eng"
	}

	tmp, err := os.CreateTemp("", "rp-ocr-*.png")
	if err != nil {
		return EngineResult{}, fmt.Errorf("temp image: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()
	if _, err := tmp.Write(image); err != nil {
		_ = tmp.Close()
		return EngineResult{}, fmt.Errorf("write temp image: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return EngineResult{}, fmt.Errorf("close temp image: %w", err)
	}

	args := []string{tmp.Name(), "stdout", "-l", languageHint}
	switch strategy {
	case entity.OCRQuick:
		args = append(args, "--psm", "6", "--oem", "0")
	default:
		args = append(args, "--psm", "4", "--oem", "1")
	}
	if e.cfg.TessdataDir != "" {
		args = append(args, "--tessdata-dir", e.cfg.TessdataDir)
	}
	args = append(args, "tsv")

	out, errb, err := e.runner.Run(ctx, e.cfg.Binary, args...)
	if err != nil {
		if ctx.Err() != nil {
			return EngineResult{}, ctx.Err()
		}
		return EngineResult{}, fmt.Errorf("tesseract: %w (stderr: %s)", err, truncate(string(errb), 512))
	}
	return parseTSV(string(out)), nil
}

// parseTSV reconstructs line-structured text and per-word confidences from
// tesseract's TSV output. Word rows are level 5; the conf column is -1 for
// structural rows.
func parseTSV(tsv string) EngineResult {
	var (
		tokens   []TokenConfidence
		text     strings.Builder
		lastLine = ""
	)

	for i, ln := range strings.Split(tsv, "\n") {
		if i == 0 || strings.TrimSpace(ln) == "" {
			continue // header
		}
		cols := strings.Split(ln, "\t")
		if len(cols) < 12 {
			continue
		}
		if cols[0] != "5" { // level: only word rows carry text
			continue
		}
		word := strings.TrimSpace(cols[11])
		if word == "" {
			continue
		}

		// page/block/par/line numbers identify the physical line
		lineKey := strings.Join(cols[1:5], ":")
		if lastLine != "" && lineKey != lastLine {
			text.WriteByte('\n')
		} else if lastLine != "" {
			text.WriteByte(' ')
		}
		lastLine = lineKey
		text.WriteString(word)

		conf := float32(0)
		if v, err := strconv.ParseFloat(cols[10], 64); err == nil && v >= 0 {
			conf = float32(v / 100.0)
		}
		tokens = append(tokens, TokenConfidence{Token: word, Confidence: conf})
	}
	return EngineResult{Text: text.String(), Tokens: tokens}
}

// WriteDebugArtifact dumps the recognized text next to the source image for
// manual inspection. Used by the one-shot CLI, not the pipeline.
func WriteDebugArtifact(dir, hash, text string) error {
	if dir == "" {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, hash+".txt"), []byte(text), 0o644)
}
