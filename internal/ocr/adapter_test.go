package ocr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

// stubEngine scripts one response per strategy.
type stubEngine struct {
	results map[entity.OCRStrategy]EngineResult
	errs    map[entity.OCRStrategy]error
	block   map[entity.OCRStrategy]bool // block until ctx expires
	calls   []entity.OCRStrategy
}

func (s *stubEngine) Recognize(ctx context.Context, _ []byte, _ string, strategy entity.OCRStrategy) (EngineResult, error) {
	s.calls = append(s.calls, strategy)
	if s.block[strategy] {
		<-ctx.Done()
		return EngineResult{}, ctx.Err()
	}
	if err := s.errs[strategy]; err != nil {
		return EngineResult{}, err
	}
	return s.results[strategy], nil
}

func tokens(conf float32, words ...string) []TokenConfidence {
	out := make([]TokenConfidence, len(words))
	for i, w := range words {
		out[i] = TokenConfidence{Token: w, Confidence: conf}
	}
	return out
}

const receiptText = "LIDL\nCHLEB ZYTNI 2,99 A\nMASLO 4,50 B\nSUMA 7,49"

func TestRecognizeQuickSufficient(t *testing.T) {
	eng := &stubEngine{results: map[entity.OCRStrategy]EngineResult{
		entity.OCRQuick: {Text: receiptText, Tokens: tokens(0.9, "LIDL", "SUMA", "7,49")},
	}}
	a := NewAdapter(eng, Config{}, nil)

	res, err := a.Recognize(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, entity.OCRQuick, res.Engine)
	assert.Equal(t, receiptText, res.Text)
	assert.Equal(t, []entity.OCRStrategy{entity.OCRQuick}, eng.calls, "no escalation when quick is good")
	assert.Greater(t, res.Confidence, float32(0.6))
}

func TestRecognizeEscalatesOnLowConfidence(t *testing.T) {
	eng := &stubEngine{results: map[entity.OCRStrategy]EngineResult{
		entity.OCRQuick:    {Text: receiptText, Tokens: tokens(0.2, "L1DL", "5UMA")},
		entity.OCRStandard: {Text: receiptText, Tokens: tokens(0.95, "LIDL", "SUMA")},
	}}
	a := NewAdapter(eng, Config{}, nil)

	res, err := a.Recognize(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, entity.OCRStandard, res.Engine)
	assert.Equal(t, []entity.OCRStrategy{entity.OCRQuick, entity.OCRStandard}, eng.calls)
}

func TestRecognizeEscalatesOnShortText(t *testing.T) {
	eng := &stubEngine{results: map[entity.OCRStrategy]EngineResult{
		entity.OCRQuick:    {Text: "LIDL", Tokens: tokens(0.99, "LIDL")},
		entity.OCRStandard: {Text: receiptText, Tokens: tokens(0.9, "LIDL", "SUMA")},
	}}
	a := NewAdapter(eng, Config{}, nil)

	res, err := a.Recognize(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, entity.OCRStandard, res.Engine)
}

func TestRecognizeKeepsQuickWhenStandardFails(t *testing.T) {
	eng := &stubEngine{
		results: map[entity.OCRStrategy]EngineResult{
			entity.OCRQuick: {Text: receiptText, Tokens: tokens(0.3, "LIDL")},
		},
		errs: map[entity.OCRStrategy]error{
			entity.OCRStandard: errors.New("engine crashed"),
		},
	}
	a := NewAdapter(eng, Config{}, nil)

	res, err := a.Recognize(context.Background(), []byte("img"))
	require.NoError(t, err)
	assert.Equal(t, entity.OCRQuick, res.Engine)
}

func TestRecognizeTimeoutMapsToSentinel(t *testing.T) {
	eng := &stubEngine{block: map[entity.OCRStrategy]bool{
		entity.OCRQuick:    true,
		entity.OCRStandard: true,
	}}
	a := NewAdapter(eng, Config{
		QuickTimeout:    20 * time.Millisecond,
		StandardTimeout: 20 * time.Millisecond,
	}, nil)

	_, err := a.Recognize(context.Background(), []byte("img"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrOCRTimeout))
}

func TestRecognizeEngineCrashMapsToSentinel(t *testing.T) {
	eng := &stubEngine{errs: map[entity.OCRStrategy]error{
		entity.OCRQuick:    errors.New("segfault"),
		entity.OCRStandard: errors.New("segfault"),
	}}
	a := NewAdapter(eng, Config{}, nil)

	_, err := a.Recognize(context.Background(), []byte("img"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrOCREngineFailure))
}

func TestRecognizeCancellation(t *testing.T) {
	eng := &stubEngine{block: map[entity.OCRStrategy]bool{entity.OCRQuick: true}}
	a := NewAdapter(eng, Config{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	_, err := a.Recognize(ctx, []byte("img"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, common.ErrJobCancelled))
}

func TestMeanConfidence(t *testing.T) {
	assert.EqualValues(t, 0, MeanConfidence(nil))
	got := MeanConfidence([]TokenConfidence{{Confidence: 0.4}, {Confidence: 0.8}})
	assert.InDelta(t, 0.6, got, 1e-6)
}

func TestParseTSV(t *testing.T) {
	tsv := "level\tpage_num\tblock_num\tpar_num\tline_num\tword_num\tleft\ttop\twidth\theight\tconf\ttext\n" +
		"4\t1\t1\t1\t1\t0\t0\t0\t10\t10\t-1\t\n" +
		"5\t1\t1\t1\t1\t1\t0\t0\t10\t10\t96\tLIDL\n" +
		"5\t1\t1\t1\t2\t1\t0\t12\t10\t10\t91\tSUMA\n" +
		"5\t1\t1\t1\t2\t2\t20\t12\t10\t10\t88\t7,49\n"

	res := parseTSV(tsv)
	assert.Equal(t, "LIDL\nSUMA 7,49", res.Text)
	require.Len(t, res.Tokens, 3)
	assert.InDelta(t, 0.96, res.Tokens[0].Confidence, 1e-6)
}
