package llm

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/joseph-ayodele/receipt-pipeline/internal/common"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

type Config struct {
	Timeout   time.Duration // default 30s
	MaxTokens int           // default 2048
}

// Extractor turns OCR text into an ExtractedReceipt candidate through the
// language-model boundary: grounded prompt, completion, parse with one repair
// pass, schema validation, then normalization onto the domain shape.
type Extractor struct {
	completer Completer
	cfg       Config
	logger    *slog.Logger
}

func NewExtractor(completer Completer, cfg Config, logger *slog.Logger) *Extractor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 2048
	}
	return &Extractor{completer: completer, cfg: cfg, logger: logger}
}

// Extract calls the model and parses its reply. Transport faults and
// deadline hits surface as ErrExtractionTimeout (transient, retryable);
// unusable replies surface as ErrExtractionParse (deterministic, the caller
// falls back instead of retrying).
func (e *Extractor) Extract(ctx context.Context, ocrText string) (entity.ExtractedReceipt, error) {
	start := time.Now()
	prompt := BuildExtractionPrompt(ocrText)

	callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
	defer cancel()

	reply, err := e.completer.Complete(callCtx, prompt, e.cfg.MaxTokens)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
			return entity.ExtractedReceipt{}, common.WrapError(common.ErrJobCancelled, "extraction cancelled")
		}
		e.logger.Warn("llm.extract.transport_error", "error", err, "elapsed_ms", time.Since(start).Milliseconds())
		return entity.ExtractedReceipt{}, common.NewAppError("EXTRACTION_TIMEOUT", err.Error(), common.ErrExtractionTimeout)
	}

	payload, err := e.parseReply(reply)
	if err != nil {
		e.logger.Warn("llm.extract.parse_failed",
			"error", err,
			"reply_len", len(reply),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return entity.ExtractedReceipt{}, err
	}

	out := normalizeCandidate(payload)
	e.logger.Info("llm.extract.ok",
		"store", out.Store,
		"date", out.Date,
		"items", len(out.Items),
		"has_total", out.Total != nil,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// parseReply applies the ordered block-extraction strategies, then one repair
// pass before giving up.
func (e *Extractor) parseReply(reply string) (receiptPayload, error) {
	block, ok := ExtractStructuredBlock(reply)
	if !ok {
		return receiptPayload{}, common.NewAppError("EXTRACTION_PARSE", "no structured block in model reply", common.ErrExtractionParse)
	}

	payload, err := decodeAndValidate([]byte(block))
	if err == nil {
		return payload, nil
	}

	repaired := RepairJSON(block)
	payload, rerr := decodeAndValidate([]byte(repaired))
	if rerr == nil {
		e.logger.Debug("llm.extract.repair_applied")
		return payload, nil
	}
	return receiptPayload{}, common.NewAppError("EXTRACTION_PARSE", err.Error(), common.ErrExtractionParse)
}

func decodeAndValidate(data []byte) (receiptPayload, error) {
	if err := ValidateJSONAgainstSchema(BuildReceiptSchema(), data); err != nil {
		return receiptPayload{}, err
	}
	var p receiptPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return receiptPayload{}, err
	}
	return p, nil
}

// normalizeCandidate maps the wire payload onto the domain candidate:
// canonical store name, ISO date, derived unit prices and quantities where
// the model omitted them. Item order is preserved.
func normalizeCandidate(p receiptPayload) entity.ExtractedReceipt {
	out := entity.ExtractedReceipt{
		Store:   CanonicalStoreName(p.Store),
		Address: p.Address,
		Total:   p.Total,
		VAT:     p.VAT,
		Source:  "llm",
	}
	if p.Date != "" {
		out.Date, _ = NormalizeDate(p.Date)
	}

	out.Items = make([]entity.LineItem, 0, len(p.Items))
	for _, it := range p.Items {
		item := entity.LineItem{
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice,
			TotalPrice: it.TotalPrice,
			VATRate:    it.VATRate,
		}
		if item.Quantity == 0 {
			item.Quantity = 1
		}
		if item.UnitPrice == 0 && item.Quantity > 0 {
			item.UnitPrice = item.TotalPrice / item.Quantity
		}
		if item.TotalPrice == 0 && item.UnitPrice != 0 {
			item.TotalPrice = item.UnitPrice * item.Quantity
		}
		out.Items = append(out.Items, item)
	}
	return out
}
