package entity

import (
	"crypto/sha256"
	"encoding/hex"
)

// ReceiptImage is the immutable unit of work submitted to the pipeline.
// The content hash keys all cache lookups; jobs are never used as cache keys.
type ReceiptImage struct {
	Data     []byte `json:"-"`
	MimeType string `json:"mime_type"`
	Size     int64  `json:"size"`
	Hash     string `json:"hash"` // SHA-256 hex of Data
}

// NewReceiptImage wraps raw bytes with their declared MIME type and computes
// the content hash.
func NewReceiptImage(data []byte, mimeType string) ReceiptImage {
	sum := sha256.Sum256(data)
	return ReceiptImage{
		Data:     data,
		MimeType: mimeType,
		Size:     int64(len(data)),
		Hash:     hex.EncodeToString(sum[:]),
	}
}

// OCRStrategy selects the recognition cost/quality trade-off.
type OCRStrategy string

const (
	OCRQuick    OCRStrategy = "quick"
	OCRStandard OCRStrategy = "standard"
)

// OCRResult is the raw text plus a confidence estimate produced by one
// recognition call. Confidence is derived from the engine's per-token
// confidence distribution, never assumed.
type OCRResult struct {
	Text       string      `json:"text"`
	Confidence float32     `json:"confidence"` // 0..1
	Engine     OCRStrategy `json:"engine"`
}

// LineItem is one purchased position as printed on the receipt.
type LineItem struct {
	Name       string  `json:"name"`
	Quantity   float64 `json:"quantity"`
	UnitPrice  float64 `json:"unit_price"`
	TotalPrice float64 `json:"total_price"`
	VATRate    string  `json:"vat_rate,omitempty"` // e.g. "A", "B", "23%"
}

// ExtractedReceipt is the pre-validation candidate produced by the structured
// extractor or the fallback parser. Items keep on-receipt order and are never
// re-sorted.
type ExtractedReceipt struct {
	Store   string             `json:"store,omitempty"`
	Address string             `json:"address,omitempty"`
	Date    string             `json:"date,omitempty"` // ISO-8601 (YYYY-MM-DD)
	Items   []LineItem         `json:"items"`
	Total   *float64           `json:"total,omitempty"`
	VAT     map[string]float64 `json:"vat,omitempty"` // VAT rate -> amount
	Source  string             `json:"source,omitempty"`
}

// ItemsSum returns the arithmetic total of all line item totals.
func (r *ExtractedReceipt) ItemsSum() float64 {
	var sum float64
	for _, it := range r.Items {
		sum += it.TotalPrice
	}
	return sum
}

// ValidatedReceipt is the final pipeline output: the candidate with its
// validation report and hallucination verdict, total already corrected to the
// arithmetically derived sum when the declared total disagreed beyond
// tolerance.
type ValidatedReceipt struct {
	Receipt ExtractedReceipt     `json:"receipt"`
	Report  ValidationReport     `json:"report"`
	Verdict HallucinationVerdict `json:"verdict"`
}
