package llm

import "context"

// Completer is the language-model boundary: best-effort natural-language
// completion for a prompt, nothing more is assumed about the backend.
// Implementations must honor ctx cancellation and deadlines.
type Completer interface {
	Complete(ctx context.Context, prompt string, maxTokens int) (string, error)
}

// receiptPayload is the wire shape we instruct the model to emit. It is
// schema-validated before being mapped onto the domain candidate.
type receiptPayload struct {
	Store   string             `json:"store,omitempty"`
	Address string             `json:"address,omitempty"`
	Date    string             `json:"date,omitempty"`
	Items   []itemPayload      `json:"items"`
	Total   *float64           `json:"total,omitempty"`
	VAT     map[string]float64 `json:"vat,omitempty"`
}

type itemPayload struct {
	Name       string  `json:"name"`
	Quantity   float64 `json:"quantity,omitempty"`
	UnitPrice  float64 `json:"unit_price,omitempty"`
	TotalPrice float64 `json:"total_price"`
	VATRate    string  `json:"vat_rate,omitempty"`
}
