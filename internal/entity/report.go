package entity

// ValidationIssue is one finding from the business validator.
type ValidationIssue struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// ValidationReport is derived once per validation pass and never mutated;
// re-validation produces a fresh report.
type ValidationReport struct {
	Errors     []ValidationIssue `json:"errors,omitempty"`
	Warnings   []ValidationIssue `json:"warnings,omitempty"`
	Confidence float32           `json:"confidence"` // 0..1
	IsValid    bool              `json:"is_valid"`

	// CorrectedTotal carries the sum-of-items total prepared when the declared
	// total failed the arithmetic check. Applied by the pipeline, not here.
	CorrectedTotal *float64 `json:"corrected_total,omitempty"`
}

// HallucinationType tags one category of fabricated content.
type HallucinationType string

const (
	HallucinationFactualError          HallucinationType = "FACTUAL_ERROR"
	HallucinationFabricatedPrice       HallucinationType = "FABRICATED_PRICE"
	HallucinationFabricatedMeasurement HallucinationType = "FABRICATED_MEASUREMENT"
	HallucinationUnverifiedClaim       HallucinationType = "UNVERIFIED_CLAIM"
)

// HallucinationVerdict scores how likely a model response contains fabricated
// content. Independent of ValidationReport; both gate the final accept
// decision.
type HallucinationVerdict struct {
	Score          float64             `json:"score"` // 0..1, higher = more likely fabricated
	DetectedTypes  []HallucinationType `json:"detected_types,omitempty"`
	Recommendation string              `json:"recommendation"`
}
