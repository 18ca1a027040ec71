package validate

import (
	"fmt"
	"math"
	"time"

	"github.com/joseph-ayodele/receipt-pipeline/constants"
	"github.com/joseph-ayodele/receipt-pipeline/internal/entity"
)

// Issue codes surfaced in ValidationReport entries.
const (
	CodeNoItems        = "NO_ITEMS"
	CodeMissingStore   = "MISSING_STORE"
	CodeMissingDate    = "MISSING_DATE"
	CodeFutureDate     = "FUTURE_DATE"
	CodeUnparsableDate = "UNPARSABLE_DATE"
	CodeTotalMismatch  = "TOTAL_MISMATCH"
	CodeMissingTotal   = "MISSING_TOTAL"
	CodeItemArithmetic = "ITEM_ARITHMETIC"
	CodeBadPrice       = "NONPOSITIVE_PRICE"
	CodePriceOutlier   = "PRICE_OUTLIER"
)

// itemPriceCeiling is the per-line magnitude above which a price is almost
// certainly an OCR artifact rather than a purchase.
const itemPriceCeiling = 10000.0

// Validate runs the deterministic checks on an extraction candidate and
// returns the report. It is a pure function of its inputs; "now" is passed in
// so temporal checks stay testable.
//
// Hard errors mark structural or arithmetic defects. Warnings mark things a
// human could still work with. Under LevelStrict any hard error sinks the
// receipt; under looser levels the confidence score decides.
func Validate(r entity.ExtractedReceipt, now time.Time, level constants.ValidationLevel, tolerance float64) entity.ValidationReport {
	if tolerance <= 0 {
		tolerance = 0.01
	}
	var report entity.ValidationReport

	addErr := func(code, format string, args ...any) {
		report.Errors = append(report.Errors, entity.ValidationIssue{Code: code, Message: fmt.Sprintf(format, args...)})
	}
	addWarn := func(code, format string, args ...any) {
		report.Warnings = append(report.Warnings, entity.ValidationIssue{Code: code, Message: fmt.Sprintf(format, args...)})
	}

	// Structural.
	if len(r.Items) == 0 {
		addErr(CodeNoItems, "no line items extracted")
	}
	if r.Store == "" {
		addWarn(CodeMissingStore, "store name missing")
	}

	// Temporal.
	switch {
	case r.Date == "":
		addWarn(CodeMissingDate, "purchase date missing")
	default:
		d, err := time.Parse("2006-01-02", r.Date)
		switch {
		case err != nil:
			addWarn(CodeUnparsableDate, "date %q is not ISO-8601", r.Date)
		case d.After(now.AddDate(0, 0, 1)):
			addErr(CodeFutureDate, "purchase date %s is in the future", r.Date)
		}
	}

	// Price plausibility.
	for i, it := range r.Items {
		if it.TotalPrice <= 0 {
			addErr(CodeBadPrice, "item %d (%s) has non-positive price %.2f", i, it.Name, it.TotalPrice)
			continue
		}
		if it.TotalPrice > itemPriceCeiling {
			addWarn(CodePriceOutlier, "item %d (%s) price %.2f is implausibly large", i, it.Name, it.TotalPrice)
		}
		if it.Quantity > 0 && it.UnitPrice > 0 {
			if math.Abs(it.Quantity*it.UnitPrice-it.TotalPrice) > tolerance {
				addWarn(CodeItemArithmetic, "item %d (%s): %.3f x %.2f != %.2f", i, it.Name, it.Quantity, it.UnitPrice, it.TotalPrice)
			}
		}
	}

	// Arithmetic against the declared total.
	sum := round2(r.ItemsSum())
	switch {
	case r.Total == nil:
		if len(r.Items) > 0 {
			addWarn(CodeMissingTotal, "declared total missing, items sum to %.2f", sum)
		}
	case math.Abs(*r.Total-sum) > tolerance:
		addErr(CodeTotalMismatch, "declared total %.2f does not match items sum %.2f", *r.Total, sum)
		report.CorrectedTotal = &sum
	}

	report.Confidence = confidence(len(report.Errors), len(report.Warnings))
	switch {
	case len(r.Items) == 0:
		// Nothing to work with at any level.
	case len(report.Errors) == 0:
		report.IsValid = true
	case level != constants.LevelStrict:
		report.IsValid = report.Confidence > 0.5
	}
	return report
}

func confidence(errs, warns int) float32 {
	c := 1.0 - 0.3*float64(errs) - 0.1*float64(warns)
	if c < 0 {
		c = 0
	}
	return float32(c)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
