package constants

import "strings"

// ValidationLevel controls the sensitivity of both business validation and
// hallucination checks.
type ValidationLevel string

const (
	LevelStrict   ValidationLevel = "STRICT"
	LevelModerate ValidationLevel = "MODERATE"
	LevelLenient  ValidationLevel = "LENIENT"
)

// ParseValidationLevel maps a string to a level, defaulting to MODERATE.
func ParseValidationLevel(s string) ValidationLevel {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(LevelStrict):
		return LevelStrict
	case string(LevelLenient):
		return LevelLenient
	default:
		return LevelModerate
	}
}

// CallerType selects which guard validator variant inspects a model response.
// The set is closed; unknown callers are treated as CallerDefault.
type CallerType string

const (
	CallerChef            CallerType = "CHEF"
	CallerReceiptAnalysis CallerType = "RECEIPT_ANALYSIS"
	CallerWeather         CallerType = "WEATHER"
	CallerSearch          CallerType = "SEARCH"
	CallerDefault         CallerType = "DEFAULT"
)

// ParseCallerType maps a string to a known caller type.
func ParseCallerType(s string) CallerType {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case string(CallerChef):
		return CallerChef
	case string(CallerReceiptAnalysis):
		return CallerReceiptAnalysis
	case string(CallerWeather):
		return CallerWeather
	case string(CallerSearch):
		return CallerSearch
	default:
		return CallerDefault
	}
}
