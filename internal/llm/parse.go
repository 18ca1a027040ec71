package llm

import (
	"regexp"
	"strings"
	"time"
	"unicode"
)

var reFenced = regexp.MustCompile("(?s)```(?:json)?\\s*(\\{.*?\\})\\s*```")

// ExtractStructuredBlock pulls the JSON object out of a model reply, trying
// strategies in order of reliability: fenced code block, bare object, then
// best-effort brace matching inside surrounding prose.
func ExtractStructuredBlock(reply string) (string, bool) {
	if m := reFenced.FindStringSubmatch(reply); m != nil {
		return m[1], true
	}

	trimmed := strings.TrimSpace(reply)
	if strings.HasPrefix(trimmed, "{") && strings.HasSuffix(trimmed, "}") {
		return trimmed, true
	}

	return matchBraces(reply)
}

// matchBraces finds the first balanced {...} span, ignoring braces inside
// string literals.
func matchBraces(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

var (
	reTrailingComma = regexp.MustCompile(`,\s*([}\]])`)
	reUnquotedKey   = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)\s*:`)
	reSingleQuoted  = regexp.MustCompile(`'([^'"]*)'`)
)

// RepairJSON strips the formatting defects models commonly produce: trailing
// separators, unquoted keys, and single-quoted strings. It is a one-shot
// best-effort pass; callers re-parse and give up after it.
func RepairJSON(s string) string {
	s = reTrailingComma.ReplaceAllString(s, "$1")
	s = reUnquotedKey.ReplaceAllString(s, `$1"$2":`)
	s = reSingleQuoted.ReplaceAllString(s, `"$1"`)
	return s
}

// canonicalStores maps lowercase brand substrings to their canonical form.
// Receipts print legal suffixes and all-caps variants; customers know the
// brand.
var canonicalStores = map[string]string{
	"lidl":       "Lidl",
	"biedronka":  "Biedronka",
	"carrefour":  "Carrefour",
	"auchan":     "Auchan",
	"tesco":      "Tesco",
	"zabka":      "Żabka",
	"żabka":      "Żabka",
	"kaufland":   "Kaufland",
	"aldi":       "Aldi",
	"netto":      "Netto",
	"lewiatan":   "Lewiatan",
	"rossmann":   "Rossmann",
	"stokrotka":  "Stokrotka",
	"intermarch": "Intermarché",
}

// CanonicalStoreName maps a raw store string to its canonical brand name,
// falling back to title-casing the cleaned input.
func CanonicalStoreName(raw string) string {
	cleaned := strings.TrimSpace(raw)
	if cleaned == "" {
		return ""
	}
	lower := strings.ToLower(cleaned)
	for sub, canon := range canonicalStores {
		if strings.Contains(lower, sub) {
			return canon
		}
	}
	return titleCase(cleaned)
}

func titleCase(s string) string {
	words := strings.Fields(strings.ToLower(s))
	for i, w := range words {
		r := []rune(w)
		r[0] = unicode.ToUpper(r[0])
		words[i] = string(r)
	}
	return strings.Join(words, " ")
}

var dateLayouts = []string{
	"2006-01-02",
	"2006/01/02",
	"02.01.2006",
	"02-01-2006",
	"02/01/2006",
	"2.1.2006",
}

// NormalizeDate coerces common receipt date formats to ISO-8601. Returns the
// input unchanged with ok=false when no layout matches, so validation can
// flag it instead of losing it.
func NormalizeDate(raw string) (string, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", false
	}
	for _, layout := range dateLayouts {
		if d, err := time.Parse(layout, s); err == nil {
			return d.Format("2006-01-02"), true
		}
	}
	return raw, false
}
