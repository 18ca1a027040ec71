package llm

import (
	"encoding/json"
	"strings"
)

// workedExamples are small OCR-text -> JSON pairs covering the common receipt
// layouts: plain NAME PRICE VAT-CODE lines, QTY x UNIT lines, and a sparse
// low-quality scan. Keeping them short matters more than covering every store.
var workedExamples = []struct {
	ocr  string
	json string
}{
	{
		ocr: "LIDL sp. z o.o.\nul. Polna 12, Warszawa\n2024-03-15\nCHLEB ZYTNI 2,99 A\nMASLO EXTRA 4,50 B\nSUMA PLN 7,49",
		json: `{"store":"Lidl","address":"ul. Polna 12, Warszawa","date":"2024-03-15",` +
			`"items":[{"name":"Chleb Zytni","quantity":1,"unit_price":2.99,"total_price":2.99,"vat_rate":"A"},` +
			`{"name":"Maslo Extra","quantity":1,"unit_price":4.50,"total_price":4.50,"vat_rate":"B"}],` +
			`"total":7.49,"vat":{"A":0.23,"B":0.36}}`,
	},
	{
		ocr: "BIEDRONKA\n14.02.2024\n2 x MLEKO 3,20 6,40\nJAJKA L10 12,99\nRAZEM 19,39",
		json: `{"store":"Biedronka","date":"2024-02-14",` +
			`"items":[{"name":"Mleko","quantity":2,"unit_price":3.20,"total_price":6.40},` +
			`{"name":"Jajka L10","quantity":1,"unit_price":12.99,"total_price":12.99}],` +
			`"total":19.39}`,
	},
	{
		ocr: "CARREFOUR EXPRESS\nWODA 1,89 zl\n(illegible)\nSUMA 1,89",
		json: `{"store":"Carrefour","items":[{"name":"Woda","quantity":1,"unit_price":1.89,"total_price":1.89}],` +
			`"total":1.89}`,
	},
}

// BuildExtractionPrompt grounds the model: explicit schema, normalization
// rules, worked examples, then the OCR text to extract from.
func BuildExtractionPrompt(ocrText string) string {
	schema, _ := json.Marshal(BuildReceiptSchema())

	var b strings.Builder
	b.WriteString("You are a receipt parser. Extract structured data from OCR text of a single retail receipt. ")
	b.WriteString("Return ONLY a JSON object matching this JSON Schema, inside a ```json fenced block:\n\n")
	b.Write(schema)
	b.WriteString("\n\nRules:\n")
	b.WriteString("- Store names are title-cased brand names (e.g. \"Lidl\", not \"LIDL SP. Z O.O.\").\n")
	b.WriteString("- Dates are ISO-8601 (YYYY-MM-DD).\n")
	b.WriteString("- Prices are decimal numbers with a dot separator; convert commas.\n")
	b.WriteString("- Keep items in the order they appear on the receipt.\n")
	b.WriteString("- Never invent items, prices, or dates that are not present in the OCR text.\n")
	b.WriteString("- Omit fields you cannot read; do not output null.\n")

	for _, ex := range workedExamples {
		b.WriteString("\nOCR text:\n")
		b.WriteString(ex.ocr)
		b.WriteString("\nOutput:\n```json\n")
		b.WriteString(ex.json)
		b.WriteString("\n```\n")
	}

	b.WriteString("\nOCR text:\n")
	b.WriteString(ocrText)
	b.WriteString("\nOutput:\n")
	return b.String()
}
