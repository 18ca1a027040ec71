package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractStructuredBlock_Fenced(t *testing.T) {
	reply := "Here is the result:\n```json\n{\"store\":\"Lidl\"}\n```\nDone."
	block, ok := ExtractStructuredBlock(reply)
	assert.True(t, ok)
	assert.Equal(t, `{"store":"Lidl"}`, block)
}

func TestExtractStructuredBlock_FencedWithoutLanguage(t *testing.T) {
	reply := "```\n{\"store\":\"Lidl\"}\n```"
	block, ok := ExtractStructuredBlock(reply)
	assert.True(t, ok)
	assert.Equal(t, `{"store":"Lidl"}`, block)
}

func TestExtractStructuredBlock_BareObject(t *testing.T) {
	reply := "  {\"store\":\"Biedronka\",\"items\":[]}  \n"
	block, ok := ExtractStructuredBlock(reply)
	assert.True(t, ok)
	assert.Equal(t, `{"store":"Biedronka","items":[]}`, block)
}

func TestExtractStructuredBlock_BraceMatchingInProse(t *testing.T) {
	reply := `Sure! The extracted receipt is {"store":"Lidl","items":[{"name":"Woda {still}","total_price":1.89}]} as requested.`
	block, ok := ExtractStructuredBlock(reply)
	assert.True(t, ok)
	assert.Equal(t, `{"store":"Lidl","items":[{"name":"Woda {still}","total_price":1.89}]}`, block)
}

func TestExtractStructuredBlock_IgnoresBracesInsideStrings(t *testing.T) {
	reply := `prefix {"note":"closing } inside a string","ok":true} suffix`
	block, ok := ExtractStructuredBlock(reply)
	assert.True(t, ok)
	assert.Equal(t, `{"note":"closing } inside a string","ok":true}`, block)
}

func TestExtractStructuredBlock_NoObject(t *testing.T) {
	_, ok := ExtractStructuredBlock("I could not read the receipt, sorry.")
	assert.False(t, ok)
}

func TestRepairJSON(t *testing.T) {
	in := `{store: 'Lidl', "items": [{"name": "Woda", "total_price": 1.89,},],}`
	out := RepairJSON(in)
	assert.JSONEq(t, `{"store":"Lidl","items":[{"name":"Woda","total_price":1.89}]}`, out)
}

func TestCanonicalStoreName(t *testing.T) {
	cases := map[string]string{
		"LIDL SP. Z O.O.":      "Lidl",
		"Biedronka Codziennie": "Biedronka",
		"CARREFOUR EXPRESS":    "Carrefour",
		"ZABKA Z1234":          "Żabka",
		"sklep u janusza":      "Sklep U Janusza",
		"":                     "",
	}
	for raw, want := range cases {
		assert.Equal(t, want, CanonicalStoreName(raw), "raw=%q", raw)
	}
}

func TestNormalizeDate(t *testing.T) {
	iso, ok := NormalizeDate("14.02.2024")
	assert.True(t, ok)
	assert.Equal(t, "2024-02-14", iso)

	iso, ok = NormalizeDate("2024-03-15")
	assert.True(t, ok)
	assert.Equal(t, "2024-03-15", iso)

	raw, ok := NormalizeDate("somewhere in march")
	assert.False(t, ok)
	assert.Equal(t, "somewhere in march", raw)

	_, ok = NormalizeDate("   ")
	assert.False(t, ok)
}
