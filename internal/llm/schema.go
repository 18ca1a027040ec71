package llm

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

// BuildReceiptSchema returns a JSON-Schema (draft 2020-12 subset) as a generic
// map. It is embedded in the prompt and used locally to validate the model's
// reply.
func BuildReceiptSchema() map[string]any {
	item := map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"name":        map[string]any{"type": "string", "minLength": 1},
			"quantity":    map[string]any{"type": "number", "minimum": 0},
			"unit_price":  map[string]any{"type": "number"},
			"total_price": map[string]any{"type": "number"},
			"vat_rate":    map[string]any{"type": "string"},
		},
		"required": []string{"name", "total_price"},
	}

	return map[string]any{
		"type":                 "object",
		"additionalProperties": false,
		"properties": map[string]any{
			"store":   map[string]any{"type": "string"},
			"address": map[string]any{"type": "string"},
			"date":    map[string]any{"type": "string"},
			"items":   map[string]any{"type": "array", "items": item},
			"total":   map[string]any{"type": "number"},
			"vat": map[string]any{
				"type":                 "object",
				"additionalProperties": map[string]any{"type": "number"},
			},
		},
		"required": []string{"items"},
	}
}

// ValidateJSONAgainstSchema validates "data" against "schemaMap".
func ValidateJSONAgainstSchema(schemaMap map[string]any, data []byte) error {
	b, err := json.Marshal(schemaMap)
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("schema.json", bytes.NewReader(b)); err != nil {
		return fmt.Errorf("add schema: %w", err)
	}
	schema, err := compiler.Compile("schema.json")
	if err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("unmarshal data: %w", err)
	}
	if err := schema.Validate(v); err != nil {
		return fmt.Errorf("json does not match schema: %w", err)
	}
	return nil
}
