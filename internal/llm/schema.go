package llm

// BuildVerificationJSONSchema describes the verifier's response.
func BuildVerificationJSONSchema() map[string]any {
	amount := map[string]any{"type": "integer", "minimum": 0}
	return map[string]any{
		"$schema":  "https://json-schema.org/draft/2020-12/schema",
		"type":     "object",
		"required": []string{"items", "item_total", "shipping_fee", "final_total"},
		"properties": map[string]any{
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":     "object",
					"required": []string{"product_name", "unit_price", "quantity", "subtotal"},
					"properties": map[string]any{
						"product_name": map[string]any{"type": "string"},
						"unit":         map[string]any{"type": "string"},
						"unit_price":   amount,
						"quantity":     amount,
						"subtotal":     amount,
					},
				},
			},
			"item_total":   amount,
			"shipping_fee": amount,
			"final_total":  amount,
			"reasoning":    map[string]any{"type": "string"},
		},
	}
}
