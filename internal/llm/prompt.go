package llm

import (
	"encoding/json"
	"strings"
)

// maxGuideChars caps how much guide text is sent to the model.
const maxGuideChars = 6000

// BuildSystemPrompt instructs the model to act as a strict price auditor.
func BuildSystemPrompt() string {
	parts := []string{
		"You are a strict price verification auditor for a group-buy store.",
		"Calculate the EXACT total price for an order based only on the provided store guide. Do not guess.",
		"Match product names, options and units exactly against the guide.",
		"For each item: find the unit price in the guide, then subtotal = unit price * quantity.",
		"item_total is the sum of item subtotals.",
		"Apply the guide's shipping rules (free shipping at or above a threshold, otherwise a flat fee).",
		"final_total = item_total + shipping_fee.",
		"All amounts are whole Korean won as JSON integers, with no separators or currency symbols.",
		"Return ONLY JSON that matches the provided schema.",
	}
	return strings.Join(parts, " ")
}

// BuildUserPrompt embeds the guide and the order items.
func BuildUserPrompt(req VerifyRequest) string {
	guide := req.GuideText
	if r := []rune(guide); len(r) > maxGuideChars {
		guide = string(r[:maxGuideChars])
	}
	items := req.Items
	if items == nil {
		items = []VerifyItem{}
	}
	b, _ := json.MarshalIndent(items, "", "  ")

	var sb strings.Builder
	sb.WriteString("STORE GUIDE:\n")
	sb.WriteString(guide)
	sb.WriteString("\n\nORDER ITEMS:\n")
	sb.Write(b)
	sb.WriteString("\n\nReturn the result as JSON with keys items, item_total, shipping_fee, final_total, reasoning.")
	return sb.String()
}
