package llm

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

var reAmountNoise = regexp.MustCompile(`[,\s원₩]`)

var (
	topAmounts  = []string{"item_total", "shipping_fee", "final_total"}
	itemAmounts = []string{"unit_price", "quantity", "subtotal"}
)

// StripCodeFences removes a surrounding markdown code block, as models often
// wrap JSON in one despite instructions.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}

// NormalizeAmounts coerces money-ish values such as "35,000원" or 35000.0 to
// integers and renames known synonyms, so a near-miss response can still validate.
// Returns the rewritten document and the keys that were changed.
func NormalizeAmounts(raw []byte, logger *slog.Logger) ([]byte, []string, error) {
	if logger == nil {
		logger = slog.Default()
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, fmt.Errorf("sanitize: decode: %w", err)
	}

	changed := make([]string, 0, 4)
	rename := func(from, to string) {
		if v, ok := m[from]; ok {
			if _, exists := m[to]; !exists {
				m[to] = v
			}
			delete(m, from)
			changed = append(changed, from+"->"+to)
		}
	}
	rename("total_price", "final_total")
	rename("shipping", "shipping_fee")
	rename("breakdown", "items")

	for _, k := range topAmounts {
		if coerceAmount(m, k) {
			changed = append(changed, k)
		}
	}
	if list, ok := m["items"].([]any); ok {
		for i, it := range list {
			obj, ok := it.(map[string]any)
			if !ok {
				continue
			}
			for _, k := range itemAmounts {
				if coerceAmount(obj, k) {
					changed = append(changed, fmt.Sprintf("items[%d].%s", i, k))
				}
			}
		}
	}

	out, err := json.Marshal(m)
	if err != nil {
		return nil, changed, fmt.Errorf("sanitize: encode: %w", err)
	}
	if len(changed) > 0 {
		logger.Warn("llm.verify.normalize_amounts", "changed", changed)
	}
	return out, changed, nil
}

// coerceAmount rewrites m[k] to an int when it is a numeric string or a whole float.
func coerceAmount(m map[string]any, k string) bool {
	v, ok := m[k]
	if !ok {
		return false
	}
	switch t := v.(type) {
	case float64:
		if t == float64(int64(t)) {
			return false // already an integer on the wire
		}
		m[k] = int64(t + 0.5)
		return true
	case string:
		s := reAmountNoise.ReplaceAllString(t, "")
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return false
		}
		m[k] = n
		return true
	}
	return false
}
