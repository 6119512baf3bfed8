package batch

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
)

var (
	reNotWordish = regexp.MustCompile(`[^a-zA-Z0-9가-힣]`)
	// a bare parenthesized value such as "phone": (010-1234-5678),
	reBareParen = regexp.MustCompile(`:\s*(\([^)]+\)),`)
)

// CoreFields are compared one point each; items add a sixth, fractional point.
var CoreFields = []string{
	"customer_name",
	"contact_number",
	"delivery_address",
	"desired_delivery_date",
	"expected_amount",
}

// NormalizeString lower-cases v and keeps only ASCII letters, digits and Hangul.
func NormalizeString(v any) string {
	return reNotWordish.ReplaceAllString(strings.ToLower(stringify(v)), "")
}

// IsLooseMatch reports whether the normalized values are equal or one contains
// the other. Two empty values match; exactly one empty value does not.
func IsLooseMatch(pred, label any) bool {
	p, l := NormalizeString(pred), NormalizeString(label)
	if p == "" || l == "" {
		return p == l
	}
	return p == l || strings.Contains(l, p) || strings.Contains(p, l)
}

// CalculateCorrectness scores a predicted label JSON against an expected label
// on a 0..1 scale, rounded to two decimals. Anything unparseable scores 0.
func CalculateCorrectness(predict, label string) float64 {
	if strings.TrimSpace(label) == "" {
		return 0
	}
	want, ok := parseLabel(label)
	if !ok {
		return 0
	}
	got := map[string]any{}
	if v, err := decode(predict); err == nil {
		m, isObj := v.(map[string]any)
		if !isObj {
			return 0
		}
		got = m
	}

	matches := 0.0
	for _, field := range CoreFields {
		p, l := got[field], want[field]
		if field == "expected_amount" {
			pn, errP := amount(p)
			ln, errL := amount(l)
			if errP == nil && errL == nil && pn == ln {
				matches++
				continue
			}
		}
		if IsLooseMatch(p, l) {
			matches++
		}
	}
	matches += itemsScore(list(got["items"]), list(want["items"]))

	score := matches / float64(len(CoreFields)+1)
	return math.Round(score*100) / 100
}

func itemsScore(pred, label []any) float64 {
	if len(label) == 0 {
		if len(pred) == 0 {
			return 1
		}
		return 0
	}
	matched := 0
	for _, li := range label {
		lItem := object(li)
		lQty := NormalizeString(lItem["quantity"])
		for _, pi := range pred {
			pItem := object(pi)
			if NormalizeString(pItem["quantity"]) == lQty && IsLooseMatch(pItem["product_name"], lItem["product_name"]) {
				matched++
				break
			}
		}
	}
	return float64(matched) / float64(len(label))
}

// parseLabel accepts JSON, or the Python-literal dumps some datasets carry.
func parseLabel(s string) (map[string]any, bool) {
	cleaned := reBareParen.ReplaceAllString(s, `: "$1",`)
	for _, candidate := range []string{cleaned, pythonToJSON(cleaned)} {
		if v, err := decode(candidate); err == nil {
			m, ok := v.(map[string]any)
			return m, ok
		}
	}
	return nil, false
}

var pyLiterals = regexp.MustCompile(`\b(None|True|False|nan)\b`)

func pythonToJSON(s string) string {
	s = pyLiterals.ReplaceAllStringFunc(s, func(m string) string {
		switch m {
		case "True":
			return "true"
		case "False":
			return "false"
		default:
			return "null"
		}
	})
	return strings.ReplaceAll(s, "'", `"`)
}

func decode(s string) (any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	return v, nil
}

func amount(v any) (int, error) {
	if v == nil {
		return 0, fmt.Errorf("no amount")
	}
	s := strings.NewReplacer(",", "", "원", "").Replace(stringify(v))
	return strconv.Atoi(strings.TrimSpace(s))
}

// stringify renders scalars the way they were written in the source JSON.
func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}

func list(v any) []any {
	l, _ := v.([]any)
	return l
}

func object(v any) map[string]any {
	m, _ := v.(map[string]any)
	return m
}
