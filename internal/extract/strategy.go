package extract

import "regexp"

// Strategy recognizes one field in raw order text.
type Strategy func(text string) (string, bool)

// FirstMatch runs strategies in declared order and stops at the first success.
func FirstMatch(text string, strategies ...Strategy) (string, bool) {
	for _, s := range strategies {
		if v, ok := s(text); ok {
			return v, true
		}
	}
	return "", false
}

// Optional adapts a (value, ok) pair to the nil-when-absent form used by ParsedOrder.
func Optional(v string, ok bool) *string {
	if !ok {
		return nil
	}
	return &v
}

// group returns a Strategy yielding submatch n of the first match of re.
func group(re *regexp.Regexp, n int) Strategy {
	return func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		return m[n], true
	}
}
