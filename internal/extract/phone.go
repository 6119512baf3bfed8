package extract

import (
	"regexp"
	"strings"
)

var phonePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:연락처|전화|휴대폰)\s*[:\s]\s*(0\d{1,2}[-\s]?\d{3,4}[-\s]?\d{4})`),
	regexp.MustCompile(`(010[-\s]?\d{4}[-\s]?\d{4})`),
	regexp.MustCompile(`(공일공[-\s]?\d{4}[-\s]?\d{4})`),
}

var phoneCleaner = strings.NewReplacer("공", "0", " ", "", "-", "")

// PhoneStrategies tries each phone pattern in turn; a match with too few digits falls through.
var PhoneStrategies = func() []Strategy {
	out := make([]Strategy, 0, len(phonePatterns))
	for _, re := range phonePatterns {
		out = append(out, phoneFrom(re))
	}
	return out
}()

func phoneFrom(re *regexp.Regexp) Strategy {
	return func(text string) (string, bool) {
		m := re.FindStringSubmatch(text)
		if m == nil {
			return "", false
		}
		return FormatPhone(m[1])
	}
}

// FormatPhone canonicalizes a matched number to 3/4/rest grouping.
// Length and grouping count characters, so a spoken digit other than 공
// stays in place as one position. Fewer than 10 characters are rejected.
func FormatPhone(raw string) (string, bool) {
	d := []rune(phoneCleaner.Replace(raw))
	if len(d) < 10 {
		return "", false
	}
	return string(d[:3]) + "-" + string(d[3:7]) + "-" + string(d[7:]), true
}

// ContactNumber extracts the buyer's phone number.
func ContactNumber(text string) (string, bool) {
	return FirstMatch(text, PhoneStrategies...)
}
