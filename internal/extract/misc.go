package extract

import (
	"regexp"
	"strings"
	"time"

	"github.com/joseph-ayodele/groupbuy-orders/constants"
)

var requestPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\(([^)]*(?:부탁|주세요|요청)[^)]*)\)`),
	regexp.MustCompile(`(?:문앞|경비실|택배함|부재시)[^\n]+`),
	regexp.MustCompile(`(?:배송|포장)[^\n]*(?:주세요|부탁)`),
}

// RequestStrategies returns the whole match with surrounding parentheses removed.
var RequestStrategies = func() []Strategy {
	out := make([]Strategy, 0, len(requestPatterns))
	for _, re := range requestPatterns {
		out = append(out, func(text string) (string, bool) {
			m := re.FindString(text)
			if m == "" {
				return "", false
			}
			return strings.Trim(m, "()"), true
		})
	}
	return out
}()

// SpecialRequest extracts a delivery or packaging instruction.
func SpecialRequest(text string) (string, bool) {
	return FirstMatch(text, RequestStrategies...)
}

var rePayer = regexp.MustCompile(`입금자[명]?\s*[:\s]\s*([가-힣]{2,4})`)

// PaymentInfo extracts the depositor name used as the payment signature.
func PaymentInfo(text string) (string, bool) {
	return group(rePayer, 1)(text)
}

// Relative-day keywords, checked in this order.
var dateKeywords = []struct {
	re     *regexp.Regexp
	offset int
}{
	{regexp.MustCompile(`오늘|금일`), 0},
	{regexp.MustCompile(`내일`), 1},
	{regexp.MustCompile(`모레`), 2},
}

// DeliveryDate maps today/tomorrow/day-after keywords to a date relative to now.
// Nothing else is inferred.
func DeliveryDate(text string, now time.Time) (string, bool) {
	for _, k := range dateKeywords {
		if k.re.MatchString(text) {
			return now.AddDate(0, 0, k.offset).Format(constants.DateLayout), true
		}
	}
	return "", false
}
