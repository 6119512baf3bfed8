package extract

import (
	"regexp"
	"strings"
)

var (
	reNameLabeled  = regexp.MustCompile(`(?:이름|성함|주문자)\s*[:\s]\s*([가-힣]{2,4})`)
	reNamePolite   = regexp.MustCompile(`([가-힣]{2,4})(?:입니다|이에요|예요|이요)[.\s]`)
	reNameBeforeNo = regexp.MustCompile(`\n([가-힣]{2,4})\s*/?\s*(?:010|공일공)`)
	reNameLine     = regexp.MustCompile(`^[가-힣]{2,4}$`)
)

// nameStoplist holds short greeting/closing fragments that look like names on a line of their own.
var nameStoplist = map[string]struct{}{
	"안녕하세": {},
	"주문합니": {},
	"주문이요": {},
	"감사합니": {},
	"부탁드려": {},
}

// NameStrategies is the customer-name cascade, most explicit first.
var NameStrategies = []Strategy{
	group(reNameLabeled, 1),
	group(reNamePolite, 1),
	group(reNameBeforeNo, 1),
	nameOnOwnLine,
}

func nameOnOwnLine(text string) (string, bool) {
	for _, line := range strings.Split(strings.TrimSpace(text), "\n") {
		line = strings.TrimSpace(line)
		if !reNameLine.MatchString(line) {
			continue
		}
		if _, stop := nameStoplist[line]; stop {
			continue
		}
		return line, true
	}
	return "", false
}

// CustomerName extracts the buyer's name.
func CustomerName(text string) (string, bool) {
	return FirstMatch(text, NameStrategies...)
}
