package extract

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

var (
	reAddressLabeled = regexp.MustCompile(`(?:주소|배송지)\s*[:\s]\s*(.+?)(?:\n|$)`)
	reAddressRegion  = regexp.MustCompile(
		`((?:서울|부산|대구|인천|광주|대전|울산|세종|경기|강원|충북|충남|전북|전남|경북|경남|제주)` +
			`[시도]?\s*.+?(?:동|호|층|번지|로|길)\s*[\d가-힣\s-]*)`)
	reAddressTail = regexp.MustCompile(`(?:연락처|전화|상품|주문|입금)`)
)

// minAddressLen is exclusive: an address needs more than this many characters.
const minAddressLen = 10

// AddressStrategies prefers an explicit label over a region-prefixed guess.
var AddressStrategies = []Strategy{labeledAddress, regionAddress}

func labeledAddress(text string) (string, bool) {
	m := reAddressLabeled.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	return acceptAddress(strings.TrimSpace(m[1]))
}

func regionAddress(text string) (string, bool) {
	m := reAddressRegion.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}
	addr := strings.TrimSpace(m[1])
	if loc := reAddressTail.FindStringIndex(addr); loc != nil {
		addr = addr[:loc[0]]
	}
	return acceptAddress(strings.TrimSpace(addr))
}

func acceptAddress(addr string) (string, bool) {
	if utf8.RuneCountInString(addr) <= minAddressLen {
		return "", false
	}
	return addr, true
}

// DeliveryAddress extracts the shipping address.
func DeliveryAddress(text string) (string, bool) {
	return FirstMatch(text, AddressStrategies...)
}
