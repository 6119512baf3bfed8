package items

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/joseph-ayodele/groupbuy-orders/internal/entity"
)

// itemPattern is one way an order line can name a product.
type itemPattern struct {
	re *regexp.Regexp
	// read returns (option, quantity) from a submatch.
	read func(m []string) (string, int, bool)
}

// Patterns are tried most specific first.
var patterns = []itemPattern{
	{ // N번(옵션) M개
		re: regexp.MustCompile(`(\d+)번\s*\(([^)]+)\)\s*(\d+)\s*개`),
		read: func(m []string) (string, int, bool) {
			qty, err := strconv.Atoi(m[3])
			return m[2], qty, err == nil
		},
	},
	{ // N번 M개
		re: regexp.MustCompile(`(\d+)번\s*(\d+)\s*개`),
		read: func(m []string) (string, int, bool) {
			qty, err := strconv.Atoi(m[2])
			return "", qty, err == nil
		},
	},
	{ // N번(옵션), quantity 1; an all-digit parenthetical is a quantity
		re: regexp.MustCompile(`(\d+)번\s*\(([^)]+)\)`),
		read: func(m []string) (string, int, bool) {
			if isDigits(m[2]) {
				qty, err := strconv.Atoi(m[2])
				return "", qty, err == nil
			}
			return m[2], 1, true
		},
	},
}

var reEmbeddedOption = regexp.MustCompile(`\s*\([^)]+\)\s*`)

// Catalog resolves a product code. *entity.SellerProfile satisfies it, nil included.
type Catalog interface {
	Product(code string) (entity.ProductInfo, bool)
}

// itemKey identifies a line item within one order.
type itemKey struct {
	code   string
	option string
}

// Match extracts line items from order text against a catalog. Repeated
// mentions of the same (code, option) are merged; output keeps first-detection order.
//
// Overlap between patterns is resolved by match start offset only: a looser
// pattern is skipped where a stricter one already matched at the same offset.
// Matches that overlap but start elsewhere are all accepted.
func Match(text string, catalog Catalog) []entity.OrderItem {
	claimed := map[int]struct{}{}
	index := map[itemKey]int{}
	out := make([]entity.OrderItem, 0)

	for _, p := range patterns {
		for _, loc := range p.re.FindAllStringSubmatchIndex(text, -1) {
			start := loc[0]
			if _, seen := claimed[start]; seen {
				continue
			}
			m := submatches(text, loc)
			code := m[1]
			prod, ok := catalog.Product(code)
			if !ok {
				continue
			}
			option, qty, ok := p.read(m)
			if !ok {
				continue
			}

			key := itemKey{code: code, option: option}
			if i, exists := index[key]; exists {
				out[i].Quantity += qty
			} else {
				index[key] = len(out)
				out = append(out, entity.OrderItem{
					ProductCode: code,
					ProductName: displayName(code, prod.Name, option),
					Option:      option,
					Unit:        prod.Unit,
					UnitPrice:   prod.Price,
					Quantity:    qty,
				})
			}
			claimed[start] = struct{}{}
		}
	}
	return out
}

// displayName prefixes the code and, for an optioned item, replaces any
// parenthetical in the catalog name with the chosen option.
func displayName(code, catalogName, option string) string {
	if option == "" {
		return code + "번 " + catalogName
	}
	base := strings.TrimSpace(reEmbeddedOption.ReplaceAllString(catalogName, ""))
	return code + "번 " + base + " (" + option + ")"
}

func submatches(text string, loc []int) []string {
	m := make([]string, len(loc)/2)
	for i := range m {
		if loc[2*i] >= 0 {
			m[i] = text[loc[2*i]:loc[2*i+1]]
		}
	}
	return m
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
