package guide

import (
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/joseph-ayodele/groupbuy-orders/constants"
	"github.com/joseph-ayodele/groupbuy-orders/internal/entity"
)

var (
	reSellerName   = regexp.MustCompile(`([가-힣]+(?:마켓|샵|몰|스토어|공구|팜|마트|하우스|프렌즈|웨어|데코))(?:에서)?`)
	reCatalogLine  = regexp.MustCompile(`(\d+)번\s+(.+?)\s*[-–]\s*([\d,]+)원`)
	reOptionList   = regexp.MustCompile(`\(([^)]+/[^)]+)\)`)
	reBankAccount  = regexp.MustCompile(`(?:입금계좌|계좌)[:\s]*([가-힣]+)\s*([\d-]+)`)
	reFreeShipping = regexp.MustCompile(`([\d,]+)원?\s*(?:이상|↑)\s*무료배송`)
	reShippingFee  = regexp.MustCompile(`배송비\s*([\d,]+)원`)
)

// Parse turns raw guide text into a SellerProfile. Every field is optional;
// anything not recognized keeps its default.
func Parse(text string) *entity.SellerProfile {
	p := entity.NewSellerProfile()

	if m := reSellerName.FindStringSubmatch(text); m != nil {
		p.SellerName = m[1]
	}

	// later duplicate codes overwrite earlier ones
	for _, m := range reCatalogLine.FindAllStringSubmatch(text, -1) {
		price, ok := parseAmount(m[3])
		if !ok {
			continue
		}
		name := strings.TrimSpace(m[2])
		p.Products[m[1]] = entity.ProductInfo{
			Code:    m[1],
			Name:    name,
			Price:   price,
			Unit:    constants.DefaultUnit,
			Options: parseOptions(name),
		}
	}

	if m := reBankAccount.FindStringSubmatch(text); m != nil {
		p.BankAccount = m[1] + " " + m[2]
	}
	if m := reFreeShipping.FindStringSubmatch(text); m != nil {
		if v, ok := parseAmount(m[1]); ok {
			p.FreeShippingThreshold = v
		}
	}
	if m := reShippingFee.FindStringSubmatch(text); m != nil {
		if v, ok := parseAmount(m[1]); ok {
			p.ShippingFee = v
		}
	}
	return p
}

// parseOptions splits the first "(a/b/...)" group of a product name.
func parseOptions(name string) []string {
	m := reOptionList.FindStringSubmatch(name)
	if m == nil {
		return []string{}
	}
	parts := strings.Split(m[1], "/")
	opts := make([]string, 0, len(parts))
	for _, o := range parts {
		opts = append(opts, strings.TrimSpace(o))
	}
	return opts
}

// parseAmount reads a won amount with optional thousands separators.
func parseAmount(s string) (int, bool) {
	v, err := strconv.Atoi(strings.ReplaceAll(s, ",", ""))
	if err != nil {
		return 0, false
	}
	return v, true
}

// Parser wraps Parse with logging.
type Parser struct {
	logger *slog.Logger
}

func NewParser(logger *slog.Logger) *Parser {
	if logger == nil {
		logger = slog.Default()
	}
	return &Parser{logger: logger}
}

// Parse parses the guide and logs what was recognized.
func (p *Parser) Parse(text string) *entity.SellerProfile {
	start := time.Now()
	profile := Parse(text)
	if len(profile.Products) == 0 {
		p.logger.Warn("guide.parse.empty_catalog", "text_len", len(text))
	}
	p.logger.Info("guide.parse.ok",
		"seller", profile.SellerName,
		"products", len(profile.Products),
		"bank_account_found", profile.BankAccount != "",
		"free_shipping", profile.FreeShippingThreshold,
		"shipping_fee", profile.ShippingFee,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return profile
}
