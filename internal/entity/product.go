package entity

import (
	"sort"
	"strconv"

	"github.com/joseph-ayodele/groupbuy-orders/constants"
)

// ProductInfo is one catalog entry parsed from a seller guide.
type ProductInfo struct {
	Code    string   `json:"code"`
	Name    string   `json:"name"`
	Price   int      `json:"price"`
	Unit    string   `json:"unit"`
	Options []string `json:"options"`
}

// SellerProfile is the structured form of a seller guide. It is built once per
// guide load and must not be mutated after it is published.
type SellerProfile struct {
	SellerName            string                 `json:"seller_name"`
	BankAccount           string                 `json:"bank_account"`
	FreeShippingThreshold int                    `json:"free_shipping_threshold"`
	ShippingFee           int                    `json:"shipping_fee"`
	Products              map[string]ProductInfo `json:"products"`
}

// NewSellerProfile returns a profile carrying the default shipping rules and an empty catalog.
func NewSellerProfile() *SellerProfile {
	return &SellerProfile{
		FreeShippingThreshold: constants.DefaultFreeShippingThreshold,
		ShippingFee:           constants.DefaultShippingFee,
		Products:              map[string]ProductInfo{},
	}
}

// Product looks up a catalog entry by code.
func (p *SellerProfile) Product(code string) (ProductInfo, bool) {
	if p == nil {
		return ProductInfo{}, false
	}
	prod, ok := p.Products[code]
	return prod, ok
}

// ProductCodes returns catalog codes ordered numerically, for display.
func (p *SellerProfile) ProductCodes() []string {
	if p == nil {
		return nil
	}
	codes := make([]string, 0, len(p.Products))
	for c := range p.Products {
		codes = append(codes, c)
	}
	sort.Slice(codes, func(i, j int) bool {
		a, errA := strconv.Atoi(codes[i])
		b, errB := strconv.Atoi(codes[j])
		if errA != nil || errB != nil || a == b {
			return codes[i] < codes[j]
		}
		return a < b
	})
	return codes
}

// Summary is what the guide-load tool reports back.
func (p *SellerProfile) Summary() GuideSummary {
	return GuideSummary{
		SellerName:    p.SellerName,
		ProductsCount: len(p.Products),
		BankAccount:   p.BankAccount,
		FreeShipping:  p.FreeShippingThreshold,
		ShippingFee:   p.ShippingFee,
	}
}

// GuideSummary is the guide-load result handed to callers and tools unmodified.
type GuideSummary struct {
	SellerName    string `json:"seller_name"`
	ProductsCount int    `json:"products_count"`
	BankAccount   string `json:"bank_account"`
	FreeShipping  int    `json:"free_shipping"`
	ShippingFee   int    `json:"shipping_fee"`
}
