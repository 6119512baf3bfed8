package order

import (
	"github.com/joseph-ayodele/groupbuy-orders/constants"
	"github.com/joseph-ayodele/groupbuy-orders/internal/entity"
)

// Validate checks completeness and computes shipping and total from the
// profile's shipping rules. The order is not modified.
func Validate(o entity.ParsedOrder, profile *entity.SellerProfile) entity.Validation {
	if profile == nil {
		profile = entity.NewSellerProfile()
	}
	issues := make([]string, 0, len(constants.RequiredFields))
	for _, field := range MissingFields(o) {
		issues = append(issues, constants.IssueFor(field))
	}

	shipping := ShippingFee(o.ExpectedAmount, profile)
	return entity.Validation{
		IsValid:     len(issues) == 0,
		Issues:      issues,
		Subtotal:    o.ExpectedAmount,
		ShippingFee: shipping,
		TotalAmount: o.ExpectedAmount + shipping,
	}
}

// ShippingFee is free at or above the threshold.
func ShippingFee(amount int, profile *entity.SellerProfile) int {
	if amount >= profile.FreeShippingThreshold {
		return 0
	}
	return profile.ShippingFee
}
