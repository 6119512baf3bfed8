package constants

// Required order fields, in the order they are checked and reported.
const (
	FieldCustomerName    = "customer_name"
	FieldContactNumber   = "contact_number"
	FieldDeliveryAddress = "delivery_address"
	FieldItems           = "items"
)

// RequiredFields is the fixed set used for missing_fields and confidence.
var RequiredFields = []string{FieldCustomerName, FieldContactNumber, FieldDeliveryAddress, FieldItems}

// Buyer-facing issue wording, one per required field.
const (
	IssueMissingCustomerName    = "고객명이 누락되었습니다."
	IssueMissingContactNumber   = "연락처가 누락되었습니다."
	IssueMissingDeliveryAddress = "배송지가 누락되었습니다."
	IssueMissingItems           = "주문 상품이 없습니다."
)

// IssueFor maps a required field name to its issue wording.
func IssueFor(field string) string {
	switch field {
	case FieldCustomerName:
		return IssueMissingCustomerName
	case FieldContactNumber:
		return IssueMissingContactNumber
	case FieldDeliveryAddress:
		return IssueMissingDeliveryAddress
	case FieldItems:
		return IssueMissingItems
	}
	return ""
}

// DefaultUnit is the display unit for every catalog entry; guides carry no unit.
const DefaultUnit = "개"

// Shipping defaults applied when a guide does not state its rules.
const (
	DefaultFreeShippingThreshold = 50000
	DefaultShippingFee           = 3000
)

// DateLayout is the wire format for order_date and desired_delivery_date.
const DateLayout = "2006-01-02"
