package entity

import "encoding/json"

// OrderItem is one merged line of an order. Subtotal is derived, never stored.
type OrderItem struct {
	ProductCode string
	ProductName string
	Option      string
	Unit        string
	UnitPrice   int
	Quantity    int
}

// Subtotal is UnitPrice * Quantity.
func (i OrderItem) Subtotal() int {
	return i.UnitPrice * i.Quantity
}

type orderItemJSON struct {
	ProductCode string `json:"product_code"`
	ProductName string `json:"product_name"`
	Option      string `json:"option"`
	Unit        string `json:"unit"`
	UnitPrice   int    `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	Subtotal    int    `json:"subtotal"`
}

func (i OrderItem) MarshalJSON() ([]byte, error) {
	return json.Marshal(orderItemJSON{
		ProductCode: i.ProductCode,
		ProductName: i.ProductName,
		Option:      i.Option,
		Unit:        i.Unit,
		UnitPrice:   i.UnitPrice,
		Quantity:    i.Quantity,
		Subtotal:    i.Subtotal(),
	})
}

// UnmarshalJSON ignores any incoming subtotal.
func (i *OrderItem) UnmarshalJSON(b []byte) error {
	var raw orderItemJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*i = OrderItem{
		ProductCode: raw.ProductCode,
		ProductName: raw.ProductName,
		Option:      raw.Option,
		Unit:        raw.Unit,
		UnitPrice:   raw.UnitPrice,
		Quantity:    raw.Quantity,
	}
	return nil
}

// ParsedOrder is the result of extracting one order message.
// Optional fields are nil when nothing was recognized.
type ParsedOrder struct {
	CustomerName        *string     `json:"customer_name"`
	ContactNumber       *string     `json:"contact_number"`
	DeliveryAddress     *string     `json:"delivery_address"`
	Items               []OrderItem `json:"items"`
	SpecialRequests     *string     `json:"special_requests"`
	PaymentInfo         *string     `json:"payment_info"`
	DesiredDeliveryDate *string     `json:"desired_delivery_date"`
	OrderDate           string      `json:"order_date"`
	ExpectedAmount      int         `json:"expected_amount"`
	Confidence          float64     `json:"confidence"`
	MissingFields       []string    `json:"missing_fields"`
}

// ItemsTotal sums item subtotals.
func (o ParsedOrder) ItemsTotal() int {
	total := 0
	for _, it := range o.Items {
		total += it.Subtotal()
	}
	return total
}

// Validation is the derived completeness and money breakdown for an order.
type Validation struct {
	IsValid     bool     `json:"is_valid"`
	Issues      []string `json:"issues"`
	Subtotal    int      `json:"subtotal"`
	ShippingFee int      `json:"shipping_fee"`
	TotalAmount int      `json:"total_amount"`
}

// Value dereferences an optional field, returning "" when absent.
func Value(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
