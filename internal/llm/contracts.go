package llm

import "context"

// VerifyItem is one order line as the verifier sees it (label item shape).
type VerifyItem struct {
	ProductName string `json:"product_name"`
	Unit        string `json:"unit"`
	UnitPrice   int    `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	Subtotal    int    `json:"subtotal"`
}

// VerifyRequest carries the raw guide text and the items to price.
type VerifyRequest struct {
	GuideText string
	Items     []VerifyItem
}

// PriceVerification is the normalized shape we want back from the model.
type PriceVerification struct {
	Items       []VerifyItem `json:"items"`
	ItemTotal   int          `json:"item_total"`
	ShippingFee int          `json:"shipping_fee"`
	FinalTotal  int          `json:"final_total"`
	Reasoning   string       `json:"reasoning,omitempty"`
}

// NoItemsVerification is returned without calling the model when there is nothing to price.
func NoItemsVerification() PriceVerification {
	return PriceVerification{Items: []VerifyItem{}, Reasoning: "No items provided."}
}

// PriceVerifier independently re-derives order totals from the guide text.
type PriceVerifier interface {
	VerifyPrice(ctx context.Context, req VerifyRequest) (PriceVerification, []byte /*rawJSON*/, error)
}
