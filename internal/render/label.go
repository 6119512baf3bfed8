package render

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/joseph-ayodele/groupbuy-orders/internal/entity"
	"github.com/joseph-ayodele/groupbuy-orders/internal/schema"
)

// LabelItem is one line of the label record.
type LabelItem struct {
	ProductName string `json:"product_name"`
	Unit        string `json:"unit"`
	UnitPrice   int    `json:"unit_price"`
	Quantity    int    `json:"quantity"`
	Subtotal    int    `json:"subtotal"`
}

// Label is the canonical record handed to downstream consumers. Field names
// and nesting are a stable contract.
type Label struct {
	Items               []LabelItem `json:"items"`
	CustomerName        *string     `json:"customer_name"`
	ContactNumber       *string     `json:"contact_number"`
	DeliveryAddress     *string     `json:"delivery_address"`
	DesiredDeliveryDate *string     `json:"desired_delivery_date"`
	SpecialRequests     *string     `json:"special_requests"`
	PaymentInfo         *string     `json:"payment_info"`
	OrderDate           string      `json:"order_date"`
	ExpectedAmount      int         `json:"expected_amount"`
}

// NewLabel projects a parsed order onto the label shape.
func NewLabel(o entity.ParsedOrder) Label {
	items := make([]LabelItem, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, LabelItem{
			ProductName: it.ProductName,
			Unit:        it.Unit,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal(),
		})
	}
	return Label{
		Items:               items,
		CustomerName:        o.CustomerName,
		ContactNumber:       o.ContactNumber,
		DeliveryAddress:     o.DeliveryAddress,
		DesiredDeliveryDate: o.DesiredDeliveryDate,
		SpecialRequests:     o.SpecialRequests,
		PaymentInfo:         o.PaymentInfo,
		OrderDate:           o.OrderDate,
		ExpectedAmount:      o.ExpectedAmount,
	}
}

// LabelJSON serializes the label with two-space indentation and unescaped
// Hangul and markup characters.
func LabelJSON(o entity.ParsedOrder) ([]byte, error) {
	return NewLabel(o).MarshalIndented()
}

// MarshalIndented encodes l the way LabelJSON does.
func (l Label) MarshalIndented() ([]byte, error) {
	if l.Items == nil {
		l.Items = []LabelItem{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(l); err != nil {
		return nil, fmt.Errorf("encode label: %w", err)
	}
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// LabelSchema describes the label record.
func LabelSchema() map[string]any {
	optional := map[string]any{"type": []string{"string", "null"}}
	return map[string]any{
		"$schema":              "https://json-schema.org/draft/2020-12/schema",
		"type":                 "object",
		"additionalProperties": false,
		"required": []string{
			"items", "customer_name", "contact_number", "delivery_address",
			"desired_delivery_date", "special_requests", "payment_info",
			"order_date", "expected_amount",
		},
		"properties": map[string]any{
			"items": map[string]any{
				"type": "array",
				"items": map[string]any{
					"type":                 "object",
					"additionalProperties": false,
					"required":             []string{"product_name", "unit", "unit_price", "quantity", "subtotal"},
					"properties": map[string]any{
						"product_name": map[string]any{"type": "string", "minLength": 1},
						"unit":         map[string]any{"type": "string"},
						"unit_price":   map[string]any{"type": "integer", "minimum": 0},
						"quantity":     map[string]any{"type": "integer", "minimum": 0},
						"subtotal":     map[string]any{"type": "integer", "minimum": 0},
					},
				},
			},
			"customer_name":         optional,
			"contact_number":        optional,
			"delivery_address":      optional,
			"desired_delivery_date": map[string]any{"type": []string{"string", "null"}, "pattern": `^\d{4}-\d{2}-\d{2}$`},
			"special_requests":      optional,
			"payment_info":          optional,
			"order_date":            map[string]any{"type": "string", "pattern": `^\d{4}-\d{2}-\d{2}$`},
			"expected_amount":       map[string]any{"type": "integer", "minimum": 0},
		},
	}
}

var (
	labelSchemaOnce sync.Once
	labelSchema     *jsonschema.Schema
	labelSchemaErr  error
)

// ValidateLabel checks raw label JSON against LabelSchema.
func ValidateLabel(raw []byte) error {
	labelSchemaOnce.Do(func() {
		labelSchema, labelSchemaErr = schema.Compile("label.json", LabelSchema())
	})
	if labelSchemaErr != nil {
		return labelSchemaErr
	}
	return schema.Validate(labelSchema, raw)
}

// ParseLabel decodes and validates a label record.
func ParseLabel(raw []byte) (Label, error) {
	if err := ValidateLabel(raw); err != nil {
		return Label{}, err
	}
	var l Label
	if err := json.Unmarshal(raw, &l); err != nil {
		return Label{}, fmt.Errorf("decode label: %w", err)
	}
	return l, nil
}
