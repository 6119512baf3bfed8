package entity

import (
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/groupbuy-orders/constants"
)

// StoredGuide represents a persisted seller guide for data transfer between layers.
type StoredGuide struct {
	ID            uuid.UUID      `json:"id"`
	SellerName    string         `json:"seller_name"`
	GuideText     string         `json:"guide_text"`
	Profile       *SellerProfile `json:"profile"`
	ProductsCount int            `json:"products_count"`
	CreatedAt     time.Time      `json:"created_at"`
}

// StoredOrder represents a persisted parsed order.
type StoredOrder struct {
	ID         uuid.UUID             `json:"id"`
	GuideID    *uuid.UUID            `json:"guide_id,omitempty"`
	RawText    string                `json:"raw_text"`
	Order      ParsedOrder           `json:"order"`
	Validation Validation            `json:"validation"`
	Status     constants.OrderStatus `json:"status"`
	CreatedAt  time.Time             `json:"created_at"`
}
