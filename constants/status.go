package constants

// OrderStatus is the canonical status for rows in parsed_orders.
type OrderStatus string

// Stable values (store these exact strings in DB).
const (
	OrderStatusQueued    OrderStatus = "QUEUED"     // accepted, waiting for a worker
	OrderStatusParsed    OrderStatus = "PARSED"     // all required fields present
	OrderStatusNeedsInfo OrderStatus = "NEEDS_INFO" // parsed, but the buyer must supply more
	OrderStatusConfirmed OrderStatus = "CONFIRMED"
	OrderStatusFailed    OrderStatus = "FAILED" // terminal failure
)

// Valid reports whether s is one of the stable status values.
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusQueued, OrderStatusParsed, OrderStatusNeedsInfo, OrderStatusConfirmed, OrderStatusFailed:
		return true
	}
	return false
}
