package order

import (
	"time"

	"github.com/joseph-ayodele/groupbuy-orders/constants"
	"github.com/joseph-ayodele/groupbuy-orders/internal/entity"
	"github.com/joseph-ayodele/groupbuy-orders/internal/extract"
	"github.com/joseph-ayodele/groupbuy-orders/internal/items"
)

// Clock supplies the parse time for order_date and relative delivery dates.
type Clock func() time.Time

// Assembler composes field extraction and item matching into a ParsedOrder.
type Assembler struct {
	now Clock
}

func NewAssembler(now Clock) *Assembler {
	if now == nil {
		now = time.Now
	}
	return &Assembler{now: now}
}

// Assemble parses one order message against a profile snapshot. It never fails;
// anything not recognized is reported through MissingFields.
func (a *Assembler) Assemble(text string, profile *entity.SellerProfile) entity.ParsedOrder {
	now := a.now()

	out := entity.ParsedOrder{
		CustomerName:    extract.Optional(extract.CustomerName(text)),
		ContactNumber:   extract.Optional(extract.ContactNumber(text)),
		DeliveryAddress: extract.Optional(extract.DeliveryAddress(text)),
		Items:           items.Match(text, profile),
		SpecialRequests: extract.Optional(extract.SpecialRequest(text)),
		PaymentInfo:     extract.Optional(extract.PaymentInfo(text)),
		OrderDate:       now.Format(constants.DateLayout),
	}
	out.DesiredDeliveryDate = extract.Optional(extract.DeliveryDate(text, now))
	out.ExpectedAmount = out.ItemsTotal()
	out.MissingFields = MissingFields(out)
	out.Confidence = Confidence(out.MissingFields)
	return out
}

// MissingFields reports required slots that are empty, in fixed order.
func MissingFields(o entity.ParsedOrder) []string {
	missing := make([]string, 0, len(constants.RequiredFields))
	if entity.Value(o.CustomerName) == "" {
		missing = append(missing, constants.FieldCustomerName)
	}
	if entity.Value(o.ContactNumber) == "" {
		missing = append(missing, constants.FieldContactNumber)
	}
	if entity.Value(o.DeliveryAddress) == "" {
		missing = append(missing, constants.FieldDeliveryAddress)
	}
	if len(o.Items) == 0 {
		missing = append(missing, constants.FieldItems)
	}
	return missing
}

// Confidence is the share of required slots that were filled.
func Confidence(missing []string) float64 {
	total := len(constants.RequiredFields)
	return float64(total-len(missing)) / float64(total)
}
