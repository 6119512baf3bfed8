package render

import (
	"strconv"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/joseph-ayodele/groupbuy-orders/internal/entity"
)

// Confirmation renders the buyer-facing reply. An invalid order gets the list
// of missing information; a valid one gets the itemized summary.
func Confirmation(o entity.ParsedOrder, v entity.Validation, bankAccount string) string {
	var b strings.Builder
	if !v.IsValid {
		b.WriteString("안녕하세요! 주문 감사합니다.\n\n아래 정보가 필요합니다:\n")
		for _, issue := range v.Issues {
			b.WriteString("• " + issue + "\n")
		}
		return b.String()
	}

	b.WriteString("[주문 확인]\n\n")
	b.WriteString("주문자: " + entity.Value(o.CustomerName) + "\n")
	b.WriteString("연락처: " + entity.Value(o.ContactNumber) + "\n")
	b.WriteString("배송지: " + entity.Value(o.DeliveryAddress) + "\n\n")
	b.WriteString("[주문 상품]\n")
	for _, it := range o.Items {
		b.WriteString("• " + it.ProductName + " x" + strconv.Itoa(it.Quantity) + " = " + won(it.Subtotal()) + "\n")
	}

	b.WriteString("\n상품금액: " + won(v.Subtotal) + "\n")
	if v.ShippingFee > 0 {
		b.WriteString("배송비: +" + won(v.ShippingFee) + "\n")
	}
	b.WriteString("총 결제금액: " + won(v.TotalAmount) + "\n")

	if bankAccount != "" {
		b.WriteString("\n입금계좌: " + bankAccount + "\n")
	}
	if req := entity.Value(o.SpecialRequests); req != "" {
		b.WriteString("\n요청사항: " + req + "\n")
	}
	b.WriteString("\n맞으시면 '확인' 보내주세요!")
	return b.String()
}

// won formats an amount with thousands separators and the currency marker.
func won(n int) string {
	return humanize.Comma(int64(n)) + "원"
}
