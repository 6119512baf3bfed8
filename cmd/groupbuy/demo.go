package main

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/joseph-ayodele/groupbuy-orders/internal/core"
	"github.com/joseph-ayodele/groupbuy-orders/internal/entity"
)

const demoGuide = `
뷰티하우스에서 38회차 공동구매를 시작합니다.
입금계좌: 국민 123-456-789012 (뷰티하우스)

[상품 목록]
1번 수분크림 50ml - 32,000원
2번 세럼 30ml - 45,000원
3번 토너 150ml - 25,000원
4번 클렌징폼 150ml - 18,000원
5번 선크림 50ml - 22,000원
6번 쿠션팩트 (21호/23호) - 35,000원
7번 립스틱 (레드/코랄/핑크) - 25,000원

5만원 이상 무료배송 / 미만 시 배송비 3,000원
`

var demoOrders = []struct {
	name string
	text string
}{
	{"정상 주문", `주문합니다!
이름: 김민준
연락처: 010-2824-1409
주소: 인천시 연수구 송도동 333-44 송도더샵 404동 1801호
상품: 6번(21호) 1개, 2번 2개`},
	{"약식 주문", `안녕하세요~
1번 2개, 3번 1개 주문할게요
김영희 / 010-1234-5678
서울시 강남구 역삼동 123-45 래미안 101동 1001호
(문앞에 놔주세요)`},
	{"최소 정보", `7번(레드) 2개
4번 3개
박철수
010-9999-8888
부산시 해운대구 우동 456-78 해운대파크 2301호`},
	{"배송비 발생", `주문합니다
이름: 이서연
연락처: 010-5555-6666
주소: 대전시 유성구 봉명동 777-88 봉명자이 1401호
상품: 5번 1개`},
}

func newDemoCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "demo",
		Short: "Run the built-in guide and sample orders",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			rule := strings.Repeat("=", 70)
			thin := strings.Repeat("-", 35)

			engine := core.NewEngine(core.WithLogger(opts.logger(cmd)))
			summary := engine.LoadGuide(demoGuide)
			fmt.Fprintln(out, rule)
			printSummary(out, summary)

			for _, d := range demoOrders {
				fmt.Fprintf(out, "\n%s\n%s\n%s\n%s\n%s\n", rule, d.name, thin, strings.TrimSpace(d.text), thin)

				res, err := engine.Process(cmd.Context(), d.text)
				if err != nil {
					return fmt.Errorf("%s: %w", d.name, err)
				}
				o, v := res.Order, res.Validation
				fmt.Fprintf(out, "\n파싱 (신뢰도: %.0f%%)\n", o.Confidence*100)
				fmt.Fprintf(out, "  고객명: %s\n", orNone(o.CustomerName))
				fmt.Fprintf(out, "  연락처: %s\n", orNone(o.ContactNumber))
				fmt.Fprintf(out, "  주소: %s\n", orNone(o.DeliveryAddress))
				fmt.Fprintf(out, "  요청: %s\n", orNone(o.SpecialRequests))
				for _, it := range o.Items {
					fmt.Fprintf(out, "  상품: %s x%d = %s원\n", it.ProductName, it.Quantity, humanize.Comma(int64(it.Subtotal())))
				}
				fmt.Fprintf(out, "  상품금액: %s원 | 배송비: %s원 | 총: %s원\n",
					humanize.Comma(int64(v.Subtotal)), humanize.Comma(int64(v.ShippingFee)), humanize.Comma(int64(v.TotalAmount)))
				fmt.Fprintf(out, "\nJSON:\n%s\n", res.Label)
			}
			return nil
		},
	}
}

func orNone(s *string) string {
	if s == nil {
		return "-"
	}
	return entity.Value(s)
}
