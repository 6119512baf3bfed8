package guide

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
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

func TestParse_DemoGuide(t *testing.T) {
	p := Parse(demoGuide)

	assert.Equal(t, "뷰티하우스", p.SellerName)
	assert.Equal(t, "국민 123-456-789012", p.BankAccount)
	assert.Equal(t, 50000, p.FreeShippingThreshold)
	assert.Equal(t, 3000, p.ShippingFee)
	require.Len(t, p.Products, 7)

	cream := p.Products["1"]
	assert.Equal(t, "수분크림 50ml", cream.Name)
	assert.Equal(t, 32000, cream.Price)
	assert.Equal(t, "개", cream.Unit)
	assert.Empty(t, cream.Options)

	cushion := p.Products["6"]
	assert.Equal(t, "쿠션팩트 (21호/23호)", cushion.Name, "parenthetical stays in the name")
	assert.Equal(t, []string{"21호", "23호"}, cushion.Options)

	lip := p.Products["7"]
	assert.Equal(t, []string{"레드", "코랄", "핑크"}, lip.Options)
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6", "7"}, p.ProductCodes())
}

func TestParse_Fields(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		seller    string
		bank      string
		threshold int
		fee       int
		products  int
	}{
		{
			name:      "empty text keeps defaults",
			text:      "",
			threshold: 50000,
			fee:       3000,
		},
		{
			name:      "explicit thresholds",
			text:      "싱싱팜 공구\n계좌 농협 301-1234-5678-91\n30,000원 이상 무료배송\n배송비 4,000원",
			seller:    "싱싱팜",
			bank:      "농협 301-1234-5678-91",
			threshold: 30000,
			fee:       4000,
		},
		{
			name:      "arrow trigger",
			text:      "40000원↑ 무료배송",
			threshold: 40000,
			fee:       3000,
		},
		{
			name:      "first match wins for shipping fee",
			text:      "배송비 2,500원\n제주 배송비 5,000원",
			threshold: 50000,
			fee:       2500,
		},
		{
			name:      "comma-only price is not a catalog line",
			text:      "1번 사과 - ,원",
			threshold: 50000,
			fee:       3000,
			products:  0,
		},
		{
			name:      "en dash separator",
			text:      "2번 배 5kg – 19,900원",
			threshold: 50000,
			fee:       3000,
			products:  1,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Parse(tt.text)
			assert.Equal(t, tt.seller, p.SellerName)
			assert.Equal(t, tt.bank, p.BankAccount)
			assert.Equal(t, tt.threshold, p.FreeShippingThreshold)
			assert.Equal(t, tt.fee, p.ShippingFee)
			assert.Len(t, p.Products, tt.products)
		})
	}
}

func TestParse_DuplicateCodeLastWins(t *testing.T) {
	p := Parse("1번 사과 - 10,000원\n1번 사과 특품 - 15,000원")
	require.Len(t, p.Products, 1)
	assert.Equal(t, "사과 특품", p.Products["1"].Name)
	assert.Equal(t, 15000, p.Products["1"].Price)
}

func TestParser_LogsAndMatchesPure(t *testing.T) {
	got := NewParser(nil).Parse(demoGuide)
	assert.Equal(t, Parse(demoGuide), got)
}
