package items

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/groupbuy-orders/internal/entity"
)

func demoCatalog() *entity.SellerProfile {
	mk := func(code, name string, price int, opts ...string) entity.ProductInfo {
		if opts == nil {
			opts = []string{}
		}
		return entity.ProductInfo{Code: code, Name: name, Price: price, Unit: "개", Options: opts}
	}
	return &entity.SellerProfile{Products: map[string]entity.ProductInfo{
		"1": mk("1", "수분크림 50ml", 32000),
		"2": mk("2", "세럼 30ml", 45000),
		"3": mk("3", "토너 150ml", 25000),
		"4": mk("4", "클렌징폼 150ml", 18000),
		"5": mk("5", "선크림 50ml", 22000),
		"6": mk("6", "쿠션팩트 (21호/23호)", 35000, "21호", "23호"),
		"7": mk("7", "립스틱 (레드/코랄/핑크)", 25000, "레드", "코랄", "핑크"),
	}}
}

type wantItem struct {
	code   string
	name   string
	option string
	qty    int
	sub    int
}

func TestMatch(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []wantItem
	}{
		{
			name: "code and quantity",
			text: "1번 2개",
			want: []wantItem{{"1", "1번 수분크림 50ml", "", 2, 64000}},
		},
		{
			name: "option item then plain item",
			text: "6번(21호) 1개, 2번 2개",
			want: []wantItem{
				{"6", "6번 쿠션팩트 (21호)", "21호", 1, 35000},
				{"2", "2번 세럼 30ml", "", 2, 90000},
			},
		},
		{
			name: "repeated mention merges",
			text: "1번 2개\n추가로 1번 3개",
			want: []wantItem{{"1", "1번 수분크림 50ml", "", 5, 160000}},
		},
		{
			name: "different options stay separate",
			text: "7번(레드) 1개 7번(코랄) 2개",
			want: []wantItem{
				{"7", "7번 립스틱 (레드)", "레드", 1, 25000},
				{"7", "7번 립스틱 (코랄)", "코랄", 2, 50000},
			},
		},
		{
			name: "option without quantity defaults to one",
			text: "7번(핑크) 주세요",
			want: []wantItem{{"7", "7번 립스틱 (핑크)", "핑크", 1, 25000}},
		},
		{
			name: "digit parenthetical is a quantity",
			text: "3번(2)",
			want: []wantItem{{"3", "3번 토너 150ml", "", 2, 50000}},
		},
		{
			name: "same start offset is not counted twice",
			text: "6번(23호) 2개",
			want: []wantItem{{"6", "6번 쿠션팩트 (23호)", "23호", 2, 70000}},
		},
		{
			name: "overlapping spans with different starts both count",
			text: "6번(2번 1개) 1개",
			want: []wantItem{
				{"6", "6번 쿠션팩트 (2번 1개)", "2번 1개", 1, 35000},
				{"2", "2번 세럼 30ml", "", 1, 45000},
			},
		},
		{
			name: "unknown codes are ignored",
			text: "9번 2개, 5번 1개",
			want: []wantItem{{"5", "5번 선크림 50ml", "", 1, 22000}},
		},
		{
			name: "nothing recognizable",
			text: "안녕하세요 주문할게요",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Match(tt.text, demoCatalog())
			require.NotNil(t, got)
			require.Len(t, got, len(tt.want))
			for i, w := range tt.want {
				assert.Equal(t, w.code, got[i].ProductCode)
				assert.Equal(t, w.name, got[i].ProductName)
				assert.Equal(t, w.option, got[i].Option)
				assert.Equal(t, w.qty, got[i].Quantity)
				assert.Equal(t, w.sub, got[i].Subtotal())
				assert.Equal(t, "개", got[i].Unit)
			}
		})
	}
}

func TestMatch_Invariants(t *testing.T) {
	texts := []string{
		"1번 2개, 1번 1개, 6번(21호) 1개, 6번(21호) 2개, 6번(23호), 7번(레드)3개",
		"상품: 6번(21호) 1개, 2번 2개",
		"4번 3개\n4번(1)\n4번 1개",
	}
	for _, text := range texts {
		got := Match(text, demoCatalog())
		seen := map[itemKey]bool{}
		for _, it := range got {
			k := itemKey{it.ProductCode, it.Option}
			assert.False(t, seen[k], "duplicate key %v in %q", k, text)
			seen[k] = true
			assert.Equal(t, it.UnitPrice*it.Quantity, it.Subtotal())
		}
		assert.Equal(t, got, Match(text, demoCatalog()), "deterministic")
	}
}

func TestMatch_EmptyCatalog(t *testing.T) {
	got := Match("1번 2개", &entity.SellerProfile{Products: map[string]entity.ProductInfo{}})
	assert.Empty(t, got)

	got = Match("1번 2개", (*entity.SellerProfile)(nil))
	assert.NotNil(t, got)
	assert.Empty(t, got)
}
