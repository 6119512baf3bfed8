package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/groupbuy-orders/internal/common"
	"github.com/joseph-ayodele/groupbuy-orders/internal/entity"
	"github.com/joseph-ayodele/groupbuy-orders/internal/llm"
	"github.com/joseph-ayodele/groupbuy-orders/internal/metrics"
)

const demoGuide = "뷰티하우스에서 38회차 공동구매를 시작합니다.\r\n" +
	"입금계좌: 국민 123-456-789012 (뷰티하우스)\r\n" +
	"1번 수분크림 50ml - 32,000원\r\n" +
	"2번 세럼 30ml - 45,000원\r\n" +
	"3번 토너 150ml - 25,000원\r\n" +
	"4번 클렌징폼 150ml - 18,000원\r\n" +
	"5번 선크림 50ml - 22,000원\r\n" +
	"6번 쿠션팩트 (21호/23호) - 35,000원\r\n" +
	"7번 립스틱 (레드/코랄/핑크) - 25,000원\r\n" +
	"5만원 이상 무료배송 / 미만 시 배송비 3,000원"

var fixedNow = time.Date(2026, 10, 18, 14, 0, 0, 0, time.UTC)

func newEngine(opts ...Option) *Engine {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewEngine(opts...)
}

type fakeVerifier struct {
	out   llm.PriceVerification
	err   error
	calls int
	last  llm.VerifyRequest
}

func (f *fakeVerifier) VerifyPrice(_ context.Context, req llm.VerifyRequest) (llm.PriceVerification, []byte, error) {
	f.calls++
	f.last = req
	return f.out, nil, f.err
}

func TestEngine_DefaultProfileBeforeLoad(t *testing.T) {
	e := newEngine()
	p := e.Profile()
	require.NotNil(t, p)
	assert.Empty(t, p.Products)
	assert.Equal(t, 50000, p.FreeShippingThreshold)

	o := e.ParseOrder("1번 2개")
	assert.Empty(t, o.Items)
}

func TestEngine_LoadGuide(t *testing.T) {
	reg := metrics.NewRegistry()
	e := newEngine(WithMetrics(reg))
	s := e.LoadGuide(demoGuide)

	assert.Equal(t, entity.GuideSummary{
		SellerName:    "뷰티하우스",
		ProductsCount: 7,
		BankAccount:   "국민 123-456-789012",
		FreeShipping:  50000,
		ShippingFee:   3000,
	}, s)
	assert.NotContains(t, e.GuideText(), "\r")
	assert.Equal(t, 1.0, testutil.ToFloat64(reg.GuideLoads))
}

func TestEngine_Process(t *testing.T) {
	reg := metrics.NewRegistry()
	e := newEngine(WithMetrics(reg))
	e.LoadGuide(demoGuide)

	res, err := e.Process(context.Background(), "주문합니다\r\n이름: 이서연\r\n연락처: 010-5555-6666\r\n주소: 대전시 유성구 봉명동 777-88 봉명자이 1401호\r\n상품: 5번 1개")
	require.NoError(t, err)

	assert.True(t, res.Validation.IsValid)
	assert.Equal(t, 25000, res.Validation.TotalAmount)
	assert.Contains(t, res.Confirmation, "배송비: +3,000원")
	assert.Contains(t, res.Confirmation, "입금계좌: 국민 123-456-789012")
	assert.Equal(t, "뷰티하우스", res.Guide.SellerName)

	var label map[string]any
	require.NoError(t, json.Unmarshal(res.Label, &label))
	assert.Equal(t, "이서연", label["customer_name"])
	assert.EqualValues(t, 22000, label["expected_amount"])

	assert.Equal(t, 1.0, testutil.ToFloat64(reg.OrdersParsed))
	assert.Equal(t, 0.0, testutil.ToFloat64(reg.OrdersInvalid))
}

func TestEngine_ConfirmationAndLabelMatchProcess(t *testing.T) {
	e := newEngine()
	e.LoadGuide(demoGuide)
	text := "7번(레드) 2개\n4번 3개\n박철수\n010-9999-8888\n부산시 해운대구 우동 456-78 해운대파크 2301호"

	res, err := e.Process(context.Background(), text)
	require.NoError(t, err)

	o := e.ParseOrder(text)
	assert.Equal(t, res.Order, o)
	assert.Equal(t, res.Validation, e.Validate(o))
	assert.Equal(t, res.Confirmation, e.Confirmation(o))
	label, err := e.Label(o)
	require.NoError(t, err)
	assert.JSONEq(t, string(res.Label), string(label))
}

func TestEngine_ReloadIsAtomic(t *testing.T) {
	e := newEngine()
	guideA := "1번 수분크림 - 10,000원\n2번 세럼 - 20,000원"
	guideB := "1번 수분크림 - 11,000원\n2번 세럼 - 22,000원"
	e.LoadGuide(guideA)

	var wg sync.WaitGroup
	stop := make(chan struct{})
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; ; i++ {
			select {
			case <-stop:
				return
			default:
			}
			if i%2 == 0 {
				e.LoadGuide(guideB)
			} else {
				e.LoadGuide(guideA)
			}
		}
	}()

	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				res, err := e.Process(context.Background(), "1번 1개 2번 1개")
				if !assert.NoError(t, err) {
					return
				}
				// Both items always come from the same catalog.
				assert.Contains(t, []int{30000, 33000}, res.Order.ExpectedAmount)
			}
		}()
	}

	time.Sleep(20 * time.Millisecond)
	close(stop)
	wg.Wait()
}

func TestEngine_ProcessWith(t *testing.T) {
	e := newEngine()
	e.LoadGuide(demoGuide)
	current := e.Profile()

	older := entity.NewSellerProfile()
	older.Products["5"] = entity.ProductInfo{Code: "5", Name: "선크림 50ml", Price: 20000, Unit: "개", Options: []string{}}

	res, err := e.ProcessWith(context.Background(), older, "5번 1개")
	require.NoError(t, err)
	require.Len(t, res.Order.Items, 1)
	assert.Equal(t, 20000, res.Validation.Subtotal)
	assert.Same(t, current, e.Profile())

	res, err = e.ProcessWith(context.Background(), nil, "5번 1개")
	require.NoError(t, err)
	assert.Empty(t, res.Order.Items)
	assert.Equal(t, 3000, res.Validation.ShippingFee)
}

func TestEngine_CrossCheck(t *testing.T) {
	text := "이름: 이서연\n연락처: 010-5555-6666\n주소: 대전시 유성구 봉명동 777-88 봉명자이 1401호\n5번 1개"
	tests := []struct {
		name       string
		out        llm.PriceVerification
		match      bool
		mismatches int
	}{
		{
			name:  "agrees",
			out:   llm.PriceVerification{ItemTotal: 22000, ShippingFee: 3000, FinalTotal: 25000},
			match: true,
		},
		{
			name:       "disagrees on shipping",
			out:        llm.PriceVerification{ItemTotal: 22000, ShippingFee: 0, FinalTotal: 22000},
			mismatches: 2,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fv := &fakeVerifier{out: tt.out}
			reg := metrics.NewRegistry()
			e := newEngine(WithVerifier(fv), WithMetrics(reg))
			e.LoadGuide(demoGuide)

			o := e.ParseOrder(text)
			res, err := e.CrossCheck(context.Background(), o, e.Validate(o))
			require.NoError(t, err)
			assert.Equal(t, tt.match, res.Match)
			assert.Len(t, res.Mismatches, tt.mismatches)

			require.Equal(t, 1, fv.calls)
			assert.Equal(t, e.GuideText(), fv.last.GuideText)
			require.Len(t, fv.last.Items, 1)
			assert.Equal(t, llm.VerifyItem{ProductName: "5번 선크림 50ml", Unit: "개", UnitPrice: 22000, Quantity: 1, Subtotal: 22000}, fv.last.Items[0])
			assert.Equal(t, 1.0, testutil.ToFloat64(reg.CrossChecks))
		})
	}
}

func TestEngine_CrossCheckErrors(t *testing.T) {
	e := newEngine()
	_, err := e.CrossCheck(context.Background(), entity.ParsedOrder{}, entity.Validation{})
	assert.ErrorIs(t, err, common.ErrNotConfigured)

	e = newEngine(WithVerifier(&fakeVerifier{err: errors.New("timeout")}))
	_, err = e.CrossCheck(context.Background(), entity.ParsedOrder{}, entity.Validation{})
	assert.ErrorContains(t, err, "timeout")
}

func BenchmarkEngine_Process(b *testing.B) {
	e := newEngine(WithLogger(nil))
	e.LoadGuide(demoGuide)
	text := fmt.Sprintf("이름: 김민준\n연락처: 010-2824-1409\n주소: %s\n상품: 6번(21호) 1개, 2번 2개", "인천시 연수구 송도동 333-44 송도더샵 404동 1801호")
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = e.Process(context.Background(), text)
	}
}
