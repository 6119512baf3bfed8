package agent

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joseph-ayodele/groupbuy-orders/internal/common"
	"github.com/joseph-ayodele/groupbuy-orders/internal/core"
	"github.com/joseph-ayodele/groupbuy-orders/internal/entity"
	"github.com/joseph-ayodele/groupbuy-orders/internal/render"
)

const demoGuide = `뷰티하우스에서 38회차 공동구매를 시작합니다.
입금계좌: 국민 123-456-789012 (뷰티하우스)
1번 수분크림 50ml - 32,000원
2번 세럼 30ml - 45,000원
5번 선크림 50ml - 22,000원
6번 쿠션팩트 (21호/23호) - 35,000원
5만원 이상 무료배송 / 미만 시 배송비 3,000원`

func newEngine() *core.Engine {
	return core.NewEngine(core.WithClock(func() time.Time {
		return time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC)
	}))
}

func mustArgs(t *testing.T, v any) json.RawMessage {
	t.Helper()
	b, err := json.Marshal(v)
	require.NoError(t, err)
	return b
}

func TestToolset_Tools(t *testing.T) {
	ts := NewToolset(newEngine(), nil)
	decls := ts.Tools()
	require.Len(t, decls, 2)
	assert.Equal(t, ToolLoadSellerGuide, decls[0].Name)
	assert.Equal(t, ToolParseOrder, decls[1].Name)
	assert.Equal(t, []string{"order_text"}, decls[1].Parameters["required"])
}

func TestToolset_LoadThenParse(t *testing.T) {
	ctx := context.Background()
	ts := NewToolset(newEngine(), nil)

	raw, err := ts.Call(ctx, ToolLoadSellerGuide, mustArgs(t, map[string]string{"guide_text": demoGuide}))
	require.NoError(t, err)
	var summary entity.GuideSummary
	require.NoError(t, json.Unmarshal(raw, &summary))
	assert.Equal(t, "뷰티하우스", summary.SellerName)
	assert.Equal(t, 4, summary.ProductsCount)

	raw, err = ts.Call(ctx, ToolParseOrder, mustArgs(t, map[string]string{
		"order_text": "이름: 이서연\n연락처: 010-5555-6666\n주소: 대전시 유성구 봉명동 777-88 봉명자이 1401호\n5번 1개",
	}))
	require.NoError(t, err)
	var res ParseOrderResult
	require.NoError(t, json.Unmarshal(raw, &res))
	assert.Equal(t, 1.0, res.Confidence)
	assert.Empty(t, res.MissingFields)
	assert.True(t, res.Validation.IsValid)
	assert.Equal(t, 25000, res.Validation.TotalAmount)
	assert.Equal(t, "이서연", entity.Value(res.Order.CustomerName))
	assert.Contains(t, res.Confirmation, "[주문 확인]")
}

func TestToolset_CallErrors(t *testing.T) {
	ctx := context.Background()
	ts := NewToolset(newEngine(), nil)
	tests := []struct {
		name    string
		tool    string
		args    json.RawMessage
		wantErr error
	}{
		{"unknown tool", "finalize_order", nil, common.ErrNotFound},
		{"bad json", ToolParseOrder, json.RawMessage(`[1,2]`), common.ErrInvalidInput},
		{"empty guide", ToolLoadSellerGuide, json.RawMessage(`{"guide_text": "  "}`), common.ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ts.Call(ctx, tt.tool, tt.args)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestToolset_ParseWithoutArgs(t *testing.T) {
	ts := NewToolset(newEngine(), nil)
	raw, err := ts.Call(context.Background(), ToolParseOrder, nil)
	require.NoError(t, err)
	var res ParseOrderResult
	require.NoError(t, json.Unmarshal(raw, &res))
	assert.False(t, res.Validation.IsValid)
	assert.Len(t, res.Validation.Issues, 4)
}

func TestSession_AccumulatesTurns(t *testing.T) {
	ctx := context.Background()
	e := newEngine()
	e.LoadGuide(demoGuide)
	s := NewSession(e)

	empty, err := s.CurrentOrder()
	require.NoError(t, err)
	require.NoError(t, render.ValidateLabel([]byte(empty)))

	reply, err := s.Send(ctx, "6번(21호) 1개, 2번 2개 주문할게요")
	require.NoError(t, err)
	assert.Contains(t, reply, "아래 정보가 필요합니다")

	_, err = s.Send(ctx, "   ")
	require.NoError(t, err)
	_, err = s.Send(ctx, "김민준 / 010-2824-1409")
	require.NoError(t, err)
	reply, err = s.Send(ctx, "인천시 연수구 송도동 333-44 송도더샵 404동 1801호")
	require.NoError(t, err)
	assert.Contains(t, reply, "총 결제금액: 125,000원")

	assert.Equal(t, 3, s.Turns())
	res, ok := s.Result()
	require.True(t, ok)
	assert.True(t, res.Validation.IsValid)

	current, err := s.CurrentOrder()
	require.NoError(t, err)
	l, err := render.ParseLabel([]byte(current))
	require.NoError(t, err)
	assert.Equal(t, "김민준", entity.Value(l.CustomerName))
	assert.Equal(t, 125000, l.ExpectedAmount)

	assert.Contains(t, s.Transcript(), "User: 김민준 / 010-2824-1409\nAgent: 안녕하세요!")
}
