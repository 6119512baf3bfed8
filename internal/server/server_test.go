package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/groupbuy-orders/constants"
	"github.com/joseph-ayodele/groupbuy-orders/internal/async"
	"github.com/joseph-ayodele/groupbuy-orders/internal/core"
	"github.com/joseph-ayodele/groupbuy-orders/internal/llm"
	"github.com/joseph-ayodele/groupbuy-orders/internal/metrics"
	"github.com/joseph-ayodele/groupbuy-orders/internal/repository"
)

const demoGuide = `뷰티하우스에서 38회차 공동구매를 시작합니다.
입금계좌: 국민 123-456-789012 (뷰티하우스)
1번 수분크림 50ml - 32,000원
2번 세럼 30ml - 45,000원
3번 토너 150ml - 25,000원
4번 클렌징폼 150ml - 18,000원
5번 선크림 50ml - 22,000원
6번 쿠션팩트 (21호/23호) - 35,000원
7번 립스틱 (레드/코랄/핑크) - 25,000원
5만원 이상 무료배송 / 미만 시 배송비 3,000원`

const completeOrder = "주문합니다\n이름: 이서연\n연락처: 010-5555-6666\n주소: 대전시 유성구 봉명동 777-88 봉명자이 1401호\n상품: 5번 1개"

func init() { gin.SetMode(gin.TestMode) }

type published struct {
	key     string
	payload []byte
}

type fakePublisher struct {
	mu   sync.Mutex
	msgs []published
}

func (p *fakePublisher) Publish(_ context.Context, key string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, published{key: key, payload: payload})
	return nil
}

func (p *fakePublisher) Close() {}

func (p *fakePublisher) sent() []published {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]published(nil), p.msgs...)
}

type mockVerifier struct{ mock.Mock }

func (m *mockVerifier) VerifyPrice(ctx context.Context, req llm.VerifyRequest) (llm.PriceVerification, []byte, error) {
	args := m.Called(ctx, req)
	return args.Get(0).(llm.PriceVerification), nil, args.Error(1)
}

type fixture struct {
	svc    *OrderService
	router *gin.Engine
	pub    *fakePublisher
	reg    *metrics.Registry
}

func newFixture(t *testing.T, opts ...core.Option) *fixture {
	t.Helper()
	ctx := context.Background()
	logger := slog.New(slog.DiscardHandler)

	store, err := repository.Open(ctx, repository.Config{
		Driver:      repository.DriverSQLite,
		DSN:         "file:" + filepath.Join(t.TempDir(), "server.db"),
		DialTimeout: time.Second,
	}, logger)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	t.Cleanup(store.Close)

	reg := metrics.NewRegistry()
	clock := func() time.Time { return time.Date(2026, 10, 18, 14, 0, 0, 0, time.UTC) }
	engine := core.NewEngine(append([]core.Option{core.WithLogger(logger), core.WithClock(clock), core.WithMetrics(reg)}, opts...)...)

	pub := &fakePublisher{}
	svc := NewOrderService(Deps{
		Engine:    engine,
		Guides:    repository.NewGuideRepository(store, logger),
		Orders:    repository.NewOrderRepository(store, logger),
		Publisher: pub,
		Metrics:   reg,
		Health:    store,
		Logger:    logger,
	})
	return &fixture{svc: svc, router: NewRouter(svc, reg, logger), pub: pub, reg: reg}
}

func (f *fixture) do(t *testing.T, method, path string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	f.router.ServeHTTP(w, req)

	out := map[string]any{}
	if bytes.HasPrefix(w.Body.Bytes(), []byte("{")) {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	}
	return w, out
}

func TestHTTP_GuideAndSyncParse(t *testing.T) {
	f := newFixture(t)

	w, body := f.do(t, http.MethodPost, "/api/guides", gin.H{"guide_text": demoGuide})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	summary := body["summary"].(map[string]any)
	assert.Equal(t, "뷰티하우스", summary["seller_name"])
	assert.Equal(t, 7.0, summary["products_count"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	w, body = f.do(t, http.MethodGet, "/api/guides/current", nil)
	require.Equal(t, http.StatusOK, w.Code)
	guideID := body["id"]

	w, body = f.do(t, http.MethodPost, "/api/orders/parse", gin.H{"order_text": completeOrder})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, string(constants.OrderStatusParsed), body["status"])
	assert.Equal(t, guideID, body["guide_id"])
	label := body["label"].(map[string]any)
	assert.Equal(t, "이서연", label["customer_name"])
	assert.Equal(t, 22000.0, label["expected_amount"])
	validation := body["validation"].(map[string]any)
	assert.Equal(t, 3000.0, validation["shipping_fee"])
	assert.Equal(t, 25000.0, validation["total_amount"])
	assert.Contains(t, body["confirmation"], "입금계좌: 국민 123-456-789012")
	id := body["id"].(string)

	w, body = f.do(t, http.MethodGet, "/api/orders/"+id, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, id, body["id"])

	w, body = f.do(t, http.MethodPost, "/api/orders/"+id+"/confirm", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, string(constants.OrderStatusConfirmed), body["status"])

	w, _ = f.do(t, http.MethodPost, "/api/orders/"+id+"/confirm", nil)
	assert.Equal(t, http.StatusConflict, w.Code)

	_, _ = f.do(t, http.MethodPost, "/api/orders/parse", gin.H{"order_text": "안녕하세요"})
	w, body = f.do(t, http.MethodGet, "/api/orders?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	orders := body["orders"].([]any)
	require.Len(t, orders, 1)
	assert.Equal(t, string(constants.OrderStatusNeedsInfo), orders[0].(map[string]any)["status"])
}

func TestHTTP_Errors(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name   string
		method string
		path   string
		body   any
		want   int
	}{
		{"no guide yet", http.MethodGet, "/api/guides/current", nil, http.StatusNotFound},
		{"empty guide", http.MethodPost, "/api/guides", gin.H{"guide_text": "  "}, http.StatusBadRequest},
		{"empty order", http.MethodPost, "/api/orders/parse", gin.H{"order_text": ""}, http.StatusBadRequest},
		{"malformed body", http.MethodPost, "/api/orders/parse", "not an object", http.StatusBadRequest},
		{"bad id", http.MethodGet, "/api/orders/not-a-uuid", nil, http.StatusBadRequest},
		{"unknown id", http.MethodGet, "/api/orders/" + uuid.NewString(), nil, http.StatusNotFound},
		{"bad limit", http.MethodGet, "/api/orders?limit=abc", nil, http.StatusBadRequest},
		{"no verifier", http.MethodPost, "/api/orders/verify", gin.H{"order_text": completeOrder}, http.StatusConflict},
		{"no queue", http.MethodPost, "/api/orders", gin.H{"order_text": completeOrder}, http.StatusConflict},
		{"bad export date", http.MethodGet, "/api/exports/orders.xlsx?from=yesterday", nil, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, body := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.want, w.Code, w.Body.String())
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHTTP_AsyncSubmit(t *testing.T) {
	f := newFixture(t)
	q := async.NewProcessorQueue(f.svc, slog.New(slog.DiscardHandler), async.WithWorkers(1), async.WithMetrics(f.reg))
	t.Cleanup(func() { q.Shutdown(context.Background()) })
	f.svc.AttachQueue(q)

	_, _ = f.do(t, http.MethodPost, "/api/guides", gin.H{"guide_text": demoGuide})

	tests := []struct {
		name    string
		text    string
		want    constants.OrderStatus
		publish bool
	}{
		{"complete order is published", completeOrder, constants.OrderStatusParsed, true},
		{"incomplete order waits for info", "5번 1개", constants.OrderStatusNeedsInfo, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := len(f.pub.sent())
			w, body := f.do(t, http.MethodPost, "/api/orders", gin.H{"order_text": tt.text})
			require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
			assert.Equal(t, string(constants.OrderStatusQueued), body["status"])
			id := body["id"].(string)

			require.Eventually(t, func() bool {
				_, got := f.do(t, http.MethodGet, "/api/orders/"+id, nil)
				return got["status"] == string(tt.want)
			}, 2*time.Second, 10*time.Millisecond)

			if tt.publish {
				require.Eventually(t, func() bool { return len(f.pub.sent()) == before+1 }, time.Second, 5*time.Millisecond)
				msg := f.pub.sent()[before]
				assert.Equal(t, id, msg.key)
				assert.Contains(t, string(msg.payload), `"customer_name": "이서연"`)
			} else {
				assert.Len(t, f.pub.sent(), before)
			}
		})
	}
}

func TestHTTP_Verify(t *testing.T) {
	mv := &mockVerifier{}
	mv.On("VerifyPrice", mock.Anything, mock.MatchedBy(func(r llm.VerifyRequest) bool {
		return len(r.Items) == 1 && r.Items[0].Subtotal == 22000
	})).Return(llm.PriceVerification{ItemTotal: 22000, ShippingFee: 3000, FinalTotal: 25000}, nil).Once()

	f := newFixture(t, core.WithVerifier(mv))
	_, _ = f.do(t, http.MethodPost, "/api/guides", gin.H{"guide_text": demoGuide})

	w, body := f.do(t, http.MethodPost, "/api/orders/verify", gin.H{"order_text": completeOrder})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, true, body["match"])
	assert.Empty(t, body["mismatches"])
	mv.AssertExpectations(t)
}

func TestHTTP_ExportHealthMetrics(t *testing.T) {
	f := newFixture(t)
	_, _ = f.do(t, http.MethodPost, "/api/guides", gin.H{"guide_text": demoGuide})
	_, _ = f.do(t, http.MethodPost, "/api/orders/parse", gin.H{"order_text": completeOrder})

	w, _ := f.do(t, http.MethodGet, "/api/exports/orders.xlsx?from=2020-01-01&to=2100-01-01", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, xlsxContentType, w.Header().Get("Content-Type"))
	x, err := excelize.OpenReader(bytes.NewReader(w.Body.Bytes()))
	require.NoError(t, err)
	rows, err := x.GetRows("Orders")
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, "이서연", rows[1][1])

	w, body := f.do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", body["status"])

	w, _ = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "groupbuy_orders_parsed_total 1")
	assert.Contains(t, w.Body.String(), "groupbuy_guide_loads_total 1")
}

func TestService_RestoreLatestGuide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	require.NoError(t, f.svc.RestoreLatestGuide(ctx))
	_, err := f.svc.CurrentGuide(ctx)
	require.Error(t, err)

	saved, err := f.svc.LoadGuide(ctx, demoGuide)
	require.NoError(t, err)

	// a second service over the same repositories starts empty and restores
	fresh := NewOrderService(Deps{
		Engine: core.NewEngine(core.WithLogger(slog.New(slog.DiscardHandler))),
		Guides: f.svc.guides,
		Orders: f.svc.orders,
	})
	require.NoError(t, fresh.RestoreLatestGuide(ctx))
	g, err := fresh.CurrentGuide(ctx)
	require.NoError(t, err)
	assert.Equal(t, *saved.ID, *g.ID)
	assert.Equal(t, "뷰티하우스", g.Summary.SellerName)
	assert.Equal(t, 7, g.Summary.ProductsCount)
}

type captureQueue struct {
	mu   sync.Mutex
	jobs []async.Job
}

func (q *captureQueue) Enqueue(_ context.Context, job async.Job) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.jobs = append(q.jobs, job)
	return nil
}

func (q *captureQueue) Shutdown(context.Context) {}

func TestService_HandleOrderUsesSubmittedGuide(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	q := &captureQueue{}
	f.svc.AttachQueue(q)

	noGuide, err := f.svc.SubmitOrder(ctx, completeOrder)
	require.NoError(t, err)

	first, err := f.svc.LoadGuide(ctx, demoGuide)
	require.NoError(t, err)
	before, err := f.svc.SubmitOrder(ctx, completeOrder)
	require.NoError(t, err)

	repriced := "뷰티하우스 39회차\n5번 선크림 50ml - 30,000원\n배송비 3,000원"
	second, err := f.svc.LoadGuide(ctx, repriced)
	require.NoError(t, err)
	after, err := f.svc.SubmitOrder(ctx, completeOrder)
	require.NoError(t, err)

	require.Len(t, q.jobs, 3)
	assert.Nil(t, q.jobs[0].GuideID)
	assert.Equal(t, *first.ID, *q.jobs[1].GuideID)
	assert.Equal(t, *second.ID, *q.jobs[2].GuideID)

	tests := []struct {
		name     string
		job      async.Job
		id       uuid.UUID
		status   constants.OrderStatus
		subtotal int
	}{
		{"submitted without a guide", q.jobs[0], noGuide.ID, constants.OrderStatusNeedsInfo, 0},
		{"submitted before reload keeps old prices", q.jobs[1], before.ID, constants.OrderStatusParsed, 22000},
		{"submitted after reload", q.jobs[2], after.ID, constants.OrderStatusParsed, 30000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, f.svc.HandleOrder(ctx, tt.job))
			got, err := f.svc.GetOrder(ctx, tt.id.String())
			require.NoError(t, err)
			assert.Equal(t, tt.status, got.Status)
			require.NotNil(t, got.Validation)
			assert.Equal(t, tt.subtotal, got.Validation.Subtotal)
		})
	}
}
