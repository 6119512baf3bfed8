package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/groupbuy-orders/constants"
	"github.com/joseph-ayodele/groupbuy-orders/internal/agent"
	"github.com/joseph-ayodele/groupbuy-orders/internal/async"
	"github.com/joseph-ayodele/groupbuy-orders/internal/common"
	"github.com/joseph-ayodele/groupbuy-orders/internal/core"
	"github.com/joseph-ayodele/groupbuy-orders/internal/entity"
	"github.com/joseph-ayodele/groupbuy-orders/internal/export"
	"github.com/joseph-ayodele/groupbuy-orders/internal/metrics"
	"github.com/joseph-ayodele/groupbuy-orders/internal/publish"
	"github.com/joseph-ayodele/groupbuy-orders/internal/render"
	"github.com/joseph-ayodele/groupbuy-orders/internal/repository"
)

const maxOrderTextLen = 4000

// HealthChecker is satisfied by *repository.Store.
type HealthChecker interface {
	HealthCheck(ctx context.Context, timeout time.Duration) error
}

// Deps wires an OrderService. Publisher and Metrics may be nil.
type Deps struct {
	Engine    *core.Engine
	Guides    repository.GuideRepository
	Orders    repository.OrderRepository
	Publisher publish.Publisher
	Metrics   *metrics.Registry
	Health    HealthChecker
	Logger    *slog.Logger
}

// OrderService is the application layer shared by the gRPC and HTTP surfaces.
type OrderService struct {
	engine   *core.Engine
	tools    *agent.Toolset
	guides   repository.GuideRepository
	orders   repository.OrderRepository
	pub      publish.Publisher
	exporter *export.Service
	metrics  *metrics.Registry
	health   HealthChecker
	logger   *slog.Logger

	mu      sync.RWMutex
	queue   async.Queue
	guideID *uuid.UUID
}

var _ async.Handler = (*OrderService)(nil)

func NewOrderService(d Deps) *OrderService {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}
	pub := d.Publisher
	if pub == nil {
		pub = publish.NopPublisher{}
	}
	return &OrderService{
		engine:   d.Engine,
		tools:    agent.NewToolset(d.Engine, logger),
		guides:   d.Guides,
		orders:   d.Orders,
		pub:      pub,
		exporter: export.NewService(d.Orders, logger),
		metrics:  d.Metrics,
		health:   d.Health,
		logger:   logger,
	}
}

// AttachQueue sets the queue used by SubmitOrder. The queue is built after the
// service because the service is its handler.
func (s *OrderService) AttachQueue(q async.Queue) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queue = q
}

// GuideView is the API shape of the active guide.
type GuideView struct {
	ID        *uuid.UUID          `json:"id,omitempty"`
	Summary   entity.GuideSummary `json:"summary"`
	CreatedAt *time.Time          `json:"created_at,omitempty"`
}

// OrderView is the API shape of a stored order. Parse output is absent while
// the order is still queued.
type OrderView struct {
	ID            uuid.UUID             `json:"id"`
	GuideID       *uuid.UUID            `json:"guide_id,omitempty"`
	Status        constants.OrderStatus `json:"status"`
	CreatedAt     time.Time             `json:"created_at"`
	Label         json.RawMessage       `json:"label,omitempty"`
	Validation    *entity.Validation    `json:"validation,omitempty"`
	Confidence    float64               `json:"confidence"`
	MissingFields []string              `json:"missing_fields"`
	Confirmation  string                `json:"confirmation,omitempty"`
}

// LoadGuide parses and activates a guide, then persists it.
func (s *OrderService) LoadGuide(ctx context.Context, text string) (*GuideView, error) {
	v := common.NewValidator().Field("guide_text", text, common.Required)
	if err := common.ValidateAndReturnError(v); err != nil {
		return nil, err
	}
	summary := s.engine.LoadGuide(text)
	return s.persistGuide(ctx, summary)
}

func (s *OrderService) persistGuide(ctx context.Context, summary entity.GuideSummary) (*GuideView, error) {
	saved, err := s.guides.Save(ctx, s.engine.GuideText(), s.engine.Profile())
	if err != nil {
		return nil, common.WrapError(err, "save guide")
	}
	s.mu.Lock()
	s.guideID = &saved.ID
	s.mu.Unlock()
	return &GuideView{ID: &saved.ID, Summary: summary, CreatedAt: &saved.CreatedAt}, nil
}

// CurrentGuide describes the active guide; ErrNotFound before any load.
func (s *OrderService) CurrentGuide(ctx context.Context) (*GuideView, error) {
	id := s.currentGuideID()
	if id == nil {
		return nil, common.WrapError(common.ErrNotFound, "no guide loaded")
	}
	g, err := s.guides.GetByID(ctx, *id)
	if err != nil {
		return nil, err
	}
	return &GuideView{ID: &g.ID, Summary: s.engine.Profile().Summary(), CreatedAt: &g.CreatedAt}, nil
}

// RestoreLatestGuide activates the most recently stored guide, if any.
func (s *OrderService) RestoreLatestGuide(ctx context.Context) error {
	g, err := s.guides.Latest(ctx)
	if errors.Is(err, common.ErrNotFound) {
		s.logger.Info("guide.restore.none")
		return nil
	}
	if err != nil {
		return err
	}
	s.engine.LoadGuide(g.GuideText)
	s.mu.Lock()
	s.guideID = &g.ID
	s.mu.Unlock()
	s.logger.Info("guide.restore.ok", "guide_id", g.ID, "seller", g.SellerName)
	return nil
}

func (s *OrderService) currentGuideID() *uuid.UUID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.guideID
}

// ParseOrder parses text synchronously and stores the result.
func (s *OrderService) ParseOrder(ctx context.Context, text string) (*OrderView, error) {
	if err := validateOrderText(text); err != nil {
		return nil, err
	}
	res, err := s.engine.Process(ctx, text)
	if err != nil {
		return nil, err
	}
	o := &entity.StoredOrder{
		GuideID:    s.currentGuideID(),
		RawText:    text,
		Order:      res.Order,
		Validation: res.Validation,
		Status:     statusFor(res.Validation),
	}
	if err := s.orders.Save(ctx, o); err != nil {
		return nil, common.WrapError(err, "save order")
	}
	return s.view(o), nil
}

// SubmitOrder stores text as QUEUED and hands it to the worker pool.
func (s *OrderService) SubmitOrder(ctx context.Context, text string) (*OrderView, error) {
	if err := validateOrderText(text); err != nil {
		return nil, err
	}
	s.mu.RLock()
	q := s.queue
	s.mu.RUnlock()
	if q == nil {
		return nil, common.WrapError(common.ErrNotConfigured, "order queue")
	}

	o := &entity.StoredOrder{
		GuideID: s.currentGuideID(),
		RawText: text,
		Order:   entity.ParsedOrder{Items: []entity.OrderItem{}, MissingFields: []string{}},
		Status:  constants.OrderStatusQueued,
	}
	if err := s.orders.Save(ctx, o); err != nil {
		return nil, common.WrapError(err, "save order")
	}

	job := async.Job{
		OrderID:     o.ID,
		GuideID:     o.GuideID,
		Text:        text,
		SubmittedAt: o.CreatedAt,
		TraceID:     common.RequestIDFromContext(ctx),
	}
	if err := q.Enqueue(ctx, job); err != nil {
		if uerr := s.orders.UpdateStatus(context.WithoutCancel(ctx), o.ID, constants.OrderStatusFailed); uerr != nil {
			s.logger.Error("order.status.update_failed", "order_id", o.ID, "error", uerr)
		}
		return nil, common.WrapError(err, "enqueue order")
	}
	return s.view(o), nil
}

// HandleOrder is the queue worker body for a submitted order.
func (s *OrderService) HandleOrder(ctx context.Context, job async.Job) error {
	log := common.LoggerWithRequest(ctx, s.logger).With("order_id", job.OrderID)

	res, err := s.processForGuide(ctx, job, log)
	if err != nil {
		s.markFailed(ctx, job.OrderID, log)
		return err
	}
	status := statusFor(res.Validation)
	if err := s.orders.SaveResult(ctx, job.OrderID, res.Order, res.Validation, status); err != nil {
		s.markFailed(ctx, job.OrderID, log)
		return err
	}

	if status == constants.OrderStatusParsed {
		if err := s.pub.Publish(ctx, job.OrderID.String(), res.Label); err != nil {
			log.Warn("order.publish.failed", "error", err)
		} else {
			s.metrics.ObservePublished()
		}
	}
	log.Info("order.async.ok", "status", status, "queued_ms", time.Since(job.SubmittedAt).Milliseconds())
	return nil
}

// processForGuide parses job against the guide that was current when it was
// submitted, so the stored order and its guide_id always agree.
func (s *OrderService) processForGuide(ctx context.Context, job async.Job, log *slog.Logger) (core.Result, error) {
	current := s.currentGuideID()
	switch {
	case job.GuideID == nil:
		return s.engine.ProcessWith(ctx, nil, job.Text)
	case current != nil && *current == *job.GuideID:
		return s.engine.Process(ctx, job.Text)
	}
	g, err := s.guides.GetByID(ctx, *job.GuideID)
	if err != nil {
		return core.Result{}, common.WrapError(err, "load submitted guide")
	}
	log.Info("order.async.guide_changed", "guide_id", g.ID)
	return s.engine.ProcessWith(ctx, g.Profile, job.Text)
}

func (s *OrderService) markFailed(ctx context.Context, id uuid.UUID, log *slog.Logger) {
	if err := s.orders.UpdateStatus(context.WithoutCancel(ctx), id, constants.OrderStatusFailed); err != nil {
		log.Error("order.status.update_failed", "error", err)
	}
}

// GetOrder loads one order by its string id.
func (s *OrderService) GetOrder(ctx context.Context, id string) (*OrderView, error) {
	oid, err := parseOrderID(id)
	if err != nil {
		return nil, err
	}
	o, err := s.orders.GetByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	return s.view(o), nil
}

// ConfirmOrder marks a complete order as confirmed by the customer.
func (s *OrderService) ConfirmOrder(ctx context.Context, id string) (*OrderView, error) {
	oid, err := parseOrderID(id)
	if err != nil {
		return nil, err
	}
	o, err := s.orders.GetByID(ctx, oid)
	if err != nil {
		return nil, err
	}
	if o.Status != constants.OrderStatusParsed {
		return nil, common.FailedPreconditionError(fmt.Sprintf("order is %s, only PARSED orders can be confirmed", o.Status))
	}
	if err := s.orders.UpdateStatus(ctx, oid, constants.OrderStatusConfirmed); err != nil {
		return nil, err
	}
	o.Status = constants.OrderStatusConfirmed
	return s.view(o), nil
}

// ListOrders returns the newest orders first.
func (s *OrderService) ListOrders(ctx context.Context, limit int) ([]*OrderView, error) {
	list, err := s.orders.ListRecent(ctx, limit)
	if err != nil {
		return nil, err
	}
	out := make([]*OrderView, 0, len(list))
	for _, o := range list {
		out = append(out, s.view(o))
	}
	return out, nil
}

// Verify parses text and asks the price verifier to check the totals.
func (s *OrderService) Verify(ctx context.Context, text string) (*core.CrossCheckResult, error) {
	if err := validateOrderText(text); err != nil {
		return nil, err
	}
	res, err := s.engine.Process(ctx, text)
	if err != nil {
		return nil, err
	}
	cc, err := s.engine.CrossCheck(ctx, res.Order, res.Validation)
	if err != nil {
		return nil, err
	}
	return &cc, nil
}

// ExportOrders renders stored orders in the date window as XLSX.
func (s *OrderService) ExportOrders(ctx context.Context, from, to *time.Time) ([]byte, error) {
	return s.exporter.ExportOrdersXLSX(ctx, from, to)
}

// CallTool runs an agent tool. A guide loaded through the tool is persisted
// like one loaded through LoadGuide.
func (s *OrderService) CallTool(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	out, err := s.tools.Call(ctx, name, args)
	if err != nil {
		return nil, err
	}
	if name == agent.ToolLoadSellerGuide {
		if _, err := s.persistGuide(ctx, s.engine.Profile().Summary()); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Tools lists the agent tool declarations.
func (s *OrderService) Tools() []agent.ToolDeclaration { return s.tools.Tools() }

// Health checks the backing store, when there is one.
func (s *OrderService) Health(ctx context.Context) error {
	if s.health == nil {
		return nil
	}
	return s.health.HealthCheck(ctx, 2*time.Second)
}

func (s *OrderService) view(o *entity.StoredOrder) *OrderView {
	v := &OrderView{
		ID:            o.ID,
		GuideID:       o.GuideID,
		Status:        o.Status,
		CreatedAt:     o.CreatedAt,
		Confidence:    o.Order.Confidence,
		MissingFields: o.Order.MissingFields,
	}
	if v.MissingFields == nil {
		v.MissingFields = []string{}
	}
	if o.Status == constants.OrderStatusQueued || o.Status == constants.OrderStatusFailed {
		return v
	}
	if label, err := render.LabelJSON(o.Order); err == nil {
		v.Label = label
	} else {
		s.logger.Warn("order.view.label_error", "order_id", o.ID, "error", err)
	}
	validation := o.Validation
	v.Validation = &validation
	v.Confirmation = render.Confirmation(o.Order, o.Validation, s.engine.Profile().BankAccount)
	return v
}

func statusFor(v entity.Validation) constants.OrderStatus {
	if v.IsValid {
		return constants.OrderStatusParsed
	}
	return constants.OrderStatusNeedsInfo
}

func validateOrderText(text string) error {
	v := common.NewValidator().Field("order_text", text, common.Required, common.MaxLen(maxOrderTextLen))
	return common.ValidateAndReturnError(v)
}

func parseOrderID(id string) (uuid.UUID, error) {
	id = strings.TrimSpace(id)
	v := common.NewValidator().Field("id", id, common.Required, common.UUID)
	if err := common.ValidateAndReturnError(v); err != nil {
		return uuid.Nil, err
	}
	return uuid.MustParse(id), nil
}
