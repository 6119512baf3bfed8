package core

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/joseph-ayodele/groupbuy-orders/internal/common"
	"github.com/joseph-ayodele/groupbuy-orders/internal/entity"
	"github.com/joseph-ayodele/groupbuy-orders/internal/extract"
	"github.com/joseph-ayodele/groupbuy-orders/internal/guide"
	"github.com/joseph-ayodele/groupbuy-orders/internal/llm"
	"github.com/joseph-ayodele/groupbuy-orders/internal/metrics"
	"github.com/joseph-ayodele/groupbuy-orders/internal/order"
	"github.com/joseph-ayodele/groupbuy-orders/internal/render"
)

// snapshot is an immutable guide load. Readers take one and use it for the
// whole request so a concurrent reload never mixes two catalogs.
type snapshot struct {
	profile   *entity.SellerProfile
	guideText string
}

// Engine owns the current seller profile and turns order text into parsed,
// validated and rendered orders. Safe for concurrent use.
type Engine struct {
	logger    *slog.Logger
	clock     order.Clock
	metrics   *metrics.Registry
	verifier  llm.PriceVerifier
	parser    *guide.Parser
	assembler *order.Assembler
	current   atomic.Pointer[snapshot]
}

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option { return func(e *Engine) { e.logger = l } }

func WithClock(c order.Clock) Option { return func(e *Engine) { e.clock = c } }

func WithMetrics(m *metrics.Registry) Option { return func(e *Engine) { e.metrics = m } }

func WithVerifier(v llm.PriceVerifier) Option { return func(e *Engine) { e.verifier = v } }

func NewEngine(opts ...Option) *Engine {
	e := &Engine{}
	for _, o := range opts {
		o(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	if e.clock == nil {
		e.clock = time.Now
	}
	e.parser = guide.NewParser(e.logger)
	e.assembler = order.NewAssembler(e.clock)
	e.current.Store(&snapshot{profile: entity.NewSellerProfile()})
	return e
}

// LoadGuide parses a seller guide and publishes it as the current profile.
func (e *Engine) LoadGuide(text string) entity.GuideSummary {
	text = extract.Normalize(text)
	profile := e.parser.Parse(text)
	e.current.Store(&snapshot{profile: profile, guideText: text})
	if e.metrics != nil {
		e.metrics.GuideLoads.Inc()
	}
	summary := profile.Summary()
	e.logger.Info("guide.load.ok",
		"seller", summary.SellerName,
		"products", summary.ProductsCount,
		"free_shipping", summary.FreeShipping,
		"shipping_fee", summary.ShippingFee,
	)
	return summary
}

// Profile returns the current profile. It must be treated as read-only.
func (e *Engine) Profile() *entity.SellerProfile { return e.current.Load().profile }

// GuideText returns the normalized text of the last loaded guide.
func (e *Engine) GuideText() string { return e.current.Load().guideText }

// ParseOrder extracts an order from free text against the current profile.
func (e *Engine) ParseOrder(text string) entity.ParsedOrder {
	return e.assembler.Assemble(extract.Normalize(text), e.Profile())
}

// Validate recomputes issues and totals against the current profile.
func (e *Engine) Validate(o entity.ParsedOrder) entity.Validation {
	return order.Validate(o, e.Profile())
}

// Confirmation renders the customer reply for o.
func (e *Engine) Confirmation(o entity.ParsedOrder) string {
	s := e.current.Load()
	return render.Confirmation(o, order.Validate(o, s.profile), s.profile.BankAccount)
}

// Label renders the label JSON for o.
func (e *Engine) Label(o entity.ParsedOrder) ([]byte, error) {
	return render.LabelJSON(o)
}

// Result bundles everything produced for one order message.
type Result struct {
	Order        entity.ParsedOrder  `json:"order"`
	Validation   entity.Validation   `json:"validation"`
	Confirmation string              `json:"confirmation"`
	Label        json.RawMessage     `json:"label"`
	Guide        entity.GuideSummary `json:"guide"`
}

// Process parses, validates and renders one order against a single profile snapshot.
func (e *Engine) Process(ctx context.Context, text string) (Result, error) {
	return e.process(ctx, e.current.Load(), text)
}

// ProcessWith is Process against an explicit profile, such as the guide an
// order was submitted under. The current profile is left untouched.
func (e *Engine) ProcessWith(ctx context.Context, profile *entity.SellerProfile, text string) (Result, error) {
	if profile == nil {
		profile = entity.NewSellerProfile()
	}
	return e.process(ctx, &snapshot{profile: profile}, text)
}

func (e *Engine) process(ctx context.Context, s *snapshot, text string) (Result, error) {
	start := time.Now()
	log := common.LoggerWithRequest(ctx, e.logger)

	o := e.assembler.Assemble(extract.Normalize(text), s.profile)
	v := order.Validate(o, s.profile)
	label, err := render.LabelJSON(o)
	if err != nil {
		log.Error("engine.order.label_error", "error", err)
		return Result{}, fmt.Errorf("render label: %w", err)
	}

	elapsed := time.Since(start)
	e.metrics.ObserveOrder(v.IsValid, o.MissingFields, o.Confidence, elapsed)
	log.Info("engine.order.parsed",
		"items", len(o.Items),
		"confidence", o.Confidence,
		"missing", o.MissingFields,
		"valid", v.IsValid,
		"total", v.TotalAmount,
		"elapsed_ms", elapsed.Milliseconds(),
	)

	return Result{
		Order:        o,
		Validation:   v,
		Confirmation: render.Confirmation(o, v, s.profile.BankAccount),
		Label:        label,
		Guide:        s.profile.Summary(),
	}, nil
}

// CrossCheckResult compares the rule-based totals to an independent verifier.
type CrossCheckResult struct {
	Verification llm.PriceVerification `json:"verification"`
	Expected     entity.Validation     `json:"expected"`
	Match        bool                  `json:"match"`
	Mismatches   []string              `json:"mismatches"`
}

// CrossCheck asks the configured verifier to price o from the raw guide text.
// A disagreement is reported in the result, not as an error.
func (e *Engine) CrossCheck(ctx context.Context, o entity.ParsedOrder, v entity.Validation) (CrossCheckResult, error) {
	if e.verifier == nil {
		return CrossCheckResult{}, common.WrapError(common.ErrNotConfigured, "price verifier")
	}
	log := common.LoggerWithRequest(ctx, e.logger)

	label := render.NewLabel(o)
	items := make([]llm.VerifyItem, 0, len(label.Items))
	for _, it := range label.Items {
		items = append(items, llm.VerifyItem{
			ProductName: it.ProductName,
			Unit:        it.Unit,
			UnitPrice:   it.UnitPrice,
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal,
		})
	}

	pv, _, err := e.verifier.VerifyPrice(ctx, llm.VerifyRequest{GuideText: e.GuideText(), Items: items})
	if err != nil {
		log.Error("engine.crosscheck.error", "error", err)
		return CrossCheckResult{}, fmt.Errorf("verify price: %w", err)
	}

	res := CrossCheckResult{Verification: pv, Expected: v, Mismatches: []string{}}
	compare := func(name string, got, want int) {
		if got != want {
			res.Mismatches = append(res.Mismatches, fmt.Sprintf("%s: verifier=%d engine=%d", name, got, want))
		}
	}
	compare("item_total", pv.ItemTotal, v.Subtotal)
	compare("shipping_fee", pv.ShippingFee, v.ShippingFee)
	compare("final_total", pv.FinalTotal, v.TotalAmount)
	res.Match = len(res.Mismatches) == 0

	e.metrics.ObserveCrossCheck(res.Match)
	if res.Match {
		log.Info("engine.crosscheck.ok", "final_total", v.TotalAmount)
	} else {
		log.Warn("engine.crosscheck.mismatch", "mismatches", res.Mismatches)
	}
	return res, nil
}
