package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/joseph-ayodele/groupbuy-orders/internal/common"
	"github.com/joseph-ayodele/groupbuy-orders/internal/core"
	"github.com/joseph-ayodele/groupbuy-orders/internal/entity"
	"github.com/joseph-ayodele/groupbuy-orders/internal/render"
)

const (
	ToolLoadSellerGuide = "load_seller_guide"
	ToolParseOrder      = "parse_order"
)

// ToolDeclaration describes a callable tool to a hosted model.
type ToolDeclaration struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  map[string]any `json:"parameters"`
}

// ParseOrderResult is what parse_order hands back to the caller.
type ParseOrderResult struct {
	Order         render.Label      `json:"order"`
	Confidence    float64           `json:"confidence"`
	MissingFields []string          `json:"missing_fields"`
	Validation    entity.Validation `json:"validation"`
	Confirmation  string            `json:"confirmation"`
}

type toolFunc func(ctx context.Context, args json.RawMessage) (any, error)

type tool struct {
	decl ToolDeclaration
	fn   toolFunc
}

// Toolset exposes engine operations as named tools taking JSON arguments.
type Toolset struct {
	engine *core.Engine
	logger *slog.Logger
	tools  map[string]tool
}

func NewToolset(engine *core.Engine, logger *slog.Logger) *Toolset {
	if logger == nil {
		logger = slog.Default()
	}
	ts := &Toolset{engine: engine, logger: logger}
	ts.tools = map[string]tool{
		ToolLoadSellerGuide: {
			decl: ToolDeclaration{
				Name:        ToolLoadSellerGuide,
				Description: "판매자 공구 안내문을 불러와 상품 목록, 입금계좌, 배송비 규칙을 등록합니다.",
				Parameters:  stringParam("guide_text", "판매자 공구 안내문 전문"),
			},
			fn: ts.loadSellerGuide,
		},
		ToolParseOrder: {
			decl: ToolDeclaration{
				Name:        ToolParseOrder,
				Description: "고객 주문 문자를 분석해 주문 정보, 검증 결과, 확인 메시지를 돌려줍니다.",
				Parameters:  stringParam("order_text", "고객이 보낸 주문 문자"),
			},
			fn: ts.parseOrder,
		},
	}
	return ts
}

// Tools lists declarations sorted by name.
func (ts *Toolset) Tools() []ToolDeclaration {
	out := make([]ToolDeclaration, 0, len(ts.tools))
	for _, t := range ts.tools {
		out = append(out, t.decl)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Call runs a tool by name and returns its JSON result unmodified.
func (ts *Toolset) Call(ctx context.Context, name string, args json.RawMessage) (json.RawMessage, error) {
	t, ok := ts.tools[name]
	if !ok {
		return nil, common.NewAppError("UNKNOWN_TOOL", fmt.Sprintf("tool %q is not registered", name), common.ErrNotFound)
	}
	out, err := t.fn(ctx, args)
	if err != nil {
		ts.logger.Warn("agent.tool.error", "tool", name, "error", err)
		return nil, err
	}
	b, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("encode %s result: %w", name, err)
	}
	ts.logger.Debug("agent.tool.ok", "tool", name, "bytes", len(b))
	return b, nil
}

func (ts *Toolset) loadSellerGuide(_ context.Context, args json.RawMessage) (any, error) {
	var in struct {
		GuideText string `json:"guide_text"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	v := common.NewValidator().Field("guide_text", in.GuideText, common.Required)
	if v.HasErrors() {
		return nil, common.NewAppError("INVALID_ARGUMENT", v.ErrorMessage(), common.ErrInvalidInput)
	}
	return ts.engine.LoadGuide(in.GuideText), nil
}

func (ts *Toolset) parseOrder(ctx context.Context, args json.RawMessage) (any, error) {
	var in struct {
		OrderText string `json:"order_text"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return nil, err
	}
	res, err := ts.engine.Process(ctx, in.OrderText)
	if err != nil {
		return nil, err
	}
	return NewParseOrderResult(res), nil
}

// NewParseOrderResult projects an engine result onto the tool response shape.
func NewParseOrderResult(res core.Result) ParseOrderResult {
	return ParseOrderResult{
		Order:         render.NewLabel(res.Order),
		Confidence:    res.Order.Confidence,
		MissingFields: res.Order.MissingFields,
		Validation:    res.Validation,
		Confirmation:  res.Confirmation,
	}
}

func decodeArgs(args json.RawMessage, v any) error {
	if len(args) == 0 {
		args = json.RawMessage(`{}`)
	}
	if err := json.Unmarshal(args, v); err != nil {
		return common.NewAppError("INVALID_ARGUMENT", "arguments must be a JSON object", fmt.Errorf("%w: %v", common.ErrInvalidInput, err))
	}
	return nil
}

func stringParam(name, desc string) map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			name: map[string]any{"type": "string", "description": desc},
		},
		"required": []string{name},
	}
}
