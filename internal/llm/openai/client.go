package openai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/joseph-ayodele/groupbuy-orders/internal/llm"
	"github.com/joseph-ayodele/groupbuy-orders/internal/schema"
)

var _ llm.PriceVerifier = (*Client)(nil)

// VerifyPrice implements llm.PriceVerifier using chat/completions in JSON mode.
// An empty item list returns zeros without a network call.
func (c *Client) VerifyPrice(ctx context.Context, req llm.VerifyRequest) (llm.PriceVerification, []byte, error) {
	if len(req.Items) == 0 {
		return llm.NoItemsVerification(), nil, nil
	}
	if c.cfg.APIKey == "" {
		return llm.PriceVerification{}, nil, errors.New("openai: api key not configured")
	}

	rid := uuid.New().String()
	start := time.Now()
	c.logger.Info("llm.verify.start",
		"req_id", rid,
		"model", c.cfg.Model,
		"items", len(req.Items),
		"guide_len", len(req.GuideText),
	)

	verifySchema := llm.BuildVerificationJSONSchema()
	body := map[string]any{
		"model":           c.cfg.Model,
		"temperature":     c.cfg.Temperature,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": llm.BuildSystemPrompt()},
			{"role": "user", "content": llm.BuildUserPrompt(req)},
			{"role": "system", "content": "JSON Schema:\n" + mustJSON(verifySchema)},
		},
	}

	raw, err := llm.PostJSON(ctx, c.http, llm.Call{
		URL:     strings.TrimRight(c.cfg.BaseURL, "/") + "/chat/completions",
		Body:    body,
		Headers: map[string]string{"Authorization": "Bearer " + c.cfg.APIKey},
		ReqID:   rid,
	}, c.logger)
	if err != nil {
		c.logger.Error("llm.verify.http_error",
			"req_id", rid, "error", err,
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
		return llm.PriceVerification{}, nil, fmt.Errorf("openai: %w", err)
	}

	var cc struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.Unmarshal(raw, &cc); err != nil {
		c.logger.Error("llm.verify.decode_error", "req_id", rid, "error", err, "raw_bytes", len(raw))
		return llm.PriceVerification{}, raw, fmt.Errorf("decode openai response: %w", err)
	}
	if len(cc.Choices) == 0 {
		c.logger.Error("llm.verify.no_choices", "req_id", rid, "raw", string(raw))
		return llm.PriceVerification{}, raw, fmt.Errorf("no choices in openai response")
	}
	content := []byte(llm.StripCodeFences(cc.Choices[0].Message.Content))

	if err := schema.ValidateJSONAgainstSchema(verifySchema, content); err != nil {
		if c.cfg.StrictAmounts {
			c.logger.Error("llm.verify.schema_validation_failed", "req_id", rid, "error", err, "content", string(content))
			return llm.PriceVerification{}, content, fmt.Errorf("schema validation failed: %w", err)
		}
		cleaned, changed, sErr := llm.NormalizeAmounts(content, c.logger)
		if sErr != nil {
			c.logger.Error("llm.verify.sanitize_failed", "req_id", rid, "error", sErr)
			return llm.PriceVerification{}, content, fmt.Errorf("sanitize failed: %w", sErr)
		}
		if vErr := schema.ValidateJSONAgainstSchema(verifySchema, cleaned); vErr != nil {
			c.logger.Error("llm.verify.schema_validation_failed", "req_id", rid, "error", vErr, "content", string(cleaned))
			return llm.PriceVerification{}, cleaned, fmt.Errorf("schema validation failed: %w", vErr)
		}
		c.logger.Warn("llm.verify.lenient_sanitize_applied", "req_id", rid, "changed", changed)
		content = cleaned
	}

	var out llm.PriceVerification
	if err := json.Unmarshal(content, &out); err != nil {
		c.logger.Error("llm.verify.unmarshal_failed", "req_id", rid, "error", err)
		return llm.PriceVerification{}, content, fmt.Errorf("unmarshal verification: %w", err)
	}
	if out.Items == nil {
		out.Items = []llm.VerifyItem{}
	}

	c.logger.Info("llm.verify.ok",
		"req_id", rid,
		"item_total", out.ItemTotal,
		"shipping_fee", out.ShippingFee,
		"final_total", out.FinalTotal,
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, content, nil
}

func mustJSON(v any) string {
	b, _ := json.MarshalIndent(v, "", "  ")
	return string(b)
}
