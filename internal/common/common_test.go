package common

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestLoadConfig_Defaults(t *testing.T) {
	for _, k := range []string{"DB_DRIVER", "GRPC_ADDR", "HTTP_ADDR", "KAFKA_BROKERS", "QUEUE_WORKERS", "LOG_FORMAT"} {
		t.Setenv(k, "")
	}
	cfg := LoadConfig()
	assert.Equal(t, "postgres", cfg.Database.Driver)
	assert.Equal(t, ":8080", cfg.Server.GRPCAddr)
	assert.Equal(t, ":8081", cfg.Server.HTTPAddr)
	assert.Empty(t, cfg.Kafka.Brokers)
	assert.Equal(t, 2, cfg.Queue.Workers)
	assert.Equal(t, "text", cfg.Log.Format)
	require.NoError(t, cfg.Validate())
}

func TestLoadConfig_Overrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("KAFKA_BROKERS", "a:9092, b:9092,,")
	t.Setenv("QUEUE_PROCESS_TIMEOUT", "5s")
	t.Setenv("OPENAI_TEMPERATURE", "0.5")
	t.Setenv("QUEUE_SIZE", "not-a-number")
	t.Setenv("ORDER_INBOX_DIR", "/var/spool/orders")
	t.Setenv("ORDER_INBOX_EXTS", "txt,sms")
	t.Setenv("ORDER_INBOX_SCAN", "true")

	cfg := LoadConfig()
	assert.Equal(t, "sqlite", cfg.Database.Driver)
	assert.Equal(t, []string{"a:9092", "b:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 5*time.Second, cfg.Queue.ProcessTimeout)
	assert.InDelta(t, 0.5, cfg.LLM.Temperature, 1e-6)
	assert.Equal(t, 64, cfg.Queue.Size)
	assert.Equal(t, "/var/spool/orders", cfg.Inbox.Dir)
	assert.Equal(t, []string{"txt", "sms"}, cfg.Inbox.Exts)
	assert.Equal(t, 500*time.Millisecond, cfg.Inbox.Debounce)
	assert.True(t, cfg.Inbox.InitialScan)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty grpc addr", func(c *Config) { c.Server.GRPCAddr = "" }},
		{"empty http addr", func(c *Config) { c.Server.HTTPAddr = "" }},
		{"unknown driver", func(c *Config) { c.Database.Driver = "mysql" }},
		{"no workers", func(c *Config) { c.Queue.Workers = 0 }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := LoadConfig()
			cfg.Database.Driver = "sqlite"
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidInput)
			var appErr *AppError
			require.True(t, errors.As(err, &appErr))
			assert.Equal(t, "CONFIG_ERROR", appErr.Code)
		})
	}
}

func TestErrorMapping(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		grpcCode codes.Code
		httpCode int
	}{
		{"not found", WrapError(ErrNotFound, "order"), codes.NotFound, http.StatusNotFound},
		{"invalid", NewAppError("BAD", "x", ErrInvalidInput), codes.InvalidArgument, http.StatusBadRequest},
		{"validation", ErrValidation, codes.InvalidArgument, http.StatusBadRequest},
		{"not configured", WrapError(ErrNotConfigured, "verifier"), codes.FailedPrecondition, http.StatusConflict},
		{"other", errors.New("boom"), codes.Internal, http.StatusInternalServerError},
		{"status passthrough", InvalidArgumentError("bad"), codes.InvalidArgument, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.grpcCode, status.Code(GRPCStatus(tt.err)))
			assert.Equal(t, tt.httpCode, HTTPStatus(tt.err))
		})
	}
	assert.NoError(t, GRPCStatus(nil))
	assert.Nil(t, WrapError(nil, "x"))
}

func TestValidator(t *testing.T) {
	v := NewValidator().
		Field("order_text", "", Required).
		Field("guide_text", "1번", MinLen(5)).
		Field("contact_number", "010-1234-5678", Phone).
		Field("id", "nope", UUID)

	require.True(t, v.HasErrors())
	fields := []string{}
	for _, e := range v.Errors() {
		fields = append(fields, e.Field)
	}
	assert.Equal(t, []string{"order_text", "guide_text", "id"}, fields)

	err := ValidateAndReturnError(v)
	assert.Equal(t, codes.InvalidArgument, status.Code(err))
	assert.NoError(t, ValidateAndReturnError(NewValidator().Field("x", "y", Required, MaxLen(3))))
}

func TestPhoneRule(t *testing.T) {
	tests := []struct {
		value any
		ok    bool
	}{
		{"010-1234-5678", true},
		{"031 123 4567", true},
		{"02-123-4567", false},
		{"1234567890", false},
		{(*string)(nil), true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, Phone("p", tt.value) == nil, "%v", tt.value)
	}
}

func TestContextValues(t *testing.T) {
	ctx := WithSellerID(WithRequestID(context.Background(), "rid-1"), "guide-1")
	assert.Equal(t, "rid-1", RequestIDFromContext(ctx))
	assert.Equal(t, "guide-1", SellerIDFromContext(ctx))
	assert.Empty(t, RequestIDFromContext(context.Background()))

	cctx, cancel := WithTimeout(ctx, 0)
	defer cancel()
	_, hasDeadline := cctx.Deadline()
	assert.False(t, hasDeadline)
}

func TestNewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, flush := newLogger(LogConfig{Level: "info", Format: "json"}, &buf)
	logger.Info("guide.load.ok", "products", 7)
	logger.Debug("hidden")
	flush()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 1)
	var entry map[string]any
	require.NoError(t, json.Unmarshal([]byte(lines[0]), &entry))
	assert.Equal(t, "guide.load.ok", entry["msg"])
	assert.EqualValues(t, 7, entry["products"])

	buf.Reset()
	logger, _ = newLogger(LogConfig{Level: "debug", Format: "text"}, &buf)
	LoggerWithRequest(WithRequestID(context.Background(), "r1"), logger).Debug("engine.order.parsed")
	assert.Equal(t, "msg=engine.order.parsed request_id=r1\n", buf.String())
}
