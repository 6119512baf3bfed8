package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/groupbuy-orders/internal/common"
	"github.com/joseph-ayodele/groupbuy-orders/internal/metrics"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type guideRequest struct {
	GuideText string `json:"guide_text"`
}

type orderRequest struct {
	OrderText string `json:"order_text"`
}

// Handler serves the REST API.
type Handler struct {
	svc    *OrderService
	logger *slog.Logger
}

func NewHandler(svc *OrderService, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{svc: svc, logger: logger}
}

// NewRouter builds the gin engine. reg may be nil, which leaves /metrics unmounted.
func NewRouter(svc *OrderService, reg *metrics.Registry, logger *slog.Logger) *gin.Engine {
	h := NewHandler(svc, logger)
	r := gin.New()
	r.Use(gin.Recovery(), RequestID(), AccessLog(h.logger))

	r.GET("/healthz", h.Healthz)
	if reg != nil {
		r.GET("/metrics", gin.WrapH(reg.Handler()))
	}

	api := r.Group("/api")
	{
		api.POST("/guides", h.LoadGuide)
		api.GET("/guides/current", h.CurrentGuide)
		api.GET("/tools", h.Tools)

		api.POST("/orders/parse", h.ParseOrder)
		api.POST("/orders/verify", h.VerifyOrder)
		api.POST("/orders", h.SubmitOrder)
		api.GET("/orders", h.ListOrders)
		api.GET("/orders/:id", h.GetOrder)
		api.POST("/orders/:id/confirm", h.ConfirmOrder)

		api.GET("/exports/orders.xlsx", h.ExportOrders)
	}
	return r
}

func (h *Handler) LoadGuide(c *gin.Context) {
	var req guideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	g, err := h.svc.LoadGuide(c.Request.Context(), req.GuideText)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) CurrentGuide(c *gin.Context) {
	g, err := h.svc.CurrentGuide(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, g)
}

func (h *Handler) Tools(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"tools": h.svc.Tools()})
}

func (h *Handler) ParseOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	o, err := h.svc.ParseOrder(c.Request.Context(), req.OrderText)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) SubmitOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	o, err := h.svc.SubmitOrder(c.Request.Context(), req.OrderText)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusAccepted, gin.H{
		"id":     o.ID,
		"status": o.Status,
	})
}

func (h *Handler) VerifyOrder(c *gin.Context) {
	var req orderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	res, err := h.svc.Verify(c.Request.Context(), req.OrderText)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *Handler) GetOrder(c *gin.Context) {
	o, err := h.svc.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) ConfirmOrder(c *gin.Context) {
	o, err := h.svc.ConfirmOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

func (h *Handler) ListOrders(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	list, err := h.svc.ListOrders(c.Request.Context(), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"orders": list})
}

// ExportOrders accepts optional from/to dates (YYYY-MM-DD).
func (h *Handler) ExportOrders(c *gin.Context) {
	var from, to *time.Time
	for _, p := range []struct {
		name string
		dst  **time.Time
	}{{"from", &from}, {"to", &to}} {
		raw := c.Query(p.name)
		if raw == "" {
			continue
		}
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": p.name + " must be YYYY-MM-DD"})
			return
		}
		*p.dst = &t
	}

	b, err := h.svc.ExportOrders(c.Request.Context(), from, to)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="orders.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, b)
}

func (h *Handler) Healthz(c *gin.Context) {
	if err := h.svc.Health(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) fail(c *gin.Context, err error) {
	code := common.HTTPStatus(err)
	if code >= http.StatusInternalServerError {
		common.LoggerWithRequest(c.Request.Context(), h.logger).Error("http.handler.failed",
			"path", c.FullPath(), "error", err)
	}
	c.JSON(code, gin.H{"error": err.Error()})
}

// RequestID propagates X-Request-ID (or a fresh uuid) and X-Seller-ID into
// the request context.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := c.GetHeader("X-Request-ID")
		if rid == "" {
			rid = uuid.NewString()
		}
		ctx := common.WithRequestID(c.Request.Context(), rid)
		if seller := c.GetHeader("X-Seller-ID"); seller != "" {
			ctx = common.WithSellerID(ctx, seller)
		}
		c.Request = c.Request.WithContext(ctx)
		c.Header("X-Request-ID", rid)
		c.Next()
	}
}

// AccessLog writes one line per request.
func AccessLog(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log := common.LoggerWithRequest(c.Request.Context(), logger)
		if seller := common.SellerIDFromContext(c.Request.Context()); seller != "" {
			log = log.With("seller_id", seller)
		}
		log.Info("http.request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"elapsed_ms", time.Since(start).Milliseconds(),
		)
	}
}
