package export

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/joseph-ayodele/groupbuy-orders/internal/batch"
	"github.com/joseph-ayodele/groupbuy-orders/internal/entity"
)

const (
	OrdersSheet  = "Orders"
	ResultsSheet = "Results"
)

var orderHeaders = []string{
	"주문일",
	"주문자",
	"연락처",
	"배송지",
	"상품",
	"상품금액",
	"배송비",
	"총 결제금액",
	"신뢰도",
	"누락 항목",
}

var resultHeaders = []string{"no", "order", "turn", "predict", "label", "correct_score"}

// OrderLister is the slice of the order repository exports need.
type OrderLister interface {
	ListCreatedBetween(ctx context.Context, from, to *time.Time) ([]*entity.StoredOrder, error)
}

// Service produces XLSX bytes for exports.
type Service struct {
	orders OrderLister
	logger *slog.Logger
}

func NewService(orders OrderLister, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{orders: orders, logger: logger}
}

// ExportOrdersXLSX returns a workbook of stored orders in a date window.
// If only from is provided -> from..today (inclusive).
// If only to is provided   -> beginning..to (inclusive).
// If neither is provided   -> all orders.
func (s *Service) ExportOrdersXLSX(ctx context.Context, from, to *time.Time) ([]byte, error) {
	start := time.Now()
	if from != nil && to == nil {
		today := time.Now().UTC()
		to = &today
	}

	orders, err := s.orders.ListCreatedBetween(ctx, from, to)
	if err != nil {
		return nil, fmt.Errorf("query orders: %w", err)
	}
	out, err := OrdersXLSX(orders)
	if err != nil {
		return nil, err
	}

	s.logger.Info("export.xlsx.ok",
		"sheet", OrdersSheet,
		"rows", len(orders),
		"elapsed_ms", time.Since(start).Milliseconds(),
	)
	return out, nil
}

// OrdersXLSX renders one row per order.
func OrdersXLSX(orders []*entity.StoredOrder) ([]byte, error) {
	f, err := newWorkbook(OrdersSheet, orderHeaders)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	for i, o := range orders {
		row := i + 2
		write := func(col int, v any) {
			cell, _ := excelize.CoordinatesToCellName(col, row)
			_ = f.SetCellValue(OrdersSheet, cell, v)
		}
		write(1, o.CreatedAt.Format("2006-01-02"))
		write(2, entity.Value(o.Order.CustomerName))
		write(3, entity.Value(o.Order.ContactNumber))
		write(4, entity.Value(o.Order.DeliveryAddress))
		write(5, truncate(itemsCell(o.Order.Items), 140))
		write(6, o.Validation.Subtotal)
		write(7, o.Validation.ShippingFee)
		write(8, o.Validation.TotalAmount)
		write(9, o.Order.Confidence)
		write(10, strings.Join(o.Order.MissingFields, ", "))
	}

	_ = f.SetColWidth(OrdersSheet, "A", "A", 12) // date
	_ = f.SetColWidth(OrdersSheet, "B", "C", 16)
	_ = f.SetColWidth(OrdersSheet, "D", "D", 48) // address
	_ = f.SetColWidth(OrdersSheet, "E", "E", 60) // items
	_ = f.SetColWidth(OrdersSheet, "F", "H", 14) // amounts
	_ = f.SetColWidth(OrdersSheet, "J", "J", 40)

	return toBytes(f)
}

// BatchResultsXLSX mirrors the batch CSV, followed by a blank row and the
// mean score.
func BatchResultsXLSX(results []batch.Result) ([]byte, error) {
	f, err := newWorkbook(ResultsSheet, resultHeaders)
	if err != nil {
		return nil, err
	}
	defer func() { _ = f.Close() }()

	for i, r := range results {
		cell, _ := excelize.CoordinatesToCellName(1, i+2)
		row := []any{r.No, r.Order, r.Turn, r.Predict, r.Label, r.CorrectScore}
		if err := f.SetSheetRow(ResultsSheet, cell, &row); err != nil {
			return nil, err
		}
	}
	summary := len(results) + 3
	_ = f.SetCellValue(ResultsSheet, fmt.Sprintf("E%d", summary), "mean_score")
	_ = f.SetCellValue(ResultsSheet, fmt.Sprintf("F%d", summary), batch.MeanScore(results))

	_ = f.SetColWidth(ResultsSheet, "B", "B", 60) // transcript
	_ = f.SetColWidth(ResultsSheet, "D", "E", 60) // json

	return toBytes(f)
}

func newWorkbook(sheet string, headers []string) (*excelize.File, error) {
	f := excelize.NewFile()
	if index, _ := f.GetSheetIndex(sheet); index == -1 {
		if _, err := f.NewSheet(sheet); err != nil {
			return nil, err
		}
	}
	activeIndex, _ := f.GetSheetIndex(sheet)
	f.SetActiveSheet(activeIndex)
	// drop the default sheet so the export opens on ours
	if sheet != "Sheet1" {
		_ = f.DeleteSheet("Sheet1")
	}

	for i, h := range headers {
		cell, _ := excelize.CoordinatesToCellName(i+1, 1)
		_ = f.SetCellValue(sheet, cell, h)
	}
	return f, nil
}

func toBytes(f *excelize.File) ([]byte, error) {
	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("xlsx write: %w", err)
	}
	return buf.Bytes(), nil
}

func itemsCell(items []entity.OrderItem) string {
	parts := make([]string, 0, len(items))
	for _, it := range items {
		parts = append(parts, fmt.Sprintf("%s x%d", it.ProductName, it.Quantity))
	}
	return strings.Join(parts, ", ")
}

func truncate(s string, n int) string {
	r := []rune(s)
	if n <= 0 || len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}
