package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/groupbuy-orders/constants"
	"github.com/joseph-ayodele/groupbuy-orders/internal/common"
	"github.com/joseph-ayodele/groupbuy-orders/internal/entity"
)

var orderColumns = []string{
	"id", "guide_id", "raw_text", "order_json", "validation_json",
	"customer_name", "contact_number", "expected_amount", "total_amount",
	"confidence", "status", "created_at",
}

// DefaultListLimit caps ListRecent when no limit is given.
const DefaultListLimit = 50

type OrderRepository interface {
	Save(ctx context.Context, o *entity.StoredOrder) error
	SaveResult(ctx context.Context, id uuid.UUID, order entity.ParsedOrder, v entity.Validation, status constants.OrderStatus) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status constants.OrderStatus) error
	GetByID(ctx context.Context, id uuid.UUID) (*entity.StoredOrder, error)
	ListRecent(ctx context.Context, limit int) ([]*entity.StoredOrder, error)
	ListByGuide(ctx context.Context, guideID uuid.UUID) ([]*entity.StoredOrder, error)
	ListCreatedBetween(ctx context.Context, from, to *time.Time) ([]*entity.StoredOrder, error)
}

type orderRepository struct {
	store  *Store
	logger *slog.Logger
}

func NewOrderRepository(store *Store, logger *slog.Logger) OrderRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &orderRepository{store: store, logger: logger}
}

// Save inserts o. A zero ID or CreatedAt is filled in.
func (r *orderRepository) Save(ctx context.Context, o *entity.StoredOrder) error {
	if !o.Status.Valid() {
		return common.NewAppError("INVALID_ARGUMENT", "unknown status "+string(o.Status), common.ErrInvalidInput)
	}
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	orderJSON, validationJSON, err := encodeResult(o.Order, o.Validation)
	if err != nil {
		return err
	}

	q, args := entsql.Dialect(r.store.dialect).
		Insert(tableOrders).
		Columns(orderColumns...).
		Values(
			o.ID.String(), nullUUID(o.GuideID), o.RawText, orderJSON, validationJSON,
			o.Order.CustomerName, o.Order.ContactNumber, o.Order.ExpectedAmount, o.Validation.TotalAmount,
			o.Order.Confidence, string(o.Status), o.CreatedAt.UnixNano(),
		).
		Query()
	if _, err := r.store.exec(ctx, q, args); err != nil {
		r.logger.Error("failed to save order", "order_id", o.ID, "error", err)
		return err
	}
	r.logger.Info("repo.order.saved", "order_id", o.ID, "status", o.Status)
	return nil
}

func (r *orderRepository) SaveResult(ctx context.Context, id uuid.UUID, order entity.ParsedOrder, v entity.Validation, status constants.OrderStatus) error {
	if !status.Valid() {
		return common.NewAppError("INVALID_ARGUMENT", "unknown status "+string(status), common.ErrInvalidInput)
	}
	orderJSON, validationJSON, err := encodeResult(order, v)
	if err != nil {
		return err
	}
	q, args := entsql.Dialect(r.store.dialect).
		Update(tableOrders).
		Set("order_json", orderJSON).
		Set("validation_json", validationJSON).
		Set("customer_name", order.CustomerName).
		Set("contact_number", order.ContactNumber).
		Set("expected_amount", order.ExpectedAmount).
		Set("total_amount", v.TotalAmount).
		Set("confidence", order.Confidence).
		Set("status", string(status)).
		Where(entsql.EQ("id", id.String())).
		Query()
	if err := r.updateOne(ctx, q, args, id); err != nil {
		return err
	}
	r.logger.Info("repo.order.result_saved", "order_id", id, "status", status, "total", v.TotalAmount)
	return nil
}

func (r *orderRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status constants.OrderStatus) error {
	if !status.Valid() {
		return common.NewAppError("INVALID_ARGUMENT", "unknown status "+string(status), common.ErrInvalidInput)
	}
	q, args := entsql.Dialect(r.store.dialect).
		Update(tableOrders).
		Set("status", string(status)).
		Where(entsql.EQ("id", id.String())).
		Query()
	if err := r.updateOne(ctx, q, args, id); err != nil {
		return err
	}
	r.logger.Debug("repo.order.status", "order_id", id, "status", status)
	return nil
}

func (r *orderRepository) updateOne(ctx context.Context, q string, args []any, id uuid.UUID) error {
	res, err := r.store.exec(ctx, q, args)
	if err != nil {
		r.logger.Error("failed to update order", "order_id", id, "error", err)
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%w: %v", common.ErrDatabase, err)
	}
	if n == 0 {
		return fmt.Errorf("order %s: %w", id, common.ErrNotFound)
	}
	return nil
}

func (r *orderRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.StoredOrder, error) {
	sel := r.selectOrders().Where(entsql.EQ("id", id.String()))
	list, err := r.list(ctx, sel)
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, fmt.Errorf("order %s: %w", id, common.ErrNotFound)
	}
	return list[0], nil
}

func (r *orderRepository) ListRecent(ctx context.Context, limit int) ([]*entity.StoredOrder, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	return r.list(ctx, r.selectOrders().OrderBy(entsql.Desc("created_at")).Limit(limit))
}

func (r *orderRepository) ListByGuide(ctx context.Context, guideID uuid.UUID) ([]*entity.StoredOrder, error) {
	sel := r.selectOrders().
		Where(entsql.EQ("guide_id", guideID.String())).
		OrderBy(entsql.Asc("created_at"))
	return r.list(ctx, sel)
}

// ListCreatedBetween returns orders oldest first. Both bounds are dates and
// inclusive; a nil bound is open.
func (r *orderRepository) ListCreatedBetween(ctx context.Context, from, to *time.Time) ([]*entity.StoredOrder, error) {
	sel := r.selectOrders()
	if from != nil {
		sel.Where(entsql.GTE("created_at", startOfDay(*from).UnixNano()))
	}
	if to != nil {
		sel.Where(entsql.LT("created_at", startOfDay(*to).AddDate(0, 0, 1).UnixNano()))
	}
	return r.list(ctx, sel.OrderBy(entsql.Asc("created_at")))
}

func startOfDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func (r *orderRepository) selectOrders() *entsql.Selector {
	return entsql.Dialect(r.store.dialect).
		Select(orderColumns...).
		From(entsql.Table(tableOrders))
}

func (r *orderRepository) list(ctx context.Context, sel *entsql.Selector) ([]*entity.StoredOrder, error) {
	q, args := sel.Query()
	out := make([]*entity.StoredOrder, 0)
	err := r.store.queryRows(ctx, q, args, func(rows *entsql.Rows) error {
		o, err := scanOrder(rows)
		if err != nil {
			return err
		}
		out = append(out, o)
		return nil
	})
	if err != nil {
		r.logger.Error("failed to list orders", "error", err)
		return nil, err
	}
	return out, nil
}

func scanOrder(rows *entsql.Rows) (*entity.StoredOrder, error) {
	var (
		id, rawText, orderJSON, validationJSON, status string
		guideID, customer, contact                     sql.NullString
		expected, total                                int
		confidence                                     float64
		created                                        int64
	)
	if err := rows.Scan(&id, &guideID, &rawText, &orderJSON, &validationJSON,
		&customer, &contact, &expected, &total, &confidence, &status, &created); err != nil {
		return nil, err
	}

	oid, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	o := &entity.StoredOrder{
		ID:        oid,
		RawText:   rawText,
		Status:    constants.OrderStatus(status),
		CreatedAt: time.Unix(0, created).UTC(),
	}
	if guideID.Valid {
		gid, err := uuid.Parse(guideID.String)
		if err != nil {
			return nil, err
		}
		o.GuideID = &gid
	}
	if err := json.Unmarshal([]byte(orderJSON), &o.Order); err != nil {
		return nil, fmt.Errorf("decode order: %w", err)
	}
	if err := json.Unmarshal([]byte(validationJSON), &o.Validation); err != nil {
		return nil, fmt.Errorf("decode validation: %w", err)
	}
	if o.Order.Items == nil {
		o.Order.Items = []entity.OrderItem{}
	}
	return o, nil
}

func encodeResult(o entity.ParsedOrder, v entity.Validation) (string, string, error) {
	ob, err := json.Marshal(o)
	if err != nil {
		return "", "", fmt.Errorf("encode order: %w", err)
	}
	vb, err := json.Marshal(v)
	if err != nil {
		return "", "", fmt.Errorf("encode validation: %w", err)
	}
	return string(ob), string(vb), nil
}

func nullUUID(id *uuid.UUID) any {
	if id == nil {
		return nil
	}
	return id.String()
}
