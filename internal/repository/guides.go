package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	entsql "entgo.io/ent/dialect/sql"
	"github.com/google/uuid"

	"github.com/joseph-ayodele/groupbuy-orders/internal/common"
	"github.com/joseph-ayodele/groupbuy-orders/internal/entity"
)

var guideColumns = []string{"id", "seller_name", "guide_text", "profile_json", "products_count", "created_at"}

type GuideRepository interface {
	Save(ctx context.Context, text string, profile *entity.SellerProfile) (*entity.StoredGuide, error)
	Latest(ctx context.Context) (*entity.StoredGuide, error)
	GetByID(ctx context.Context, id uuid.UUID) (*entity.StoredGuide, error)
}

type guideRepository struct {
	store  *Store
	logger *slog.Logger
}

func NewGuideRepository(store *Store, logger *slog.Logger) GuideRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &guideRepository{store: store, logger: logger}
}

func (r *guideRepository) Save(ctx context.Context, text string, profile *entity.SellerProfile) (*entity.StoredGuide, error) {
	if profile == nil {
		return nil, common.NewAppError("INVALID_ARGUMENT", "profile is required", common.ErrInvalidInput)
	}
	profileJSON, err := json.Marshal(profile)
	if err != nil {
		return nil, fmt.Errorf("encode profile: %w", err)
	}

	g := &entity.StoredGuide{
		ID:            uuid.New(),
		SellerName:    profile.SellerName,
		GuideText:     text,
		Profile:       profile,
		ProductsCount: len(profile.Products),
		CreatedAt:     time.Now().UTC(),
	}
	q, args := entsql.Dialect(r.store.dialect).
		Insert(tableGuides).
		Columns(guideColumns...).
		Values(g.ID.String(), g.SellerName, g.GuideText, string(profileJSON), g.ProductsCount, g.CreatedAt.UnixNano()).
		Query()
	if _, err := r.store.exec(ctx, q, args); err != nil {
		r.logger.Error("failed to save guide", "seller", g.SellerName, "error", err)
		return nil, err
	}
	r.logger.Info("repo.guide.saved", "guide_id", g.ID, "seller", g.SellerName, "products", g.ProductsCount)
	return g, nil
}

func (r *guideRepository) Latest(ctx context.Context) (*entity.StoredGuide, error) {
	sel := entsql.Dialect(r.store.dialect).
		Select(guideColumns...).
		From(entsql.Table(tableGuides)).
		OrderBy(entsql.Desc("created_at")).
		Limit(1)
	return r.one(ctx, sel, "latest")
}

func (r *guideRepository) GetByID(ctx context.Context, id uuid.UUID) (*entity.StoredGuide, error) {
	sel := entsql.Dialect(r.store.dialect).
		Select(guideColumns...).
		From(entsql.Table(tableGuides)).
		Where(entsql.EQ("id", id.String()))
	return r.one(ctx, sel, id.String())
}

func (r *guideRepository) one(ctx context.Context, sel *entsql.Selector, what string) (*entity.StoredGuide, error) {
	q, args := sel.Query()
	var out *entity.StoredGuide
	err := r.store.queryRows(ctx, q, args, func(rows *entsql.Rows) error {
		g, err := scanGuide(rows)
		out = g
		return err
	})
	if err != nil {
		r.logger.Error("failed to load guide", "guide", what, "error", err)
		return nil, err
	}
	if out == nil {
		return nil, fmt.Errorf("guide %s: %w", what, common.ErrNotFound)
	}
	return out, nil
}

func scanGuide(rows *entsql.Rows) (*entity.StoredGuide, error) {
	var (
		id, seller, text, profileJSON string
		count                         int
		created                       int64
	)
	if err := rows.Scan(&id, &seller, &text, &profileJSON, &count, &created); err != nil {
		return nil, err
	}
	gid, err := uuid.Parse(id)
	if err != nil {
		return nil, err
	}
	profile := entity.NewSellerProfile()
	if err := json.Unmarshal([]byte(profileJSON), profile); err != nil {
		return nil, fmt.Errorf("decode profile: %w", err)
	}
	return &entity.StoredGuide{
		ID:            gid,
		SellerName:    seller,
		GuideText:     text,
		Profile:       profile,
		ProductsCount: count,
		CreatedAt:     time.Unix(0, created).UTC(),
	}, nil
}
