package catalog

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/pleasantpearl/pleasantpearl-backend/internal/media"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/db"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/db/models"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/enums"
	pkgerrors "github.com/pleasantpearl/pleasantpearl-backend/pkg/errors"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/logger"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/outbox"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/types"
)

// Service exposes the catalog operations. Writes run the media ingestion
// pipeline before touching the database; reads pass stored video references
// through the signed-URL resolver and persist refreshed ones.
type Service interface {
	CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error)
	UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error)
	GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error)
	ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error)
	DeleteProduct(ctx context.Context, productID uuid.UUID) error
	DecrementStock(ctx context.Context, productID uuid.UUID, color string, quantity int) (*ProductDTO, error)
}

type ingestor interface {
	Ingest(ctx context.Context, inputs []media.VariantInput) (types.VariantMediaList, error)
	Reingest(ctx context.Context, existing types.VariantMediaList, inputs []media.VariantInput) (types.VariantMediaList, error)
}

type resolver interface {
	ResolveVariants(ctx context.Context, variants types.VariantMediaList) (types.VariantMediaList, bool)
}

type cleaner interface {
	Cleanup(ctx context.Context, variants types.VariantMediaList) media.CleanupReport
}

type service struct {
	repo     *Repository
	dbClient *db.Client
	outbox   *outbox.Service
	ingestor ingestor
	resolver resolver
	cleaner  cleaner
	logg     *logger.Logger
}

// NewService constructs a catalog service instance.
func NewService(repo *Repository, dbClient *db.Client, outboxSvc *outbox.Service, ing ingestor, res resolver, cln cleaner, logg *logger.Logger) (Service, error) {
	if repo == nil {
		return nil, fmt.Errorf("catalog repository required")
	}
	if dbClient == nil {
		return nil, fmt.Errorf("db client required")
	}
	if outboxSvc == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if ing == nil || res == nil || cln == nil {
		return nil, fmt.Errorf("media pipeline required")
	}
	return &service{
		repo:     repo,
		dbClient: dbClient,
		outbox:   outboxSvc,
		ingestor: ing,
		resolver: res,
		cleaner:  cln,
		logg:     logg,
	}, nil
}

// CreateProduct ingests the submitted variant media and persists the new
// product with its records. Media goes up first; if persistence then fails
// the uploaded assets are cleaned up best effort.
func (s *service) CreateProduct(ctx context.Context, input CreateProductInput) (*ProductDTO, error) {
	if err := validateProductFields(input.Name, input.Category, input.Price); err != nil {
		return nil, err
	}
	if input.Stock < 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "product stock must not be negative")
	}

	variants, err := s.ingestor.Ingest(ctx, input.Variants)
	if err != nil {
		return nil, err
	}

	row := &models.Product{
		ID:          uuid.New(),
		Name:        strings.TrimSpace(input.Name),
		Description: input.Description,
		Category:    strings.TrimSpace(input.Category),
		Subcategory: normalizeSubcategory(input.Subcategory),
		Price:       input.Price,
		Stock:       input.Stock,
		Bestseller:  input.Bestseller,
		Size:        strings.TrimSpace(input.Size),
		Details:     types.StringList(input.Details),
		FAQs:        types.FAQList(input.FAQs),
		IsActive:    input.IsActive,
		Variants:    variants,
	}

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.Create(tx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist product")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventProductCreated,
			AggregateType: enums.OutboxAggregateProduct,
			AggregateID:   row.ID,
			Data:          toDTO(row),
			Version:       1,
		})
	})
	if err != nil {
		s.cleaner.Cleanup(context.WithoutCancel(ctx), variants)
		return nil, err
	}

	return toDTO(row), nil
}

// UpdateProduct applies field changes and, when variant payloads are
// submitted, re-runs ingestion against the stored records so unsubmitted
// media carries forward.
func (s *service) UpdateProduct(ctx context.Context, productID uuid.UUID, input UpdateProductInput) (*ProductDTO, error) {
	row, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}

	if input.Name != nil {
		if strings.TrimSpace(*input.Name) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product name must not be empty")
		}
		row.Name = strings.TrimSpace(*input.Name)
	}
	if input.Description != nil {
		row.Description = input.Description
	}
	if input.Category != nil {
		if strings.TrimSpace(*input.Category) == "" {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product category must not be empty")
		}
		row.Category = strings.TrimSpace(*input.Category)
	}
	if input.Subcategory != nil {
		row.Subcategory = normalizeSubcategory(*input.Subcategory)
	}
	if input.Price != nil {
		if input.Price.IsNegative() {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product price must not be negative")
		}
		row.Price = *input.Price
	}
	if input.Stock != nil {
		if *input.Stock < 0 {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "product stock must not be negative")
		}
		row.Stock = *input.Stock
	}
	if input.Bestseller != nil {
		row.Bestseller = *input.Bestseller
	}
	if input.Size != nil {
		row.Size = strings.TrimSpace(*input.Size)
	}
	if input.Details != nil {
		row.Details = types.StringList(input.Details)
	}
	if input.FAQs != nil {
		row.FAQs = types.FAQList(input.FAQs)
	}
	if input.IsActive != nil {
		row.IsActive = *input.IsActive
	}

	if len(input.Variants) > 0 {
		variants, err := s.ingestor.Reingest(ctx, row.Variants, input.Variants)
		if err != nil {
			return nil, err
		}
		row.Variants = variants
	}

	err = s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.Update(tx, row); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist product update")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventProductUpdated,
			AggregateType: enums.OutboxAggregateProduct,
			AggregateID:   row.ID,
			Data:          toDTO(row),
			Version:       1,
		})
	})
	if err != nil {
		return nil, err
	}

	return toDTO(row), nil
}

// GetProduct returns one product with every video reference resolved to a
// servable URL. Refreshed references are written back best effort; a
// write-back failure never fails the read.
func (s *service) GetProduct(ctx context.Context, productID uuid.UUID) (*ProductDTO, error) {
	row, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}

	resolved, changed := s.resolver.ResolveVariants(ctx, row.Variants)
	if changed {
		s.persistResolved(ctx, row.ID, resolved)
	}
	row.Variants = resolved

	return toDTO(row), nil
}

// ListProducts returns a page of active products with resolved media.
func (s *service) ListProducts(ctx context.Context, input ListProductsInput) (*ProductListResult, error) {
	rows, total, err := s.repo.List(ctx, input)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "list products")
	}

	result := &ProductListResult{
		Products: make([]ProductDTO, 0, len(rows)),
		Total:    total,
	}
	for i := range rows {
		row := &rows[i]
		resolved, changed := s.resolver.ResolveVariants(ctx, row.Variants)
		if changed {
			s.persistResolved(ctx, row.ID, resolved)
		}
		row.Variants = resolved
		result.Products = append(result.Products, *toDTO(row))
	}
	return result, nil
}

// DeleteProduct attempts cleanup of every durable asset before removing the
// record. Cleanup failures do not block the delete; keys left behind are
// handed to the sweep worker through the deletion event.
func (s *service) DeleteProduct(ctx context.Context, productID uuid.UUID) error {
	row, err := s.load(ctx, productID)
	if err != nil {
		return err
	}

	report := s.cleaner.Cleanup(ctx, row.Variants)
	if len(report.FailedKeys) > 0 {
		logCtx := s.logg.WithFields(ctx, map[string]any{
			"product_id":  productID.String(),
			"failed_keys": len(report.FailedKeys),
		})
		s.logg.Warn(logCtx, "cleanup left objects behind, queueing sweep")
	}

	return s.dbClient.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.Delete(tx, productID); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "delete product")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.OutboxEventProductDeleted,
			AggregateType: enums.OutboxAggregateProduct,
			AggregateID:   productID,
			Data: ProductDeletedPayload{
				ProductID:  productID.String(),
				ObjectKeys: report.FailedKeys,
			},
			Version: 1,
		})
	})
}

// DecrementStock reduces one variant's stock by quantity, clamping at zero.
func (s *service) DecrementStock(ctx context.Context, productID uuid.UUID, color string, quantity int) (*ProductDTO, error) {
	if quantity <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "quantity must be positive")
	}

	row, err := s.load(ctx, productID)
	if err != nil {
		return nil, err
	}

	want := types.NormalizeColor(color)
	found := false
	for i := range row.Variants {
		if types.NormalizeColor(row.Variants[i].Color) != want {
			continue
		}
		found = true
		row.Variants[i].Stock -= quantity
		if row.Variants[i].Stock < 0 {
			row.Variants[i].Stock = 0
		}
	}
	if !found {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("variant %q not found", want))
	}

	if err := s.repo.UpdateVariants(ctx, row.ID, row.Variants); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "persist stock change")
	}
	return toDTO(row), nil
}

func (s *service) load(ctx context.Context, productID uuid.UUID) (*models.Product, error) {
	row, err := s.repo.FindByID(ctx, productID)
	if err != nil {
		if IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "product not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "load product")
	}
	return row, nil
}

func (s *service) persistResolved(ctx context.Context, id uuid.UUID, variants types.VariantMediaList) {
	if err := s.repo.UpdateVariants(ctx, id, variants); err != nil {
		logCtx := s.logg.WithProductID(ctx, id.String())
		s.logg.Warn(logCtx, "persisting refreshed video refs failed")
	}
}

// normalizeSubcategory trims and lowercases the label so filters match
// regardless of submission casing.
func normalizeSubcategory(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}

func validateProductFields(name, category string, price decimal.Decimal) error {
	if strings.TrimSpace(name) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product name is required")
	}
	if strings.TrimSpace(category) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "product category is required")
	}
	if price.IsNegative() {
		return pkgerrors.New(pkgerrors.CodeValidation, "product price must not be negative")
	}
	return nil
}
