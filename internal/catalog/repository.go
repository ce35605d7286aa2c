package catalog

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/pleasantpearl/pleasantpearl-backend/pkg/db/models"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/types"
)

type Repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Create(tx *gorm.DB, product *models.Product) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Create(product).Error
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.Product, error) {
	var row models.Product
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if err != nil {
		return nil, err
	}
	return &row, nil
}

func (r *Repository) List(ctx context.Context, input ListProductsInput) ([]models.Product, int64, error) {
	query := r.db.WithContext(ctx).Model(&models.Product{}).Where("is_active = ?", true)
	if input.Category != "" {
		query = query.Where("category = ?", input.Category)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	limit := input.Limit
	if limit <= 0 || limit > 100 {
		limit = 50
	}

	var rows []models.Product
	err := query.Order("created_at DESC").
		Limit(limit).
		Offset(input.Offset).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *Repository) Update(tx *gorm.DB, product *models.Product) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Save(product).Error
}

// UpdateVariants writes back only the variant column, used by read paths
// persisting refreshed signed URLs.
func (r *Repository) UpdateVariants(ctx context.Context, id uuid.UUID, variants types.VariantMediaList) error {
	return r.db.WithContext(ctx).Model(&models.Product{}).
		Where("id = ?", id).
		Update("variants", variants).Error
}

func (r *Repository) Delete(tx *gorm.DB, id uuid.UUID) error {
	if tx == nil {
		return errors.New("transaction required")
	}
	return tx.Where("id = ?", id).Delete(&models.Product{}).Error
}

// IsNotFound reports whether err is the record-missing error.
func IsNotFound(err error) bool {
	return errors.Is(err, gorm.ErrRecordNotFound)
}
