package catalog

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pleasantpearl/pleasantpearl-backend/internal/media"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/db/models"
	"github.com/pleasantpearl/pleasantpearl-backend/pkg/types"
)

// CreateProductInput holds the validated payload to create a product.
type CreateProductInput struct {
	Name        string
	Description *string
	Category    string
	Subcategory string
	Price       decimal.Decimal
	Stock       int
	Bestseller  bool
	Size        string
	Details     []string
	FAQs        []types.FAQ
	IsActive    bool
	Variants    []media.VariantInput
}

// UpdateProductInput holds optional mutation values for a product. A nil
// field leaves the stored value untouched; an empty Variants slice leaves
// the stored variant records untouched.
type UpdateProductInput struct {
	Name        *string
	Description *string
	Category    *string
	Subcategory *string
	Price       *decimal.Decimal
	Stock       *int
	Bestseller  *bool
	Size        *string
	Details     []string
	FAQs        []types.FAQ
	IsActive    *bool
	Variants    []media.VariantInput
}

// ListProductsInput filters and pages the product listing.
type ListProductsInput struct {
	Category string
	Limit    int
	Offset   int
}

// ProductDTO is the API-facing product shape with resolved media.
type ProductDTO struct {
	ID          uuid.UUID              `json:"id"`
	Name        string                 `json:"name"`
	Description *string                `json:"description,omitempty"`
	Category    string                 `json:"category"`
	Subcategory string                 `json:"subcategory,omitempty"`
	Price       decimal.Decimal        `json:"price"`
	Bestseller  bool                   `json:"bestseller"`
	Size        string                 `json:"size,omitempty"`
	Details     types.StringList       `json:"details"`
	FAQs        types.FAQList          `json:"faqs"`
	IsActive    bool                   `json:"isActive"`
	TotalStock  int                    `json:"totalStock"`
	Variants    types.VariantMediaList `json:"variants"`
	CreatedAt   time.Time              `json:"createdAt"`
	UpdatedAt   time.Time              `json:"updatedAt"`
}

// ProductListResult wraps a page of products.
type ProductListResult struct {
	Products []ProductDTO `json:"products"`
	Total    int64        `json:"total"`
}

// ProductDeletedPayload is the outbox event body for product deletion. Keys
// that cleanup could not delete ride along so the sweep worker can retry.
type ProductDeletedPayload struct {
	ProductID  string   `json:"productId"`
	ObjectKeys []string `json:"objectKeys"`
}

func toDTO(row *models.Product) *ProductDTO {
	return &ProductDTO{
		ID:          row.ID,
		Name:        row.Name,
		Description: row.Description,
		Category:    row.Category,
		Subcategory: row.Subcategory,
		Price:       row.Price,
		Bestseller:  row.Bestseller,
		Size:        row.Size,
		Details:     row.Details,
		FAQs:        row.FAQs,
		IsActive:    row.IsActive,
		TotalStock:  row.TotalStock(),
		Variants:    row.Variants,
		CreatedAt:   row.CreatedAt,
		UpdatedAt:   row.UpdatedAt,
	}
}
