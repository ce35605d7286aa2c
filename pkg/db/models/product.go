package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/pleasantpearl/pleasantpearl-backend/pkg/types"
)

// Product represents a catalog listing with its per-color variant media.
type Product struct {
	ID          uuid.UUID              `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	Name        string                 `gorm:"column:name;not null"`
	Description *string                `gorm:"column:description"`
	Category    string                 `gorm:"column:category;not null"`
	Subcategory string                 `gorm:"column:subcategory"`
	Price       decimal.Decimal        `gorm:"column:price;type:numeric(12,2);not null"`
	Stock       int                    `gorm:"column:stock;not null;default:0"`
	Bestseller  bool                   `gorm:"column:bestseller;not null;default:false"`
	Size        string                 `gorm:"column:size"`
	Details     types.StringList       `gorm:"column:details;type:jsonb;not null;default:'[]'"`
	FAQs        types.FAQList          `gorm:"column:faqs;type:jsonb;not null;default:'[]'"`
	IsActive    bool                   `gorm:"column:is_active;not null;default:true"`
	Variants    types.VariantMediaList `gorm:"column:variants;type:jsonb;not null;default:'[]'"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}

// TotalStock sums the remaining stock across every variant. Items without
// variant records fall back to the item-level stock.
func (p Product) TotalStock() int {
	if len(p.Variants) == 0 {
		return p.Stock
	}
	total := 0
	for _, v := range p.Variants {
		total += v.Stock
	}
	return total
}
