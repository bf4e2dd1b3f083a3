package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/angelmondragon/bazaar-backend/pkg/enums"
)

// Listing is one seller's priced, stocked instance of a product.
type Listing struct {
	ID                uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	SellerID          uuid.UUID         `gorm:"column:seller_id;type:uuid;not null;index"`
	ProductID         uuid.UUID         `gorm:"column:product_id;type:uuid;not null"`
	ProductName       string            `gorm:"column:product_name;not null"`
	Price             decimal.Decimal   `gorm:"column:price;type:numeric(12,2);not null"`
	Currency          enums.Currency    `gorm:"column:currency;type:text;not null;default:'TRY'"`
	StockQuantity     int               `gorm:"column:stock_quantity;not null;default:0"`
	LowStockThreshold int               `gorm:"column:low_stock_threshold;not null"`
	StockStatus       enums.StockStatus `gorm:"column:stock_status;type:text;not null;default:'out_of_stock'"`
	IsActive          bool              `gorm:"column:is_active;not null;default:true"`
	Version           int               `gorm:"column:version;not null;default:1"`
	CreatedAt         time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt         time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}

func (l *Listing) BeforeCreate(*gorm.DB) error {
	ensureID(&l.ID)
	if l.Version == 0 {
		l.Version = 1
	}
	l.StockStatus = enums.DeriveStockStatus(l.StockQuantity, l.LowStockThreshold)
	return nil
}
