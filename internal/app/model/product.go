package model

import (
	"time"

	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Product struct {
	ID            uint             `gorm:"primarykey" json:"id"`
	SellerID      *uint            `gorm:"index" json:"seller_id,omitempty"` // nil for marketplace-owned stock
	CategoryID    *uint            `gorm:"index" json:"category_id,omitempty"`
	SubCategoryID *uint            `gorm:"index" json:"subcategory_id,omitempty"`
	Name          string           `gorm:"not null" json:"name"`
	Description   string           `gorm:"type:text" json:"description"`
	BasePrice     decimal.Decimal  `gorm:"type:decimal(12,2);not null" json:"base_price"`
	InitialPrice  *decimal.Decimal `gorm:"type:decimal(12,2)" json:"initial_price,omitempty"` // shown struck through on clearance
	MinOrder      int              `gorm:"default:1" json:"min_order"`
	StockQuantity int              `gorm:"default:0" json:"stock_quantity"`
	ColorOptions  pq.StringArray   `gorm:"type:text[]" json:"color_options"`
	ImageURL      string           `json:"image_url"`
	Approved      bool             `gorm:"default:false;index" json:"approved"`
	IsClearance   bool             `gorm:"default:false" json:"is_clearance"`
	IsHotDeal     bool             `gorm:"default:false" json:"is_hot_deal"`
	AverageRating float64          `gorm:"type:decimal(3,2);default:0" json:"average_rating"` // kept in step with reviews
	ReviewCount   int              `gorm:"default:0" json:"review_count"`
	CreatedAt     time.Time        `json:"created_at"`
	UpdatedAt     time.Time        `json:"updated_at"`
	DeletedAt     gorm.DeletedAt   `gorm:"index" json:"-"`

	Seller      *Seller      `gorm:"foreignKey:SellerID" json:"seller,omitempty"`
	Category    *Category    `gorm:"foreignKey:CategoryID" json:"category,omitempty"`
	SubCategory *SubCategory `gorm:"foreignKey:SubCategoryID" json:"subcategory,omitempty"`
}

func (Product) TableName() string {
	return "products"
}

// Discounted reports whether the product sells below its initial price
func (p *Product) Discounted() bool {
	return p.InitialPrice != nil && p.InitialPrice.GreaterThan(p.BasePrice)
}

// Purchasable reports whether the product may be put into a cart
func (p *Product) Purchasable() bool {
	return p.Approved && p.DeletedAt.Time.IsZero()
}
