package repository

import (
	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type ProductSort string

const (
	ProductSortPrice     ProductSort = "price"
	ProductSortCreatedAt ProductSort = "created_at"
)

type ProductFilter struct {
	SellerID       *uint
	CategoryID     *uint
	SubCategoryID  *uint
	Search         string
	ClearanceOnly  bool
	HotDealOnly    bool
	DiscountedOnly bool // initial price above the current price
	IncludeHidden  bool // include products that are not approved yet
	SortBy         ProductSort
	SortAscending  bool
	Limit          int
	Offset         int
}

type ProductRepository interface {
	Create(product *model.Product) error
	BulkCreate(products []model.Product, batchSize int) error
	FindWithFilter(filter ProductFilter) ([]model.Product, int64, error)
	FindByID(id uint) (*model.Product, error)
	FindByIDs(ids []uint) ([]model.Product, error)
	FindBestSellers(limit int) ([]model.Product, error)
	UpdatePrice(id uint, price decimal.Decimal) error
	SetApproved(id uint, approved bool) error
}

type productRepository struct {
	db *gorm.DB
}

func NewProductRepository(db *gorm.DB) ProductRepository {
	return &productRepository{db: db}
}

func (r *productRepository) Create(product *model.Product) error {
	logger.Debug("Creating product in database", map[string]interface{}{
		"name":      product.Name,
		"seller_id": product.SellerID,
	})

	if err := r.db.Create(product).Error; err != nil {
		logger.Error("Failed to create product in database", err, map[string]interface{}{
			"name":      product.Name,
			"seller_id": product.SellerID,
		})
		return err
	}

	logger.Debug("Product created in database", map[string]interface{}{
		"product_id": product.ID,
		"name":       product.Name,
		"seller_id":  product.SellerID,
	})
	return nil
}

func (r *productRepository) BulkCreate(products []model.Product, batchSize int) error {
	logger.Debug("Bulk creating products in database", map[string]interface{}{
		"count":      len(products),
		"batch_size": batchSize,
	})

	if err := r.db.CreateInBatches(products, batchSize).Error; err != nil {
		logger.Error("Failed to bulk create products in database", err, map[string]interface{}{
			"count": len(products),
		})
		return err
	}

	logger.Debug("Products bulk created in database", map[string]interface{}{
		"count": len(products),
	})
	return nil
}

func (r *productRepository) FindWithFilter(filter ProductFilter) ([]model.Product, int64, error) {
	logger.Debug("Finding products with filter", map[string]interface{}{
		"seller_id":      filter.SellerID,
		"category_id":    filter.CategoryID,
		"search":         filter.Search,
		"clearance_only": filter.ClearanceOnly,
		"sort_by":        filter.SortBy,
		"ascending":      filter.SortAscending,
		"limit":          filter.Limit,
		"offset":         filter.Offset,
	})

	query := r.db.Model(&model.Product{})

	if !filter.IncludeHidden {
		query = query.Where("products.approved = ?", true)
	}
	if filter.SellerID != nil {
		query = query.Where("products.seller_id = ?", *filter.SellerID)
	}
	if filter.CategoryID != nil {
		query = query.Where("products.category_id = ?", *filter.CategoryID)
	}
	if filter.SubCategoryID != nil {
		query = query.Where("products.sub_category_id = ?", *filter.SubCategoryID)
	}
	if filter.ClearanceOnly {
		query = query.Where("products.is_clearance = ?", true)
	}
	if filter.HotDealOnly {
		query = query.Where("products.is_hot_deal = ?", true)
	}
	if filter.DiscountedOnly {
		query = query.Where("products.initial_price IS NOT NULL AND products.initial_price > products.base_price")
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		query = query.Where("products.name LIKE ? OR products.description LIKE ?", like, like)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		logger.Error("Failed to count products with filter", err)
		return nil, 0, err
	}

	order := "products.created_at"
	if filter.SortBy == ProductSortPrice {
		order = "products.base_price"
	}
	if filter.SortAscending {
		order += " ASC"
	} else {
		order += " DESC"
	}
	query = query.Order(order)

	if filter.Limit > 0 {
		query = query.Limit(filter.Limit)
	}
	if filter.Offset > 0 {
		query = query.Offset(filter.Offset)
	}

	var products []model.Product
	if err := query.Find(&products).Error; err != nil {
		logger.Error("Failed to find products with filter", err)
		return nil, 0, err
	}

	logger.Debug("Products found with filter", map[string]interface{}{
		"count": len(products),
		"total": total,
	})
	return products, total, nil
}

func (r *productRepository) FindByID(id uint) (*model.Product, error) {
	logger.Debug("Finding product by ID in database", map[string]interface{}{
		"product_id": id,
	})

	var product model.Product
	err := r.db.
		Preload("Seller").
		Preload("Category").
		Preload("SubCategory").
		First(&product, id).Error
	if err != nil {
		logger.Error("Failed to find product by ID in database", err, map[string]interface{}{
			"product_id": id,
		})
		return nil, err
	}

	logger.Debug("Product found by ID in database", map[string]interface{}{
		"product_id": product.ID,
		"approved":   product.Approved,
	})
	return &product, nil
}

func (r *productRepository) FindByIDs(ids []uint) ([]model.Product, error) {
	logger.Debug("Finding products by IDs in database", map[string]interface{}{
		"count": len(ids),
	})

	var products []model.Product
	if len(ids) == 0 {
		return products, nil
	}
	if err := r.db.Where("id IN ?", ids).Find(&products).Error; err != nil {
		logger.Error("Failed to find products by IDs in database", err, map[string]interface{}{
			"count": len(ids),
		})
		return nil, err
	}

	logger.Debug("Products found by IDs in database", map[string]interface{}{
		"requested": len(ids),
		"found":     len(products),
	})
	return products, nil
}

// FindBestSellers ranks approved products by units sold in paid orders,
// then by review count, then newest first.
func (r *productRepository) FindBestSellers(limit int) ([]model.Product, error) {
	sold := r.db.Table("order_items").
		Select("order_items.product_id, SUM(order_items.quantity) AS units").
		Joins("JOIN orders ON orders.id = order_items.order_id").
		Where("orders.status IN ?", []model.OrderStatus{
			model.OrderStatusPaid,
			model.OrderStatusShipped,
			model.OrderStatusDelivered,
		}).
		Group("order_items.product_id")

	var products []model.Product
	err := r.db.Model(&model.Product{}).
		Select("products.*").
		Joins("LEFT JOIN (?) AS sold ON sold.product_id = products.id", sold).
		Where("products.approved = ?", true).
		Order("COALESCE(sold.units, 0) DESC").
		Order("products.review_count DESC").
		Order("products.created_at DESC").
		Order("products.id DESC").
		Limit(limit).
		Find(&products).Error
	if err != nil {
		logger.Error("Failed to find best sellers in database", err, map[string]interface{}{
			"limit": limit,
		})
		return nil, err
	}

	logger.Debug("Best sellers found in database", map[string]interface{}{
		"count": len(products),
	})
	return products, nil
}

func (r *productRepository) UpdatePrice(id uint, price decimal.Decimal) error {
	logger.Debug("Updating product price in database", map[string]interface{}{
		"product_id": id,
		"price":      price.String(),
	})

	result := r.db.Model(&model.Product{}).Where("id = ?", id).Update("base_price", price)
	if result.Error != nil {
		logger.Error("Failed to update product price in database", result.Error, map[string]interface{}{
			"product_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}

	logger.Debug("Product price updated in database", map[string]interface{}{
		"product_id": id,
	})
	return nil
}

func (r *productRepository) SetApproved(id uint, approved bool) error {
	logger.Debug("Updating product approval in database", map[string]interface{}{
		"product_id": id,
		"approved":   approved,
	})

	result := r.db.Model(&model.Product{}).Where("id = ?", id).Update("approved", approved)
	if result.Error != nil {
		logger.Error("Failed to update product approval in database", result.Error, map[string]interface{}{
			"product_id": id,
		})
		return result.Error
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}
