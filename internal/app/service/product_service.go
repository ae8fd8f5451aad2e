package service

import (
	"errors"
	"strconv"
	"sync"
	"time"

	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/app/repository"
	"github.com/ikkim/marketplace-backend/pkg/logger"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
	"gorm.io/gorm"
)

var (
	ErrProductNotFound     = errors.New("product not found")
	ErrProductUnavailable  = errors.New("product is not available")
	ErrInsufficientStock   = errors.New("insufficient stock")
	ErrInvalidQuantity     = errors.New("quantity must be at least 1")
	ErrInvalidPrice        = errors.New("price must be greater than zero")
	ErrProductAccessDenied = errors.New("product access denied")
	ErrDealNotFound        = errors.New("deal not found")
)

const (
	bestSellersLimit = 100
	bestSellersTTL   = 10 * time.Minute
)

// Deal is a named storefront listing of discounted products
type Deal struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

var deals = map[string]struct {
	Deal
	apply func(*repository.ProductFilter)
}{
	"today": {
		Deal{Slug: "today", Name: "Today's Deals"},
		func(f *repository.ProductFilter) { f.DiscountedOnly = true },
	},
	"clearance": {
		Deal{Slug: "clearance", Name: "Clearance Deals"},
		func(f *repository.ProductFilter) { f.ClearanceOnly = true },
	},
	"hot": {
		Deal{Slug: "hot", Name: "Hot Discounts"},
		func(f *repository.ProductFilter) { f.HotDealOnly = true },
	},
}

type ProductSort string

const (
	ProductSortPrice     ProductSort = "price"
	ProductSortCreatedAt ProductSort = "created_at"
)

type ProductListOptions struct {
	SellerID      *uint
	CategoryID    *uint
	SubCategoryID *uint
	Search        string
	ClearanceOnly bool
	Sort          ProductSort
	SortAscending bool
	Limit         int
	Offset        int
}

type CreateProductInput struct {
	Name          string
	Description   string
	BasePrice     decimal.Decimal
	InitialPrice  *decimal.Decimal
	MinOrder      int
	StockQuantity int
	ColorOptions  []string
	ImageURL      string
	IsClearance   bool
	IsHotDeal     bool
	CategoryID    *uint
	SubCategoryID *uint
}

// ProductCatalog is the read side of the catalog that carts depend on
type ProductCatalog interface {
	GetAvailableProduct(id uint) (*model.Product, error)
}

type ProductService interface {
	ProductCatalog
	ListProducts(opts ProductListOptions) ([]model.Product, int64, error)
	GetProductByID(id uint) (*model.Product, error)
	CreateProduct(seller model.SellerPrincipal, input CreateProductInput) (*model.Product, error)
	UpdatePrice(seller model.SellerPrincipal, productID uint, price decimal.Decimal) (*model.Product, error)
	SetApproval(productID uint, approved bool) error
	BestSellers(limit int) ([]model.Product, error)
	GetDeal(slug string, opts ProductListOptions) (Deal, []model.Product, int64, error)
}

type productService struct {
	productRepo  repository.ProductRepository
	categoryRepo repository.CategoryRepository
	lookups      singleflight.Group

	mu                 sync.Mutex
	bestSellers        []model.Product
	bestSellersExpires time.Time
}

func NewProductService(productRepo repository.ProductRepository, categoryRepo repository.CategoryRepository) ProductService {
	return &productService{productRepo: productRepo, categoryRepo: categoryRepo}
}

func (s *productService) ListProducts(opts ProductListOptions) ([]model.Product, int64, error) {
	logger.Debug("Listing products", map[string]interface{}{
		"seller_id": opts.SellerID,
		"search":    opts.Search,
		"sort":      opts.Sort,
		"limit":     opts.Limit,
		"offset":    opts.Offset,
	})

	products, total, err := s.productRepo.FindWithFilter(productFilter(opts))
	if err != nil {
		logger.Error("Failed to list products", err)
		return nil, 0, err
	}

	logger.Info("Products listed successfully", map[string]interface{}{
		"count": len(products),
		"total": total,
	})
	return products, total, nil
}

func productFilter(opts ProductListOptions) repository.ProductFilter {
	filter := repository.ProductFilter{
		SellerID:      opts.SellerID,
		CategoryID:    opts.CategoryID,
		SubCategoryID: opts.SubCategoryID,
		Search:        opts.Search,
		ClearanceOnly: opts.ClearanceOnly,
		SortAscending: opts.SortAscending,
		Limit:         opts.Limit,
		Offset:        opts.Offset,
	}

	switch opts.Sort {
	case ProductSortPrice:
		filter.SortBy = repository.ProductSortPrice
	default:
		filter.SortBy = repository.ProductSortCreatedAt
	}
	return filter
}

func (s *productService) GetProductByID(id uint) (*model.Product, error) {
	product, err := s.productRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Product not found", map[string]interface{}{
				"product_id": id,
			})
			return nil, ErrProductNotFound
		}
		logger.Error("Failed to fetch product", err, map[string]interface{}{
			"product_id": id,
		})
		return nil, err
	}
	return product, nil
}

// GetAvailableProduct returns a product that may be put into a cart.
// Concurrent lookups of the same product share one query.
func (s *productService) GetAvailableProduct(id uint) (*model.Product, error) {
	v, err, shared := s.lookups.Do(strconv.FormatUint(uint64(id), 10), func() (interface{}, error) {
		return s.GetProductByID(id)
	})
	if err != nil {
		return nil, err
	}

	product := *v.(*model.Product)
	if shared {
		logger.Debug("Product lookup shared", map[string]interface{}{
			"product_id": id,
		})
	}

	if !product.Purchasable() {
		logger.Warn("Product is not available for purchase", map[string]interface{}{
			"product_id": id,
			"approved":   product.Approved,
		})
		return nil, ErrProductUnavailable
	}
	if product.Seller != nil && !product.Seller.Approved {
		logger.Warn("Product seller is not approved", map[string]interface{}{
			"product_id": id,
			"seller_id":  product.Seller.ID,
		})
		return nil, ErrProductUnavailable
	}
	return &product, nil
}

func (s *productService) CreateProduct(seller model.SellerPrincipal, input CreateProductInput) (*model.Product, error) {
	logger.Info("Creating product", map[string]interface{}{
		"seller_id": seller.SellerID,
		"name":      input.Name,
	})

	if !seller.Approved || seller.SellerID == 0 {
		logger.Warn("Unapproved seller tried to create a product", map[string]interface{}{
			"user_id":   seller.UserID,
			"seller_id": seller.SellerID,
		})
		return nil, ErrSellerNotApproved
	}
	if !input.BasePrice.IsPositive() {
		return nil, ErrInvalidPrice
	}

	if err := s.resolvePlacement(&input); err != nil {
		logger.Warn("Product placed in an unknown category", map[string]interface{}{
			"seller_id":      seller.SellerID,
			"category_id":    input.CategoryID,
			"subcategory_id": input.SubCategoryID,
			"error":          err.Error(),
		})
		return nil, err
	}

	minOrder := input.MinOrder
	if minOrder < 1 {
		minOrder = 1
	}

	sellerID := seller.SellerID
	product := &model.Product{
		SellerID:      &sellerID,
		Name:          input.Name,
		Description:   input.Description,
		BasePrice:     input.BasePrice,
		InitialPrice:  input.InitialPrice,
		MinOrder:      minOrder,
		StockQuantity: input.StockQuantity,
		ColorOptions:  input.ColorOptions,
		ImageURL:      input.ImageURL,
		IsClearance:   input.IsClearance,
		IsHotDeal:     input.IsHotDeal,
		CategoryID:    input.CategoryID,
		SubCategoryID: input.SubCategoryID,
		Approved:      true,
	}

	if err := s.productRepo.Create(product); err != nil {
		logger.Error("Failed to create product", err, map[string]interface{}{
			"seller_id": seller.SellerID,
		})
		return nil, err
	}

	logger.Info("Product created successfully", map[string]interface{}{
		"product_id": product.ID,
		"seller_id":  seller.SellerID,
	})
	return product, nil
}

// UpdatePrice changes the current base price. Cart lines and orders keep
// the price they captured.
func (s *productService) UpdatePrice(seller model.SellerPrincipal, productID uint, price decimal.Decimal) (*model.Product, error) {
	if !price.IsPositive() {
		return nil, ErrInvalidPrice
	}

	product, err := s.GetProductByID(productID)
	if err != nil {
		return nil, err
	}

	if product.SellerID == nil || *product.SellerID != seller.SellerID {
		logger.Warn("Seller tried to reprice a product it does not own", map[string]interface{}{
			"product_id": productID,
			"seller_id":  seller.SellerID,
		})
		return nil, ErrProductAccessDenied
	}

	if err := s.productRepo.UpdatePrice(productID, price); err != nil {
		logger.Error("Failed to update product price", err, map[string]interface{}{
			"product_id": productID,
		})
		return nil, err
	}

	product.BasePrice = price
	logger.Info("Product price updated", map[string]interface{}{
		"product_id": productID,
		"price":      price.String(),
	})
	return product, nil
}

func (s *productService) SetApproval(productID uint, approved bool) error {
	if err := s.productRepo.SetApproved(productID, approved); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrProductNotFound
		}
		return err
	}

	logger.Info("Product approval changed", map[string]interface{}{
		"product_id": productID,
		"approved":   approved,
	})
	return nil
}

// resolvePlacement checks the category and subcategory ids and fills the
// category from the subcategory when only the latter is given.
func (s *productService) resolvePlacement(input *CreateProductInput) error {
	if input.SubCategoryID != nil {
		sub, err := s.categoryRepo.FindSubCategoryByID(*input.SubCategoryID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrSubCategoryNotFound
			}
			return err
		}
		if input.CategoryID != nil && *input.CategoryID != sub.CategoryID {
			return ErrSubCategoryMismatch
		}
		categoryID := sub.CategoryID
		input.CategoryID = &categoryID
		return nil
	}

	if input.CategoryID != nil {
		if _, err := s.categoryRepo.FindByID(*input.CategoryID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrCategoryNotFound
			}
			return err
		}
	}
	return nil
}

// BestSellers returns the top selling products. The full ranking is cached
// for ten minutes and concurrent reloads share one query.
func (s *productService) BestSellers(limit int) ([]model.Product, error) {
	if limit < 1 || limit > bestSellersLimit {
		limit = bestSellersLimit
	}

	s.mu.Lock()
	if time.Now().Before(s.bestSellersExpires) {
		ranked := s.bestSellers
		s.mu.Unlock()
		return firstProducts(ranked, limit), nil
	}
	s.mu.Unlock()

	v, err, _ := s.lookups.Do("best-sellers", func() (interface{}, error) {
		ranked, err := s.productRepo.FindBestSellers(bestSellersLimit)
		if err != nil {
			return nil, err
		}
		s.mu.Lock()
		s.bestSellers = ranked
		s.bestSellersExpires = time.Now().Add(bestSellersTTL)
		s.mu.Unlock()

		logger.Info("Best sellers refreshed", map[string]interface{}{
			"count": len(ranked),
		})
		return ranked, nil
	})
	if err != nil {
		logger.Error("Failed to rank best sellers", err)
		return nil, err
	}
	return firstProducts(v.([]model.Product), limit), nil
}

func firstProducts(products []model.Product, n int) []model.Product {
	if len(products) > n {
		products = products[:n]
	}
	out := make([]model.Product, len(products))
	copy(out, products)
	return out
}

// GetDeal lists the products of the deal named by slug: today (sold below
// the initial price), clearance or hot.
func (s *productService) GetDeal(slug string, opts ProductListOptions) (Deal, []model.Product, int64, error) {
	deal, ok := deals[slug]
	if !ok {
		logger.Warn("Unknown deal requested", map[string]interface{}{
			"slug": slug,
		})
		return Deal{}, nil, 0, ErrDealNotFound
	}

	filter := productFilter(opts)
	deal.apply(&filter)

	products, total, err := s.productRepo.FindWithFilter(filter)
	if err != nil {
		logger.Error("Failed to list deal products", err, map[string]interface{}{
			"slug": slug,
		})
		return Deal{}, nil, 0, err
	}
	return deal.Deal, products, total, nil
}
