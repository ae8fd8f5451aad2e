package controller

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/app/service"
	apperrors "github.com/ikkim/marketplace-backend/internal/errors"
	"github.com/ikkim/marketplace-backend/internal/middleware"
	"github.com/shopspring/decimal"
)

const (
	defaultProductPageSize = 20
	maxProductPageSize     = 100
)

type ProductController struct {
	productService service.ProductService
}

func NewProductController(productService service.ProductService) *ProductController {
	return &ProductController{
		productService: productService,
	}
}

type CreateProductRequest struct {
	Name          string           `json:"name" binding:"required"`
	Description   string           `json:"description"`
	BasePrice     decimal.Decimal  `json:"base_price" binding:"required"`
	InitialPrice  *decimal.Decimal `json:"initial_price"`
	MinOrder      int              `json:"min_order" binding:"gte=0"`
	StockQuantity int              `json:"stock_quantity" binding:"gte=0"`
	ColorOptions  []string         `json:"color_options"`
	ImageURL      string           `json:"image_url"`
	IsClearance   bool             `json:"is_clearance"`
	IsHotDeal     bool             `json:"is_hot_deal"`
	CategoryID    *uint            `json:"category_id"`
	SubCategoryID *uint            `json:"subcategory_id"`
}

type UpdatePriceRequest struct {
	Price decimal.Decimal `json:"price" binding:"required"`
}

type SetApprovalRequest struct {
	Approved bool `json:"approved"`
}

// GetAllProducts lists approved products
// GET /api/v1/products?search=&seller_id=&clearance=&sort=price|created_at&order=asc|desc&page=&page_size=
func (ctrl *ProductController) GetAllProducts(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	page, pageSize := pageParams(c, defaultProductPageSize, maxProductPageSize)
	opts := listOptions(c, page, pageSize)
	if raw := c.Query("seller_id"); raw != "" {
		sellerID, err := strconv.ParseUint(raw, 10, 32)
		if err != nil {
			apperrors.BadRequest(c, apperrors.ValidationInvalidID, "Invalid seller ID")
			return
		}
		id := uint(sellerID)
		opts.SellerID = &id
	}

	products, total, err := ctrl.productService.ListProducts(opts)
	if err != nil {
		log.Error("Failed to fetch products", err)
		apperrors.ParseAndRespond(c, http.StatusInternalServerError, err, "list products")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products":  products,
		"count":     len(products),
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetBestSellers ranks products by units sold in paid orders
// GET /api/v1/products/best-sellers?limit=
func (ctrl *ProductController) GetBestSellers(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", strconv.Itoa(defaultProductPageSize)))

	products, err := ctrl.productService.BestSellers(limit)
	if err != nil {
		respondError(c, err, 0, "best sellers")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"products": products,
		"count":    len(products),
	})
}

// GetDeal lists the products of a deal
// GET /api/v1/deals/:slug?sort=&order=&page=&page_size=
func (ctrl *ProductController) GetDeal(c *gin.Context) {
	page, pageSize := pageParams(c, defaultProductPageSize, maxProductPageSize)

	deal, products, total, err := ctrl.productService.GetDeal(c.Param("slug"), listOptions(c, page, pageSize))
	if err != nil {
		respondError(c, err, 0, "get deal")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"deal":      deal,
		"products":  products,
		"count":     len(products),
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GetProductByID returns a product by ID
// GET /api/v1/products/:id
func (ctrl *ProductController) GetProductByID(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	product, err := ctrl.productService.GetProductByID(id)
	if err != nil {
		respondError(c, err, 0, "get product")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"product": product,
	})
}

// CreateProduct lists a new product for the calling seller
// POST /api/v1/products
func (ctrl *ProductController) CreateProduct(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	seller, ok := sellerPrincipal(c)
	if !ok {
		return
	}

	var req CreateProductRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid product creation request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}

	product, err := ctrl.productService.CreateProduct(seller, service.CreateProductInput{
		Name:          req.Name,
		Description:   req.Description,
		BasePrice:     req.BasePrice,
		InitialPrice:  req.InitialPrice,
		MinOrder:      req.MinOrder,
		StockQuantity: req.StockQuantity,
		ColorOptions:  req.ColorOptions,
		ImageURL:      req.ImageURL,
		IsClearance:   req.IsClearance,
		IsHotDeal:     req.IsHotDeal,
		CategoryID:    req.CategoryID,
		SubCategoryID: req.SubCategoryID,
	})
	if err != nil {
		respondError(c, err, 0, "create product")
		return
	}

	log.Info("Product created successfully", map[string]interface{}{
		"product_id": product.ID,
		"seller_id":  seller.SellerID,
	})

	c.JSON(http.StatusCreated, gin.H{
		"message": "Product created successfully",
		"product": product,
	})
}

// UpdatePrice changes the price of one of the seller's products
// PUT /api/v1/products/:id/price
func (ctrl *ProductController) UpdatePrice(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	seller, ok := sellerPrincipal(c)
	if !ok {
		return
	}
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req UpdatePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}

	product, err := ctrl.productService.UpdatePrice(seller, id, req.Price)
	if err != nil {
		respondError(c, err, 0, "update product price")
		return
	}

	log.Info("Product price updated", map[string]interface{}{
		"product_id": id,
		"price":      product.BasePrice.String(),
	})

	c.JSON(http.StatusOK, gin.H{
		"message": "Product price updated successfully",
		"product": product,
	})
}

// SetApproval shows or hides a product in the catalog
// PUT /api/v1/admin/products/:id/approval
func (ctrl *ProductController) SetApproval(c *gin.Context) {
	id, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req SetApprovalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}

	if err := ctrl.productService.SetApproval(id, req.Approved); err != nil {
		respondError(c, err, 0, "set product approval")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Product approval updated",
		"approved": req.Approved,
	})
}

func sellerPrincipal(c *gin.Context) (model.SellerPrincipal, bool) {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		apperrors.Unauthorized(c, "")
		return model.SellerPrincipal{}, false
	}
	seller, ok := principal.(model.SellerPrincipal)
	if !ok {
		apperrors.RespondWithError(c, http.StatusForbidden, apperrors.AuthzSellerOnly, "Sellers only")
		return model.SellerPrincipal{}, false
	}
	return seller, true
}

func pageParams(c *gin.Context, defaultSize, maxSize int) (int, int) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultSize)))
	if pageSize < 1 || pageSize > maxSize {
		pageSize = defaultSize
	}
	return page, pageSize
}

// listOptions reads the catalog query parameters shared by every product listing
func listOptions(c *gin.Context, page, pageSize int) service.ProductListOptions {
	return service.ProductListOptions{
		Search:        c.Query("search"),
		ClearanceOnly: c.Query("clearance") == "true",
		Sort:          service.ProductSort(c.Query("sort")),
		SortAscending: c.Query("order") == "asc",
		Limit:         pageSize,
		Offset:        (page - 1) * pageSize,
	}
}
