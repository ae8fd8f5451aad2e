package controller

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/marketplace-backend/internal/app/service"
	apperrors "github.com/ikkim/marketplace-backend/internal/errors"
	"github.com/ikkim/marketplace-backend/internal/middleware"
)

type CategoryController struct {
	categoryService service.CategoryService
}

func NewCategoryController(categoryService service.CategoryService) *CategoryController {
	return &CategoryController{categoryService: categoryService}
}

type CategoryRequest struct {
	Name        string `json:"name" binding:"required,max=100"`
	Description string `json:"description"`
}

// ListCategories returns every category with its subcategories
// GET /api/v1/categories
func (ctrl *CategoryController) ListCategories(c *gin.Context) {
	categories, err := ctrl.categoryService.ListCategories()
	if err != nil {
		respondError(c, err, 0, "list categories")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"categories": categories,
		"count":      len(categories),
	})
}

// GET /api/v1/categories/:slug
func (ctrl *CategoryController) GetCategory(c *gin.Context) {
	category, err := ctrl.categoryService.GetCategory(c.Param("slug"))
	if err != nil {
		respondError(c, err, 0, "get category")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category": category,
	})
}

// GET /api/v1/categories/:slug/products
func (ctrl *CategoryController) GetCategoryProducts(c *gin.Context) {
	page, pageSize := pageParams(c, defaultProductPageSize, maxProductPageSize)

	category, products, total, err := ctrl.categoryService.ListCategoryProducts(c.Param("slug"), listOptions(c, page, pageSize))
	if err != nil {
		respondError(c, err, 0, "list category products")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"category":  category,
		"products":  products,
		"count":     len(products),
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// GET /api/v1/subcategories/:slug/products
func (ctrl *CategoryController) GetSubCategoryProducts(c *gin.Context) {
	page, pageSize := pageParams(c, defaultProductPageSize, maxProductPageSize)

	sub, products, total, err := ctrl.categoryService.ListSubCategoryProducts(c.Param("slug"), listOptions(c, page, pageSize))
	if err != nil {
		respondError(c, err, 0, "list subcategory products")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"subcategory": sub,
		"products":    products,
		"count":       len(products),
		"total":       total,
		"page":        page,
		"page_size":   pageSize,
	})
}

// CreateCategory adds a category; the slug is derived from the name
// POST /api/v1/admin/categories
func (ctrl *CategoryController) CreateCategory(c *gin.Context) {
	log := middleware.GetLoggerFromContext(c)

	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		log.Warn("Invalid category request", map[string]interface{}{
			"error": err.Error(),
		})
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}

	category, err := ctrl.categoryService.CreateCategory(service.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, err, 0, "create category")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":  "Category created successfully",
		"category": category,
	})
}

// POST /api/v1/admin/categories/:id/subcategories
func (ctrl *CategoryController) CreateSubCategory(c *gin.Context) {
	categoryID, ok := parseIDParam(c, "id")
	if !ok {
		return
	}

	var req CategoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apperrors.BadRequest(c, apperrors.ValidationInvalidInput, "Invalid request data")
		return
	}

	sub, err := ctrl.categoryService.CreateSubCategory(categoryID, service.CategoryInput{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		respondError(c, err, 0, "create subcategory")
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message":     "Subcategory created successfully",
		"subcategory": sub,
	})
}
