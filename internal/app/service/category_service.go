package service

import (
	"errors"
	"fmt"

	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/app/repository"
	"github.com/ikkim/marketplace-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrCategoryNotFound     = errors.New("category not found")
	ErrSubCategoryNotFound  = errors.New("subcategory not found")
	ErrSubCategoryMismatch  = errors.New("subcategory belongs to another category")
	ErrInvalidCategoryName  = errors.New("category name must contain a letter or digit")
	ErrCategorySlugConflict = errors.New("category slug already taken")
)

// maxSlugAttempts bounds the -1, -2, ... suffix search
const maxSlugAttempts = 100

type CategoryInput struct {
	Name        string
	Description string
}

type CategoryService interface {
	ListCategories() ([]model.Category, error)
	GetCategory(slug string) (*model.Category, error)
	CreateCategory(input CategoryInput) (*model.Category, error)
	CreateSubCategory(categoryID uint, input CategoryInput) (*model.SubCategory, error)
	ListCategoryProducts(slug string, opts ProductListOptions) (*model.Category, []model.Product, int64, error)
	ListSubCategoryProducts(slug string, opts ProductListOptions) (*model.SubCategory, []model.Product, int64, error)
}

type categoryService struct {
	categoryRepo repository.CategoryRepository
	products     ProductService
}

func NewCategoryService(categoryRepo repository.CategoryRepository, products ProductService) CategoryService {
	return &categoryService{
		categoryRepo: categoryRepo,
		products:     products,
	}
}

func (s *categoryService) ListCategories() ([]model.Category, error) {
	categories, err := s.categoryRepo.FindAll()
	if err != nil {
		logger.Error("Failed to list categories", err)
		return nil, err
	}
	return categories, nil
}

func (s *categoryService) GetCategory(slug string) (*model.Category, error) {
	category, err := s.categoryRepo.FindBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			logger.Warn("Category not found", map[string]interface{}{
				"slug": slug,
			})
			return nil, ErrCategoryNotFound
		}
		logger.Error("Failed to fetch category", err, map[string]interface{}{
			"slug": slug,
		})
		return nil, err
	}
	return category, nil
}

func (s *categoryService) CreateCategory(input CategoryInput) (*model.Category, error) {
	slug, err := uniqueSlug(input.Name, s.categoryRepo.CategorySlugExists)
	if err != nil {
		return nil, err
	}

	category := &model.Category{
		Name:        input.Name,
		Slug:        slug,
		Description: input.Description,
	}
	if err := s.categoryRepo.Create(category); err != nil {
		if isDuplicateKey(err) {
			return nil, ErrCategorySlugConflict
		}
		return nil, err
	}

	logger.Info("Category created", map[string]interface{}{
		"category_id": category.ID,
		"slug":        category.Slug,
	})
	return category, nil
}

func (s *categoryService) CreateSubCategory(categoryID uint, input CategoryInput) (*model.SubCategory, error) {
	if _, err := s.categoryRepo.FindByID(categoryID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrCategoryNotFound
		}
		return nil, err
	}

	slug, err := uniqueSlug(input.Name, s.categoryRepo.SubCategorySlugExists)
	if err != nil {
		return nil, err
	}

	sub := &model.SubCategory{
		CategoryID:  categoryID,
		Name:        input.Name,
		Slug:        slug,
		Description: input.Description,
	}
	if err := s.categoryRepo.CreateSubCategory(sub); err != nil {
		if isDuplicateKey(err) {
			return nil, ErrCategorySlugConflict
		}
		return nil, err
	}

	logger.Info("Subcategory created", map[string]interface{}{
		"category_id":    categoryID,
		"subcategory_id": sub.ID,
		"slug":           sub.Slug,
	})
	return sub, nil
}

func (s *categoryService) ListCategoryProducts(slug string, opts ProductListOptions) (*model.Category, []model.Product, int64, error) {
	category, err := s.GetCategory(slug)
	if err != nil {
		return nil, nil, 0, err
	}

	opts.CategoryID = &category.ID
	opts.SubCategoryID = nil
	products, total, err := s.products.ListProducts(opts)
	if err != nil {
		return nil, nil, 0, err
	}
	return category, products, total, nil
}

func (s *categoryService) ListSubCategoryProducts(slug string, opts ProductListOptions) (*model.SubCategory, []model.Product, int64, error) {
	sub, err := s.categoryRepo.FindSubCategoryBySlug(slug)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil, 0, ErrSubCategoryNotFound
		}
		return nil, nil, 0, err
	}

	opts.CategoryID = nil
	opts.SubCategoryID = &sub.ID
	products, total, err := s.products.ListProducts(opts)
	if err != nil {
		return nil, nil, 0, err
	}
	return sub, products, total, nil
}

// uniqueSlug slugifies name and appends -1, -2, ... until taken reports false
func uniqueSlug(name string, taken func(string) (bool, error)) (string, error) {
	base := model.Slugify(name)
	if base == "" {
		return "", ErrInvalidCategoryName
	}

	slug := base
	for i := 1; i <= maxSlugAttempts; i++ {
		exists, err := taken(slug)
		if err != nil {
			return "", err
		}
		if !exists {
			return slug, nil
		}
		slug = fmt.Sprintf("%s-%d", base, i)
	}
	return "", ErrCategorySlugConflict
}
