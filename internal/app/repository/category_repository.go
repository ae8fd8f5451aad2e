package repository

import (
	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/pkg/logger"
	"gorm.io/gorm"
)

type CategoryRepository interface {
	Create(category *model.Category) error
	CreateSubCategory(sub *model.SubCategory) error
	FindAll() ([]model.Category, error)
	FindByID(id uint) (*model.Category, error)
	FindBySlug(slug string) (*model.Category, error)
	FindSubCategoryBySlug(slug string) (*model.SubCategory, error)
	FindSubCategoryByID(id uint) (*model.SubCategory, error)
	CategorySlugExists(slug string) (bool, error)
	SubCategorySlugExists(slug string) (bool, error)
}

type categoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) CategoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Create(category *model.Category) error {
	logger.Debug("Creating category in database", map[string]interface{}{
		"name": category.Name,
		"slug": category.Slug,
	})

	if err := r.db.Create(category).Error; err != nil {
		logger.Error("Failed to create category in database", err, map[string]interface{}{
			"slug": category.Slug,
		})
		return err
	}
	return nil
}

func (r *categoryRepository) CreateSubCategory(sub *model.SubCategory) error {
	logger.Debug("Creating subcategory in database", map[string]interface{}{
		"category_id": sub.CategoryID,
		"slug":        sub.Slug,
	})

	if err := r.db.Create(sub).Error; err != nil {
		logger.Error("Failed to create subcategory in database", err, map[string]interface{}{
			"category_id": sub.CategoryID,
			"slug":        sub.Slug,
		})
		return err
	}
	return nil
}

func (r *categoryRepository) FindAll() ([]model.Category, error) {
	var categories []model.Category
	err := r.db.
		Preload("SubCategories", func(db *gorm.DB) *gorm.DB {
			return db.Order("sub_categories.name ASC")
		}).
		Order("categories.name ASC").
		Find(&categories).Error
	if err != nil {
		logger.Error("Failed to list categories", err)
		return nil, err
	}
	return categories, nil
}

func (r *categoryRepository) FindByID(id uint) (*model.Category, error) {
	var category model.Category
	if err := r.db.Preload("SubCategories").First(&category, id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) FindBySlug(slug string) (*model.Category, error) {
	var category model.Category
	err := r.db.
		Preload("SubCategories", func(db *gorm.DB) *gorm.DB {
			return db.Order("sub_categories.name ASC")
		}).
		Where("slug = ?", slug).
		First(&category).Error
	if err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) FindSubCategoryBySlug(slug string) (*model.SubCategory, error) {
	var sub model.SubCategory
	if err := r.db.Where("slug = ?", slug).First(&sub).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *categoryRepository) FindSubCategoryByID(id uint) (*model.SubCategory, error) {
	var sub model.SubCategory
	if err := r.db.First(&sub, id).Error; err != nil {
		return nil, err
	}
	return &sub, nil
}

func (r *categoryRepository) CategorySlugExists(slug string) (bool, error) {
	var count int64
	err := r.db.Model(&model.Category{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}

func (r *categoryRepository) SubCategorySlugExists(slug string) (bool, error) {
	var count int64
	err := r.db.Model(&model.SubCategory{}).Where("slug = ?", slug).Count(&count).Error
	return count > 0, err
}
