package db

import (
	"errors"

	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/pkg/logger"
	"github.com/ikkim/marketplace-backend/pkg/util"
	"gorm.io/gorm"
)

// Models lists every persisted model in dependency order
func Models() []interface{} {
	return []interface{}{
		&model.User{},
		&model.Seller{},
		&model.Category{},
		&model.SubCategory{},
		&model.Product{},
		&model.Review{},
		&model.Cart{},
		&model.CartItem{},
		&model.MergedGuestSession{},
		&model.Order{},
		&model.OrderItem{},
		&model.Payment{},
		&model.Notification{},
		&model.OutboxEvent{},
	}
}

// Migrate runs database migrations
func Migrate() error {
	logger.Info("Running database migrations...")

	models := Models()
	if err := DB.AutoMigrate(models...); err != nil {
		logger.Error("Failed to run migrations", err)
		return err
	}

	logger.Info("Database migrations completed successfully", map[string]interface{}{
		"models_count": len(models),
	})
	return nil
}

// SeedAdmin creates the first admin account if no admin exists yet
func SeedAdmin(db *gorm.DB, email, password string) (*model.User, error) {
	var admin model.User
	err := db.Where("role = ?", model.RoleAdmin).First(&admin).Error
	if err == nil {
		logger.Info("Admin already seeded, skipping...", map[string]interface{}{
			"admin_id": admin.ID,
		})
		return &admin, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	hash, err := util.HashPassword(password)
	if err != nil {
		return nil, err
	}

	admin = model.User{
		Email:        email,
		PasswordHash: hash,
		Name:         "Administrator",
		Role:         model.RoleAdmin,
	}
	if err := db.Create(&admin).Error; err != nil {
		logger.Error("Failed to seed admin", err)
		return nil, err
	}

	logger.Info("Admin seeded", map[string]interface{}{
		"admin_id": admin.ID,
		"email":    email,
	})
	return &admin, nil
}
