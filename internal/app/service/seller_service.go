package service

import (
	"context"
	"errors"
	"time"

	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/app/repository"
	"github.com/ikkim/marketplace-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrSellerNotFound        = errors.New("seller not found")
	ErrSellerNotApproved     = errors.New("seller is not approved")
	ErrSellerAlreadyExists   = errors.New("seller profile already exists")
	ErrSellerAlreadyApproved = errors.New("seller already approved")
)

type CreateSellerInput struct {
	BusinessName string
	Phone        string
	Address      string
}

type SellerService interface {
	CreateProfile(userID uint, input CreateSellerInput) (*model.Seller, error)
	GetMine(userID uint) (*model.Seller, error)
	ListPending() ([]model.Seller, error)
	Approve(ctx context.Context, sellerID uint) (*model.Seller, error)
}

type sellerService struct {
	sellerRepo repository.SellerRepository
	userRepo   repository.UserRepository
	dispatcher EffectDispatcher
}

func NewSellerService(
	sellerRepo repository.SellerRepository,
	userRepo repository.UserRepository,
	dispatcher EffectDispatcher,
) SellerService {
	return &sellerService{
		sellerRepo: sellerRepo,
		userRepo:   userRepo,
		dispatcher: dispatcher,
	}
}

// CreateProfile opens an unapproved seller profile and grants the seller role
func (s *sellerService) CreateProfile(userID uint, input CreateSellerInput) (*model.Seller, error) {
	logger.Info("Creating seller profile", map[string]interface{}{
		"user_id":       userID,
		"business_name": input.BusinessName,
	})

	user, err := s.userRepo.FindByID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if _, err := s.sellerRepo.FindByUserID(userID); err == nil {
		return nil, ErrSellerAlreadyExists
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	seller := &model.Seller{
		UserID:       userID,
		BusinessName: input.BusinessName,
		Phone:        input.Phone,
		Address:      input.Address,
	}
	if err := s.sellerRepo.Create(seller); err != nil {
		if isDuplicateKey(err) {
			return nil, ErrSellerAlreadyExists
		}
		logger.Error("Failed to create seller profile", err, map[string]interface{}{
			"user_id": userID,
		})
		return nil, err
	}

	// admins keep their role
	if user.Role == model.RoleBuyer {
		if err := s.userRepo.UpdateRole(userID, model.RoleSeller); err != nil {
			logger.Error("Failed to grant seller role", err, map[string]interface{}{
				"user_id": userID,
			})
			return nil, err
		}
	}

	logger.Info("Seller profile created", map[string]interface{}{
		"seller_id": seller.ID,
		"user_id":   userID,
	})
	return seller, nil
}

func (s *sellerService) GetMine(userID uint) (*model.Seller, error) {
	seller, err := s.sellerRepo.FindByUserID(userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSellerNotFound
		}
		return nil, err
	}
	return seller, nil
}

func (s *sellerService) ListPending() ([]model.Seller, error) {
	return s.sellerRepo.FindPending()
}

// Approve flips the seller to approved and sends the approval notification
func (s *sellerService) Approve(ctx context.Context, sellerID uint) (*model.Seller, error) {
	logger.Info("Approving seller", map[string]interface{}{
		"seller_id": sellerID,
	})

	seller, err := s.sellerRepo.FindByID(sellerID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrSellerNotFound
		}
		return nil, err
	}

	effects, err := seller.Approve(time.Now())
	if err != nil {
		logger.Warn("Seller already approved", map[string]interface{}{
			"seller_id": sellerID,
		})
		return nil, ErrSellerAlreadyApproved
	}

	if err := s.sellerRepo.Update(seller); err != nil {
		logger.Error("Failed to approve seller", err, map[string]interface{}{
			"seller_id": sellerID,
		})
		return nil, err
	}

	logger.Info("Seller approved", map[string]interface{}{
		"seller_id": sellerID,
		"user_id":   seller.UserID,
	})

	s.dispatcher.Dispatch(ctx, effects...)
	return seller, nil
}
