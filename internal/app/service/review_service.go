package service

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/app/repository"
	"github.com/ikkim/marketplace-backend/pkg/logger"
	"gorm.io/gorm"
)

var (
	ErrReviewNotFound     = errors.New("review not found")
	ErrReviewExists       = errors.New("product already reviewed by this user")
	ErrInvalidRating      = errors.New("rating must be between 1 and 5")
	ErrReviewTooLong      = errors.New("review comment is too long")
	ErrReviewAccessDenied = errors.New("review access denied")
	ErrReviewOwnProduct   = errors.New("sellers cannot review their own products")
)

const MaxReviewCommentLength = 2000

type ReviewInput struct {
	Rating  int
	Comment string
}

type ReviewService interface {
	CreateReview(principal model.Principal, productID uint, input ReviewInput) (*model.Review, error)
	GetProductReviews(productID uint, page, pageSize int) ([]model.Review, int64, repository.ReviewStats, error)
	GetUserReviews(userID uint, page, pageSize int) ([]model.Review, int64, error)
	UpdateReview(principal model.Principal, reviewID uint, input ReviewInput) (*model.Review, error)
	DeleteReview(principal model.Principal, reviewID uint) error
}

type reviewService struct {
	reviewRepo repository.ReviewRepository
	products   ProductService
}

func NewReviewService(reviewRepo repository.ReviewRepository, products ProductService) ReviewService {
	return &reviewService{
		reviewRepo: reviewRepo,
		products:   products,
	}
}

func (in *ReviewInput) validate() error {
	if in.Rating < model.MinReviewRating || in.Rating > model.MaxReviewRating {
		return ErrInvalidRating
	}
	in.Comment = strings.TrimSpace(in.Comment)
	if utf8.RuneCountInString(in.Comment) > MaxReviewCommentLength {
		return ErrReviewTooLong
	}
	return nil
}

func (s *reviewService) CreateReview(principal model.Principal, productID uint, input ReviewInput) (*model.Review, error) {
	userID, ok := model.AccountID(principal)
	if !ok {
		return nil, ErrReviewAccessDenied
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	product, err := s.products.GetProductByID(productID)
	if err != nil {
		return nil, err
	}
	if !product.Approved {
		return nil, ErrProductNotFound
	}
	if seller, ok := principal.(model.SellerPrincipal); ok && product.SellerID != nil && *product.SellerID == seller.SellerID {
		logger.Warn("Seller tried to review own product", map[string]interface{}{
			"product_id": productID,
			"seller_id":  seller.SellerID,
		})
		return nil, ErrReviewOwnProduct
	}

	review := &model.Review{
		ProductID: productID,
		UserID:    userID,
		Rating:    input.Rating,
		Comment:   input.Comment,
	}
	if err := s.reviewRepo.Create(review); err != nil {
		if isDuplicateKey(err) {
			logger.Warn("Duplicate review", map[string]interface{}{
				"product_id": productID,
				"user_id":    userID,
			})
			return nil, ErrReviewExists
		}
		return nil, err
	}

	logger.Info("Review created", map[string]interface{}{
		"review_id":  review.ID,
		"product_id": productID,
		"rating":     review.Rating,
	})
	return s.reviewRepo.FindByID(review.ID)
}

func (s *reviewService) GetProductReviews(productID uint, page, pageSize int) ([]model.Review, int64, repository.ReviewStats, error) {
	if _, err := s.products.GetProductByID(productID); err != nil {
		return nil, 0, repository.ReviewStats{}, err
	}

	reviews, total, err := s.reviewRepo.FindByProduct(productID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, 0, repository.ReviewStats{}, err
	}
	stats, err := s.reviewRepo.Stats(productID)
	if err != nil {
		return nil, 0, repository.ReviewStats{}, err
	}
	return reviews, total, stats, nil
}

func (s *reviewService) GetUserReviews(userID uint, page, pageSize int) ([]model.Review, int64, error) {
	return s.reviewRepo.FindByUser(userID, (page-1)*pageSize, pageSize)
}

func (s *reviewService) UpdateReview(principal model.Principal, reviewID uint, input ReviewInput) (*model.Review, error) {
	review, err := s.findReview(reviewID)
	if err != nil {
		return nil, err
	}
	if userID, ok := model.AccountID(principal); !ok || userID != review.UserID {
		return nil, ErrReviewAccessDenied
	}
	if err := input.validate(); err != nil {
		return nil, err
	}

	review.Rating = input.Rating
	review.Comment = input.Comment
	if err := s.reviewRepo.Update(review); err != nil {
		logger.Error("Failed to update review", err, map[string]interface{}{
			"review_id": reviewID,
		})
		return nil, err
	}
	return s.reviewRepo.FindByID(reviewID)
}

// DeleteReview removes a review. Authors delete their own, admins any.
func (s *reviewService) DeleteReview(principal model.Principal, reviewID uint) error {
	review, err := s.findReview(reviewID)
	if err != nil {
		return err
	}

	_, isAdmin := principal.(model.Admin)
	userID, _ := model.AccountID(principal)
	if !isAdmin && (userID == 0 || userID != review.UserID) {
		return ErrReviewAccessDenied
	}

	if err := s.reviewRepo.Delete(review); err != nil {
		logger.Error("Failed to delete review", err, map[string]interface{}{
			"review_id": reviewID,
		})
		return err
	}

	logger.Info("Review deleted", map[string]interface{}{
		"review_id":  reviewID,
		"product_id": review.ProductID,
		"by_admin":   isAdmin,
	})
	return nil
}

func (s *reviewService) findReview(id uint) (*model.Review, error) {
	review, err := s.reviewRepo.FindByID(id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReviewNotFound
		}
		return nil, err
	}
	return review, nil
}
