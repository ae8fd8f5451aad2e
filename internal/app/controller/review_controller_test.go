package controller

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/app/service"
	apperrors "github.com/ikkim/marketplace-backend/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupReviewRoutes(env *controllerEnv, principal model.Principal) *gin.Engine {
	ctrl := NewReviewController(env.reviews)
	router := newTestRouter()
	auth := withPrincipal(principal)
	router.GET("/products/:id/reviews", ctrl.GetProductReviews)
	router.POST("/products/:id/reviews", auth, ctrl.CreateReview)
	router.GET("/reviews/me", auth, ctrl.GetMyReviews)
	router.PUT("/reviews/:id", auth, ctrl.UpdateReview)
	router.DELETE("/reviews/:id", auth, ctrl.DeleteReview)
	return router
}

func TestReviewController_RateProduct(t *testing.T) {
	env := setupControllerEnv(t)
	router := setupReviewRoutes(env, env.buyerPrincipal())
	path := fmt.Sprintf("/products/%d/reviews", env.backpack.ID)

	w := performRequest(router, http.MethodPost, path, gin.H{"rating": 4, "comment": "Fits a laptop"}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	review := decodeBody(t, w)["review"].(map[string]interface{})
	assert.Equal(t, float64(4), review["rating"])
	assert.Equal(t, "Fits a laptop", review["comment"])

	w = performRequest(router, http.MethodPost, path, gin.H{"rating": 5}, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, apperrors.ReviewAlreadyExists, decodeBody(t, w)["error"])

	other := env.createUser(t, "other@example.com", model.RoleBuyer)
	_, err := env.reviews.CreateReview(model.Buyer{UserID: other.ID, Email: other.Email}, env.backpack.ID, service.ReviewInput{Rating: 5})
	require.NoError(t, err)

	w = performRequest(router, http.MethodGet, path, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	body := decodeBody(t, w)
	assert.Equal(t, float64(2), body["total"])
	assert.Equal(t, 4.5, body["average_rating"])
	assert.Equal(t, float64(2), body["review_count"])

	// the product itself carries the summary too
	products := setupProductRoutes(env, env.buyerPrincipal())
	w = performRequest(products, http.MethodGet, fmt.Sprintf("/products/%d", env.backpack.ID), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	product := decodeBody(t, w)["product"].(map[string]interface{})
	assert.Equal(t, 4.5, product["average_rating"])
	assert.Equal(t, float64(2), product["review_count"])
}

func TestReviewController_CreateRejections(t *testing.T) {
	env := setupControllerEnv(t)
	path := fmt.Sprintf("/products/%d/reviews", env.backpack.ID)

	tests := []struct {
		name      string
		principal model.Principal
		path      string
		body      interface{}
		status    int
		code      string
	}{
		{"missing rating", env.buyerPrincipal(), path, gin.H{"comment": "no stars"}, http.StatusBadRequest, apperrors.ValidationInvalidInput},
		{"rating out of range", env.buyerPrincipal(), path, gin.H{"rating": 9}, http.StatusBadRequest, apperrors.ReviewInvalidRating},
		{"unknown product", env.buyerPrincipal(), "/products/9999/reviews", gin.H{"rating": 3}, http.StatusNotFound, apperrors.ProductNotFound},
		{"seller rates own product", env.sellerPrincipal(), path, gin.H{"rating": 5}, http.StatusForbidden, apperrors.ReviewOwnProduct},
		{"guest", model.Guest{SessionKey: "sess"}, path, gin.H{"rating": 5}, http.StatusForbidden, apperrors.AuthzAccessDenied},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupReviewRoutes(env, tt.principal)
			w := performRequest(router, http.MethodPost, tt.path, tt.body, nil)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeBody(t, w)["error"])
		})
	}
}

func TestReviewController_EditAndDelete(t *testing.T) {
	env := setupControllerEnv(t)

	review, err := env.reviews.CreateReview(env.buyerPrincipal(), env.bottle.ID, service.ReviewInput{Rating: 2, Comment: "Leaks"})
	require.NoError(t, err)
	path := fmt.Sprintf("/reviews/%d", review.ID)

	stranger := env.createUser(t, "stranger@example.com", model.RoleBuyer)
	strangerRouter := setupReviewRoutes(env, model.Buyer{UserID: stranger.ID, Email: stranger.Email})
	w := performRequest(strangerRouter, http.MethodPut, path, gin.H{"rating": 1}, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	w = performRequest(strangerRouter, http.MethodDelete, path, nil, nil)
	assert.Equal(t, http.StatusForbidden, w.Code)

	router := setupReviewRoutes(env, env.buyerPrincipal())
	w = performRequest(router, http.MethodPut, path, gin.H{"rating": 4, "comment": "New lid fixed it"}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(4), decodeBody(t, w)["review"].(map[string]interface{})["rating"])

	w = performRequest(router, http.MethodGet, "/reviews/me", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decodeBody(t, w)["total"])

	adminRouter := setupReviewRoutes(env, model.Admin{UserID: 1, Email: "admin@example.com"})
	w = performRequest(adminRouter, http.MethodDelete, path, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = performRequest(router, http.MethodDelete, path, nil, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, apperrors.ReviewNotFound, decodeBody(t, w)["error"])
}
