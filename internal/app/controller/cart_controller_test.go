package controller

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/app/repository"
	apperrors "github.com/ikkim/marketplace-backend/internal/errors"
	"github.com/ikkim/marketplace-backend/internal/middleware"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupCartRoutes(env *controllerEnv, auth gin.HandlerFunc) *gin.Engine {
	return setupCartRoutesWithStore(env, auth, env.guestCarts)
}

func setupCartRoutesWithStore(env *controllerEnv, auth gin.HandlerFunc, store repository.GuestCartStore) *gin.Engine {
	ctrl := NewCartController(env.carts, env.guestCartSvc, env.merge, store)
	router := newTestRouter()
	router.GET("/cart", auth, ctrl.GetCart)
	router.POST("/cart/items", auth, ctrl.AddToCart)
	router.DELETE("/cart/items/:product_id", auth, ctrl.RemoveFromCart)
	router.DELETE("/cart", auth, ctrl.ClearCart)
	router.POST("/cart/merge", auth, ctrl.MergeCart)
	return router
}

func TestCartController_GuestAddIssuesSessionKey(t *testing.T) {
	env := setupControllerEnv(t)
	router := setupCartRoutes(env, asGuest())

	w := performRequest(router, http.MethodPost, "/cart/items", gin.H{"product_id": env.backpack.ID, "quantity": 2}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	sessionKey := w.Header().Get(middleware.SessionKeyHeader)
	require.NotEmpty(t, sessionKey)
	response := decodeBody(t, w)
	assert.Equal(t, sessionKey, response["session_key"])

	w = performRequest(router, http.MethodPost, "/cart/items", gin.H{"product_id": env.backpack.ID, "quantity": 1},
		map[string]string{middleware.SessionKeyHeader: sessionKey})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Header().Get(middleware.SessionKeyHeader), "a valid key is not reissued")

	w = performRequest(router, http.MethodGet, "/cart", nil, map[string]string{middleware.SessionKeyHeader: sessionKey})
	require.Equal(t, http.StatusOK, w.Code)

	response = decodeBody(t, w)
	assert.Equal(t, float64(3), response["count"])
	assert.Equal(t, "450.00", response["total"])

	stored, err := env.guestCarts.Load(context.Background(), sessionKey)
	require.NoError(t, err)
	require.Len(t, stored.Lines, 1)
	assert.Equal(t, 3, stored.Lines[0].Quantity)
}

func TestCartController_GuestRemove(t *testing.T) {
	env := setupControllerEnv(t)
	router := setupCartRoutes(env, asGuest())

	w := performRequest(router, http.MethodPost, "/cart/items", gin.H{"product_id": env.backpack.ID, "quantity": 1}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	headers := map[string]string{middleware.SessionKeyHeader: w.Header().Get(middleware.SessionKeyHeader)}

	w = performRequest(router, http.MethodDelete, fmt.Sprintf("/cart/items/%d", env.backpack.ID), nil, headers)
	require.Equal(t, http.StatusOK, w.Code)

	w = performRequest(router, http.MethodGet, "/cart", nil, headers)
	response := decodeBody(t, w)
	assert.Equal(t, float64(0), response["count"])
	assert.Equal(t, "0.00", response["total"])
}

func TestCartController_AddRejections(t *testing.T) {
	env := setupControllerEnv(t)
	router := setupCartRoutes(env, withPrincipal(env.buyerPrincipal()))

	tests := []struct {
		name   string
		body   gin.H
		status int
		code   string
	}{
		{"missing quantity", gin.H{"product_id": env.backpack.ID}, http.StatusBadRequest, apperrors.ValidationInvalidInput},
		{"unknown product", gin.H{"product_id": 9999, "quantity": 1}, http.StatusNotFound, apperrors.ProductNotFound},
		{"above stock", gin.H{"product_id": env.bottle.ID, "quantity": 6}, http.StatusBadRequest, apperrors.ProductInsufficientStock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := performRequest(router, http.MethodPost, "/cart/items", tt.body, nil)
			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeBody(t, w)["error"])
		})
	}
}

func TestCartController_UserCart(t *testing.T) {
	env := setupControllerEnv(t)
	router := setupCartRoutes(env, withPrincipal(env.buyerPrincipal()))

	w := performRequest(router, http.MethodPost, "/cart/items", gin.H{"product_id": env.backpack.ID, "quantity": 2}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Empty(t, w.Header().Get(middleware.SessionKeyHeader))

	w = performRequest(router, http.MethodGet, "/cart", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, "300.00", response["total"])
	assert.Len(t, response["cart_items"], 1)

	w = performRequest(router, http.MethodDelete, "/cart", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = performRequest(router, http.MethodGet, "/cart", nil, nil)
	assert.Equal(t, float64(0), decodeBody(t, w)["count"])
}

func TestCartController_ClearRequiresAccount(t *testing.T) {
	env := setupControllerEnv(t)
	router := setupCartRoutes(env, asGuest())

	w := performRequest(router, http.MethodDelete, "/cart", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestCartController_Merge(t *testing.T) {
	env := setupControllerEnv(t)
	guestRouter := setupCartRoutes(env, asGuest())
	userRouter := setupCartRoutes(env, withPrincipal(env.buyerPrincipal()))

	w := performRequest(guestRouter, http.MethodPost, "/cart/items", gin.H{"product_id": env.backpack.ID, "quantity": 1}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	sessionKey := w.Header().Get(middleware.SessionKeyHeader)

	w = performRequest(userRouter, http.MethodPost, "/cart/items", gin.H{"product_id": env.backpack.ID, "quantity": 1}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = performRequest(userRouter, http.MethodPost, "/cart/merge", nil, map[string]string{middleware.SessionKeyHeader: sessionKey})
	require.Equal(t, http.StatusOK, w.Code)
	response := decodeBody(t, w)
	assert.Equal(t, float64(2), response["count"])
	assert.Equal(t, "300.00", response["total"])

	assert.False(t, env.redis.Exists("guest_cart:"+sessionKey), "merged guest cart is deleted")
}

func TestCartController_MergeWithoutSessionKey(t *testing.T) {
	env := setupControllerEnv(t)
	router := setupCartRoutes(env, withPrincipal(env.buyerPrincipal()))

	w := performRequest(router, http.MethodPost, "/cart/items", gin.H{"product_id": env.bottle.ID, "quantity": 2}, nil)
	require.Equal(t, http.StatusCreated, w.Code)

	w = performRequest(router, http.MethodPost, "/cart/merge", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "160.00", decodeBody(t, w)["total"])
}

// stickyGuestCartStore loses every delete, as when redis drops the command
type stickyGuestCartStore struct {
	repository.GuestCartStore
}

func (stickyGuestCartStore) Delete(context.Context, string) error {
	return errors.New("redis down")
}

func TestCartController_MergeSurvivesFailedDelete(t *testing.T) {
	env := setupControllerEnv(t)
	store := stickyGuestCartStore{GuestCartStore: env.guestCarts}
	guestRouter := setupCartRoutesWithStore(env, asGuest(), store)
	userRouter := setupCartRoutesWithStore(env, withPrincipal(env.buyerPrincipal()), store)

	w := performRequest(guestRouter, http.MethodPost, "/cart/items", gin.H{"product_id": env.backpack.ID, "quantity": 1}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	headers := map[string]string{middleware.SessionKeyHeader: w.Header().Get(middleware.SessionKeyHeader)}

	for i := 0; i < 3; i++ {
		w = performRequest(userRouter, http.MethodPost, "/cart/merge", nil, headers)
		require.Equal(t, http.StatusOK, w.Code)
		response := decodeBody(t, w)
		assert.Equal(t, float64(1), response["count"], "merge #%d", i+1)
		assert.Equal(t, "150.00", response["total"], "merge #%d", i+1)
	}

	var markers int64
	require.NoError(t, env.db.Model(&model.MergedGuestSession{}).Count(&markers).Error)
	assert.Equal(t, int64(1), markers)
}
