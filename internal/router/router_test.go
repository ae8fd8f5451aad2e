package router

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/ikkim/marketplace-backend/config"
	"github.com/ikkim/marketplace-backend/internal/app/controller"
	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/app/repository"
	"github.com/ikkim/marketplace-backend/internal/app/service"
	"github.com/ikkim/marketplace-backend/internal/db"
	apperrors "github.com/ikkim/marketplace-backend/internal/errors"
	"github.com/ikkim/marketplace-backend/internal/middleware"
	"github.com/ikkim/marketplace-backend/internal/storage"
	"github.com/ikkim/marketplace-backend/pkg/mail"
	"github.com/ikkim/marketplace-backend/pkg/payment/gateway"
	redispkg "github.com/ikkim/marketplace-backend/pkg/redis"
	"github.com/ikkim/marketplace-backend/pkg/util"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testSecret = "router-test-secret"

// paymentProvider plays the hosted payment page. Every session it opens is
// later reported as paid in full.
type paymentProvider struct {
	mu       sync.Mutex
	sessions map[string]decimal.Decimal
}

func (p *paymentProvider) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.mu.Lock()
	defer p.mu.Unlock()
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodPost && r.URL.Path == "/sessions":
		var req gateway.SessionRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		p.sessions[req.MerchantReference] = req.Amount
		json.NewEncoder(w).Encode(gateway.SessionResponse{
			Token:      "tok-" + req.MerchantReference,
			PaymentURL: "https://pay.example.com/checkout/" + req.MerchantReference,
		})
	case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/verify/"):
		reference := strings.TrimPrefix(r.URL.Path, "/verify/")
		amount, ok := p.sessions[reference]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		json.NewEncoder(w).Encode(gateway.VerifyResponse{
			MerchantReference: reference,
			Status:            gateway.StatusSuccess,
			Amount:            &amount,
			TransactionID:     "txn-" + reference,
		})
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

type testApp struct {
	engine   *gin.Engine
	db       *gorm.DB
	redis    *miniredis.Miniredis
	seller   *model.Seller
	backpack *model.Product
	bottle   *model.Product
}

func setupTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		rdb.Close()
	})

	provider := httptest.NewServer(&paymentProvider{sessions: make(map[string]decimal.Decimal)})
	t.Cleanup(provider.Close)

	gw, err := gateway.NewClient(gateway.Config{
		BaseURL:     provider.URL,
		MerchantID:  "merchant",
		APIKey:      "key",
		Currency:    "USD",
		RedirectURL: "http://localhost/api/v1/payments/callback",
		Timeout:     2 * time.Second,
	})
	require.NoError(t, err)

	cfg := &config.Config{
		Server: config.ServerConfig{GinMode: gin.TestMode},
		CORS:   config.CORSConfig{AllowedOrigins: []string{"http://localhost:3000"}},
		JWT: config.JWTConfig{
			Secret:             testSecret,
			AccessTokenExpiry:  15 * time.Minute,
			RefreshTokenExpiry: time.Hour,
		},
	}

	blacklist := redispkg.NewTokenBlacklist(rdb)
	userRepo := repository.NewUserRepository(testDB)
	orderRepo := repository.NewOrderRepository(testDB)
	cartRepo := repository.NewCartRepository(testDB)
	sellerRepo := repository.NewSellerRepository(testDB)
	guestCarts := repository.NewGuestCartStore(rdb, time.Hour)

	notifications := service.NewNotificationService(repository.NewNotificationRepository(testDB), userRepo, nil, mail.LogMailer{})
	authService := service.NewAuthService(userRepo, blacklist, testSecret, cfg.JWT.AccessTokenExpiry, cfg.JWT.RefreshTokenExpiry)
	categoryRepo := repository.NewCategoryRepository(testDB)
	productService := service.NewProductService(repository.NewProductRepository(testDB), categoryRepo)
	cartService := service.NewCartService(cartRepo, productService)
	guestCartService := service.NewGuestCartService(productService)
	mergeService := service.NewCartMergeService(cartRepo, testDB)
	orderService := service.NewOrderService(orderRepo, testDB, notifications)
	paymentService := service.NewPaymentService(repository.NewPaymentRepository(testDB), orderRepo, userRepo, gw, testDB, notifications, 2*time.Second)
	sellerService := service.NewSellerService(sellerRepo, userRepo, notifications)

	r := NewRouter(
		controller.NewAuthController(authService),
		controller.NewProductController(productService),
		controller.NewCategoryController(service.NewCategoryService(categoryRepo, productService)),
		controller.NewReviewController(service.NewReviewService(repository.NewReviewRepository(testDB), productService)),
		controller.NewCartController(cartService, guestCartService, mergeService, guestCarts),
		controller.NewOrderController(orderService, mergeService, guestCarts),
		controller.NewPaymentController(paymentService),
		controller.NewSellerController(sellerService),
		controller.NewAdminController(sellerService, service.NewOrderExportService(orderRepo)),
		controller.NewNotificationController(notifications, nil, cfg.CORS.AllowedOrigins),
		controller.NewUploadController(storage.NewS3Storage("us-east-1", "bucket", "id", "secret", "")),
		middleware.NewAuthMiddleware(testSecret, blacklist, authService),
		cfg,
	)

	app := &testApp{engine: r.Setup(), db: testDB, redis: mr}

	sellerUser := app.createUser(t, "seller@example.com", model.RoleSeller)
	app.seller = &model.Seller{UserID: sellerUser.ID, BusinessName: "Northwind Supply", Approved: true}
	require.NoError(t, testDB.Create(app.seller).Error)
	app.backpack = app.createProduct(t, "Canvas Backpack", "150.00")
	app.bottle = app.createProduct(t, "Steel Bottle", "80.00")
	return app
}

func (a *testApp) createUser(t *testing.T, email string, role model.UserRole) *model.User {
	t.Helper()
	user := &model.User{Email: email, PasswordHash: "hash", Name: "Test", Role: role}
	require.NoError(t, a.db.Create(user).Error)
	return user
}

func (a *testApp) createProduct(t *testing.T, name, price string) *model.Product {
	t.Helper()
	sellerID := a.seller.ID
	product := &model.Product{
		SellerID:      &sellerID,
		Name:          name,
		BasePrice:     decimal.RequireFromString(price),
		MinOrder:      1,
		StockQuantity: 10,
		Approved:      true,
	}
	require.NoError(t, a.db.Create(product).Error)
	return product
}

func (a *testApp) tokenFor(t *testing.T, user *model.User) string {
	t.Helper()
	pair, err := util.GenerateTokenPair(user.ID, user.Email, string(user.Role), testSecret, 15*time.Minute, time.Hour)
	require.NoError(t, err)
	return pair.AccessToken
}

func (a *testApp) do(method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var payload []byte
	if body != nil {
		payload, _ = json.Marshal(body)
	}
	req := httptest.NewRequest(method, path, bytes.NewReader(payload))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	a.engine.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func TestHealth(t *testing.T) {
	app := setupTestApp(t)

	w := app.do(http.MethodGet, "/health", nil, map[string]string{"Origin": "http://localhost:3000"})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "healthy", decode(t, w)["status"])
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, middleware.SessionKeyHeader, w.Header().Get("Access-Control-Expose-Headers"))
}

func TestGuestToPaidOrder(t *testing.T) {
	app := setupTestApp(t)

	// a guest fills a cart before signing up
	w := app.do(http.MethodPost, "/api/v1/cart/items", gin.H{"product_id": app.backpack.ID, "quantity": 1}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	sessionKey := w.Header().Get(middleware.SessionKeyHeader)
	require.NotEmpty(t, sessionKey)

	w = app.do(http.MethodPost, "/api/v1/auth/register", gin.H{
		"email":    "buyer@example.com",
		"password": "secret123",
		"name":     "Buyer",
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code)
	token := decode(t, w)["tokens"].(map[string]interface{})["access_token"].(string)
	auth := map[string]string{"Authorization": "Bearer " + token}

	w = app.do(http.MethodPost, "/api/v1/cart/items", gin.H{"product_id": app.bottle.ID, "quantity": 1}, auth)
	require.Equal(t, http.StatusCreated, w.Code)

	checkoutHeaders := map[string]string{
		"Authorization":            "Bearer " + token,
		middleware.SessionKeyHeader: sessionKey,
	}
	w = app.do(http.MethodPost, "/api/v1/orders/checkout", nil, checkoutHeaders)
	require.Equal(t, http.StatusCreated, w.Code)
	order := decode(t, w)["order"].(map[string]interface{})
	orderID := uint(order["id"].(float64))
	assert.Equal(t, "230", order["total_price"])
	assert.False(t, app.redis.Exists("guest_cart:"+sessionKey))

	w = app.do(http.MethodPost, fmt.Sprintf("/api/v1/payments/orders/%d", orderID), nil, auth)
	require.Equal(t, http.StatusCreated, w.Code)
	initiated := decode(t, w)
	payment := initiated["payment"].(map[string]interface{})
	reference := payment["reference"].(string)
	assert.Equal(t, "https://pay.example.com/checkout/"+reference, initiated["redirect"])

	// the provider sends the buyer back; the claimed status is ignored
	q := url.Values{"merchant_reference": {reference}, "status": {"FAILED"}}
	w = app.do(http.MethodGet, "/api/v1/payments/callback?"+q.Encode(), nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	callback := decode(t, w)
	assert.Equal(t, string(model.PaymentStatusSuccess), callback["status"])
	assert.Equal(t, fmt.Sprintf("/orders/%d", orderID), callback["redirect"])

	w = app.do(http.MethodPost, "/api/v1/payments/callback", gin.H{"merchant_reference": reference}, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode(t, w)["already_processed"])

	w = app.do(http.MethodGet, fmt.Sprintf("/api/v1/orders/%d", orderID), nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, string(model.OrderStatusPaid), decode(t, w)["order"].(map[string]interface{})["status"])

	w = app.do(http.MethodGet, "/api/v1/notifications/unread-count", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["unread_count"], "order confirmed and payment received")
}

func TestLogoutRevokesToken(t *testing.T) {
	app := setupTestApp(t)
	buyer := app.createUser(t, "buyer@example.com", model.RoleBuyer)
	auth := map[string]string{"Authorization": "Bearer " + app.tokenFor(t, buyer)}

	w := app.do(http.MethodGet, "/api/v1/auth/me", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(http.MethodPost, "/api/v1/auth/logout", nil, auth)
	require.Equal(t, http.StatusOK, w.Code)

	w = app.do(http.MethodGet, "/api/v1/auth/me", nil, auth)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRouteGuards(t *testing.T) {
	app := setupTestApp(t)
	buyer := app.createUser(t, "buyer@example.com", model.RoleBuyer)
	admin := app.createUser(t, "admin@example.com", model.RoleAdmin)
	sellerUser := &model.User{}
	require.NoError(t, app.db.First(sellerUser, app.seller.UserID).Error)

	buyerAuth := map[string]string{"Authorization": "Bearer " + app.tokenFor(t, buyer)}
	adminAuth := map[string]string{"Authorization": "Bearer " + app.tokenFor(t, admin)}
	sellerAuth := map[string]string{"Authorization": "Bearer " + app.tokenFor(t, sellerUser)}

	tests := []struct {
		name    string
		method  string
		path    string
		body    interface{}
		headers map[string]string
		status  int
		code    string
	}{
		{"orders need a token", http.MethodGet, "/api/v1/orders", nil, nil, http.StatusUnauthorized, ""},
		{"garbage token", http.MethodGet, "/api/v1/orders", nil, map[string]string{"Authorization": "Bearer nope"}, http.StatusUnauthorized, ""},
		{"buyer on admin route", http.MethodGet, "/api/v1/admin/sellers/pending", nil, buyerAuth, http.StatusForbidden, apperrors.AuthzAdminOnly},
		{"admin on admin route", http.MethodGet, "/api/v1/admin/sellers/pending", nil, adminAuth, http.StatusOK, ""},
		{"buyer lists a product", http.MethodPost, "/api/v1/products", gin.H{"name": "X", "base_price": "1"}, buyerAuth, http.StatusForbidden, apperrors.AuthzSellerOnly},
		{"seller lists a product", http.MethodPost, "/api/v1/products", gin.H{"name": "Wool Scarf", "base_price": "12.50", "stock_quantity": 2}, sellerAuth, http.StatusCreated, ""},
		{"buyer ships an order", http.MethodPut, "/api/v1/orders/1/status", gin.H{"status": "shipped"}, buyerAuth, http.StatusForbidden, ""},
		{"guest clears a cart", http.MethodDelete, "/api/v1/cart", nil, nil, http.StatusUnauthorized, ""},
		{"buyer adds a category", http.MethodPost, "/api/v1/admin/categories", gin.H{"name": "Bags"}, buyerAuth, http.StatusForbidden, apperrors.AuthzAdminOnly},
		{"admin adds a category", http.MethodPost, "/api/v1/admin/categories", gin.H{"name": "Bags"}, adminAuth, http.StatusCreated, ""},
		{"guest reviews a product", http.MethodPost, fmt.Sprintf("/api/v1/products/%d/reviews", app.backpack.ID), gin.H{"rating": 5}, nil, http.StatusUnauthorized, ""},
		{"guest reads reviews", http.MethodGet, fmt.Sprintf("/api/v1/products/%d/reviews", app.backpack.ID), nil, nil, http.StatusOK, ""},
		{"best sellers are public", http.MethodGet, "/api/v1/products/best-sellers", nil, nil, http.StatusOK, ""},
		{"deals are public", http.MethodGet, "/api/v1/deals/today", nil, nil, http.StatusOK, ""},
		{"unknown deal", http.MethodGet, "/api/v1/deals/nope", nil, nil, http.StatusNotFound, apperrors.DealNotFound},
		{"categories are public", http.MethodGet, "/api/v1/categories", nil, nil, http.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := app.do(tt.method, tt.path, tt.body, tt.headers)
			assert.Equal(t, tt.status, w.Code)
			if tt.code != "" {
				assert.Equal(t, tt.code, decode(t, w)["error"])
			}
		})
	}
}
