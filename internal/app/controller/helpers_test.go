package controller

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/app/repository"
	"github.com/ikkim/marketplace-backend/internal/app/service"
	"github.com/ikkim/marketplace-backend/internal/db"
	"github.com/ikkim/marketplace-backend/internal/middleware"
	"github.com/ikkim/marketplace-backend/pkg/mail"
	"github.com/ikkim/marketplace-backend/pkg/payment/gateway"
	"github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

const testJWTSecret = "controller-test-secret"

type controllerEnv struct {
	db         *gorm.DB
	redis      *miniredis.Miniredis
	guestCarts repository.GuestCartStore
	gateway    *fakeGateway

	auth          service.AuthService
	products      service.ProductService
	categories    service.CategoryService
	reviews       service.ReviewService
	carts         service.CartService
	guestCartSvc  service.GuestCartService
	merge         service.CartMergeService
	orders        service.OrderService
	payments      service.PaymentService
	sellers       service.SellerService
	notifications service.NotificationService
	exports       service.OrderExportService

	buyer      *model.User
	sellerUser *model.User
	seller     *model.Seller
	backpack   *model.Product
	bottle     *model.Product
}

func setupControllerEnv(t *testing.T) *controllerEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() {
		client.Close()
	})

	userRepo := repository.NewUserRepository(testDB)
	orderRepo := repository.NewOrderRepository(testDB)
	cartRepo := repository.NewCartRepository(testDB)
	sellerRepo := repository.NewSellerRepository(testDB)

	env := &controllerEnv{
		db:         testDB,
		redis:      mr,
		guestCarts: repository.NewGuestCartStore(client, time.Hour),
		gateway:    newFakeGateway(),
	}

	env.notifications = service.NewNotificationService(repository.NewNotificationRepository(testDB), userRepo, nil, mail.LogMailer{})
	env.auth = service.NewAuthService(userRepo, nil, testJWTSecret, 15*time.Minute, time.Hour)
	categoryRepo := repository.NewCategoryRepository(testDB)
	env.products = service.NewProductService(repository.NewProductRepository(testDB), categoryRepo)
	env.categories = service.NewCategoryService(categoryRepo, env.products)
	env.reviews = service.NewReviewService(repository.NewReviewRepository(testDB), env.products)
	env.carts = service.NewCartService(cartRepo, env.products)
	env.guestCartSvc = service.NewGuestCartService(env.products)
	env.merge = service.NewCartMergeService(cartRepo, testDB)
	env.orders = service.NewOrderService(orderRepo, testDB, env.notifications)
	env.payments = service.NewPaymentService(
		repository.NewPaymentRepository(testDB),
		orderRepo,
		userRepo,
		env.gateway,
		testDB,
		env.notifications,
		time.Second,
	)
	env.sellers = service.NewSellerService(sellerRepo, userRepo, env.notifications)
	env.exports = service.NewOrderExportService(orderRepo)

	env.buyer = env.createUser(t, "buyer@example.com", model.RoleBuyer)
	env.sellerUser = env.createUser(t, "seller@example.com", model.RoleSeller)
	env.seller = &model.Seller{UserID: env.sellerUser.ID, BusinessName: "Northwind Supply", Approved: true}
	require.NoError(t, testDB.Create(env.seller).Error)

	env.backpack = env.createProduct(t, "Canvas Backpack", "150.00", 10)
	env.bottle = env.createProduct(t, "Steel Bottle", "80.00", 5)
	return env
}

func (e *controllerEnv) createUser(t *testing.T, email string, role model.UserRole) *model.User {
	t.Helper()
	user := &model.User{
		Email:        email,
		PasswordHash: "hash",
		Name:         "Test User",
		Role:         role,
	}
	require.NoError(t, e.db.Create(user).Error)
	return user
}

func (e *controllerEnv) createProduct(t *testing.T, name, price string, stock int) *model.Product {
	t.Helper()
	sellerID := e.seller.ID
	product := &model.Product{
		SellerID:      &sellerID,
		Name:          name,
		BasePrice:     decimal.RequireFromString(price),
		MinOrder:      1,
		StockQuantity: stock,
		Approved:      true,
	}
	require.NoError(t, e.db.Create(product).Error)
	return product
}

func (e *controllerEnv) buyerPrincipal() model.Principal {
	return model.Buyer{UserID: e.buyer.ID, Email: e.buyer.Email}
}

func (e *controllerEnv) sellerPrincipal() model.Principal {
	return model.SellerPrincipal{UserID: e.sellerUser.ID, Email: e.sellerUser.Email, SellerID: e.seller.ID, Approved: true}
}

// placeOrder checks out backpack x2 and bottle x1 (380.00) for the buyer
func (e *controllerEnv) placeOrder(t *testing.T) *model.Order {
	t.Helper()
	_, err := e.carts.AddToCart(e.buyer.ID, e.backpack.ID, 2)
	require.NoError(t, err)
	_, err = e.carts.AddToCart(e.buyer.ID, e.bottle.ID, 1)
	require.NoError(t, err)
	order, err := e.orders.Checkout(context.Background(), e.buyer.ID)
	require.NoError(t, err)
	return order
}

// withPrincipal stands in for the authentication middleware
func withPrincipal(p model.Principal) gin.HandlerFunc {
	return func(c *gin.Context) {
		if id, ok := model.AccountID(p); ok {
			c.Set(middleware.UserIDKey, id)
		}
		c.Set(middleware.PrincipalKey, p)
		c.Next()
	}
}

// asGuest runs the real optional authentication without a token
func asGuest() gin.HandlerFunc {
	return middleware.NewAuthMiddleware(testJWTSecret, nil, nil).OptionalAuthenticate()
}

func newTestRouter() *gin.Engine {
	return gin.New()
}

func performRequest(router *gin.Engine, method, path string, body interface{}, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		payload, _ := json.Marshal(body)
		reader = bytes.NewReader(payload)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func decodeBody(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	return response
}

type fakeGateway struct {
	mu         sync.Mutex
	session    *gateway.SessionResponse
	sessionErr error
	verify     *gateway.VerifyResponse
	verifyErr  error
	sessions   int
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		session: &gateway.SessionResponse{Token: "tok_123", PaymentURL: "https://pay.example.com/session/tok_123"},
	}
}

func (g *fakeGateway) CreateSession(_ context.Context, _ gateway.SessionRequest) (*gateway.SessionResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessions++
	if g.sessionErr != nil {
		return nil, g.sessionErr
	}
	return g.session, nil
}

func (g *fakeGateway) Verify(_ context.Context, reference string) (*gateway.VerifyResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.verifyErr != nil {
		return nil, g.verifyErr
	}
	resp := *g.verify
	resp.MerchantReference = reference
	return &resp, nil
}

func (g *fakeGateway) verified(status gateway.Status, amount string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	a := decimal.RequireFromString(amount)
	g.verify = &gateway.VerifyResponse{Status: status, Amount: &a, TransactionID: "txn_1"}
}
