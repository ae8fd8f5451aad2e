package service

import (
	"context"
	"sync"
	"testing"

	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/db"
	"github.com/ikkim/marketplace-backend/pkg/payment/gateway"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupServiceDB(t *testing.T) *gorm.DB {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})
	return testDB
}

func seedUser(t *testing.T, testDB *gorm.DB, email string, role model.UserRole) *model.User {
	t.Helper()
	user := &model.User{
		Email:        email,
		PasswordHash: "hash",
		Name:         "Test User",
		Role:         role,
	}
	require.NoError(t, testDB.Create(user).Error)
	return user
}

func seedSeller(t *testing.T, testDB *gorm.DB, email string, approved bool) (*model.User, *model.Seller) {
	t.Helper()
	user := seedUser(t, testDB, email, model.RoleSeller)
	seller := &model.Seller{
		UserID:       user.ID,
		BusinessName: "Northwind Supply",
		Approved:     approved,
	}
	require.NoError(t, testDB.Create(seller).Error)
	return user, seller
}

func seedProduct(t *testing.T, testDB *gorm.DB, sellerID uint, name, price string, stock int) *model.Product {
	t.Helper()
	id := sellerID
	product := &model.Product{
		SellerID:      &id,
		Name:          name,
		BasePrice:     decimal.RequireFromString(price),
		MinOrder:      1,
		StockQuantity: stock,
		Approved:      true,
	}
	require.NoError(t, testDB.Create(product).Error)
	return product
}

func sellerPrincipal(user *model.User, seller *model.Seller) model.SellerPrincipal {
	return model.SellerPrincipal{
		UserID:   user.ID,
		Email:    user.Email,
		SellerID: seller.ID,
		Approved: seller.Approved,
	}
}

type recordingDispatcher struct {
	mu      sync.Mutex
	effects []model.Effect
}

func (d *recordingDispatcher) Dispatch(_ context.Context, effects ...model.Effect) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.effects = append(d.effects, effects...)
}

func (d *recordingDispatcher) kinds() []model.EffectKind {
	d.mu.Lock()
	defer d.mu.Unlock()
	kinds := make([]model.EffectKind, 0, len(d.effects))
	for _, e := range d.effects {
		kinds = append(kinds, e.Kind)
	}
	return kinds
}

type fakeGateway struct {
	mu           sync.Mutex
	session      *gateway.SessionResponse
	sessionErr   error
	verify       *gateway.VerifyResponse
	verifyErr    error
	sessionCalls []gateway.SessionRequest
	verifyCalls  []string
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{
		session: &gateway.SessionResponse{Token: "tok_123", PaymentURL: "https://pay.example.com/session/tok_123"},
	}
}

func (g *fakeGateway) CreateSession(_ context.Context, req gateway.SessionRequest) (*gateway.SessionResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.sessionCalls = append(g.sessionCalls, req)
	if g.sessionErr != nil {
		return nil, g.sessionErr
	}
	return g.session, nil
}

func (g *fakeGateway) Verify(_ context.Context, reference string) (*gateway.VerifyResponse, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.verifyCalls = append(g.verifyCalls, reference)
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
	resp := &gateway.VerifyResponse{Status: status, TransactionID: "txn_1"}
	if amount != "" {
		a := decimal.RequireFromString(amount)
		resp.Amount = &a
	}
	g.verify = resp
}

func (g *fakeGateway) verifyCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.verifyCalls)
}
