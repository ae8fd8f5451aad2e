package service

import (
	"context"
	"testing"

	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/app/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCartMergeService_Merge(t *testing.T) {
	testDB := setupServiceDB(t)
	cartRepo := repository.NewCartRepository(testDB)
	cartService := NewCartService(cartRepo, NewProductService(repository.NewProductRepository(testDB), repository.NewCategoryRepository(testDB)))
	mergeService := NewCartMergeService(cartRepo, testDB)

	buyer := seedUser(t, testDB, "buyer@example.com", model.RoleBuyer)
	_, seller := seedSeller(t, testDB, "seller@example.com", true)
	backpack := seedProduct(t, testDB, seller.ID, "Canvas Backpack", "150.00", 10)
	bottle := seedProduct(t, testDB, seller.ID, "Canvas Tote", "80.00", 10)

	_, err := cartService.AddToCart(buyer.ID, backpack.ID, 1)
	require.NoError(t, err)

	guest := model.NewGuestCart("session-1")
	// the guest saw a different price for the backpack earlier
	guest, _ = guest.Add(backpack.ID, 2, decimal.RequireFromString("140.00"))
	guest, _ = guest.Add(bottle.ID, 1, decimal.RequireFromString("80.00"))

	merged, cleared, err := mergeService.Merge(context.Background(), guest, buyer.ID)
	require.NoError(t, err)
	assert.True(t, cleared.IsEmpty())
	assert.Equal(t, "session-1", cleared.SessionKey)
	assert.Len(t, guest.Lines, 2, "input guest cart must not change")

	require.Len(t, merged.Items, 2)
	byProduct := map[uint]model.CartItem{}
	for _, item := range merged.Items {
		byProduct[item.ProductID] = item
	}
	assert.Equal(t, 3, byProduct[backpack.ID].Quantity)
	assert.True(t, byProduct[backpack.ID].UnitPrice.Equal(decimal.RequireFromString("150.00")))
	assert.Equal(t, 1, byProduct[bottle.ID].Quantity)
	assert.True(t, merged.Total().Equal(decimal.RequireFromString("530.00")))
}

func TestCartMergeService_MergeCreatesCart(t *testing.T) {
	testDB := setupServiceDB(t)
	cartRepo := repository.NewCartRepository(testDB)
	mergeService := NewCartMergeService(cartRepo, testDB)

	buyer := seedUser(t, testDB, "buyer@example.com", model.RoleBuyer)
	_, seller := seedSeller(t, testDB, "seller@example.com", true)
	backpack := seedProduct(t, testDB, seller.ID, "Canvas Backpack", "150.00", 10)

	guest, _ := model.NewGuestCart("session-1").Add(backpack.ID, 2, decimal.RequireFromString("150.00"))

	merged, _, err := mergeService.Merge(context.Background(), guest, buyer.ID)
	require.NoError(t, err)
	assert.NotZero(t, merged.ID)
	require.Len(t, merged.Items, 1)
	assert.Equal(t, 2, merged.Items[0].Quantity)
}

func TestCartMergeService_MergeEmptyGuestCart(t *testing.T) {
	testDB := setupServiceDB(t)
	cartRepo := repository.NewCartRepository(testDB)
	mergeService := NewCartMergeService(cartRepo, testDB)

	buyer := seedUser(t, testDB, "buyer@example.com", model.RoleBuyer)

	merged, cleared, err := mergeService.Merge(context.Background(), model.NewGuestCart("session-1"), buyer.ID)
	require.NoError(t, err)
	assert.Zero(t, merged.ID)
	assert.Empty(t, merged.Items)
	assert.True(t, cleared.IsEmpty())

	var carts int64
	require.NoError(t, testDB.Model(&model.Cart{}).Count(&carts).Error)
	assert.Zero(t, carts)
}

func TestCartMergeService_MergeTwiceWithClearedCart(t *testing.T) {
	testDB := setupServiceDB(t)
	cartRepo := repository.NewCartRepository(testDB)
	mergeService := NewCartMergeService(cartRepo, testDB)

	buyer := seedUser(t, testDB, "buyer@example.com", model.RoleBuyer)
	_, seller := seedSeller(t, testDB, "seller@example.com", true)
	backpack := seedProduct(t, testDB, seller.ID, "Canvas Backpack", "150.00", 10)

	guest, _ := model.NewGuestCart("session-1").Add(backpack.ID, 2, decimal.RequireFromString("150.00"))

	_, cleared, err := mergeService.Merge(context.Background(), guest, buyer.ID)
	require.NoError(t, err)

	merged, _, err := mergeService.Merge(context.Background(), cleared, buyer.ID)
	require.NoError(t, err)
	require.Len(t, merged.Items, 1)
	assert.Equal(t, 2, merged.Items[0].Quantity)
}

func TestCartMergeService_MergeSameSessionOnce(t *testing.T) {
	testDB := setupServiceDB(t)
	cartRepo := repository.NewCartRepository(testDB)
	mergeService := NewCartMergeService(cartRepo, testDB)

	buyer := seedUser(t, testDB, "buyer@example.com", model.RoleBuyer)
	_, seller := seedSeller(t, testDB, "seller@example.com", true)
	backpack := seedProduct(t, testDB, seller.ID, "Canvas Backpack", "150.00", 10)

	// the stored guest cart was never deleted, so the same lines come back
	guest, _ := model.NewGuestCart("session-1").Add(backpack.ID, 2, decimal.RequireFromString("150.00"))

	first, _, err := mergeService.Merge(context.Background(), guest, buyer.ID)
	require.NoError(t, err)
	require.Len(t, first.Items, 1)

	again, cleared, err := mergeService.Merge(context.Background(), guest, buyer.ID)
	require.NoError(t, err)
	assert.True(t, cleared.IsEmpty())
	require.Len(t, again.Items, 1)
	assert.Equal(t, 2, again.Items[0].Quantity)
	assert.True(t, again.Total().Equal(decimal.RequireFromString("300.00")))

	var markers []model.MergedGuestSession
	require.NoError(t, testDB.Find(&markers).Error)
	require.Len(t, markers, 1)
	assert.Equal(t, "session-1", markers[0].SessionKey)
	assert.Equal(t, buyer.ID, markers[0].UserID)
}

func TestCartMergeService_MergedSessionForOtherUser(t *testing.T) {
	testDB := setupServiceDB(t)
	cartRepo := repository.NewCartRepository(testDB)
	mergeService := NewCartMergeService(cartRepo, testDB)

	first := seedUser(t, testDB, "first@example.com", model.RoleBuyer)
	second := seedUser(t, testDB, "second@example.com", model.RoleBuyer)
	_, seller := seedSeller(t, testDB, "seller@example.com", true)
	backpack := seedProduct(t, testDB, seller.ID, "Canvas Backpack", "150.00", 10)

	guest, _ := model.NewGuestCart("session-1").Add(backpack.ID, 1, decimal.RequireFromString("150.00"))

	_, _, err := mergeService.Merge(context.Background(), guest, first.ID)
	require.NoError(t, err)

	merged, _, err := mergeService.Merge(context.Background(), guest, second.ID)
	require.NoError(t, err)
	assert.Empty(t, merged.Items)
	assert.Zero(t, merged.ID)
}
