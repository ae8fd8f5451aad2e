package repository

import (
	"testing"

	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/db"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupProductTest(t *testing.T) (*gorm.DB, ProductRepository) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})
	return testDB, NewProductRepository(testDB)
}

func TestProductRepository_Create(t *testing.T) {
	_, repo := setupProductTest(t)

	product := &model.Product{
		Name:          "Kitenge Dress",
		BasePrice:     decimal.RequireFromString("45000.00"),
		StockQuantity: 4,
		ColorOptions:  pq.StringArray{"red", "blue"},
		Approved:      true,
	}

	require.NoError(t, repo.Create(product))
	assert.NotZero(t, product.ID)

	found, err := repo.FindByID(product.ID)
	require.NoError(t, err)
	assert.True(t, product.BasePrice.Equal(found.BasePrice))
	assert.Equal(t, []string{"red", "blue"}, []string(found.ColorOptions))
}

func TestProductRepository_FindWithFilter(t *testing.T) {
	testDB, repo := setupProductTest(t)

	seller := &model.Seller{UserID: 1, BusinessName: "Shop", Approved: true}
	require.NoError(t, testDB.Create(seller).Error)

	products := []model.Product{
		{Name: "Cheap Mug", BasePrice: decimal.NewFromInt(500), Approved: true, SellerID: &seller.ID},
		{Name: "Pricey Lamp", BasePrice: decimal.NewFromInt(9000), Approved: true, IsClearance: true},
		{Name: "Hidden Chair", BasePrice: decimal.NewFromInt(3000), Approved: false, SellerID: &seller.ID},
	}
	require.NoError(t, repo.BulkCreate(products, 10))

	tests := []struct {
		name      string
		filter    ProductFilter
		wantNames []string
		wantTotal int64
	}{
		{
			name:      "approved only, cheapest first",
			filter:    ProductFilter{SortBy: ProductSortPrice, SortAscending: true},
			wantNames: []string{"Cheap Mug", "Pricey Lamp"},
			wantTotal: 2,
		},
		{
			name:      "include hidden for seller",
			filter:    ProductFilter{SellerID: &seller.ID, IncludeHidden: true, SortBy: ProductSortPrice, SortAscending: true},
			wantNames: []string{"Cheap Mug", "Hidden Chair"},
			wantTotal: 2,
		},
		{
			name:      "clearance",
			filter:    ProductFilter{ClearanceOnly: true},
			wantNames: []string{"Pricey Lamp"},
			wantTotal: 1,
		},
		{
			name:      "search",
			filter:    ProductFilter{Search: "Lamp"},
			wantNames: []string{"Pricey Lamp"},
			wantTotal: 1,
		},
		{
			name:      "paged",
			filter:    ProductFilter{SortBy: ProductSortPrice, SortAscending: true, Limit: 1, Offset: 1},
			wantNames: []string{"Pricey Lamp"},
			wantTotal: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, total, err := repo.FindWithFilter(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.wantTotal, total)

			names := make([]string, 0, len(found))
			for _, p := range found {
				names = append(names, p.Name)
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}
}

func TestProductRepository_UpdatePrice(t *testing.T) {
	_, repo := setupProductTest(t)

	product := &model.Product{Name: "Mug", BasePrice: decimal.NewFromInt(500), Approved: true}
	require.NoError(t, repo.Create(product))

	require.NoError(t, repo.UpdatePrice(product.ID, decimal.NewFromInt(750)))

	found, err := repo.FindByID(product.ID)
	require.NoError(t, err)
	assert.True(t, decimal.NewFromInt(750).Equal(found.BasePrice))

	assert.ErrorIs(t, repo.UpdatePrice(999, decimal.NewFromInt(1)), gorm.ErrRecordNotFound)
}

func TestProductRepository_FindByIDs(t *testing.T) {
	_, repo := setupProductTest(t)

	a := &model.Product{Name: "A", BasePrice: decimal.NewFromInt(1)}
	b := &model.Product{Name: "B", BasePrice: decimal.NewFromInt(2)}
	require.NoError(t, repo.Create(a))
	require.NoError(t, repo.Create(b))

	found, err := repo.FindByIDs([]uint{a.ID, b.ID, 999})
	require.NoError(t, err)
	assert.Len(t, found, 2)

	none, err := repo.FindByIDs(nil)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestProductRepository_FindWithFilter_Placement(t *testing.T) {
	testDB, repo := setupProductTest(t)

	bags := &model.Category{Name: "Bags", Slug: "bags"}
	require.NoError(t, testDB.Create(bags).Error)
	totes := &model.SubCategory{CategoryID: bags.ID, Name: "Totes", Slug: "totes"}
	require.NoError(t, testDB.Create(totes).Error)

	was := decimal.NewFromInt(200)
	products := []model.Product{
		{Name: "Canvas Backpack", BasePrice: decimal.NewFromInt(150), InitialPrice: &was, Approved: true, CategoryID: &bags.ID},
		{Name: "Canvas Tote", BasePrice: decimal.NewFromInt(60), Approved: true, CategoryID: &bags.ID, SubCategoryID: &totes.ID, IsHotDeal: true},
		{Name: "Steel Bottle", BasePrice: decimal.NewFromInt(250), InitialPrice: &was, Approved: true},
	}
	require.NoError(t, repo.BulkCreate(products, 10))

	tests := []struct {
		name      string
		filter    ProductFilter
		wantNames []string
	}{
		{"category", ProductFilter{CategoryID: &bags.ID, SortBy: ProductSortPrice, SortAscending: true}, []string{"Canvas Tote", "Canvas Backpack"}},
		{"subcategory", ProductFilter{SubCategoryID: &totes.ID}, []string{"Canvas Tote"}},
		{"discounted ignores a lower initial price", ProductFilter{DiscountedOnly: true}, []string{"Canvas Backpack"}},
		{"hot deals", ProductFilter{HotDealOnly: true}, []string{"Canvas Tote"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			found, _, err := repo.FindWithFilter(tt.filter)
			require.NoError(t, err)
			names := make([]string, 0, len(found))
			for _, p := range found {
				names = append(names, p.Name)
			}
			assert.Equal(t, tt.wantNames, names)
		})
	}

	found, err := repo.FindByID(products[1].ID)
	require.NoError(t, err)
	require.NotNil(t, found.Category)
	require.NotNil(t, found.SubCategory)
	assert.Equal(t, "bags", found.Category.Slug)
	assert.Equal(t, "totes", found.SubCategory.Slug)
}

func TestProductRepository_FindBestSellers(t *testing.T) {
	testDB, repo := setupProductTest(t)

	backpack := &model.Product{Name: "Canvas Backpack", BasePrice: decimal.NewFromInt(150), Approved: true}
	bottle := &model.Product{Name: "Steel Bottle", BasePrice: decimal.NewFromInt(80), Approved: true}
	scarf := &model.Product{Name: "Wool Scarf", BasePrice: decimal.NewFromInt(30), Approved: true, ReviewCount: 4}
	tote := &model.Product{Name: "Canvas Tote", BasePrice: decimal.NewFromInt(60), Approved: true}
	hidden := &model.Product{Name: "Hidden Backpack", BasePrice: decimal.NewFromInt(10), Approved: true}
	for _, p := range []*model.Product{backpack, bottle, scarf, tote, hidden} {
		require.NoError(t, repo.Create(p))
	}
	require.NoError(t, repo.SetApproved(hidden.ID, false))

	sell := func(status model.OrderStatus, product *model.Product, qty int) {
		order := &model.Order{UserID: 1, TotalPrice: decimal.NewFromInt(1), Status: status}
		require.NoError(t, testDB.Create(order).Error)
		require.NoError(t, testDB.Create(&model.OrderItem{
			OrderID: order.ID, ProductID: product.ID, ProductName: product.Name,
			Quantity: qty, UnitPrice: product.BasePrice, Subtotal: product.BasePrice,
		}).Error)
	}
	sell(model.OrderStatusPaid, bottle, 3)
	sell(model.OrderStatusDelivered, bottle, 2)
	sell(model.OrderStatusShipped, backpack, 4)
	sell(model.OrderStatusPending, tote, 50)
	sell(model.OrderStatusPaid, hidden, 99)

	ranked, err := repo.FindBestSellers(10)
	require.NoError(t, err)

	names := make([]string, 0, len(ranked))
	for _, p := range ranked {
		names = append(names, p.Name)
	}
	// bottle 5 sold, backpack 4, then unsold: scarf by reviews, tote newest
	assert.Equal(t, []string{"Steel Bottle", "Canvas Backpack", "Wool Scarf", "Canvas Tote"}, names)

	top, err := repo.FindBestSellers(1)
	require.NoError(t, err)
	require.Len(t, top, 1)
	assert.Equal(t, bottle.ID, top[0].ID)
}
