package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/app/repository"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type orderFixture struct {
	db         *gorm.DB
	orders     OrderService
	carts      CartService
	products   ProductService
	dispatcher *recordingDispatcher
	buyer      *model.User
	sellerUser *model.User
	seller     *model.Seller
	backpack   *model.Product
	bottle     *model.Product
}

func newOrderFixture(t *testing.T) *orderFixture {
	testDB := setupServiceDB(t)
	dispatcher := &recordingDispatcher{}
	products := NewProductService(repository.NewProductRepository(testDB), repository.NewCategoryRepository(testDB))

	f := &orderFixture{
		db:         testDB,
		orders:     NewOrderService(repository.NewOrderRepository(testDB), testDB, dispatcher),
		carts:      NewCartService(repository.NewCartRepository(testDB), products),
		products:   products,
		dispatcher: dispatcher,
		buyer:      seedUser(t, testDB, "buyer@example.com", model.RoleBuyer),
	}
	f.sellerUser, f.seller = seedSeller(t, testDB, "seller@example.com", true)
	f.backpack = seedProduct(t, testDB, f.seller.ID, "Canvas Backpack", "150.00", 10)
	f.bottle = seedProduct(t, testDB, f.seller.ID, "Canvas Tote", "80.00", 10)
	return f
}

func (f *orderFixture) placeOrder(t *testing.T) *model.Order {
	t.Helper()
	_, err := f.carts.AddToCart(f.buyer.ID, f.backpack.ID, 2)
	require.NoError(t, err)
	_, err = f.carts.AddToCart(f.buyer.ID, f.bottle.ID, 1)
	require.NoError(t, err)

	order, err := f.orders.Checkout(context.Background(), f.buyer.ID)
	require.NoError(t, err)
	return order
}

func TestOrderService_Checkout(t *testing.T) {
	f := newOrderFixture(t)
	order := f.placeOrder(t)

	assert.NotZero(t, order.ID)
	assert.Equal(t, model.OrderStatusPending, order.Status)
	assert.True(t, order.TotalPrice.Equal(decimal.RequireFromString("380.00")))
	require.Len(t, order.OrderItems, 2)
	assert.Equal(t, "Canvas Backpack", order.OrderItems[0].ProductName)
	assert.True(t, order.OrderItems[0].Subtotal.Equal(decimal.RequireFromString("300.00")))

	cart, err := f.carts.GetCart(f.buyer.ID)
	require.NoError(t, err)
	assert.True(t, cart.IsEmpty())

	var events []model.OutboxEvent
	require.NoError(t, f.db.Find(&events).Error)
	require.Len(t, events, 1)
	assert.Equal(t, model.EventOrderCreated, events[0].EventType)
	assert.Equal(t, order.ID, events[0].AggregateID)

	var payload orderCreatedPayload
	require.NoError(t, json.Unmarshal([]byte(events[0].Payload), &payload))
	assert.Equal(t, f.buyer.ID, payload.UserID)
	assert.True(t, payload.Total.Equal(order.TotalPrice))

	assert.Equal(t, []model.EffectKind{model.EffectOrderConfirmed}, f.dispatcher.kinds())
}

func TestOrderService_CheckoutEmptyCart(t *testing.T) {
	f := newOrderFixture(t)

	// no cart row at all
	_, err := f.orders.Checkout(context.Background(), f.buyer.ID)
	assert.ErrorIs(t, err, ErrEmptyCart)

	// cart row without lines
	_, err = f.carts.GetOrCreateCart(f.buyer.ID)
	require.NoError(t, err)
	_, err = f.orders.Checkout(context.Background(), f.buyer.ID)
	assert.ErrorIs(t, err, ErrEmptyCart)

	var orders int64
	require.NoError(t, f.db.Model(&model.Order{}).Count(&orders).Error)
	assert.Zero(t, orders)
	assert.Empty(t, f.dispatcher.kinds())
}

// A failure after the order row is written leaves no order behind and the cart intact.
func TestOrderService_CheckoutRollsBack(t *testing.T) {
	f := newOrderFixture(t)
	_, err := f.carts.AddToCart(f.buyer.ID, f.backpack.ID, 2)
	require.NoError(t, err)
	_, err = f.carts.AddToCart(f.buyer.ID, f.bottle.ID, 1)
	require.NoError(t, err)

	outboxDown := errors.New("outbox unavailable")
	require.NoError(t, f.db.Callback().Create().Before("gorm:create").Register("test:fail_outbox", func(tx *gorm.DB) {
		if tx.Statement.Table == "outbox_events" {
			tx.AddError(outboxDown)
		}
	}))

	order, err := f.orders.Checkout(context.Background(), f.buyer.ID)
	assert.ErrorIs(t, err, outboxDown)
	assert.Nil(t, order)

	var orders, items, events int64
	require.NoError(t, f.db.Model(&model.Order{}).Count(&orders).Error)
	require.NoError(t, f.db.Model(&model.OrderItem{}).Count(&items).Error)
	require.NoError(t, f.db.Model(&model.OutboxEvent{}).Count(&events).Error)
	assert.Zero(t, orders)
	assert.Zero(t, items)
	assert.Zero(t, events)

	cart, err := f.carts.GetCart(f.buyer.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	quantities := map[uint]int{}
	for _, item := range cart.Items {
		quantities[item.ProductID] = item.Quantity
	}
	assert.Equal(t, map[uint]int{f.backpack.ID: 2, f.bottle.ID: 1}, quantities)
	assert.True(t, cart.Total().Equal(decimal.RequireFromString("380.00")))
	assert.Empty(t, f.dispatcher.kinds())

	// the same cart checks out once the outbox recovers
	require.NoError(t, f.db.Callback().Create().Remove("test:fail_outbox"))
	order, err = f.orders.Checkout(context.Background(), f.buyer.ID)
	require.NoError(t, err)
	assert.True(t, order.TotalPrice.Equal(decimal.RequireFromString("380.00")))
}

func TestOrderService_OrderIsSnapshot(t *testing.T) {
	f := newOrderFixture(t)
	order := f.placeOrder(t)

	_, err := f.products.UpdatePrice(sellerPrincipal(f.sellerUser, f.seller), f.backpack.ID, decimal.RequireFromString("999.00"))
	require.NoError(t, err)
	require.NoError(t, f.db.Model(&model.Product{}).Where("id = ?", f.backpack.ID).Update("name", "Renamed Backpack").Error)

	reloaded, err := f.orders.GetOrderByID(f.buyer.ID, order.ID)
	require.NoError(t, err)
	assert.True(t, reloaded.TotalPrice.Equal(decimal.RequireFromString("380.00")))
	assert.True(t, reloaded.ItemsTotal().Equal(reloaded.TotalPrice))
	for _, item := range reloaded.OrderItems {
		if item.ProductID == f.backpack.ID {
			assert.Equal(t, "Canvas Backpack", item.ProductName)
			assert.True(t, item.UnitPrice.Equal(decimal.RequireFromString("150.00")))
		}
	}
}

func TestOrderService_GetOrders(t *testing.T) {
	f := newOrderFixture(t)
	order := f.placeOrder(t)
	other := seedUser(t, f.db, "other@example.com", model.RoleBuyer)

	orders, err := f.orders.GetUserOrders(f.buyer.ID)
	require.NoError(t, err)
	require.Len(t, orders, 1)
	assert.Equal(t, order.ID, orders[0].ID)

	orders, err = f.orders.GetUserOrders(other.ID)
	require.NoError(t, err)
	assert.Empty(t, orders)

	_, err = f.orders.GetOrderByID(other.ID, order.ID)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	_, err = f.orders.GetOrderByID(f.buyer.ID, 9999)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderService_UpdateOrderStatus(t *testing.T) {
	f := newOrderFixture(t)
	order := f.placeOrder(t)
	ctx := context.Background()
	admin := model.Admin{UserID: 99, Email: "admin@example.com"}

	// pending orders cannot ship
	_, err := f.orders.UpdateOrderStatus(ctx, admin, order.ID, model.OrderStatusShipped)
	assert.ErrorIs(t, err, model.ErrInvalidStatusTransition)

	// paid only comes from a verified payment
	_, err = f.orders.UpdateOrderStatus(ctx, admin, order.ID, model.OrderStatusPaid)
	assert.ErrorIs(t, err, model.ErrInvalidStatusTransition)

	require.NoError(t, f.db.Model(&model.Order{}).Where("id = ?", order.ID).Update("status", model.OrderStatusPaid).Error)

	shipped, err := f.orders.UpdateOrderStatus(ctx, sellerPrincipal(f.sellerUser, f.seller), order.ID, model.OrderStatusShipped)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusShipped, shipped.Status)
	assert.NotNil(t, shipped.ShippedAt)

	delivered, err := f.orders.UpdateOrderStatus(ctx, admin, order.ID, model.OrderStatusDelivered)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusDelivered, delivered.Status)

	_, err = f.orders.UpdateOrderStatus(ctx, admin, order.ID, model.OrderStatusShipped)
	assert.ErrorIs(t, err, model.ErrInvalidStatusTransition)

	assert.Equal(t, []model.EffectKind{
		model.EffectOrderConfirmed,
		model.EffectOrderShipped,
		model.EffectOrderDelivered,
	}, f.dispatcher.kinds())
}

func TestOrderService_UpdateOrderStatusPermissions(t *testing.T) {
	f := newOrderFixture(t)
	order := f.placeOrder(t)
	require.NoError(t, f.db.Model(&model.Order{}).Where("id = ?", order.ID).Update("status", model.OrderStatusPaid).Error)

	otherUser, otherSeller := seedSeller(t, f.db, "other-seller@example.com", true)
	pendingUser, pendingSeller := seedSeller(t, f.db, "pending-seller@example.com", false)

	tests := []struct {
		name    string
		actor   model.Principal
		wantErr error
	}{
		{name: "buyer", actor: model.Buyer{UserID: f.buyer.ID, Email: f.buyer.Email}, wantErr: ErrOrderAccessDenied},
		{name: "guest", actor: model.Guest{SessionKey: "session-1"}, wantErr: ErrOrderAccessDenied},
		{name: "seller without products in order", actor: sellerPrincipal(otherUser, otherSeller), wantErr: ErrOrderAccessDenied},
		{name: "unapproved seller", actor: sellerPrincipal(pendingUser, pendingSeller), wantErr: ErrSellerNotApproved},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.orders.UpdateOrderStatus(context.Background(), tt.actor, order.ID, model.OrderStatusShipped)
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}

	_, err := f.orders.UpdateOrderStatus(context.Background(), model.Admin{UserID: 1}, 9999, model.OrderStatusShipped)
	assert.ErrorIs(t, err, ErrOrderNotFound)

	reloaded, err := f.orders.GetOrderByID(f.buyer.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, reloaded.Status)
}

func TestOrderService_UpdateOrderStatusHonoursContext(t *testing.T) {
	f := newOrderFixture(t)
	order := f.placeOrder(t)
	require.NoError(t, f.db.Model(&model.Order{}).Where("id = ?", order.ID).Update("status", model.OrderStatusPaid).Error)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.orders.UpdateOrderStatus(ctx, sellerPrincipal(f.sellerUser, f.seller), order.ID, model.OrderStatusShipped)
	assert.ErrorIs(t, err, context.Canceled)

	reloaded, err := f.orders.GetOrderByID(f.buyer.ID, order.ID)
	require.NoError(t, err)
	assert.Equal(t, model.OrderStatusPaid, reloaded.Status)
}
