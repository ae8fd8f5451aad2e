package repository

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ikkim/marketplace-backend/internal/app/model"
	"github.com/ikkim/marketplace-backend/internal/db"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupPaymentTest(t *testing.T) (*gorm.DB, PaymentRepository, *model.Order) {
	testDB, err := db.SetupTestDB()
	require.NoError(t, err)
	t.Cleanup(func() {
		db.CleanupTestDB(testDB)
	})

	user := &model.User{Email: "payer@example.com", PasswordHash: "hash", Name: "Payer", Role: model.RoleBuyer}
	require.NoError(t, testDB.Create(user).Error)

	order := newTestOrder(user.ID)
	require.NoError(t, testDB.Create(order).Error)

	return testDB, NewPaymentRepository(testDB), order
}

func TestPaymentRepository_CreateAndFind(t *testing.T) {
	_, repo, order := setupPaymentTest(t)

	payment := model.NewPayment(order.UserID, order.ID, order.TotalPrice)
	require.NoError(t, repo.Create(payment))

	byRef, err := repo.FindByReference(payment.Reference)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, byRef.ID)
	assert.True(t, decimal.NewFromInt(2000).Equal(byRef.Amount))

	byOrder, err := repo.FindByOrderID(order.ID)
	require.NoError(t, err)
	assert.Equal(t, payment.ID, byOrder.ID)

	_, err = repo.FindByReference("0-0")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestPaymentRepository_ReferenceIsUnique(t *testing.T) {
	_, repo, order := setupPaymentTest(t)

	require.NoError(t, repo.Create(model.NewPayment(order.UserID, order.ID, order.TotalPrice)))

	err := repo.Create(model.NewPayment(order.UserID, order.ID, order.TotalPrice))
	require.Error(t, err)
	assert.True(t, errors.Is(err, gorm.ErrDuplicatedKey) || strings.Contains(err.Error(), "UNIQUE"))
}

func TestPaymentRepository_SaveSessionOnlyWhilePending(t *testing.T) {
	testDB, repo, order := setupPaymentTest(t)

	payment := model.NewPayment(order.UserID, order.ID, order.TotalPrice)
	require.NoError(t, repo.Create(payment))

	require.NoError(t, repo.SaveSession(payment.ID, "tok-1", "https://pay.example/tok-1"))
	found, err := repo.FindByReference(payment.Reference)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", found.GatewayToken)

	require.NoError(t, testDB.Model(&model.Payment{}).Where("id = ?", payment.ID).
		Update("status", model.PaymentStatusFailed).Error)
	require.NoError(t, repo.SaveSession(payment.ID, "tok-2", "https://pay.example/tok-2"))

	found, err = repo.FindByReference(payment.Reference)
	require.NoError(t, err)
	assert.Equal(t, "tok-1", found.GatewayToken)
}

func TestPaymentRepository_FindPendingBefore(t *testing.T) {
	testDB, repo, order := setupPaymentTest(t)

	payment := model.NewPayment(order.UserID, order.ID, order.TotalPrice)
	require.NoError(t, repo.Create(payment))
	require.NoError(t, testDB.Model(&model.Payment{}).Where("id = ?", payment.ID).
		Update("created_at", time.Now().Add(-time.Hour)).Error)

	stale, err := repo.FindPendingBefore(time.Now().Add(-30*time.Minute), 10)
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, payment.ID, stale[0].ID)

	fresh, err := repo.FindPendingBefore(time.Now().Add(-2*time.Hour), 10)
	require.NoError(t, err)
	assert.Empty(t, fresh)
}
