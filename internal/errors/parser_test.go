package errors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"
)

func TestParseError(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		context string
		code    string
		message string
	}{
		{"record not found", gorm.ErrRecordNotFound, "get order", ResourceNotFound, "Order not found"},
		{"wrapped not found", fmt.Errorf("load: %w", gorm.ErrRecordNotFound), "product", ResourceNotFound, "Product not found"},
		{"duplicate email", errors.New(`duplicate key value violates unique constraint "idx_users_email"`), "create user", AuthEmailAlreadyExists, "Email is already registered"},
		{"duplicate reference", errors.New("UNIQUE constraint failed: payments.reference"), "create payment", PaymentDuplicate, "A payment for this order already exists"},
		{"translated duplicate", gorm.ErrDuplicatedKey, "create", ResourceAlreadyExists, "Data already exists"},
		{"timeout", errors.New("dial tcp: i/o timeout"), "", InternalExternalAPI, "An external service is unreachable. Please try again later"},
		{"unknown", errors.New("pq: something odd"), "update price", InternalServerError, "Failed to update. Please try again later"},
		{"nil", nil, "", InternalServerError, "Something went wrong. Please try again later"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			info := ParseError(tt.err, tt.context)
			assert.Equal(t, tt.code, info.Code)
			assert.Equal(t, tt.message, info.Message)
		})
	}
}
