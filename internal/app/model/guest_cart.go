package model

import (
	"github.com/shopspring/decimal"
)

// GuestCart is the session-scoped cart of an unauthenticated visitor.
// It is a plain value: operations return the updated cart and the caller
// is responsible for persisting it back to the session store.
type GuestCart struct {
	SessionKey string     `json:"session_key"`
	Lines      []CartLine `json:"lines"`
}

func NewGuestCart(sessionKey string) GuestCart {
	return GuestCart{SessionKey: sessionKey, Lines: []CartLine{}}
}

// Add increments the existing line for productID or appends a new one priced at unitPrice.
// The returned line reflects the state after the add.
func (c GuestCart) Add(productID uint, quantity int, unitPrice decimal.Decimal) (GuestCart, CartLine) {
	lines := c.cloneLines()
	for i := range lines {
		if lines[i].ProductID == productID {
			lines[i].Quantity += quantity
			c.Lines = lines
			return c, lines[i]
		}
	}

	line := CartLine{ProductID: productID, Quantity: quantity, UnitPrice: unitPrice}
	c.Lines = append(lines, line)
	return c, line
}

// Remove drops the line for productID. Absent products are a no-op.
func (c GuestCart) Remove(productID uint) GuestCart {
	lines := make([]CartLine, 0, len(c.Lines))
	for _, l := range c.Lines {
		if l.ProductID != productID {
			lines = append(lines, l)
		}
	}
	c.Lines = lines
	return c
}

// Line returns the line for productID if present
func (c GuestCart) Line(productID uint) (CartLine, bool) {
	for _, l := range c.Lines {
		if l.ProductID == productID {
			return l, true
		}
	}
	return CartLine{}, false
}

// Cleared returns the same session with no lines
func (c GuestCart) Cleared() GuestCart {
	return NewGuestCart(c.SessionKey)
}

func (c GuestCart) Total() decimal.Decimal {
	return LinesTotal(c.Lines)
}

func (c GuestCart) Count() int {
	return LinesCount(c.Lines)
}

func (c GuestCart) IsEmpty() bool {
	return len(c.Lines) == 0
}

func (c GuestCart) cloneLines() []CartLine {
	lines := make([]CartLine, len(c.Lines))
	copy(lines, c.Lines)
	return lines
}
