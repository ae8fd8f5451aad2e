package model

import (
	"fmt"
	"time"
)

// Seller is the storefront profile of a user with the seller role.
// Products of an unapproved seller are never listed.
type Seller struct {
	ID           uint       `gorm:"primarykey" json:"id"`
	UserID       uint       `gorm:"uniqueIndex;not null" json:"user_id"`
	BusinessName string     `gorm:"not null" json:"business_name"`
	Phone        string     `json:"phone"`
	Address      string     `json:"address"`
	Approved     bool       `gorm:"default:false;index" json:"approved"`
	ApprovedAt   *time.Time `json:"approved_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`

	User     User      `gorm:"foreignKey:UserID" json:"-"`
	Products []Product `gorm:"foreignKey:SellerID" json:"products,omitempty"`
}

func (Seller) TableName() string {
	return "sellers"
}

// Approve marks the seller approved. Approving twice is an error so the
// welcome notification goes out once.
func (s *Seller) Approve(now time.Time) ([]Effect, error) {
	if s.Approved {
		return nil, fmt.Errorf("%w: seller %d already approved", ErrInvalidStatusTransition, s.ID)
	}
	s.Approved = true
	s.ApprovedAt = &now
	return []Effect{{Kind: EffectSellerApproved, UserID: s.UserID, SellerID: s.ID}}, nil
}
