package model

import (
	"time"

	"gorm.io/gorm"
)

// Notification is an effect persisted for the user it concerns
type Notification struct {
	ID        uint           `gorm:"primarykey" json:"id"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`

	UserID uint  `gorm:"not null;index" json:"user_id"`
	User   *User `gorm:"foreignKey:UserID" json:"-"`

	Type    EffectKind `gorm:"type:varchar(50);not null;index" json:"type"`
	Title   string     `gorm:"type:text;not null" json:"title"`
	Content string     `gorm:"type:text;not null" json:"content"`
	Link    string     `gorm:"type:text;not null" json:"link"`

	IsRead bool `gorm:"default:false;index" json:"is_read"`

	RelatedOrderID  *uint `gorm:"index" json:"related_order_id,omitempty"`
	RelatedSellerID *uint `gorm:"index" json:"related_seller_id,omitempty"`
}

func (Notification) TableName() string {
	return "notifications"
}
