package model

import "time"

// MergedGuestSession marks a guest session key whose cart has been folded
// into a user cart. A session key merges at most once.
type MergedGuestSession struct {
	ID         uint      `gorm:"primarykey" json:"id"`
	SessionKey string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"session_key"`
	UserID     uint      `gorm:"not null;index" json:"user_id"`
	CreatedAt  time.Time `json:"created_at"`
}

func (MergedGuestSession) TableName() string {
	return "merged_guest_sessions"
}
