package models

import "time"

// ReferralLink is a shareable, expiring code owned by a user.
// Links are immutable once created — the attribution and claim paths only read them.
type ReferralLink struct {
	ID          string    `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	Code        string    `gorm:"uniqueIndex;not null" json:"referral_code"`
	OwnerUserID string    `gorm:"index;not null" json:"owner_user_id"`
	Campaign    string    `gorm:"size:50" json:"campaign,omitempty"`
	ShortURL    string    `gorm:"type:text" json:"short_url"`
	CreatedAt   time.Time `json:"created_at" gorm:"autoCreateTime"`
	ExpiresAt   time.Time `gorm:"not null" json:"expires_at"`
}

func (l *ReferralLink) Expired(now time.Time) bool {
	return l.ExpiresAt.Before(now)
}
