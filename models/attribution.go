package models

import "time"

// Attribution links a device installation to the referral code that drove it,
// pending reward claim. At most one live attribution exists per device; expired
// entries are removed lazily on next access, never by a background job.
type Attribution struct {
	DeviceID     string    `gorm:"primaryKey" json:"device_id"`
	ReferralCode string    `gorm:"index;not null" json:"referral_code"`
	Platform     string    `gorm:"type:varchar(16)" json:"platform,omitempty"`
	Token        string    `gorm:"not null" json:"token"`
	AttributedAt time.Time `json:"attributed_at"`
	ExpiresAt    time.Time `gorm:"not null" json:"expires_at"`
}

func (a *Attribution) Expired(now time.Time) bool {
	return a.ExpiresAt.Before(now)
}
