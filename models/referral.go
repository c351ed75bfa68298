package models

import (
	"time"

	"gorm.io/gorm"
)

// ReferralStatus reflects where a referral sits in its lifecycle
type ReferralStatus string

const (
	ReferralStatusPending   ReferralStatus = "pending"
	ReferralStatusCompleted ReferralStatus = "completed"
	ReferralStatusRewarded  ReferralStatus = "rewarded"
)

// Referral records a finalized referral: who referred whom, through which code.
// One row is written per successful claim; ReferredID is unique because a user
// can redeem at most one reward, ever.
type Referral struct {
	ID         string `gorm:"primaryKey;type:uuid;default:gen_random_uuid()" json:"id"`
	ReferrerID string `gorm:"index;not null" json:"referrer_id"`
	ReferredID string `gorm:"uniqueIndex;not null" json:"referred_id"`

	ReferralCodeUsed string         `gorm:"not null" json:"referral_code_used"`
	DeviceID         string         `json:"device_id,omitempty"`
	Status           ReferralStatus `gorm:"type:varchar(16);default:'completed'" json:"status"`
	RewardIssued     bool           `gorm:"default:false" json:"reward_issued"`

	Timestamps
}

// Timestamps adds GORM auto-times
type Timestamps struct {
	CreatedAt time.Time      `json:"created_at" gorm:"autoCreateTime"`
	UpdatedAt time.Time      `json:"updated_at" gorm:"autoUpdateTime"`
	DeletedAt gorm.DeletedAt `json:"deleted_at,omitempty" gorm:"index"`
}
