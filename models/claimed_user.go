package models

import "time"

// ClaimedUser marks a user who has redeemed a referral reward.
// Membership is permanent — there is no un-claim.
type ClaimedUser struct {
	UserID    string    `gorm:"primaryKey" json:"user_id"`
	ClaimedAt time.Time `json:"claimed_at" gorm:"autoCreateTime"`
}
