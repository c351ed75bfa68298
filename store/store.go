package store

import (
	"errors"

	"referral-service/models"
)

var (
	// ErrNotFound signals that the referenced link, attribution, or referral
	// does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate signals an insert that hit an existing key.
	ErrDuplicate = errors.New("duplicate record")
)

// Stats is a point-in-time count of the store's collections.
type Stats struct {
	Links        int64 `json:"links"`
	Attributions int64 `json:"attributions"`
	ClaimedUsers int64 `json:"claimed_users"`
	Referrals    int64 `json:"referrals"`
}

// Store is the persistence contract shared by the attribution and claim paths.
// Every operation is atomic with respect to concurrent callers on the same key:
// AddAttribution is insert-if-absent (first writer wins), and MarkClaimed
// reports whether the user was newly inserted so callers can decide a
// concurrent double-claim. No operation ever surfaces a partially written
// entity.
type Store interface {
	GetLinkByCode(code string) (*models.ReferralLink, error)
	GetLinkByUser(userID string) (*models.ReferralLink, error)
	AddLink(link *models.ReferralLink) error

	GetAttributionByDevice(deviceID string) (*models.Attribution, error)
	AddAttribution(att *models.Attribution) error
	RemoveAttribution(deviceID string) error

	HasClaimed(userID string) (bool, error)
	MarkClaimed(userID string) (bool, error)

	AddReferral(ref *models.Referral) error
	ListReferralsByReferrer(userID string) ([]models.Referral, error)

	Stats() (Stats, error)
}
