// services/referral_service.go
package services

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"referral-service/models"
	"referral-service/store"
	"referral-service/token"

	"github.com/google/uuid"
	"github.com/gosimple/slug"
)

const (
	// attributionTTL bounds how long a user has to complete registration
	// after install before the referral lapses.
	attributionTTL = 1 * time.Hour

	// linkTTLMonths is how long a generated referral link stays redeemable.
	linkTTLMonths = 6

	maxCampaignLen  = 50
	defaultCampaign = "general_share"
)

// ReferralService holds the attribution and claim engines. All persisted
// state lives in the injected store; the service never caches entities
// across calls.
type ReferralService struct {
	Store store.Store
	Links DeepLinkProvider
	Audit *AuditLog
}

func NewReferralService(st store.Store, links DeepLinkProvider, audit *AuditLog) *ReferralService {
	return &ReferralService{Store: st, Links: links, Audit: audit}
}

// ClaimResult confirms a finalized claim.
type ClaimResult struct {
	ReferralCode string `json:"referral_code"`
	Message      string `json:"message"`
}

// CreateLink issues a shareable referral link for the owner. An existing
// unexpired link for the same owner is returned as-is rather than minting a
// second code.
func (s *ReferralService) CreateLink(ownerUserID, campaign string) (*models.ReferralLink, error) {
	if strings.TrimSpace(ownerUserID) == "" {
		return nil, newError(ErrInvalidInput, "A valid user ID is required to generate a link.")
	}
	campaign = sanitizeCampaign(campaign)
	now := time.Now().UTC()

	existing, err := s.Store.GetLinkByUser(ownerUserID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("look up link for user: %w", err)
	}
	if existing != nil && !existing.Expired(now) {
		return existing, nil
	}

	for attempt := 0; attempt < maxCodeAttempts; attempt++ {
		code, err := generateCode()
		if err != nil {
			return nil, fmt.Errorf("generate referral code: %w", err)
		}
		link := &models.ReferralLink{
			ID:          uuid.NewString(),
			Code:        code,
			OwnerUserID: ownerUserID,
			Campaign:    campaign,
			ShortURL:    s.Links.ShortURL(code, campaign),
			CreatedAt:   now,
			ExpiresAt:   now.AddDate(0, linkTTLMonths, 0),
		}
		if err := s.Store.AddLink(link); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				continue // code collision, roll again
			}
			return nil, fmt.Errorf("persist referral link: %w", err)
		}
		log.Printf("✅ Created referral link %s for user %s (campaign=%s)", code, ownerUserID, campaign)
		return link, nil
	}
	return nil, newError(ErrConflict, "Could not allocate a unique referral code.")
}

// Attribute matches a new device installation to a referral code. Ordered
// checks, first failure wins; exactly one store write happens on success.
func (s *ReferralService) Attribute(deviceID, referralCode, platform string) (*models.Attribution, error) {
	if strings.TrimSpace(deviceID) == "" || strings.TrimSpace(referralCode) == "" {
		return nil, newError(ErrInvalidInput, "Device ID and referral code are required for attribution.")
	}
	now := time.Now().UTC()

	link, err := s.Store.GetLinkByCode(referralCode)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ErrNotFound, "Referral code not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("look up referral link: %w", err)
	}
	if link.Expired(now) {
		return nil, newError(ErrExpired, "Referral code has expired.")
	}

	existing, err := s.Store.GetAttributionByDevice(deviceID)
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("look up attribution: %w", err)
	}
	if existing != nil {
		if !existing.Expired(now) {
			return nil, newError(ErrAlreadyAttributed, "Device is already attributed to a referral.")
		}
		// Lapsed attribution discovered in passing — clean it up and continue.
		if err := s.Store.RemoveAttribution(deviceID); err != nil {
			return nil, fmt.Errorf("drop expired attribution: %w", err)
		}
	}

	att := &models.Attribution{
		DeviceID:     deviceID,
		ReferralCode: referralCode,
		Platform:     platform,
		Token:        token.Encode(deviceID, referralCode, now),
		AttributedAt: now,
		ExpiresAt:    now.Add(attributionTTL),
	}
	if err := s.Store.AddAttribution(att); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// Lost the insert race to a concurrent attempt for this device.
			return nil, newError(ErrAlreadyAttributed, "Device is already attributed to a referral.")
		}
		return nil, fmt.Errorf("persist attribution: %w", err)
	}

	s.Audit.Record(AuditEvent{Type: "attribution", DeviceID: deviceID, ReferralCode: referralCode, At: now})
	log.Printf("✅ Attributed device %s to code %s (%s)", deviceID, referralCode, platform)
	return att, nil
}

// Claim validates an attribution token end-to-end and finalizes the reward.
// Ordered gates, first failure wins; each maps to a distinct error kind.
func (s *ReferralService) Claim(userID, attributionToken, deviceID string) (*ClaimResult, error) {
	if strings.TrimSpace(userID) == "" || strings.TrimSpace(attributionToken) == "" {
		return nil, newError(ErrInvalidInput, "User ID and attribution token are required.")
	}

	tokenDeviceID, _, _, err := token.Decode(attributionToken)
	if err != nil {
		return nil, newError(ErrInvalidToken, "Attribution token is invalid.")
	}
	if deviceID != "" && deviceID != tokenDeviceID {
		return nil, newError(ErrInvalidToken, "Attribution token does not belong to this device.")
	}
	now := time.Now().UTC()

	att, err := s.Store.GetAttributionByDevice(tokenDeviceID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ErrNotFound, "No attribution found for this token.")
	}
	if err != nil {
		return nil, fmt.Errorf("look up attribution: %w", err)
	}

	// The stored token is the authority: a forged or stale token referencing
	// a real device fails here even though it decoded cleanly.
	if att.Token != attributionToken {
		return nil, newError(ErrInvalidToken, "Attribution token does not match this device.")
	}

	if att.Expired(now) {
		if err := s.Store.RemoveAttribution(att.DeviceID); err != nil {
			return nil, fmt.Errorf("drop expired attribution: %w", err)
		}
		return nil, newError(ErrExpired, "Attribution window has expired.")
	}

	link, err := s.Store.GetLinkByCode(att.ReferralCode)
	if errors.Is(err, store.ErrNotFound) {
		return nil, newError(ErrNotFound, "Referral link no longer exists.")
	}
	if err != nil {
		return nil, fmt.Errorf("look up referral link: %w", err)
	}

	if link.OwnerUserID == userID {
		return nil, newError(ErrSelfReferral, "You cannot redeem your own referral link.")
	}

	claimed, err := s.Store.HasClaimed(userID)
	if err != nil {
		return nil, fmt.Errorf("check claimed set: %w", err)
	}
	if claimed {
		return nil, newError(ErrAlreadyClaimed, "Referral reward has already been claimed.")
	}

	// MarkClaimed decides concurrent double-claims: only the caller that
	// actually inserted the user finalizes.
	inserted, err := s.Store.MarkClaimed(userID)
	if err != nil {
		return nil, fmt.Errorf("mark user claimed: %w", err)
	}
	if !inserted {
		return nil, newError(ErrAlreadyClaimed, "Referral reward has already been claimed.")
	}
	if err := s.Store.RemoveAttribution(att.DeviceID); err != nil {
		log.Printf("⚠️  Failed to remove attribution for device %s after claim: %v", att.DeviceID, err)
	}

	ref := &models.Referral{
		ID:               uuid.NewString(),
		ReferrerID:       link.OwnerUserID,
		ReferredID:       userID,
		ReferralCodeUsed: att.ReferralCode,
		DeviceID:         att.DeviceID,
		Status:           models.ReferralStatusCompleted,
		RewardIssued:     true,
	}
	if err := s.Store.AddReferral(ref); err != nil {
		log.Printf("⚠️  Failed to record referral history for user %s: %v", userID, err)
	}

	s.Audit.Record(AuditEvent{Type: "claim", UserID: userID, DeviceID: att.DeviceID, ReferralCode: att.ReferralCode, At: now})
	log.Printf("✅ Claim finalized for user %s via code %s", userID, att.ReferralCode)
	return &ClaimResult{ReferralCode: att.ReferralCode, Message: "Reward processed successfully."}, nil
}

// ListReferrals returns the claim history for links owned by userID,
// optionally filtered by status.
func (s *ReferralService) ListReferrals(userID, status string) ([]models.Referral, error) {
	if strings.TrimSpace(userID) == "" {
		return nil, newError(ErrInvalidInput, "A valid user ID is required.")
	}
	refs, err := s.Store.ListReferralsByReferrer(userID)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	if status == "" {
		return refs, nil
	}
	out := make([]models.Referral, 0, len(refs))
	for _, ref := range refs {
		if strings.EqualFold(string(ref.Status), status) {
			out = append(out, ref)
		}
	}
	return out, nil
}

// sanitizeCampaign reduces the campaign tag to the allow-listed character set
// (letters, digits, '_', '-') and caps its length. slug handles lowercasing
// and transliteration; anything that sanitizes away falls back to the default
// share tag.
func sanitizeCampaign(campaign string) string {
	cleaned := slug.Make(campaign)
	if len(cleaned) > maxCampaignLen {
		cleaned = cleaned[:maxCampaignLen]
	}
	if cleaned == "" {
		return defaultCampaign
	}
	return cleaned
}
