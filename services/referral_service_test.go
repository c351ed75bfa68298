package services

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"referral-service/models"
	"referral-service/store"
	"referral-service/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestService() (*ReferralService, *store.Memory) {
	mem := store.NewMemory()
	svc := NewReferralService(mem, NewMockDeepLinkProvider(""), NewAuditLog(100))
	return svc, mem
}

// seedExpiredAttribution plants an attribution whose window already lapsed,
// with a token that still cross-checks verbatim.
func seedExpiredAttribution(t *testing.T, mem *store.Memory, deviceID, code string) string {
	t.Helper()
	issuedAt := time.Now().UTC().Add(-2 * time.Hour)
	tok := token.Encode(deviceID, code, issuedAt)
	require.NoError(t, mem.AddAttribution(&models.Attribution{
		DeviceID:     deviceID,
		ReferralCode: code,
		Token:        tok,
		AttributedAt: issuedAt,
		ExpiresAt:    issuedAt.Add(time.Hour),
	}))
	return tok
}

// --- CreateLink ---

func TestCreateLinkGeneratesCodeAndShortURL(t *testing.T) {
	svc, _ := newTestService()

	link, err := svc.CreateLink("U1", "promo")
	require.NoError(t, err)

	assert.Len(t, link.Code, codeLength)
	for _, r := range link.Code {
		assert.Contains(t, codeAlphabet, string(r))
	}
	assert.Equal(t, "U1", link.OwnerUserID)
	assert.Contains(t, link.ShortURL, link.Code)
	assert.Contains(t, link.ShortURL, "utm_source=promo")
	assert.True(t, link.ExpiresAt.After(link.CreatedAt))
	assert.True(t, link.ExpiresAt.After(time.Now().UTC().AddDate(0, 5, 0)))
}

func TestCreateLinkRequiresUserID(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.CreateLink("  ", "promo")
	assert.Equal(t, ErrInvalidInput, KindOf(err))
}

func TestCreateLinkIsIdempotentPerUser(t *testing.T) {
	svc, _ := newTestService()

	first, err := svc.CreateLink("U1", "promo")
	require.NoError(t, err)
	second, err := svc.CreateLink("U1", "other")
	require.NoError(t, err)

	assert.Equal(t, first.Code, second.Code)
}

func TestCreateLinkSanitizesCampaign(t *testing.T) {
	svc, _ := newTestService()

	link, err := svc.CreateLink("U1", "Summer Promo!! 2026")
	require.NoError(t, err)
	assert.Equal(t, "summer-promo-2026", link.Campaign)

	link2, err := svc.CreateLink("U2", "")
	require.NoError(t, err)
	assert.Equal(t, defaultCampaign, link2.Campaign)

	link3, err := svc.CreateLink("U3", strings.Repeat("x", 200))
	require.NoError(t, err)
	assert.LessOrEqual(t, len(link3.Campaign), maxCampaignLen)
}

// --- Attribute ---

func TestAttributeIssuesTokenAndExpiry(t *testing.T) {
	svc, _ := newTestService()

	link, err := svc.CreateLink("U1", "promo")
	require.NoError(t, err)

	att, err := svc.Attribute("D1", link.Code, "ios")
	require.NoError(t, err)

	assert.Equal(t, "D1", att.DeviceID)
	assert.Equal(t, link.Code, att.ReferralCode)
	assert.Equal(t, "ios", att.Platform)
	assert.True(t, att.ExpiresAt.Equal(att.AttributedAt.Add(time.Hour)))

	deviceID, code, issuedAt, err := token.Decode(att.Token)
	require.NoError(t, err)
	assert.Equal(t, "D1", deviceID)
	assert.Equal(t, link.Code, code)
	assert.True(t, issuedAt.Equal(att.AttributedAt))
}

func TestAttributeRequiresDeviceAndCode(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Attribute("", "KXQ2M7PW", "ios")
	assert.Equal(t, ErrInvalidInput, KindOf(err))

	_, err = svc.Attribute("D1", "  ", "ios")
	assert.Equal(t, ErrInvalidInput, KindOf(err))
}

func TestAttributeUnknownCode(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Attribute("D2", "ZZZZZZZ", "android")
	assert.Equal(t, ErrNotFound, KindOf(err))
}

func TestAttributeExpiredLink(t *testing.T) {
	svc, mem := newTestService()

	past := time.Now().UTC().Add(-time.Minute)
	require.NoError(t, mem.AddLink(&models.ReferralLink{
		ID:          "l1",
		Code:        "OLDCODE1",
		OwnerUserID: "U1",
		CreatedAt:   past.AddDate(0, -6, 0),
		ExpiresAt:   past,
	}))

	_, err := svc.Attribute("D1", "OLDCODE1", "ios")
	assert.Equal(t, ErrExpired, KindOf(err))
}

func TestAttributeRejectsSecondAttempt(t *testing.T) {
	svc, _ := newTestService()

	link, err := svc.CreateLink("U1", "promo")
	require.NoError(t, err)
	link2, err := svc.CreateLink("U2", "promo")
	require.NoError(t, err)

	_, err = svc.Attribute("D1", link.Code, "ios")
	require.NoError(t, err)

	_, err = svc.Attribute("D1", link.Code, "ios")
	assert.Equal(t, ErrAlreadyAttributed, KindOf(err))

	// a different code does not help
	_, err = svc.Attribute("D1", link2.Code, "ios")
	assert.Equal(t, ErrAlreadyAttributed, KindOf(err))
}

func TestAttributeReplacesExpiredAttribution(t *testing.T) {
	svc, mem := newTestService()

	link, err := svc.CreateLink("U1", "promo")
	require.NoError(t, err)
	seedExpiredAttribution(t, mem, "D1", link.Code)

	att, err := svc.Attribute("D1", link.Code, "ios")
	require.NoError(t, err)
	assert.False(t, att.Expired(time.Now().UTC()))
}

func TestAttributeConcurrentDuplicatesExactlyOneSuccess(t *testing.T) {
	svc, _ := newTestService()

	link, err := svc.CreateLink("U1", "promo")
	require.NoError(t, err)

	const callers = 20
	var successes, alreadyAttributed atomic.Int64
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Attribute("D1", link.Code, "ios")
			switch {
			case err == nil:
				successes.Add(1)
			case KindOf(err) == ErrAlreadyAttributed:
				alreadyAttributed.Add(1)
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, int64(1), successes.Load())
	assert.Equal(t, int64(callers-1), alreadyAttributed.Load())
}

// --- Claim ---

func TestClaimHappyPathScenario(t *testing.T) {
	svc, mem := newTestService()

	link, err := svc.CreateLink("U1", "promo")
	require.NoError(t, err)

	att, err := svc.Attribute("D1", link.Code, "ios")
	require.NoError(t, err)

	result, err := svc.Claim("U2", att.Token, "D1")
	require.NoError(t, err)
	assert.Equal(t, link.Code, result.ReferralCode)
	assert.NotEmpty(t, result.Message)

	// attribution is consumed
	_, err = mem.GetAttributionByDevice("D1")
	assert.ErrorIs(t, err, store.ErrNotFound)

	// claim history recorded for the referrer
	refs, err := svc.ListReferrals("U1", "")
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "U2", refs[0].ReferredID)
	assert.Equal(t, link.Code, refs[0].ReferralCodeUsed)
	assert.Equal(t, models.ReferralStatusCompleted, refs[0].Status)
	assert.True(t, refs[0].RewardIssued)
}

func TestClaimGarbageToken(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Claim("U2", "garbage", "")
	assert.Equal(t, ErrInvalidToken, KindOf(err))
}

func TestClaimRequiresUserAndToken(t *testing.T) {
	svc, _ := newTestService()

	_, err := svc.Claim("", "rt1.whatever", "")
	assert.Equal(t, ErrInvalidInput, KindOf(err))

	_, err = svc.Claim("U2", "", "")
	assert.Equal(t, ErrInvalidInput, KindOf(err))
}

func TestClaimUnknownDevice(t *testing.T) {
	svc, _ := newTestService()

	tok := token.Encode("D-ghost", "KXQ2M7PW", time.Now().UTC())
	_, err := svc.Claim("U2", tok, "")
	assert.Equal(t, ErrNotFound, KindOf(err))
}

func TestClaimStaleTokenAfterReplacement(t *testing.T) {
	svc, _ := newTestService()

	link, err := svc.CreateLink("U1", "promo")
	require.NoError(t, err)
	att, err := svc.Attribute("D1", link.Code, "ios")
	require.NoError(t, err)

	// a token naming the right device but not matching the stored one
	stale := token.Encode("D1", link.Code, att.AttributedAt.Add(-time.Minute))
	_, err = svc.Claim("U2", stale, "")
	assert.Equal(t, ErrInvalidToken, KindOf(err))
}

func TestClaimDeviceIDMismatch(t *testing.T) {
	svc, _ := newTestService()

	link, err := svc.CreateLink("U1", "promo")
	require.NoError(t, err)
	att, err := svc.Attribute("D1", link.Code, "ios")
	require.NoError(t, err)

	_, err = svc.Claim("U2", att.Token, "D-other")
	assert.Equal(t, ErrInvalidToken, KindOf(err))
}

func TestClaimExpiredAttributionRemovedLazily(t *testing.T) {
	svc, mem := newTestService()

	link, err := svc.CreateLink("U1", "promo")
	require.NoError(t, err)
	tok := seedExpiredAttribution(t, mem, "D1", link.Code)

	_, err = svc.Claim("U2", tok, "D1")
	assert.Equal(t, ErrExpired, KindOf(err))

	// the lapsed attribution was cleaned up, so a retry no longer finds it
	_, err = svc.Claim("U2", tok, "D1")
	assert.Equal(t, ErrNotFound, KindOf(err))
}

func TestClaimMissingLinkIsDataIntegrityFailure(t *testing.T) {
	svc, mem := newTestService()

	issuedAt := time.Now().UTC()
	tok := token.Encode("D1", "GONECODE", issuedAt)
	require.NoError(t, mem.AddAttribution(&models.Attribution{
		DeviceID:     "D1",
		ReferralCode: "GONECODE",
		Token:        tok,
		AttributedAt: issuedAt,
		ExpiresAt:    issuedAt.Add(time.Hour),
	}))

	_, err := svc.Claim("U2", tok, "")
	assert.Equal(t, ErrNotFound, KindOf(err))
}

func TestClaimSelfReferral(t *testing.T) {
	svc, _ := newTestService()

	link, err := svc.CreateLink("U1", "promo")
	require.NoError(t, err)
	att, err := svc.Attribute("D1", link.Code, "ios")
	require.NoError(t, err)

	_, err = svc.Claim("U1", att.Token, "D1")
	assert.Equal(t, ErrSelfReferral, KindOf(err))
}

func TestClaimTwiceSameUserFailsAlreadyClaimed(t *testing.T) {
	svc, _ := newTestService()

	link, err := svc.CreateLink("U1", "promo")
	require.NoError(t, err)

	att1, err := svc.Attribute("D1", link.Code, "ios")
	require.NoError(t, err)
	_, err = svc.Claim("U2", att1.Token, "D1")
	require.NoError(t, err)

	// a different, perfectly valid token does not grant a second reward
	att2, err := svc.Attribute("D9", link.Code, "android")
	require.NoError(t, err)
	_, err = svc.Claim("U2", att2.Token, "D9")
	assert.Equal(t, ErrAlreadyClaimed, KindOf(err))
}

// --- ListReferrals ---

func TestListReferralsStatusFilter(t *testing.T) {
	svc, _ := newTestService()

	link, err := svc.CreateLink("U1", "promo")
	require.NoError(t, err)
	att, err := svc.Attribute("D1", link.Code, "ios")
	require.NoError(t, err)
	_, err = svc.Claim("U2", att.Token, "D1")
	require.NoError(t, err)

	refs, err := svc.ListReferrals("U1", "completed")
	require.NoError(t, err)
	assert.Len(t, refs, 1)

	refs, err = svc.ListReferrals("U1", "pending")
	require.NoError(t, err)
	assert.Empty(t, refs)

	_, err = svc.ListReferrals("", "")
	assert.Equal(t, ErrInvalidInput, KindOf(err))
}
