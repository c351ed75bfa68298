package store

import (
	"sync"
	"time"

	"referral-service/models"
)

// Memory is an in-memory Store safe for concurrent use. It is the default
// backend when no database is configured, and the instance tests inject so
// each run gets isolated state.
type Memory struct {
	mu           sync.RWMutex
	links        map[string]models.ReferralLink // keyed by referral code
	attributions map[string]models.Attribution  // keyed by device id
	claimed      map[string]time.Time           // user id -> claimed at
	referrals    []models.Referral
}

func NewMemory() *Memory {
	return &Memory{
		links:        make(map[string]models.ReferralLink),
		attributions: make(map[string]models.Attribution),
		claimed:      make(map[string]time.Time),
	}
}

func (m *Memory) GetLinkByCode(code string) (*models.ReferralLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	link, ok := m.links[code]
	if !ok {
		return nil, ErrNotFound
	}
	return &link, nil
}

func (m *Memory) GetLinkByUser(userID string) (*models.ReferralLink, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var newest *models.ReferralLink
	for code := range m.links {
		link := m.links[code]
		if link.OwnerUserID != userID {
			continue
		}
		if newest == nil || link.CreatedAt.After(newest.CreatedAt) {
			newest = &link
		}
	}
	if newest == nil {
		return nil, ErrNotFound
	}
	link := *newest
	return &link, nil
}

func (m *Memory) AddLink(link *models.ReferralLink) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.links[link.Code]; exists {
		return ErrDuplicate
	}
	m.links[link.Code] = *link
	return nil
}

func (m *Memory) GetAttributionByDevice(deviceID string) (*models.Attribution, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	att, ok := m.attributions[deviceID]
	if !ok {
		return nil, ErrNotFound
	}
	return &att, nil
}

func (m *Memory) AddAttribution(att *models.Attribution) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.attributions[att.DeviceID]; exists {
		return ErrDuplicate
	}
	m.attributions[att.DeviceID] = *att
	return nil
}

func (m *Memory) RemoveAttribution(deviceID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.attributions, deviceID)
	return nil
}

func (m *Memory) HasClaimed(userID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.claimed[userID]
	return ok, nil
}

func (m *Memory) MarkClaimed(userID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.claimed[userID]; exists {
		return false, nil
	}
	m.claimed[userID] = time.Now().UTC()
	return true, nil
}

func (m *Memory) AddReferral(ref *models.Referral) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.referrals = append(m.referrals, *ref)
	return nil
}

func (m *Memory) ListReferralsByReferrer(userID string) ([]models.Referral, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []models.Referral
	for _, ref := range m.referrals {
		if ref.ReferrerID == userID {
			out = append(out, ref)
		}
	}
	return out, nil
}

func (m *Memory) Stats() (Stats, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Stats{
		Links:        int64(len(m.links)),
		Attributions: int64(len(m.attributions)),
		ClaimedUsers: int64(len(m.claimed)),
		Referrals:    int64(len(m.referrals)),
	}, nil
}
