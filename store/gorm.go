package store

import (
	"errors"
	"fmt"

	"referral-service/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Gorm is a Postgres-backed Store. Insert-if-absent semantics ride on the
// unique indexes declared in the models, so two concurrent inserts for the
// same key resolve to exactly one winner in the database.
type Gorm struct {
	DB *gorm.DB
}

func NewGorm(db *gorm.DB) *Gorm {
	return &Gorm{DB: db}
}

func (g *Gorm) GetLinkByCode(code string) (*models.ReferralLink, error) {
	var link models.ReferralLink
	if err := g.DB.First(&link, "code = ?", code).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get link by code: %w", err)
	}
	return &link, nil
}

func (g *Gorm) GetLinkByUser(userID string) (*models.ReferralLink, error) {
	var link models.ReferralLink
	err := g.DB.Where("owner_user_id = ?", userID).
		Order("created_at DESC").
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get link by user: %w", err)
	}
	return &link, nil
}

func (g *Gorm) AddLink(link *models.ReferralLink) error {
	res := g.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(link)
	if res.Error != nil {
		return fmt.Errorf("add link: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

func (g *Gorm) GetAttributionByDevice(deviceID string) (*models.Attribution, error) {
	var att models.Attribution
	if err := g.DB.First(&att, "device_id = ?", deviceID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get attribution: %w", err)
	}
	return &att, nil
}

func (g *Gorm) AddAttribution(att *models.Attribution) error {
	res := g.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(att)
	if res.Error != nil {
		return fmt.Errorf("add attribution: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrDuplicate
	}
	return nil
}

func (g *Gorm) RemoveAttribution(deviceID string) error {
	if err := g.DB.Delete(&models.Attribution{}, "device_id = ?", deviceID).Error; err != nil {
		return fmt.Errorf("remove attribution: %w", err)
	}
	return nil
}

func (g *Gorm) HasClaimed(userID string) (bool, error) {
	var count int64
	err := g.DB.Model(&models.ClaimedUser{}).
		Where("user_id = ?", userID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check claimed: %w", err)
	}
	return count > 0, nil
}

func (g *Gorm) MarkClaimed(userID string) (bool, error) {
	res := g.DB.Clauses(clause.OnConflict{DoNothing: true}).
		Create(&models.ClaimedUser{UserID: userID})
	if res.Error != nil {
		return false, fmt.Errorf("mark claimed: %w", res.Error)
	}
	return res.RowsAffected > 0, nil
}

func (g *Gorm) AddReferral(ref *models.Referral) error {
	if err := g.DB.Create(ref).Error; err != nil {
		return fmt.Errorf("add referral: %w", err)
	}
	return nil
}

func (g *Gorm) ListReferralsByReferrer(userID string) ([]models.Referral, error) {
	var refs []models.Referral
	err := g.DB.Where("referrer_id = ?", userID).
		Order("created_at DESC").
		Find(&refs).Error
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	return refs, nil
}

func (g *Gorm) Stats() (Stats, error) {
	var stats Stats
	counts := []struct {
		model any
		dst   *int64
	}{
		{&models.ReferralLink{}, &stats.Links},
		{&models.Attribution{}, &stats.Attributions},
		{&models.ClaimedUser{}, &stats.ClaimedUsers},
		{&models.Referral{}, &stats.Referrals},
	}
	for _, c := range counts {
		if err := g.DB.Model(c.model).Count(c.dst).Error; err != nil {
			return Stats{}, fmt.Errorf("count store stats: %w", err)
		}
	}
	return stats, nil
}
