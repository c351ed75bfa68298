// services/scheduler.go
package services

import (
	"fmt"
	"log"
	"time"

	"referral-service/utils"

	"github.com/go-co-op/gocron/v2"
)

// StartAuditScheduler logs a store snapshot every 5 minutes and, when R2 is
// configured, archives buffered audit events there. The scheduler never
// touches attribution expiry — expired entries are cleaned up lazily on the
// request path.
func (s *ReferralService) StartAuditScheduler() {
	sched, _ := gocron.NewScheduler()
	sched.Start()

	_, _ = sched.NewJob(
		gocron.DurationJob(5*time.Minute),
		gocron.NewTask(func() {
			stats, err := s.Store.Stats()
			if err != nil {
				log.Printf("[Audit] store stats error: %v", err)
				return
			}
			log.Printf("[Audit] links=%d attributions=%d claimed=%d referrals=%d",
				stats.Links, stats.Attributions, stats.ClaimedUsers, stats.Referrals)

			events := s.Audit.Drain()
			if len(events) == 0 || !utils.R2Enabled() {
				return
			}
			key := fmt.Sprintf("referral-audit/%s.json", time.Now().UTC().Format("20060102T150405Z"))
			if err := utils.UploadJSONToR2(key, events); err != nil {
				log.Printf("[Audit] failed to archive %d events: %v", len(events), err)
			} else {
				log.Printf("✅ Archived %d audit events to %s", len(events), key)
			}
		}),
	)
}
