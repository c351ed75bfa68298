package services

import (
	"sync"
	"time"
)

// AuditEvent is one attribution or claim outcome retained for the periodic
// archive flush.
type AuditEvent struct {
	Type         string    `json:"type"` // "attribution" or "claim"
	UserID       string    `json:"user_id,omitempty"`
	DeviceID     string    `json:"device_id,omitempty"`
	ReferralCode string    `json:"referral_code"`
	At           time.Time `json:"at"`
}

// AuditLog buffers events between archive flushes. The buffer is bounded;
// once full, the oldest events are dropped so a stalled flusher cannot grow
// memory without limit.
type AuditLog struct {
	mu       sync.Mutex
	events   []AuditEvent
	capacity int
}

func NewAuditLog(capacity int) *AuditLog {
	if capacity <= 0 {
		capacity = 1000
	}
	return &AuditLog{capacity: capacity}
}

func (l *AuditLog) Record(ev AuditEvent) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.events) >= l.capacity {
		l.events = l.events[1:]
	}
	l.events = append(l.events, ev)
}

// Drain returns all buffered events and resets the buffer.
func (l *AuditLog) Drain() []AuditEvent {
	l.mu.Lock()
	defer l.mu.Unlock()
	events := l.events
	l.events = nil
	return events
}
