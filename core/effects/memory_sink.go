package effects

import (
	"context"
	"sync"

	"freelance-workflow/core/models"
)

// MemorySink keeps delivered effects in process memory. It backs the
// in-memory deployment and lets callers inject delivery failures.
type MemorySink struct {
	mu            sync.Mutex
	notifications []models.Notification
	realtime      []models.RealtimeEvent
	audit         []models.AuditEntry

	// Fail, when set, is consulted before storing each effect
	Fail func(kind models.EffectKind) error
}

// NewMemorySink creates an empty sink
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

func (s *MemorySink) fail(kind models.EffectKind) error {
	if s.Fail == nil {
		return nil
	}
	return s.Fail(kind)
}

// Notify implements Notifier
func (s *MemorySink) Notify(_ context.Context, n models.Notification) error {
	if err := s.fail(models.EffectNotification); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifications = append(s.notifications, n)
	return nil
}

// Publish implements Publisher
func (s *MemorySink) Publish(_ context.Context, e models.RealtimeEvent) error {
	if err := s.fail(models.EffectRealtime); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.realtime = append(s.realtime, e)
	return nil
}

// Record implements Auditor
func (s *MemorySink) Record(_ context.Context, e models.AuditEntry) error {
	if err := s.fail(models.EffectAudit); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audit = append(s.audit, e)
	return nil
}

// Notifications returns a copy of the stored notifications
func (s *MemorySink) Notifications() []models.Notification {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.Notification(nil), s.notifications...)
}

// Realtime returns a copy of the stored realtime events
func (s *MemorySink) Realtime() []models.RealtimeEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.RealtimeEvent(nil), s.realtime...)
}

// Audit returns a copy of the stored audit entries
func (s *MemorySink) Audit() []models.AuditEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]models.AuditEntry(nil), s.audit...)
}
