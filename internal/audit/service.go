package audit

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/mrlokans/libris/internal/database/audit"
	"github.com/mrlokans/libris/internal/entities"
)

// Service records security and catalog events.
type Service struct {
	repo *audit.Repository
	wg   sync.WaitGroup
}

// NewService creates a new audit service.
func NewService(repo *audit.Repository) *Service {
	return &Service{repo: repo}
}

// Log records an audit event synchronously.
func (s *Service) Log(event *entities.AuditEvent) error {
	return s.repo.LogEvent(event)
}

// LogAsync records an audit event in the background (non-blocking).
func (s *Service) LogAsync(event *entities.AuditEvent) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.repo.LogEvent(event); err != nil {
			log.Printf("Failed to log audit event: %v", err)
		}
	}()
}

// Wait blocks until every pending LogAsync write has finished.
func (s *Service) Wait() {
	s.wg.Wait()
}

// LogAuth records a sign-up, sign-in, sign-out or account event.
func (s *Service) LogAuth(userID, action, ipAddr, userAgent string, err error) {
	event := &entities.AuditEvent{
		UserID:    userID,
		EventType: entities.AuditEventAuth,
		Action:    action,
		IPAddress: ipAddr,
		UserAgent: truncate(userAgent, 500),
		Status:    entities.AuditStatusSuccess,
	}
	markFailure(event, err)
	s.LogAsync(event)
}

// LogCatalog records a write to the book catalog.
func (s *Service) LogCatalog(userID, action, bookID, title string, err error) {
	event := &entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventCatalog,
		Action:      action,
		Description: title,
		EntityType:  "book",
		EntityID:    bookID,
		Status:      entities.AuditStatusSuccess,
	}
	markFailure(event, err)
	s.LogAsync(event)
}

// LogPasscode records passcode issuance and redemption. Codes themselves
// are never logged.
func (s *Service) LogPasscode(email string, purpose entities.PasscodePurpose, action string, err error) {
	event := &entities.AuditEvent{
		EventType:  entities.AuditEventPasscode,
		Action:     action,
		EntityType: "passcode",
		Status:     entities.AuditStatusSuccess,
	}
	metadata := map[string]any{
		"email":   email,
		"purpose": purpose,
	}
	if mdBytes, e := json.Marshal(metadata); e == nil {
		event.Metadata = string(mdBytes)
	}
	markFailure(event, err)
	s.LogAsync(event)
}

// LogSettings records a settings change event.
func (s *Service) LogSettings(userID, key, value string) {
	s.LogAsync(&entities.AuditEvent{
		UserID:      userID,
		EventType:   entities.AuditEventSettings,
		Action:      "setting_update",
		Description: key + "=" + truncate(value, 200),
		Status:      entities.AuditStatusSuccess,
	})
}

// ListEvents returns one page of audit events.
func (s *Service) ListEvents(filter audit.Filter) ([]entities.AuditEvent, int64, error) {
	return s.repo.ListEvents(filter)
}

// DeleteOldEvents removes events older than the specified duration.
func (s *Service) DeleteOldEvents(retention time.Duration) (int64, error) {
	cutoff := time.Now().Add(-retention)
	return s.repo.DeleteOldEvents(cutoff)
}

func markFailure(event *entities.AuditEvent, err error) {
	if err != nil {
		event.Status = entities.AuditStatusFailed
		event.ErrorMsg = truncate(err.Error(), 500)
	}
}

// truncate shortens a string to max length.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
