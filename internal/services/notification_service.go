package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/vigil-app/vigil/internal/models"
	apperrors "github.com/vigil-app/vigil/pkg/errors"
)

// StatusFilter selects which inbox entries a listing returns.
type StatusFilter string

const (
	// StatusUnread returns only entries not yet marked read.
	StatusUnread StatusFilter = "unread"
	// StatusAll returns read and unread entries alike.
	StatusAll StatusFilter = "all"
)

// ListInboxInput defines filters for querying a user's inbox.
type ListInboxInput struct {
	UserID string
	Status StatusFilter
	Limit  int
	Offset int
}

// InboxEntryDTO is one inbox entry joined through to its event and device,
// so listing never needs a second round trip.
type InboxEntryDTO struct {
	ID             string         `json:"id"`
	NotificationID string         `json:"notification_id"`
	Type           string         `json:"type"`
	Title          string         `json:"title"`
	Body           string         `json:"body,omitempty"`
	Payload        map[string]any `json:"payload,omitempty"`
	DeviceCode     string         `json:"device_code"`
	DeviceLocation string         `json:"device_location,omitempty"`
	IsRead         bool           `json:"is_read"`
	ReadAt         *time.Time     `json:"read_at,omitempty"`
	EventCreatedAt time.Time      `json:"event_created_at"`
	CreatedAt      time.Time      `json:"created_at"`
}

type inboxRow struct {
	ID             string
	NotificationID string
	CreatedAt      time.Time
	IsRead         bool
	ReadAt         *time.Time
	Type           string
	Title          string
	Body           string
	Payload        datatypes.JSON
	EventCreatedAt time.Time
	DeviceCode     string
	DeviceLocation string
}

// NotificationService is the query and mutation layer over user inboxes.
// Events themselves are immutable; only per-user read/delete state changes
// here, always scoped to the owning user.
type NotificationService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewNotificationService constructs a NotificationService.
func NewNotificationService(db *gorm.DB) (*NotificationService, error) {
	if db == nil {
		return nil, errors.New("notification service: db is required")
	}
	return &NotificationService{db: db, now: time.Now}, nil
}

// ListForUser returns the user's inbox, newest event first. Soft-deleted
// entries are always excluded; the unread filter additionally excludes read
// entries.
func (s *NotificationService) ListForUser(ctx context.Context, input ListInboxInput) ([]InboxEntryDTO, error) {
	ctx = ensureContext(ctx)

	if err := validateListInboxInput(input); err != nil {
		return nil, err
	}

	query := s.db.WithContext(ctx).
		Table("user_notifications").
		Select(`user_notifications.id,
			user_notifications.notification_id,
			user_notifications.created_at,
			user_notifications.is_read,
			user_notifications.read_at,
			notifications.type,
			notifications.title,
			notifications.body,
			notifications.payload,
			notifications.created_at AS event_created_at,
			devices.code AS device_code,
			devices.location AS device_location`).
		Joins("JOIN notifications ON notifications.id = user_notifications.notification_id").
		Joins("JOIN devices ON devices.id = notifications.device_id").
		Where("user_notifications.user_id = ? AND user_notifications.deleted_at IS NULL", input.UserID)

	if input.Status == StatusUnread {
		query = query.Where("user_notifications.is_read = ?", false)
	}

	var rows []inboxRow
	if err := query.
		Order("notifications.created_at DESC, user_notifications.id DESC").
		Limit(input.Limit).
		Offset(input.Offset).
		Scan(&rows).Error; err != nil {
		return nil, fmt.Errorf("notification service: list inbox: %w", err)
	}

	entries := make([]InboxEntryDTO, 0, len(rows))
	for _, row := range rows {
		entries = append(entries, mapInboxRow(row))
	}
	return entries, nil
}

// MarkRead sets the read flag on an entry owned by the user. A repeated call
// succeeds again; an entry that is missing, soft-deleted, or owned by someone
// else is uniformly reported as not found.
func (s *NotificationService) MarkRead(ctx context.Context, userID, entryID string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.UserNotification{}).
		Where("id = ? AND user_id = ? AND deleted_at IS NULL", entryID, userID).
		Updates(map[string]any{
			"is_read": true,
			"read_at": s.now().UTC(),
		})
	if result.Error != nil {
		return fmt.Errorf("notification service: mark read: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// SoftDelete hides an entry from all future listings and mutations while
// keeping the row for audit. Same ownership and not-found semantics as
// MarkRead.
func (s *NotificationService) SoftDelete(ctx context.Context, userID, entryID string) error {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Model(&models.UserNotification{}).
		Where("id = ? AND user_id = ? AND deleted_at IS NULL", entryID, userID).
		Update("deleted_at", s.now().UTC())
	if result.Error != nil {
		return fmt.Errorf("notification service: soft delete: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// PurgeDeleted permanently removes soft-deleted entries older than the cutoff.
// Used by the retention cleaner, never by request handlers.
func (s *NotificationService) PurgeDeleted(ctx context.Context, cutoff time.Time) (int64, error) {
	ctx = ensureContext(ctx)

	result := s.db.WithContext(ctx).
		Where("deleted_at IS NOT NULL AND deleted_at < ?", cutoff).
		Delete(&models.UserNotification{})
	if result.Error != nil {
		return 0, fmt.Errorf("notification service: purge deleted: %w", result.Error)
	}
	return result.RowsAffected, nil
}

func validateListInboxInput(input ListInboxInput) error {
	var details []string
	if input.Status != StatusUnread && input.Status != StatusAll {
		details = append(details, `status must be "unread" or "all"`)
	}
	if input.Limit <= 0 {
		details = append(details, "limit must be a positive integer")
	}
	if input.Offset < 0 {
		details = append(details, "offset must be zero or greater")
	}
	if len(details) > 0 {
		return apperrors.NewValidation("validation failed", details...)
	}
	return nil
}

func mapInboxRow(row inboxRow) InboxEntryDTO {
	return InboxEntryDTO{
		ID:             row.ID,
		NotificationID: row.NotificationID,
		Type:           row.Type,
		Title:          row.Title,
		Body:           row.Body,
		Payload:        decodePayload(row.Payload),
		DeviceCode:     row.DeviceCode,
		DeviceLocation: row.DeviceLocation,
		IsRead:         row.IsRead,
		ReadAt:         row.ReadAt,
		EventCreatedAt: row.EventCreatedAt,
		CreatedAt:      row.CreatedAt,
	}
}

func decodePayload(data datatypes.JSON) map[string]any {
	if len(data) == 0 {
		return nil
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil
	}
	return out
}
