package services

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/vigil-app/vigil/internal/models"
	"github.com/vigil-app/vigil/internal/notifications"
	apperrors "github.com/vigil-app/vigil/pkg/errors"
	"github.com/vigil-app/vigil/pkg/logger"
	"github.com/vigil-app/vigil/pkg/metrics"
)

// PublishEventInput carries a device-submitted event.
type PublishEventInput struct {
	Type    string
	Title   string
	Body    string
	Payload map[string]any
}

// PublishEventResult reports the committed event and its fan-out size.
type PublishEventResult struct {
	EventID     string `json:"event_id"`
	DeliveredTo int    `json:"delivered_to"`
}

// DeviceService resolves devices, manages subscriptions, and runs the
// event fan-out write.
type DeviceService struct {
	db  *gorm.DB
	hub *notifications.Hub
	log *zap.Logger
}

// NewDeviceService constructs a DeviceService. The hub may be nil, in which
// case committed events are only available through the inbox.
func NewDeviceService(db *gorm.DB, hub *notifications.Hub) (*DeviceService, error) {
	if db == nil {
		return nil, errors.New("device service: db is required")
	}
	return &DeviceService{
		db:  db,
		hub: hub,
		log: logger.WithModule("devices"),
	}, nil
}

// GetByCode loads a device by its public code.
func (s *DeviceService) GetByCode(ctx context.Context, code string) (*models.Device, error) {
	ctx = ensureContext(ctx)

	var device models.Device
	if err := s.db.WithContext(ctx).Where("code = ?", strings.TrimSpace(code)).First(&device).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrNotFound
		}
		return nil, fmt.Errorf("device service: load device: %w", err)
	}
	return &device, nil
}

// Subscribe links the user to the device identified by code. Subscribing
// twice is reported through the returned flag rather than an error.
func (s *DeviceService) Subscribe(ctx context.Context, userID, deviceCode string) (alreadySubscribed bool, err error) {
	ctx = ensureContext(ctx)

	device, err := s.GetByCode(ctx, deviceCode)
	if err != nil {
		return false, err
	}

	subscription := models.Subscription{UserID: userID, DeviceID: device.ID}
	if err := s.db.WithContext(ctx).Create(&subscription).Error; err != nil {
		if isUniqueConstraintError(err) {
			return true, nil
		}
		return false, fmt.Errorf("device service: create subscription: %w", err)
	}

	return false, nil
}

// Unsubscribe removes the user's subscription to the device.
func (s *DeviceService) Unsubscribe(ctx context.Context, userID, deviceCode string) error {
	ctx = ensureContext(ctx)

	device, err := s.GetByCode(ctx, deviceCode)
	if err != nil {
		return err
	}

	result := s.db.WithContext(ctx).
		Where("user_id = ? AND device_id = ?", userID, device.ID).
		Delete(&models.Subscription{})
	if result.Error != nil {
		return fmt.Errorf("device service: delete subscription: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrNotFound
	}

	return nil
}

// PublishEvent authenticates the device, durably writes the event plus one
// inbox entry per current subscriber in a single transaction, and only after
// commit pushes the event to any open live channels. Live delivery failures
// never affect the result: the committed rows are authoritative.
func (s *DeviceService) PublishEvent(ctx context.Context, deviceCode, deviceKey string, input PublishEventInput) (*PublishEventResult, error) {
	ctx = ensureContext(ctx)

	if err := validatePublishEventInput(input); err != nil {
		return nil, err
	}

	if strings.TrimSpace(deviceKey) == "" {
		return nil, apperrors.ErrUnauthorized
	}

	device, err := s.GetByCode(ctx, deviceCode)
	if err != nil {
		return nil, err
	}

	if subtle.ConstantTimeCompare([]byte(device.Key), []byte(deviceKey)) != 1 {
		return nil, apperrors.ErrForbidden
	}

	notification := models.Notification{
		DeviceID: device.ID,
		Type:     strings.TrimSpace(input.Type),
		Title:    strings.TrimSpace(input.Title),
		Body:     input.Body,
	}

	if input.Payload != nil {
		data, err := json.Marshal(input.Payload)
		if err != nil {
			return nil, fmt.Errorf("device service: marshal payload: %w", err)
		}
		notification.Payload = datatypes.JSON(data)
	}

	var subscriberIDs []string
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&notification).Error; err != nil {
			return fmt.Errorf("create notification: %w", err)
		}

		// The subscription set is read inside the transaction so the
		// fan-out reflects exactly the subscribers at commit time.
		var subscriptions []models.Subscription
		if err := tx.Where("device_id = ?", device.ID).Find(&subscriptions).Error; err != nil {
			return fmt.Errorf("load subscriptions: %w", err)
		}

		if len(subscriptions) == 0 {
			return nil
		}

		entries := make([]models.UserNotification, 0, len(subscriptions))
		subscriberIDs = make([]string, 0, len(subscriptions))
		for _, sub := range subscriptions {
			entries = append(entries, models.UserNotification{
				UserID:         sub.UserID,
				NotificationID: notification.ID,
			})
			subscriberIDs = append(subscriberIDs, sub.UserID)
		}

		if err := tx.Create(&entries).Error; err != nil {
			return fmt.Errorf("create inbox entries: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, apperrors.ErrInternalServer.WithInternal(fmt.Errorf("device service: publish event: %w", err))
	}

	metrics.EventsPublished.WithLabelValues(notification.Type).Inc()
	metrics.FanoutSize.Observe(float64(len(subscriberIDs)))

	s.notifySubscribers(device, notification, input.Payload, subscriberIDs)

	s.log.Info("event published",
		zap.String("device_code", device.Code),
		zap.String("event_id", notification.ID),
		zap.String("type", notification.Type),
		zap.Int("delivered_to", len(subscriberIDs)),
	)

	return &PublishEventResult{
		EventID:     notification.ID,
		DeliveredTo: len(subscriberIDs),
	}, nil
}

func (s *DeviceService) notifySubscribers(device *models.Device, notification models.Notification, payload map[string]any, subscriberIDs []string) {
	if s.hub == nil || len(subscriberIDs) == 0 {
		return
	}

	push := notifications.Payload{
		EventID: notification.ID,
		Type:    notification.Type,
		Title:   notification.Title,
		Body:    notification.Body,
		Data:    payload,
		Device: notifications.DeviceRef{
			Code:     device.Code,
			Location: device.Location,
		},
		CreatedAt: notification.CreatedAt.UTC(),
	}

	for _, userID := range subscriberIDs {
		s.hub.Publish(userID, push)
	}
}

func validatePublishEventInput(input PublishEventInput) error {
	var details []string
	if strings.TrimSpace(input.Type) == "" {
		details = append(details, "type is required")
	}
	if strings.TrimSpace(input.Title) == "" {
		details = append(details, "title is required")
	}
	if len(details) > 0 {
		return apperrors.NewValidation("validation failed", details...)
	}
	return nil
}
