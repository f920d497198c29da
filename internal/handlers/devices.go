package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	qrcode "github.com/skip2/go-qrcode"
	"gorm.io/gorm"

	"github.com/vigil-app/vigil/internal/notifications"
	"github.com/vigil-app/vigil/internal/services"
	apperrors "github.com/vigil-app/vigil/pkg/errors"
	"github.com/vigil-app/vigil/pkg/response"
)

// DeviceKeyHeader carries the device secret on event submissions.
const DeviceKeyHeader = "X-Device-Key"

const qrImageSize = 256

// DeviceHandler exposes subscription management and the device-facing
// event ingestion endpoint.
type DeviceHandler struct {
	service *services.DeviceService
}

// NewDeviceHandler constructs a DeviceHandler.
func NewDeviceHandler(db *gorm.DB, hub *notifications.Hub) (*DeviceHandler, error) {
	service, err := services.NewDeviceService(db, hub)
	if err != nil {
		return nil, err
	}
	return &DeviceHandler{service: service}, nil
}

// Subscribe links the caller to the device identified by the code path param.
func (h *DeviceHandler) Subscribe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	already, err := h.service.Subscribe(c.Request.Context(), userID, c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}

	if already {
		response.Success(c, http.StatusOK, gin.H{"subscribed": true, "already_subscribed": true})
		return
	}
	response.Success(c, http.StatusCreated, gin.H{"subscribed": true})
}

// Unsubscribe removes the caller's subscription to the device.
func (h *DeviceHandler) Unsubscribe(c *gin.Context) {
	userID, ok := currentUserID(c)
	if !ok {
		return
	}

	if err := h.service.Unsubscribe(c.Request.Context(), userID, c.Param("code")); err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusOK, gin.H{"unsubscribed": true})
}

// PublishEvent accepts an event from a device authenticated by its secret key.
func (h *DeviceHandler) PublishEvent(c *gin.Context) {
	deviceKey := strings.TrimSpace(c.GetHeader(DeviceKeyHeader))
	if deviceKey == "" {
		response.Error(c, apperrors.ErrUnauthorized.WithDetails("device key is required in the "+DeviceKeyHeader+" header"))
		return
	}

	var payload struct {
		Type    string         `json:"type" validate:"required,max=64"`
		Title   string         `json:"title" validate:"required,max=255"`
		Body    string         `json:"body"`
		Payload map[string]any `json:"payload"`
	}
	if !bindAndValidate(c, &payload) {
		return
	}

	result, err := h.service.PublishEvent(c.Request.Context(), c.Param("code"), deviceKey, services.PublishEventInput{
		Type:    payload.Type,
		Title:   payload.Title,
		Body:    payload.Body,
		Payload: payload.Payload,
	})
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// QR renders the device's public code as a PNG QR image so it can be
// printed next to the device and scanned by subscribers.
func (h *DeviceHandler) QR(c *gin.Context) {
	if _, ok := currentUserID(c); !ok {
		return
	}

	device, err := h.service.GetByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}

	png, err := qrcode.Encode(device.Code, qrcode.Medium, qrImageSize)
	if err != nil {
		response.Error(c, apperrors.Wrap(err, "failed to render QR code"))
		return
	}

	c.Data(http.StatusOK, "image/png", png)
}
