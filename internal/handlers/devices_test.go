package handlers

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vigil-app/vigil/internal/models"
)

func TestPublishEventDeliversToSubscribers(t *testing.T) {
	owner := "owner-1"
	env := newTestEnv(t, owner)

	user := createUser(t, env.db, "watcher@example.com")
	other := createUser(t, env.db, "bystander@example.com")
	device := createDevice(t, env.db, "CAM-FRONT", "secret-key", "Front Door")
	subscribeUser(t, env.db, user.ID, device.ID)
	subscribeUser(t, env.db, other.ID, device.ID)

	rec := doJSON(t, env.engine, http.MethodPost, "/api/devices/CAM-FRONT/notifications", map[string]any{
		"type":    "motion",
		"title":   "Motion detected",
		"body":    "Movement at the front door",
		"payload": map[string]any{"confidence": 0.92},
	}, map[string]string{DeviceKeyHeader: "secret-key"})

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	data := dataField(t, decodeResponse(t, rec))
	assert.NotEmpty(t, data["event_id"])
	assert.EqualValues(t, 2, data["delivered_to"])

	var entries int64
	require.NoError(t, env.db.Model(&models.UserNotification{}).Count(&entries).Error)
	assert.EqualValues(t, 2, entries)
}

func TestPublishEventMissingKey(t *testing.T) {
	env := newTestEnv(t, "user-1")
	createDevice(t, env.db, "CAM-1", "key", "")

	rec := doJSON(t, env.engine, http.MethodPost, "/api/devices/CAM-1/notifications", map[string]any{
		"type":  "motion",
		"title": "Motion",
	}, nil)

	assertErrorCode(t, rec, http.StatusUnauthorized, "UNAUTHORIZED")
}

func TestPublishEventWrongKey(t *testing.T) {
	env := newTestEnv(t, "user-1")
	createDevice(t, env.db, "CAM-1", "right-key", "")

	rec := doJSON(t, env.engine, http.MethodPost, "/api/devices/CAM-1/notifications", map[string]any{
		"type":  "motion",
		"title": "Motion",
	}, map[string]string{DeviceKeyHeader: "wrong-key"})

	assertErrorCode(t, rec, http.StatusForbidden, "FORBIDDEN")

	var count int64
	require.NoError(t, env.db.Model(&models.Notification{}).Count(&count).Error)
	assert.Zero(t, count)
}

func TestPublishEventUnknownDevice(t *testing.T) {
	env := newTestEnv(t, "user-1")

	rec := doJSON(t, env.engine, http.MethodPost, "/api/devices/NOPE/notifications", map[string]any{
		"type":  "motion",
		"title": "Motion",
	}, map[string]string{DeviceKeyHeader: "any"})

	assertErrorCode(t, rec, http.StatusNotFound, "NOT_FOUND")
}

func TestPublishEventValidation(t *testing.T) {
	env := newTestEnv(t, "user-1")
	createDevice(t, env.db, "CAM-1", "key", "")

	rec := doJSON(t, env.engine, http.MethodPost, "/api/devices/CAM-1/notifications", map[string]any{
		"body": "missing type and title",
	}, map[string]string{DeviceKeyHeader: "key"})

	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "VALIDATION_ERROR", resp.Error.Code)
	assert.NotEmpty(t, resp.Error.Details)
}

func TestSubscribeAndUnsubscribe(t *testing.T) {
	env, _ := newTestEnvWithUser(t, "sub@example.com")
	createDevice(t, env.db, "CAM-1", "key", "Garage")

	rec := doJSON(t, env.engine, http.MethodPost, "/api/devices/CAM-1/subscription", nil, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = doJSON(t, env.engine, http.MethodPost, "/api/devices/CAM-1/subscription", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	data := dataField(t, decodeResponse(t, rec))
	assert.Equal(t, true, data["already_subscribed"])

	rec = doJSON(t, env.engine, http.MethodDelete, "/api/devices/CAM-1/subscription", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	rec = doJSON(t, env.engine, http.MethodDelete, "/api/devices/CAM-1/subscription", nil, nil)
	assertErrorCode(t, rec, http.StatusNotFound, "NOT_FOUND")
}

func TestDeviceQR(t *testing.T) {
	env := newTestEnv(t, "user-1")
	createDevice(t, env.db, "CAM-QR", "key", "")

	rec := doJSON(t, env.engine, http.MethodGet, "/api/devices/CAM-QR/qr", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/png", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Body.Bytes())
}
