package handlers

import (
	"bytes"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vigil-app/vigil/internal/database/testutil"
	"github.com/vigil-app/vigil/internal/middleware"
	"github.com/vigil-app/vigil/internal/models"
	"github.com/vigil-app/vigil/internal/notifications"
	"github.com/vigil-app/vigil/pkg/logger"
	"github.com/vigil-app/vigil/pkg/response"
)

func init() {
	gin.SetMode(gin.TestMode)
	_ = logger.Init("error")
}

// authAs stands in for the JWT middleware so handler tests can pick the
// acting user directly.
func authAs(userID string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.CtxUserIDKey, userID)
		c.Next()
	}
}

type testEnv struct {
	db     *gorm.DB
	hub    *notifications.Hub
	engine *gin.Engine
}

// newTestEnv wires the handlers onto a router mirroring the production
// routes, with auth resolved to the given user.
func newTestEnv(t *testing.T, userID string) *testEnv {
	t.Helper()

	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	hub := notifications.NewHub()

	deviceHandler, err := NewDeviceHandler(db, hub)
	require.NoError(t, err)
	notificationHandler, err := NewNotificationHandler(db, hub)
	require.NoError(t, err)

	engine := gin.New()
	engine.POST("/api/devices/:code/notifications", deviceHandler.PublishEvent)

	authed := engine.Group("/api", authAs(userID))
	authed.POST("/devices/:code/subscription", deviceHandler.Subscribe)
	authed.DELETE("/devices/:code/subscription", deviceHandler.Unsubscribe)
	authed.GET("/devices/:code/qr", deviceHandler.QR)
	authed.GET("/notifications", notificationHandler.List)
	authed.POST("/notifications/:id/read", notificationHandler.MarkRead)
	authed.DELETE("/notifications/:id", notificationHandler.Delete)
	authed.GET("/notifications/stream", notificationHandler.Stream)

	return &testEnv{db: db, hub: hub, engine: engine}
}

// newTestEnvWithUser builds an environment whose authenticated user is backed
// by a real row, so handlers that write FK references succeed.
func newTestEnvWithUser(t *testing.T, email string) (*testEnv, *models.User) {
	t.Helper()

	userID := uuid.NewString()
	env := newTestEnv(t, userID)
	user := &models.User{
		BaseModel: models.BaseModel{ID: userID},
		Email:     email,
		Password:  "not-a-real-hash",
	}
	require.NoError(t, env.db.Create(user).Error)
	return env, user
}

func createUser(t *testing.T, db *gorm.DB, email string) *models.User {
	t.Helper()
	user := &models.User{Email: email, Password: "not-a-real-hash"}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createDevice(t *testing.T, db *gorm.DB, code, key, location string) *models.Device {
	t.Helper()
	device := &models.Device{Code: code, Key: key, Location: location}
	require.NoError(t, db.Create(device).Error)
	return device
}

func subscribeUser(t *testing.T, db *gorm.DB, userID, deviceID string) {
	t.Helper()
	require.NoError(t, db.Create(&models.Subscription{UserID: userID, DeviceID: deviceID}).Error)
}

func doJSON(t *testing.T, engine *gin.Engine, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	engine.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) response.Response {
	t.Helper()
	var resp response.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func dataField(t *testing.T, resp response.Response) map[string]any {
	t.Helper()
	data, ok := resp.Data.(map[string]any)
	require.True(t, ok, "expected object data, got %T", resp.Data)
	return data
}

func assertErrorCode(t *testing.T, rec *httptest.ResponseRecorder, status int, code string) {
	t.Helper()
	require.Equal(t, status, rec.Code, rec.Body.String())
	resp := decodeResponse(t, rec)
	require.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	require.Equal(t, code, resp.Error.Code)
}
