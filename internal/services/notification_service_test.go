package services

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/vigil-app/vigil/internal/database/testutil"
	"github.com/vigil-app/vigil/internal/models"
	apperrors "github.com/vigil-app/vigil/pkg/errors"
)

func createInboxEntry(t *testing.T, db *gorm.DB, userID, deviceID string, createdAt time.Time, title string) models.UserNotification {
	t.Helper()

	notification := models.Notification{
		DeviceID: deviceID,
		Type:     "fall",
		Title:    title,
	}
	require.NoError(t, db.Create(&notification).Error)
	require.NoError(t, db.Model(&models.Notification{}).
		Where("id = ?", notification.ID).
		Update("created_at", createdAt).Error)

	entry := models.UserNotification{
		UserID:         userID,
		NotificationID: notification.ID,
	}
	require.NoError(t, db.Create(&entry).Error)
	return entry
}

func TestListForUserOrdersNewestEventFirst(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db)
	require.NoError(t, err)

	user := createTestUser(t, db, "u1", "u1@example.com")
	device := createTestDevice(t, db, "CAM-1", "key")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	createInboxEntry(t, db, user.ID, device.ID, base, "oldest")
	createInboxEntry(t, db, user.ID, device.ID, base.Add(2*time.Hour), "newest")
	createInboxEntry(t, db, user.ID, device.ID, base.Add(time.Hour), "middle")

	entries, err := svc.ListForUser(context.Background(), ListInboxInput{
		UserID: user.ID,
		Status: StatusAll,
		Limit:  50,
	})
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, "newest", entries[0].Title)
	require.Equal(t, "middle", entries[1].Title)
	require.Equal(t, "oldest", entries[2].Title)

	// Joined fields come back in the same query.
	require.Equal(t, "CAM-1", entries[0].DeviceCode)
	require.Equal(t, "Kitchen", entries[0].DeviceLocation)
	require.Equal(t, "fall", entries[0].Type)
}

func TestListForUserPagination(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db)
	require.NoError(t, err)

	user := createTestUser(t, db, "u1", "u1@example.com")
	device := createTestDevice(t, db, "CAM-1", "key")

	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		createInboxEntry(t, db, user.ID, device.ID, base.Add(time.Duration(i)*time.Minute), "event")
	}

	page, err := svc.ListForUser(context.Background(), ListInboxInput{
		UserID: user.ID,
		Status: StatusAll,
		Limit:  2,
		Offset: 2,
	})
	require.NoError(t, err)
	require.Len(t, page, 2)
}

func TestListForUserValidatesInput(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db)
	require.NoError(t, err)

	_, err = svc.ListForUser(context.Background(), ListInboxInput{
		UserID: "u1",
		Status: "archived",
		Limit:  0,
		Offset: -1,
	})
	require.Error(t, err)

	appErr := apperrors.FromError(err)
	require.Equal(t, "VALIDATION_ERROR", appErr.Code)
	require.Len(t, appErr.Details, 3)
}

func TestMarkReadRemovesFromUnreadOnly(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db)
	require.NoError(t, err)

	user := createTestUser(t, db, "u1", "u1@example.com")
	device := createTestDevice(t, db, "CAM-1", "key")
	entry := createInboxEntry(t, db, user.ID, device.ID, time.Now().UTC(), "fall")

	ctx := context.Background()
	require.NoError(t, svc.MarkRead(ctx, user.ID, entry.ID))

	unread, err := svc.ListForUser(ctx, ListInboxInput{UserID: user.ID, Status: StatusUnread, Limit: 50})
	require.NoError(t, err)
	require.Empty(t, unread)

	all, err := svc.ListForUser(ctx, ListInboxInput{UserID: user.ID, Status: StatusAll, Limit: 50})
	require.NoError(t, err)
	require.Len(t, all, 1)
	require.True(t, all[0].IsRead)
	require.NotNil(t, all[0].ReadAt)

	// Marking read twice still succeeds.
	require.NoError(t, svc.MarkRead(ctx, user.ID, entry.ID))
}

func TestMarkReadScopedToOwner(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db)
	require.NoError(t, err)

	owner := createTestUser(t, db, "u1", "u1@example.com")
	intruder := createTestUser(t, db, "u2", "u2@example.com")
	device := createTestDevice(t, db, "CAM-1", "key")
	entry := createInboxEntry(t, db, owner.ID, device.ID, time.Now().UTC(), "fall")

	require.ErrorIs(t, svc.MarkRead(context.Background(), intruder.ID, entry.ID), apperrors.ErrNotFound)
}

func TestSoftDeleteHidesEntryEverywhere(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db)
	require.NoError(t, err)

	user := createTestUser(t, db, "u1", "u1@example.com")
	device := createTestDevice(t, db, "CAM-1", "key")
	entry := createInboxEntry(t, db, user.ID, device.ID, time.Now().UTC(), "fall")

	ctx := context.Background()
	require.NoError(t, svc.SoftDelete(ctx, user.ID, entry.ID))

	for _, status := range []StatusFilter{StatusUnread, StatusAll} {
		entries, err := svc.ListForUser(ctx, ListInboxInput{UserID: user.ID, Status: status, Limit: 50})
		require.NoError(t, err)
		require.Empty(t, entries)
	}

	require.ErrorIs(t, svc.MarkRead(ctx, user.ID, entry.ID), apperrors.ErrNotFound)
	require.ErrorIs(t, svc.SoftDelete(ctx, user.ID, entry.ID), apperrors.ErrNotFound)

	// The row itself survives for audit.
	var raw models.UserNotification
	require.NoError(t, db.First(&raw, "id = ?", entry.ID).Error)
	require.NotNil(t, raw.DeletedAt)
}

func TestPurgeDeletedRemovesOnlyOldSoftDeletes(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	svc, err := NewNotificationService(db)
	require.NoError(t, err)

	user := createTestUser(t, db, "u1", "u1@example.com")
	device := createTestDevice(t, db, "CAM-1", "key")

	old := createInboxEntry(t, db, user.ID, device.ID, time.Now().UTC(), "old")
	recent := createInboxEntry(t, db, user.ID, device.ID, time.Now().UTC(), "recent")
	kept := createInboxEntry(t, db, user.ID, device.ID, time.Now().UTC(), "kept")

	longAgo := time.Now().UTC().Add(-90 * 24 * time.Hour)
	require.NoError(t, db.Model(&models.UserNotification{}).
		Where("id = ?", old.ID).Update("deleted_at", longAgo).Error)
	require.NoError(t, db.Model(&models.UserNotification{}).
		Where("id = ?", recent.ID).Update("deleted_at", time.Now().UTC()).Error)

	purged, err := svc.PurgeDeleted(context.Background(), time.Now().UTC().Add(-30*24*time.Hour))
	require.NoError(t, err)
	require.EqualValues(t, 1, purged)

	var remaining []models.UserNotification
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 2)

	ids := []string{remaining[0].ID, remaining[1].ID}
	require.Contains(t, ids, recent.ID)
	require.Contains(t, ids, kept.ID)
}
