package maintenance

import (
	"context"
	"testing"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/require"

	"github.com/vigil-app/vigil/internal/database/testutil"
	"github.com/vigil-app/vigil/internal/models"
)

func TestCleanerRunOncePurgesOldDeletes(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	user := models.User{Email: "a@example.com", Password: "x"}
	require.NoError(t, db.Create(&user).Error)
	device := models.Device{Code: "CAM-1", Key: "k"}
	require.NoError(t, db.Create(&device).Error)

	makeEntry := func(deletedAt *time.Time) models.UserNotification {
		notification := models.Notification{DeviceID: device.ID, Type: "motion", Title: "t"}
		require.NoError(t, db.Create(&notification).Error)
		entry := models.UserNotification{
			UserID:         user.ID,
			NotificationID: notification.ID,
			DeletedAt:      deletedAt,
		}
		require.NoError(t, db.Create(&entry).Error)
		return entry
	}

	oldDelete := now.Add(-40 * 24 * time.Hour)
	recentDelete := now.Add(-time.Hour)
	makeEntry(&oldDelete)
	kept := makeEntry(&recentDelete)
	live := makeEntry(nil)

	cleaner, err := NewCleaner(db,
		WithNow(func() time.Time { return now }),
		WithRetention(30*24*time.Hour),
	)
	require.NoError(t, err)

	require.NoError(t, cleaner.RunOnce(context.Background()))

	var remaining []models.UserNotification
	require.NoError(t, db.Find(&remaining).Error)
	require.Len(t, remaining, 2)

	ids := []string{remaining[0].ID, remaining[1].ID}
	require.Contains(t, ids, kept.ID)
	require.Contains(t, ids, live.ID)
}

func TestCleanerStartStop(t *testing.T) {
	db := testutil.MustOpenTestDB(t, testutil.WithAutoMigrate())

	cleaner, err := NewCleaner(db,
		WithCron(cron.New(cron.WithLogger(cron.DiscardLogger))),
		WithSchedule("@every 1h"),
	)
	require.NoError(t, err)

	require.NoError(t, cleaner.Start())
	<-cleaner.Stop().Done()
}

func TestNewCleanerRequiresDB(t *testing.T) {
	_, err := NewCleaner(nil)
	require.Error(t, err)
}
