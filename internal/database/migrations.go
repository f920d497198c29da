package database

import (
	"gorm.io/gorm"

	"github.com/vigil-app/vigil/internal/models"
)

// AutoMigrate creates or updates the database schema for all models.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&models.User{},
		&models.Device{},
		&models.Subscription{},
		&models.Notification{},
		&models.UserNotification{},
	)
}

// SeedData provisions demo devices so a fresh install has something to scan.
// Devices are matched by code, so reseeding an existing database is a no-op.
func SeedData(db *gorm.DB) error {
	devices := []models.Device{
		{
			Code:     "CAM-DEMO-1",
			Key:      "dev-key-cam-demo-1",
			Location: "Living room",
		},
		{
			Code:     "CAM-DEMO-2",
			Key:      "dev-key-cam-demo-2",
			Location: "Bedroom",
		},
	}

	for _, device := range devices {
		if err := db.Where(models.Device{Code: device.Code}).Attrs(device).FirstOrCreate(&models.Device{}).Error; err != nil {
			return err
		}
	}

	return nil
}
