package models

import "time"

// UserNotification is one subscriber's inbox entry for one event, created at
// fan-out time. Read and delete state belong to the owning user only.
// DeletedAt is managed explicitly rather than through gorm soft deletes so
// that deleted rows stay queryable for audit.
type UserNotification struct {
	BaseModel

	UserID         string `gorm:"type:uuid;not null;uniqueIndex:idx_user_notifications_user_event;index" json:"user_id"`
	NotificationID string `gorm:"type:uuid;not null;uniqueIndex:idx_user_notifications_user_event" json:"notification_id"`

	IsRead    bool       `gorm:"default:false;index" json:"is_read"`
	ReadAt    *time.Time `json:"read_at,omitempty"`
	DeletedAt *time.Time `gorm:"index" json:"-"`

	User         *User         `gorm:"foreignKey:UserID" json:"-"`
	Notification *Notification `gorm:"foreignKey:NotificationID" json:"-"`
}
