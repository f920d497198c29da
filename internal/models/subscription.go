package models

// Subscription links a user to a device. At most one row may exist per
// (user, device) pair; the set of rows at event time defines the fan-out set.
type Subscription struct {
	BaseModel

	UserID   string `gorm:"type:uuid;not null;uniqueIndex:idx_subscriptions_user_device" json:"user_id"`
	DeviceID string `gorm:"type:uuid;not null;uniqueIndex:idx_subscriptions_user_device;index" json:"device_id"`

	User   *User   `gorm:"foreignKey:UserID" json:"-"`
	Device *Device `gorm:"foreignKey:DeviceID" json:"-"`
}
