package models

import "gorm.io/datatypes"

// Notification is one durable device-originated event. Rows are append-only:
// nothing in the application mutates or deletes them after creation.
type Notification struct {
	BaseModel

	DeviceID string         `gorm:"type:uuid;not null;index" json:"device_id"`
	Type     string         `gorm:"type:varchar(64);not null" json:"type"`
	Title    string         `gorm:"type:varchar(255);not null" json:"title"`
	Body     string         `gorm:"type:text" json:"body,omitempty"`
	Payload  datatypes.JSON `json:"payload,omitempty"`

	Device *Device `gorm:"foreignKey:DeviceID" json:"-"`
}
