package models

// Device represents a physical event source. The public code is shared with
// users (printed as a QR label); the key authenticates event submissions and
// is never exposed through the API.
type Device struct {
	BaseModel

	Code     string `gorm:"uniqueIndex;not null" json:"code"`
	Key      string `gorm:"not null" json:"-"`
	Location string `json:"location"`

	Subscriptions []Subscription `gorm:"foreignKey:DeviceID;constraint:OnDelete:CASCADE" json:"-"`
}
