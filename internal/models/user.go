package models

// User describes a registered subscriber account.
type User struct {
	BaseModel

	Email    string `gorm:"uniqueIndex;not null" json:"email"`
	Username string `json:"username"`
	Password string `gorm:"not null" json:"-"`

	Subscriptions []Subscription `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}
