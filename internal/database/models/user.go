package models

type User struct {
	Base
	Email            string  `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash     string  `gorm:"not null" json:"-"`
	Name             string  `gorm:"not null" json:"name"`
	StripeCustomerID *string `json:"stripeCustomerId,omitempty"`
}

func (User) TableName() string {
	return "users"
}
