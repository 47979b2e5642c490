package domain

import "time"

// User is an authenticated identity as supplied by the identity provider.
type User struct {
	ID                string
	Name              string
	Email             string
	Phone             string
	AvatarURL         string
	PaymentCustomerID string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
