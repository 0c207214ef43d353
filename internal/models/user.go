package models

import "time"

// Role distinguishes the two marketplace sides.
type Role string

const (
	RoleCustomer Role = "customer"
	RoleWorker   Role = "worker"
)

// User represents a platform account (customer or worker).
type User struct {
	ID          string    `json:"id" db:"id"`
	Email       string    `json:"email" db:"email"`
	FullName    string    `json:"fullName" db:"full_name"`
	Phone       string    `json:"phone,omitempty" db:"phone"`
	Role        Role      `json:"role" db:"role"`
	DeviceToken string    `json:"-" db:"device_token"`
	CreatedAt   time.Time `json:"createdAt" db:"created_at"`
}
