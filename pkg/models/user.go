package models

import (
	"time"

	"github.com/google/uuid"
)

// User is a dashboard account. Passwords are bcrypt-hashed; the hash never
// leaves the store layer in API responses.
type User struct {
	ID           uuid.UUID `json:"id"`
	Username     string    `json:"username"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
