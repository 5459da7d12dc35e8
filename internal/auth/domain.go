package auth

import (
	"time"

	"github.com/MeghanaKotharu25/SIH-AIQR-PIXELS/internal/rbac"
)

// User represents a personnel account.
type User struct {
	ID           int64
	Username     string
	PasswordHash string
	Role         rbac.Role
	IsActive     bool
	CreatedAt    time.Time
	LastLoginAt  *time.Time
}

// Principal projects the account onto the capability model.
func (u User) Principal() rbac.Principal {
	return rbac.Principal{UserID: u.ID, Username: u.Username, Role: u.Role}
}

// Credentials is the login payload.
type Credentials struct {
	Username string `json:"username" validate:"required,max=64"`
	Password string `json:"password" validate:"required,min=8"`
}
