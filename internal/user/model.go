package user

import (
	"time"

	"github.com/MikeMC777/storefront-ecom/internal/access"
)

type User struct {
	ID           int64       `json:"id"`
	Email        string      `json:"email"`
	Name         string      `json:"name"`
	Role         access.Role `json:"role"`
	IsActive     bool        `json:"is_active"`
	PasswordHash string      `json:"-"`
	CreatedAt    time.Time   `json:"created_at"`
	UpdatedAt    time.Time   `json:"updated_at"`
}

func (u *User) Principal() access.Principal {
	return access.Principal{UserID: u.ID, Role: u.Role}
}

// Profile is the public shape of a user.
// swagger:model Profile
type Profile struct {
	ID    int64       `json:"id"    example:"7"`
	Email string      `json:"email" example:"ana@example.com"`
	Name  string      `json:"name"  example:"Ana"`
	Role  access.Role `json:"role"  example:"customer"`
}

func (u *User) Profile() Profile {
	return Profile{ID: u.ID, Email: u.Email, Name: u.Name, Role: u.Role}
}

// RegisterRequest payload of self registration.
// swagger:model RegisterRequest
type RegisterRequest struct {
	Email    string `json:"email"    example:"ana@example.com"`
	Password string `json:"password" example:"s3cret-pass"`
	Name     string `json:"name"     example:"Ana"`
}

// LoginRequest payload of login.
// swagger:model LoginRequest
type LoginRequest struct {
	Email    string `json:"email"    example:"ana@example.com"`
	Password string `json:"password" example:"s3cret-pass"`
}

// CreateUserRequest payload of admin provisioning.
// swagger:model CreateUserRequest
type CreateUserRequest struct {
	Email    string `json:"email"    example:"staff@example.com"`
	Password string `json:"password" example:"s3cret-pass"`
	Name     string `json:"name"     example:"Luis"`
	Role     string `json:"role"     example:"employee"`
}
