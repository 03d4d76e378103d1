package domain

import "strings"

// User is the identity snapshot returned by the user service /auth/me
// endpoint. It lives only as long as the validation cache allows.
type User struct {
	ID     int64  `json:"id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	Status string `json:"status"`
}

func (u *User) IsActive() bool {
	return strings.EqualFold(u.Status, "active")
}

func (u *User) IsAdmin() bool {
	return strings.EqualFold(u.Role, "admin")
}
