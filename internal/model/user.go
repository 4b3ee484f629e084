package model

import "time"

// User is a stored account. Identity is the primary key and is compared case-sensitively.
type User struct {
	ID           string
	Identity     string
	PasswordHash string
	DisplayName  string
	Created      time.Time
}

// Profile is the view of a User handed to callers; it never carries the hash.
type Profile struct {
	Identity    string    `json:"email"`
	DisplayName string    `json:"name"`
	Created     time.Time `json:"createdAt"`
}

// Profile returns the public view of u.
func (u *User) Profile() Profile {
	return Profile{
		Identity:    u.Identity,
		DisplayName: u.DisplayName,
		Created:     u.Created,
	}
}
