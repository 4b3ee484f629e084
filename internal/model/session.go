package model

// SessionIdentity is what a verified session token vouches for.
type SessionIdentity struct {
	Identity    string `json:"email"`
	DisplayName string `json:"name"`
}

// LoginResult is returned by a successful login.
type LoginResult struct {
	Token       string `json:"token"`
	Identity    string `json:"email"`
	DisplayName string `json:"name"`
}
