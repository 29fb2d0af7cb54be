// Package transport defines request/response DTOs for the auth module.
package transport

// CreateSessionRequest exchanges an identity-provider ID token for a portal
// access token. Provider is "cognito" (back office) or "line" (field).
type CreateSessionRequest struct {
	Provider string `json:"provider" validate:"required,oneof=cognito line"`
	IDToken  string `json:"idToken" validate:"required"`
}

// SessionResponse carries the minted portal access token.
type SessionResponse struct {
	AccessToken string       `json:"accessToken"`
	ExpiresIn   int64        `json:"expiresIn"`
	User        UserResponse `json:"user"`
}

// UserResponse is the public shape of a portal user.
type UserResponse struct {
	ID    string  `json:"id"`
	Name  string  `json:"name"`
	Email *string `json:"email,omitempty"`
	Role  string  `json:"role"`
}
