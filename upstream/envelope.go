package upstream

import "encoding/json"

// Envelope is the uniform wrapper of every backend response.
type Envelope[T any] struct {
	Code    int             `json:"code"`
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    T               `json:"data"`
	Errors  json.RawMessage `json:"errors,omitempty"`
}

// TokenPair is the data payload of login and refresh responses.
type TokenPair struct {
	AccessToken  string  `json:"access_token"`
	RefreshToken *string `json:"refresh_token,omitempty"`
}

// UserInfo is the identity attached to a login response.
type UserInfo struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	Name     string `json:"name,omitempty"`
}

// AuthResponse is the normalized result of login and refresh.
type AuthResponse struct {
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token,omitempty"`
	User         *UserInfo `json:"user,omitempty"`
}

type errorBody struct {
	Message string `json:"message"`
}
