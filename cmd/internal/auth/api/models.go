package authapi

import (
	"time"

	"authcore/cmd/internal/auth/session"
)

type loginRequest struct {
	Identifier string `json:"identifier"`
	// Email is accepted as an alias of Identifier.
	Email    string `json:"email"`
	Password string `json:"password"`
}

type registerRequest struct {
	Email     string  `json:"email"`
	Password  string  `json:"password"`
	Username  *string `json:"username"`
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type userResponse struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Username  *string   `json:"username"`
	FirstName *string   `json:"first_name"`
	LastName  *string   `json:"last_name"`
	IsAdmin   bool      `json:"is_admin"`
	CreatedAt time.Time `json:"created_at"`
}

type grantResponse struct {
	AccessToken      string        `json:"access_token"`
	TokenType        string        `json:"token_type"`
	ExpiresIn        int64         `json:"expires_in"`
	AccessExpiresAt  time.Time     `json:"access_expires_at"`
	RefreshToken     string        `json:"refresh_token,omitempty"`
	RefreshExpiresAt *time.Time    `json:"refresh_expires_at,omitempty"`
	SessionID        string        `json:"session_id"`
	User             *userResponse `json:"user,omitempty"`
}

type sessionResponse struct {
	TokenID   string    `json:"token_id"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

type sessionsResponse struct {
	Sessions []sessionResponse `json:"sessions"`
}

type validateResponse struct {
	Valid bool `json:"valid"`
}

type meResponse struct {
	User userResponse `json:"user"`
}

func toUserResponse(u session.PublicUser) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Username:  u.Username,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		IsAdmin:   u.IsAdmin,
		CreatedAt: u.CreatedAt,
	}
}

func toGrantResponse(g session.Grant) grantResponse {
	out := grantResponse{
		AccessToken:     g.AccessToken,
		TokenType:       "Bearer",
		ExpiresIn:       int64(g.ExpiresIn.Seconds()),
		AccessExpiresAt: g.AccessExpiresAt,
		RefreshToken:    g.RefreshToken,
		SessionID:       g.SessionID,
	}
	if g.RefreshToken != "" {
		exp := g.RefreshExpiresAt
		out.RefreshExpiresAt = &exp
	}
	if g.User != nil {
		u := toUserResponse(*g.User)
		out.User = &u
	}
	return out
}

func toSessionsResponse(views []session.SessionView) sessionsResponse {
	out := sessionsResponse{Sessions: make([]sessionResponse, 0, len(views))}
	for _, v := range views {
		out.Sessions = append(out.Sessions, sessionResponse{
			TokenID:   v.TokenID,
			CreatedAt: v.CreatedAt,
			ExpiresAt: v.ExpiresAt,
		})
	}
	return out
}
