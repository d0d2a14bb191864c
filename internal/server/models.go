package server

import (
	"time"

	"github.com/gourdian25/gourdianauth"
)

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    string `json:"id"`
	Login string `json:"login"`
	Role  string `json:"role"`
}

type tokenResponse struct {
	AccessToken       string       `json:"accessToken"`
	AccessTokenExpiry time.Time    `json:"accessTokenExpiry"`
	User              userResponse `json:"user"`
}

type validateResponse struct {
	UserID    string    `json:"userId"`
	Login     string    `json:"login"`
	Role      string    `json:"role"`
	ExpiresAt time.Time `json:"expiresAt"`
}

func toTokenResponse(pair *gourdianauth.TokenPair, principal gourdianauth.Principal) tokenResponse {
	return tokenResponse{
		AccessToken:       pair.Access.Token,
		AccessTokenExpiry: pair.Access.ExpiresAt,
		User: userResponse{
			ID:    principal.ID.String(),
			Login: principal.Login,
			Role:  principal.Role,
		},
	}
}
