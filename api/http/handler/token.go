package handler

import (
	"net/http"
	"time"

	"github.com/golang-jwt/jwt"
)

var timeNow = func() time.Time {
	return time.Now()
}

// TokenHandler issues Centrifugo connection tokens.
type TokenHandler struct {
	secret []byte
	ttl    time.Duration
}

func NewTokenHandler(secret string, ttl time.Duration) *TokenHandler {
	return &TokenHandler{secret: []byte(secret), ttl: ttl}
}

type tokenResponse struct {
	Token string `json:"token"`
}

func (h TokenHandler) GetToken(res http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	if len(h.secret) == 0 {
		writeError(ctx, res, http.StatusServiceUnavailable, "token signing is not configured")
		return
	}
	user := req.URL.Query().Get("user")
	if user == "" {
		writeError(ctx, res, http.StatusBadRequest, "user is required")
		return
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.StandardClaims{
		Subject:   user,
		ExpiresAt: timeNow().Add(h.ttl).Unix(),
	})
	signed, err := token.SignedString(h.secret)
	if err != nil {
		writeError(ctx, res, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(ctx, res, http.StatusOK, tokenResponse{Token: signed})
}
