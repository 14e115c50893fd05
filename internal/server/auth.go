package server

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// TokenAuth guards the feed with a shared token passed as the "token" query
// parameter or a bearer Authorization header. A nil TokenAuth or an empty
// token lets everyone in.
type TokenAuth struct {
	Token string
}

func (a *TokenAuth) OnConnect(r *http.Request) error {
	if a == nil || a.Token == "" {
		return nil
	}
	got := r.URL.Query().Get("token")
	if got == "" {
		got = strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	}
	if subtle.ConstantTimeCompare([]byte(got), []byte(a.Token)) != 1 {
		return ErrUnauthorized
	}
	return nil
}
