package session

import (
	"net/http"
	"time"
)

// Cookie wraps a signed token in the keeper's cookie. Max-Age matches the
// absolute session ceiling so the browser drops the cookie at the same
// horizon the verifier enforces.
func (k *Keeper) Cookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     k.cookieName,
		Value:    token,
		Path:     "/",
		MaxAge:   int(k.absolute / time.Second),
		HttpOnly: true,
		Secure:   k.secure,
		SameSite: http.SameSiteLaxMode,
	}
}

// ExpiredCookie overwrites the session cookie with an empty value and an
// immediate expiry.
func (k *Keeper) ExpiredCookie() *http.Cookie {
	return &http.Cookie{
		Name:     k.cookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   k.secure,
		SameSite: http.SameSiteLaxMode,
	}
}
