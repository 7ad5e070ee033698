package session

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

const (
	CookieName = "sid"
	// MinTokenLength is the shortest cookie value reused as a session id.
	MinTokenLength = 16
	// CookieMaxAge is 30 days in seconds.
	CookieMaxAge = 60 * 60 * 24 * 30

	idEntropyBytes = 16
)

// NewID returns 16 random bytes, base64url encoded without padding.
func NewID() (string, error) {
	b := make([]byte, idEntropyBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("failed to read session entropy: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// Resolve reuses token verbatim when it is long enough and otherwise issues a
// fresh id. Tokens are not checked against anything this server issued.
func Resolve(token string) (string, error) {
	if len(token) >= MinTokenLength {
		return token, nil
	}
	return NewID()
}

// FromRequest resolves the session id carried by the sid cookie.
func FromRequest(c *gin.Context) (string, error) {
	token, err := c.Cookie(CookieName)
	if err != nil {
		token = ""
	}
	return Resolve(token)
}

// WriteCookie refreshes the sid cookie on the response. It must run before
// the body is written.
func WriteCookie(c *gin.Context, sid string, secure bool) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(CookieName, sid, CookieMaxAge, "/", "", secure, true)
}

// NewCookie builds the same cookie as WriteCookie for responses gin does not
// write itself, such as a websocket upgrade.
func NewCookie(sid string, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     CookieName,
		Value:    sid,
		Path:     "/",
		MaxAge:   CookieMaxAge,
		Secure:   secure,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}
