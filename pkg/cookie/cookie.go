// Package cookie carries opaque session tokens in a signed (and optionally
// encrypted) browser cookie.
package cookie

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/securecookie"
)

// Codec signs session tokens into cookies and reads them back.
type Codec struct {
	name   string
	secure bool
	sc     *securecookie.SecureCookie
}

// New builds a codec. hashKey is mandatory; blockKey enables AES encryption
// and must be 16, 24 or 32 bytes when set.
func New(name, hashKey, blockKey string, secure bool) (*Codec, error) {
	if name == "" {
		return nil, fmt.Errorf("cookie name required")
	}
	if len(hashKey) < 16 {
		return nil, fmt.Errorf("cookie hash key must be at least 16 bytes")
	}
	var block []byte
	switch len(blockKey) {
	case 0:
	case 16, 24, 32:
		block = []byte(blockKey)
	default:
		return nil, fmt.Errorf("cookie block key must be 16, 24 or 32 bytes")
	}
	return &Codec{
		name:   name,
		secure: secure,
		sc:     securecookie.New([]byte(hashKey), block),
	}, nil
}

// Name returns the cookie name.
func (c *Codec) Name() string {
	return c.name
}

// Write sets the session cookie to expire together with the session.
func (c *Codec) Write(w http.ResponseWriter, token string, expiresAt time.Time) error {
	encoded, err := c.sc.Encode(c.name, token)
	if err != nil {
		return fmt.Errorf("encode session cookie: %w", err)
	}
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    encoded,
		Path:     "/",
		Expires:  expiresAt,
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
	return nil
}

// Read extracts the token from the request cookie. It returns
// http.ErrNoCookie when the cookie is absent.
func (c *Codec) Read(r *http.Request) (string, error) {
	raw, err := r.Cookie(c.name)
	if err != nil {
		return "", err
	}
	var token string
	if err := c.sc.Decode(c.name, raw.Value, &token); err != nil {
		return "", fmt.Errorf("decode session cookie: %w", err)
	}
	return token, nil
}

// Clear instructs the browser to drop the cookie.
func (c *Codec) Clear(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     c.name,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		Expires:  time.Unix(0, 0),
		HttpOnly: true,
		Secure:   c.secure,
		SameSite: http.SameSiteLaxMode,
	})
}
