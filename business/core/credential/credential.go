// Package credential manages the session credential issued by the gate
// after a successful solve. The credential is advisory only, the server
// decides if it still grants access.
package credential

import (
	"net/http"
	"strings"
	"time"
)

// Values that describe the session credential.
const (
	Name = "Zephyr.PoW.JWT"
	Path = "/"
	TTL  = 300 * time.Second
)

// Credential represents a cookie like session token.
type Credential struct {
	Name    string    `json:"name"`
	Value   string    `json:"value"`
	Path    string    `json:"path"`
	Expires time.Time `json:"expires"`
}

// New constructs the session credential for the token, expiring TTL from now.
func New(token string, now time.Time) Credential {
	return Credential{
		Name:    Name,
		Value:   token,
		Path:    Path,
		Expires: now.Add(TTL),
	}
}

// Valid reports whether the credential holds a token and has not expired.
func (c Credential) Valid(now time.Time) bool {
	return c.Value != "" && now.Before(c.Expires)
}

// Matches reports whether the credential's path scope covers the
// request path.
func (c Credential) Matches(path string) bool {
	if c.Path == "" || c.Path == "/" {
		return true
	}
	if path == c.Path {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(c.Path, "/")+"/")
}

// Cookie converts the credential into an HTTP cookie.
func (c Credential) Cookie() *http.Cookie {
	return &http.Cookie{
		Name:    c.Name,
		Value:   c.Value,
		Path:    c.Path,
		Expires: c.Expires,
		MaxAge:  int(time.Until(c.Expires).Seconds()),
	}
}

// =============================================================================

// Store is the behavior required to persist the session credential.
type Store interface {
	Load(now time.Time) (Credential, bool)
	Save(c Credential) error
	Clear() error
}
