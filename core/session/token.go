// Package session implements stateless, tamper-evident authentication
// tokens carried in HTTP-only cookies. A token is the base64url-encoded
// JSON payload joined to a base64url HMAC-SHA256 signature with a ".".
// There is no server-side session storage and no revocation list;
// invalidation is purely time-based.
package session

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/darasahq/darasa/core"
)

var (
	nowFunc = time.Now // mockable

	// ErrInvalidSession is returned for every verification failure:
	// malformed token, bad signature, expired or missing cookie. Callers
	// must never learn which.
	ErrInvalidSession = errors.New("invalid session")
)

// Payload is the authenticated principal carried inside a token.
type Payload struct {
	SubjectID  string `json:"sub"`
	Email      string `json:"email"`
	Role       string `json:"role,omitempty"`
	IssuedAt   int64  `json:"iat"` // epoch milliseconds, set once at login
	LastActive int64  `json:"lat"` // epoch milliseconds, refreshed per request
}

// Keeper signs and verifies tokens for one principal type. Independent
// keepers (distinct cookie names and secrets) never accept each other's
// tokens.
type Keeper struct {
	cookieName string
	secret     []byte
	idle       time.Duration
	absolute   time.Duration
	secure     bool
}

func NewKeeper(cookieName string, secret []byte, idle, absolute time.Duration, secure bool) (*Keeper, error) {
	if cookieName == "" {
		return nil, errors.New("session: cookie name is required")
	}
	if len(secret) == 0 {
		return nil, errors.New("session: signing secret is required")
	}
	if idle <= 0 || absolute <= 0 {
		return nil, errors.New("session: timeouts must be positive")
	}
	return &Keeper{
		cookieName: cookieName,
		secret:     secret,
		idle:       idle,
		absolute:   absolute,
		secure:     secure,
	}, nil
}

func (k *Keeper) CookieName() string { return k.cookieName }

// New returns a fresh Payload for the given principal.
func (k *Keeper) New(subjectID, email, role string) Payload {
	now := epochMillis(nowFunc())
	return Payload{
		SubjectID:  subjectID,
		Email:      core.CleanString(email, true /* lower */),
		Role:       role,
		IssuedAt:   now,
		LastActive: now,
	}
}

// Sign serializes the payload and appends its HMAC-SHA256 signature.
func (k *Keeper) Sign(p Payload) (string, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return "", errors.Wrap(err, "encoding session payload")
	}
	enc := base64.RawURLEncoding.EncodeToString(body)
	return enc + "." + k.sign(enc), nil
}

// Verify checks the signature and both time invariants:
// now-IssuedAt <= absolute AND now-LastActive <= idle.
func (k *Keeper) Verify(token string) (Payload, error) {
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Payload{}, ErrInvalidSession
	}
	body, sig := parts[0], parts[1]

	if subtle.ConstantTimeCompare([]byte(k.sign(body)), []byte(sig)) == 0 {
		return Payload{}, ErrInvalidSession
	}

	raw, err := base64.RawURLEncoding.DecodeString(body)
	if err != nil {
		return Payload{}, ErrInvalidSession
	}
	var p Payload
	if err = json.Unmarshal(raw, &p); err != nil {
		return Payload{}, ErrInvalidSession
	}

	now := epochMillis(nowFunc())
	if now-p.IssuedAt > k.absolute.Milliseconds() {
		return Payload{}, ErrInvalidSession
	}
	if now-p.LastActive > k.idle.Milliseconds() {
		return Payload{}, ErrInvalidSession
	}
	return p, nil
}

// Refresh extends the idle window. The absolute ceiling (IssuedAt) is
// never touched.
func (k *Keeper) Refresh(p Payload) Payload {
	p.LastActive = epochMillis(nowFunc())
	return p
}

// Authenticate reads and verifies the session cookie and returns the
// refreshed payload; the caller is expected to re-issue the cookie on the
// outgoing response.
func (k *Keeper) Authenticate(r *http.Request) (Payload, error) {
	c, err := r.Cookie(k.cookieName)
	if err != nil || c.Value == "" {
		return Payload{}, ErrInvalidSession
	}
	p, err := k.Verify(c.Value)
	if err != nil {
		return Payload{}, err
	}
	return k.Refresh(p), nil
}

func (k *Keeper) sign(encodedBody string) string {
	mac := hmac.New(sha256.New, k.secret)
	mac.Write([]byte(encodedBody))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func epochMillis(t time.Time) int64 {
	return t.UnixNano() / int64(time.Millisecond)
}
