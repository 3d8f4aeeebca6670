package session

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestKeeper(t *testing.T, secret string) *Keeper {
	t.Helper()
	k, err := NewKeeper("test_session", []byte(secret), 30*time.Minute, 24*time.Hour, false)
	if err != nil {
		t.Fatalf("NewKeeper() failed: %v", err)
	}
	return k
}

func TestNewKeeper(t *testing.T) {
	tests := []struct {
		name    string
		cookie  string
		secret  string
		idle    time.Duration
		wantErr bool
	}{
		{name: "ok", cookie: "sess", secret: "secret", idle: time.Minute},
		{name: "no cookie name", secret: "secret", idle: time.Minute, wantErr: true},
		{name: "no secret", cookie: "sess", idle: time.Minute, wantErr: true},
		{name: "bad timeout", cookie: "sess", secret: "secret", idle: -time.Minute, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewKeeper(tt.cookie, []byte(tt.secret), tt.idle, 24*time.Hour, false)
			if (err != nil) != tt.wantErr {
				t.Errorf("NewKeeper() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSignVerifyRoundTrip(t *testing.T) {
	k := newTestKeeper(t, "secret")

	p := k.New("42", "  Student@Test.CD ", "student:")
	if p.Email != "student@test.cd" {
		t.Errorf("New() email = %q; want normalized", p.Email)
	}
	if p.IssuedAt == 0 || p.IssuedAt != p.LastActive {
		t.Errorf("New() timestamps not initialized: %+v", p)
	}

	token, err := k.Sign(p)
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}
	got, err := k.Verify(token)
	if err != nil {
		t.Fatalf("Verify() failed: %v", err)
	}
	if got != p {
		t.Errorf("Verify() = %+v, want %+v", got, p)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	k := newTestKeeper(t, "secret")
	other := newTestKeeper(t, "other-secret")

	token, err := k.Sign(k.New("42", "t@test.cd", ""))
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}

	// flip the last signature byte
	flipped := token[:len(token)-1]
	if token[len(token)-1] == 'A' {
		flipped += "B"
	} else {
		flipped += "A"
	}

	tests := []struct {
		name  string
		token string
	}{
		{name: "empty", token: ""},
		{name: "no separator", token: "bm9wZQ"},
		{name: "empty body", token: ".c2ln"},
		{name: "empty signature", token: "Ym9keQ."},
		{name: "garbage body", token: "!!notb64!!.c2ln"},
		{name: "flipped signature byte", token: flipped},
		{name: "swapped halves", token: "c2ln." + token[:len(token)-len("c2ln.")]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := k.Verify(tt.token); err != ErrInvalidSession {
				t.Errorf("Verify() error = %v, want ErrInvalidSession", err)
			}
		})
	}

	// a token signed for one keeper cannot be replayed against another
	if _, err := other.Verify(token); err != ErrInvalidSession {
		t.Errorf("cross-keeper Verify() error = %v, want ErrInvalidSession", err)
	}
}

func TestVerifyTimeouts(t *testing.T) {
	k := newTestKeeper(t, "secret")
	now := time.Now()
	defer func() { nowFunc = time.Now }()

	tests := []struct {
		name    string
		iatAgo  time.Duration
		latAgo  time.Duration
		wantErr bool
	}{
		{name: "fresh", iatAgo: time.Minute, latAgo: time.Minute},
		{name: "active but past absolute ceiling", iatAgo: 24*time.Hour + time.Second, latAgo: time.Second, wantErr: true},
		{name: "recent but idle too long", iatAgo: time.Hour, latAgo: 30*time.Minute + time.Second, wantErr: true},
		{name: "exactly at both limits", iatAgo: 24 * time.Hour, latAgo: 30 * time.Minute},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := Payload{
				SubjectID:  "42",
				Email:      "t@test.cd",
				IssuedAt:   epochMillis(now.Add(-tt.iatAgo)),
				LastActive: epochMillis(now.Add(-tt.latAgo)),
			}
			token, err := k.Sign(p)
			if err != nil {
				t.Fatalf("Sign() failed: %v", err)
			}
			nowFunc = func() time.Time { return now }
			_, err = k.Verify(token)
			if tt.wantErr && err != ErrInvalidSession {
				t.Errorf("Verify() error = %v, want ErrInvalidSession", err)
			} else if !tt.wantErr && err != nil {
				t.Errorf("Verify() unexpected error = %v", err)
			}
		})
	}
}

func TestRefreshSlidesIdleWindowOnly(t *testing.T) {
	k := newTestKeeper(t, "secret")
	defer func() { nowFunc = time.Now }()

	t0 := time.Now()
	nowFunc = func() time.Time { return t0 }
	p := k.New("42", "t@test.cd", "")

	nowFunc = func() time.Time { return t0.Add(10 * time.Minute) }
	refreshed := k.Refresh(p)

	if refreshed.IssuedAt != p.IssuedAt {
		t.Errorf("Refresh() must not touch IssuedAt: got %d, want %d", refreshed.IssuedAt, p.IssuedAt)
	}
	if refreshed.LastActive != epochMillis(t0.Add(10*time.Minute)) {
		t.Errorf("Refresh() LastActive = %d, want %d", refreshed.LastActive, epochMillis(t0.Add(10*time.Minute)))
	}
}

func TestAuthenticate(t *testing.T) {
	k := newTestKeeper(t, "secret")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if _, err := k.Authenticate(req); err != ErrInvalidSession {
		t.Errorf("Authenticate() without cookie error = %v, want ErrInvalidSession", err)
	}

	p := k.New("42", "t@test.cd", "admin:")
	token, err := k.Sign(p)
	if err != nil {
		t.Fatalf("Sign() failed: %v", err)
	}
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(k.Cookie(token))

	got, err := k.Authenticate(req)
	if err != nil {
		t.Fatalf("Authenticate() failed: %v", err)
	}
	if got.SubjectID != p.SubjectID || got.IssuedAt != p.IssuedAt {
		t.Errorf("Authenticate() = %+v, want principal %+v", got, p)
	}
	if got.LastActive < p.LastActive {
		t.Errorf("Authenticate() must refresh LastActive: got %d < %d", got.LastActive, p.LastActive)
	}
}

func TestCookieAttributes(t *testing.T) {
	k, err := NewKeeper("admin_session", []byte("secret"), 30*time.Minute, 24*time.Hour, true)
	if err != nil {
		t.Fatalf("NewKeeper() failed: %v", err)
	}

	c := k.Cookie("tok")
	if !c.HttpOnly || !c.Secure || c.SameSite != http.SameSiteLaxMode || c.Path != "/" {
		t.Errorf("Cookie() attributes = %+v", c)
	}
	if c.MaxAge != int(24*time.Hour/time.Second) {
		t.Errorf("Cookie() MaxAge = %d, want absolute ceiling in seconds", c.MaxAge)
	}

	exp := k.ExpiredCookie()
	if exp.Value != "" || exp.MaxAge >= 0 {
		t.Errorf("ExpiredCookie() = %+v, want empty value and negative MaxAge", exp)
	}
}
