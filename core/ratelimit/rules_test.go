package ratelimit

import (
	"net/http"
	"testing"
	"time"
)

func TestRulesPolicyFor(t *testing.T) {
	fallback := Policy{Window: 15 * time.Minute, MaxRequests: 300}
	tight := Policy{Window: 15 * time.Minute, MaxRequests: 10}

	rules := NewRules(
		fallback,
		Rule{Method: http.MethodPost, PathPrefix: "/api/users/login", Policy: tight},
		Rule{Method: http.MethodPost, PathPrefix: "/api/users/password-reset", Policy: tight},
		Rule{Method: http.MethodPost, PathPrefix: "/api/applications", Policy: tight},
	)

	tests := []struct {
		name   string
		method string
		path   string
		want   Policy
	}{
		{name: "login is tight", method: http.MethodPost, path: "/api/users/login", want: tight},
		{name: "password reset confirm shares the prefix", method: http.MethodPost, path: "/api/users/password-reset-confirm", want: tight},
		{name: "application submit is tight", method: http.MethodPost, path: "/api/applications", want: tight},
		{name: "method must match", method: http.MethodGet, path: "/api/applications", want: fallback},
		{name: "unmatched path falls back", method: http.MethodGet, path: "/api/cohorts", want: fallback},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := rules.PolicyFor(tt.method, tt.path); got != tt.want {
				t.Errorf("PolicyFor(%s %s) = %+v, want %+v", tt.method, tt.path, got, tt.want)
			}
		})
	}
}

func TestKey(t *testing.T) {
	if got := Key("/api/users/login", "203.0.113.7"); got != "/api/users/login:203.0.113.7" {
		t.Errorf("Key() = %q", got)
	}
}
