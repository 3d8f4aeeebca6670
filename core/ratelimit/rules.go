package ratelimit

import "strings"

type (
	// Rule binds a Policy to requests matching an HTTP method (empty =
	// any) and a path prefix.
	Rule struct {
		Method     string
		PathPrefix string
		Policy     Policy
	}

	// Rules is an ordered rule list with a fallback Policy for unmatched
	// requests. Sensitive endpoints (login, password reset, account
	// creation) are expected to carry tighter rules than the fallback.
	Rules struct {
		rules    []Rule
		fallback Policy
	}
)

func NewRules(fallback Policy, rules ...Rule) *Rules {
	return &Rules{rules: rules, fallback: fallback}
}

// PolicyFor returns the first matching rule's Policy, or the fallback.
func (r *Rules) PolicyFor(method, path string) Policy {
	for _, rule := range r.rules {
		if rule.Method != "" && rule.Method != method {
			continue
		}
		if strings.HasPrefix(path, rule.PathPrefix) {
			return rule.Policy
		}
	}
	return r.fallback
}
