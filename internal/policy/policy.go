package policy

import (
	"errors"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/wardenlabs/warden/internal/observability"
)

// Wildcard is the principal that grants access to everyone, including
// anonymous callers.
const Wildcard = "*"

// ErrEmptyPattern is returned when a rule key contains no path pattern.
var ErrEmptyPattern = errors.New("access rule has empty path pattern")

// Rule associates a path pattern with the principals allowed to use it.
type Rule struct {
	// Pattern is an exact path, a prefix ending in '/', or a prefix
	// ending in '*'.
	Pattern string

	// Principals is the set of usernames granted access, or Wildcard.
	Principals []string
}

// allows reports whether the rule grants access to the given username.
// An empty username means anonymous.
func (r Rule) allows(username string) bool {
	for _, p := range r.Principals {
		if p == Wildcard {
			return true
		}
		if username != "" && p == username {
			return true
		}
	}
	return false
}

// matches reports whether the rule's pattern covers the given path.
func (r Rule) matches(path string) bool {
	switch {
	case r.Pattern == path:
		return true
	case strings.HasSuffix(r.Pattern, "/"):
		return strings.HasPrefix(path, r.Pattern)
	case strings.HasSuffix(r.Pattern, "*"):
		return strings.HasPrefix(path, strings.TrimSuffix(r.Pattern, "*"))
	default:
		return false
	}
}

// Ruleset maps a subdomain (empty string for the default, proxy-local rule
// set) to its rules, sorted by descending pattern length.
type Ruleset map[string][]Rule

// ParseRules builds a Ruleset from raw configuration entries. Keys are
// either a bare path pattern or "subdomain@pattern". Each subdomain's rules
// are sorted by descending pattern length so evaluation can stop at the
// first match.
func ParseRules(raw map[string][]string) (Ruleset, error) {
	rs := make(Ruleset)
	for key, principals := range raw {
		subdomain, pattern := splitRuleKey(key)
		if pattern == "" {
			return nil, ErrEmptyPattern
		}
		rs[subdomain] = append(rs[subdomain], Rule{
			Pattern:    pattern,
			Principals: principals,
		})
	}
	for _, rules := range rs {
		sort.SliceStable(rules, func(i, j int) bool {
			return len(rules[i].Pattern) > len(rules[j].Pattern)
		})
	}
	return rs, nil
}

// splitRuleKey splits a rule key into subdomain and pattern. A key without
// '@' addresses the default rule set.
func splitRuleKey(key string) (subdomain, pattern string) {
	if idx := strings.Index(key, "@"); idx >= 0 {
		return key[:idx], key[idx+1:]
	}
	return "", key
}

// Engine evaluates access decisions against an immutable rule snapshot.
// The snapshot is swapped wholesale on reload; in-flight evaluations keep
// the snapshot they captured.
type Engine struct {
	rules  atomic.Pointer[Ruleset]
	logger observability.Logger
}

// EngineOption is a functional option for the engine.
type EngineOption func(*Engine)

// WithEngineLogger sets the logger for the engine.
func WithEngineLogger(logger observability.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

// NewEngine creates an engine serving the given ruleset.
func NewEngine(rs Ruleset, opts ...EngineOption) *Engine {
	e := &Engine{logger: observability.NopLogger()}
	for _, opt := range opts {
		opt(e)
	}
	e.rules.Store(&rs)
	return e
}

// Replace swaps the active ruleset. Readers never observe a partially
// updated table.
func (e *Engine) Replace(rs Ruleset) {
	e.rules.Store(&rs)
	e.logger.Info("access rules replaced",
		observability.Int("subdomains", len(rs)),
	)
}

// Evaluate reports whether the given principal may access path on
// subdomain. An empty subdomain addresses the default rule set; an empty
// username means anonymous. Unknown subdomains and unmatched paths deny.
func (e *Engine) Evaluate(subdomain, path, username string) bool {
	rs := *e.rules.Load()

	rules, ok := rs[subdomain]
	if !ok {
		e.logger.Warn("no access rules for subdomain",
			observability.String("subdomain", subdomain),
		)
		return false
	}

	for _, rule := range rules {
		if rule.matches(path) {
			// First match is decisive, even when it denies.
			return rule.allows(username)
		}
	}
	return false
}
