// Package policy decides which GraphQL queries may be cached, under which key
// and for how long. All decisions are made on the raw query text with case
// insensitive substring matching; no query document is parsed.
package policy

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	// keySep separates the query text from the variables section.
	keySep = "|"
	// varSep separates two rendered variables.
	varSep = ","

	DefaultTTL = 5 * time.Minute
)

// DefaultDenylist marks queries that mutate state or are scoped to a user.
var DefaultDenylist = []string{
	"mutation",
	"login",
	"register",
	"generatecustomertoken",
	"createcustomer",
	"revokecustomertoken",
	"checkout",
	"cart",
	"order",
	"customer",
	"wishlist",
}

// DefaultRules are the TTL buckets for the storefront query categories.
var DefaultRules = []Rule{
	{Match: "categor", TTL: time.Hour},
	{Match: "products", TTL: 5 * time.Minute},
	{Match: "search", TTL: 2 * time.Minute},
	{Match: "attribute", TTL: 24 * time.Hour},
}

// Rule maps queries containing Match to TTL.
type Rule struct {
	Match string        `yaml:"match"`
	TTL   time.Duration `yaml:"ttl"`
}

type Config struct {
	// Rules are evaluated in order, first match wins.
	// Nil means DefaultRules. An empty non-nil slice disables category TTLs.
	Rules []Rule `yaml:"rules"`

	// DefaultTTL applies when no rule matches. Default is 5 minutes.
	DefaultTTL time.Duration `yaml:"default_ttl"`

	// Denylist of substrings that make a query uncacheable.
	// Empty means DefaultDenylist.
	Denylist []string `yaml:"denylist"`
}

// Policy is immutable after New and safe for concurrent use.
type Policy struct {
	rules      []Rule
	defaultTTL time.Duration
	denylist   []string
}

func New(cfg Config) (*Policy, error) {
	rules := cfg.Rules
	if rules == nil {
		rules = DefaultRules
	}
	p := &Policy{
		rules:      make([]Rule, 0, len(rules)),
		defaultTTL: cfg.DefaultTTL,
	}
	if p.defaultTTL == 0 {
		p.defaultTTL = DefaultTTL
	}
	if p.defaultTTL < 0 {
		return nil, fmt.Errorf("invalid default ttl %s", p.defaultTTL)
	}

	for i, r := range rules {
		m := strings.ToLower(strings.TrimSpace(r.Match))
		if len(m) == 0 {
			return nil, fmt.Errorf("rule #%d has an empty match", i)
		}
		if r.TTL <= 0 {
			return nil, fmt.Errorf("rule #%d (%s) has invalid ttl %s", i, r.Match, r.TTL)
		}
		p.rules = append(p.rules, Rule{Match: m, TTL: r.TTL})
	}

	deny := cfg.Denylist
	if len(deny) == 0 {
		deny = DefaultDenylist
	}
	for _, s := range deny {
		if s = strings.ToLower(strings.TrimSpace(s)); len(s) > 0 {
			p.denylist = append(p.denylist, s)
		}
	}
	return p, nil
}

// MustNew is like New but panics on error. For static configs.
func MustNew(cfg Config) *Policy {
	p, err := New(cfg)
	if err != nil {
		panic(err)
	}
	return p
}

// IsCacheable reports whether query contains none of the denylisted
// substrings.
func (p *Policy) IsCacheable(query string) bool {
	q := strings.ToLower(query)
	for _, s := range p.denylist {
		if strings.Contains(q, s) {
			return false
		}
	}
	return true
}

// TTL returns the TTL of the first rule matching query, or the default TTL.
func (p *Policy) TTL(query string) time.Duration {
	q := strings.ToLower(query)
	for _, r := range p.rules {
		if strings.Contains(q, r.Match) {
			return r.TTL
		}
	}
	return p.defaultTTL
}

// Key builds the cache key of query and vars. Variables with nil values are
// dropped, the rest are sorted by name and rendered as name:json.
// Logically equal requests always produce the same key, and the key is the
// full text, so distinct requests never collide.
func (p *Policy) Key(query string, vars map[string]any) (string, error) {
	return Key(query, vars)
}

// Key is the policy independent implementation of Policy.Key.
func Key(query string, vars map[string]any) (string, error) {
	names := make([]string, 0, len(vars))
	for k, v := range vars {
		if v == nil {
			continue
		}
		names = append(names, k)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString(query)
	b.WriteString(keySep)
	for i, k := range names {
		// encoding/json sorts map keys, nested maps are canonical too.
		raw, err := json.Marshal(vars[k])
		if err != nil {
			return "", fmt.Errorf("encode variable %s: %w", k, err)
		}
		if i > 0 {
			b.WriteString(varSep)
		}
		b.WriteString(k)
		b.WriteByte(':')
		b.Write(raw)
	}
	return b.String(), nil
}

// Rules returns a copy of the effective rule table.
func (p *Policy) Rules() []Rule {
	out := make([]Rule, len(p.rules))
	copy(out, p.rules)
	return out
}
