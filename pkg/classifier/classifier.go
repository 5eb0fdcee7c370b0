package classifier

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/darkweak/offline-gateway/configurationtypes"
	"github.com/darkweak/offline-gateway/pkg/rfc"
	"github.com/dgraph-io/ristretto"
)

// Class is the caching class of a request
type Class int

const (
	Static Class = iota
	Dynamic
	CrossOriginAllowed
	CrossOriginBlocked
)

func (c Class) String() string {
	switch c {
	case Static:
		return "STATIC"
	case Dynamic:
		return "DYNAMIC"
	case CrossOriginAllowed:
		return "CROSS_ORIGIN_ALLOWED"
	case CrossOriginBlocked:
		return "CROSS_ORIGIN_BLOCKED"
	}

	return "UNKNOWN"
}

// Scope restricts a rule to the same-origin or the cross-origin URLs
type Scope int

const (
	SameOrigin Scope = iota
	CrossOrigin
)

// Rule is one line of the classification table
type Rule struct {
	Name  string
	Scope Scope
	Class Class
	Match func(u *url.URL) bool
}

// Decision is the classification result
type Decision struct {
	Class      Class
	Revalidate bool
	Rule       string
}

// Classifier evaluates the rule table in order, first match wins
type Classifier struct {
	origin  *url.URL
	rules   []Rule
	markers []string
	memo    *ristretto.Cache
}

// New builds the rule table from the configuration
func New(origin *url.URL, manifest configurationtypes.Manifest, c configurationtypes.Classification) (*Classifier, error) {
	rules := []Rule{}

	for _, pattern := range c.CrossOriginAllow {
		re, err := regexp.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("compiling the cross origin pattern %s: %w", pattern, err)
		}
		rules = append(rules, Rule{
			Name:  "cross-origin-allow " + pattern,
			Scope: CrossOrigin,
			Class: CrossOriginAllowed,
			Match: func(u *url.URL) bool { return re.MatchString(u.String()) },
		})
	}

	crossManifest := map[string]bool{}
	for _, entry := range manifest.CrossOrigin {
		if u, err := url.Parse(entry); err == nil {
			u.Fragment = ""
			crossManifest[u.String()] = true
		}
	}
	rules = append(rules, Rule{
		Name:  "cross-origin-manifest",
		Scope: CrossOrigin,
		Class: CrossOriginAllowed,
		Match: func(u *url.URL) bool { return crossManifest[u.String()] },
	})

	if c.StaticExtensions != "" {
		re, err := regexp.Compile(c.StaticExtensions)
		if err != nil {
			return nil, fmt.Errorf("compiling the static extensions pattern: %w", err)
		}
		rules = append(rules, Rule{
			Name:  "static-extension",
			Scope: SameOrigin,
			Class: Static,
			Match: func(u *url.URL) bool { return re.MatchString(u.Path) },
		})
	}

	prefixes := c.StaticPaths
	rules = append(rules, Rule{
		Name:  "static-path",
		Scope: SameOrigin,
		Class: Static,
		Match: func(u *url.URL) bool {
			for _, prefix := range prefixes {
				if strings.HasPrefix(u.Path, prefix) {
					return true
				}
			}
			return false
		},
	})

	sameManifest := map[string]bool{}
	for _, p := range manifest.Paths {
		sameManifest[p] = true
	}
	rules = append(rules, Rule{
		Name:  "static-manifest",
		Scope: SameOrigin,
		Class: Static,
		Match: func(u *url.URL) bool { return sameManifest[u.RequestURI()] },
	})

	markers := c.DynamicMarkers
	rules = append(rules, Rule{
		Name:  "dynamic-marker",
		Scope: SameOrigin,
		Class: Dynamic,
		Match: func(u *url.URL) bool { return containsAny(u.String(), markers) },
	})

	memo, err := ristretto.NewCache(&ristretto.Config{
		NumCounters: 1e5,
		MaxCost:     1e4,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}

	return &Classifier{
		origin:  origin,
		rules:   rules,
		markers: markers,
		memo:    memo,
	}, nil
}

func containsAny(s string, markers []string) bool {
	for _, marker := range markers {
		if marker != "" && strings.Contains(s, marker) {
			return true
		}
	}

	return false
}

// Rules returns the ordered rule table
func (c *Classifier) Rules() []Rule {
	return c.rules
}

// Classify returns the decision for the absolute URL
func (c *Classifier) Classify(u *url.URL) Decision {
	key := u.String()
	if v, found := c.memo.Get(key); found {
		if d, ok := v.(Decision); ok {
			return d
		}
	}

	d := c.evaluate(u)
	c.memo.Set(key, d, 1)

	return d
}

func (c *Classifier) evaluate(u *url.URL) Decision {
	scope := SameOrigin
	fallback := Decision{Class: Dynamic, Rule: "default"}
	if !rfc.SameOrigin(u, c.origin) {
		scope = CrossOrigin
		fallback = Decision{Class: CrossOriginBlocked, Rule: "cross-origin-default"}
	}

	d := fallback
	for _, rule := range c.rules {
		if rule.Scope == scope && rule.Match(u) {
			d = Decision{Class: rule.Class, Rule: rule.Name}
			break
		}
	}

	if d.Class != CrossOriginBlocked {
		d.Revalidate = d.Class == Dynamic || containsAny(u.String(), c.markers)
	}

	return d
}

// Close releases the memo
func (c *Classifier) Close() {
	c.memo.Close()
}
