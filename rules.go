package httpcache

import (
	"fmt"
	"regexp"
)

// Matcher decides whether a request path matches a Rule. Predicate
// matchers may rewrite the path as part of matching (e.g. stripping a
// locale prefix); on a non-match the returned path is ignored.
type Matcher interface {
	Match(path string) (matched bool, rewritten string)
}

// RegexMatcher matches a request path against a compiled regular
// expression. It never rewrites the path.
type RegexMatcher struct {
	*regexp.Regexp
}

// Match implements Matcher.
func (m RegexMatcher) Match(path string) (bool, string) {
	return m.MatchString(path), path
}

// PredicateMatcher adapts a plain function into a Matcher, for callers who
// need to match on more than a request path's textual shape (or want to
// rewrite the path on a hit).
type PredicateMatcher func(path string) (matched bool, rewritten string)

// Match implements Matcher.
func (f PredicateMatcher) Match(path string) (bool, string) { return f(path) }

// TTLKind distinguishes the three shapes a TTLSpec can take.
type TTLKind int

const (
	// TTLFixed caches for exactly Seconds seconds, regardless of what the
	// origin response says, unless the response is must-revalidate.
	TTLFixed TTLKind = iota
	// TTLInvalidate forces the matched key to be treated as an
	// invalidation target rather than cached.
	TTLInvalidate
	// TTLRange clamps the origin-declared TTL to [MinSeconds, MaxSeconds].
	// A zero bound on either side is unbounded on that side.
	TTLRange
)

// TTLSpec is a user-supplied lifetime directive for a matched rule.
type TTLSpec struct {
	Kind                   TTLKind
	Seconds                int
	MinSeconds, MaxSeconds int
}

// Fixed returns a TTLSpec that caches for exactly the given duration.
func Fixed(seconds int) TTLSpec { return TTLSpec{Kind: TTLFixed, Seconds: seconds} }

// Invalidate returns a TTLSpec that forces invalidation of the matched key.
func Invalidate() TTLSpec { return TTLSpec{Kind: TTLInvalidate} }

// Range returns a TTLSpec that clamps the origin's own TTL to [min, max].
// A zero value on either side means unbounded on that side.
func Range(min, max int) TTLSpec { return TTLSpec{Kind: TTLRange, MinSeconds: min, MaxSeconds: max} }

// Clamp applies a TTLRange to an origin-declared TTL in seconds. Callers
// must only call this for TTLKind == TTLRange.
func (t TTLSpec) Clamp(originTTL int) int {
	if t.MinSeconds > 0 && originTTL < t.MinSeconds {
		originTTL = t.MinSeconds
	}
	if t.MaxSeconds > 0 && originTTL > t.MaxSeconds {
		originTTL = t.MaxSeconds
	}
	return originTTL
}

// Rule pairs a Matcher with the TTLSpec to apply when it matches.
type Rule struct {
	Matcher Matcher
	TTL     TTLSpec
}

// NewRegexRule builds a Rule that matches paths against pattern.
func NewRegexRule(pattern string, ttl TTLSpec) (Rule, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Rule{}, fmt.Errorf("httpcache: invalid rule pattern %q: %w", pattern, err)
	}
	return Rule{Matcher: RegexMatcher{re}, TTL: ttl}, nil
}

// NewPathPrefixRule builds a Rule that matches paths sharing prefix.
func NewPathPrefixRule(prefix string, ttl TTLSpec) Rule {
	return Rule{
		Matcher: PredicateMatcher(func(path string) (bool, string) {
			if len(path) < len(prefix) || path[:len(prefix)] != prefix {
				return false, path
			}
			return true, path
		}),
		TTL: ttl,
	}
}

// RuleSet is an ordered sequence of Rules. The first match wins; an empty
// RuleSet means "cache nothing" (every request is passed through
// unmatched).
type RuleSet []Rule

// NewRuleSet validates rules and returns them as a RuleSet. It is a fatal
// initialisation error for any rule to carry a nil Matcher, or an invalid
// TTLRange (MinSeconds > MaxSeconds when both are set).
func NewRuleSet(rules []Rule) (RuleSet, error) {
	for i, r := range rules {
		if r.Matcher == nil {
			return nil, fmt.Errorf("httpcache: rule %d has a nil matcher", i)
		}
		if r.TTL.Kind == TTLRange && r.TTL.MinSeconds > 0 && r.TTL.MaxSeconds > 0 && r.TTL.MinSeconds > r.TTL.MaxSeconds {
			return nil, fmt.Errorf("httpcache: rule %d has an inverted TTL range [%d, %d]", i, r.TTL.MinSeconds, r.TTL.MaxSeconds)
		}
	}
	return RuleSet(rules), nil
}

// Match scans rules in order and returns the TTLSpec and (possibly
// rewritten) path of the first match. ok is false if no rule matched, in
// which case the path is unchanged and the request must be passed
// through unmatched (per spec: "unmatched means pass-through").
func (rs RuleSet) Match(path string) (spec TTLSpec, rewritten string, ok bool) {
	for _, r := range rs {
		if matched, newPath := r.Matcher.Match(path); matched {
			return r.TTL, newPath, true
		}
	}
	return TTLSpec{}, path, false
}
