package httpcache

import "testing"

func TestRuleSetFirstMatchWins(t *testing.T) {
	rules, err := NewRuleSet([]Rule{
		NewPathPrefixRule("/api/live/", Invalidate()),
		NewPathPrefixRule("/api/", Fixed(30)),
	})
	if err != nil {
		t.Fatalf("NewRuleSet: %v", err)
	}

	spec, _, ok := rules.Match("/api/live/scores")
	if !ok || spec.Kind != TTLInvalidate {
		t.Fatalf("expected invalidate match first, got %+v ok=%v", spec, ok)
	}

	spec, _, ok = rules.Match("/api/users")
	if !ok || spec.Kind != TTLFixed || spec.Seconds != 30 {
		t.Fatalf("expected fixed(30) match, got %+v ok=%v", spec, ok)
	}
}

func TestRuleSetNoMatchIsPassThrough(t *testing.T) {
	rules, _ := NewRuleSet([]Rule{NewPathPrefixRule("/api/", Fixed(30))})
	if _, _, ok := rules.Match("/static/logo.png"); ok {
		t.Fatal("expected no match for unrelated path")
	}
}

func TestRuleSetRegexMatch(t *testing.T) {
	rule, err := NewRegexRule(`^/products/\d+$`, Fixed(120))
	if err != nil {
		t.Fatalf("NewRegexRule: %v", err)
	}
	rules, _ := NewRuleSet([]Rule{rule})
	if _, _, ok := rules.Match("/products/42"); !ok {
		t.Fatal("expected regex rule to match")
	}
	if _, _, ok := rules.Match("/products/forty-two"); ok {
		t.Fatal("expected regex rule not to match non-numeric id")
	}
}

func TestRuleSetOnlyRewritesPathOnMatch(t *testing.T) {
	rewriter := PredicateMatcher(func(path string) (bool, string) {
		if path == "/old" {
			return true, "/new"
		}
		return false, "/should-not-be-seen"
	})
	rules, _ := NewRuleSet([]Rule{{Matcher: rewriter, TTL: Fixed(10)}})

	_, rewritten, ok := rules.Match("/old")
	if !ok || rewritten != "/new" {
		t.Fatalf("expected rewrite to /new, got %q ok=%v", rewritten, ok)
	}

	_, rewritten, ok = rules.Match("/untouched")
	if ok {
		t.Fatal("expected no match")
	}
	if rewritten != "/untouched" {
		t.Fatalf("path must be unchanged on non-match, got %q", rewritten)
	}
}

func TestTTLRangeClamp(t *testing.T) {
	spec := Range(30, 300)
	if got := spec.Clamp(10); got != 30 {
		t.Fatalf("expected clamp to min 30, got %d", got)
	}
	if got := spec.Clamp(1000); got != 300 {
		t.Fatalf("expected clamp to max 300, got %d", got)
	}
	if got := spec.Clamp(100); got != 100 {
		t.Fatalf("expected no clamp within range, got %d", got)
	}
}

func TestNewRuleSetRejectsNilMatcher(t *testing.T) {
	if _, err := NewRuleSet([]Rule{{TTL: Fixed(10)}}); err == nil {
		t.Fatal("expected error for nil matcher")
	}
}

func TestNewRuleSetRejectsInvertedRange(t *testing.T) {
	if _, err := NewRuleSet([]Rule{NewPathPrefixRule("/x", Range(300, 30))}); err == nil {
		t.Fatal("expected error for inverted TTL range")
	}
}
