package main

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/always-cache/httpcache"
)

// fileConfig is the shape of the -config YAML file: everything a Config
// needs that isn't more naturally a flag (origin and rules).
type fileConfig struct {
	Origin         string     `yaml:"origin"`
	Provider       string     `yaml:"provider"`
	DB             string     `yaml:"db"`
	CacheQueries   bool       `yaml:"cacheQueries"`
	AllowReload    bool       `yaml:"allowReload"`
	UpdateInterval string     `yaml:"updateInterval"`
	Scrub          []string   `yaml:"scrub"`
	PrivateHeaders []string   `yaml:"privateHeaders"`
	Rules          []fileRule `yaml:"rules"`
}

type fileRule struct {
	Path       string `yaml:"path"`
	Regex      string `yaml:"regex"`
	TTL        *int   `yaml:"ttl"`
	Invalidate bool   `yaml:"invalidate"`
	MinTTL     int    `yaml:"minTTL"`
	MaxTTL     int    `yaml:"maxTTL"`
}

func getConfig(filename string) (fileConfig, error) {
	var config fileConfig
	configBytes, err := os.ReadFile(filename)
	if err != nil {
		return config, err
	}
	err = yaml.Unmarshal(configBytes, &config)
	return config, err
}

// buildRuleSet translates the YAML rule list into a httpcache.RuleSet, in
// the order given (order is significant: first match wins).
func (fc fileConfig) buildRuleSet() (httpcache.RuleSet, error) {
	rules := make([]httpcache.Rule, 0, len(fc.Rules))
	for i, fr := range fc.Rules {
		ttl, err := fr.ttlSpec()
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		switch {
		case fr.Regex != "":
			rule, err := httpcache.NewRegexRule(fr.Regex, ttl)
			if err != nil {
				return nil, fmt.Errorf("rule %d: %w", i, err)
			}
			rules = append(rules, rule)
		case fr.Path != "":
			rules = append(rules, httpcache.NewPathPrefixRule(fr.Path, ttl))
		default:
			return nil, fmt.Errorf("rule %d: must set either path or regex", i)
		}
	}
	return httpcache.NewRuleSet(rules)
}

func (fr fileRule) ttlSpec() (httpcache.TTLSpec, error) {
	switch {
	case fr.Invalidate:
		return httpcache.Invalidate(), nil
	case fr.MinTTL != 0 || fr.MaxTTL != 0:
		return httpcache.Range(fr.MinTTL, fr.MaxTTL), nil
	case fr.TTL != nil:
		return httpcache.Fixed(*fr.TTL), nil
	default:
		return httpcache.TTLSpec{}, fmt.Errorf("must set one of ttl, invalidate, minTTL/maxTTL")
	}
}

func (fc fileConfig) updateInterval() (time.Duration, error) {
	if fc.UpdateInterval == "" {
		return 0, nil
	}
	return time.ParseDuration(fc.UpdateInterval)
}
