// Package cachecontrol implements the Response Metadata View: parsing and
// re-serialising Cache-Control, and the freshness/cacheability predicates
// built on top of it.
package cachecontrol

import (
	"strconv"
	"strings"
)

// Directives is a typed view of a Cache-Control header's directives.
// Known directives get dedicated fields; anything else is preserved in
// ext so it survives a parse-then-serialize round trip.
type Directives struct {
	NoStore         bool
	NoCache         bool
	Private         bool
	Public          bool
	MustRevalidate  bool
	ProxyRevalidate bool
	MaxAge          *int
	SMaxAge         *int

	ext map[string]string
}

// ParseDirectives parses one or more Cache-Control header values (as
// returned by http.Header.Values) into a Directives value. Malformed
// numeric arguments are dropped rather than causing an error: cacheability
// decisions fail soft, per the "conservative absent" rule.
func ParseDirectives(headerValues []string) Directives {
	d := Directives{ext: map[string]string{}}
	for _, header := range headerValues {
		for _, token := range strings.Split(header, ",") {
			token = strings.TrimSpace(token)
			if token == "" {
				continue
			}
			name, arg, hasArg := strings.Cut(token, "=")
			name = strings.ToLower(strings.TrimSpace(name))
			if name == "" {
				continue
			}
			if hasArg {
				arg = strings.Trim(strings.TrimSpace(arg), `"`)
			}
			d.set(name, arg, hasArg)
		}
	}
	return d
}

func (d *Directives) set(name, arg string, hasArg bool) {
	switch name {
	case "no-store":
		d.NoStore = true
	case "no-cache":
		d.NoCache = true
	case "private":
		d.Private = true
	case "public":
		d.Public = true
	case "must-revalidate":
		d.MustRevalidate = true
	case "proxy-revalidate":
		d.ProxyRevalidate = true
	case "max-age":
		if n, ok := parseSeconds(arg, hasArg); ok {
			d.MaxAge = &n
		}
	case "s-maxage":
		if n, ok := parseSeconds(arg, hasArg); ok {
			d.SMaxAge = &n
		}
	default:
		if d.ext == nil {
			d.ext = map[string]string{}
		}
		if hasArg {
			d.ext[name] = arg
		} else {
			d.ext[name] = ""
		}
	}
}

func parseSeconds(arg string, hasArg bool) (int, bool) {
	if !hasArg {
		return 0, false
	}
	n, err := strconv.Atoi(arg)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Ext returns the raw value of an unrecognised directive and whether it was
// present at all.
func (d Directives) Ext(name string) (string, bool) {
	v, ok := d.ext[strings.ToLower(name)]
	return v, ok
}

// SetExt sets a catch-all directive by name. Passing hasArg=false
// stores the directive as a bare flag.
func (d *Directives) SetExt(name, value string, hasArg bool) {
	if d.ext == nil {
		d.ext = map[string]string{}
	}
	if hasArg {
		d.ext[strings.ToLower(name)] = value
	} else {
		d.ext[strings.ToLower(name)] = ""
	}
}

// String re-serialises the directive set into a single Cache-Control
// header value. Directive order is not preserved (only the round-trip
// content is guaranteed). An empty Directives value serialises to "".
func (d Directives) String() string {
	var parts []string
	if d.NoStore {
		parts = append(parts, "no-store")
	}
	if d.NoCache {
		parts = append(parts, "no-cache")
	}
	if d.Private {
		parts = append(parts, "private")
	}
	if d.Public {
		parts = append(parts, "public")
	}
	if d.MustRevalidate {
		parts = append(parts, "must-revalidate")
	}
	if d.ProxyRevalidate {
		parts = append(parts, "proxy-revalidate")
	}
	if d.MaxAge != nil {
		parts = append(parts, "max-age="+strconv.Itoa(*d.MaxAge))
	}
	if d.SMaxAge != nil {
		parts = append(parts, "s-maxage="+strconv.Itoa(*d.SMaxAge))
	}
	for name, value := range d.ext {
		if value == "" {
			parts = append(parts, name)
		} else {
			parts = append(parts, name+"="+value)
		}
	}
	return strings.Join(parts, ", ")
}

// IsEmpty reports whether no directives at all are set, i.e. whether the
// Cache-Control header should be omitted entirely on Finalize.
func (d Directives) IsEmpty() bool {
	return !d.NoStore && !d.NoCache && !d.Private && !d.Public &&
		!d.MustRevalidate && !d.ProxyRevalidate &&
		d.MaxAge == nil && d.SMaxAge == nil && len(d.ext) == 0
}
