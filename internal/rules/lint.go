package rules

import (
	"fmt"
	"strings"
)

// Lint forces every pattern in lib to compile and reports every one that
// doesn't, instead of letting a bad pattern surface lazily and silently
// (as a dead pattern that just never matches) the first time a detection
// call happens to reach it.
func Lint(lib *RuleLibrary) error {
	var errs []string

	check := func(tech, field string, p *Pattern) {
		if p == nil {
			return
		}
		if _, err := p.Regex(); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %s: %q: %v", tech, field, p.Raw, err))
		}
	}

	for id, t := range lib.Technologies {
		for name, pats := range t.Patterns.Headers {
			for _, p := range pats {
				check(id, "headers["+name+"]", p)
			}
		}
		for name, pats := range t.Patterns.Cookies {
			for _, p := range pats {
				check(id, "cookies["+name+"]", p)
			}
		}
		for name, pats := range t.Patterns.Meta {
			for _, p := range pats {
				check(id, "meta["+name+"]", p)
			}
		}
		for _, p := range t.Patterns.Scripts {
			check(id, "scriptSrc", p)
		}
		for _, p := range t.Patterns.HTML {
			check(id, "html", p)
		}
		for _, p := range t.Patterns.URL {
			check(id, "url", p)
		}
		for _, p := range t.Patterns.CertIssuer {
			check(id, "certIssuer", p)
		}
		for _, p := range t.Patterns.Robots {
			check(id, "robots", p)
		}
		for name, pats := range t.Patterns.DNS {
			for _, p := range pats {
				check(id, "dns["+name+"]", p)
			}
		}
		for _, dp := range t.Patterns.DOM {
			for _, c := range dp.Checks {
				check(id, "dom["+dp.Selector+"]."+c.Attr, c.Pattern)
			}
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("%d invalid pattern(s):\n%s", len(errs), strings.Join(errs, "\n"))
	}
	return nil
}
