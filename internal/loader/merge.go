package loader

import "github.com/corefp/fingerprint/internal/rules"

// mergeTech folds src (from a lower-precedence source) into dst (the
// accumulator, already holding higher-precedence data). Pattern sets are
// unioned; scalar metadata is left alone once dst already has a value,
// so the highest-precedence source's scalars win, per spec.md §4.1.
func mergeTech(dst, src *rules.TechRule) {
	if dst.Website == "" {
		dst.Website = src.Website
	}
	if dst.Icon == "" {
		dst.Icon = src.Icon
	}
	if dst.Description == "" {
		dst.Description = src.Description
	}
	if dst.CPE == "" {
		dst.CPE = src.CPE
	}

	dst.Categories = unionStrings(dst.Categories, src.Categories)
	dst.Requires = unionStrings(dst.Requires, src.Requires)
	dst.RequiresCategory = unionStrings(dst.RequiresCategory, src.RequiresCategory)
	dst.Excludes = unionStrings(dst.Excludes, src.Excludes)
	dst.Implies = unionImplies(dst.Implies, src.Implies)

	dst.Patterns.Headers = mergePatternMap(dst.Patterns.Headers, src.Patterns.Headers)
	dst.Patterns.Cookies = mergePatternMap(dst.Patterns.Cookies, src.Patterns.Cookies)
	dst.Patterns.Meta = mergePatternMap(dst.Patterns.Meta, src.Patterns.Meta)
	dst.Patterns.DNS = mergePatternMap(dst.Patterns.DNS, src.Patterns.DNS)

	dst.Patterns.Scripts = unionPatterns(dst.Patterns.Scripts, src.Patterns.Scripts)
	dst.Patterns.HTML = unionPatterns(dst.Patterns.HTML, src.Patterns.HTML)
	dst.Patterns.URL = unionPatterns(dst.Patterns.URL, src.Patterns.URL)
	dst.Patterns.CertIssuer = unionPatterns(dst.Patterns.CertIssuer, src.Patterns.CertIssuer)
	dst.Patterns.Robots = unionPatterns(dst.Patterns.Robots, src.Patterns.Robots)
	dst.Patterns.DOM = append(dst.Patterns.DOM, src.Patterns.DOM...)

	if len(src.Patterns.JS) > 0 {
		if dst.Patterns.JS == nil {
			dst.Patterns.JS = make(map[string]*rules.Pattern, len(src.Patterns.JS))
		}
		for k, v := range src.Patterns.JS {
			if _, ok := dst.Patterns.JS[k]; !ok {
				dst.Patterns.JS[k] = v
			}
		}
	}
}

func mergePatternMap(dst, src map[string][]*rules.Pattern) map[string][]*rules.Pattern {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string][]*rules.Pattern, len(src))
	}
	for k, v := range src {
		dst[k] = unionPatterns(dst[k], v)
	}
	return dst
}

// unionPatterns de-duplicates by raw pattern string, matching spec.md
// §4.1's "union of pattern sets" / "de-duplicated by raw pattern
// string" rule.
func unionPatterns(dst, src []*rules.Pattern) []*rules.Pattern {
	if len(src) == 0 {
		return dst
	}
	seen := make(map[string]bool, len(dst))
	for _, p := range dst {
		seen[p.Raw] = true
	}
	for _, p := range src {
		if seen[p.Raw] {
			continue
		}
		seen[p.Raw] = true
		dst = append(dst, p)
	}
	return dst
}

func unionStrings(dst, src []string) []string {
	if len(src) == 0 {
		return dst
	}
	seen := make(map[string]bool, len(dst))
	for _, s := range dst {
		seen[s] = true
	}
	for _, s := range src {
		if seen[s] {
			continue
		}
		seen[s] = true
		dst = append(dst, s)
	}
	return dst
}

func unionImplies(dst, src []rules.ImpliesEdge) []rules.ImpliesEdge {
	if len(src) == 0 {
		return dst
	}
	seen := make(map[string]bool, len(dst))
	for _, e := range dst {
		seen[e.TechID] = true
	}
	for _, e := range src {
		if seen[e.TechID] {
			continue
		}
		seen[e.TechID] = true
		dst = append(dst, e)
	}
	return dst
}
