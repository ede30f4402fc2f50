package loader

import (
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/corefp/fingerprint/internal/rules"
)

// normalizeTech converts one decoded rawTech into a *rules.TechRule,
// resolving numeric category IDs against the merged categories map and
// logging (never failing the whole source for) anything locally
// malformed, per spec.md §4.1's "a single bad pattern logs a warning
// and is skipped; the technology survives" failure mode.
func normalizeTech(log zerolog.Logger, sourceName, name string, rt rawTech, cats map[string]rawCategory) *rules.TechRule {
	t := &rules.TechRule{
		ID:          name,
		Website:     rt.Website,
		Icon:        rt.Icon,
		Description: rt.Description,
		CPE:         rt.CPE,
		SaaS:        rt.SaaS,
		OSS:         rt.OSS,
		Pricing:     stringList(rt.Pricing),
	}

	for _, id := range rt.Cats {
		key := strconv.Itoa(id)
		if c, ok := cats[key]; ok {
			t.Categories = append(t.Categories, c.Name)
		} else {
			log.Warn().Str("source", sourceName).Str("tech", name).Int("cat_id", id).
				Msg("dropping unknown category id")
		}
	}

	t.Patterns.Headers = patternMap(log, sourceName, name, "headers", rt.Headers)
	t.Patterns.Cookies = patternMap(log, sourceName, name, "cookies", rt.Cookies)
	t.Patterns.Meta = patternMap(log, sourceName, name, "meta", rt.Meta)
	t.Patterns.DNS = patternMap(log, sourceName, name, "dns", rt.DNS)

	t.Patterns.Scripts = mergeScripts(log, sourceName, name, rt.Script, rt.ScriptSrc, rt.Scripts)
	t.Patterns.HTML = patternSlice(log, sourceName, name, "html", rt.HTML)
	t.Patterns.URL = patternSlice(log, sourceName, name, "url", rt.URL)
	t.Patterns.CertIssuer = patternSlice(log, sourceName, name, "certIssuer", rt.CertIssuer)
	t.Patterns.Robots = patternSlice(log, sourceName, name, "robots", rt.Robots)
	t.Patterns.DOM = domPatterns(log, sourceName, name, rt.DOM)

	if len(rt.JS) > 0 {
		t.Patterns.JS = make(map[string]*rules.Pattern, len(rt.JS))
		for k, v := range rt.JS {
			strs := patternStrings(v)
			if len(strs) == 0 {
				t.Patterns.JS[k] = rules.ParsePattern("")
				continue
			}
			t.Patterns.JS[k] = rules.ParsePattern(strs[0])
		}
	}

	t.Implies = impliesEdges(rt.Implies)
	t.Requires = stringList(rt.Requires)
	t.RequiresCategory = stringList(rt.RequiresCat)
	t.Excludes = stringList(rt.Excludes)

	return t
}

// patternMap normalizes a name-keyed dimension (headers/cookies/meta/dns)
// lowercasing the name per spec.md §4.1.
func patternMap(log zerolog.Logger, sourceName, tech, dim string, m map[string]interface{}) map[string][]*rules.Pattern {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string][]*rules.Pattern, len(m))
	for name, v := range m {
		strs := patternStrings(v)
		if len(strs) == 0 {
			log.Warn().Str("source", sourceName).Str("tech", tech).Str("dim", dim).Str("key", name).
				Msg("skipping unreadable pattern value")
			continue
		}
		key := strings.ToLower(name)
		for _, raw := range strs {
			out[key] = append(out[key], rules.ParsePattern(raw))
		}
	}
	return out
}

func patternSlice(log zerolog.Logger, sourceName, tech, dim string, v interface{}) []*rules.Pattern {
	strs := patternStrings(v)
	if len(strs) == 0 {
		return nil
	}
	out := make([]*rules.Pattern, 0, len(strs))
	for _, raw := range strs {
		out = append(out, rules.ParsePattern(raw))
	}
	return out
}

// mergeScripts merges the legacy `script`/`scriptSrc` fields and the
// normalized `scripts` field into one list, de-duplicated by raw
// pattern string, per spec.md §4.1.
func mergeScripts(log zerolog.Logger, sourceName, tech string, script, scriptSrc, scripts interface{}) []*rules.Pattern {
	seen := make(map[string]bool)
	var out []*rules.Pattern
	add := func(v interface{}) {
		for _, raw := range patternStrings(v) {
			if seen[raw] {
				continue
			}
			seen[raw] = true
			out = append(out, rules.ParsePattern(raw))
		}
	}
	add(script)
	add(scriptSrc)
	add(scripts)
	return out
}

// domPatterns accepts either a selector->checks map (the canonical
// Wappalyzer dom shape) or a list of {selector, exists?, text?,
// properties?} objects.
func domPatterns(log zerolog.Logger, sourceName, tech string, v interface{}) []rules.DOMPattern {
	switch t := v.(type) {
	case map[string]interface{}:
		out := make([]rules.DOMPattern, 0, len(t))
		for selector, checks := range t {
			out = append(out, rules.DOMPattern{Selector: selector, Checks: domChecks(checks)})
		}
		return out
	case []interface{}:
		out := make([]rules.DOMPattern, 0, len(t))
		for _, entry := range t {
			m, ok := entry.(map[string]interface{})
			if !ok {
				if s, ok := entry.(string); ok {
					out = append(out, rules.DOMPattern{Selector: s, Checks: []rules.DOMCheck{{Attr: "exists"}}})
				}
				continue
			}
			selector, _ := m["selector"].(string)
			if selector == "" {
				continue
			}
			out = append(out, rules.DOMPattern{Selector: selector, Checks: domChecks(m)})
		}
		return out
	}
	return nil
}

func domChecks(v interface{}) []rules.DOMCheck {
	m, ok := v.(map[string]interface{})
	if !ok {
		return []rules.DOMCheck{{Attr: "exists"}}
	}
	var checks []rules.DOMCheck
	if _, ok := m["exists"]; ok {
		checks = append(checks, rules.DOMCheck{Attr: "exists"})
	}
	if text, ok := m["text"].(string); ok && text != "" {
		checks = append(checks, rules.DOMCheck{Attr: "text", Pattern: rules.ParsePattern(text)})
	}
	if props, ok := m["properties"].(map[string]interface{}); ok {
		for attr, pv := range props {
			if s, ok := pv.(string); ok {
				checks = append(checks, rules.DOMCheck{Attr: attr, Pattern: rules.ParsePattern(s)})
			}
		}
	}
	if len(checks) == 0 {
		checks = []rules.DOMCheck{{Attr: "exists"}}
	}
	return checks
}

// impliesEdges normalizes `implies` entries, which may be bare tech
// names or `tech\;confidence:N`.
func impliesEdges(v interface{}) []rules.ImpliesEdge {
	var out []rules.ImpliesEdge
	for _, raw := range stringList(v) {
		parts := strings.SplitN(raw, `\;`, 2)
		edge := rules.ImpliesEdge{TechID: parts[0], Confidence: 100}
		if len(parts) == 2 {
			kv := strings.SplitN(parts[1], ":", 2)
			if len(kv) == 2 && kv[0] == "confidence" {
				if n, err := strconv.Atoi(kv[1]); err == nil {
					edge.Confidence = n
				}
			}
		}
		out = append(out, edge)
	}
	return out
}

// stringList accepts a bare string or a list of strings.
func stringList(v interface{}) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []interface{}:
		var out []string
		for _, e := range t {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case []string:
		return t
	}
	return nil
}

// patternStrings extracts raw pattern strings from the three shapes the
// dialects allow: a bare string, a list of strings, or an object
// carrying a "regex" field.
func patternStrings(v interface{}) []string {
	switch t := v.(type) {
	case string:
		if t == "" {
			return nil
		}
		return []string{t}
	case []interface{}:
		var out []string
		for _, e := range t {
			out = append(out, patternStrings(e)...)
		}
		return out
	case []string:
		return t
	case map[string]interface{}:
		if r, ok := t["regex"].(string); ok {
			return []string{r}
		}
	}
	return nil
}
