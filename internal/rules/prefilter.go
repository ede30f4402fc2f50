package rules

import (
	"strings"

	"github.com/cloudflare/ahocorasick"
)

// candidate is one pattern reachable from a prefilter hit.
type candidate struct {
	TechID  string
	Name    string // header/cookie/meta name constraint; "" when dimension has none
	Pattern *Pattern
}

// dimIndex is one dimension's Aho-Corasick automaton plus the candidate
// sets each dictionary entry maps back to. Built once at library load;
// read-only afterwards.
type dimIndex struct {
	matcher *ahocorasick.Matcher
	// entries[i] is the candidate set for dictionary literal i.
	entries [][]candidate
}

func (d *dimIndex) empty() bool {
	return d == nil || d.matcher == nil
}

// candidatesFor runs the automaton over haystack (already lowercased by
// the caller) and returns the union of every dictionary entry's
// candidates that occurred as a substring. When name != "", only
// candidates whose Name is "" or equal to name survive -- this is how
// header/cookie/meta name constraints are enforced without needing to
// synthesize combined "name\x1fvalue" search strings (see SPEC_FULL.md
// §4.2 resolution of the prefilter-keying open question).
func (d *dimIndex) candidatesFor(haystack string, name string) []candidate {
	if d.empty() {
		return nil
	}
	hits := d.matcher.MatchThreadSafe([]byte(haystack))
	if len(hits) == 0 {
		return nil
	}
	var out []candidate
	for _, idx := range hits {
		for _, c := range d.entries[idx] {
			if name != "" && c.Name != "" && !strings.EqualFold(c.Name, name) {
				continue
			}
			out = append(out, c)
		}
	}
	return out
}

// Prefilter holds one Aho-Corasick automaton per dimension, mapping
// literal substrings to the candidate technologies/patterns worth
// evaluating in full. A technology whose every pattern in a dimension
// carries no extractable literal is unconditionally a candidate for
// that dimension (it has no entry to skip on).
type Prefilter struct {
	Headers    *dimIndex
	Cookies    *dimIndex
	Meta       *dimIndex
	Scripts    *dimIndex
	HTML       *dimIndex
	URL        *dimIndex
	DNS        *dimIndex
	CertIssuer *dimIndex
	Robots     *dimIndex

	// NoLiteral carries, per dimension, the patterns with no
	// extractable literal: the automaton can never rule them out, so
	// they are candidates for every haystack whose name constraint fits.
	NoLiteral struct {
		Headers, Cookies, Meta []candidate
		Scripts, HTML, URL     []candidate
		DNS, CertIssuer, Robots []candidate
	}
}

type builder struct {
	dict    []string
	entries [][]candidate
	seen    map[string]int
}

func newBuilder() *builder {
	return &builder{seen: make(map[string]int)}
}

func (b *builder) add(literal string, c candidate) {
	idx, ok := b.seen[literal]
	if !ok {
		idx = len(b.dict)
		b.dict = append(b.dict, literal)
		b.entries = append(b.entries, nil)
		b.seen[literal] = idx
	}
	b.entries[idx] = append(b.entries[idx], c)
}

func (b *builder) build() *dimIndex {
	if len(b.dict) == 0 {
		return nil
	}
	return &dimIndex{
		matcher: ahocorasick.NewStringMatcher(b.dict),
		entries: b.entries,
	}
}

// addPattern indexes p's literals under builder b with the given
// techID/name, and appends p to noLiteral when it has none.
func addPattern(b *builder, noLiteral *[]candidate, techID, name string, p *Pattern) {
	c := candidate{TechID: techID, Name: name, Pattern: p}
	if len(p.Literals) == 0 {
		*noLiteral = append(*noLiteral, c)
		return
	}
	for _, lit := range p.Literals {
		b.add(lit, c)
	}
}

// BuildPrefilter constructs the nine per-dimension automata for a
// set of technology rules. Called once at library-build time.
func BuildPrefilter(techs map[string]*TechRule) *Prefilter {
	pf := &Prefilter{}

	headersB, cookiesB, metaB := newBuilder(), newBuilder(), newBuilder()
	scriptsB, htmlB, urlB := newBuilder(), newBuilder(), newBuilder()
	dnsB, certB, robotsB := newBuilder(), newBuilder(), newBuilder()

	for id, t := range techs {
		for name, pats := range t.Patterns.Headers {
			for _, p := range pats {
				addPattern(headersB, &pf.NoLiteral.Headers, id, name, p)
			}
		}
		for name, pats := range t.Patterns.Cookies {
			for _, p := range pats {
				addPattern(cookiesB, &pf.NoLiteral.Cookies, id, name, p)
			}
		}
		for name, pats := range t.Patterns.Meta {
			for _, p := range pats {
				addPattern(metaB, &pf.NoLiteral.Meta, id, name, p)
			}
		}
		for _, p := range t.Patterns.Scripts {
			addPattern(scriptsB, &pf.NoLiteral.Scripts, id, "", p)
		}
		for _, p := range t.Patterns.HTML {
			addPattern(htmlB, &pf.NoLiteral.HTML, id, "", p)
		}
		for _, p := range t.Patterns.URL {
			addPattern(urlB, &pf.NoLiteral.URL, id, "", p)
		}
		for rtype, pats := range t.Patterns.DNS {
			for _, p := range pats {
				addPattern(dnsB, &pf.NoLiteral.DNS, id, rtype, p)
			}
		}
		for _, p := range t.Patterns.CertIssuer {
			addPattern(certB, &pf.NoLiteral.CertIssuer, id, "", p)
		}
		for _, p := range t.Patterns.Robots {
			addPattern(robotsB, &pf.NoLiteral.Robots, id, "", p)
		}
	}

	pf.Headers = headersB.build()
	pf.Cookies = cookiesB.build()
	pf.Meta = metaB.build()
	pf.Scripts = scriptsB.build()
	pf.HTML = htmlB.build()
	pf.URL = urlB.build()
	pf.DNS = dnsB.build()
	pf.CertIssuer = certB.build()
	pf.Robots = robotsB.build()

	return pf
}

// candidates returns every candidate worth evaluating for a given
// dimension/name/haystack, combining the automaton hits with the
// always-evaluated no-literal patterns. The name constraint applies to
// both.
func (pf *Prefilter) candidates(dim *dimIndex, noLiteral []candidate, haystack, name string) []candidate {
	var out []candidate
	for _, c := range noLiteral {
		if name == "" || c.Name == "" || strings.EqualFold(c.Name, name) {
			out = append(out, c)
		}
	}
	if dim != nil {
		out = append(out, dim.candidatesFor(strings.ToLower(haystack), name)...)
	}
	return out
}

// HeaderCandidates, CookieCandidates, etc. are the callable surface the
// detector uses per dimension; they hide the per-dimension automaton
// selection so callers outside this package never need to name the
// unexported dimIndex/candidate types.
func (pf *Prefilter) HeaderCandidates(value, name string) []candidate {
	return pf.candidates(pf.Headers, pf.NoLiteral.Headers, value, name)
}

func (pf *Prefilter) CookieCandidates(value, name string) []candidate {
	return pf.candidates(pf.Cookies, pf.NoLiteral.Cookies, value, name)
}

func (pf *Prefilter) MetaCandidates(value, name string) []candidate {
	return pf.candidates(pf.Meta, pf.NoLiteral.Meta, value, name)
}

func (pf *Prefilter) ScriptCandidates(value string) []candidate {
	return pf.candidates(pf.Scripts, pf.NoLiteral.Scripts, value, "")
}

func (pf *Prefilter) HTMLCandidates(value string) []candidate {
	return pf.candidates(pf.HTML, pf.NoLiteral.HTML, value, "")
}

func (pf *Prefilter) URLCandidates(value string) []candidate {
	return pf.candidates(pf.URL, pf.NoLiteral.URL, value, "")
}

func (pf *Prefilter) DNSCandidates(value, recordType string) []candidate {
	return pf.candidates(pf.DNS, pf.NoLiteral.DNS, value, recordType)
}

func (pf *Prefilter) CertIssuerCandidates(value string) []candidate {
	return pf.candidates(pf.CertIssuer, pf.NoLiteral.CertIssuer, value, "")
}

func (pf *Prefilter) RobotsCandidates(value string) []candidate {
	return pf.candidates(pf.Robots, pf.NoLiteral.Robots, value, "")
}

// HasDOMPatterns reports whether any technology carries a `dom` pattern
// -- the gate the extractor's lazy DOM parse is conditioned on.
func HasDOMPatterns(techs map[string]*TechRule) bool {
	for _, t := range techs {
		if len(t.Patterns.DOM) > 0 {
			return true
		}
	}
	return false
}
