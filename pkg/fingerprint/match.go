package fingerprint

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/rs/zerolog"

	"github.com/corefp/fingerprint/internal/extract"
	"github.com/corefp/fingerprint/internal/rules"
)

// matchPass carries the state one detection call's matching dimensions
// share: the library, the accumulating hits, the logger, and whether
// this is the lite pipeline (which skips version template evaluation,
// per spec.md §4.4's "Lite variant").
type matchPass struct {
	log  zerolog.Logger
	lib  *rules.RuleLibrary
	hits map[string]*techHit
	lite bool

	// counted tracks which patterns have already contributed a hit this
	// call, so a multi-valued header, a repeated script src, or several
	// candidate URLs that all match the same pattern count it at most
	// once (spec.md §4.4 tie-break, §8).
	counted map[*rules.Pattern]bool
}

// evalAndRecord runs one candidate's compiled regex against value and,
// on match, records a direct hit with its confidence and (full pipeline
// only) expanded version. A pattern that already matched earlier in
// this call (against a different value) is skipped rather than
// re-counted.
func (m *matchPass) evalAndRecord(techID string, p *rules.Pattern, value string) bool {
	if m.counted[p] {
		return true
	}
	re, err := p.Regex()
	if err != nil {
		m.log.Warn().Str("tech", techID).Str("pattern", p.Raw).Err(err).Msg("dead pattern, never matches")
		return false
	}
	groups := re.FindStringSubmatch(value)
	if groups == nil {
		return false
	}
	version := ""
	if !m.lite && p.VersionTemplate != "" {
		version = rules.ExpandVersion(p.VersionTemplate, groups)
	}
	addDirectHit(m.hits, techID, p.Confidence, version)
	m.counted[p] = true
	return true
}

// matchHeaders evaluates header patterns; a multi-valued header
// contributes at most one hit per pattern (spec.md §4.4 tie-break).
func (m *matchPass) matchHeaders(doc *extract.ExtractedDoc) {
	for name, values := range doc.Headers {
		for _, value := range values {
			for _, c := range m.lib.Prefilter.HeaderCandidates(value, name) {
				m.evalAndRecord(c.TechID, c.Pattern, value)
			}
		}
	}
}

func (m *matchPass) matchCookies(doc *extract.ExtractedDoc) {
	for name, values := range doc.Cookies {
		for _, value := range values {
			for _, c := range m.lib.Prefilter.CookieCandidates(value, name) {
				m.evalAndRecord(c.TechID, c.Pattern, value)
			}
		}
	}
}

func (m *matchPass) matchMeta(doc *extract.ExtractedDoc) {
	for name, values := range doc.Meta {
		for _, value := range values {
			for _, c := range m.lib.Prefilter.MetaCandidates(value, name) {
				m.evalAndRecord(c.TechID, c.Pattern, value)
			}
		}
	}
}

func (m *matchPass) matchScripts(doc *extract.ExtractedDoc) {
	for _, src := range doc.Scripts {
		for _, c := range m.lib.Prefilter.ScriptCandidates(src) {
			m.evalAndRecord(c.TechID, c.Pattern, src)
		}
	}
}

func (m *matchPass) matchHTML(doc *extract.ExtractedDoc) {
	for _, c := range m.lib.Prefilter.HTMLCandidates(doc.HTML) {
		m.evalAndRecord(c.TechID, c.Pattern, doc.HTML)
	}
}

func (m *matchPass) matchURL(doc *extract.ExtractedDoc) {
	for _, u := range doc.URLs {
		for _, c := range m.lib.Prefilter.URLCandidates(u) {
			m.evalAndRecord(c.TechID, c.Pattern, u)
		}
	}
}

// matchDOM runs only when the library has at least one `dom` pattern;
// it lazily parses the retained body as a DOM tree (see
// internal/extract's Document()) the first time it's needed.
func (m *matchPass) matchDOM(doc *extract.ExtractedDoc) {
	if !rules.HasDOMPatterns(m.lib.Technologies) {
		return
	}
	gdoc, err := doc.Document()
	if err != nil || gdoc == nil {
		return
	}
	for techID, t := range m.lib.Technologies {
		for _, dp := range t.Patterns.DOM {
			sel := gdoc.Find(dp.Selector)
			if sel.Length() == 0 {
				continue
			}
			sel.EachWithBreak(func(_ int, node *goquery.Selection) bool {
				return !m.domElementMatches(techID, dp.Checks, node)
			})
		}
	}
}

// domElementMatches runs every check against one matched element; on
// full success it records the hit (version from the first check that
// carries a version template) and reports true so the caller stops
// after the first passing element.
func (m *matchPass) domElementMatches(techID string, checks []rules.DOMCheck, node *goquery.Selection) bool {
	confidence := 0
	version := ""
	for _, check := range checks {
		if check.Attr == "exists" {
			confidence = 100
			continue
		}
		value := node.Text()
		if check.Attr != "text" {
			v, ok := node.Attr(check.Attr)
			if !ok {
				return false
			}
			value = v
		}
		re, err := check.Pattern.Regex()
		if err != nil {
			return false
		}
		groups := re.FindStringSubmatch(value)
		if groups == nil {
			return false
		}
		if check.Pattern.Confidence > confidence {
			confidence = check.Pattern.Confidence
		}
		if !m.lite && version == "" && check.Pattern.VersionTemplate != "" {
			version = rules.ExpandVersion(check.Pattern.VersionTemplate, groups)
		}
	}
	if confidence == 0 {
		confidence = 100
	}
	addDirectHit(m.hits, techID, confidence, version)
	return true
}

func (m *matchPass) matchExtended(extra *ExtraSignals) {
	if extra == nil {
		return
	}
	for recordType, values := range extra.DNSRecords {
		for _, value := range values {
			for _, c := range m.lib.Prefilter.DNSCandidates(value, recordType) {
				m.evalAndRecord(c.TechID, c.Pattern, value)
			}
		}
	}
	if extra.CertIssuer != "" {
		for _, c := range m.lib.Prefilter.CertIssuerCandidates(extra.CertIssuer) {
			m.evalAndRecord(c.TechID, c.Pattern, extra.CertIssuer)
		}
	}
	if len(extra.RobotsTxt) > 0 {
		text := strings.ToValidUTF8(string(extra.RobotsTxt), "")
		for _, c := range m.lib.Prefilter.RobotsCandidates(text) {
			m.evalAndRecord(c.TechID, c.Pattern, text)
		}
	}
}
