// Package rules holds the normalized technology rule model: the
// in-memory schema every rule dialect is loaded into, and the compiled
// matchers built on top of it.
package rules

import (
	"regexp"
	"sync"
)

// Pattern is the atomic match unit: a regex with confidence and an
// optional version template. The regex compiles lazily on first use and
// is never mutated afterwards.
type Pattern struct {
	Raw             string
	Confidence      int
	VersionTemplate string

	// Literals are the maximal literal runs (len >= 3, lowercased)
	// extracted from Raw for prefilter construction. A Pattern with no
	// literal contributes nothing to the prefilter and is always
	// evaluated when its dimension/key is reached.
	Literals []string

	once    sync.Once
	regex   *regexp.Regexp
	compErr error
}

// Regex returns the lazily compiled, case-insensitive, unanchored
// regular expression for this pattern. Concurrent first-use is safe:
// exactly one goroutine compiles, and every reader observes the result.
func (p *Pattern) Regex() (*regexp.Regexp, error) {
	p.once.Do(func() {
		p.regex, p.compErr = regexp.Compile("(?is)" + p.Raw)
	})
	return p.regex, p.compErr
}

// DOMCheck is one (attribute|text|exists) assertion attached to a DOM
// selector.
type DOMCheck struct {
	// Attr is the attribute name to check, "text" for element text, or
	// "exists" when the selector's mere presence is the whole check.
	Attr    string
	Pattern *Pattern // nil for "exists"
}

// DOMPattern pairs a CSS selector with the checks that must all pass on
// at least one matched element.
type DOMPattern struct {
	Selector string
	Checks   []DOMCheck
}

// ImpliesEdge asserts that matching the owning TechRule implies the
// presence of TechID, capped at Confidence (100 if unspecified).
type ImpliesEdge struct {
	TechID     string
	Confidence int
}

// Dimensions groups every pattern collection a TechRule can carry.
type Dimensions struct {
	Headers map[string][]*Pattern // lowercased header name -> patterns
	Cookies map[string][]*Pattern // lowercased cookie name -> patterns
	Meta    map[string][]*Pattern // lowercased meta name -> patterns
	Scripts []*Pattern            // matched against script src
	HTML    []*Pattern            // matched against raw body text
	URL     []*Pattern            // matched against each request URL
	DOM     []DOMPattern
	JS      map[string]*Pattern // window.* names; accepted, never evaluated

	// Extended dimensions (SPEC_FULL §3). Matched only against
	// caller-supplied data; the core never fetches these itself.
	DNS        map[string][]*Pattern // record type -> patterns
	CertIssuer []*Pattern
	Robots     []*Pattern
}

// TechRule is one technology definition.
type TechRule struct {
	ID          string
	Categories  []string // category names, already resolved from IDs by the loader
	Icon        string
	Website     string
	Description string
	CPE         string
	SaaS        bool
	OSS         bool
	Pricing     []string

	Patterns Dimensions

	Implies          []ImpliesEdge
	Requires         []string
	RequiresCategory []string
	Excludes         []string
}

// CategoryRule is a technology category.
type CategoryRule struct {
	ID       string
	Name     string
	Priority int
}

// RuleLibrary is the fully loaded, compiled, immutable rule set. Once
// built it is safe to share by reference across concurrent detections;
// no detection operation writes back to it. The only mutation point is
// the lazy, publish-once compilation inside each Pattern.
type RuleLibrary struct {
	Technologies map[string]*TechRule
	Categories   map[string]*CategoryRule
	Prefilter    *Prefilter
}
