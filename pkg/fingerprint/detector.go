package fingerprint

import (
	"context"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"github.com/corefp/fingerprint/internal/extract"
	"github.com/corefp/fingerprint/internal/loader"
	"github.com/corefp/fingerprint/internal/rules"
)

// Detector runs technology detection against a loaded RuleLibrary. The
// zero value is usable but uninitialized: call Init before DetectFull/
// DetectLite. A Detector is safe for concurrent use by multiple
// goroutines once Init has returned -- the detector itself is
// stateless per call (spec.md §4.4's "State machine").
type Detector struct {
	lib *rules.RuleLibrary
	log zerolog.Logger
}

// New constructs an uninitialized Detector, applying any Options.
func New(opts ...Option) *Detector {
	d := &Detector{log: zerolog.Nop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Init loads and compiles the rule library from the given sources (the
// embedded default if none are given). Safe to call again to reload;
// the previous library keeps serving concurrent detections until the
// new one is installed.
func (d *Detector) Init(ctx context.Context, cfg loader.Config, sources ...loader.Source) error {
	lib, err := loader.Load(ctx, d.log, cfg, sources...)
	if err != nil {
		return err
	}
	d.lib = lib
	return nil
}

// DetectFull runs the full detection pipeline (spec.md §4.4 steps
// 1-10): headers/cookies/meta/scripts/html/url/dom matching, confidence
// aggregation, version extraction, implication propagation to a
// fixpoint, requires/requires_category/excludes filtering, and a
// deterministic sort.
func (d *Detector) DetectFull(headers map[string][]string, urls []string, body []byte, extra *ExtraSignals) ([]Technology, error) {
	if d.lib == nil {
		return nil, errNotInitialized
	}
	cleanHeaders, err := d.sanitizeHeaders(headers, len(body) == 0)
	if err != nil {
		return nil, err
	}

	doc := extract.Build(cleanHeaders, urls, body)
	m := &matchPass{log: d.log, lib: d.lib, hits: make(map[string]*techHit), counted: make(map[*rules.Pattern]bool)}

	m.matchHeaders(doc)
	m.matchCookies(doc)
	m.matchMeta(doc)
	m.matchScripts(doc)
	m.matchHTML(doc)
	m.matchURL(doc)
	m.matchDOM(doc)
	m.matchExtended(extra)

	propagateImplies(d.lib, m.hits, false)
	applyRequiresAndExcludes(d.lib, m.hits)

	return materialize(d.lib, m.hits), nil
}

// DetectLite runs the fast path: the same candidate pruning and pattern
// evaluation, but skips version template expansion and stops
// implication propagation after the first level, emitting only
// (name, confidence) pairs. Shares the same RuleLibrary (and therefore
// the same compiled-pattern/prefilter state) as DetectFull.
func (d *Detector) DetectLite(headers map[string][]string, urls []string, body []byte, extra *ExtraSignals) ([]TechnologyLite, error) {
	if d.lib == nil {
		return nil, errNotInitialized
	}
	cleanHeaders, err := d.sanitizeHeaders(headers, len(body) == 0)
	if err != nil {
		return nil, err
	}

	doc := extract.Build(cleanHeaders, urls, body)
	m := &matchPass{log: d.log, lib: d.lib, hits: make(map[string]*techHit), lite: true, counted: make(map[*rules.Pattern]bool)}

	m.matchHeaders(doc)
	m.matchCookies(doc)
	m.matchMeta(doc)
	m.matchScripts(doc)
	m.matchHTML(doc)
	m.matchURL(doc)
	m.matchDOM(doc)
	m.matchExtended(extra)

	propagateImplies(d.lib, m.hits, true)

	return materializeLite(m.hits), nil
}

// sanitizeHeaders drops header values that are not valid UTF-8, logging
// each drop rather than failing the call (spec.md §7: "header value not
// valid UTF-8" is skipped, not fatal). It only surfaces
// DetectErrInvalidHeader when bodyEmpty is true and every supplied
// header value turned out invalid, leaving nothing usable to match
// against.
func (d *Detector) sanitizeHeaders(headers map[string][]string, bodyEmpty bool) (map[string][]string, error) {
	if len(headers) == 0 {
		return headers, nil
	}
	clean := make(map[string][]string, len(headers))
	anyValid := false
	for name, values := range headers {
		var kept []string
		for _, v := range values {
			if !utf8.ValidString(v) {
				d.log.Warn().Str("header", name).Msg("dropping non-UTF-8 header value")
				continue
			}
			kept = append(kept, v)
		}
		if len(kept) > 0 {
			clean[name] = kept
			anyValid = true
		}
	}
	if !anyValid && bodyEmpty {
		return nil, invalidHeaderErr("all header values were invalid UTF-8 and no body was supplied")
	}
	return clean, nil
}
