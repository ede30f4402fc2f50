package loader

// rawTech is the union schema both the JSON and YAML dialects decode
// into: field names match Wappalyzer's canonical JSON exactly, plus the
// extended fields SPEC_FULL.md adds (url, robots, dom, dns, certIssuer,
// requires, requiresCategory). A pattern value may be a bare string or a
// list of strings; headers/cookies/meta/dns are maps of
// name -> string|[]string. Pattern values are therefore left as
// interface{} and resolved in normalize.go.
type rawTech struct {
	Cats        []int                  `json:"cats" yaml:"cats"`
	Headers     map[string]interface{} `json:"headers" yaml:"headers"`
	Cookies     map[string]interface{} `json:"cookies" yaml:"cookies"`
	Meta        map[string]interface{} `json:"meta" yaml:"meta"`
	Script      interface{}            `json:"script" yaml:"script"`
	ScriptSrc   interface{}            `json:"scriptSrc" yaml:"scriptSrc"`
	Scripts     interface{}            `json:"scripts" yaml:"scripts"`
	HTML        interface{}            `json:"html" yaml:"html"`
	URL         interface{}            `json:"url" yaml:"url"`
	Robots      interface{}            `json:"robots" yaml:"robots"`
	DOM         interface{}            `json:"dom" yaml:"dom"`
	DNS         map[string]interface{} `json:"dns" yaml:"dns"`
	CertIssuer  interface{}            `json:"certIssuer" yaml:"certIssuer"`
	JS          map[string]interface{} `json:"js" yaml:"js"`
	Implies     interface{}            `json:"implies" yaml:"implies"`
	Requires    interface{}            `json:"requires" yaml:"requires"`
	RequiresCat interface{}            `json:"requiresCategory" yaml:"requiresCategory"`
	Excludes    interface{}            `json:"excludes" yaml:"excludes"`
	Description string                 `json:"description" yaml:"description"`
	Website     string                 `json:"website" yaml:"website"`
	Icon        string                 `json:"icon" yaml:"icon"`
	CPE         string                 `json:"cpe" yaml:"cpe"`
	SaaS        bool                   `json:"saas" yaml:"saas"`
	OSS         bool                   `json:"oss" yaml:"oss"`
	Pricing     interface{}            `json:"pricing" yaml:"pricing"`
}

type rawCategory struct {
	Name     string `json:"name" yaml:"name"`
	Priority int    `json:"priority" yaml:"priority"`
}

// rawBundle is one fully decoded source: every technology it defines,
// keyed by name, plus any categories it carries (a remote/dir source
// may ship its own categories.json; the embedded source always does).
type rawBundle struct {
	Technologies map[string]rawTech
	Categories   map[string]rawCategory
}

func newRawBundle() *rawBundle {
	return &rawBundle{
		Technologies: make(map[string]rawTech),
		Categories:   make(map[string]rawCategory),
	}
}

func (b *rawBundle) mergeTechnologies(m map[string]rawTech) {
	for name, t := range m {
		b.Technologies[name] = t
	}
}
