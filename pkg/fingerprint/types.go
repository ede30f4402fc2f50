// Package fingerprint is the public surface of the detection core:
// load a rule library, then run full or lite technology detection
// against an HTTP response's headers, URLs, and body.
package fingerprint

// Technology is one detected technology, the full-pipeline output.
type Technology struct {
	Name       string   `json:"name"`
	Categories []string `json:"categories"`
	Confidence int      `json:"confidence"`
	Version    string   `json:"version,omitempty"`
	ImpliedBy  string   `json:"implied_by,omitempty"`
}

// TechnologyLite is the fast-path output: name and confidence only, no
// version extraction, no implication propagation past the first level.
type TechnologyLite struct {
	Name       string `json:"name"`
	Confidence int    `json:"confidence"`
}

// ExtraSignals bundles caller-supplied data for the extended dimensions
// (dns, cert_issuer, robots). The core never fetches any of this
// itself -- callers that want DNS/TLS/robots signals gather them and
// pass them in here.
type ExtraSignals struct {
	DNSRecords map[string][]string // record type -> values, e.g. "TXT" -> [...]
	CertIssuer string
	RobotsTxt  []byte
}
