// Package extract turns raw HTTP response data (headers, cookies, URLs,
// body bytes) into the structured signals the detector matches against.
package extract

// ExtractedDoc is every signal the detector needs, assembled once per
// detection call and read many times across dimensions.
type ExtractedDoc struct {
	Headers map[string][]string // lowercased header name -> raw values, in order
	Cookies map[string][]string // cookie name -> values (Set-Cookie and/or Cookie)
	Meta    map[string][]string // lowercased meta name -> content values
	Scripts []string            // script src attributes, in document order
	HTML    string              // full body text, lowercased once by the caller as needed
	Title   string
	URLs    []string

	// body is retained only so a lazy DOM parse (see dom.go) can run
	// without re-threading the raw bytes through every call site.
	body []byte
	dom  *domOnce
}

// ExtraSignals bundles caller-supplied data for the extended dimensions
// (dns, cert_issuer, robots). The core never fetches any of this itself.
type ExtraSignals struct {
	DNSRecords map[string][]string // record type -> values
	CertIssuer string
	RobotsTxt  []byte
}
