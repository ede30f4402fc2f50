// Package signals gathers the out-of-band data the core detector's
// extended dimensions (dns, cert_issuer, robots) match against. The
// detection core never performs network I/O itself; a caller that wants
// those dimensions populated calls Collect first and passes the result
// in as fingerprint.ExtraSignals.
package signals

import (
	"context"
	"crypto/tls"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/miekg/dns"
	"github.com/weppos/publicsuffix-go/publicsuffix"
)

// recordTypes are the DNS record types lookupDNS resolves, matching what
// Wappalyzer-style dns rules key off of.
var recordTypes = []uint16{
	dns.TypeMX,
	dns.TypeTXT,
	dns.TypeNS,
	dns.TypeSOA,
	dns.TypeCNAME,
}

// resolvers are tried in order until one answers; a single flaky
// resolver should never blank out a whole record type.
var resolvers = []string{
	"8.8.8.8:53",
	"1.1.1.1:53",
	"9.9.9.9:53",
}

// Result bundles everything Collect gathered for one host.
type Result struct {
	DNSRecords map[string][]string
	CertIssuer string
	RobotsTxt  []byte
}

// Collect resolves DNS records, the leaf TLS certificate's issuer
// organization, and robots.txt for host concurrently, bounded by ctx.
// A failure in any one of the three never fails the others -- each is
// best-effort, matching how the extended dimensions themselves are
// optional (spec.md §3's "caller-supplied" extended signals).
func Collect(ctx context.Context, host string) *Result {
	res := &Result{}
	var wg sync.WaitGroup

	wg.Add(3)
	go func() { defer wg.Done(); res.DNSRecords = lookupDNS(ctx, host) }()
	go func() { defer wg.Done(); res.CertIssuer = lookupCertIssuer(ctx, host) }()
	go func() { defer wg.Done(); res.RobotsTxt = fetchRobots(ctx, host) }()
	wg.Wait()

	return res
}

// lookupDNS queries the registrable domain (not the full hostname) for
// each of recordTypes, trying resolvers in order until one answers.
func lookupDNS(ctx context.Context, host string) map[string][]string {
	registrable, err := publicsuffix.Domain(host)
	if err != nil || registrable == "" {
		registrable = host
	}

	results := make(map[string][]string)
	var mu sync.Mutex
	var wg sync.WaitGroup

	for _, qtype := range recordTypes {
		qtype := qtype
		wg.Add(1)
		go func() {
			defer wg.Done()
			values := queryRecord(ctx, registrable, qtype)
			if len(values) == 0 {
				return
			}
			mu.Lock()
			results[strings.ToUpper(dns.TypeToString[qtype])] = values
			mu.Unlock()
		}()
	}
	wg.Wait()
	return results
}

func queryRecord(ctx context.Context, domain string, qtype uint16) []string {
	for _, resolver := range resolvers {
		if ctx.Err() != nil {
			return nil
		}
		c := &dns.Client{Timeout: 2 * time.Second}
		m := new(dns.Msg)
		m.SetQuestion(dns.Fqdn(domain), qtype)
		m.RecursionDesired = true

		r, _, err := c.ExchangeContext(ctx, m, resolver)
		if err != nil || r == nil || len(r.Answer) == 0 {
			continue
		}

		var values []string
		for _, ans := range r.Answer {
			if v := recordValue(qtype, ans); v != "" {
				values = append(values, strings.ToLower(v))
			}
		}
		if len(values) > 0 {
			return values
		}
	}
	return nil
}

func recordValue(qtype uint16, ans dns.RR) string {
	switch qtype {
	case dns.TypeMX:
		if rr, ok := ans.(*dns.MX); ok {
			return rr.Mx
		}
	case dns.TypeTXT:
		if rr, ok := ans.(*dns.TXT); ok {
			return strings.Join(rr.Txt, " ")
		}
	case dns.TypeNS:
		if rr, ok := ans.(*dns.NS); ok {
			return rr.Ns
		}
	case dns.TypeSOA:
		if rr, ok := ans.(*dns.SOA); ok {
			return rr.Ns
		}
	case dns.TypeCNAME:
		if rr, ok := ans.(*dns.CNAME); ok {
			return rr.Target
		}
	}
	return ""
}

// lookupCertIssuer dials host:443, completes a TLS handshake without
// making any HTTP request, and returns the leaf certificate's issuer
// organization.
func lookupCertIssuer(ctx context.Context, host string) string {
	dialer := &tls.Dialer{Config: &tls.Config{ServerName: host}}
	conn, err := dialer.DialContext(ctx, "tcp", host+":443")
	if err != nil {
		return ""
	}
	defer conn.Close()

	tlsConn, ok := conn.(*tls.Conn)
	if !ok {
		return ""
	}
	state := tlsConn.ConnectionState()
	if len(state.PeerCertificates) == 0 {
		return ""
	}
	org := state.PeerCertificates[0].Issuer.Organization
	if len(org) == 0 {
		return ""
	}
	return org[0]
}

// fetchRobots retrieves robots.txt over HTTPS, capped at 1MB.
func fetchRobots(ctx context.Context, host string) []byte {
	client := &http.Client{Timeout: 5 * time.Second}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, "https://"+host+"/robots.txt", nil)
	if err != nil {
		return nil
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 1024*1024))
	if err != nil {
		return nil
	}
	return body
}
