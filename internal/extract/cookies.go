package extract

import (
	"net/http"
	"strings"
)

// ParseSetCookies fills doc.Cookies from a list of raw Set-Cookie header
// values using net/http's own cookie-attribute parser; attributes
// (Path, Domain, Max-Age, ...) are discarded, per spec.md §4.3.
func (d *ExtractedDoc) ParseSetCookies(values []string) {
	if d.Cookies == nil {
		d.Cookies = make(map[string][]string)
	}
	for _, v := range values {
		c, err := http.ParseSetCookie(v)
		if err != nil || c.Name == "" {
			continue
		}
		d.Cookies[c.Name] = append(d.Cookies[c.Name], c.Value)
	}
}

// ParseCookieHeader fills doc.Cookies from a request-side Cookie header
// value by splitting on ';' then '=', per spec.md §4.3.
func (d *ExtractedDoc) ParseCookieHeader(value string) {
	if d.Cookies == nil {
		d.Cookies = make(map[string][]string)
	}
	for _, pair := range strings.Split(value, ";") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			continue
		}
		name := strings.TrimSpace(kv[0])
		val := strings.TrimSpace(kv[1])
		d.Cookies[name] = append(d.Cookies[name], val)
	}
}
