package extract

import "strings"

// Build assembles the full ExtractedDoc from a detection call's raw
// inputs: a header multimap, the candidate URLs (position 0 is "the"
// URL, per spec.md §6), and the response body.
func Build(headers map[string][]string, urls []string, body []byte) *ExtractedDoc {
	doc := FromHTML(body)
	doc.URLs = urls

	doc.Headers = make(map[string][]string, len(headers))
	for name, values := range headers {
		key := strings.ToLower(name)
		doc.Headers[key] = append(doc.Headers[key], values...)

		switch key {
		case "set-cookie":
			doc.ParseSetCookies(values)
		case "cookie":
			for _, v := range values {
				doc.ParseCookieHeader(v)
			}
		}
	}

	return doc
}
