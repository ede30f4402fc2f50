package extract

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
)

// FromHTML tokenizes body once, producing scripts/meta/title/html
// without ever building a DOM tree -- the streaming guarantee spec.md
// §4.3 requires. body is retained on the returned doc so a DOM-based
// extraction can run later without re-decoding (see dom.go).
func FromHTML(body []byte) *ExtractedDoc {
	doc := &ExtractedDoc{
		Meta: make(map[string][]string),
		body: body,
	}

	doc.HTML = strings.ToValidUTF8(string(body), "�")

	z := html.NewTokenizer(bytes.NewReader(body))
	inTitle := false
	titleSet := false

	for {
		tt := z.Next()
		if tt == html.ErrorToken {
			break
		}

		switch tt {
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := z.Token()
			switch tok.Data {
			case "script":
				if src := attr(tok, "src"); src != "" {
					doc.Scripts = append(doc.Scripts, src)
				}
			case "meta":
				name := attr(tok, "name")
				if name == "" {
					name = attr(tok, "http-equiv")
				}
				if name == "" {
					continue
				}
				content := attr(tok, "content")
				key := strings.ToLower(name)
				doc.Meta[key] = append(doc.Meta[key], content)
			case "title":
				if !titleSet {
					inTitle = true
				}
			}
		case html.TextToken:
			if inTitle && !titleSet {
				doc.Title = z.Token().Data
				titleSet = true
				inTitle = false
			}
		case html.EndTagToken:
			tok := z.Token()
			if tok.Data == "title" {
				inTitle = false
			}
		}
	}

	return doc
}

func attr(tok html.Token, name string) string {
	for _, a := range tok.Attr {
		if strings.EqualFold(a.Key, name) {
			return a.Val
		}
	}
	return ""
}
