package extract

import (
	"bytes"
	"sync"

	"github.com/PuerkitoBio/goquery"
)

// domOnce lazily builds a goquery document from the retained body bytes.
// Only called when the rule library has at least one `dom` pattern --
// the common case never pays the DOM-construction cost (see
// SPEC_FULL.md §4.3's two-tier extraction design).
type domOnce struct {
	once sync.Once
	doc  *goquery.Document
	err  error
}

func (d *ExtractedDoc) Document() (*goquery.Document, error) {
	if d.dom == nil {
		d.dom = &domOnce{}
	}
	d.dom.once.Do(func() {
		d.dom.doc, d.dom.err = goquery.NewDocumentFromReader(bytes.NewReader(d.body))
	})
	return d.dom.doc, d.dom.err
}
