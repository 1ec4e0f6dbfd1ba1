// Package htmlpage adapts fetched HTML documents to the snapshot page and
// row contracts using goquery.
package htmlpage

import (
	"bytes"
	"fmt"
	"iter"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/1-icenine/eci-tracker/internal/snapshot"
)

// DefaultTableSelector matches the rows of the signature table.
const DefaultTableSelector = "table tr"

// Page is a parsed snapshot page. It implements snapshot.PageHandle and
// snapshot.SourceHTML.
type Page struct {
	doc      *goquery.Document
	raw      []byte
	selector string
}

// Parse builds a Page from raw HTML. rowSelector picks the rows
// FindTableRows yields; empty means DefaultTableSelector.
func Parse(raw []byte, rowSelector string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &Page{doc: doc, raw: raw, selector: orDefault(rowSelector)}, nil
}

func orDefault(selector string) string {
	if strings.TrimSpace(selector) == "" {
		return DefaultTableSelector
	}
	return selector
}

// Has reports whether selector matches at least one element.
func (p *Page) Has(selector string) bool {
	return p.doc.Find(orDefault(selector)).Length() > 0
}

// FindTableRows yields every element matching the row selector, across all
// tables of the document, in document order.
func (p *Page) FindTableRows() iter.Seq[snapshot.RowHandle] {
	return func(yield func(snapshot.RowHandle) bool) {
		rows := p.doc.Find(p.selector)
		for i := range rows.Nodes {
			if !yield(Row{sel: rows.Eq(i)}) {
				return
			}
		}
	}
}

// HTML returns the document source as fetched.
func (p *Page) HTML() []byte {
	return p.raw
}

// Row is one table row.
type Row struct {
	sel *goquery.Selection
}

// Cells returns the visible text of each td cell, whitespace collapsed.
func (r Row) Cells() []string {
	tds := r.sel.ChildrenFiltered("td")
	cells := make([]string, 0, tds.Length())
	tds.Each(func(_ int, td *goquery.Selection) {
		cells = append(cells, strings.Join(strings.Fields(td.Text()), " "))
	})
	return cells
}
