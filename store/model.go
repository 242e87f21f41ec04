package store

import (
	"encoding/json"
	"errors"
	"time"
)

// ErrNotFound is returned by the repository when no document matches the
// requested id. Callers treat it as absence, not failure.
var ErrNotFound = errors.New("document not found")

// EmptyContent is the payload a page starts with and the payload returned
// for pages that do not exist. The engine never looks inside it.
var EmptyContent = json.RawMessage(`{}`)

type Page struct {
	PageNumber int             `json:"pageNumber"`
	Content    json.RawMessage `json:"content"`
}

// Document is the persisted aggregate. Pages are numbered 1..N with no gaps
// or duplicates; slice order is numbering order. Data is an opaque blob
// written only by explicit save-document requests.
type Document struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	Owner     string          `json:"owner"`
	Data      json.RawMessage `json:"data,omitempty"`
	Pages     []Page          `json:"pages"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// NewDocument builds the aggregate created on first join: a single empty
// page numbered 1 and a name derived from the id.
func NewDocument(id, owner string) *Document {
	return &Document{
		ID:    id,
		Name:  "Doc-" + id,
		Owner: owner,
		Pages: []Page{{PageNumber: 1, Content: EmptyContent}},
	}
}

// Page returns the page with the given number, or nil.
func (d *Document) Page(pageNumber int) *Page {
	for i := range d.Pages {
		if d.Pages[i].PageNumber == pageNumber {
			return &d.Pages[i]
		}
	}
	return nil
}

// AppendPage adds an empty page numbered len(pages)+1 and returns its number.
func (d *Document) AppendPage() int {
	n := len(d.Pages) + 1
	d.Pages = append(d.Pages, Page{PageNumber: n, Content: EmptyContent})
	return n
}

// RemovePage deletes the page with the given number and renumbers the
// remaining pages densely from 1, preserving their relative order. It
// reports whether a page was removed. Removing the last remaining page is
// refused: a document always has at least one page.
func (d *Document) RemovePage(pageNumber int) bool {
	if len(d.Pages) <= 1 {
		return false
	}
	kept := d.Pages[:0]
	removed := false
	for _, p := range d.Pages {
		if p.PageNumber == pageNumber {
			removed = true
			continue
		}
		kept = append(kept, p)
	}
	if !removed {
		return false
	}
	for i := range kept {
		kept[i].PageNumber = i + 1
	}
	d.Pages = kept
	return true
}
