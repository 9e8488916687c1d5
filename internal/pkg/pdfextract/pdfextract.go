package pdfextract

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

var (
	ErrUnreadable = errors.New("pdf is unreadable")
	ErrNoText     = errors.New("pdf has no extractable text")
)

// Page is the plain text of one PDF page. Number is 1-based.
type Page struct {
	Number int
	Text   string
}

// ExtractPagesAt returns the text of every page that has any, in page order.
func ExtractPagesAt(r io.ReaderAt, size int64) (pages []Page, err error) {
	if size <= 0 {
		return nil, ErrUnreadable
	}
	// The pdf package panics on some malformed inputs.
	defer func() {
		if rec := recover(); rec != nil {
			pages = nil
			err = fmt.Errorf("%w: %v", ErrUnreadable, rec)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreadable, err)
	}

	total := reader.NumPage()
	for i := 1; i <= total; i++ {
		p := reader.Page(i)
		if p.V.IsNull() {
			continue
		}
		text, err := p.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("%w: page %d: %v", ErrUnreadable, i, err)
		}
		if strings.TrimSpace(text) == "" {
			continue
		}
		pages = append(pages, Page{Number: i, Text: text})
	}
	if len(pages) == 0 {
		return nil, ErrNoText
	}
	return pages, nil
}

// LooksLikePDF reports whether b starts with the PDF magic header.
func LooksLikePDF(b []byte) bool {
	return bytes.HasPrefix(b, []byte("%PDF-"))
}
