package scraper

import (
	"io"
	"regexp"

	"github.com/PuerkitoBio/goquery"
)

var absoluteURL = regexp.MustCompile(`^https?://`)

// FirstImageURL returns the src of the first <img> in document order whose
// src is an absolute http(s) URL. Inline data URIs and relative paths are
// skipped. ok is false when no element qualifies.
func FirstImageURL(doc *goquery.Document) (src string, ok bool) {
	doc.Find("img").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		v, exists := s.Attr("src")
		if !exists || v == "" || !absoluteURL.MatchString(v) {
			return true
		}
		src, ok = v, true
		return false
	})
	return src, ok
}

// ExtractFirstImage parses an HTML body and applies FirstImageURL
func ExtractFirstImage(r io.Reader) (string, bool, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return "", false, err
	}
	src, ok := FirstImageURL(doc)
	return src, ok, nil
}
